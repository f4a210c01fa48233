package model

type EncounterStatus string

const (
	EncounterStatusScheduled EncounterStatus = "scheduled"
	EncounterStatusActive    EncounterStatus = "active"
	EncounterStatusPaused    EncounterStatus = "paused"
	EncounterStatusEnded     EncounterStatus = "ended"
)

// CanTransitionTo reports whether the status state machine allows moving
// from s to next. Transitions are monotone except active<->paused; ended
// is terminal.
func (s EncounterStatus) CanTransitionTo(next EncounterStatus) bool {
	if s == EncounterStatusEnded {
		return false
	}
	switch next {
	case EncounterStatusActive:
		return s == EncounterStatusScheduled || s == EncounterStatusPaused || s == EncounterStatusActive
	case EncounterStatusPaused:
		return s == EncounterStatusActive || s == EncounterStatusPaused
	case EncounterStatusEnded:
		return true
	default:
		return false
	}
}

type ParticipantRole string

const (
	RoleProvider ParticipantRole = "provider"
	RolePatient  ParticipantRole = "patient"
	RoleStaff    ParticipantRole = "staff"
)

type Presence string

const (
	PresenceOnline  Presence = "online"
	PresenceOffline Presence = "offline"
)

type InviteChannel string

const (
	ChannelEmail InviteChannel = "email"
	ChannelSMS   InviteChannel = "sms"
	ChannelLink  InviteChannel = "link"
)

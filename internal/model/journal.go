package model

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventInviteCreated       EventType = "INVITE_CREATED"
	EventInviteRedeemed      EventType = "INVITE_REDEEMED"
	EventCheckinOpened       EventType = "CHECKIN_OPENED"
	EventHandoffIssued       EventType = "HANDOFF_ISSUED"
	EventSecondDeviceAttempt EventType = "SECOND_DEVICE_ATTEMPT"
	EventHandoffRedeemed     EventType = "HANDOFF_REDEEMED"
	EventReconnectSuccess    EventType = "RECONNECT_SUCCESS"
	EventReconnectFailed     EventType = "RECONNECT_FAILED"
	EventParticipantJoined   EventType = "PARTICIPANT_JOINED"
	EventParticipantLeft     EventType = "PARTICIPANT_LEFT"
	EventEncounterEnded      EventType = "ENCOUNTER_ENDED"
	EventEncounterAutoEnded  EventType = "ENCOUNTER_AUTO_ENDED"
)

// JournalEvent is one append-only audit record. Rows are written inside
// the same transaction as the state change they describe.
type JournalEvent struct {
	ID          int64           `db:"id" json:"id"`
	EncounterID *string         `db:"encounter_id" json:"encounterId,omitempty"`
	Type        EventType       `db:"type" json:"type"`
	Payload     json.RawMessage `db:"payload" json:"payload"`
	At          time.Time       `db:"at" json:"at"`
}

// EventPayload is implemented by one struct per event type, so payload
// shapes cannot drift per call site.
type EventPayload interface {
	EventType() EventType
}

type InviteCreatedPayload struct {
	InviteID string        `json:"inviteId"`
	Channel  InviteChannel `json:"channel"`
}

func (InviteCreatedPayload) EventType() EventType { return EventInviteCreated }

type InviteRedeemedPayload struct {
	InviteID      string `json:"inviteId"`
	ParticipantID string `json:"participantId"`
	DeviceNonce   string `json:"deviceNonce"`
}

func (InviteRedeemedPayload) EventType() EventType { return EventInviteRedeemed }

type CheckinOpenedPayload struct {
	ParticipantID string `json:"participantId"`
}

func (CheckinOpenedPayload) EventType() EventType { return EventCheckinOpened }

type HandoffIssuedPayload struct {
	HandoffID string    `json:"handoffId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (HandoffIssuedPayload) EventType() EventType { return EventHandoffIssued }

type SecondDeviceAttemptPayload struct {
	DeviceNonce string `json:"deviceNonce"`
}

func (SecondDeviceAttemptPayload) EventType() EventType { return EventSecondDeviceAttempt }

type HandoffRedeemedPayload struct {
	HandoffID     string `json:"handoffId"`
	ParticipantID string `json:"participantId"`
	DeviceNonce   string `json:"deviceNonce"`
	Retired       int    `json:"retired"`
}

func (HandoffRedeemedPayload) EventType() EventType { return EventHandoffRedeemed }

type ReconnectSuccessPayload struct {
	ParticipantID string    `json:"participantId"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

func (ReconnectSuccessPayload) EventType() EventType { return EventReconnectSuccess }

type ReconnectFailedPayload struct {
	Reason string `json:"reason"`
}

func (ReconnectFailedPayload) EventType() EventType { return EventReconnectFailed }

type ParticipantJoinedPayload struct {
	Role        ParticipantRole `json:"role"`
	DisplayName *string         `json:"displayName,omitempty"`
}

func (ParticipantJoinedPayload) EventType() EventType { return EventParticipantJoined }

type ParticipantLeftPayload struct {
	Role ParticipantRole `json:"role"`
}

func (ParticipantLeftPayload) EventType() EventType { return EventParticipantLeft }

type EncounterEndedPayload struct {
	EndedBy string `json:"endedBy"`
}

func (EncounterEndedPayload) EventType() EventType { return EventEncounterEnded }

type EncounterAutoEndedPayload struct {
	Reason string `json:"reason"`
}

func (EncounterAutoEndedPayload) EventType() EventType { return EventEncounterAutoEnded }

// NewJournalEvent marshals a typed payload into a storable event. The
// returned event has no ID; the store assigns one on insert.
func NewJournalEvent(encounterID *string, payload EventPayload, at time.Time) (JournalEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return JournalEvent{}, err
	}
	return JournalEvent{
		EncounterID: encounterID,
		Type:        payload.EventType(),
		Payload:     data,
		At:          at,
	}, nil
}

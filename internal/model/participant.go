package model

import (
	"time"
)

// Participant is a human's current presence in an encounter. Presence is
// driven by heartbeat/join/leave only; a valid Session can coexist with
// an offline Participant.
type Participant struct {
	EncounterID string          `db:"encounter_id" json:"encounterId"`
	Role        ParticipantRole `db:"role" json:"role"`
	DisplayName *string         `db:"display_name" json:"displayName,omitempty"`
	Presence    Presence        `db:"presence" json:"presence"`
	LastSeen    time.Time       `db:"last_seen" json:"lastSeen"`
}

func (p *Participant) SeenWithin(window time.Duration, now time.Time) bool {
	return now.Sub(p.LastSeen) <= window
}

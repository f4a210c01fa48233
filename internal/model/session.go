package model

import (
	"time"
)

// Session binds one device to one participant for continued room access.
// Only the sha256 of the reconnect token is stored; the raw RRT is
// returned to the client once and never persisted.
type Session struct {
	ID            string          `db:"id" json:"id"`
	EncounterID   string          `db:"encounter_id" json:"encounterId"`
	ParticipantID string          `db:"participant_id" json:"participantId"`
	Role          ParticipantRole `db:"role" json:"role"`
	DeviceNonce   string          `db:"device_nonce" json:"deviceNonce"`
	RRTHash       string          `db:"rrt_hash" json:"-"`
	RRTExpiresAt  time.Time       `db:"rrt_expires_at" json:"rrtExpiresAt"`
	Active        bool            `db:"active" json:"active"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updatedAt"`
}

type CreateSessionParams struct {
	ID            string
	EncounterID   string
	ParticipantID string
	Role          ParticipantRole
	DeviceNonce   string
	RRTHash       string
	RRTExpiresAt  time.Time
}

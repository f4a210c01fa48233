package model

import (
	"time"
)

// HandoffToken is a single-use, short-lived credential for moving an
// in-progress encounter to another device. Same lookup-not-derive
// discipline as Invite, plus an expiry.
type HandoffToken struct {
	ID          string     `db:"id" json:"id"`
	EncounterID string     `db:"encounter_id" json:"encounterId"`
	HOT         string     `db:"hot" json:"-"`
	ExpiresAt   time.Time  `db:"expires_at" json:"expiresAt"`
	UsedAt      *time.Time `db:"used_at" json:"usedAt,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
}

type CreateHandoffTokenParams struct {
	ID          string
	EncounterID string
	HOT         string
	ExpiresAt   time.Time
}

func (h *HandoffToken) IsExpired(now time.Time) bool {
	return now.After(h.ExpiresAt)
}

package model

import (
	"time"
)

// Room is the transport-layer binding for an encounter. The core only
// tracks its name and active flag; the media service owns everything
// else about it.
type Room struct {
	EncounterID string    `db:"encounter_id" json:"encounterId"`
	Name        string    `db:"name" json:"name"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

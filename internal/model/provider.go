package model

import (
	"time"
)

// Provider is an authenticated clinician account. Authentication is a
// plain API-token check; identity management proper lives elsewhere.
type Provider struct {
	ID           string    `db:"id" json:"id"`
	DisplayName  string    `db:"display_name" json:"displayName"`
	Room         string    `db:"room" json:"room"`
	APITokenHash string    `db:"api_token_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

package model

import (
	"time"
)

// Invite is a single-use capability to join an encounter for the first
// time. The OIT is an opaque lookup key: nothing about its validity is
// derivable from the string itself.
type Invite struct {
	ID          string        `db:"id" json:"id"`
	EncounterID string        `db:"encounter_id" json:"encounterId"`
	Channel     InviteChannel `db:"channel" json:"channel"`
	Target      *string       `db:"target" json:"target,omitempty"`
	OIT         string        `db:"oit" json:"-"`
	RedeemedAt  *time.Time    `db:"redeemed_at" json:"redeemedAt,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"createdAt"`
}

type CreateInviteParams struct {
	ID          string
	EncounterID string
	Channel     InviteChannel
	Target      *string
	OIT         string
}

func (i *Invite) IsRedeemed() bool {
	return i.RedeemedAt != nil
}

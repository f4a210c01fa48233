package model

import (
	"slices"

	"github.com/lib/pq"
)

// Permission holds the per-encounter capability lists. Entries are actor
// ids (provider ids) or role names ("patient").
type Permission struct {
	EncounterID string         `db:"encounter_id" json:"encounterId"`
	CanJoin     pq.StringArray `db:"can_join" json:"canJoin"`
	CanPublish  pq.StringArray `db:"can_publish" json:"canPublish"`
	CanEnd      pq.StringArray `db:"can_end" json:"canEnd"`
}

func (p *Permission) MayEnd(actor string) bool {
	return slices.Contains(p.CanEnd, actor)
}

func (p *Permission) MayJoin(actor string) bool {
	return slices.Contains(p.CanJoin, actor)
}

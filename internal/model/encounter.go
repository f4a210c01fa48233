package model

import (
	"time"
)

type Encounter struct {
	ID           string          `db:"id" json:"id"`
	ProviderID   string          `db:"provider_id" json:"providerId"`
	ProviderRoom string          `db:"provider_room" json:"providerRoom"`
	PatientHint  *string         `db:"patient_hint" json:"patientHint,omitempty"`
	ScheduledAt  *time.Time      `db:"scheduled_at" json:"scheduledAt,omitempty"`
	Status       EncounterStatus `db:"status" json:"status"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
	EndedAt      *time.Time      `db:"ended_at" json:"endedAt,omitempty"`
}

type CreateEncounterParams struct {
	ID           string
	ProviderID   string
	ProviderRoom string
	PatientHint  *string
	ScheduledAt  *time.Time
}

func (e *Encounter) IsEnded() bool {
	return e.Status == EncounterStatusEnded
}

package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/telavista/visit-server-go/internal/database"
	"github.com/telavista/visit-server-go/internal/model"
)

type EncounterRepository interface {
	FindByID(ctx context.Context, id string) (*model.Encounter, error)
	Create(ctx context.Context, params model.CreateEncounterParams) (*model.Encounter, error)
	// Transition moves the encounter from one status to another with a
	// conditional update; it reports whether a row actually changed, so
	// callers can detect a lost race without a separate read.
	Transition(ctx context.Context, id string, from, to model.EncounterStatus, now time.Time) (bool, error)
	// FindStaleActive returns active encounters where neither the patient
	// nor the provider participant has been seen since the cutoff.
	FindStaleActive(ctx context.Context, seenCutoff time.Time) ([]model.Encounter, error)
	// FindAbandonedScheduled returns scheduled encounters created before
	// createdBefore with no participant seen since seenCutoff.
	FindAbandonedScheduled(ctx context.Context, createdBefore, seenCutoff time.Time) ([]model.Encounter, error)
	// Delete removes the encounter row; every dependent entity goes with
	// it via ON DELETE CASCADE.
	Delete(ctx context.Context, id string) error
	WithTx(tx *sqlx.Tx) EncounterRepository
}

type encounterRepo struct {
	db database.DBTX
}

func NewEncounterRepository(db *sqlx.DB) EncounterRepository {
	return &encounterRepo{db: db}
}

func (r *encounterRepo) WithTx(tx *sqlx.Tx) EncounterRepository {
	return &encounterRepo{db: tx}
}

func (r *encounterRepo) FindByID(ctx context.Context, id string) (*model.Encounter, error) {
	var enc model.Encounter
	err := r.db.GetContext(ctx, &enc, `
		SELECT * FROM encounters WHERE id = $1
	`, id)
	return HandleNotFound(&enc, err)
}

func (r *encounterRepo) Create(ctx context.Context, params model.CreateEncounterParams) (*model.Encounter, error) {
	var enc model.Encounter
	err := r.db.GetContext(ctx, &enc, `
		INSERT INTO encounters (id, provider_id, provider_room, patient_hint, scheduled_at, status)
		VALUES ($1, $2, $3, $4, $5, 'scheduled')
		RETURNING *
	`, params.ID, params.ProviderID, params.ProviderRoom, params.PatientHint, params.ScheduledAt)
	if err != nil {
		return nil, err
	}
	return &enc, nil
}

func (r *encounterRepo) Transition(ctx context.Context, id string, from, to model.EncounterStatus, now time.Time) (bool, error) {
	var endedAt *time.Time
	if to == model.EncounterStatusEnded {
		endedAt = &now
	}
	result, err := r.db.ExecContext(ctx, `
		UPDATE encounters SET
			status = $3,
			ended_at = COALESCE($4, ended_at)
		WHERE id = $1 AND status = $2
	`, id, from, to, endedAt)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *encounterRepo) FindStaleActive(ctx context.Context, seenCutoff time.Time) ([]model.Encounter, error) {
	var encounters []model.Encounter
	err := r.db.SelectContext(ctx, &encounters, `
		SELECT e.* FROM encounters e
		WHERE e.status = 'active'
		AND NOT EXISTS (
			SELECT 1 FROM participants p
			WHERE p.encounter_id = e.id
			AND p.role IN ('patient', 'provider')
			AND p.last_seen > $1
		)
		ORDER BY e.created_at
	`, seenCutoff)
	return encounters, err
}

func (r *encounterRepo) FindAbandonedScheduled(ctx context.Context, createdBefore, seenCutoff time.Time) ([]model.Encounter, error) {
	var encounters []model.Encounter
	err := r.db.SelectContext(ctx, &encounters, `
		SELECT e.* FROM encounters e
		WHERE e.status = 'scheduled'
		AND e.created_at < $1
		AND NOT EXISTS (
			SELECT 1 FROM participants p
			WHERE p.encounter_id = e.id
			AND p.last_seen > $2
		)
		ORDER BY e.created_at
	`, createdBefore, seenCutoff)
	return encounters, err
}

func (r *encounterRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM encounters WHERE id = $1
	`, id)
	return err
}

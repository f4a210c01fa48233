package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/telavista/visit-server-go/internal/database"
	"github.com/telavista/visit-server-go/internal/model"
)

type ParticipantRepository interface {
	FindByEncounter(ctx context.Context, encounterID string) ([]model.Participant, error)
	Find(ctx context.Context, encounterID string, role model.ParticipantRole) (*model.Participant, error)
	// Upsert records a join or heartbeat: one participant row per
	// (encounter, role), refreshed in place.
	Upsert(ctx context.Context, encounterID string, role model.ParticipantRole, displayName *string, presence model.Presence, now time.Time) (*model.Participant, error)
	SetPresence(ctx context.Context, encounterID string, role model.ParticipantRole, presence model.Presence, now time.Time) error
	WithTx(tx *sqlx.Tx) ParticipantRepository
}

type participantRepo struct {
	db database.DBTX
}

func NewParticipantRepository(db *sqlx.DB) ParticipantRepository {
	return &participantRepo{db: db}
}

func (r *participantRepo) WithTx(tx *sqlx.Tx) ParticipantRepository {
	return &participantRepo{db: tx}
}

func (r *participantRepo) FindByEncounter(ctx context.Context, encounterID string) ([]model.Participant, error) {
	var participants []model.Participant
	err := r.db.SelectContext(ctx, &participants, `
		SELECT * FROM participants WHERE encounter_id = $1 ORDER BY role
	`, encounterID)
	return participants, err
}

func (r *participantRepo) Find(ctx context.Context, encounterID string, role model.ParticipantRole) (*model.Participant, error) {
	var p model.Participant
	err := r.db.GetContext(ctx, &p, `
		SELECT * FROM participants WHERE encounter_id = $1 AND role = $2
	`, encounterID, role)
	return HandleNotFound(&p, err)
}

func (r *participantRepo) Upsert(ctx context.Context, encounterID string, role model.ParticipantRole, displayName *string, presence model.Presence, now time.Time) (*model.Participant, error) {
	var p model.Participant
	err := r.db.GetContext(ctx, &p, `
		INSERT INTO participants (encounter_id, role, display_name, presence, last_seen)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (encounter_id, role) DO UPDATE SET
			display_name = COALESCE(EXCLUDED.display_name, participants.display_name),
			presence = EXCLUDED.presence,
			last_seen = EXCLUDED.last_seen
		RETURNING *
	`, encounterID, role, displayName, presence, now)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *participantRepo) SetPresence(ctx context.Context, encounterID string, role model.ParticipantRole, presence model.Presence, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE participants SET presence = $3, last_seen = $4
		WHERE encounter_id = $1 AND role = $2
	`, encounterID, role, presence, now)
	return err
}

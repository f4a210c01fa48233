package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/telavista/visit-server-go/internal/database"
	"github.com/telavista/visit-server-go/internal/model"
)

type SessionRepository interface {
	FindActiveByDevice(ctx context.Context, encounterID, deviceNonce string) (*model.Session, error)
	FindActiveByEncounter(ctx context.Context, encounterID string) ([]model.Session, error)
	Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error)
	// DeactivateByRole retires every active session for one role, used
	// when redemption mints a replacement for the same role.
	DeactivateByRole(ctx context.Context, encounterID string, role model.ParticipantRole, now time.Time) (int64, error)
	// DeactivateAll retires every active session for the encounter
	// regardless of role; this is handoff's single-active-device rule.
	DeactivateAll(ctx context.Context, encounterID string, now time.Time) (int64, error)
	Deactivate(ctx context.Context, id string, now time.Time) error
	ExtendRRT(ctx context.Context, id string, expiresAt, now time.Time) error
	WithTx(tx *sqlx.Tx) SessionRepository
}

type sessionRepo struct {
	db database.DBTX
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) WithTx(tx *sqlx.Tx) SessionRepository {
	return &sessionRepo{db: tx}
}

func (r *sessionRepo) FindActiveByDevice(ctx context.Context, encounterID, deviceNonce string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM sessions
		WHERE encounter_id = $1 AND device_nonce = $2 AND active
	`, encounterID, deviceNonce)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) FindActiveByEncounter(ctx context.Context, encounterID string) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT * FROM sessions
		WHERE encounter_id = $1 AND active
		ORDER BY created_at
	`, encounterID)
	return sessions, err
}

func (r *sessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO sessions (id, encounter_id, participant_id, role, device_nonce, rrt_hash, rrt_expires_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		RETURNING *
	`, params.ID, params.EncounterID, params.ParticipantID, params.Role,
		params.DeviceNonce, params.RRTHash, params.RRTExpiresAt)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) DeactivateByRole(ctx context.Context, encounterID string, role model.ParticipantRole, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET active = FALSE, updated_at = $3
		WHERE encounter_id = $1 AND role = $2 AND active
	`, encounterID, role, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *sessionRepo) DeactivateAll(ctx context.Context, encounterID string, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET active = FALSE, updated_at = $2
		WHERE encounter_id = $1 AND active
	`, encounterID, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *sessionRepo) Deactivate(ctx context.Context, id string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET active = FALSE, updated_at = $2
		WHERE id = $1
	`, id, now)
	return err
}

func (r *sessionRepo) ExtendRRT(ctx context.Context, id string, expiresAt, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET rrt_expires_at = $2, updated_at = $3
		WHERE id = $1 AND active
	`, id, expiresAt, now)
	return err
}

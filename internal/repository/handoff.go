package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/telavista/visit-server-go/internal/database"
	"github.com/telavista/visit-server-go/internal/model"
)

type HandoffRepository interface {
	FindByHOT(ctx context.Context, hot string) (*model.HandoffToken, error)
	Create(ctx context.Context, params model.CreateHandoffTokenParams) (*model.HandoffToken, error)
	// Consume marks the token used if it is still unused and unexpired;
	// same exactly-once discipline as InviteRepository.Redeem.
	Consume(ctx context.Context, hot string, now time.Time) (bool, error)
	DeleteExpired(ctx context.Context) (int64, error)
	WithTx(tx *sqlx.Tx) HandoffRepository
}

type handoffRepo struct {
	db database.DBTX
}

func NewHandoffRepository(db *sqlx.DB) HandoffRepository {
	return &handoffRepo{db: db}
}

func (r *handoffRepo) WithTx(tx *sqlx.Tx) HandoffRepository {
	return &handoffRepo{db: tx}
}

func (r *handoffRepo) FindByHOT(ctx context.Context, hot string) (*model.HandoffToken, error) {
	var ht model.HandoffToken
	err := r.db.GetContext(ctx, &ht, `
		SELECT * FROM handoff_tokens WHERE hot = $1
	`, hot)
	return HandleNotFound(&ht, err)
}

func (r *handoffRepo) Create(ctx context.Context, params model.CreateHandoffTokenParams) (*model.HandoffToken, error) {
	var ht model.HandoffToken
	err := r.db.GetContext(ctx, &ht, `
		INSERT INTO handoff_tokens (id, encounter_id, hot, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, params.ID, params.EncounterID, params.HOT, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &ht, nil
}

func (r *handoffRepo) Consume(ctx context.Context, hot string, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE handoff_tokens SET used_at = $2
		WHERE hot = $1 AND used_at IS NULL AND expires_at > $2
	`, hot, now)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *handoffRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM handoff_tokens
		WHERE expires_at < NOW() OR used_at IS NOT NULL
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

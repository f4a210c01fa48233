package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/telavista/visit-server-go/internal/database"
	"github.com/telavista/visit-server-go/internal/model"
)

type InviteRepository interface {
	FindByOIT(ctx context.Context, oit string) (*model.Invite, error)
	FindByEncounterID(ctx context.Context, encounterID string) (*model.Invite, error)
	Create(ctx context.Context, params model.CreateInviteParams) (*model.Invite, error)
	// Redeem sets redeemed_at if and only if it is still null. The
	// returned bool is the whole exactly-once guarantee: under concurrent
	// redemption exactly one caller sees true.
	Redeem(ctx context.Context, oit string, now time.Time) (bool, error)
	WithTx(tx *sqlx.Tx) InviteRepository
}

type inviteRepo struct {
	db database.DBTX
}

func NewInviteRepository(db *sqlx.DB) InviteRepository {
	return &inviteRepo{db: db}
}

func (r *inviteRepo) WithTx(tx *sqlx.Tx) InviteRepository {
	return &inviteRepo{db: tx}
}

func (r *inviteRepo) FindByOIT(ctx context.Context, oit string) (*model.Invite, error) {
	var invite model.Invite
	err := r.db.GetContext(ctx, &invite, `
		SELECT * FROM invites WHERE oit = $1
	`, oit)
	return HandleNotFound(&invite, err)
}

func (r *inviteRepo) FindByEncounterID(ctx context.Context, encounterID string) (*model.Invite, error) {
	var invite model.Invite
	err := r.db.GetContext(ctx, &invite, `
		SELECT * FROM invites WHERE encounter_id = $1
	`, encounterID)
	return HandleNotFound(&invite, err)
}

func (r *inviteRepo) Create(ctx context.Context, params model.CreateInviteParams) (*model.Invite, error) {
	var invite model.Invite
	err := r.db.GetContext(ctx, &invite, `
		INSERT INTO invites (id, encounter_id, channel, target, oit)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, params.ID, params.EncounterID, params.Channel, params.Target, params.OIT)
	if err != nil {
		return nil, err
	}
	return &invite, nil
}

func (r *inviteRepo) Redeem(ctx context.Context, oit string, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE invites SET redeemed_at = $2
		WHERE oit = $1 AND redeemed_at IS NULL
	`, oit, now)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

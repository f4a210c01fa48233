package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/telavista/visit-server-go/internal/database"
	"github.com/telavista/visit-server-go/internal/model"
)

type PermissionRepository interface {
	FindByEncounterID(ctx context.Context, encounterID string) (*model.Permission, error)
	Create(ctx context.Context, perm model.Permission) (*model.Permission, error)
	AddPublish(ctx context.Context, encounterID, actor string) error
	RemovePublish(ctx context.Context, encounterID, actor string) error
	WithTx(tx *sqlx.Tx) PermissionRepository
}

type permissionRepo struct {
	db database.DBTX
}

func NewPermissionRepository(db *sqlx.DB) PermissionRepository {
	return &permissionRepo{db: db}
}

func (r *permissionRepo) WithTx(tx *sqlx.Tx) PermissionRepository {
	return &permissionRepo{db: tx}
}

func (r *permissionRepo) FindByEncounterID(ctx context.Context, encounterID string) (*model.Permission, error) {
	var perm model.Permission
	err := r.db.GetContext(ctx, &perm, `
		SELECT * FROM permissions WHERE encounter_id = $1
	`, encounterID)
	return HandleNotFound(&perm, err)
}

func (r *permissionRepo) Create(ctx context.Context, perm model.Permission) (*model.Permission, error) {
	var created model.Permission
	err := r.db.GetContext(ctx, &created, `
		INSERT INTO permissions (encounter_id, can_join, can_publish, can_end)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, perm.EncounterID, pq.StringArray(perm.CanJoin), pq.StringArray(perm.CanPublish), pq.StringArray(perm.CanEnd))
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *permissionRepo) AddPublish(ctx context.Context, encounterID, actor string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE permissions SET can_publish = array_append(can_publish, $2)
		WHERE encounter_id = $1 AND NOT ($2 = ANY(can_publish))
	`, encounterID, actor)
	return err
}

func (r *permissionRepo) RemovePublish(ctx context.Context, encounterID, actor string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE permissions SET can_publish = array_remove(can_publish, $2)
		WHERE encounter_id = $1
	`, encounterID, actor)
	return err
}

package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/telavista/visit-server-go/internal/database"
	"github.com/telavista/visit-server-go/internal/model"
)

type RoomRepository interface {
	FindByEncounterID(ctx context.Context, encounterID string) (*model.Room, error)
	Create(ctx context.Context, encounterID, name string) (*model.Room, error)
	Deactivate(ctx context.Context, encounterID string) error
	WithTx(tx *sqlx.Tx) RoomRepository
}

type roomRepo struct {
	db database.DBTX
}

func NewRoomRepository(db *sqlx.DB) RoomRepository {
	return &roomRepo{db: db}
}

func (r *roomRepo) WithTx(tx *sqlx.Tx) RoomRepository {
	return &roomRepo{db: tx}
}

func (r *roomRepo) FindByEncounterID(ctx context.Context, encounterID string) (*model.Room, error) {
	var room model.Room
	err := r.db.GetContext(ctx, &room, `
		SELECT * FROM rooms WHERE encounter_id = $1
	`, encounterID)
	return HandleNotFound(&room, err)
}

func (r *roomRepo) Create(ctx context.Context, encounterID, name string) (*model.Room, error) {
	var room model.Room
	err := r.db.GetContext(ctx, &room, `
		INSERT INTO rooms (encounter_id, name, active)
		VALUES ($1, $2, TRUE)
		RETURNING *
	`, encounterID, name)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *roomRepo) Deactivate(ctx context.Context, encounterID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE rooms SET active = FALSE WHERE encounter_id = $1
	`, encounterID)
	return err
}

package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/telavista/visit-server-go/internal/database"
	"github.com/telavista/visit-server-go/internal/model"
)

type JournalRepository interface {
	// Append writes one audit row. Callers run it inside the same
	// transaction as the state change it describes; a journal failure
	// fails the whole operation.
	Append(ctx context.Context, event model.JournalEvent) (*model.JournalEvent, error)
	ListByEncounter(ctx context.Context, encounterID string, limit int) ([]model.JournalEvent, error)
	WithTx(tx *sqlx.Tx) JournalRepository
}

type journalRepo struct {
	db database.DBTX
}

func NewJournalRepository(db *sqlx.DB) JournalRepository {
	return &journalRepo{db: db}
}

func (r *journalRepo) WithTx(tx *sqlx.Tx) JournalRepository {
	return &journalRepo{db: tx}
}

func (r *journalRepo) Append(ctx context.Context, event model.JournalEvent) (*model.JournalEvent, error) {
	var created model.JournalEvent
	err := r.db.GetContext(ctx, &created, `
		INSERT INTO journal_events (encounter_id, type, payload, at)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, event.EncounterID, event.Type, event.Payload, event.At)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *journalRepo) ListByEncounter(ctx context.Context, encounterID string, limit int) ([]model.JournalEvent, error) {
	var events []model.JournalEvent
	err := r.db.SelectContext(ctx, &events, `
		SELECT * FROM journal_events
		WHERE encounter_id = $1
		ORDER BY at DESC
		LIMIT $2
	`, encounterID, limit)
	return events, err
}

package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/telavista/visit-server-go/internal/database"
	"github.com/telavista/visit-server-go/internal/model"
)

type ProviderRepository interface {
	FindByID(ctx context.Context, id string) (*model.Provider, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.Provider, error)
	Create(ctx context.Context, id, displayName, room, apiTokenHash string) (*model.Provider, error)
}

type providerRepo struct {
	db database.DBTX
}

func NewProviderRepository(db *sqlx.DB) ProviderRepository {
	return &providerRepo{db: db}
}

func (r *providerRepo) FindByID(ctx context.Context, id string) (*model.Provider, error) {
	var provider model.Provider
	err := r.db.GetContext(ctx, &provider, `
		SELECT * FROM providers WHERE id = $1
	`, id)
	return HandleNotFound(&provider, err)
}

func (r *providerRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Provider, error) {
	var provider model.Provider
	err := r.db.GetContext(ctx, &provider, `
		SELECT * FROM providers WHERE api_token_hash = $1
	`, tokenHash)
	return HandleNotFound(&provider, err)
}

func (r *providerRepo) Create(ctx context.Context, id, displayName, room, apiTokenHash string) (*model.Provider, error) {
	var provider model.Provider
	err := r.db.GetContext(ctx, &provider, `
		INSERT INTO providers (id, display_name, room, api_token_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, id, displayName, room, apiTokenHash)
	if err != nil {
		return nil, err
	}
	return &provider, nil
}

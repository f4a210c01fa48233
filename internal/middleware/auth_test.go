package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telavista/visit-server-go/internal/model"
	"github.com/telavista/visit-server-go/internal/token"
)

type mockProviderRepo struct {
	byHash map[string]*model.Provider
	err    error
}

func (m *mockProviderRepo) FindByID(ctx context.Context, id string) (*model.Provider, error) {
	return nil, nil
}

func (m *mockProviderRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Provider, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.byHash[tokenHash], nil
}

func (m *mockProviderRepo) Create(ctx context.Context, id, displayName, room, apiTokenHash string) (*model.Provider, error) {
	return nil, nil
}

func TestAuthMiddleware(t *testing.T) {
	const apiToken = "prv_0123456789abcdef0123456789abcdef"

	repo := &mockProviderRepo{byHash: map[string]*model.Provider{
		token.Hash(apiToken): {ID: "dr-lee", Room: "dr-lee"},
	}}
	mw := NewAuthMiddleware(repo)

	var seen *model.Provider
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetProvider(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		authHeader string
		repoErr    error
		wantStatus int
	}{
		{"valid token", "Bearer " + apiToken, nil, http.StatusNoContent},
		{"missing header", "", nil, http.StatusUnauthorized},
		{"wrong scheme", "Basic " + apiToken, nil, http.StatusUnauthorized},
		{"unknown token", "Bearer prv_ffffffffffffffffffffffffffffffff", nil, http.StatusUnauthorized},
		{"repo failure", "Bearer " + apiToken, errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			repo.err = tt.repoErr

			req := httptest.NewRequest(http.MethodGet, "/api/encounters", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusNoContent {
				require.NotNil(t, seen)
				assert.Equal(t, "dr-lee", seen.ID)
			} else {
				assert.Nil(t, seen)
			}
		})
	}
}

func TestGetProviderOutsideAuthedRoutes(t *testing.T) {
	assert.Nil(t, GetProvider(context.Background()))
}

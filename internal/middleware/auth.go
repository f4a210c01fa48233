package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/telavista/visit-server-go/internal/model"
	"github.com/telavista/visit-server-go/internal/repository"
	"github.com/telavista/visit-server-go/internal/token"
)

type contextKey string

const ProviderContextKey contextKey = "provider"

// GetProvider returns the authenticated provider, or nil outside the
// authenticated routes. Operations always receive the provider id
// explicitly from here; nothing in the service layer assumes an ambient
// identity.
func GetProvider(ctx context.Context) *model.Provider {
	if provider, ok := ctx.Value(ProviderContextKey).(*model.Provider); ok {
		return provider
	}
	return nil
}

type AuthMiddleware struct {
	providerRepo repository.ProviderRepository
}

func NewAuthMiddleware(providerRepo repository.ProviderRepository) *AuthMiddleware {
	return &AuthMiddleware{providerRepo: providerRepo}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := extractToken(r)
		if tok == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Missing authentication token",
			})
			return
		}

		provider, err := m.providerRepo.FindByTokenHash(r.Context(), token.Hash(tok))
		if err != nil {
			log.Error().Err(err).Msg("auth middleware: database error")
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Authentication failed",
			})
			return
		}

		if provider == nil {
			log.Warn().Msg("auth middleware: invalid provider token attempt")
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid token",
			})
			return
		}

		ctx := context.WithValue(r.Context(), ProviderContextKey, provider)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

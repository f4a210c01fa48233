// Package service implements the control-plane operations of the visit
// portal: invite issuance and redemption, device handoff, reconnect
// token refresh, presence tracking and the encounter lifecycle. Every
// multi-step mutation runs in a single database transaction; no service
// caches entity state across calls.
package service

import (
	"context"

	"github.com/telavista/visit-server-go/internal/database"
)

// TxRunner is the slice of *database.DB the services need. Tests
// substitute a runner that invokes the function without a real
// transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

var _ TxRunner = (*database.DB)(nil)

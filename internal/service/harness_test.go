package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/telavista/visit-server-go/internal/errors"
	"github.com/telavista/visit-server-go/internal/testfixtures"
)

const (
	testProviderID   = "dr-lee"
	testProviderRoom = "dr-lee"
	testBaseURL      = "https://visit.example.com/checkin"

	testRRTTTL         = 24 * time.Hour
	testHOTTTL         = 10 * time.Minute
	testStaleWindow    = 5 * time.Minute
	testScheduledGrace = 30 * time.Minute
)

// testClock is a movable clock shared by every service in an env, so a
// test can fast-forward through expiry windows deterministically.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	// Anchored to wall time because the in-memory store stamps createdAt
	// with time.Now on insert.
	return &testClock{t: time.Now()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type env struct {
	store     *testfixtures.MemStore
	clock     *testClock
	invites   *InviteService
	redeem    *RedeemService
	handoff   *HandoffService
	refresh   *RefreshService
	presence  *PresenceService
	lifecycle *LifecycleService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	store := testfixtures.NewMemStore()
	clock := newTestClock()
	db := testfixtures.StubTxRunner{}

	invites := NewInviteService(
		db, store.Encounters(), store.Rooms(), store.Permissions(),
		store.Invites(), store.Journal(), testBaseURL,
	)
	invites.now = clock.Now

	redeem := NewRedeemService(
		db, store.Invites(), store.Encounters(), store.Rooms(),
		store.Sessions(), store.Participants(), store.Journal(), testRRTTTL,
	)
	redeem.now = clock.Now

	handoff := NewHandoffService(
		db, store.Encounters(), store.Handoffs(), store.Sessions(),
		store.Journal(), testBaseURL, testHOTTTL, testRRTTTL,
	)
	handoff.now = clock.Now

	refresh := NewRefreshService(
		db, store.Sessions(), store.Rooms(), store.Journal(), testRRTTTL,
	)
	refresh.now = clock.Now

	presence := NewPresenceService(
		db, store.Encounters(), store.Participants(), store.Permissions(), store.Journal(),
	)
	presence.now = clock.Now

	lifecycle := NewLifecycleService(
		db, store.Encounters(), store.Participants(), store.Permissions(),
		store.Sessions(), store.Rooms(), store.Journal(),
		testStaleWindow, testScheduledGrace,
	)
	lifecycle.now = clock.Now

	return &env{
		store:     store,
		clock:     clock,
		invites:   invites,
		redeem:    redeem,
		handoff:   handoff,
		refresh:   refresh,
		presence:  presence,
		lifecycle: lifecycle,
	}
}

// book creates an encounter with its one-time invite for the default
// provider.
func (e *env) book(t *testing.T) *CreateInviteResult {
	t.Helper()
	result, err := e.invites.CreateInvite(context.Background(), testProviderID, testProviderRoom, nil, nil)
	require.NoError(t, err)
	return result
}

// checkin books an encounter and redeems its invite from one device.
func (e *env) checkin(t *testing.T, deviceNonce string) *RedeemResult {
	t.Helper()
	booked := e.book(t)
	result, err := e.redeem.RedeemInvite(context.Background(), testProviderRoom, booked.OIT, deviceNonce, nil)
	require.NoError(t, err)
	return result
}

func requireCode(t *testing.T, err error, code apperrors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok, "expected AppError, got %T: %v", err, err)
	require.Equal(t, code, appErr.Code)
}

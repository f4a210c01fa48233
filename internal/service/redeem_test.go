package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/telavista/visit-server-go/internal/errors"
	"github.com/telavista/visit-server-go/internal/model"
	"github.com/telavista/visit-server-go/internal/token"
)

func TestRedeemInvite(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	booked := e.book(t)
	result, err := e.redeem.RedeemInvite(ctx, testProviderRoom, booked.OIT, "dvc-1", nil)
	require.NoError(t, err)

	assert.Equal(t, booked.EncounterID, result.EncounterID)
	assert.True(t, token.ValidFormat(token.KindReconnect, result.RRT))
	assert.Equal(t, e.clock.Now().Add(testRRTTTL), result.RRTExpiresAt)

	sessions := e.store.ActiveSessions(booked.EncounterID)
	require.Len(t, sessions, 1)
	assert.Equal(t, "dvc-1", sessions[0].DeviceNonce)
	assert.Equal(t, model.RolePatient, sessions[0].Role)
	// Only the hash is stored.
	assert.Equal(t, token.Hash(result.RRT), sessions[0].RRTHash)
	assert.NotEqual(t, result.RRT, sessions[0].RRTHash)

	patient, err := e.store.Participants().Find(ctx, booked.EncounterID, model.RolePatient)
	require.NoError(t, err)
	require.NotNil(t, patient)
	assert.Equal(t, model.PresenceOnline, patient.Presence)

	assert.Equal(t, []model.EventType{
		model.EventInviteCreated,
		model.EventInviteRedeemed,
		model.EventCheckinOpened,
	}, e.store.JournalTypes(booked.EncounterID))
}

func TestRedeemInviteSecondAttemptRefused(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	booked := e.book(t)
	_, err := e.redeem.RedeemInvite(ctx, testProviderRoom, booked.OIT, "dvc-1", nil)
	require.NoError(t, err)

	// Same link opened again, different device.
	_, err = e.redeem.RedeemInvite(ctx, testProviderRoom, booked.OIT, "dvc-2", nil)
	requireCode(t, err, apperrors.ErrCodeAlreadyRedeemed)

	// The first device's session is untouched by the refused attempt.
	sessions := e.store.ActiveSessions(booked.EncounterID)
	require.Len(t, sessions, 1)
	assert.Equal(t, "dvc-1", sessions[0].DeviceNonce)
}

func TestRedeemInviteRoomMismatch(t *testing.T) {
	e := newEnv(t)

	booked := e.book(t)
	_, err := e.redeem.RedeemInvite(context.Background(), "dr-other", booked.OIT, "dvc-1", nil)
	requireCode(t, err, apperrors.ErrCodeRoomMismatch)

	// The mismatch must not burn the invite.
	_, err = e.redeem.RedeemInvite(context.Background(), testProviderRoom, booked.OIT, "dvc-1", nil)
	require.NoError(t, err)
}

func TestRedeemInviteValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	unknown, err := token.NewInviteToken()
	require.NoError(t, err)

	tests := []struct {
		name  string
		oit   string
		nonce string
		code  apperrors.ErrorCode
	}{
		{"malformed token", "oit", "dvc-1", apperrors.ErrCodeInvalidToken},
		{"wrong prefix", "rrt_0123456789abcdef0123456789abcdef", "dvc-1", apperrors.ErrCodeInvalidToken},
		{"unknown token", unknown, "dvc-1", apperrors.ErrCodeNotFound},
		{"missing device nonce", unknown, "", apperrors.ErrCodeMissingRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.redeem.RedeemInvite(ctx, testProviderRoom, tt.oit, tt.nonce, nil)
			requireCode(t, err, tt.code)
		})
	}
}

func TestRedeemInviteScopedToEncounter(t *testing.T) {
	e := newEnv(t)

	// A second encounter's redemption never touches the first one.
	first := e.checkin(t, "dvc-1")
	second := e.checkin(t, "dvc-2")

	require.Len(t, e.store.ActiveSessions(first.EncounterID), 1)
	require.Len(t, e.store.ActiveSessions(second.EncounterID), 1)
}

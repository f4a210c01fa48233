package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/telavista/visit-server-go/internal/errors"
	"github.com/telavista/visit-server-go/internal/model"
	"github.com/telavista/visit-server-go/internal/token"
)

func TestCreateInvite(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	hint := "J. D."
	scheduled := e.clock.Now().Add(2 * time.Hour)
	result, err := e.invites.CreateInvite(ctx, testProviderID, testProviderRoom, &scheduled, &hint)
	require.NoError(t, err)

	assert.True(t, token.ValidFormat(token.KindInvite, result.OIT))
	assert.Equal(t, fmt.Sprintf("%s/%s/%s", testBaseURL, testProviderRoom, result.OIT), result.InviteURL)

	enc, ok := e.store.Encounter(result.EncounterID)
	require.True(t, ok)
	assert.Equal(t, model.EncounterStatusScheduled, enc.Status)
	assert.Equal(t, testProviderID, enc.ProviderID)
	require.NotNil(t, enc.PatientHint)
	assert.Equal(t, hint, *enc.PatientHint)

	room, err := e.store.Rooms().FindByEncounterID(ctx, result.EncounterID)
	require.NoError(t, err)
	require.NotNil(t, room)
	assert.True(t, strings.HasPrefix(room.Name, "visit-"))
	assert.True(t, room.Active)

	perm, err := e.store.Permissions().FindByEncounterID(ctx, result.EncounterID)
	require.NoError(t, err)
	require.NotNil(t, perm)
	assert.True(t, perm.MayEnd(testProviderID))
	assert.False(t, perm.MayEnd("someone-else"))
	assert.True(t, perm.MayJoin(string(model.RolePatient)))

	assert.Equal(t, []model.EventType{model.EventInviteCreated}, e.store.JournalTypes(result.EncounterID))
}

func TestCreateInviteTwiceMakesIndependentEncounters(t *testing.T) {
	e := newEnv(t)

	first := e.book(t)
	second := e.book(t)

	assert.NotEqual(t, first.EncounterID, second.EncounterID)
	assert.NotEqual(t, first.OIT, second.OIT)
}

func TestPeekInvite(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	hint := "M. K."
	result, err := e.invites.CreateInvite(ctx, testProviderID, testProviderRoom, nil, &hint)
	require.NoError(t, err)

	peek, err := e.invites.PeekInvite(ctx, testProviderRoom, result.OIT)
	require.NoError(t, err)
	require.NotNil(t, peek.PatientHint)
	assert.Equal(t, hint, *peek.PatientHint)
}

func TestPeekInviteHidesState(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	booked := e.book(t)
	unknown, err := token.NewInviteToken()
	require.NoError(t, err)

	// Redeemed invites, wrong rooms, unknown and malformed tokens all
	// look the same from the outside.
	_, err = e.redeem.RedeemInvite(ctx, testProviderRoom, booked.OIT, "dvc-1", nil)
	require.NoError(t, err)

	for name, tc := range map[string]struct {
		room string
		oit  string
	}{
		"redeemed":  {testProviderRoom, booked.OIT},
		"wrongRoom": {"dr-other", booked.OIT},
		"unknown":   {testProviderRoom, unknown},
		"malformed": {testProviderRoom, "not-a-token"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := e.invites.PeekInvite(ctx, tc.room, tc.oit)
			requireCode(t, err, apperrors.ErrCodeNotFound)
		})
	}
}

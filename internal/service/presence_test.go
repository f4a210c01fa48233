package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/telavista/visit-server-go/internal/errors"
	"github.com/telavista/visit-server-go/internal/model"
)

func encounterStatus(t *testing.T, e *env, id string) model.EncounterStatus {
	t.Helper()
	enc, ok := e.store.Encounter(id)
	require.True(t, ok)
	return enc.Status
}

func TestJoinActivatesScheduled(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	booked := e.book(t)
	require.Equal(t, model.EncounterStatusScheduled, encounterStatus(t, e, booked.EncounterID))

	name := "Jane"
	require.NoError(t, e.presence.Join(ctx, booked.EncounterID, model.RolePatient, &name))
	assert.Equal(t, model.EncounterStatusActive, encounterStatus(t, e, booked.EncounterID))

	types := e.store.JournalTypes(booked.EncounterID)
	assert.Equal(t, model.EventParticipantJoined, types[len(types)-1])
}

func TestProviderLeavePausesAndRejoinResumes(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	booked := e.book(t)
	require.NoError(t, e.presence.Join(ctx, booked.EncounterID, model.RolePatient, nil))
	require.NoError(t, e.presence.Join(ctx, booked.EncounterID, model.RoleProvider, nil))
	require.Equal(t, model.EncounterStatusActive, encounterStatus(t, e, booked.EncounterID))

	require.NoError(t, e.presence.Leave(ctx, booked.EncounterID, model.RoleProvider))
	assert.Equal(t, model.EncounterStatusPaused, encounterStatus(t, e, booked.EncounterID))

	// The provider's publish grant goes away while the call is paused.
	perm, err := e.store.Permissions().FindByEncounterID(ctx, booked.EncounterID)
	require.NoError(t, err)
	assert.NotContains(t, perm.CanPublish, testProviderID)

	require.NoError(t, e.presence.Join(ctx, booked.EncounterID, model.RoleProvider, nil))
	assert.Equal(t, model.EncounterStatusActive, encounterStatus(t, e, booked.EncounterID))

	perm, err = e.store.Permissions().FindByEncounterID(ctx, booked.EncounterID)
	require.NoError(t, err)
	assert.Contains(t, perm.CanPublish, testProviderID)
}

func TestPatientLeaveKeepsActive(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	booked := e.book(t)
	require.NoError(t, e.presence.Join(ctx, booked.EncounterID, model.RolePatient, nil))
	require.NoError(t, e.presence.Join(ctx, booked.EncounterID, model.RoleProvider, nil))

	require.NoError(t, e.presence.Leave(ctx, booked.EncounterID, model.RolePatient))
	assert.Equal(t, model.EncounterStatusActive, encounterStatus(t, e, booked.EncounterID))

	patient, err := e.store.Participants().Find(ctx, booked.EncounterID, model.RolePatient)
	require.NoError(t, err)
	assert.Equal(t, model.PresenceOffline, patient.Presence)
}

func TestPatientJoinDoesNotResumePaused(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	booked := e.book(t)
	require.NoError(t, e.presence.Join(ctx, booked.EncounterID, model.RoleProvider, nil))
	require.NoError(t, e.presence.Leave(ctx, booked.EncounterID, model.RoleProvider))
	require.Equal(t, model.EncounterStatusPaused, encounterStatus(t, e, booked.EncounterID))

	require.NoError(t, e.presence.Join(ctx, booked.EncounterID, model.RolePatient, nil))
	assert.Equal(t, model.EncounterStatusPaused, encounterStatus(t, e, booked.EncounterID))
}

func TestPresenceRefusedAfterEnd(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	booked := e.book(t)
	require.NoError(t, e.lifecycle.EndEncounter(ctx, booked.EncounterID, testProviderID))

	err := e.presence.Join(ctx, booked.EncounterID, model.RolePatient, nil)
	requireCode(t, err, apperrors.ErrCodeInvalidTransition)

	err = e.presence.Heartbeat(ctx, booked.EncounterID, model.RolePatient)
	requireCode(t, err, apperrors.ErrCodeInvalidTransition)
}

func TestHeartbeatRefreshesLastSeenOnly(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	booked := e.book(t)
	require.NoError(t, e.presence.Join(ctx, booked.EncounterID, model.RolePatient, nil))
	journaled := len(e.store.JournalTypes(booked.EncounterID))

	joinedAt := e.clock.Now()
	e.clock.Advance(time.Minute)
	require.NoError(t, e.presence.Heartbeat(ctx, booked.EncounterID, model.RolePatient))

	patient, err := e.store.Participants().Find(ctx, booked.EncounterID, model.RolePatient)
	require.NoError(t, err)
	assert.True(t, patient.LastSeen.After(joinedAt))

	// Heartbeats are not journaled and never move the status.
	assert.Len(t, e.store.JournalTypes(booked.EncounterID), journaled)
	assert.Equal(t, model.EncounterStatusActive, encounterStatus(t, e, booked.EncounterID))
}

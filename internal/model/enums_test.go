package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from EncounterStatus
		to   EncounterStatus
		want bool
	}{
		{EncounterStatusScheduled, EncounterStatusActive, true},
		{EncounterStatusScheduled, EncounterStatusEnded, true},
		{EncounterStatusActive, EncounterStatusPaused, true},
		{EncounterStatusPaused, EncounterStatusActive, true},
		{EncounterStatusActive, EncounterStatusEnded, true},
		{EncounterStatusPaused, EncounterStatusEnded, true},

		{EncounterStatusScheduled, EncounterStatusPaused, false},
		{EncounterStatusEnded, EncounterStatusActive, false},
		{EncounterStatusEnded, EncounterStatusScheduled, false},
		{EncounterStatusEnded, EncounterStatusEnded, false},
		{EncounterStatusActive, EncounterStatusScheduled, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestPermissionChecks(t *testing.T) {
	perm := Permission{
		EncounterID: "enc-1",
		CanJoin:     []string{"dr-lee", "patient"},
		CanPublish:  []string{"dr-lee"},
		CanEnd:      []string{"dr-lee"},
	}

	assert.True(t, perm.MayEnd("dr-lee"))
	assert.False(t, perm.MayEnd("patient"))
	assert.True(t, perm.MayJoin("patient"))
	assert.False(t, perm.MayJoin("stranger"))
}

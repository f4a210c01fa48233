package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	apperrors "github.com/telavista/visit-server-go/internal/errors"
	"github.com/telavista/visit-server-go/internal/model"
	"github.com/telavista/visit-server-go/internal/repository"
)

// PresenceService records heartbeat/join/leave signals and drives the
// join-driven half of the encounter state machine: first join activates
// a scheduled encounter, a provider leaving pauses it, a provider
// rejoining resumes it. Token validity plays no part here; presence and
// sessions are independent.
type PresenceService struct {
	db              TxRunner
	encounterRepo   repository.EncounterRepository
	participantRepo repository.ParticipantRepository
	permRepo        repository.PermissionRepository
	journalRepo     repository.JournalRepository
	now             func() time.Time
}

func NewPresenceService(
	db TxRunner,
	encounterRepo repository.EncounterRepository,
	participantRepo repository.ParticipantRepository,
	permRepo repository.PermissionRepository,
	journalRepo repository.JournalRepository,
) *PresenceService {
	return &PresenceService{
		db:              db,
		encounterRepo:   encounterRepo,
		participantRepo: participantRepo,
		permRepo:        permRepo,
		journalRepo:     journalRepo,
		now:             time.Now,
	}
}

// Heartbeat refreshes a participant's lastSeen. It never transitions the
// encounter and is not journaled.
func (s *PresenceService) Heartbeat(ctx context.Context, encounterID string, role model.ParticipantRole) error {
	encounter, err := s.encounterRepo.FindByID(ctx, encounterID)
	if err != nil {
		return apperrors.Database(err)
	}
	if encounter == nil {
		return apperrors.NotFound("Encounter")
	}
	if encounter.IsEnded() {
		return apperrors.InvalidTransition(string(encounter.Status), string(model.EncounterStatusActive))
	}

	if _, err := s.participantRepo.Upsert(ctx, encounterID, role, nil, model.PresenceOnline, s.now()); err != nil {
		return apperrors.Database(err)
	}
	return nil
}

func (s *PresenceService) Join(ctx context.Context, encounterID string, role model.ParticipantRole, displayName *string) error {
	now := s.now()

	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		encounters := s.encounterRepo.WithTx(tx)

		encounter, err := encounters.FindByID(ctx, encounterID)
		if err != nil {
			return apperrors.Database(err)
		}
		if encounter == nil {
			return apperrors.NotFound("Encounter")
		}
		if encounter.IsEnded() {
			return apperrors.InvalidTransition(string(encounter.Status), string(model.EncounterStatusActive))
		}

		if _, err := s.participantRepo.WithTx(tx).Upsert(ctx, encounterID, role, displayName, model.PresenceOnline, now); err != nil {
			return apperrors.Database(err)
		}

		// Conditional transitions: a concurrent sweep or join that moved
		// the status first simply wins; the update is a no-op then.
		switch encounter.Status {
		case model.EncounterStatusScheduled:
			if _, err := encounters.Transition(ctx, encounterID, model.EncounterStatusScheduled, model.EncounterStatusActive, now); err != nil {
				return apperrors.Database(err)
			}
		case model.EncounterStatusPaused:
			if role == model.RoleProvider {
				if _, err := encounters.Transition(ctx, encounterID, model.EncounterStatusPaused, model.EncounterStatusActive, now); err != nil {
					return apperrors.Database(err)
				}
			}
		}

		if role == model.RoleProvider {
			if err := s.permRepo.WithTx(tx).AddPublish(ctx, encounterID, encounter.ProviderID); err != nil {
				return apperrors.Database(err)
			}
		}

		return appendEvent(ctx, s.journalRepo.WithTx(tx), encounterID, model.ParticipantJoinedPayload{
			Role:        role,
			DisplayName: displayName,
		}, now)
	})
	if err != nil {
		return err
	}

	log.Debug().
		Str("encounterId", encounterID).
		Str("role", string(role)).
		Msg("participant joined")
	return nil
}

func (s *PresenceService) Leave(ctx context.Context, encounterID string, role model.ParticipantRole) error {
	now := s.now()

	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		encounters := s.encounterRepo.WithTx(tx)

		encounter, err := encounters.FindByID(ctx, encounterID)
		if err != nil {
			return apperrors.Database(err)
		}
		if encounter == nil {
			return apperrors.NotFound("Encounter")
		}

		if err := s.participantRepo.WithTx(tx).SetPresence(ctx, encounterID, role, model.PresenceOffline, now); err != nil {
			return apperrors.Database(err)
		}

		if role == model.RoleProvider {
			if encounter.Status == model.EncounterStatusActive {
				if _, err := encounters.Transition(ctx, encounterID, model.EncounterStatusActive, model.EncounterStatusPaused, now); err != nil {
					return apperrors.Database(err)
				}
			}
			if err := s.permRepo.WithTx(tx).RemovePublish(ctx, encounterID, encounter.ProviderID); err != nil {
				return apperrors.Database(err)
			}
		}

		return appendEvent(ctx, s.journalRepo.WithTx(tx), encounterID, model.ParticipantLeftPayload{
			Role: role,
		}, now)
	})
	if err != nil {
		return err
	}

	log.Debug().
		Str("encounterId", encounterID).
		Str("role", string(role)).
		Msg("participant left")
	return nil
}

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

const (
	ReasonStalePresence        = "stale_presence"
	ReasonOldScheduledNoWatch  = "old_scheduled_no_presence"
)

// LifecycleService owns explicit encounter termination and the stale
// reconciler. The reconciler converges the status state machine when
// clients vanish without calling leave: it can run on any cadence, and
// a second run with no intervening activity transitions nothing.
type LifecycleService struct {
	db              TxRunner
	encounterRepo   repository.EncounterRepository
	participantRepo repository.ParticipantRepository
	permRepo        repository.PermissionRepository
	sessionRepo     repository.SessionRepository
	roomRepo        repository.RoomRepository
	journalRepo     repository.JournalRepository
	staleWindow     time.Duration
	scheduledGrace  time.Duration
	now             func() time.Time
}

func NewLifecycleService(
	db TxRunner,
	encounterRepo repository.EncounterRepository,
	participantRepo repository.ParticipantRepository,
	permRepo repository.PermissionRepository,
	sessionRepo repository.SessionRepository,
	roomRepo repository.RoomRepository,
	journalRepo repository.JournalRepository,
	staleWindow time.Duration,
	scheduledGrace time.Duration,
) *LifecycleService {
	return &LifecycleService{
		db:              db,
		encounterRepo:   encounterRepo,
		participantRepo: participantRepo,
		permRepo:        permRepo,
		sessionRepo:     sessionRepo,
		roomRepo:        roomRepo,
		journalRepo:     journalRepo,
		staleWindow:     staleWindow,
		scheduledGrace:  scheduledGrace,
		now:             time.Now,
	}
}

// EndEncounter terminates the encounter on behalf of an actor named in
// its canEnd list. Ending an already ended encounter is a no-op.
func (s *LifecycleService) EndEncounter(ctx context.Context, encounterID, actorID string) error {
	return s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		encounters := s.encounterRepo.WithTx(tx)

		encounter, err := encounters.FindByID(ctx, encounterID)
		if err != nil {
			return apperrors.Database(err)
		}
		if encounter == nil {
			return apperrors.NotFound("Encounter")
		}

		perm, err := s.permRepo.WithTx(tx).FindByEncounterID(ctx, encounterID)
		if err != nil {
			return apperrors.Database(err)
		}
		if perm == nil || !perm.MayEnd(actorID) {
			return apperrors.Unauthorized("Actor may not end this encounter")
		}

		if encounter.IsEnded() {
			return nil
		}

		now := s.now()
		if err := s.endInTx(ctx, tx, encounter, model.EncounterEndedPayload{EndedBy: actorID}, now); err != nil {
			return err
		}

		log.Info().
			Str("encounterId", encounterID).
			Str("endedBy", actorID).
			Msg("encounter ended")
		return nil
	})
}

// DeleteEncounter removes the encounter and everything keyed by it. A
// live call is never silently ended and deleted in one step; callers
// must end it first.
func (s *LifecycleService) DeleteEncounter(ctx context.Context, encounterID, actorID string) error {
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		encounters := s.encounterRepo.WithTx(tx)

		encounter, err := encounters.FindByID(ctx, encounterID)
		if err != nil {
			return apperrors.Database(err)
		}
		if encounter == nil {
			return apperrors.NotFound("Encounter")
		}

		perm, err := s.permRepo.WithTx(tx).FindByEncounterID(ctx, encounterID)
		if err != nil {
			return apperrors.Database(err)
		}
		if perm == nil || !perm.MayEnd(actorID) {
			return apperrors.Unauthorized("Actor may not delete this encounter")
		}

		if encounter.Status == model.EncounterStatusActive {
			return apperrors.CannotDeleteActive()
		}

		if err := encounters.Delete(ctx, encounterID); err != nil {
			return apperrors.Database(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("encounterId", encounterID).
		Str("deletedBy", actorID).
		Msg("encounter deleted")
	return nil
}

// TidyStale applies the two staleness rules and returns how many
// encounters it ended. Each candidate is re-validated inside its own
// transaction, so a join racing the sweep wins via the conditional
// status update.
func (s *LifecycleService) TidyStale(ctx context.Context, now time.Time) (int, error) {
	seenCutoff := now.Add(-s.staleWindow)
	createdBefore := now.Add(-s.scheduledGrace)

	staleActive, err := s.encounterRepo.FindStaleActive(ctx, seenCutoff)
	if err != nil {
		return 0, apperrors.Database(err)
	}
	abandoned, err := s.encounterRepo.FindAbandonedScheduled(ctx, createdBefore, seenCutoff)
	if err != nil {
		return 0, apperrors.Database(err)
	}

	tidied := 0
	for _, enc := range staleActive {
		ended, err := s.forceEnd(ctx, enc.ID, model.EncounterStatusActive, seenCutoff, ReasonStalePresence, now)
		if err != nil {
			return tidied, err
		}
		if ended {
			tidied++
		}
	}
	for _, enc := range abandoned {
		ended, err := s.forceEnd(ctx, enc.ID, model.EncounterStatusScheduled, seenCutoff, ReasonOldScheduledNoWatch, now)
		if err != nil {
			return tidied, err
		}
		if ended {
			tidied++
		}
	}

	if tidied > 0 {
		log.Info().Int("count", tidied).Msg("stale encounters reconciled")
	}
	return tidied, nil
}

// forceEnd re-checks staleness and status inside a transaction before
// transitioning, so the candidate list read outside is only a hint.
func (s *LifecycleService) forceEnd(
	ctx context.Context,
	encounterID string,
	from model.EncounterStatus,
	seenCutoff time.Time,
	reason string,
	now time.Time,
) (bool, error) {
	ended := false
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		encounters := s.encounterRepo.WithTx(tx)

		encounter, err := encounters.FindByID(ctx, encounterID)
		if err != nil {
			return apperrors.Database(err)
		}
		if encounter == nil || encounter.Status != from {
			return nil
		}

		participants, err := s.participantRepo.WithTx(tx).FindByEncounter(ctx, encounterID)
		if err != nil {
			return apperrors.Database(err)
		}
		for _, p := range participants {
			if p.Role == model.RoleStaff && from == model.EncounterStatusActive {
				continue
			}
			if p.LastSeen.After(seenCutoff) {
				return nil
			}
		}

		transitioned, err := encounters.Transition(ctx, encounterID, from, model.EncounterStatusEnded, now)
		if err != nil {
			return apperrors.Database(err)
		}
		if !transitioned {
			return nil
		}

		if err := s.retireInTx(ctx, tx, encounterID, now); err != nil {
			return err
		}
		if err := appendEvent(ctx, s.journalRepo.WithTx(tx), encounterID, model.EncounterAutoEndedPayload{
			Reason: reason,
		}, now); err != nil {
			return err
		}

		ended = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if ended {
		log.Info().
			Str("encounterId", encounterID).
			Str("reason", reason).
			Msg("encounter auto-ended")
	}
	return ended, nil
}

// endInTx performs the shared termination writes for an explicit end.
func (s *LifecycleService) endInTx(ctx context.Context, tx *sqlx.Tx, encounter *model.Encounter, payload model.EventPayload, now time.Time) error {
	transitioned, err := s.encounterRepo.WithTx(tx).Transition(ctx, encounter.ID, encounter.Status, model.EncounterStatusEnded, now)
	if err != nil {
		return apperrors.Database(err)
	}
	if !transitioned {
		return apperrors.New(apperrors.ErrCodeConflict, "Encounter status changed concurrently")
	}
	if err := s.retireInTx(ctx, tx, encounter.ID, now); err != nil {
		return err
	}
	return appendEvent(ctx, s.journalRepo.WithTx(tx), encounter.ID, payload, now)
}

// retireInTx deactivates the room and every session once an encounter
// reaches its terminal state.
func (s *LifecycleService) retireInTx(ctx context.Context, tx *sqlx.Tx, encounterID string, now time.Time) error {
	if err := s.roomRepo.WithTx(tx).Deactivate(ctx, encounterID); err != nil {
		return apperrors.Database(err)
	}
	if _, err := s.sessionRepo.WithTx(tx).DeactivateAll(ctx, encounterID, now); err != nil {
		return apperrors.Database(err)
	}
	return nil
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	apperrors "github.com/telavista/visit-server-go/internal/errors"
	"github.com/telavista/visit-server-go/internal/model"
	"github.com/telavista/visit-server-go/internal/repository"
	"github.com/telavista/visit-server-go/internal/token"
)

type RedeemResult struct {
	EncounterID   string    `json:"encounterId"`
	ParticipantID string    `json:"participantId"`
	LivekitRoom   string    `json:"livekitRoom"`
	RRT           string    `json:"rrt"`
	RRTExpiresAt  time.Time `json:"rrtExpiresAt"`
}

// RedeemService consumes one-time invites. The whole check-then-write
// sequence runs inside one transaction: under concurrent redemption of
// the same OIT exactly one caller wins the conditional update and every
// other caller gets AlreadyRedeemed.
type RedeemService struct {
	db              TxRunner
	inviteRepo      repository.InviteRepository
	encounterRepo   repository.EncounterRepository
	roomRepo        repository.RoomRepository
	sessionRepo     repository.SessionRepository
	participantRepo repository.ParticipantRepository
	journalRepo     repository.JournalRepository
	rrtTTL          time.Duration
	now             func() time.Time
}

func NewRedeemService(
	db TxRunner,
	inviteRepo repository.InviteRepository,
	encounterRepo repository.EncounterRepository,
	roomRepo repository.RoomRepository,
	sessionRepo repository.SessionRepository,
	participantRepo repository.ParticipantRepository,
	journalRepo repository.JournalRepository,
	rrtTTL time.Duration,
) *RedeemService {
	return &RedeemService{
		db:              db,
		inviteRepo:      inviteRepo,
		encounterRepo:   encounterRepo,
		roomRepo:        roomRepo,
		sessionRepo:     sessionRepo,
		participantRepo: participantRepo,
		journalRepo:     journalRepo,
		rrtTTL:          rrtTTL,
		now:             time.Now,
	}
}

func (s *RedeemService) RedeemInvite(
	ctx context.Context,
	providerRoom string,
	oit string,
	deviceNonce string,
	displayName *string,
) (*RedeemResult, error) {
	if !token.ValidFormat(token.KindInvite, oit) {
		return nil, apperrors.InvalidToken()
	}
	if deviceNonce == "" {
		return nil, apperrors.MissingRequired("deviceNonce")
	}

	rrt, err := token.NewReconnectToken()
	if err != nil {
		return nil, fmt.Errorf("generate reconnect token: %w", err)
	}

	participantID := uuid.NewString()
	now := s.now()
	expiresAt := now.Add(s.rrtTTL)

	var result *RedeemResult
	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		invites := s.inviteRepo.WithTx(tx)

		invite, err := invites.FindByOIT(ctx, oit)
		if err != nil {
			return apperrors.Database(err)
		}
		if invite == nil {
			return apperrors.NotFound("Invite")
		}

		encounter, err := s.encounterRepo.WithTx(tx).FindByID(ctx, invite.EncounterID)
		if err != nil {
			return apperrors.Database(err)
		}
		if encounter == nil {
			return apperrors.NotFound("Encounter")
		}
		if encounter.ProviderRoom != providerRoom {
			return apperrors.RoomMismatch()
		}

		// The conditional update is the authoritative redeemed check:
		// re-reading redeemedAt above would leave a check/use gap.
		redeemed, err := invites.Redeem(ctx, oit, now)
		if err != nil {
			return apperrors.Database(err)
		}
		if !redeemed {
			return apperrors.AlreadyRedeemed()
		}

		room, err := s.roomRepo.WithTx(tx).FindByEncounterID(ctx, encounter.ID)
		if err != nil {
			return apperrors.Database(err)
		}
		if room == nil {
			return apperrors.NotFound("Room")
		}

		if _, err := s.participantRepo.WithTx(tx).Upsert(
			ctx, encounter.ID, model.RolePatient, displayName, model.PresenceOnline, now,
		); err != nil {
			return apperrors.Database(err)
		}

		sessions := s.sessionRepo.WithTx(tx)
		if _, err := sessions.DeactivateByRole(ctx, encounter.ID, model.RolePatient, now); err != nil {
			return apperrors.Database(err)
		}
		if _, err := sessions.Create(ctx, model.CreateSessionParams{
			ID:            uuid.NewString(),
			EncounterID:   encounter.ID,
			ParticipantID: participantID,
			Role:          model.RolePatient,
			DeviceNonce:   deviceNonce,
			RRTHash:       token.Hash(rrt),
			RRTExpiresAt:  expiresAt,
		}); err != nil {
			return apperrors.Database(err)
		}

		journal := s.journalRepo.WithTx(tx)
		if err := appendEvent(ctx, journal, encounter.ID, model.InviteRedeemedPayload{
			InviteID:      invite.ID,
			ParticipantID: participantID,
			DeviceNonce:   deviceNonce,
		}, now); err != nil {
			return err
		}
		if err := appendEvent(ctx, journal, encounter.ID, model.CheckinOpenedPayload{
			ParticipantID: participantID,
		}, now); err != nil {
			return err
		}

		result = &RedeemResult{
			EncounterID:   encounter.ID,
			ParticipantID: participantID,
			LivekitRoom:   room.Name,
			RRT:           rrt,
			RRTExpiresAt:  expiresAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("encounterId", result.EncounterID).
		Str("participantId", result.ParticipantID).
		Msg("invite redeemed")

	return result, nil
}

func appendEvent(ctx context.Context, journal repository.JournalRepository, encounterID string, payload model.EventPayload, at time.Time) error {
	event, err := model.NewJournalEvent(&encounterID, payload, at)
	if err != nil {
		return fmt.Errorf("build journal event: %w", err)
	}
	if _, err := journal.Append(ctx, event); err != nil {
		return apperrors.Database(err)
	}
	return nil
}

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

type IssueHandoffResult struct {
	HOT        string    `json:"hot"`
	HandoffURL string    `json:"handoffUrl"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

type RedeemHandoffResult struct {
	RequiresApproval bool       `json:"requiresApproval"`
	ParticipantID    string     `json:"participantId,omitempty"`
	RRT              string     `json:"rrt,omitempty"`
	RRTExpiresAt     *time.Time `json:"rrtExpiresAt,omitempty"`
}

// HandoffService moves an in-progress encounter to another device.
// Handoff tokens are stored, single-use and short-lived; a successful
// redemption retires every previously active session for the encounter.
type HandoffService struct {
	db          TxRunner
	encounterRepo repository.EncounterRepository
	handoffRepo repository.HandoffRepository
	sessionRepo repository.SessionRepository
	journalRepo repository.JournalRepository
	baseURL     string
	hotTTL      time.Duration
	rrtTTL      time.Duration
	now         func() time.Time
}

func NewHandoffService(
	db TxRunner,
	encounterRepo repository.EncounterRepository,
	handoffRepo repository.HandoffRepository,
	sessionRepo repository.SessionRepository,
	journalRepo repository.JournalRepository,
	baseURL string,
	hotTTL time.Duration,
	rrtTTL time.Duration,
) *HandoffService {
	return &HandoffService{
		db:            db,
		encounterRepo: encounterRepo,
		handoffRepo:   handoffRepo,
		sessionRepo:   sessionRepo,
		journalRepo:   journalRepo,
		baseURL:       baseURL,
		hotTTL:        hotTTL,
		rrtTTL:        rrtTTL,
		now:           time.Now,
	}
}

func (s *HandoffService) IssueHandoff(ctx context.Context, providerID, encounterID string) (*IssueHandoffResult, error) {
	encounter, err := s.encounterRepo.FindByID(ctx, encounterID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if encounter == nil {
		return nil, apperrors.NotFound("Encounter")
	}
	if encounter.ProviderID != providerID {
		return nil, apperrors.Unauthorized("Encounter belongs to another provider")
	}
	if encounter.IsEnded() {
		return nil, apperrors.InvalidTransition(string(encounter.Status), "handoff")
	}

	hot, err := token.NewHandoffToken()
	if err != nil {
		return nil, fmt.Errorf("generate handoff token: %w", err)
	}

	now := s.now()
	expiresAt := now.Add(s.hotTTL)

	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		ht, err := s.handoffRepo.WithTx(tx).Create(ctx, model.CreateHandoffTokenParams{
			ID:          uuid.NewString(),
			EncounterID: encounterID,
			HOT:         hot,
			ExpiresAt:   expiresAt,
		})
		if err != nil {
			return apperrors.Database(err)
		}
		return appendEvent(ctx, s.journalRepo.WithTx(tx), encounterID, model.HandoffIssuedPayload{
			HandoffID: ht.ID,
			ExpiresAt: expiresAt,
		}, now)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("encounterId", encounterID).
		Str("hot", token.Mask(hot)).
		Time("expiresAt", expiresAt).
		Msg("handoff token issued")

	return &IssueHandoffResult{
		HOT:        hot,
		HandoffURL: fmt.Sprintf("%s/handoff/%s/%s", s.baseURL, encounterID, hot),
		ExpiresAt:  expiresAt,
	}, nil
}

// RedeemHandoff either stages an approval request (requireApproval=true:
// only a journal row, no session yet) or atomically retires every active
// session for the encounter and mints the replacement. The approval
// follow-up is an external workflow that re-invokes this with
// requireApproval=false.
func (s *HandoffService) RedeemHandoff(
	ctx context.Context,
	encounterID string,
	hot string,
	deviceNonce string,
	requireApproval bool,
) (*RedeemHandoffResult, error) {
	if !token.ValidFormat(token.KindHandoff, hot) {
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
	rrtExpiresAt := now.Add(s.rrtTTL)

	var result *RedeemHandoffResult
	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		handoffs := s.handoffRepo.WithTx(tx)

		ht, err := handoffs.FindByHOT(ctx, hot)
		if err != nil {
			return apperrors.Database(err)
		}
		if ht == nil || ht.EncounterID != encounterID {
			return apperrors.NotFound("Handoff token")
		}

		if requireApproval {
			if ht.UsedAt != nil {
				return apperrors.AlreadyRedeemed()
			}
			if ht.IsExpired(now) {
				return apperrors.Expired()
			}
			if err := appendEvent(ctx, s.journalRepo.WithTx(tx), encounterID, model.SecondDeviceAttemptPayload{
				DeviceNonce: deviceNonce,
			}, now); err != nil {
				return err
			}
			result = &RedeemHandoffResult{RequiresApproval: true}
			return nil
		}

		consumed, err := handoffs.Consume(ctx, hot, now)
		if err != nil {
			return apperrors.Database(err)
		}
		if !consumed {
			if ht.UsedAt != nil {
				return apperrors.AlreadyRedeemed()
			}
			return apperrors.Expired()
		}

		sessions := s.sessionRepo.WithTx(tx)
		retired, err := sessions.DeactivateAll(ctx, encounterID, now)
		if err != nil {
			return apperrors.Database(err)
		}
		if _, err := sessions.Create(ctx, model.CreateSessionParams{
			ID:            uuid.NewString(),
			EncounterID:   encounterID,
			ParticipantID: participantID,
			Role:          model.RolePatient,
			DeviceNonce:   deviceNonce,
			RRTHash:       token.Hash(rrt),
			RRTExpiresAt:  rrtExpiresAt,
		}); err != nil {
			return apperrors.Database(err)
		}

		if err := appendEvent(ctx, s.journalRepo.WithTx(tx), encounterID, model.HandoffRedeemedPayload{
			HandoffID:     ht.ID,
			ParticipantID: participantID,
			DeviceNonce:   deviceNonce,
			Retired:       int(retired),
		}, now); err != nil {
			return err
		}

		result = &RedeemHandoffResult{
			RequiresApproval: false,
			ParticipantID:    participantID,
			RRT:              rrt,
			RRTExpiresAt:     &rrtExpiresAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.RequiresApproval {
		log.Info().
			Str("encounterId", encounterID).
			Msg("handoff pending provider approval")
	} else {
		log.Info().
			Str("encounterId", encounterID).
			Str("participantId", result.ParticipantID).
			Msg("handoff redeemed")
	}

	return result, nil
}

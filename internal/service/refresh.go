package service

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	apperrors "github.com/telavista/visit-server-go/internal/errors"
	"github.com/telavista/visit-server-go/internal/model"
	"github.com/telavista/visit-server-go/internal/repository"
	"github.com/telavista/visit-server-go/internal/token"
)

type RefreshResult struct {
	LivekitRoom   string    `json:"livekitRoom"`
	ParticipantID string    `json:"participantId"`
	RRTExpiresAt  time.Time `json:"rrtExpiresAt"`
}

// RefreshService is the only path that extends a session's life. The
// expiry is sliding: each successful refresh rolls rrtExpiresAt forward
// by the full window from the call time. There is no background sweep
// for sessions; absence of refresh is the expiry mechanism.
type RefreshService struct {
	db          TxRunner
	sessionRepo repository.SessionRepository
	roomRepo    repository.RoomRepository
	journalRepo repository.JournalRepository
	rrtTTL      time.Duration
	now         func() time.Time
}

func NewRefreshService(
	db TxRunner,
	sessionRepo repository.SessionRepository,
	roomRepo repository.RoomRepository,
	journalRepo repository.JournalRepository,
	rrtTTL time.Duration,
) *RefreshService {
	return &RefreshService{
		db:          db,
		sessionRepo: sessionRepo,
		roomRepo:    roomRepo,
		journalRepo: journalRepo,
		rrtTTL:      rrtTTL,
		now:         time.Now,
	}
}

func (s *RefreshService) Refresh(ctx context.Context, encounterID, deviceNonce, rrt string) (*RefreshResult, error) {
	if !token.ValidFormat(token.KindReconnect, rrt) {
		return nil, apperrors.InvalidToken()
	}

	now := s.now()
	expiresAt := now.Add(s.rrtTTL)

	// Refusals still write state (session deactivation, journal rows)
	// that must commit, so the transaction function returns nil for them
	// and the refusal is carried out-of-band.
	var refusal *apperrors.AppError
	var result *RefreshResult
	err := s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		sessions := s.sessionRepo.WithTx(tx)
		journal := s.journalRepo.WithTx(tx)

		session, err := sessions.FindActiveByDevice(ctx, encounterID, deviceNonce)
		if err != nil {
			return apperrors.Database(err)
		}
		if session == nil {
			refusal = apperrors.NoActiveSession()
			return nil
		}

		if !token.ConstantTimeEqual(token.Hash(rrt), session.RRTHash) {
			refusal = apperrors.InvalidToken()
			return appendEvent(ctx, journal, encounterID, model.ReconnectFailedPayload{
				Reason: "bad_token",
			}, now)
		}

		if now.After(session.RRTExpiresAt) {
			if err := sessions.Deactivate(ctx, session.ID, now); err != nil {
				return apperrors.Database(err)
			}
			refusal = apperrors.Expired()
			return appendEvent(ctx, journal, encounterID, model.ReconnectFailedPayload{
				Reason: "expired",
			}, now)
		}

		if err := sessions.ExtendRRT(ctx, session.ID, expiresAt, now); err != nil {
			return apperrors.Database(err)
		}

		room, err := s.roomRepo.WithTx(tx).FindByEncounterID(ctx, encounterID)
		if err != nil {
			return apperrors.Database(err)
		}
		if room == nil {
			return apperrors.NotFound("Room")
		}

		if err := appendEvent(ctx, journal, encounterID, model.ReconnectSuccessPayload{
			ParticipantID: session.ParticipantID,
			ExpiresAt:     expiresAt,
		}, now); err != nil {
			return err
		}

		result = &RefreshResult{
			LivekitRoom:   room.Name,
			ParticipantID: session.ParticipantID,
			RRTExpiresAt:  expiresAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if refusal != nil {
		log.Warn().
			Str("encounterId", encounterID).
			Str("code", string(refusal.Code)).
			Msg("reconnect refused")
		return nil, refusal
	}

	return result, nil
}

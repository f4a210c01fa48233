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

type CreateInviteResult struct {
	EncounterID string `json:"encounterId"`
	OIT         string `json:"oit"`
	InviteURL   string `json:"inviteUrl"`
}

type InvitePeekResult struct {
	PatientHint *string    `json:"patientHint,omitempty"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
}

type InviteService struct {
	db            TxRunner
	encounterRepo repository.EncounterRepository
	roomRepo      repository.RoomRepository
	permRepo      repository.PermissionRepository
	inviteRepo    repository.InviteRepository
	journalRepo   repository.JournalRepository
	baseURL       string
	now           func() time.Time
}

func NewInviteService(
	db TxRunner,
	encounterRepo repository.EncounterRepository,
	roomRepo repository.RoomRepository,
	permRepo repository.PermissionRepository,
	inviteRepo repository.InviteRepository,
	journalRepo repository.JournalRepository,
	baseURL string,
) *InviteService {
	return &InviteService{
		db:            db,
		encounterRepo: encounterRepo,
		roomRepo:      roomRepo,
		permRepo:      permRepo,
		inviteRepo:    inviteRepo,
		journalRepo:   journalRepo,
		baseURL:       baseURL,
		now:           time.Now,
	}
}

// CreateInvite books a new encounter and mints its one-time invite:
// encounter, room, permission set, invite and journal row are inserted
// in a single transaction. Calling it twice creates two independent
// encounters.
func (s *InviteService) CreateInvite(
	ctx context.Context,
	providerID string,
	providerRoom string,
	scheduledAt *time.Time,
	patientHint *string,
) (*CreateInviteResult, error) {
	oit, err := token.NewInviteToken()
	if err != nil {
		return nil, fmt.Errorf("generate invite token: %w", err)
	}

	encounterID := uuid.NewString()
	roomName := "visit-" + uuid.NewString()
	now := s.now()

	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.encounterRepo.WithTx(tx).Create(ctx, model.CreateEncounterParams{
			ID:           encounterID,
			ProviderID:   providerID,
			ProviderRoom: providerRoom,
			PatientHint:  patientHint,
			ScheduledAt:  scheduledAt,
		}); err != nil {
			return fmt.Errorf("create encounter: %w", err)
		}

		if _, err := s.roomRepo.WithTx(tx).Create(ctx, encounterID, roomName); err != nil {
			return fmt.Errorf("create room: %w", err)
		}

		if _, err := s.permRepo.WithTx(tx).Create(ctx, model.Permission{
			EncounterID: encounterID,
			CanJoin:     []string{providerID, string(model.RolePatient)},
			CanPublish:  []string{providerID},
			CanEnd:      []string{providerID},
		}); err != nil {
			return fmt.Errorf("create permission: %w", err)
		}

		invite, err := s.inviteRepo.WithTx(tx).Create(ctx, model.CreateInviteParams{
			ID:          uuid.NewString(),
			EncounterID: encounterID,
			Channel:     model.ChannelLink,
			OIT:         oit,
		})
		if err != nil {
			return fmt.Errorf("create invite: %w", err)
		}

		event, err := model.NewJournalEvent(&encounterID, model.InviteCreatedPayload{
			InviteID: invite.ID,
			Channel:  invite.Channel,
		}, now)
		if err != nil {
			return fmt.Errorf("build journal event: %w", err)
		}
		if _, err := s.journalRepo.WithTx(tx).Append(ctx, event); err != nil {
			return fmt.Errorf("append journal event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("encounterId", encounterID).
		Str("providerId", providerID).
		Str("oit", token.Mask(oit)).
		Msg("invite created")

	return &CreateInviteResult{
		EncounterID: encounterID,
		OIT:         oit,
		InviteURL:   fmt.Sprintf("%s/%s/%s", s.baseURL, providerRoom, oit),
	}, nil
}

// PeekInvite returns the redacted pre-redemption details shown on the
// check-in page. Any failure surfaces as NotFound so the endpoint leaks
// nothing about token state.
func (s *InviteService) PeekInvite(ctx context.Context, providerRoom, oit string) (*InvitePeekResult, error) {
	if !token.ValidFormat(token.KindInvite, oit) {
		return nil, apperrors.NotFound("Invite")
	}

	invite, err := s.inviteRepo.FindByOIT(ctx, oit)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if invite == nil || invite.IsRedeemed() {
		return nil, apperrors.NotFound("Invite")
	}

	encounter, err := s.encounterRepo.FindByID(ctx, invite.EncounterID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if encounter == nil || encounter.ProviderRoom != providerRoom || encounter.IsEnded() {
		return nil, apperrors.NotFound("Invite")
	}

	return &InvitePeekResult{
		PatientHint: encounter.PatientHint,
		ScheduledAt: encounter.ScheduledAt,
	}, nil
}

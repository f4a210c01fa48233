package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/telavista/visit-server-go/internal/audit"
	apperrors "github.com/telavista/visit-server-go/internal/errors"
	"github.com/telavista/visit-server-go/internal/httputil"
	"github.com/telavista/visit-server-go/internal/middleware"
	"github.com/telavista/visit-server-go/internal/model"
	"github.com/telavista/visit-server-go/internal/repository"
	"github.com/telavista/visit-server-go/internal/service"
)

// EncounterHandler serves the authenticated provider surface. Unlike the
// check-in surface, errors are returned verbatim; providers are trusted
// with the specific failure.
type EncounterHandler struct {
	inviteService    *service.InviteService
	handoffService   *service.HandoffService
	lifecycleService *service.LifecycleService
	journalRepo      repository.JournalRepository
}

func NewEncounterHandler(
	inviteService *service.InviteService,
	handoffService *service.HandoffService,
	lifecycleService *service.LifecycleService,
	journalRepo repository.JournalRepository,
) *EncounterHandler {
	return &EncounterHandler{
		inviteService:    inviteService,
		handoffService:   handoffService,
		lifecycleService: lifecycleService,
		journalRepo:      journalRepo,
	}
}

func (h *EncounterHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/invites", h.CreateInvite)
	r.Post("/encounters/{encounterID}/handoff", h.IssueHandoff)
	r.Post("/encounters/{encounterID}/end", h.EndEncounter)
	r.Delete("/encounters/{encounterID}", h.DeleteEncounter)
	r.Get("/encounters/{encounterID}/journal", h.ListJournal)
	r.Post("/tidy", h.TidyStale)

	return r
}

type createInviteRequest struct {
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
	PatientHint *string    `json:"patientHint,omitempty"`
}

// POST /api/invites
func (h *EncounterHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	provider := middleware.GetProvider(r.Context())

	var req createInviteRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteError(w, apperrors.ValidationError("invalid body"))
			return
		}
	}

	result, err := h.inviteService.CreateInvite(r.Context(), provider.ID, provider.Room, req.ScheduledAt, req.PatientHint)
	if err != nil {
		log.Error().Err(err).Msg("failed to create invite")
		httputil.WriteError(w, err)
		return
	}

	audit.Record(audit.Entry{
		Type:        model.EventInviteCreated,
		EncounterID: result.EncounterID,
		ActorID:     provider.ID,
	})

	writeJSON(w, http.StatusCreated, result)
}

// POST /api/encounters/{encounterID}/handoff
func (h *EncounterHandler) IssueHandoff(w http.ResponseWriter, r *http.Request) {
	provider := middleware.GetProvider(r.Context())
	encounterID := chi.URLParam(r, "encounterID")

	result, err := h.handoffService.IssueHandoff(r.Context(), provider.ID, encounterID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	audit.Record(audit.Entry{
		Type:        model.EventHandoffIssued,
		EncounterID: encounterID,
		ActorID:     provider.ID,
	})

	writeJSON(w, http.StatusCreated, result)
}

// POST /api/encounters/{encounterID}/end
func (h *EncounterHandler) EndEncounter(w http.ResponseWriter, r *http.Request) {
	provider := middleware.GetProvider(r.Context())
	encounterID := chi.URLParam(r, "encounterID")

	if err := h.lifecycleService.EndEncounter(r.Context(), encounterID, provider.ID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	audit.Record(audit.Entry{
		Type:        model.EventEncounterEnded,
		EncounterID: encounterID,
		ActorID:     provider.ID,
	})

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// DELETE /api/encounters/{encounterID}
func (h *EncounterHandler) DeleteEncounter(w http.ResponseWriter, r *http.Request) {
	provider := middleware.GetProvider(r.Context())
	encounterID := chi.URLParam(r, "encounterID")

	if err := h.lifecycleService.DeleteEncounter(r.Context(), encounterID, provider.ID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// GET /api/encounters/{encounterID}/journal
//
// Supports the provider UI, including polling for SECOND_DEVICE_ATTEMPT
// events awaiting handoff approval.
func (h *EncounterHandler) ListJournal(w http.ResponseWriter, r *http.Request) {
	encounterID := chi.URLParam(r, "encounterID")

	events, err := h.journalRepo.ListByEncounter(r.Context(), encounterID, 100)
	if err != nil {
		log.Error().Err(err).Msg("failed to list journal events")
		httputil.WriteError(w, apperrors.Database(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// POST /api/tidy
//
// On-demand run of the stale reconciler; the background job runs the
// same sweep on an interval.
func (h *EncounterHandler) TidyStale(w http.ResponseWriter, r *http.Request) {
	provider := middleware.GetProvider(r.Context())

	count, err := h.lifecycleService.TidyStale(r.Context(), time.Now())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	log.Info().Str("providerId", provider.ID).Int("tidied", count).Msg("manual tidy run")
	writeJSON(w, http.StatusOK, map[string]int{"tidiedCount": count})
}

package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/telavista/visit-server-go/internal/errors"
	"github.com/telavista/visit-server-go/internal/httputil"
	"github.com/telavista/visit-server-go/internal/model"
	"github.com/telavista/visit-server-go/internal/service"
)

// CheckinHandler serves the unauthenticated patient surface. Failures
// are collapsed into one generic message so the endpoints cannot be
// used as an oracle for token existence or redemption state.
type CheckinHandler struct {
	inviteService   *service.InviteService
	redeemService   *service.RedeemService
	handoffService  *service.HandoffService
	refreshService  *service.RefreshService
	presenceService *service.PresenceService
}

func NewCheckinHandler(
	inviteService *service.InviteService,
	redeemService *service.RedeemService,
	handoffService *service.HandoffService,
	refreshService *service.RefreshService,
	presenceService *service.PresenceService,
) *CheckinHandler {
	return &CheckinHandler{
		inviteService:   inviteService,
		redeemService:   redeemService,
		handoffService:  handoffService,
		refreshService:  refreshService,
		presenceService: presenceService,
	}
}

func (h *CheckinHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/{providerRoom}/{oit}", h.PeekInvite)
	r.Post("/{providerRoom}/{oit}", h.RedeemInvite)
	r.Post("/handoff/{encounterID}", h.RedeemHandoff)
	r.Post("/refresh/{encounterID}", h.Refresh)
	r.Post("/presence/{encounterID}", h.Presence)

	return r
}

// GET /checkin/{providerRoom}/{oit}
func (h *CheckinHandler) PeekInvite(w http.ResponseWriter, r *http.Request) {
	providerRoom := chi.URLParam(r, "providerRoom")
	oit := chi.URLParam(r, "oit")

	result, err := h.inviteService.PeekInvite(r.Context(), providerRoom, oit)
	if err != nil {
		httputil.WriteGenericError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type redeemInviteRequest struct {
	DeviceNonce string  `json:"deviceNonce"`
	DisplayName *string `json:"displayName,omitempty"`
}

// POST /checkin/{providerRoom}/{oit}
func (h *CheckinHandler) RedeemInvite(w http.ResponseWriter, r *http.Request) {
	providerRoom := chi.URLParam(r, "providerRoom")
	oit := chi.URLParam(r, "oit")

	var req redeemInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteGenericError(w, apperrors.ValidationError("invalid body"))
		return
	}

	result, err := h.redeemService.RedeemInvite(r.Context(), providerRoom, oit, req.DeviceNonce, req.DisplayName)
	if err != nil {
		log.Warn().Str("code", string(apperrors.GetCode(err))).Msg("check-in refused")
		httputil.WriteGenericError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type redeemHandoffRequest struct {
	HOT             string `json:"hot"`
	DeviceNonce     string `json:"deviceNonce"`
	RequireApproval *bool  `json:"requireApproval,omitempty"`
}

// POST /checkin/handoff/{encounterID}
func (h *CheckinHandler) RedeemHandoff(w http.ResponseWriter, r *http.Request) {
	encounterID := chi.URLParam(r, "encounterID")

	var req redeemHandoffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteGenericError(w, apperrors.ValidationError("invalid body"))
		return
	}

	// Approval is the default; the caller opts out only after the
	// provider has approved the transfer out of band.
	requireApproval := true
	if req.RequireApproval != nil {
		requireApproval = *req.RequireApproval
	}

	result, err := h.handoffService.RedeemHandoff(r.Context(), encounterID, req.HOT, req.DeviceNonce, requireApproval)
	if err != nil {
		log.Warn().Str("code", string(apperrors.GetCode(err))).Msg("handoff refused")
		httputil.WriteGenericError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type refreshRequest struct {
	DeviceNonce string `json:"deviceNonce"`
	RRT         string `json:"rrt"`
}

// POST /checkin/refresh/{encounterID}
func (h *CheckinHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	encounterID := chi.URLParam(r, "encounterID")

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteGenericError(w, apperrors.ValidationError("invalid body"))
		return
	}

	result, err := h.refreshService.Refresh(r.Context(), encounterID, req.DeviceNonce, req.RRT)
	if err != nil {
		httputil.WriteGenericError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type presenceRequest struct {
	Signal      string  `json:"signal"` // heartbeat, join, leave
	Role        string  `json:"role"`
	DisplayName *string `json:"displayName,omitempty"`
}

// POST /checkin/presence/{encounterID}
func (h *CheckinHandler) Presence(w http.ResponseWriter, r *http.Request) {
	encounterID := chi.URLParam(r, "encounterID")

	var req presenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteGenericError(w, apperrors.ValidationError("invalid body"))
		return
	}

	role := model.ParticipantRole(req.Role)
	switch role {
	case model.RoleProvider, model.RolePatient, model.RoleStaff:
	default:
		httputil.WriteGenericError(w, apperrors.ValidationError("unknown role"))
		return
	}

	var err error
	switch req.Signal {
	case "heartbeat":
		err = h.presenceService.Heartbeat(r.Context(), encounterID, role)
	case "join":
		err = h.presenceService.Join(r.Context(), encounterID, role, req.DisplayName)
	case "leave":
		err = h.presenceService.Leave(r.Context(), encounterID, role)
	default:
		httputil.WriteGenericError(w, apperrors.ValidationError("unknown signal"))
		return
	}
	if err != nil {
		httputil.WriteGenericError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

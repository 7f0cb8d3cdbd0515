package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"recrusearch/internal/participant"
	"recrusearch/internal/platform/middleware"
	"recrusearch/internal/transport/http/shared"
	id "recrusearch/pkg/domain"
	dErrors "recrusearch/pkg/domain-errors"
)

// Service defines the participant operations the handler exposes.
type Service interface {
	Register(ctx context.Context, invoker, identity id.Identity, metadataRef id.MetadataRef, credentialRef *id.MetadataRef) (participant.Profile, error)
	Get(ctx context.Context, identity id.Identity) (participant.Profile, error)
}

// Handler handles participant endpoints.
type Handler struct {
	participants Service
	logger       *slog.Logger
}

func New(participants Service, logger *slog.Logger) *Handler {
	return &Handler{participants: participants, logger: logger}
}

// Register mounts the participant routes. Auth is applied by the parent router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/participants", h.handleRegister)
	r.Get("/participants/{identity}", h.handleGet)
}

type registerRequest struct {
	MetadataRef   string  `json:"metadata_ref"`
	CredentialRef *string `json:"credential_ref,omitempty"`
}

type profileResponse struct {
	Identity      string    `json:"identity"`
	MetadataRef   string    `json:"metadata_ref"`
	CredentialRef *string   `json:"credential_ref,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func toResponse(profile participant.Profile) profileResponse {
	resp := profileResponse{
		Identity:    profile.Identity.String(),
		MetadataRef: string(profile.MetadataRef),
		CreatedAt:   profile.CreatedAt,
	}
	if profile.CredentialRef != nil {
		ref := string(*profile.CredentialRef)
		resp.CredentialRef = &ref
	}
	return resp
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	invoker, err := id.ParseIdentity(middleware.GetIdentity(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "identity missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(ctx),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	metadataRef, err := id.ParseMetadataRef(req.MetadataRef)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	credentialRef, err := id.ParseOptionalMetadataRef(req.CredentialRef)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	// Self-registration only: the profile identity is the invoker's.
	profile, err := h.participants.Register(ctx, invoker, invoker, metadataRef, credentialRef)
	if err != nil {
		h.logger.WarnContext(ctx, "register participant rejected",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, toResponse(profile))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	identity, err := id.ParseIdentity(chi.URLParam(r, "identity"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid identity"))
		return
	}

	profile, err := h.participants.Get(r.Context(), identity)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(profile))
}

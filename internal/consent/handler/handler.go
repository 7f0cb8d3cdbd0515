package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"recrusearch/internal/consent"
	"recrusearch/internal/platform/middleware"
	"recrusearch/internal/transport/http/shared"
	id "recrusearch/pkg/domain"
	dErrors "recrusearch/pkg/domain-errors"
)

// Service defines the consent operations the handler exposes.
type Service interface {
	Grant(ctx context.Context, invoker, participant id.Identity, study id.StudyID) (consent.Record, error)
	Revoke(ctx context.Context, invoker, participant id.Identity, study id.StudyID) error
	Get(ctx context.Context, participant id.Identity, study id.StudyID) (consent.Record, error)
	Status(ctx context.Context, participant id.Identity, study id.StudyID) (string, error)
}

// Handler handles consent endpoints.
type Handler struct {
	consent Service
	logger  *slog.Logger
}

func New(consent Service, logger *slog.Logger) *Handler {
	return &Handler{consent: consent, logger: logger}
}

// Register mounts the consent routes. Auth is applied by the parent router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/consents", h.handleGrant)
	r.Post("/consents/revoke", h.handleRevoke)
	r.Get("/consents/{participant}/{study}", h.handleGet)
	r.Get("/consents/{participant}/{study}/status", h.handleStatus)
}

type consentRequest struct {
	Participant string `json:"participant"`
	Study       string `json:"study"`
}

type consentResponse struct {
	Participant string     `json:"participant"`
	Study       string     `json:"study"`
	ProofToken  string     `json:"proof_token"`
	State       string     `json:"state"`
	Claimed     bool       `json:"claimed"`
	GrantedAt   time.Time  `json:"granted_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
}

func toResponse(record consent.Record) consentResponse {
	return consentResponse{
		Participant: record.Participant.String(),
		Study:       record.Study.String(),
		ProofToken:  record.ProofToken.String(),
		State:       string(record.State),
		Claimed:     record.Claimed,
		GrantedAt:   record.GrantedAt,
		RevokedAt:   record.RevokedAt,
	}
}

func (h *Handler) handleGrant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	invoker, participantID, studyID, ok := h.decodeConsentRequest(w, r)
	if !ok {
		return
	}

	record, err := h.consent.Grant(ctx, invoker, participantID, studyID)
	if err != nil {
		h.logger.WarnContext(ctx, "grant consent rejected",
			"request_id", middleware.GetRequestID(ctx),
			"study", studyID.String(),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, toResponse(record))
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	invoker, participantID, studyID, ok := h.decodeConsentRequest(w, r)
	if !ok {
		return
	}

	if err := h.consent.Revoke(ctx, invoker, participantID, studyID); err != nil {
		h.logger.WarnContext(ctx, "revoke consent rejected",
			"request_id", middleware.GetRequestID(ctx),
			"study", studyID.String(),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	participantID, studyID, ok := h.pathPair(w, r)
	if !ok {
		return
	}

	record, err := h.consent.Get(r.Context(), participantID, studyID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(record))
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	participantID, studyID, ok := h.pathPair(w, r)
	if !ok {
		return
	}

	state, err := h.consent.Status(r.Context(), participantID, studyID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"state": state})
}

// decodeConsentRequest parses the body pair plus the authenticated invoker.
func (h *Handler) decodeConsentRequest(w http.ResponseWriter, r *http.Request) (id.Identity, id.Identity, id.StudyID, bool) {
	ctx := r.Context()

	invoker, err := id.ParseIdentity(middleware.GetIdentity(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "identity missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(ctx),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return id.Identity{}, id.Identity{}, id.StudyID{}, false
	}

	var req consentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return id.Identity{}, id.Identity{}, id.StudyID{}, false
	}
	participantID, err := id.ParseIdentity(req.Participant)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid participant identity"))
		return id.Identity{}, id.Identity{}, id.StudyID{}, false
	}
	studyID, err := id.ParseStudyID(req.Study)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid study id"))
		return id.Identity{}, id.Identity{}, id.StudyID{}, false
	}
	return invoker, participantID, studyID, true
}

func (h *Handler) pathPair(w http.ResponseWriter, r *http.Request) (id.Identity, id.StudyID, bool) {
	participantID, err := id.ParseIdentity(chi.URLParam(r, "participant"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid participant identity"))
		return id.Identity{}, id.StudyID{}, false
	}
	studyID, err := id.ParseStudyID(chi.URLParam(r, "study"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid study id"))
		return id.Identity{}, id.StudyID{}, false
	}
	return participantID, studyID, true
}

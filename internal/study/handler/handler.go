package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"recrusearch/internal/platform/middleware"
	"recrusearch/internal/study"
	"recrusearch/internal/transport/http/shared"
	id "recrusearch/pkg/domain"
	dErrors "recrusearch/pkg/domain-errors"
)

// Service defines the study operations the handler exposes.
type Service interface {
	Initialize(ctx context.Context, invoker, owner id.Identity, metadataRef id.MetadataRef, rewardAmount int64) (study.Study, error)
	Close(ctx context.Context, invoker id.Identity, studyID id.StudyID) error
	Get(ctx context.Context, studyID id.StudyID) (study.Study, error)
	VaultBalance(ctx context.Context, studyID id.StudyID) (int64, error)
}

// Handler handles study endpoints.
type Handler struct {
	studies Service
	logger  *slog.Logger
}

func New(studies Service, logger *slog.Logger) *Handler {
	return &Handler{studies: studies, logger: logger}
}

// Register mounts the study routes. Auth is applied by the parent router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/studies", h.handleInitialize)
	r.Post("/studies/{study}/close", h.handleClose)
	r.Get("/studies/{study}", h.handleGet)
	r.Get("/studies/{study}/vault", h.handleVaultBalance)
}

type initializeRequest struct {
	MetadataRef  string `json:"metadata_ref"`
	RewardAmount int64  `json:"reward_amount"`
}

type studyResponse struct {
	ID           string    `json:"id"`
	Researcher   string    `json:"researcher"`
	MetadataRef  string    `json:"metadata_ref"`
	RewardAmount int64     `json:"reward_amount"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

func toResponse(record study.Study) studyResponse {
	return studyResponse{
		ID:           record.ID.String(),
		Researcher:   record.Researcher.String(),
		MetadataRef:  string(record.MetadataRef),
		RewardAmount: record.RewardAmount,
		Status:       string(record.Status),
		CreatedAt:    record.CreatedAt,
	}
}

func (h *Handler) handleInitialize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	invoker, ok := h.invoker(w, r)
	if !ok {
		return
	}

	var req initializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	metadataRef, err := id.ParseMetadataRef(req.MetadataRef)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	// The authenticated researcher owns the study it creates.
	record, err := h.studies.Initialize(ctx, invoker, invoker, metadataRef, req.RewardAmount)
	if err != nil {
		h.logger.WarnContext(ctx, "initialize study rejected",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, toResponse(record))
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	invoker, ok := h.invoker(w, r)
	if !ok {
		return
	}
	studyID, err := id.ParseStudyID(chi.URLParam(r, "study"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid study id"))
		return
	}

	if err := h.studies.Close(ctx, invoker, studyID); err != nil {
		h.logger.WarnContext(ctx, "close study rejected",
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
	studyID, err := id.ParseStudyID(chi.URLParam(r, "study"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid study id"))
		return
	}

	record, err := h.studies.Get(r.Context(), studyID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(record))
}

func (h *Handler) handleVaultBalance(w http.ResponseWriter, r *http.Request) {
	studyID, err := id.ParseStudyID(chi.URLParam(r, "study"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid study id"))
		return
	}

	balance, err := h.studies.VaultBalance(r.Context(), studyID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

func (h *Handler) invoker(w http.ResponseWriter, r *http.Request) (id.Identity, bool) {
	invoker, err := id.ParseIdentity(middleware.GetIdentity(r.Context()))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "identity missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(r.Context()),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return id.Identity{}, false
	}
	return invoker, true
}

package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"recrusearch/internal/platform/middleware"
	"recrusearch/internal/transport/http/shared"
	id "recrusearch/pkg/domain"
	dErrors "recrusearch/pkg/domain-errors"
)

// Service defines the reward operations the handler exposes.
type Service interface {
	Claim(ctx context.Context, invoker, participant id.Identity, study id.StudyID) (int64, error)
}

// Handler handles reward endpoints.
type Handler struct {
	rewards Service
	logger  *slog.Logger
}

func New(rewards Service, logger *slog.Logger) *Handler {
	return &Handler{rewards: rewards, logger: logger}
}

// Register mounts the reward routes. Auth is applied by the parent router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/rewards/claim", h.handleClaim)
}

type claimRequest struct {
	Participant string `json:"participant"`
	Study       string `json:"study"`
}

type claimResponse struct {
	Participant string `json:"participant"`
	Study       string `json:"study"`
	Amount      int64  `json:"amount"`
}

func (h *Handler) handleClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	invoker, err := id.ParseIdentity(middleware.GetIdentity(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "identity missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(ctx),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	participantID, err := id.ParseIdentity(req.Participant)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid participant identity"))
		return
	}
	studyID, err := id.ParseStudyID(req.Study)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid study id"))
		return
	}

	amount, err := h.rewards.Claim(ctx, invoker, participantID, studyID)
	if err != nil {
		h.logger.WarnContext(ctx, "reward claim rejected",
			"request_id", middleware.GetRequestID(ctx),
			"study", studyID.String(),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, claimResponse{
		Participant: participantID.String(),
		Study:       studyID.String(),
		Amount:      amount,
	})
}

package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"recrusearch/internal/funds"
	"recrusearch/internal/platform/middleware"
	"recrusearch/internal/transport/http/shared"
	id "recrusearch/pkg/domain"
	dErrors "recrusearch/pkg/domain-errors"
)

// Store is the balance surface the handler exposes.
type Store interface {
	Balance(ctx context.Context, account funds.AccountID) (int64, error)
	Deposit(ctx context.Context, account funds.AccountID, amount int64) error
}

// Handler handles custody-account endpoints.
type Handler struct {
	funds  Store
	logger *slog.Logger
}

func New(fundsStore Store, logger *slog.Logger) *Handler {
	return &Handler{funds: fundsStore, logger: logger}
}

// Register mounts the balance route. Auth is applied by the parent router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/accounts/{identity}/balance", h.handleBalance)
}

// RegisterAdmin mounts the deposit route behind the admin key.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/accounts/deposit", h.handleDeposit)
}

type depositRequest struct {
	Identity string `json:"identity"`
	Amount   int64  `json:"amount"`
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	identity, err := id.ParseIdentity(chi.URLParam(r, "identity"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid identity"))
		return
	}

	balance, err := h.funds.Balance(r.Context(), funds.CustodyAccount(identity))
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "read balance"))
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

// handleDeposit funds an actor's custody account. Operator-only; the public
// API has no mint primitive.
func (h *Handler) handleDeposit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	identity, err := id.ParseIdentity(req.Identity)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid identity"))
		return
	}
	if req.Amount <= 0 {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "deposit amount must be positive"))
		return
	}

	if err := h.funds.Deposit(ctx, funds.CustodyAccount(identity), req.Amount); err != nil {
		h.logger.ErrorContext(ctx, "deposit failed",
			"request_id", middleware.GetRequestID(ctx),
			"identity", identity.String(),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "deposit"))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

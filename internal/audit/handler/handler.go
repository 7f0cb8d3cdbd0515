package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"recrusearch/internal/audit"
	"recrusearch/internal/transport/http/shared"
	dErrors "recrusearch/pkg/domain-errors"
)

// Reader lists recorded audit events.
type Reader interface {
	List(ctx context.Context) ([]audit.Event, error)
}

// Handler exposes the audit trail to operators. Only mounted when events are
// kept in a queryable store; with a Kafka sink the trail lives downstream.
type Handler struct {
	events Reader
	logger *slog.Logger
}

func New(events Reader, logger *slog.Logger) *Handler {
	return &Handler{events: events, logger: logger}
}

// RegisterAdmin mounts the audit route behind the admin key.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/audit", h.handleList)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.List(r.Context())
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "list audit events"))
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}

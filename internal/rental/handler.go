package rental

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/corezen/corezen/internal/platform/httpx"
	"github.com/corezen/corezen/internal/shared"
	"github.com/corezen/corezen/internal/tenancy"
)

// Lister abstracts contract listings.
type Lister interface {
	ListContracts(ctx context.Context, scope tenancy.Scope, filter Filter, page shared.Page) ([]Contract, error)
}

// Handler wires read-only HTTP endpoints for rental contracts. Opening and
// settling contracts are posting events.
type Handler struct {
	logger *slog.Logger
	repo   Lister
}

// NewHandler constructs rental handler.
func NewHandler(logger *slog.Logger, repo Lister) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers rental routes on an authenticated router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/rentals", h.handleList)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, err := tenancy.RequestActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenantID, err := httpx.QueryID(r, "tenant_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	var filter Filter
	if raw := q.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.RespondError(w, shared.Validation("invalid active flag"))
			return
		}
		filter.Active = &active
	}
	if filter.ContactID, err = httpx.QueryID(r, "contact_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.ItemID, err = httpx.QueryID(r, "item_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	contracts, err := h.repo.ListContracts(r.Context(), actor.Scope().Narrow(tenantID), filter, shared.PageFromQuery(q.Get))
	if err != nil {
		h.logger.Error("list rentals failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, contracts)
}

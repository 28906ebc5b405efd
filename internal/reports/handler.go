package reports

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/corezen/corezen/internal/platform/httpx"
	"github.com/corezen/corezen/internal/shared"
	"github.com/corezen/corezen/internal/tenancy"
)

// Handler serves report projections.
type Handler struct {
	logger  *slog.Logger
	service *Service
	mw      tenancy.Middleware
}

// NewHandler constructs the reports handler.
func NewHandler(logger *slog.Logger, service *Service, mw tenancy.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, mw: mw}
}

// MountRoutes registers report routes; only ADMIN and FINANCE may read them.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireRole(tenancy.RoleAdmin, tenancy.RoleFinance))
		r.Get("/reports/accounting", h.handleAccounting)
		r.Get("/reports/profit", h.handleProfit)
	})
}

func (h *Handler) handleAccounting(w http.ResponseWriter, r *http.Request) {
	actor, err := tenancy.RequestActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenantID, err := tenancy.RequestTenant(r, actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.Accounting(r.Context(), actor, tenantID)
	if err != nil {
		h.fail(w, "accounting report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleProfit(w http.ResponseWriter, r *http.Request) {
	actor, err := tenancy.RequestActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenantID, err := tenancy.RequestTenant(r, actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.service.Profit(r.Context(), actor, tenantID, Period(r.URL.Query().Get("period")))
	if err != nil {
		h.fail(w, "profit report", err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !shared.Categorised(err) {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

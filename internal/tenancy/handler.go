package tenancy

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/corezen/corezen/internal/platform/httpx"
)

// Handler wires HTTP endpoints for staff management.
type Handler struct {
	logger  *slog.Logger
	service *Service
	mw      Middleware
}

// NewHandler constructs the staff handler.
func NewHandler(logger *slog.Logger, service *Service, mw Middleware) *Handler {
	return &Handler{logger: logger, service: service, mw: mw}
}

// MountRoutes registers staff routes on an authenticated router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.mw.RequireRole(RoleAdmin)).Post("/staff", h.handleCreateStaff)
}

type createStaffRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Role     string `json:"role" validate:"required,oneof=ADMIN FINANCE SALES"`
	Initials string `json:"initials" validate:"omitempty,max=8,alphanum"`
}

type staffResponse struct {
	ID       int64  `json:"id"`
	TenantID int64  `json:"tenant_id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Initials string `json:"initials"`
	APIKey   string `json:"api_key"`
}

func (h *Handler) handleCreateStaff(w http.ResponseWriter, r *http.Request) {
	actor, err := RequestActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createStaffRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenantID, err := RequestTenant(r, actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	created, err := h.service.CreateStaff(r.Context(), actor, CreateStaffInput{
		TenantID: tenantID,
		Username: req.Username,
		Role:     Role(req.Role),
		Initials: req.Initials,
	})
	if err != nil {
		if h.logger != nil {
			h.logger.Warn("create staff failed", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, staffResponse{
		ID:       created.Staff.ID,
		TenantID: created.Staff.TenantID,
		Username: created.Staff.Username,
		Role:     created.Staff.Role,
		Initials: created.Staff.EffectiveInitials(),
		APIKey:   created.APIKey,
	})
}

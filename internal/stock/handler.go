package stock

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/corezen/corezen/internal/platform/httpx"
	"github.com/corezen/corezen/internal/shared"
	"github.com/corezen/corezen/internal/tenancy"
)

// Handler wires read-only HTTP endpoints for products and items.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs stock handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers stock routes on an authenticated router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.handleListProducts)
	r.Get("/items", h.handleListItems)
}

func requestScope(r *http.Request) (tenancy.Scope, error) {
	actor, err := tenancy.RequestActor(r)
	if err != nil {
		return tenancy.Scope{}, err
	}
	tenantID, err := httpx.QueryID(r, "tenant_id")
	if err != nil {
		return tenancy.Scope{}, err
	}
	return actor.Scope().Narrow(tenantID), nil
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	scope, err := requestScope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	filter := ProductFilter{
		Status:   ProductStatus(strings.ToUpper(q.Get("status"))),
		Category: Category(strings.ToUpper(q.Get("category"))),
		Search:   strings.TrimSpace(q.Get("q")),
	}
	products, err := h.service.ListProducts(r.Context(), scope, filter, shared.PageFromQuery(q.Get))
	if err != nil {
		h.logger.Error("list products failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request) {
	scope, err := requestScope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	filter := ItemFilter{
		Status: ItemStatus(strings.ToUpper(q.Get("status"))),
		Serial: strings.TrimSpace(q.Get("serial")),
	}
	if filter.ProductID, err = httpx.QueryID(r, "product_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ListItems(r.Context(), scope, filter, shared.PageFromQuery(q.Get))
	if err != nil {
		h.logger.Error("list items failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

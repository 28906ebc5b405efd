package ledger

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/corezen/corezen/internal/platform/httpx"
	"github.com/corezen/corezen/internal/shared"
	"github.com/corezen/corezen/internal/tenancy"
)

// Handler wires HTTP endpoints for accounts, contacts and transactions.
type Handler struct {
	logger  *slog.Logger
	service *Service
	mw      tenancy.Middleware
}

// NewHandler constructs ledger handler.
func NewHandler(logger *slog.Logger, service *Service, mw tenancy.Middleware) *Handler {
	return &Handler{logger: logger, service: service, mw: mw}
}

// MountRoutes registers ledger routes on an authenticated router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/contacts", h.handleListContacts)
	r.Post("/contacts", h.handleCreateContact)
	r.Get("/transactions", h.handleListTransactions)
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireRole(tenancy.RoleAdmin, tenancy.RoleFinance))
		r.Get("/accounts", h.handleListAccounts)
		r.Post("/accounts", h.handleCreateAccount)
	})
}

type createContactRequest struct {
	Name    string `json:"name" validate:"required,max=128"`
	Phone   string `json:"phone" validate:"max=32"`
	Address string `json:"address" validate:"max=255"`
}

type createAccountRequest struct {
	Name           string          `json:"name" validate:"required,max=64"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

type contactResponse struct {
	Contact
	Position Position `json:"position"`
}

func (h *Handler) scope(r *http.Request) (tenancy.Actor, tenancy.Scope, error) {
	actor, err := tenancy.RequestActor(r)
	if err != nil {
		return tenancy.Actor{}, tenancy.Scope{}, err
	}
	tenantID, err := httpx.QueryID(r, "tenant_id")
	if err != nil {
		return tenancy.Actor{}, tenancy.Scope{}, err
	}
	return actor, actor.Scope().Narrow(tenantID), nil
}

func (h *Handler) handleListContacts(w http.ResponseWriter, r *http.Request) {
	_, scope, err := h.scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	filter := ContactFilter{Search: strings.TrimSpace(q.Get("q")), Position: Position(strings.ToUpper(q.Get("position")))}
	contacts, err := h.service.ListContacts(r.Context(), scope, filter, shared.PageFromQuery(q.Get))
	if err != nil {
		h.fail(w, "list contacts", err)
		return
	}
	out := make([]contactResponse, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, contactResponse{Contact: c, Position: c.Position()})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleCreateContact(w http.ResponseWriter, r *http.Request) {
	actor, err := tenancy.RequestActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createContactRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenantID, err := tenancy.RequestTenant(r, actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.CreateContact(r.Context(), actor, CreateContactInput{TenantID: tenantID, Name: req.Name, Phone: req.Phone, Address: req.Address})
	if err != nil {
		h.fail(w, "create contact", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, contactResponse{Contact: c, Position: c.Position()})
}

func (h *Handler) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	_, scope, err := h.scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	accounts, err := h.service.ListAccounts(r.Context(), scope)
	if err != nil {
		h.fail(w, "list accounts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, accounts)
}

func (h *Handler) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	actor, err := tenancy.RequestActor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createAccountRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	tenantID, err := tenancy.RequestTenant(r, actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	acct, err := h.service.CreateAccount(r.Context(), actor, CreateAccountInput{TenantID: tenantID, Name: req.Name, InitialBalance: req.InitialBalance})
	if err != nil {
		h.fail(w, "create account", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, acct)
}

func (h *Handler) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	_, scope, err := h.scope(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	filter := TransactionFilter{Type: TransactionType(strings.ToUpper(q.Get("type")))}
	if filter.ContactID, err = httpx.QueryID(r, "contact_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.AccountID, err = httpx.QueryID(r, "account_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.ProductID, err = httpx.QueryID(r, "product_id"); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if from := q.Get("from"); from != "" {
		if filter.From, err = time.Parse(time.DateOnly, from); err != nil {
			httpx.RespondError(w, shared.Validation("invalid from date"))
			return
		}
	}
	if to := q.Get("to"); to != "" {
		if filter.To, err = time.Parse(time.DateOnly, to); err != nil {
			httpx.RespondError(w, shared.Validation("invalid to date"))
			return
		}
		filter.To = filter.To.AddDate(0, 0, 1)
	}
	txns, err := h.service.ListTransactions(r.Context(), scope, filter, shared.PageFromQuery(q.Get))
	if err != nil {
		h.fail(w, "list transactions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, txns)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if h.logger != nil {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

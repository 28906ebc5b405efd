package posting

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/corezen/corezen/internal/ledger"
	"github.com/corezen/corezen/internal/platform/httpx"
	"github.com/corezen/corezen/internal/shared"
	"github.com/corezen/corezen/internal/stock"
	"github.com/corezen/corezen/internal/tenancy"
)

// IdempotencyHeader carries the optional client request key.
const IdempotencyHeader = "Idempotency-Key"

// Poster is the posting contract served over HTTP.
type Poster interface {
	Receive(ctx context.Context, in ReceiveInput) (ReceiveResult, error)
	ConfirmSerial(ctx context.Context, in ConfirmSerialInput) (stock.Item, error)
	Sell(ctx context.Context, in SellInput) (SellResult, error)
	RentOut(ctx context.Context, in RentOutInput) (RentOutResult, error)
	Settle(ctx context.Context, in SettleInput) (SettleResult, error)
	Repay(ctx context.Context, in RepayInput) (ledger.Transaction, error)
	WriteOff(ctx context.Context, in WriteOffInput) (WriteOffResult, error)
}

// Handler exposes posting events over HTTP.
type Handler struct {
	logger  *slog.Logger
	service Poster
	mw      tenancy.Middleware
}

// NewHandler constructs the posting handler.
func NewHandler(logger *slog.Logger, service Poster, mw tenancy.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, mw: mw}
}

// MountRoutes registers posting routes on an authenticated router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/products/receive", h.handleReceive)
	r.Post("/products/{id}/sell", h.handleSell)
	r.Post("/items/{id}/confirm-serial", h.handleConfirmSerial)
	r.Post("/items/{id}/write-off", h.handleWriteOff)
	r.Post("/rentals", h.handleRentOut)
	r.Post("/rentals/{id}/settle", h.handleSettle)
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireRole(tenancy.RoleAdmin, tenancy.RoleFinance))
		r.Post("/contacts/{id}/repay", h.handleRepay)
	})
}

type receiveRequest struct {
	ProductID   int64           `json:"product_id" validate:"gte=0"`
	Zencode     string          `json:"zencode" validate:"max=32"`
	Name        string          `json:"name" validate:"max=255"`
	Category    string          `json:"category" validate:"omitempty,oneof=ZJ SJ XS ZX"`
	CPU         string          `json:"cpu" validate:"max=128"`
	GPU         string          `json:"gpu" validate:"max=128"`
	RAM         string          `json:"ram" validate:"max=64"`
	Disk        string          `json:"disk" validate:"max=64"`
	Note        string          `json:"note" validate:"max=255"`
	CostPrice   decimal.Decimal `json:"cost_price"`
	PeerPrice   decimal.Decimal `json:"peer_price"`
	RetailPrice decimal.Decimal `json:"retail_price"`
	Quantity    int             `json:"quantity" validate:"required,min=1,max=1000"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	SerialMode  string          `json:"serial_mode" validate:"required,oneof=SUPPLIED AUTO DEFERRED"`
	Serial      string          `json:"serial" validate:"required_if=SerialMode SUPPLIED,max=64"`
	SupplierID  *int64          `json:"supplier_id" validate:"omitempty,gt=0"`
	PaidAmount  decimal.Decimal `json:"paid_amount"`
	AccountID   *int64          `json:"account_id" validate:"omitempty,gt=0"`
}

type confirmSerialRequest struct {
	Serial string `json:"serial" validate:"required,max=64"`
}

type sellRequest struct {
	Quantity       int             `json:"quantity" validate:"required,min=1"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	ReceivedAmount decimal.Decimal `json:"received_amount"`
	ContactID      int64           `json:"contact_id" validate:"required,gt=0"`
	AccountID      *int64          `json:"account_id" validate:"omitempty,gt=0"`
}

type rentOutRequest struct {
	ProductID           int64           `json:"product_id" validate:"gte=0"`
	ItemID              *int64          `json:"item_id" validate:"omitempty,gt=0"`
	ContactID           int64           `json:"contact_id" validate:"required,gt=0"`
	StartDate           string          `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	Duration            int             `json:"duration" validate:"required,min=1"`
	RentPrice           decimal.Decimal `json:"rent_price"`
	Deposit             decimal.Decimal `json:"deposit"`
	DepreciationMonthly decimal.Decimal `json:"depreciation_monthly"`
	AccountID           *int64          `json:"account_id" validate:"omitempty,gt=0"`
}

type settleRequest struct {
	RevisedValue *decimal.Decimal `json:"revised_value" validate:"required"`
	AccountID    *int64           `json:"account_id" validate:"omitempty,gt=0"`
}

type repayRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Direction string          `json:"direction" validate:"required,oneof=PAY COLLECT"`
	AccountID *int64          `json:"account_id" validate:"omitempty,gt=0"`
}

type writeOffRequest struct {
	Reason string `json:"reason" validate:"max=255"`
}

// meta resolves the actor, target tenant and idempotency key of a request.
func (h *Handler) meta(r *http.Request) (Meta, error) {
	actor, err := tenancy.RequestActor(r)
	if err != nil {
		return Meta{}, err
	}
	tenantID, err := tenancy.RequestTenant(r, actor)
	if err != nil {
		return Meta{}, err
	}
	return Meta{Actor: actor, TenantID: tenantID, IdempotencyKey: r.Header.Get(IdempotencyHeader)}, nil
}

func (h *Handler) handleReceive(w http.ResponseWriter, r *http.Request) {
	meta, err := h.meta(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req receiveRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Receive(r.Context(), ReceiveInput{
		Meta: meta,
		Spec: stock.ProductSpec{
			ProductID:   req.ProductID,
			Zencode:     req.Zencode,
			Name:        req.Name,
			Category:    stock.Category(req.Category),
			CPU:         req.CPU,
			GPU:         req.GPU,
			RAM:         req.RAM,
			Disk:        req.Disk,
			Note:        req.Note,
			CostPrice:   req.CostPrice,
			PeerPrice:   req.PeerPrice,
			RetailPrice: req.RetailPrice,
		},
		Quantity:   req.Quantity,
		UnitCost:   req.UnitCost,
		Serial:     stock.SerialPolicy{Mode: stock.SerialMode(req.SerialMode), Serial: req.Serial},
		SupplierID: req.SupplierID,
		PaidAmount: req.PaidAmount,
		AccountID:  req.AccountID,
	})
	if err != nil {
		h.fail(w, "receive", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, res)
}

func (h *Handler) handleConfirmSerial(w http.ResponseWriter, r *http.Request) {
	meta, err := h.meta(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	itemID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req confirmSerialRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.ConfirmSerial(r.Context(), ConfirmSerialInput{Meta: meta, ItemID: itemID, Serial: req.Serial})
	if err != nil {
		h.fail(w, "confirm serial", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleSell(w http.ResponseWriter, r *http.Request) {
	meta, err := h.meta(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	productID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req sellRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Sell(r.Context(), SellInput{
		Meta:           meta,
		ProductID:      productID,
		Quantity:       req.Quantity,
		UnitPrice:      req.UnitPrice,
		ReceivedAmount: req.ReceivedAmount,
		ContactID:      req.ContactID,
		AccountID:      req.AccountID,
	})
	if err != nil {
		h.fail(w, "sell", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, res)
}

func (h *Handler) handleRentOut(w http.ResponseWriter, r *http.Request) {
	meta, err := h.meta(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req rentOutRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	var start time.Time
	if req.StartDate != "" {
		if start, err = time.Parse(time.DateOnly, req.StartDate); err != nil {
			httpx.RespondError(w, shared.Validation("invalid start_date"))
			return
		}
	}
	res, err := h.service.RentOut(r.Context(), RentOutInput{
		Meta:                meta,
		ProductID:           req.ProductID,
		ItemID:              req.ItemID,
		ContactID:           req.ContactID,
		StartDate:           start,
		Duration:            req.Duration,
		RentPrice:           req.RentPrice,
		Deposit:             req.Deposit,
		DepreciationMonthly: req.DepreciationMonthly,
		AccountID:           req.AccountID,
	})
	if err != nil {
		h.fail(w, "rent out", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, res)
}

func (h *Handler) handleSettle(w http.ResponseWriter, r *http.Request) {
	meta, err := h.meta(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	contractID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req settleRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Settle(r.Context(), SettleInput{Meta: meta, ContractID: contractID, RevisedValue: req.RevisedValue, AccountID: req.AccountID})
	if err != nil {
		h.fail(w, "settle", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) handleRepay(w http.ResponseWriter, r *http.Request) {
	meta, err := h.meta(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	contactID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req repayRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	txn, err := h.service.Repay(r.Context(), RepayInput{
		Meta:      meta,
		ContactID: contactID,
		Amount:    req.Amount,
		AccountID: req.AccountID,
		Direction: Direction(strings.ToUpper(req.Direction)),
	})
	if err != nil {
		h.fail(w, "repay", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, txn)
}

func (h *Handler) handleWriteOff(w http.ResponseWriter, r *http.Request) {
	meta, err := h.meta(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	itemID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req writeOffRequest
	if r.ContentLength != 0 {
		if err := httpx.Bind(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	res, err := h.service.WriteOff(r.Context(), WriteOffInput{Meta: meta, ItemID: itemID, Reason: strings.TrimSpace(req.Reason)})
	if err != nil {
		h.fail(w, "write off", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if status := httpx.StatusFor(err); status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", slog.Int("status", status), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

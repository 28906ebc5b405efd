package posting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/corezen/corezen/internal/ledger"
	"github.com/corezen/corezen/internal/stock"
	"github.com/corezen/corezen/internal/tenancy"
)

type fakePoster struct {
	sell    SellInput
	repay   RepayInput
	receive ReceiveInput
	err     error
}

func (f *fakePoster) Receive(_ context.Context, in ReceiveInput) (ReceiveResult, error) {
	f.receive = in
	return ReceiveResult{Product: stock.Product{ID: 1, Zencode: "26A16ZYZX1"}}, f.err
}

func (f *fakePoster) ConfirmSerial(context.Context, ConfirmSerialInput) (stock.Item, error) {
	return stock.Item{}, f.err
}

func (f *fakePoster) Sell(_ context.Context, in SellInput) (SellResult, error) {
	f.sell = in
	return SellResult{Contact: ledger.Contact{ID: in.ContactID}}, f.err
}

func (f *fakePoster) RentOut(context.Context, RentOutInput) (RentOutResult, error) {
	return RentOutResult{}, f.err
}

func (f *fakePoster) Settle(context.Context, SettleInput) (SettleResult, error) {
	return SettleResult{}, f.err
}

func (f *fakePoster) Repay(_ context.Context, in RepayInput) (ledger.Transaction, error) {
	f.repay = in
	return ledger.Transaction{ID: 5}, f.err
}

func (f *fakePoster) WriteOff(context.Context, WriteOffInput) (WriteOffResult, error) {
	return WriteOffResult{}, f.err
}

func newTestRouter(fake *fakePoster, actor tenancy.Actor) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(tenancy.WithActor(req.Context(), actor)))
		})
	})
	NewHandler(nil, fake, tenancy.Middleware{}).MountRoutes(r)
	return r
}

func TestHandleSellPassesInput(t *testing.T) {
	fake := &fakePoster{}
	router := newTestRouter(fake, tenancy.Actor{TenantID: 3, StaffID: 4, Role: tenancy.RoleSales})

	body := `{"quantity":2,"unit_price":"150.00","received_amount":200,"contact_id":9,"account_id":1}`
	req := httptest.NewRequest(http.MethodPost, "/products/12/sell", strings.NewReader(body))
	req.Header.Set(IdempotencyHeader, "4f7c4fd4-3e64-4a4b-9d5b-8b43cf7a50c1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if fake.sell.ProductID != 12 || fake.sell.Quantity != 2 || fake.sell.ContactID != 9 {
		t.Fatalf("unexpected input: %+v", fake.sell)
	}
	if !fake.sell.UnitPrice.Equal(decimal.NewFromInt(150)) || !fake.sell.ReceivedAmount.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("unexpected amounts: %s %s", fake.sell.UnitPrice, fake.sell.ReceivedAmount)
	}
	if fake.sell.TenantID != 3 || fake.sell.IdempotencyKey == "" {
		t.Fatalf("unexpected meta: %+v", fake.sell.Meta)
	}
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := out["contact"]; !ok {
		t.Fatalf("expected contact in response: %s", rr.Body.String())
	}
}

func TestHandleReceiveValidatesBody(t *testing.T) {
	fake := &fakePoster{}
	router := newTestRouter(fake, tenancy.Actor{TenantID: 3, StaffID: 4, Role: tenancy.RoleSales})

	req := httptest.NewRequest(http.MethodPost, "/products/receive", strings.NewReader(`{"quantity":1,"serial_mode":"SUPPLIED"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing serial, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/products/receive", strings.NewReader(`{"quantity":1,"serial_mode":"AUTO","unit_cost":"9.50","category":"SJ"}`))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if fake.receive.Spec.Category != stock.CategoryPhone || fake.receive.Serial.Mode != stock.SerialAuto {
		t.Fatalf("unexpected receive input: %+v", fake.receive)
	}
}

func TestHandleRepayRequiresFinanceRole(t *testing.T) {
	fake := &fakePoster{}
	router := newTestRouter(fake, tenancy.Actor{TenantID: 3, StaffID: 4, Role: tenancy.RoleSales})
	req := httptest.NewRequest(http.MethodPost, "/contacts/2/repay", strings.NewReader(`{"amount":"10","direction":"PAY"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}

	router = newTestRouter(fake, tenancy.Actor{TenantID: 3, StaffID: 4, Role: tenancy.RoleFinance})
	req = httptest.NewRequest(http.MethodPost, "/contacts/2/repay", strings.NewReader(`{"amount":"10","direction":"pay"}`))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for lowercase direction, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/contacts/2/repay", strings.NewReader(`{"amount":"10","direction":"COLLECT"}`))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if fake.repay.ContactID != 2 || fake.repay.Direction != DirectionCollect {
		t.Fatalf("unexpected repay input: %+v", fake.repay)
	}
}

func TestHandlerMapsDomainErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{stock.ErrInsufficientStock, http.StatusConflict},
		{stock.ErrProductNotFound, http.StatusNotFound},
		{ErrAccountRequired, http.StatusBadRequest},
		{tenancy.ErrTenantInactive, http.StatusForbidden},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		fake := &fakePoster{err: tc.err}
		router := newTestRouter(fake, tenancy.Actor{TenantID: 3, StaffID: 4, Role: tenancy.RoleSales})
		req := httptest.NewRequest(http.MethodPost, "/products/1/sell", strings.NewReader(`{"quantity":1,"unit_price":1,"contact_id":2}`))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, rr.Code)
		}
	}
}

func TestHandlerRejectsForeignTenant(t *testing.T) {
	fake := &fakePoster{}
	router := newTestRouter(fake, tenancy.Actor{TenantID: 3, StaffID: 4, Role: tenancy.RoleSales})
	req := httptest.NewRequest(http.MethodPost, "/items/1/write-off?tenant_id=8", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

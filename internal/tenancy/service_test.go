package tenancy_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/corezen/corezen/internal/shared"
	"github.com/corezen/corezen/internal/tenancy"
)

type stubRepo struct {
	tenants map[int64]tenancy.Tenant
	staff    map[int64]tenancy.Staff
	nextID   int64
	staffErr error
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		tenants: map[int64]tenancy.Tenant{
			1: {ID: 1, Code: "shop-a", IsActive: true, AccountLimit: 3},
			2: {ID: 2, Code: "shop-b", IsActive: false, AccountLimit: 3},
		},
		staff:  map[int64]tenancy.Staff{},
		nextID: 100,
	}
}

func (s *stubRepo) GetTenant(ctx context.Context, id int64) (tenancy.Tenant, error) {
	t, ok := s.tenants[id]
	if !ok {
		return tenancy.Tenant{}, tenancy.ErrTenantNotFound
	}
	return t, nil
}

func (s *stubRepo) GetStaff(ctx context.Context, id int64) (tenancy.Staff, error) {
	if s.staffErr != nil {
		return tenancy.Staff{}, s.staffErr
	}
	st, ok := s.staff[id]
	if !ok {
		return tenancy.Staff{}, tenancy.ErrStaffNotFound
	}
	return st, nil
}

func (s *stubRepo) InsertStaff(ctx context.Context, st tenancy.Staff) (int64, error) {
	for _, existing := range s.staff {
		if existing.TenantID == st.TenantID && existing.Username == st.Username {
			return 0, tenancy.ErrDuplicateUsername
		}
	}
	s.nextID++
	st.ID = s.nextID
	s.staff[st.ID] = st
	return st.ID, nil
}

var admin = tenancy.Actor{TenantID: 1, StaffID: 1, Role: tenancy.RoleAdmin}

func newService(repo *stubRepo) *tenancy.Service {
	return tenancy.NewService(repo, nil).WithBcryptCost(bcrypt.MinCost)
}

func TestCreateStaffAndAuthenticate(t *testing.T) {
	repo := newStubRepo()
	svc := newService(repo)
	ctx := context.Background()

	created, err := svc.CreateStaff(ctx, admin, tenancy.CreateStaffInput{TenantID: 1, Username: "lin", Role: tenancy.RoleSales, Initials: "lw"})
	require.NoError(t, err)
	require.Equal(t, "LW", created.Staff.Initials)
	require.True(t, strings.HasPrefix(created.APIKey, "101."))

	actor, err := svc.Authenticate(ctx, created.APIKey)
	require.NoError(t, err)
	require.Equal(t, int64(1), actor.TenantID)
	require.Equal(t, tenancy.RoleSales, actor.Role)
	require.Equal(t, "LW", actor.Initials)

	_, err = svc.Authenticate(ctx, "101.wrong")
	require.ErrorIs(t, err, tenancy.ErrUnauthenticated)
	_, err = svc.Authenticate(ctx, "garbage")
	require.ErrorIs(t, err, tenancy.ErrUnauthenticated)
}

func TestCreateStaffRules(t *testing.T) {
	repo := newStubRepo()
	svc := newService(repo)
	ctx := context.Background()

	sales := tenancy.Actor{TenantID: 1, StaffID: 2, Role: tenancy.RoleSales}
	_, err := svc.CreateStaff(ctx, sales, tenancy.CreateStaffInput{TenantID: 1, Username: "x", Role: tenancy.RoleSales})
	require.ErrorIs(t, err, shared.ErrAuthorization)

	_, err = svc.CreateStaff(ctx, admin, tenancy.CreateStaffInput{TenantID: 2, Username: "x", Role: tenancy.RoleSales})
	require.ErrorIs(t, err, tenancy.ErrTenantMismatch)

	_, err = svc.CreateStaff(ctx, admin, tenancy.CreateStaffInput{TenantID: 1, Username: "x", Role: "OWNER"})
	require.ErrorIs(t, err, shared.ErrValidation)

	root := tenancy.Actor{StaffID: 9, Superuser: true}
	_, err = svc.CreateStaff(ctx, root, tenancy.CreateStaffInput{TenantID: 2, Username: "x", Role: tenancy.RoleSales})
	require.ErrorIs(t, err, tenancy.ErrTenantInactive)

	_, err = svc.CreateStaff(ctx, admin, tenancy.CreateStaffInput{TenantID: 1, Username: "dup", Role: tenancy.RoleSales})
	require.NoError(t, err)
	_, err = svc.CreateStaff(ctx, admin, tenancy.CreateStaffInput{TenantID: 1, Username: "dup", Role: tenancy.RoleFinance})
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestActorScopeAndInitials(t *testing.T) {
	require.Equal(t, "XX", tenancy.Staff{}.EffectiveInitials())
	require.Equal(t, "XX", tenancy.Actor{}.EffectiveInitials())

	a := tenancy.Actor{TenantID: 1, StaffID: 3}
	require.NoError(t, a.Authorize(1))
	require.ErrorIs(t, a.Authorize(2), shared.ErrAuthorization)
	require.ErrorIs(t, a.Authorize(0), shared.ErrValidation)
	require.False(t, a.Scope().Includes(2))

	root := tenancy.Actor{Superuser: true}
	require.True(t, root.Scope().Includes(2))
	require.Equal(t, tenancy.Scope{TenantID: 2}, root.Scope().Narrow(2))
	require.Nil(t, root.OperatorID())
}

func TestMiddlewareAuthAndRoles(t *testing.T) {
	repo := newStubRepo()
	svc := newService(repo)
	created, err := svc.CreateStaff(context.Background(), admin, tenancy.CreateStaffInput{TenantID: 1, Username: "s", Role: tenancy.RoleSales})
	require.NoError(t, err)

	mw := tenancy.Middleware{Auth: svc}
	r := chi.NewRouter()
	r.Use(mw.Authenticate)
	r.With(mw.RequireRole(tenancy.RoleAdmin, tenancy.RoleFinance)).Get("/reports", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/items", func(w http.ResponseWriter, r *http.Request) {
		actor, ok := tenancy.ActorFromContext(r.Context())
		if !ok || actor.Role != tenancy.RoleSales {
			t.Fatalf("actor missing from context")
		}
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/items", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/items", nil)
	req.Header.Set(tenancy.APIKeyHeader, created.APIKey)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/reports", nil)
	req.Header.Set(tenancy.APIKeyHeader, created.APIKey)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for sales on reports, got %d", rr.Code)
	}
}

func TestAuthenticateSurfacesStorageFailures(t *testing.T) {
	repo := newStubRepo()
	svc := newService(repo)
	ctx := context.Background()

	_, err := svc.Authenticate(ctx, "999.secret")
	require.ErrorIs(t, err, tenancy.ErrUnauthenticated)

	down := errors.New("connection refused")
	repo.staffErr = down
	_, err = svc.Authenticate(ctx, "999.secret")
	require.ErrorIs(t, err, down)
	require.NotErrorIs(t, err, tenancy.ErrUnauthenticated)

	r := chi.NewRouter()
	r.Use(tenancy.Middleware{Auth: svc}.Authenticate)
	r.Get("/items", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	req := httptest.NewRequest(http.MethodGet, "/items", nil)
	req.Header.Set(tenancy.APIKeyHeader, "999.secret")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.NotContains(t, rr.Body.String(), "connection refused")
}

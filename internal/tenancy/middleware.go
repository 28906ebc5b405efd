package tenancy

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/corezen/corezen/internal/platform/httpx"
	"github.com/corezen/corezen/internal/shared"
)

// APIKeyHeader carries "<staffID>.<secret>".
const APIKeyHeader = "X-API-Key"

// Authenticator resolves actors for the HTTP layer.
type Authenticator interface {
	Authenticate(ctx context.Context, apiKey string) (Actor, error)
}

// Middleware wires authentication and role checks for HTTP handlers.
type Middleware struct {
	Auth   Authenticator
	Logger *slog.Logger
}

// Authenticate rejects requests without a valid API key and stores the actor
// in the request context.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(APIKeyHeader)
		if key == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing api key")
			return
		}
		actor, err := m.Auth.Authenticate(r.Context(), key)
		switch {
		case errors.Is(err, ErrUnauthenticated):
			m.logger().Debug("api key rejected", slog.String("path", r.URL.Path))
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid api key")
			return
		case err != nil:
			m.logger().Error("authenticate", slog.String("path", r.URL.Path), slog.Any("error", err))
			httpx.RespondError(w, shared.Classify(err))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

func (m Middleware) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

// RequireRole ensures the current actor holds one of roles.
func (m Middleware) RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing api key")
				return
			}
			if !actor.HasRole(roles...) {
				httpx.RespondError(w, ErrRoleNotPermitted)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestActor returns the authenticated actor or ErrUnauthenticated.
func RequestActor(r *http.Request) (Actor, error) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		return Actor{}, ErrUnauthenticated
	}
	return actor, nil
}

// RequestTenant returns the tenant an HTTP request targets: the actor's own
// tenant, or the "tenant_id" query value for superusers.
func RequestTenant(r *http.Request, actor Actor) (int64, error) {
	tenantID, err := httpx.QueryID(r, "tenant_id")
	if err != nil {
		return 0, err
	}
	if tenantID == 0 {
		return actor.TenantID, nil
	}
	if err := actor.Authorize(tenantID); err != nil {
		return 0, err
	}
	return tenantID, nil
}

package stock

import (
	"context"
	"time"

	"github.com/corezen/corezen/internal/shared"
	"github.com/corezen/corezen/internal/tenancy"
)

// RepositoryPort abstracts the read side for service.
type RepositoryPort interface {
	ListProducts(ctx context.Context, scope tenancy.Scope, filter ProductFilter, page shared.Page) ([]Product, error)
	ListItems(ctx context.Context, scope tenancy.Scope, filter ItemFilter, page shared.Page) ([]Item, error)
	CountStalePending(ctx context.Context, cutoff time.Time) (map[int64]int, error)
}

// Service serves stock listings. Writes go through the posting engine.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListProducts lists products in scope.
func (s *Service) ListProducts(ctx context.Context, scope tenancy.Scope, filter ProductFilter, page shared.Page) ([]Product, error) {
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, ErrInvalidCategory
	}
	return s.repo.ListProducts(ctx, scope, filter, page)
}

// ListItems lists items in scope.
func (s *Service) ListItems(ctx context.Context, scope tenancy.Scope, filter ItemFilter, page shared.Page) ([]Item, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, shared.Validation("stock: unknown item status")
	}
	return s.repo.ListItems(ctx, scope, filter, page)
}

// StalePendingCounts returns, per tenant, how many PENDING items were
// received more than maxAge ago. Tenants with none are absent.
func (s *Service) StalePendingCounts(ctx context.Context, maxAge time.Duration) (map[int64]int, error) {
	if maxAge <= 0 {
		return nil, shared.Validation("stock: stale age must be positive")
	}
	return s.repo.CountStalePending(ctx, time.Now().Add(-maxAge))
}

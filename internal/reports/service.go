package reports

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/corezen/corezen/internal/tenancy"
)

// RepositoryPort abstracts the projection queries.
type RepositoryPort interface {
	AccountBalances(ctx context.Context, tenantID int64) ([]AccountBalance, error)
	StockValue(ctx context.Context, tenantID int64) (decimal.Decimal, error)
	ContactTotals(ctx context.Context, tenantID int64) (ContactTotals, error)
	SoldItems(ctx context.Context, tenantID int64, from time.Time) ([]ProfitLine, error)
}

// Service computes read-only projections. Concurrent requests for the same
// projection share one computation.
type Service struct {
	repo  RepositoryPort
	cache *Cache
	group singleflight.Group
	now   func() time.Time
}

// NewService wires a repository with a cache.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache, now: time.Now}
}

// WithClock overrides the clock used for period bounds.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Accounting returns the tenant's cash, stock and contact position.
func (s *Service) Accounting(ctx context.Context, actor tenancy.Actor, tenantID int64) (Accounting, error) {
	if err := actor.Authorize(tenantID); err != nil {
		return Accounting{}, err
	}
	key := s.cacheKey(ctx, tenantID, "accounting")
	v, err, _ := s.group.Do(flightKey(key, tenantID, "accounting"), func() (any, error) {
		var out Accounting
		err := s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
			return s.computeAccounting(ctx, tenantID)
		})
		return out, err
	})
	if err != nil {
		return Accounting{}, err
	}
	return v.(Accounting), nil
}

func (s *Service) computeAccounting(ctx context.Context, tenantID int64) (Accounting, error) {
	var (
		accounts []AccountBalance
		stock    decimal.Decimal
		totals   ContactTotals
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		accounts, err = s.repo.AccountBalances(gctx, tenantID)
		return err
	})
	g.Go(func() error {
		var err error
		stock, err = s.repo.StockValue(gctx, tenantID)
		return err
	})
	g.Go(func() error {
		var err error
		totals, err = s.repo.ContactTotals(gctx, tenantID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Accounting{}, err
	}
	return buildAccounting(tenantID, accounts, stock, totals), nil
}

// Profit returns realised margin on units sold in the period.
func (s *Service) Profit(ctx context.Context, actor tenancy.Actor, tenantID int64, period Period) (Profit, error) {
	if err := actor.Authorize(tenantID); err != nil {
		return Profit{}, err
	}
	period = Period(strings.ToLower(strings.TrimSpace(string(period))))
	if period == "" {
		period = PeriodAll
	}
	from, err := period.Start(s.now())
	if err != nil {
		return Profit{}, err
	}
	parts := []string{"profit", string(period)}
	if !from.IsZero() {
		parts = append(parts, from.Format(time.DateOnly))
	}
	key := s.cacheKey(ctx, tenantID, parts...)
	v, err, _ := s.group.Do(flightKey(key, tenantID, parts...), func() (any, error) {
		var out Profit
		err := s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
			lines, err := s.repo.SoldItems(ctx, tenantID, from)
			if err != nil {
				return nil, err
			}
			return buildProfit(tenantID, period, from, lines), nil
		})
		return out, err
	})
	if err != nil {
		return Profit{}, err
	}
	return v.(Profit), nil
}

// cacheKey returns the versioned key, or "" when the version cannot be read
// and the projection must be computed uncached.
func (s *Service) cacheKey(ctx context.Context, tenantID int64, parts ...string) string {
	key, err := s.cache.BuildKey(ctx, tenantID, parts...)
	if err != nil {
		s.cache.degraded("version", versionKey(tenantID), err)
		return ""
	}
	return key
}

func flightKey(key string, tenantID int64, parts ...string) string {
	if key != "" {
		return key
	}
	return "uncached:" + strconv.FormatInt(tenantID, 10) + ":" + strings.Join(parts, ":")
}

// Warm precomputes the tenant's projections so the next reads hit the cache.
func (s *Service) Warm(ctx context.Context, tenantID int64) error {
	system := tenancy.Actor{TenantID: tenantID}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := s.Accounting(gctx, system, tenantID)
		return err
	})
	for _, p := range []Period{PeriodAll, PeriodMonth, PeriodYear} {
		p := p
		g.Go(func() error {
			_, err := s.Profit(gctx, system, tenantID, p)
			return err
		})
	}
	return g.Wait()
}

package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/corezen/corezen/internal/posting"
)

const versionKeyPrefix = "reports:version:"

// Cache stores projections in Redis under a per-tenant version. Bumping the
// version orphans every cached projection of that tenant; the TTL reclaims them.
// Redis failures never fail a read: they are logged and the projection is
// computed uncached.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ posting.Notifier = (*Cache)(nil)

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl, logger: slog.Default()}
}

// WithLogger sets the logger used for degraded cache operations.
func (c *Cache) WithLogger(logger *slog.Logger) *Cache {
	if logger != nil {
		c.logger = logger
	}
	return c
}

func (c *Cache) degraded(op, key string, err error) {
	c.logger.Warn("report cache unavailable, computing uncached",
		slog.String("op", op), slog.String("key", key), slog.Any("error", err))
}

func versionKey(tenantID int64) string {
	return versionKeyPrefix + strconv.FormatInt(tenantID, 10)
}

// Version returns the tenant's cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context, tenantID int64) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, versionKey(tenantID)).Int64()
	if errors.Is(err, redis.Nil) {
		// SETNX so a concurrent Bump is not overwritten.
		if err := c.client.SetNX(ctx, versionKey(tenantID), 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, versionKey(tenantID)).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey composes a versioned key for a tenant projection.
func (c *Cache) BuildKey(ctx context.Context, tenantID int64, parts ...string) (string, error) {
	base := "reports:" + strconv.FormatInt(tenantID, 10) + ":" + strings.Join(parts, ":")
	if c == nil || c.client == nil {
		return base, nil
	}
	ver, err := c.Version(ctx, tenantID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:v%d", base, ver), nil
}

// FetchJSON loads a cached value into dest or populates it using loader. An
// empty key bypasses Redis. Only loader errors are returned.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("reports: cache loader required")
	}
	cached := c != nil && c.client != nil && key != ""
	if cached {
		payload, err := c.client.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			jsonErr := json.Unmarshal(payload, dest)
			if jsonErr == nil {
				return nil
			}
			c.degraded("decode", key, jsonErr)
		case errors.Is(err, redis.Nil):
		default:
			c.degraded("get", key, err)
			cached = false
		}
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if cached {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.degraded("set", key, err)
		}
	}
	return json.Unmarshal(raw, dest)
}

// Bump invalidates every cached projection of the tenant.
func (c *Cache) Bump(ctx context.Context, tenantID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, versionKey(tenantID)).Err()
}

// Posted implements posting.Notifier.
func (c *Cache) Posted(ctx context.Context, tenantID int64, _ posting.Event) error {
	return c.Bump(ctx, tenantID)
}

package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/isc-maritime/stockroom/internal/docstore"
)

const cacheVersionKey = "dashboard:version"

// Cache stores dashboard payloads in Redis under versioned keys. Bumping the
// version orphans every cached entry at once; entries then expire by TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	watch  map[string]struct{}
}

// NewCache builds the cache. A nil client disables caching. Changes to the
// watched collections invalidate all entries.
func NewCache(client *redis.Client, ttl time.Duration, logger *slog.Logger, collections ...string) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	watch := make(map[string]struct{}, len(collections))
	for _, c := range collections {
		watch[c] = struct{}{}
	}
	return &Cache{client: client, ttl: ttl, logger: logger, watch: watch}
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, cacheVersionKey).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey composes a cache key stamped with the current version.
func (c *Cache) BuildKey(ctx context.Context, parts ...string) (string, error) {
	joined := strings.Join(parts, ":")
	if c == nil || c.client == nil {
		return joined, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", joined, ver), nil
}

// FetchJSON loads key into dest, populating it from loader on a miss.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("dashboard: cache loader required")
	}
	if c != nil && c.client != nil {
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			return json.Unmarshal(payload, dest)
		}
		if !errors.Is(err, redis.Nil) {
			return err
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
	if c != nil && c.client != nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			return err
		}
	}
	return json.Unmarshal(raw, dest)
}

// Bump invalidates every cached entry.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}

// HandleChanges bumps the version when a watched collection changed.
func (c *Cache) HandleChanges(ctx context.Context, events []docstore.ChangeEvent) {
	if c == nil || c.client == nil {
		return
	}
	for _, evt := range events {
		if _, ok := c.watch[evt.Collection]; !ok {
			continue
		}
		if err := c.Bump(ctx); err != nil {
			c.logger.Warn("dashboard cache bump failed", slog.Any("error", err))
		}
		return
	}
}

// Package cache connects the shared Redis instance.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// Connect dials addr and verifies it with a bounded ping.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("platform/cache: ping %s: %w", addr, err)
	}
	return client, nil
}

// Optional is Connect for components that degrade without Redis: an
// unreachable or empty address yields a nil client and a warning.
func Optional(ctx context.Context, addr string, logger *slog.Logger) *redis.Client {
	if addr == "" {
		return nil
	}
	client, err := Connect(ctx, addr)
	if err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("redis unavailable, continuing without it", slog.String("addr", addr), slog.Any("error", err))
		return nil
	}
	return client
}

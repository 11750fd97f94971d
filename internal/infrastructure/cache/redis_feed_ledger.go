package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/storefront/landedcost/internal/infrastructure/config"
)

const defaultLedgerPrefix = "landedcost:feed:"

// RedisFeedLedger records processed feed keys in Redis so that concurrent
// or restarted runs sharing a run ID skip products already handled
type RedisFeedLedger struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisFeedLedger connects to Redis and verifies the connection
func NewRedisFeedLedger(ctx context.Context, cfg config.RedisConfig) (*RedisFeedLedger, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisFeedLedger{client: client, keyPrefix: defaultLedgerPrefix}, nil
}

// NewRedisFeedLedgerWithClient wraps an existing client
func NewRedisFeedLedgerWithClient(client *redis.Client, keyPrefix string) *RedisFeedLedger {
	if keyPrefix == "" {
		keyPrefix = defaultLedgerPrefix
	}
	return &RedisFeedLedger{client: client, keyPrefix: keyPrefix}
}

// MarkProcessed sets the key with SETNX and reports whether it was new
func (l *RedisFeedLedger) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	created, err := l.client.SetNX(ctx, l.keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark feed key %q: %w", key, err)
	}
	return created, nil
}

// Close closes the Redis client
func (l *RedisFeedLedger) Close() error {
	return l.client.Close()
}

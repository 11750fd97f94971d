package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/storefront/landedcost/internal/infrastructure/config"
	"go.uber.org/zap"
)

// FeedLedger is the ledger contract shared by the Redis and in-memory
// implementations
type FeedLedger interface {
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Close() error
}

// LedgerFactory picks a FeedLedger implementation from configuration
type LedgerFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// LedgerFactoryOption configures a LedgerFactory
type LedgerFactoryOption func(*LedgerFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) LedgerFactoryOption {
	return func(f *LedgerFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to
// the in-memory ledger. Enabled by default.
func WithInMemoryFallback(allow bool) LedgerFactoryOption {
	return func(f *LedgerFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewLedgerFactory creates a new factory
func NewLedgerFactory(cfg config.RedisConfig, opts ...LedgerFactoryOption) *LedgerFactory {
	f := &LedgerFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns a Redis ledger when Redis is enabled and reachable, and the
// in-memory ledger otherwise
func (f *LedgerFactory) Create(ctx context.Context) (FeedLedger, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-memory feed ledger")
		return NewInMemoryFeedLedger(), nil
	}

	ledger, err := NewRedisFeedLedger(ctx, f.redisConfig)
	if err == nil {
		f.logger.Info("using Redis feed ledger", zap.String("addr", f.redisConfig.Addr()))
		return ledger, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis feed ledger unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory feed ledger; "+
		"concurrent runs on other hosts will not see each other's progress",
		zap.Error(err),
	)
	return NewInMemoryFeedLedger(), nil
}

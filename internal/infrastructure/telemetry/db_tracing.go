package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for catalog store tracing
type DBTracingConfig struct {
	Enabled         bool
	DBName          string
	SlowQueryThresh time.Duration
	// IncludeVariables keeps bound query values in span statements
	IncludeVariables bool
	// TracerProvider overrides the global provider
	TracerProvider trace.TracerProvider
}

type queryStartKey struct{}

// RegisterDBTracing installs the otelgorm plugin on db and tags spans that
// exceed the slow query threshold
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBName)}
	if !cfg.IncludeVariables {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if cfg.TracerProvider != nil {
		opts = append(opts, otelgorm.WithTracerProvider(cfg.TracerProvider))
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	t := &slowQueryTagger{threshold: cfg.SlowQueryThresh}
	if err := t.register(db); err != nil {
		return err
	}

	logger.Info("Database tracing enabled",
		zap.String("db_name", cfg.DBName),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh),
	)
	return nil
}

type slowQueryTagger struct {
	threshold time.Duration
}

func (t *slowQueryTagger) register(db *gorm.DB) error {
	cb := db.Callback()
	return errors.Join(
		cb.Create().Before("gorm:create").Register("landedcost:before_create", t.before),
		cb.Query().Before("gorm:query").Register("landedcost:before_query", t.before),
		cb.Update().Before("gorm:update").Register("landedcost:before_update", t.before),
		cb.Delete().Before("gorm:delete").Register("landedcost:before_delete", t.before),
		cb.Raw().Before("gorm:raw").Register("landedcost:before_raw", t.before),
		cb.Create().After("gorm:create").Register("landedcost:after_create", t.after),
		cb.Query().After("gorm:query").Register("landedcost:after_query", t.after),
		cb.Update().After("gorm:update").Register("landedcost:after_update", t.after),
		cb.Delete().After("gorm:delete").Register("landedcost:after_delete", t.after),
		cb.Raw().After("gorm:raw").Register("landedcost:after_raw", t.after),
	)
}

func (t *slowQueryTagger) before(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey{}, time.Now())
	}
}

func (t *slowQueryTagger) after(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
	}

	started, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok || t.threshold <= 0 {
		return
	}
	if elapsed := time.Since(started); elapsed > t.threshold {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
	}
}

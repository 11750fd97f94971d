package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	integrationapp "github.com/storefront/landedcost/internal/application/integration"
	"github.com/storefront/landedcost/internal/domain/pricing"
	"github.com/storefront/landedcost/internal/infrastructure/cache"
	"github.com/storefront/landedcost/internal/infrastructure/config"
	"github.com/storefront/landedcost/internal/infrastructure/event"
	"github.com/storefront/landedcost/internal/infrastructure/feed"
	"github.com/storefront/landedcost/internal/infrastructure/logger"
	"github.com/storefront/landedcost/internal/infrastructure/persistence"
	"github.com/storefront/landedcost/internal/infrastructure/scheduler"
	"github.com/storefront/landedcost/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/storefront/landedcost/reconcile"

type options struct {
	configPath   string
	feedPath     string
	format       string
	schedule     string
	margin       string
	output       string
	dryRun       bool
	updateImages boolFlag
	updateVideo  boolFlag
	updatePrice  boolFlag
}

// boolFlag remembers whether it was set so config values survive when the
// flag is omitted
type boolFlag struct {
	set   bool
	value bool
}

func (b *boolFlag) String() string { return fmt.Sprint(b.value) }

func (b *boolFlag) IsBoolFlag() bool { return true }

func (b *boolFlag) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	b.set, b.value = true, v
	return nil
}

func (b *boolFlag) resolve(fallback bool) bool {
	if b.set {
		return b.value
	}
	return fallback
}

func main() {
	os.Exit(run())
}

func run() int {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to config.toml (default: search ., ./config, /etc/landedcost)")
	flag.StringVar(&opts.feedPath, "feed", "", "Supplier feed file (default: feed.path)")
	flag.StringVar(&opts.format, "format", "", "Feed format: json or csv (default: from extension)")
	flag.StringVar(&opts.schedule, "schedule", "", "Cron schedule; keeps running and reconciles on every trigger")
	flag.StringVar(&opts.margin, "margin", "", "Margin override for this run as a fraction of retail, e.g. 0.4")
	flag.StringVar(&opts.output, "output", "text", "Summary format: text or json")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "Quote prices and report anomalies without writing to the catalog")
	flag.Var(&opts.updateImages, "update-images", "Overwrite images of existing products")
	flag.Var(&opts.updateVideo, "update-video", "Overwrite the video of existing products")
	flag.Var(&opts.updatePrice, "update-price", "Reprice existing products")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Failed to read .env file: %v\n", err)
	}

	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, cfg, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		return 1
	}
	defer app.close()

	if opts.schedule != "" || cfg.Feed.Schedule != "" {
		return app.runScheduled(ctx, firstNonEmpty(opts.schedule, cfg.Feed.Schedule))
	}

	if err := app.runOnce(ctx, uuid.NewString()); err != nil {
		app.log.Error("Feed run failed", zap.Error(err))
		return 1
	}
	return 0
}

// application holds the wired components of one CLI process
type application struct {
	cfg     *config.Config
	opts    options
	log     *zap.Logger
	closers []func(context.Context)

	reconciler *integrationapp.ReconciliationService
	batch      *integrationapp.BatchImportService
	override   *pricing.PolicyOverride
	reconcile  integrationapp.ReconcileOptions
}

func newApplication(ctx context.Context, cfg *config.Config, opts options) (*application, error) {
	logCfg := &logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	app := &application{cfg: cfg, opts: opts, log: log}
	app.onClose(func(context.Context) { _ = app.log.Sync() })

	// Log export needs a provider before the final logger can be built
	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return nil, err
	}
	if lp.IsEnabled() {
		core := telemetry.NewZapOTELCore(lp, cfg.Telemetry.ServiceName, logger.ParseLevel(cfg.Log.Level))
		if app.log, err = logger.New(logCfg, core); err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
	}
	app.onClose(func(ctx context.Context) { logShutdown(log, "logger provider", lp.Shutdown(ctx)) })
	log = app.log

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return nil, err
	}
	app.onClose(func(ctx context.Context) { logShutdown(log, "tracer provider", tp.Shutdown(ctx)) })

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.ExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return nil, err
	}
	app.onClose(func(ctx context.Context) {
		logShutdown(log, "meter flush", mp.ForceFlush(ctx))
		logShutdown(log, "meter provider", mp.Shutdown(ctx))
	})

	metrics, err := telemetry.NewReconcileMetrics(mp.Meter(instrumentationName))
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	policy, err := cfg.Pricing.Policy()
	if err != nil {
		return nil, err
	}
	if opts.margin != "" {
		margin, err := decimal.NewFromString(opts.margin)
		if err != nil {
			return nil, fmt.Errorf("invalid -margin %q: %w", opts.margin, err)
		}
		app.override = &pricing.PolicyOverride{Margin: &margin}
		if err := policy.Merge(app.override).Validate(); err != nil {
			return nil, fmt.Errorf("invalid -margin %q: %w", opts.margin, err)
		}
	}
	app.reconcile = integrationapp.ReconcileOptions{
		UpdateImages: opts.updateImages.resolve(cfg.Feed.UpdateImages),
		UpdateVideo:  opts.updateVideo.resolve(cfg.Feed.UpdateVideo),
		UpdatePrice:  opts.updatePrice.resolve(cfg.Feed.UpdatePrice),
		Policy:       app.override,
	}

	if opts.dryRun {
		// Quotes never touch the store
		app.reconciler = integrationapp.NewReconciliationService(nil, policy, cfg.Catalog.Capabilities(), log,
			integrationapp.WithMetrics(metrics),
			integrationapp.WithTracer(tp.Tracer(instrumentationName)),
		)
		return app, nil
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Database.SlowQueryThresh))
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithGormLogger(gormLog))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to catalog store: %w", err)
	}
	app.onClose(func(context.Context) { logShutdown(log, "database", db.Close()) })

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		DBName:          cfg.Database.DBName,
		SlowQueryThresh: cfg.Database.SlowQueryThresh,
	}, log); err != nil {
		return nil, fmt.Errorf("failed to register database tracing: %w", err)
	}

	// Postgres schemas are owned by cmd/migrate
	if cfg.Database.Driver == "sqlite" {
		if err := db.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("failed to migrate sqlite store: %w", err)
		}
	}
	log.Info("Catalog store connected", zap.String("driver", cfg.Database.Driver))

	ledger, err := cache.NewLedgerFactory(cfg.Redis, cache.WithLogger(log)).Create(ctx)
	if err != nil {
		return nil, err
	}
	app.onClose(func(context.Context) { logShutdown(log, "feed ledger", ledger.Close()) })

	bus := event.NewInMemoryEventBus(log)
	bus.Subscribe(integrationapp.NewCatalogAuditHandler(log))

	app.reconciler = integrationapp.NewReconciliationService(
		persistence.NewGormProductRepository(db.DB),
		policy,
		cfg.Catalog.Capabilities(),
		log,
		integrationapp.WithEventPublisher(bus),
		integrationapp.WithMetrics(metrics),
		integrationapp.WithTracer(tp.Tracer(instrumentationName)),
	)
	app.batch = integrationapp.NewBatchImportService(app.reconciler, ledger, log).
		WithLedgerTTL(cfg.Feed.LedgerTTL)

	return app, nil
}

func (a *application) onClose(fn func(context.Context)) {
	a.closers = append(a.closers, fn)
}

// close releases components in reverse construction order
func (a *application) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i](ctx)
	}
}

func (a *application) runOnce(ctx context.Context, runID string) error {
	ctx, log := logger.WithRunID(ctx, a.log, runID)

	path := firstNonEmpty(a.opts.feedPath, a.cfg.Feed.Path)
	if path == "" {
		return errors.New("no feed given; pass -feed or set feed.path")
	}
	format := a.opts.format
	if format == "" {
		format = feed.DetectFormat(path, a.cfg.Feed.Format)
	}

	products, err := feed.ReadFile(path, format)
	if err != nil {
		return fmt.Errorf("failed to read feed %s: %w", path, err)
	}
	log.Info("Feed loaded",
		zap.String("path", path),
		zap.String("format", format),
		zap.Int("products", len(products)),
		zap.Bool("dry_run", a.opts.dryRun),
	)

	if a.opts.dryRun {
		quotes := quoteAll(a.reconciler, products, a.override)
		return printQuotes(os.Stdout, a.opts.output, quotes)
	}

	result := a.batch.ImportAll(ctx, runID, products, a.reconcile)
	log.Info("Feed run summary",
		zap.Int("total", result.Total),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
		zap.Int("anomalies", result.Anomalies),
		zap.Duration("duration", result.Duration),
	)
	return printSummary(os.Stdout, a.opts.output, result)
}

func (a *application) runScheduled(ctx context.Context, schedule string) int {
	s, err := scheduler.NewFeedScheduler(scheduler.Config{
		Schedule:   schedule,
		RunTimeout: a.cfg.Feed.RunTimeout,
	}, a.runOnce, a.log)
	if err != nil {
		a.log.Error("Invalid feed schedule", zap.String("schedule", schedule), zap.Error(err))
		return 1
	}
	if err := s.Start(ctx); err != nil {
		a.log.Error("Failed to start scheduler", zap.Error(err))
		return 1
	}
	a.log.Info("Waiting for scheduled feed runs",
		zap.String("schedule", schedule),
		zap.Time("next_run", s.Next(time.Now())),
	)

	<-ctx.Done()
	a.log.Info("Shutting down scheduler")

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		a.log.Warn("Scheduler did not stop cleanly", zap.Error(err))
		return 1
	}
	return 0
}

func logShutdown(log *zap.Logger, name string, err error) {
	if err != nil {
		log.Warn("Failed to shut down "+name, zap.Error(err))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

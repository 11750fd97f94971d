// Package scheduler runs feed reconciliation on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ErrAlreadyRunning is returned by Start on a running scheduler
var ErrAlreadyRunning = errors.New("scheduler already running")

// cronParser accepts standard five-field specs, an optional leading seconds
// field, and descriptors such as @hourly or @every 30m
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Job is one scheduled feed run. runID is unique per invocation.
type Job func(ctx context.Context, runID string) error

// Config holds the schedule settings
type Config struct {
	Schedule string
	// RunTimeout bounds a single run; zero means no limit
	RunTimeout time.Duration
}

// FeedScheduler triggers a Job on a cron schedule. Overlapping triggers are
// skipped while a run is still in progress.
type FeedScheduler struct {
	cfg    Config
	job    Job
	logger *zap.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

// ParseSchedule validates a schedule expression
func ParseSchedule(spec string) (cron.Schedule, error) {
	s, err := cronParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

// NewFeedScheduler creates a scheduler for job
func NewFeedScheduler(cfg Config, job Job, logger *zap.Logger) (*FeedScheduler, error) {
	if _, err := ParseSchedule(cfg.Schedule); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedScheduler{cfg: cfg, job: job, logger: logger}, nil
}

// Start begins triggering the job. The context bounds every run.
func (s *FeedScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	cl := cronLogger{s.logger}
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		cron.WithLogger(cl),
	)
	if _, err := c.AddFunc(s.cfg.Schedule, s.trigger); err != nil {
		return fmt.Errorf("failed to schedule feed run: %w", err)
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron = c
	s.running = true
	c.Start()

	s.logger.Info("Feed scheduler started",
		zap.String("schedule", s.cfg.Schedule),
		zap.Duration("run_timeout", s.cfg.RunTimeout),
	)
	return nil
}

// Stop stops triggering and waits for an in-flight run, or for ctx
func (s *FeedScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	done := s.cron.Stop()
	cancel := s.cancel
	s.mu.Unlock()

	select {
	case <-done.Done():
		cancel()
		s.logger.Info("Feed scheduler stopped")
		return nil
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}

// RunNow executes the job once on the calling goroutine
func (s *FeedScheduler) RunNow(ctx context.Context) error {
	return s.run(ctx)
}

// Next returns the next trigger time after now
func (s *FeedScheduler) Next(now time.Time) time.Time {
	sched, _ := cronParser.Parse(s.cfg.Schedule)
	return sched.Next(now)
}

func (s *FeedScheduler) trigger() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	if err := s.run(ctx); err != nil {
		s.logger.Error("Scheduled feed run failed", zap.Error(err))
	}
}

func (s *FeedScheduler) run(ctx context.Context) error {
	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}
	runID := uuid.NewString()
	start := time.Now()
	s.logger.Info("Feed run started", zap.String("run_id", runID))

	err := s.job(ctx, runID)

	s.logger.Info("Feed run finished",
		zap.String("run_id", runID),
		zap.Duration("duration", time.Since(start)),
		zap.Bool("success", err == nil),
	)
	return err
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}

// Package scheduler refreshes known map feeds in the background.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Refresher is implemented by domain.MapService.
type Refresher interface {
	RefreshAll(ctx context.Context) error
}

// Scheduler runs Refresher.RefreshAll on a cron schedule. Overlapping runs are skipped.
type Scheduler struct {
	cron      *cron.Cron
	refresher Refresher
	logger    *slog.Logger
	timeout   time.Duration
}

// New parses spec (standard 5-field cron or a descriptor such as "@every 2m") and registers the refresh job.
// timeout bounds a single run; zero means no limit.
func New(spec string, refresher Refresher, logger *slog.Logger, timeout time.Duration) (*Scheduler, error) {
	cl := cronLogger{logger: logger}
	s := &Scheduler{
		cron:      cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		refresher: refresher,
		logger:    logger,
		timeout:   timeout,
	}
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins running the schedule in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("refresh scheduler started", "next", s.cron.Entries()[0].Next)
}

// Stop stops the schedule and waits for a running refresh to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce refreshes every known feed now.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	if err := s.refresher.RefreshAll(ctx); err != nil {
		s.logger.Error("scheduled refresh failed", "err", err, "duration_ms", time.Since(start).Milliseconds())
		return
	}
	s.logger.Debug("scheduled refresh done", "duration_ms", time.Since(start).Milliseconds())
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}

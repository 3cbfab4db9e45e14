/*
scheduler.go - Month rollover snapshot scheduler

PURPOSE:
  Periodically pins the current month's tier table. Without it a month is
  only pinned by its first rule read or write, so an edit made before
  anyone looked would silently rewrite that month's history.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each tick calls Engine.EnsureSnapshot(CurrentMonth); months that are
    already pinned are left alone
  - Runs once immediately on Start

USAGE:
  scheduler := NewSnapshotScheduler(engine, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - payroll/engine.go: EnsureSnapshot
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dexsystem/coachpay/payroll"
)

// SnapshotScheduler captures the current month's rules on a timer.
type SnapshotScheduler struct {
	Engine        *payroll.Engine
	CheckInterval time.Duration
	Enabled       bool
	Logger        *slog.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSnapshotScheduler creates a scheduler with a one hour interval.
func NewSnapshotScheduler(engine *payroll.Engine, logger *slog.Logger) *SnapshotScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotScheduler{
		Engine:        engine,
		CheckInterval: time.Hour,
		Enabled:       true,
		Logger:        logger.With(slog.String("component", "snapshot_scheduler")),
	}
}

// Start begins the scheduler. Calling Start twice is a no-op.
func (s *SnapshotScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Logger.Info("disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker, s.stop)

	s.Logger.Info("started", slog.Duration("interval", s.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight check.
func (s *SnapshotScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	s.Logger.Info("stopped")
}

func (s *SnapshotScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	s.CheckNow(context.Background())

	for {
		select {
		case <-ticker.C:
			s.CheckNow(context.Background())
		case <-stop:
			return
		}
	}
}

// CheckNow pins the current month if needed. captured reports whether a
// snapshot was written.
func (s *SnapshotScheduler) CheckNow(ctx context.Context) (captured bool) {
	month := s.Engine.CurrentMonth()
	captured, err := s.Engine.EnsureSnapshot(ctx, month)
	if err != nil {
		s.Logger.ErrorContext(ctx, "snapshot check failed",
			slog.String("month", month.String()),
			slog.Any("error", err),
		)
		return false
	}
	return captured
}

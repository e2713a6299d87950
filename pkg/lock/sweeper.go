package lock

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/snaplock/pkg/observability"
)

// Sweeper runs scheduled maintenance on a table: expiring overdue
// holders and purging terminal locks past retention. The table is
// correct without it; the sweeper frees memory and makes expiry
// events prompt instead of access-driven.
type Sweeper struct {
	table    *Table
	schedule string
	cron     *cron.Cron
	logger   *observability.Logger

	onSweep func(expired, purged int)

	mu      sync.Mutex
	running bool
}

// NewSweeper creates a sweeper on the given cron schedule, for example
// "@every 30s" or "*/5 * * * *". logger may be nil.
func NewSweeper(table *Table, schedule string, logger *observability.Logger) *Sweeper {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, os.Stdout)
	}
	return &Sweeper{
		table:    table,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger,
	}
}

// OnSweep registers a callback invoked after each scheduled sweep with
// that cycle's expired and purged counts. Set it before Start.
func (s *Sweeper) OnSweep(fn func(expired, purged int)) {
	s.onSweep = fn
}

// Start begins scheduled sweeping. An empty schedule disables the
// sweeper. The sweeper stops when ctx is cancelled or Stop is called.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("sweep schedule not configured, skipping sweeper")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, s.runSweep); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.WithField("schedule", s.schedule).Info("lock sweeper started")

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Sweep runs one maintenance cycle immediately, independent of the
// schedule. It returns the number of expired and purged locks.
func (s *Sweeper) Sweep() (expired, purged int) {
	expired = len(s.table.ExpireStale())
	purged = s.table.Purge()
	return expired, purged
}

func (s *Sweeper) runSweep() {
	defer observability.RecoverPanic(s.logger, "lock sweep")

	expired, purged := s.Sweep()
	if s.onSweep != nil {
		s.onSweep(expired, purged)
	}
	if expired > 0 || purged > 0 {
		s.logger.WithFields(map[string]interface{}{
			"expired": expired,
			"purged":  purged,
		}).Info("sweep completed")
		return
	}
	s.logger.Debug("sweep completed, nothing to do")
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("lock sweeper stopped")
	}
}

// IsRunning reports whether the schedule is active.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

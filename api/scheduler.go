/*
scheduler.go - Optional automated period closing

PURPOSE:
  Periodically checks whether the previous calendar biweekly window has
  elapsed without being closed, and closes it. This removes the "admin
  forgot to click close" failure mode without changing the close path:
  the scheduler goes through the same idempotent Closer the admin
  endpoint uses, so a manual close and an automatic close can never
  double-apply.

DESIGN:
  - Background goroutine with a configurable check interval
  - Closes the window containing (start of current window - 1 day),
    i.e. always the most recently elapsed biweekly window
  - Already-closed windows are no-ops by construction
  - Disabled by default; enabled with the -autoclose flag

USAGE:
  s := NewAutoCloseScheduler(closer, logger)
  s.Start()
  defer s.Stop()

SEE ALSO:
  - engine/closer.go: The close state machine
  - handlers.go: ClosePeriod (manual close endpoint)
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/apex/activity-engine/engine"
)

// AutoCloseScheduler closes elapsed biweekly periods in the background.
type AutoCloseScheduler struct {
	Closer        *engine.Closer
	Logger        *zap.Logger
	CheckInterval time.Duration

	// Now supplies "today"; swapped out in tests.
	Now func() engine.Date

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewAutoCloseScheduler creates a scheduler with a 1 hour check interval.
func NewAutoCloseScheduler(closer *engine.Closer, logger *zap.Logger) *AutoCloseScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AutoCloseScheduler{
		Closer:        closer,
		Logger:        logger,
		CheckInterval: time.Hour,
		Now:           engine.Today,
		stop:          make(chan struct{}),
	}
}

// Start begins the background loop.
func (s *AutoCloseScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)
	go s.run()

	s.Logger.Info("auto-close scheduler started", zap.Duration("interval", s.CheckInterval))
}

// Stop stops the scheduler and waits for the loop to exit.
func (s *AutoCloseScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.Logger.Info("auto-close scheduler stopped")
	}
}

func (s *AutoCloseScheduler) run() {
	defer s.wg.Done()

	// Run immediately on start, then on the ticker.
	s.CloseElapsed(context.Background())

	for {
		select {
		case <-s.ticker.C:
			s.CloseElapsed(context.Background())
		case <-s.stop:
			return
		}
	}
}

// CloseElapsed closes the most recently elapsed biweekly window. Safe
// to call at any time; closing an already-closed window is a no-op.
func (s *AutoCloseScheduler) CloseElapsed(ctx context.Context) {
	today := s.Now()

	// The day before the current window started falls inside the
	// previous window, whatever its length was.
	previous := engine.RangeFor(engine.PeriodBiweekly, today).Start.AddDays(-1)

	result, err := s.Closer.CloseBiweekly(ctx, previous, engine.UserIdentity{
		ID: "system", Name: "system", IsAdmin: true,
	})
	if err != nil {
		s.Logger.Error("auto-close failed", zap.Error(err))
		return
	}
	if !result.AlreadyClosed {
		s.Logger.Info("auto-closed elapsed period",
			zap.String("start", result.Period.Start.String()),
			zap.String("end", result.Period.End.String()),
			zap.Int("ranked_users", len(result.Entries)),
		)
	}
}

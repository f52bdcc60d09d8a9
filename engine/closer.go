/*
closer.go - The close-period state machine

PURPOSE:
  Closing a period freezes its ranking into an immutable snapshot.
  The lifecycle is NO_PERIOD_RECORD -> OPEN -> CLOSED; OPEN -> CLOSED is
  the only write transition and it is terminal.

OPERATION (CloseBiweekly):
  1. Authorization: only admins may close
  2. Resolve the current calendar biweekly window
  3. Get-or-create the Period keyed by (BIWEEKLY, start, end)
  4. Already closed -> return the existing snapshot unchanged (no-op)
  5. Aggregate activities in range, rank, then delete-then-insert the
     ranking rows and flip the closed flag in ONE store transaction

IDEMPOTENCY & RACES:
  Closing twice never re-ranks or duplicates rows. Two concurrent closes
  are serialized by a per-closer mutex; the store additionally re-checks
  the closed flag inside the transaction (CloseOpenPeriod returns
  ErrPeriodClosedConflict), so even closers in separate processes
  sharing one database converge: one writes, the other reads the
  existing snapshot.

FAILURE:
  Any persistence failure leaves the period OPEN with the snapshot
  untouched or partially replaced-but-unclosed only inside the aborted
  transaction - never CLOSED with incomplete rows. The error unwraps to
  ErrSnapshotFailed, which IsRetryable reports true for.
*/
package engine

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Closer performs the idempotent close-period operation.
type Closer struct {
	Activities ActivityStore
	Periods    PeriodStore
	Logger     *zap.Logger

	mu sync.Mutex // serializes closes within this process
}

// NewCloser wires a Closer. A nil logger is replaced with a no-op one.
func NewCloser(activities ActivityStore, periods PeriodStore, logger *zap.Logger) *Closer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Closer{Activities: activities, Periods: periods, Logger: logger}
}

// CloseResult is the outcome of a close operation. AlreadyClosed is true
// when the period had been closed before this call (idempotent no-op).
type CloseResult struct {
	Period        *Period
	Entries       []RankingEntry
	AlreadyClosed bool
}

// CloseBiweekly closes the calendar biweekly period containing today.
// Non-admin actors get ErrForbidden. See the file header for the full
// state machine.
func (c *Closer) CloseBiweekly(ctx context.Context, today Date, actor UserIdentity) (*CloseResult, error) {
	if !actor.IsAdmin {
		return nil, ErrForbidden
	}
	return c.close(ctx, PeriodBiweekly, RangeFor(PeriodBiweekly, today))
}

func (c *Closer) close(ctx context.Context, t PeriodType, r DateRange) (*CloseResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	period, err := c.Periods.GetOrCreatePeriod(ctx, t, r)
	if err != nil {
		return nil, &SnapshotError{PeriodType: t, Range: r, Cause: err}
	}

	if period.Closed {
		return c.existingSnapshot(ctx, period)
	}

	activities, err := c.Activities.ActivitiesInRange(ctx, r)
	if err != nil {
		return nil, &SnapshotError{PeriodType: t, Range: r, Cause: err}
	}

	ranking := BuildRanking(Aggregate(activities))
	entries := ranking.Entries(period.ID)

	if err := c.Periods.CloseOpenPeriod(ctx, period.ID, entries); err != nil {
		if errors.Is(err, ErrPeriodClosedConflict) {
			// Lost a cross-process race; the winner's snapshot stands.
			return c.existingSnapshot(ctx, period)
		}
		return nil, &SnapshotError{PeriodType: t, Range: r, Cause: err}
	}

	c.Logger.Info("period closed",
		zap.String("type", string(t)),
		zap.String("start", r.Start.String()),
		zap.String("end", r.End.String()),
		zap.Int("ranked_users", len(entries)),
	)

	// Re-read so the result carries the store's closed flag and
	// timestamp, not a locally patched copy.
	closed, err := c.Periods.GetPeriod(ctx, period.ID)
	if err != nil {
		return nil, &SnapshotError{PeriodType: t, Range: r, Cause: err}
	}
	return &CloseResult{Period: closed, Entries: entries}, nil
}

// existingSnapshot re-reads a closed period and its frozen rows.
func (c *Closer) existingSnapshot(ctx context.Context, period *Period) (*CloseResult, error) {
	fresh, err := c.Periods.GetPeriod(ctx, period.ID)
	if err != nil {
		return nil, &SnapshotError{PeriodType: period.Type, Range: DateRange{Start: period.Start, End: period.End}, Cause: err}
	}
	entries, err := c.Periods.RankingEntries(ctx, period.ID)
	if err != nil {
		return nil, &SnapshotError{PeriodType: period.Type, Range: DateRange{Start: period.Start, End: period.End}, Cause: err}
	}
	return &CloseResult{Period: fresh, Entries: entries, AlreadyClosed: true}, nil
}

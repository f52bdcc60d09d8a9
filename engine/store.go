/*
store.go - Persistence interfaces consumed by the engine

PURPOSE:
  Defines the contracts between the engine and its external
  collaborators: the activity store, the user-identity provider, and the
  period/snapshot store. Different implementations back these with
  SQLite (store/sqlite) or memory (engine/store, tests).

CLOSE-PERIOD ATOMICITY:
  PeriodStore.CloseOpenPeriod is the one write path with a consistency
  requirement: replacing the ranking rows and flipping the closed flag
  must happen in a single transaction, and a period that is already
  closed must be rejected inside that same transaction. Implementations
  that cannot provide this must not implement the interface.

SEE ALSO:
  - closer.go: The only consumer of CloseOpenPeriod
  - store/sqlite/sqlite.go: Production implementation
  - engine/store/memory.go: In-memory implementation for tests
*/
package engine

import (
	"context"
	"errors"
)

// =============================================================================
// ACTIVITY STORE - Read/append access to logged activities
// =============================================================================

// HistoryFilter narrows an activity query. Zero values mean "no filter".
// Range is a pointer so "whole history" is expressible.
type HistoryFilter struct {
	Range  *DateRange
	UserID UserID
	TeamID TeamID
}

// ActivityStore is the activity-logging collaborator. Activities come
// back joined with their type and owning user (the aggregator's input
// shape), ordered by date desc then creation desc for history views.
type ActivityStore interface {
	// ActivitiesInRange returns all activities with Date in [from, to].
	ActivitiesInRange(ctx context.Context, r DateRange) ([]Activity, error)

	// ActivitiesFiltered returns activities matching the filter.
	ActivitiesFiltered(ctx context.Context, f HistoryFilter) ([]Activity, error)

	// SaveActivity appends a new immutable activity record.
	SaveActivity(ctx context.Context, a Activity) error

	// ListActivityTypes returns the reference data.
	ListActivityTypes(ctx context.Context) ([]ActivityType, error)

	// GetActivityType returns one activity type, or ErrActivityTypeNotFound.
	GetActivityType(ctx context.Context, id ActivityTypeID) (*ActivityType, error)
}

// =============================================================================
// IDENTITY PROVIDER - The caller's identity collaborator
// =============================================================================

// IdentityProvider resolves user identities. The engine reads id, name,
// team and the admin/active flags; everything else about users is out of
// scope.
type IdentityProvider interface {
	// GetUser returns a user, or ErrUserNotFound.
	GetUser(ctx context.Context, id UserID) (*UserIdentity, error)

	// ListUsers returns all users.
	ListUsers(ctx context.Context) ([]UserIdentity, error)
}

// =============================================================================
// PERIOD STORE - Period records and ranking snapshots
// =============================================================================

// PeriodStore persists Period records and their ranking snapshots.
type PeriodStore interface {
	// GetOrCreatePeriod returns the period keyed by (type, start, end),
	// creating it open if absent. Concurrent callers for the same key
	// must converge on a single record.
	GetOrCreatePeriod(ctx context.Context, t PeriodType, r DateRange) (*Period, error)

	// GetPeriod returns a period by id, or ErrPeriodNotFound.
	GetPeriod(ctx context.Context, id PeriodID) (*Period, error)

	// ListPeriods returns periods of the given type, newest first.
	// An empty type lists all.
	ListPeriods(ctx context.Context, t PeriodType) ([]Period, error)

	// RankingEntries returns a period's snapshot rows ordered by
	// position, with user name/team joined in.
	RankingEntries(ctx context.Context, id PeriodID) ([]RankingEntry, error)

	// CloseOpenPeriod atomically deletes any prior ranking rows for the
	// period, inserts the given rows, and marks the period closed.
	// Returns ErrPeriodClosedConflict if the period was already closed
	// when the transaction ran; the caller treats that as "lost the
	// race" and re-reads the existing snapshot.
	CloseOpenPeriod(ctx context.Context, id PeriodID, entries []RankingEntry) error
}

// ErrPeriodClosedConflict signals that CloseOpenPeriod observed an
// already-closed period inside its transaction. Not an error condition
// for callers; it is the idempotent no-op branch.
var ErrPeriodClosedConflict = errors.New("period already closed")

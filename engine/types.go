/*
Package engine provides the core activity aggregation and ranking engine.

PURPOSE:
  This package contains the domain types and algorithms for a gamified
  activity tracker: resolving reporting periods into date ranges,
  aggregating raw activity records into per-user point totals, ranking
  users, and closing periods into immutable ranking snapshots.

KEY CONCEPTS IN THIS FILE (types.go):
  - Activity: An immutable activity record joined with its type and owner
  - ActivityType: Reference data mapping an activity name to a point value
  - UserStat: Per-user aggregate (points, count, category breakdown)
  - Period: A bounded date range that can be closed exactly once
  - RankingEntry: One persisted row of a closed period's snapshot

DESIGN PRINCIPLES:
  1. Immutability: Activities are never modified; closed snapshots never change
  2. Determinism: "today" is always an explicit argument, never the ambient clock
  3. Type Safety: Strong typing for IDs prevents mixing user/period/type IDs

SEE ALSO:
  - period.go: Period code to date range resolution
  - aggregate.go: Activity aggregation
  - ranking.go: Ranking construction and position lookup
  - closer.go: The close-period state machine
*/
package engine

import (
	"strings"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type ActivityID string
type ActivityTypeID string
type PeriodID string
type TeamID string

// =============================================================================
// REFERENCE DATA
// =============================================================================

// ActivityType maps an activity name to its point value.
// Point values may carry any sign; negative values decrease totals.
type ActivityType struct {
	ID     ActivityTypeID
	Name   string
	Points int
}

// Category returns the lowercase-normalized name used for breakdown
// grouping, so "Commit" and "commit" accumulate into the same bucket.
func (t ActivityType) Category() string {
	return strings.ToLower(t.Name)
}

// UserRef is the slice of a user's identity the engine needs for
// aggregation and rendering: id, display name, team name.
type UserRef struct {
	ID   UserID
	Name string
	Team string
}

// UserIdentity is the authenticated caller contract. The engine only
// reads ID, name, team and the admin flag; authentication mechanics
// belong to the surrounding layer.
type UserIdentity struct {
	ID       UserID
	Name     string
	TeamID   TeamID
	TeamName string
	IsActive bool
	IsAdmin  bool
}

// Ref projects the identity down to the fields aggregation carries.
func (u UserIdentity) Ref() UserRef {
	return UserRef{ID: u.ID, Name: u.Name, Team: u.TeamName}
}

// =============================================================================
// ACTIVITY - Immutable record of one logged activity
// =============================================================================

// Activity is an activity record joined with its type and owning user,
// the shape the aggregator consumes. Records are immutable once created.
type Activity struct {
	ID        ActivityID
	User      UserRef
	Type      ActivityType
	Date      Date
	Evidence  string
	CreatedAt time.Time
}

// =============================================================================
// AGGREGATE - Transient per-user totals (never persisted)
// =============================================================================

// UserStat accumulates one user's totals over a date range.
type UserStat struct {
	User             UserRef
	TotalPoints      int
	ActivityCount    int
	PointsByCategory map[string]int
}

// =============================================================================
// PERIOD - A bounded date range with a one-way open -> closed lifecycle
// =============================================================================

type PeriodType string

const (
	PeriodDaily    PeriodType = "daily"
	PeriodWeekly   PeriodType = "weekly"
	PeriodBiweekly PeriodType = "biweekly"
)

// Period is uniquely identified by (Type, Start, End). Closed transitions
// false -> true exactly once and never reverses.
type Period struct {
	ID       PeriodID
	Type     PeriodType
	Start    Date
	End      Date
	Closed   bool
	ClosedAt time.Time
}

// RankingEntry is one persisted row of a closed period's snapshot.
// Positions are dense and 1-based. UserName/Team are joined in on read;
// only the identifiers and totals are stored.
type RankingEntry struct {
	PeriodID        PeriodID
	Position        int
	UserID          UserID
	UserName        string
	Team            string
	TotalPoints     int
	TotalActivities int
}

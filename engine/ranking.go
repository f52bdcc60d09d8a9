/*
ranking.go - Ranking construction and position lookup

PURPOSE:
  Orders aggregated per-user totals into a ranking with dense 1-based
  positions and an O(1) self-position lookup.

TIE-BREAK:
  Descending total points, then ascending user id. The upstream behavior
  left ties order-dependent (stable sort over map iteration); the user-id
  tie-break is pinned here so results are reproducible.

UNRANKED:
  A user with no qualifying activity has no row. Position reports the
  Unranked sentinel for them - absence is an expected state, not an error.
*/
package engine

import "sort"

// Unranked is the position reported for a user with no activity in range.
const Unranked = -1

// RankingRow is one rendered row of a ranking.
type RankingRow struct {
	Position      int
	User          UserRef
	TotalPoints   int
	ActivityCount int
}

// Ranking is an ordered leaderboard with self-position lookup.
type Ranking struct {
	Rows []RankingRow

	byUser map[UserID]int // user -> index into Rows
}

// BuildRanking sorts aggregated stats into a ranking: descending by
// total points, ascending user id on ties, positions dense and 1-based.
func BuildRanking(stats map[UserID]*UserStat) *Ranking {
	rows := make([]RankingRow, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, RankingRow{
			User:          s.User,
			TotalPoints:   s.TotalPoints,
			ActivityCount: s.ActivityCount,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TotalPoints != rows[j].TotalPoints {
			return rows[i].TotalPoints > rows[j].TotalPoints
		}
		return rows[i].User.ID < rows[j].User.ID
	})

	r := &Ranking{Rows: rows, byUser: make(map[UserID]int, len(rows))}
	for i := range r.Rows {
		r.Rows[i].Position = i + 1
		r.byUser[r.Rows[i].User.ID] = i
	}
	return r
}

// Position returns the 1-based rank of the user, or Unranked if the
// user has no row.
func (r *Ranking) Position(id UserID) int {
	if i, ok := r.byUser[id]; ok {
		return r.Rows[i].Position
	}
	return Unranked
}

// Row returns the user's row, or nil if unranked.
func (r *Ranking) Row(id UserID) *RankingRow {
	if i, ok := r.byUser[id]; ok {
		return &r.Rows[i]
	}
	return nil
}

// Len returns the number of ranked users.
func (r *Ranking) Len() int { return len(r.Rows) }

// Entries materializes the ranking as persistable snapshot rows for the
// given period.
func (r *Ranking) Entries(periodID PeriodID) []RankingEntry {
	entries := make([]RankingEntry, len(r.Rows))
	for i, row := range r.Rows {
		entries[i] = RankingEntry{
			PeriodID:        periodID,
			Position:        row.Position,
			UserID:          row.User.ID,
			UserName:        row.User.Name,
			Team:            row.User.Team,
			TotalPoints:     row.TotalPoints,
			TotalActivities: row.ActivityCount,
		}
	}
	return entries
}

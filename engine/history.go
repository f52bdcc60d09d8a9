/*
history.go - Activity history query shaping

PURPOSE:
  Turns the raw filter vocabulary of the history surfaces (period code
  OR custom start/end, optional user, optional team) into a
  HistoryFilter for the activity store, applying the documented
  silent-drop policy for unparseable custom ranges.
*/
package engine

import "context"

// HistoryParams is the unvalidated filter input from a history request.
type HistoryParams struct {
	PeriodCode string
	Start      string // YYYY-MM-DD, custom range
	End        string
	UserID     UserID
	TeamID     TeamID
}

// BuildHistoryFilter resolves params into a store filter. A recognized
// period code wins over a custom range; a custom range that fails to
// parse is dropped, leaving the query unbounded in time (the documented
// leniency - the request still succeeds).
func BuildHistoryFilter(p HistoryParams, today Date) HistoryFilter {
	f := HistoryFilter{UserID: p.UserID, TeamID: p.TeamID}
	if r, ok := ResolveRange(p.PeriodCode, today, p.Start, p.End); ok {
		f.Range = &r
	}
	return f
}

// History returns activities matching the params, newest first (the
// store orders by date desc, created_at desc).
func History(ctx context.Context, store ActivityStore, p HistoryParams, today Date) ([]Activity, error) {
	return store.ActivitiesFiltered(ctx, BuildHistoryFilter(p, today))
}

/*
Package cache provides an optional Redis-backed live leaderboard.

PURPOSE:
  Keeps a running points total per user in a Redis sorted set keyed by
  period window, incremented as activities are logged. This gives the
  UI a cheap "live" leaderboard read without re-aggregating, at the
  cost of being approximate: the SQL aggregation remains the source of
  truth, and closed-period snapshots never come from here.

BEST EFFORT:
  Every method tolerates a nil client (cache disabled) and logs-and-
  continues on Redis errors. A cache failure must never fail the
  request that triggered it.

KEYS:
  leaderboard:<period-type>:<window-start>   e.g. leaderboard:biweekly:2026-08-16
*/
package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/apex/activity-engine/engine"
)

// Leaderboard is the Redis live-leaderboard adapter.
type Leaderboard struct {
	client *redis.Client
	logger *zap.Logger
}

// New wires the adapter. A nil client produces a disabled (no-op)
// leaderboard, which keeps call sites branch-free.
func New(client *redis.Client, logger *zap.Logger) *Leaderboard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Leaderboard{client: client, logger: logger}
}

// Enabled reports whether a Redis client is configured.
func (l *Leaderboard) Enabled() bool { return l != nil && l.client != nil }

// Key returns the sorted-set key for a period window.
func Key(t engine.PeriodType, windowStart engine.Date) string {
	return fmt.Sprintf("leaderboard:%s:%s", t, windowStart)
}

// windowKeys returns the daily/weekly/biweekly keys an activity on the
// given date contributes to.
func windowKeys(date engine.Date) []string {
	return []string{
		Key(engine.PeriodDaily, engine.RangeFor(engine.PeriodDaily, date).Start),
		Key(engine.PeriodWeekly, engine.RangeFor(engine.PeriodWeekly, date).Start),
		Key(engine.PeriodBiweekly, engine.RangeFor(engine.PeriodBiweekly, date).Start),
	}
}

// RecordActivity increments the user's live score in every period window
// the activity date falls into. Errors are logged, never returned.
func (l *Leaderboard) RecordActivity(ctx context.Context, userID engine.UserID, date engine.Date, points int) {
	if !l.Enabled() {
		return
	}

	pipe := l.client.Pipeline()
	for _, key := range windowKeys(date) {
		pipe.ZIncrBy(ctx, key, float64(points), string(userID))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Warn("live leaderboard increment failed", zap.Error(err))
	}
}

// Entry is one live leaderboard row.
type Entry struct {
	UserID engine.UserID
	Points int
}

// Top reads the highest-scoring users for the window containing today.
// Returns (nil, false) when the cache is disabled, unreachable, or cold
// for this window, in which case the caller falls back to SQL
// aggregation.
func (l *Leaderboard) Top(ctx context.Context, t engine.PeriodType, today engine.Date, n int64) ([]Entry, bool) {
	if !l.Enabled() {
		return nil, false
	}

	key := Key(t, engine.RangeFor(t, today).Start)
	zs, err := l.client.ZRevRangeWithScores(ctx, key, 0, n-1).Result()
	if err != nil {
		l.logger.Warn("live leaderboard read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if len(zs) == 0 {
		// A cold window (key never written) is indistinguishable from a
		// genuinely empty one; report a miss so the caller re-aggregates.
		return nil, false
	}

	entries := make([]Entry, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		entries = append(entries, Entry{UserID: engine.UserID(member), Points: int(z.Score)})
	}
	return entries, true
}

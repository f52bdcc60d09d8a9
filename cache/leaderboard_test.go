package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/apex/activity-engine/cache"
	"github.com/apex/activity-engine/engine"
)

func newTestLeaderboard(t *testing.T) *cache.Leaderboard {
	t.Helper()
	srv := miniredis.RunT(t)
	return cache.New(redis.NewClient(&redis.Options{Addr: srv.Addr()}), nil)
}

func TestKey_PeriodWindowStart(t *testing.T) {
	// GIVEN: A date in the second August half
	start := engine.RangeFor(engine.PeriodBiweekly, engine.NewDate(2026, time.August, 20)).Start

	// WHEN/THEN: The key carries the period type and the window start
	if got := cache.Key(engine.PeriodBiweekly, start); got != "leaderboard:biweekly:2026-08-16" {
		t.Errorf("unexpected key %q", got)
	}
}

func TestKey_SameWindowSameKey(t *testing.T) {
	// GIVEN: Two dates inside one weekly window
	a := engine.RangeFor(engine.PeriodWeekly, engine.NewDate(2026, time.March, 10)).Start
	b := engine.RangeFor(engine.PeriodWeekly, engine.NewDate(2026, time.March, 13)).Start

	// THEN: Their scores land in the same sorted set
	if cache.Key(engine.PeriodWeekly, a) != cache.Key(engine.PeriodWeekly, b) {
		t.Error("dates in one window must share a key")
	}
}

func TestTop_ColdWindowReportsMiss(t *testing.T) {
	// GIVEN: A reachable cache that has never seen this window
	l := newTestLeaderboard(t)
	today := engine.NewDate(2026, time.March, 10)

	if !l.Enabled() {
		t.Fatal("cache with a client must report enabled")
	}

	// WHEN/THEN: The read is a miss, not an empty hit, so the caller
	// re-aggregates from the store
	if entries, ok := l.Top(context.Background(), engine.PeriodBiweekly, today, 20); ok {
		t.Errorf("cold window must report a miss, got hit with %d entries", len(entries))
	}
}

func TestTop_AfterRecordActivity(t *testing.T) {
	// GIVEN: Activity recorded on two days of one biweekly window
	l := newTestLeaderboard(t)
	ctx := context.Background()
	l.RecordActivity(ctx, "u1", engine.NewDate(2026, time.March, 3), 5)
	l.RecordActivity(ctx, "u1", engine.NewDate(2026, time.March, 4), 10)
	l.RecordActivity(ctx, "u2", engine.NewDate(2026, time.March, 5), 5)

	// WHEN: Reading the window's top scores
	entries, ok := l.Top(ctx, engine.PeriodBiweekly, engine.NewDate(2026, time.March, 10), 20)

	// THEN: A hit with accumulated scores in descending order
	if !ok {
		t.Fatal("expected a cache hit after recording activity")
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].UserID != "u1" || entries[0].Points != 15 {
		t.Errorf("entry 0: expected u1 with 15 points, got %+v", entries[0])
	}
	if entries[1].UserID != "u2" || entries[1].Points != 5 {
		t.Errorf("entry 1: expected u2 with 5 points, got %+v", entries[1])
	}
}

func TestDisabledLeaderboard_NoOps(t *testing.T) {
	// GIVEN: No Redis client configured
	l := cache.New(nil, nil)
	ctx := context.Background()
	today := engine.NewDate(2026, time.March, 10)

	// WHEN/THEN: Writes are silent no-ops and reads report a miss
	if l.Enabled() {
		t.Error("nil client must report disabled")
	}
	l.RecordActivity(ctx, "u1", today, 5)
	if _, ok := l.Top(ctx, engine.PeriodDaily, today, 10); ok {
		t.Error("disabled cache must report no result")
	}
}

package engine_test

import (
	"testing"
	"time"

	"github.com/apex/activity-engine/engine"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var (
	typeCommit = engine.ActivityType{ID: "commit", Name: "Commit", Points: 5}
	typeSprint = engine.ActivityType{ID: "sprint", Name: "Sprint", Points: 10}
	typeEarly  = engine.ActivityType{ID: "early", Name: "Early", Points: 3}
)

func activity(user engine.UserID, t engine.ActivityType, day int) engine.Activity {
	return engine.Activity{
		ID:   engine.ActivityID(string(user) + "-" + string(t.ID)),
		User: engine.UserRef{ID: user, Name: "User " + string(user)},
		Type: t,
		Date: engine.NewDate(2026, time.March, day),
	}
}

// =============================================================================
// AGGREGATION TESTS
// =============================================================================

func TestAggregate_TwoUsersWithBreakdown(t *testing.T) {
	// GIVEN: user1 with one commit and one sprint, user2 with one commit
	activities := []engine.Activity{
		activity("user1", typeCommit, 3),
		activity("user1", typeSprint, 4),
		activity("user2", typeCommit, 5),
	}

	// WHEN: Aggregating
	stats := engine.Aggregate(activities)

	// THEN: user1 has 15 points across 2 activities with a per-category split
	u1 := stats["user1"]
	if u1 == nil {
		t.Fatal("user1 missing from aggregation")
	}
	if u1.TotalPoints != 15 || u1.ActivityCount != 2 {
		t.Errorf("user1: expected 15 points / 2 activities, got %d / %d", u1.TotalPoints, u1.ActivityCount)
	}
	if u1.PointsByCategory["commit"] != 5 || u1.PointsByCategory["sprint"] != 10 {
		t.Errorf("user1: unexpected breakdown %v", u1.PointsByCategory)
	}

	u2 := stats["user2"]
	if u2 == nil || u2.TotalPoints != 5 || u2.ActivityCount != 1 {
		t.Errorf("user2: expected 5 points / 1 activity, got %+v", u2)
	}
}

func TestAggregate_CategoryKeysAreLowercased(t *testing.T) {
	// GIVEN: Type names with mixed casing
	shouting := engine.ActivityType{ID: "commit", Name: "COMMIT", Points: 5}
	activities := []engine.Activity{
		activity("user1", typeCommit, 1),
		activity("user1", shouting, 2),
	}

	// WHEN: Aggregating
	stats := engine.Aggregate(activities)

	// THEN: Both fold into one lowercase category key
	got := stats["user1"].PointsByCategory
	if got["commit"] != 10 {
		t.Errorf("expected case-folded category total 10, got %v", got)
	}
	if len(got) != 1 {
		t.Errorf("expected a single category key, got %v", got)
	}
}

func TestAggregate_ConservationOfPoints(t *testing.T) {
	// GIVEN: A mixed batch of activities, including zero and negative points
	penalty := engine.ActivityType{ID: "penalty", Name: "Penalty", Points: -4}
	zero := engine.ActivityType{ID: "noop", Name: "Noop", Points: 0}
	activities := []engine.Activity{
		activity("user1", typeCommit, 1),
		activity("user1", penalty, 2),
		activity("user2", typeSprint, 3),
		activity("user3", zero, 4),
	}

	// WHEN: Aggregating
	stats := engine.Aggregate(activities)

	// THEN: Per-user totals sum to the input total; nothing filtered or clamped
	want := 5 - 4 + 10 + 0
	if got := engine.TotalPoints(stats); got != want {
		t.Errorf("expected total %d, got %d", want, got)
	}
	if stats["user1"].TotalPoints != 1 {
		t.Errorf("user1: negative points must accumulate, got %d", stats["user1"].TotalPoints)
	}
	if _, ok := stats["user3"]; !ok {
		t.Error("zero-point activity must still produce a stat row")
	}
}

func TestAggregate_OrderIndependent(t *testing.T) {
	// GIVEN: The same activities in two different orders
	forward := []engine.Activity{
		activity("user1", typeCommit, 1),
		activity("user2", typeSprint, 2),
		activity("user1", typeEarly, 3),
	}
	reversed := []engine.Activity{forward[2], forward[1], forward[0]}

	// WHEN: Aggregating both
	a := engine.Aggregate(forward)
	b := engine.Aggregate(reversed)

	// THEN: The results are identical
	for id, stat := range a {
		other := b[id]
		if other == nil || other.TotalPoints != stat.TotalPoints || other.ActivityCount != stat.ActivityCount {
			t.Errorf("user %s: order-dependent aggregation: %+v vs %+v", id, stat, other)
		}
	}
}

func TestAggregate_Empty(t *testing.T) {
	stats := engine.Aggregate(nil)
	if len(stats) != 0 {
		t.Errorf("expected empty aggregation, got %d entries", len(stats))
	}
	if engine.TotalPoints(stats) != 0 {
		t.Error("expected zero total for empty input")
	}
}

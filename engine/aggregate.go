/*
aggregate.go - Per-user activity aggregation

PURPOSE:
  Folds an unordered collection of activity records into per-user
  totals: points, activity count, and a per-category point breakdown.

INVARIANTS:
  - Single pass; sums are commutative so input order is irrelevant
  - Category keys are the lowercase-normalized activity type names
  - Zero and negative point values accumulate as-is (totals can decrease)
  - Sum of all TotalPoints equals the sum of points over the input
    (conservation - nothing is filtered or clamped)
*/
package engine

// Aggregate groups activities by user and accumulates each user's total
// points, activity count, and per-category point breakdown.
func Aggregate(activities []Activity) map[UserID]*UserStat {
	stats := make(map[UserID]*UserStat)

	for _, a := range activities {
		stat, ok := stats[a.User.ID]
		if !ok {
			stat = &UserStat{
				User:             a.User,
				PointsByCategory: make(map[string]int),
			}
			stats[a.User.ID] = stat
		}

		stat.TotalPoints += a.Type.Points
		stat.ActivityCount++
		stat.PointsByCategory[a.Type.Category()] += a.Type.Points
	}

	return stats
}

// TotalPoints sums points across all aggregated users.
func TotalPoints(stats map[UserID]*UserStat) int {
	total := 0
	for _, s := range stats {
		total += s.TotalPoints
	}
	return total
}

/*
dashboard.go - Dashboard view model

PURPOSE:
  Assembles everything the dashboard renders for one caller: the period
  ranking, the caller's position and per-category breakdown, the legacy
  days-remaining counter, and a small KPI block.

NOTE:
  The ranking here uses the calendar period windows (ResolveRange); only
  the DaysLeft field uses the legacy rolling counter. See period.go.
*/
package engine

import (
	"github.com/shopspring/decimal"
)

// KPIs is the dashboard's headline numbers for the caller.
type KPIs struct {
	MyPoints     int
	MyPosition   int // Unranked when the caller has no activity
	MyActivities int
	TotalPoints  int

	// AvgPointsPerActivity is the caller's points-per-activity average,
	// kept exact (2dp) rather than floating.
	AvgPointsPerActivity decimal.Decimal
}

// Dashboard is the full view model for one caller and period.
type Dashboard struct {
	PeriodCode string
	Range      DateRange
	DaysLeft   int // legacy rolling biweekly counter, display only
	Ranking    *Ranking
	KPIs       KPIs

	// MyBreakdown is the caller's per-category points. Empty (not nil)
	// when the caller has no activity in range.
	MyBreakdown map[string]int
}

// BuildDashboard aggregates the given in-range activities and shapes the
// dashboard for the caller. Activities must already be filtered to the
// period range; the range is carried for display.
func BuildDashboard(activities []Activity, caller UserID, code string, r DateRange, today Date) *Dashboard {
	stats := Aggregate(activities)
	ranking := BuildRanking(stats)

	d := &Dashboard{
		PeriodCode:  code,
		Range:       r,
		DaysLeft:    BiweeklyDaysLeft(today),
		Ranking:     ranking,
		MyBreakdown: map[string]int{},
		KPIs: KPIs{
			MyPosition:  ranking.Position(caller),
			TotalPoints: TotalPoints(stats),
		},
	}

	if mine, ok := stats[caller]; ok {
		d.KPIs.MyPoints = mine.TotalPoints
		d.KPIs.MyActivities = mine.ActivityCount
		d.MyBreakdown = mine.PointsByCategory
		if mine.ActivityCount > 0 {
			d.KPIs.AvgPointsPerActivity = decimal.NewFromInt(int64(mine.TotalPoints)).
				Div(decimal.NewFromInt(int64(mine.ActivityCount))).
				Round(2)
		}
	}

	return d
}

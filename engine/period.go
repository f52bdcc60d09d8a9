/*
period.go - Period code to date range resolution

PURPOSE:
  Translates a reporting period code ("daily", "weekly", "biweekly", or a
  custom start/end pair) into an inclusive date range, anchored on an
  explicitly injected "today".

PERIOD RULES:
  daily     [today, today]
  weekly    [most recent Monday <= today, that Monday + 6]  (ISO, Monday start)
  biweekly  calendar halves: day <= 15 -> [1st, 15th], else [16th, last of month]
  custom    literal start/end dates supplied by the caller

LENIENCY:
  A custom range that fails to parse is silently dropped rather than
  rejected; ResolveRange reports the fallback through its second return
  value so callers can fall back to a default period or an unfiltered
  query. This mirrors long-standing behavior the reporting surfaces rely
  on - do not tighten it without migrating those surfaces.

TWO BIWEEKLY DEFINITIONS:
  ResolveRange uses the calendar 1-15 / 16-end windows for all
  aggregation. The dashboard's "days remaining" counter instead uses a
  rolling 15-day cycle (BiweeklyDaysLeft). The two definitions disagree
  and are kept as separately named computations on purpose; whether the
  divergence is intentional upstream is an open question, so neither is
  "fixed" in terms of the other.

SEE ALSO:
  - date.go: Date and DateRange primitives
  - closer.go: Uses the calendar biweekly window for snapshots
*/
package engine

// Period codes accepted by ResolveRange. Each code has an English and a
// Spanish spelling; both map to the same window.
const (
	CodeDaily    = "daily"
	CodeDiario   = "diario"
	CodeWeekly   = "weekly"
	CodeSemanal  = "semanal"
	CodeBiweekly = "biweekly"
	CodeQuincena = "quincenal"
)

// PeriodTypeForCode maps a period code to its PeriodType. Unknown or
// empty codes report ok=false (custom range territory).
func PeriodTypeForCode(code string) (PeriodType, bool) {
	switch code {
	case CodeDaily, CodeDiario:
		return PeriodDaily, true
	case CodeWeekly, CodeSemanal:
		return PeriodWeekly, true
	case CodeBiweekly, CodeQuincena:
		return PeriodBiweekly, true
	default:
		return "", false
	}
}

// ResolveRange resolves a period code into an inclusive date range,
// anchored on today. For unknown/empty codes it attempts the custom
// start/end strings (YYYY-MM-DD); if either fails to parse the custom
// filter is dropped and ok=false is returned, leaving the caller to pick
// its default. A recognized code always returns ok=true.
func ResolveRange(code string, today Date, customStart, customEnd string) (DateRange, bool) {
	if t, known := PeriodTypeForCode(code); known {
		return RangeFor(t, today), true
	}

	if customStart != "" && customEnd != "" {
		start, err1 := ParseDate(customStart)
		end, err2 := ParseDate(customEnd)
		if err1 == nil && err2 == nil && start.BeforeOrEqual(end) {
			return DateRange{Start: start, End: end}, true
		}
		// Unparseable custom range: drop the filter rather than fail.
	}

	return DateRange{}, false
}

// RangeFor computes the window of a known period type containing today.
func RangeFor(t PeriodType, today Date) DateRange {
	switch t {
	case PeriodDaily:
		return DateRange{Start: today, End: today}

	case PeriodWeekly:
		monday := MostRecentMonday(today)
		return DateRange{Start: monday, End: monday.AddDays(6)}

	case PeriodBiweekly:
		return biweeklyWindow(today)

	default:
		return DateRange{Start: today, End: today}
	}
}

// biweeklyWindow returns the calendar half-month containing today:
// days 1-15, or day 16 through the last day of the month.
func biweeklyWindow(today Date) DateRange {
	if today.Day() <= 15 {
		return DateRange{
			Start: StartOfMonth(today),
			End:   NewDate(today.Year(), today.Month(), 15),
		}
	}
	return DateRange{
		Start: NewDate(today.Year(), today.Month(), 16),
		End:   EndOfMonth(today),
	}
}

// BiweeklyDaysLeft is the legacy "days remaining in the fortnight"
// counter shown on the dashboard. It counts down a rolling 15-day cycle
// from the day-of-month (15 - day%15, with a full cycle reported as 0)
// and therefore disagrees with the calendar window used everywhere else.
// Kept as a distinct computation; display only, never used for
// aggregation or closing.
func BiweeklyDaysLeft(today Date) int {
	left := 15 - today.Day()%15
	if left == 15 {
		return 0
	}
	return left
}

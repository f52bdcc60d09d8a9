/*
export.go - Flat-text exports of rankings and activity history

PURPOSE:
  Formats rankings and filtered history as delimited text for
  spreadsheet import, or as a simple line-per-record text block. Pure
  formatting; all aggregation happens upstream.

FORMATS:
  Ranking CSV   header "Position,Name,Team,Points,Activities"
  History CSV   header "Date,User,Team,Activity,Points,Evidence"
  History text  "DATE - USER - TEAM - ACTIVITY (+POINTS)" per line

DELIMITER SAFETY:
  Commas inside free-text fields (names, evidence) are replaced with
  spaces so columns never shift. The upstream exporter did the same
  rather than quoting; kept for byte-compatibility of existing imports.
*/
package engine

import (
	"fmt"
	"strings"
)

// ExportFormat selects an export rendering.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatText ExportFormat = "text"
)

// ExportRanking renders a ranking as comma-delimited rows.
func ExportRanking(r *Ranking) string {
	var b strings.Builder
	b.WriteString("Position,Name,Team,Points,Activities\n")
	for _, row := range r.Rows {
		fmt.Fprintf(&b, "%d,%s,%s,%d,%d\n",
			row.Position,
			sanitizeField(row.User.Name),
			sanitizeField(teamOrDash(row.User.Team)),
			row.TotalPoints,
			row.ActivityCount,
		)
	}
	return b.String()
}

// ExportHistory renders an activity history in the requested format.
// Unknown formats fall back to CSV.
func ExportHistory(activities []Activity, format ExportFormat) string {
	if format == FormatText {
		return historyText(activities)
	}
	return historyCSV(activities)
}

func historyCSV(activities []Activity) string {
	var b strings.Builder
	b.WriteString("Date,User,Team,Activity,Points,Evidence\n")
	for _, a := range activities {
		fmt.Fprintf(&b, "%s,%s,%s,%s,%d,%s\n",
			a.Date,
			sanitizeField(a.User.Name),
			sanitizeField(teamOrDash(a.User.Team)),
			sanitizeField(a.Type.Name),
			a.Type.Points,
			sanitizeField(a.Evidence),
		)
	}
	return b.String()
}

func historyText(activities []Activity) string {
	var b strings.Builder
	b.WriteString("Activity History\n\n")
	for _, a := range activities {
		fmt.Fprintf(&b, "%s - %s - %s - %s (+%d)\n",
			a.Date,
			a.User.Name,
			teamOrDash(a.User.Team),
			a.Type.Name,
			a.Type.Points,
		)
	}
	return b.String()
}

// sanitizeField neutralizes the column delimiter in free text.
func sanitizeField(s string) string {
	return strings.ReplaceAll(s, ",", " ")
}

func teamOrDash(team string) string {
	if team == "" {
		return "-"
	}
	return team
}

package engine_test

import (
	"strings"
	"testing"

	"github.com/apex/activity-engine/engine"
)

// =============================================================================
// RANKING EXPORT TESTS
// =============================================================================

func TestExportRanking_HeaderAndRows(t *testing.T) {
	// GIVEN: A two-user ranking
	stats := statsFor(map[engine.UserID]int{"a": 20, "b": 5})
	stats["a"].User.Team = "Platform"
	r := engine.BuildRanking(stats)

	// WHEN: Exporting as CSV
	out := engine.ExportRanking(r)

	// THEN: The fixed header and one line per row, missing team as "-"
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if lines[0] != "Position,Name,Team,Points,Activities" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if lines[1] != "1,User a,Platform,20,1" {
		t.Errorf("unexpected row %q", lines[1])
	}
	if lines[2] != "2,User b,-,5,1" {
		t.Errorf("expected dash for missing team, got %q", lines[2])
	}
}

func TestExportRanking_CommasInNamesNeutralized(t *testing.T) {
	// GIVEN: A user name containing the delimiter
	stats := statsFor(map[engine.UserID]int{"a": 10})
	stats["a"].User.Name = "Doe, Jane"

	// WHEN: Exporting
	out := engine.ExportRanking(engine.BuildRanking(stats))

	// THEN: Columns never shift; the comma becomes a space
	row := strings.Split(strings.TrimRight(out, "\n"), "\n")[1]
	if got := strings.Count(row, ","); got != 4 {
		t.Errorf("expected exactly 4 delimiters, got %d in %q", got, row)
	}
	if !strings.Contains(row, "Doe  Jane") {
		t.Errorf("expected comma replaced with space, got %q", row)
	}
}

// =============================================================================
// HISTORY EXPORT TESTS
// =============================================================================

func historyFixture() []engine.Activity {
	a := activity("user1", typeCommit, 3)
	a.User.Team = "Core"
	a.Evidence = "PR #42, follow-up"
	b := activity("user2", typeSprint, 4)
	return []engine.Activity{a, b}
}

func TestExportHistory_CSV(t *testing.T) {
	// WHEN: Exporting history as CSV
	out := engine.ExportHistory(historyFixture(), engine.FormatCSV)

	// THEN: Fixed header; evidence commas neutralized; missing team dashed
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if lines[0] != "Date,User,Team,Activity,Points,Evidence" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if lines[1] != "2026-03-03,User user1,Core,Commit,5,PR #42  follow-up" {
		t.Errorf("unexpected row %q", lines[1])
	}
	if lines[2] != "2026-03-04,User user2,-,Sprint,10," {
		t.Errorf("unexpected row %q", lines[2])
	}
}

func TestExportHistory_Text(t *testing.T) {
	// WHEN: Exporting history as text
	out := engine.ExportHistory(historyFixture(), engine.FormatText)

	// THEN: Title block then one line per record
	if !strings.HasPrefix(out, "Activity History\n\n") {
		t.Errorf("missing title block in %q", out)
	}
	if !strings.Contains(out, "2026-03-03 - User user1 - Core - Commit (+5)\n") {
		t.Errorf("missing record line in %q", out)
	}
	if !strings.Contains(out, "2026-03-04 - User user2 - - - Sprint (+10)\n") {
		t.Errorf("missing dashed-team line in %q", out)
	}
}

func TestExportHistory_UnknownFormatFallsBackToCSV(t *testing.T) {
	out := engine.ExportHistory(historyFixture(), engine.ExportFormat("xml"))
	if !strings.HasPrefix(out, "Date,User,Team,Activity,Points,Evidence\n") {
		t.Errorf("expected CSV fallback, got %q", out)
	}
}

func TestExportHistory_EmptyStillHasHeader(t *testing.T) {
	if out := engine.ExportHistory(nil, engine.FormatCSV); out != "Date,User,Team,Activity,Points,Evidence\n" {
		t.Errorf("expected bare header, got %q", out)
	}
}

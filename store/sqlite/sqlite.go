/*
Package sqlite provides the SQLite-backed implementation of the engine's
storage interfaces.

PURPOSE:
  Implements ActivityStore, IdentityProvider, and PeriodStore using
  SQLite via database/sql. The same patterns apply to PostgreSQL with
  only dialect differences.

KEY TABLES:
  teams           Team reference data
  users           User identities (active/admin flags)
  activity_types  Name -> point value reference data
  activities      Immutable activity records
  periods         Period records, UNIQUE(type, start, end)
  rankings        Snapshot rows, UNIQUE(period_id, user_id)

CLOSE-PERIOD ATOMICITY:
  CloseOpenPeriod runs the guarded close UPDATE + delete + bulk insert
  in one SQL transaction. The UPDATE carries "AND is_closed = 0" so a
  close that raced a concurrent winner changes zero rows, rolls back,
  and reports engine.ErrPeriodClosedConflict instead of overwriting a
  frozen snapshot.

IMMUTABILITY:
  activities and closed rankings have no UPDATE path in this package.
  Re-closing an OPEN period replaces its rows; a CLOSED period's rows
  are never touched again.

WAL MODE:
  SQLite is opened with WAL for better read concurrency and crash
  recovery. A process-level mutex serializes writers, the same
  discipline the engine's Closer applies on top.

USAGE:
  st, err := sqlite.New("./data/activity.db")
  closer := engine.NewCloser(st, st, logger)

SEE ALSO:
  - engine/store.go: Interface definitions
  - engine/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/apex/activity-engine/engine"
)

var (
	_ engine.ActivityStore    = (*Store)(nil)
	_ engine.IdentityProvider = (*Store)(nil)
	_ engine.PeriodStore      = (*Store)(nil)
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS teams (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		team_id TEXT REFERENCES teams(id),
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_team ON users(team_id);

	CREATE TABLE IF NOT EXISTS activity_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		points INTEGER NOT NULL
	);

	-- Immutable once inserted; no UPDATE path exists in this package.
	CREATE TABLE IF NOT EXISTS activities (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		activity_type_id TEXT NOT NULL REFERENCES activity_types(id),
		date TEXT NOT NULL,
		evidence TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_activities_date ON activities(date);
	CREATE INDEX IF NOT EXISTS idx_activities_user_date ON activities(user_id, date);

	CREATE TABLE IF NOT EXISTS periods (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		is_closed BOOLEAN NOT NULL DEFAULT FALSE,
		closed_at TEXT,
		created_at TEXT NOT NULL,
		UNIQUE(type, start_date, end_date)
	);

	CREATE TABLE IF NOT EXISTS rankings (
		id TEXT PRIMARY KEY,
		period_id TEXT NOT NULL REFERENCES periods(id),
		position INTEGER NOT NULL,
		user_id TEXT NOT NULL REFERENCES users(id),
		total_points INTEGER NOT NULL,
		total_activities INTEGER NOT NULL,
		UNIQUE(period_id, user_id),
		UNIQUE(period_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_rankings_period ON rankings(period_id, position);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ACTIVITY STORE (engine.ActivityStore interface)
// =============================================================================

const activitySelect = `
	SELECT a.id, a.date, a.evidence, a.created_at,
	       u.id, u.name, COALESCE(t.name, ''),
	       at.id, at.name, at.points
	FROM activities a
	JOIN users u ON u.id = a.user_id
	LEFT JOIN teams t ON t.id = u.team_id
	JOIN activity_types at ON at.id = a.activity_type_id
`

// SaveActivity appends an immutable activity record. Missing id and
// created_at are filled in.
func (s *Store) SaveActivity(ctx context.Context, a engine.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = engine.ActivityID(uuid.NewString())
	}
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activities (id, user_id, activity_type_id, date, evidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.User.ID, a.Type.ID, a.Date.String(), a.Evidence,
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

func (s *Store) ActivitiesInRange(ctx context.Context, r engine.DateRange) ([]engine.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := activitySelect + `
	WHERE a.date >= ? AND a.date <= ?
	ORDER BY a.date DESC, a.created_at DESC`

	return s.queryActivities(ctx, query, r.Start.String(), r.End.String())
}

func (s *Store) ActivitiesFiltered(ctx context.Context, f engine.HistoryFilter) ([]engine.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if f.Range != nil {
		where = append(where, "a.date >= ? AND a.date <= ?")
		args = append(args, f.Range.Start.String(), f.Range.End.String())
	}
	if f.UserID != "" {
		where = append(where, "a.user_id = ?")
		args = append(args, f.UserID)
	}
	if f.TeamID != "" {
		where = append(where, "u.team_id = ?")
		args = append(args, f.TeamID)
	}

	query := activitySelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY a.date DESC, a.created_at DESC"

	return s.queryActivities(ctx, query, args...)
}

func (s *Store) queryActivities(ctx context.Context, query string, args ...any) ([]engine.Activity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	var activities []engine.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

func scanActivity(rows *sql.Rows) (engine.Activity, error) {
	var (
		a         engine.Activity
		date      string
		evidence  sql.NullString
		createdAt string
	)
	err := rows.Scan(
		&a.ID, &date, &evidence, &createdAt,
		&a.User.ID, &a.User.Name, &a.User.Team,
		&a.Type.ID, &a.Type.Name, &a.Type.Points,
	)
	if err != nil {
		return a, fmt.Errorf("failed to scan activity: %w", err)
	}

	a.Date, _ = engine.ParseDate(date)
	a.Evidence = evidence.String
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return a, nil
}

// ListActivityTypes returns the reference data ordered by name.
func (s *Store) ListActivityTypes(ctx context.Context) ([]engine.ActivityType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, points FROM activity_types ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query activity types: %w", err)
	}
	defer rows.Close()

	var types []engine.ActivityType
	for rows.Next() {
		var t engine.ActivityType
		if err := rows.Scan(&t.ID, &t.Name, &t.Points); err != nil {
			return nil, fmt.Errorf("failed to scan activity type: %w", err)
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

func (s *Store) GetActivityType(ctx context.Context, id engine.ActivityTypeID) (*engine.ActivityType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var t engine.ActivityType
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, points FROM activity_types WHERE id = ?", id).
		Scan(&t.ID, &t.Name, &t.Points)
	if err == sql.ErrNoRows {
		return nil, engine.ErrActivityTypeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity type: %w", err)
	}
	return &t, nil
}

// SaveActivityType upserts reference data (admin/seed path).
func (s *Store) SaveActivityType(ctx context.Context, t engine.ActivityType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = engine.ActivityTypeID(uuid.NewString())
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_types (id, name, points) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET points = excluded.points`,
		t.ID, t.Name, t.Points,
	)
	if err != nil {
		return fmt.Errorf("failed to save activity type: %w", err)
	}
	return nil
}

// =============================================================================
// IDENTITY PROVIDER (engine.IdentityProvider interface)
// =============================================================================

const userSelect = `
	SELECT u.id, u.name, COALESCE(u.team_id, ''), COALESCE(t.name, ''),
	       u.is_active, u.is_admin
	FROM users u
	LEFT JOIN teams t ON t.id = u.team_id
`

func (s *Store) GetUser(ctx context.Context, id engine.UserID) (*engine.UserIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var u engine.UserIdentity
	err := s.db.QueryRowContext(ctx, userSelect+" WHERE u.id = ?", id).
		Scan(&u.ID, &u.Name, &u.TeamID, &u.TeamName, &u.IsActive, &u.IsAdmin)
	if err == sql.ErrNoRows {
		return nil, engine.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]engine.UserIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, userSelect+" ORDER BY u.name")
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []engine.UserIdentity
	for rows.Next() {
		var u engine.UserIdentity
		if err := rows.Scan(&u.ID, &u.Name, &u.TeamID, &u.TeamName, &u.IsActive, &u.IsAdmin); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SaveUser upserts a user identity (admin/seed path).
func (s *Store) SaveUser(ctx context.Context, u engine.UserIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var teamID any
	if u.TeamID != "" {
		teamID = string(u.TeamID)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, team_id, is_active, is_admin, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			team_id = excluded.team_id,
			is_active = excluded.is_active,
			is_admin = excluded.is_admin`,
		u.ID, u.Name, teamID, u.IsActive, u.IsAdmin,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// SaveTeam upserts a team (admin/seed path).
func (s *Store) SaveTeam(ctx context.Context, id engine.TeamID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO teams (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		id, name,
	)
	if err != nil {
		return fmt.Errorf("failed to save team: %w", err)
	}
	return nil
}

// =============================================================================
// PERIOD STORE (engine.PeriodStore interface)
// =============================================================================

// GetOrCreatePeriod returns the period keyed by (type, start, end),
// inserting an open record if absent. INSERT OR IGNORE plus re-select
// makes concurrent creators converge on one row.
func (s *Store) GetOrCreatePeriod(ctx context.Context, t engine.PeriodType, r engine.DateRange) (*engine.Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO periods (id, type, start_date, end_date, is_closed, created_at)
		VALUES (?, ?, ?, ?, FALSE, ?)`,
		uuid.NewString(), t, r.Start.String(), r.End.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create period: %w", err)
	}

	return s.getPeriodBy(ctx, "type = ? AND start_date = ? AND end_date = ?",
		t, r.Start.String(), r.End.String())
}

func (s *Store) GetPeriod(ctx context.Context, id engine.PeriodID) (*engine.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getPeriodBy(ctx, "id = ?", id)
}

func (s *Store) getPeriodBy(ctx context.Context, where string, args ...any) (*engine.Period, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, start_date, end_date, is_closed, COALESCE(closed_at, '')
		FROM periods WHERE `+where, args...)

	p, err := scanPeriod(row.Scan)
	if err == sql.ErrNoRows {
		return nil, engine.ErrPeriodNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get period: %w", err)
	}
	return p, nil
}

func scanPeriod(scan func(...any) error) (*engine.Period, error) {
	var (
		p        engine.Period
		start    string
		end      string
		closedAt string
	)
	if err := scan(&p.ID, &p.Type, &start, &end, &p.Closed, &closedAt); err != nil {
		return nil, err
	}
	p.Start, _ = engine.ParseDate(start)
	p.End, _ = engine.ParseDate(end)
	if closedAt != "" {
		p.ClosedAt, _ = time.Parse(time.RFC3339, closedAt)
	}
	return &p, nil
}

func (s *Store) ListPeriods(ctx context.Context, t engine.PeriodType) ([]engine.Period, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, type, start_date, end_date, is_closed, COALESCE(closed_at, '')
		FROM periods`
	var args []any
	if t != "" {
		query += " WHERE type = ?"
		args = append(args, t)
	}
	query += " ORDER BY start_date DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query periods: %w", err)
	}
	defer rows.Close()

	var periods []engine.Period
	for rows.Next() {
		p, err := scanPeriod(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan period: %w", err)
		}
		periods = append(periods, *p)
	}
	return periods, rows.Err()
}

func (s *Store) RankingEntries(ctx context.Context, id engine.PeriodID) ([]engine.RankingEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.period_id, r.position, r.user_id, u.name, COALESCE(t.name, ''),
		       r.total_points, r.total_activities
		FROM rankings r
		JOIN users u ON u.id = r.user_id
		LEFT JOIN teams t ON t.id = u.team_id
		WHERE r.period_id = ?
		ORDER BY r.position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query rankings: %w", err)
	}
	defer rows.Close()

	var entries []engine.RankingEntry
	for rows.Next() {
		var e engine.RankingEntry
		err := rows.Scan(&e.PeriodID, &e.Position, &e.UserID, &e.UserName,
			&e.Team, &e.TotalPoints, &e.TotalActivities)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ranking entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CloseOpenPeriod atomically replaces the period's ranking rows and
// marks it closed. The guarded UPDATE ("AND is_closed = FALSE") is the
// at-most-once gate: if another close won the race, zero rows change,
// the transaction rolls back, and ErrPeriodClosedConflict is returned.
func (s *Store) CloseOpenPeriod(ctx context.Context, id engine.PeriodID, entries []engine.RankingEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE periods SET is_closed = TRUE, closed_at = ?
		WHERE id = ? AND is_closed = FALSE`,
		time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark period closed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check close result: %w", err)
	}
	if affected == 0 {
		// Either missing or already closed; disambiguate for the caller.
		var closed bool
		err := tx.QueryRowContext(ctx,
			"SELECT is_closed FROM periods WHERE id = ?", id).Scan(&closed)
		if err == sql.ErrNoRows {
			return engine.ErrPeriodNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to check period state: %w", err)
		}
		return engine.ErrPeriodClosedConflict
	}

	// Replace any rows left behind by a partial prior run.
	if _, err := tx.ExecContext(ctx, "DELETE FROM rankings WHERE period_id = ?", id); err != nil {
		return fmt.Errorf("failed to clear prior ranking: %w", err)
	}

	for _, e := range entries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO rankings (id, period_id, position, user_id, total_points, total_activities)
			VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), e.PeriodID, e.Position, e.UserID,
			e.TotalPoints, e.TotalActivities,
		)
		if err != nil {
			return fmt.Errorf("failed to insert ranking entry: %w", err)
		}
	}

	return tx.Commit()
}

// Package store provides in-memory implementations of the engine's
// persistence interfaces, used by tests and local development.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/apex/activity-engine/engine"
)

// =============================================================================
// MEMORY STORE - Implements ActivityStore, IdentityProvider, PeriodStore
// =============================================================================

var (
	_ engine.ActivityStore    = (*Memory)(nil)
	_ engine.IdentityProvider = (*Memory)(nil)
	_ engine.PeriodStore      = (*Memory)(nil)
)

type Memory struct {
	mu sync.RWMutex

	activities []engine.Activity
	types      map[engine.ActivityTypeID]engine.ActivityType
	users      map[engine.UserID]engine.UserIdentity

	periods  map[engine.PeriodID]*engine.Period
	byKey    map[periodKey]engine.PeriodID
	rankings map[engine.PeriodID][]engine.RankingEntry
}

type periodKey struct {
	Type  engine.PeriodType
	Start string
	End   string
}

func NewMemory() *Memory {
	return &Memory{
		types:    make(map[engine.ActivityTypeID]engine.ActivityType),
		users:    make(map[engine.UserID]engine.UserIdentity),
		periods:  make(map[engine.PeriodID]*engine.Period),
		byKey:    make(map[periodKey]engine.PeriodID),
		rankings: make(map[engine.PeriodID][]engine.RankingEntry),
	}
}

// =============================================================================
// SEEDING HELPERS (tests)
// =============================================================================

func (m *Memory) AddUser(u engine.UserIdentity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *Memory) AddActivityType(t engine.ActivityType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.types[t.ID] = t
}

// =============================================================================
// ACTIVITY STORE
// =============================================================================

func (m *Memory) SaveActivity(_ context.Context, a engine.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = engine.ActivityID(uuid.NewString())
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	m.activities = append(m.activities, a)
	return nil
}

func (m *Memory) ActivitiesInRange(_ context.Context, r engine.DateRange) ([]engine.Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []engine.Activity
	for _, a := range m.activities {
		if r.Contains(a.Date) {
			result = append(result, a)
		}
	}
	sortHistory(result)
	return result, nil
}

func (m *Memory) ActivitiesFiltered(_ context.Context, f engine.HistoryFilter) ([]engine.Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []engine.Activity
	for _, a := range m.activities {
		if f.Range != nil && !f.Range.Contains(a.Date) {
			continue
		}
		if f.UserID != "" && a.User.ID != f.UserID {
			continue
		}
		if f.TeamID != "" {
			u, ok := m.users[a.User.ID]
			if !ok || u.TeamID != f.TeamID {
				continue
			}
		}
		result = append(result, a)
	}
	sortHistory(result)
	return result, nil
}

// sortHistory orders newest first: date desc, then created_at desc.
func sortHistory(activities []engine.Activity) {
	sort.SliceStable(activities, func(i, j int) bool {
		if !activities[i].Date.Equal(activities[j].Date) {
			return activities[i].Date.After(activities[j].Date)
		}
		return activities[i].CreatedAt.After(activities[j].CreatedAt)
	})
}

func (m *Memory) ListActivityTypes(_ context.Context) ([]engine.ActivityType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]engine.ActivityType, 0, len(m.types))
	for _, t := range m.types {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *Memory) GetActivityType(_ context.Context, id engine.ActivityTypeID) (*engine.ActivityType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.types[id]
	if !ok {
		return nil, engine.ErrActivityTypeNotFound
	}
	return &t, nil
}

// =============================================================================
// IDENTITY PROVIDER
// =============================================================================

func (m *Memory) GetUser(_ context.Context, id engine.UserID) (*engine.UserIdentity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, engine.ErrUserNotFound
	}
	return &u, nil
}

func (m *Memory) ListUsers(_ context.Context) ([]engine.UserIdentity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]engine.UserIdentity, 0, len(m.users))
	for _, u := range m.users {
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// =============================================================================
// PERIOD STORE
// =============================================================================

func (m *Memory) GetOrCreatePeriod(_ context.Context, t engine.PeriodType, r engine.DateRange) (*engine.Period, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := periodKey{Type: t, Start: r.Start.String(), End: r.End.String()}
	if id, ok := m.byKey[k]; ok {
		p := *m.periods[id]
		return &p, nil
	}

	p := &engine.Period{
		ID:    engine.PeriodID(uuid.NewString()),
		Type:  t,
		Start: r.Start,
		End:   r.End,
	}
	m.periods[p.ID] = p
	m.byKey[k] = p.ID
	cp := *p
	return &cp, nil
}

func (m *Memory) GetPeriod(_ context.Context, id engine.PeriodID) (*engine.Period, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.periods[id]
	if !ok {
		return nil, engine.ErrPeriodNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) ListPeriods(_ context.Context, t engine.PeriodType) ([]engine.Period, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []engine.Period
	for _, p := range m.periods {
		if t != "" && p.Type != t {
			continue
		}
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Start.After(result[j].Start) })
	return result, nil
}

func (m *Memory) RankingEntries(_ context.Context, id engine.PeriodID) ([]engine.RankingEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]engine.RankingEntry, len(m.rankings[id]))
	copy(entries, m.rankings[id])
	return entries, nil
}

// CloseOpenPeriod replaces the period's ranking rows and marks it closed
// under a single lock hold, mirroring the transactional contract of the
// SQL implementation.
func (m *Memory) CloseOpenPeriod(_ context.Context, id engine.PeriodID, entries []engine.RankingEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.periods[id]
	if !ok {
		return engine.ErrPeriodNotFound
	}
	if p.Closed {
		return engine.ErrPeriodClosedConflict
	}

	replaced := make([]engine.RankingEntry, len(entries))
	copy(replaced, entries)
	m.rankings[id] = replaced
	p.Closed = true
	p.ClosedAt = time.Now().UTC()
	return nil
}

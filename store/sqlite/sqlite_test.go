package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apex/activity-engine/engine"
	"github.com/apex/activity-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	st, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	require.NoError(t, st.SaveTeam(ctx, "core", "Core"))
	require.NoError(t, st.SaveTeam(ctx, "infra", "Infra"))
	require.NoError(t, st.SaveUser(ctx, engine.UserIdentity{
		ID: "u1", Name: "User One", TeamID: "core", IsActive: true,
	}))
	require.NoError(t, st.SaveUser(ctx, engine.UserIdentity{
		ID: "u2", Name: "User Two", TeamID: "infra", IsActive: true, IsAdmin: true,
	}))
	require.NoError(t, st.SaveActivityType(ctx, engine.ActivityType{
		ID: "commit", Name: "Commit", Points: 5,
	}))
	require.NoError(t, st.SaveActivityType(ctx, engine.ActivityType{
		ID: "sprint", Name: "Sprint", Points: 10,
	}))
	return st
}

func saveActivity(t *testing.T, st *sqlite.Store, user engine.UserID, typeID engine.ActivityTypeID, date engine.Date) {
	t.Helper()
	ctx := context.Background()
	typ, err := st.GetActivityType(ctx, typeID)
	require.NoError(t, err)
	require.NoError(t, st.SaveActivity(ctx, engine.Activity{
		User: engine.UserRef{ID: user},
		Type: *typ,
		Date: date,
	}))
}

// =============================================================================
// ACTIVITY QUERY TESTS
// =============================================================================

func TestStore_ActivitiesInRange_InclusiveBounds(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	saveActivity(t, st, "u1", "commit", engine.NewDate(2026, time.March, 1))
	saveActivity(t, st, "u1", "commit", engine.NewDate(2026, time.March, 15))
	saveActivity(t, st, "u1", "commit", engine.NewDate(2026, time.March, 16))

	got, err := st.ActivitiesInRange(ctx, engine.DateRange{
		Start: engine.NewDate(2026, time.March, 1),
		End:   engine.NewDate(2026, time.March, 15),
	})
	require.NoError(t, err)

	// Both endpoints included, the day after excluded
	require.Len(t, got, 2)
	assert.Equal(t, "2026-03-15", got[0].Date.String())
	assert.Equal(t, "2026-03-01", got[1].Date.String())
}

func TestStore_Activities_JoinUserTeamAndType(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	saveActivity(t, st, "u1", "sprint", engine.NewDate(2026, time.March, 3))

	got, err := st.ActivitiesInRange(ctx, engine.DateRange{
		Start: engine.NewDate(2026, time.March, 1),
		End:   engine.NewDate(2026, time.March, 31),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)

	a := got[0]
	assert.NotEmpty(t, a.ID, "id must be generated on insert")
	assert.Equal(t, "User One", a.User.Name)
	assert.Equal(t, "Core", a.User.Team)
	assert.Equal(t, "Sprint", a.Type.Name)
	assert.Equal(t, 10, a.Type.Points)
	assert.False(t, a.CreatedAt.IsZero())
}

func TestStore_ActivitiesFiltered(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	saveActivity(t, st, "u1", "commit", engine.NewDate(2026, time.March, 3))
	saveActivity(t, st, "u2", "sprint", engine.NewDate(2026, time.March, 4))
	saveActivity(t, st, "u2", "commit", engine.NewDate(2026, time.April, 1))

	march := engine.DateRange{
		Start: engine.NewDate(2026, time.March, 1),
		End:   engine.NewDate(2026, time.March, 31),
	}

	t.Run("by user", func(t *testing.T) {
		got, err := st.ActivitiesFiltered(ctx, engine.HistoryFilter{UserID: "u2"})
		require.NoError(t, err)
		require.Len(t, got, 2)
		for _, a := range got {
			assert.Equal(t, engine.UserID("u2"), a.User.ID)
		}
	})

	t.Run("by team", func(t *testing.T) {
		got, err := st.ActivitiesFiltered(ctx, engine.HistoryFilter{TeamID: "core"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, engine.UserID("u1"), got[0].User.ID)
	})

	t.Run("range and user combined", func(t *testing.T) {
		got, err := st.ActivitiesFiltered(ctx, engine.HistoryFilter{Range: &march, UserID: "u2"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "2026-03-04", got[0].Date.String())
	})

	t.Run("no filters returns everything newest first", func(t *testing.T) {
		got, err := st.ActivitiesFiltered(ctx, engine.HistoryFilter{})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "2026-04-01", got[0].Date.String())
	})
}

// =============================================================================
// REFERENCE DATA TESTS
// =============================================================================

func TestStore_ActivityTypeUpsert_KeyedByName(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// Re-seeding the same name only updates the points
	require.NoError(t, st.SaveActivityType(ctx, engine.ActivityType{
		ID: "commit-v2", Name: "Commit", Points: 7,
	}))

	types, err := st.ListActivityTypes(ctx)
	require.NoError(t, err)
	require.Len(t, types, 2)

	commit, err := st.GetActivityType(ctx, "commit")
	require.NoError(t, err)
	assert.Equal(t, 7, commit.Points)
}

func TestStore_GetUser_NotFound(t *testing.T) {
	st := newTestStore(t)
	_, err := st.GetUser(context.Background(), "ghost")
	assert.ErrorIs(t, err, engine.ErrUserNotFound)
}

func TestStore_GetUser_ResolvesTeamName(t *testing.T) {
	st := newTestStore(t)
	u, err := st.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, engine.TeamID("core"), u.TeamID)
	assert.Equal(t, "Core", u.TeamName)
	assert.True(t, u.IsActive)
	assert.False(t, u.IsAdmin)
}

// =============================================================================
// PERIOD STORE TESTS
// =============================================================================

func marchFirstHalf() engine.DateRange {
	return engine.DateRange{
		Start: engine.NewDate(2026, time.March, 1),
		End:   engine.NewDate(2026, time.March, 15),
	}
}

func TestStore_GetOrCreatePeriod_Converges(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	a, err := st.GetOrCreatePeriod(ctx, engine.PeriodBiweekly, marchFirstHalf())
	require.NoError(t, err)
	b, err := st.GetOrCreatePeriod(ctx, engine.PeriodBiweekly, marchFirstHalf())
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID, "same window must map to one period row")
	assert.False(t, a.Closed)
	assert.Equal(t, "2026-03-01", a.Start.String())
	assert.Equal(t, "2026-03-15", a.End.String())

	// Same dates, different type: distinct period
	c, err := st.GetOrCreatePeriod(ctx, engine.PeriodWeekly, marchFirstHalf())
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, c.ID)
}

func TestStore_CloseOpenPeriod_FreezesAndConflicts(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	p, err := st.GetOrCreatePeriod(ctx, engine.PeriodBiweekly, marchFirstHalf())
	require.NoError(t, err)

	entries := []engine.RankingEntry{
		{PeriodID: p.ID, Position: 1, UserID: "u1", TotalPoints: 15, TotalActivities: 2},
		{PeriodID: p.ID, Position: 2, UserID: "u2", TotalPoints: 5, TotalActivities: 1},
	}
	require.NoError(t, st.CloseOpenPeriod(ctx, p.ID, entries))

	// The period is now closed with a timestamp
	closed, err := st.GetPeriod(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, closed.Closed)
	assert.False(t, closed.ClosedAt.IsZero())

	// Rows come back in position order with identity joined in
	got, err := st.RankingEntries(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Position)
	assert.Equal(t, "User One", got[0].UserName)
	assert.Equal(t, "Core", got[0].Team)
	assert.Equal(t, 15, got[0].TotalPoints)

	// A second close conflicts and leaves the snapshot untouched
	err = st.CloseOpenPeriod(ctx, p.ID, []engine.RankingEntry{
		{PeriodID: p.ID, Position: 1, UserID: "u2", TotalPoints: 99},
	})
	assert.ErrorIs(t, err, engine.ErrPeriodClosedConflict)

	after, err := st.RankingEntries(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Equal(t, engine.UserID("u1"), after[0].UserID)
}

func TestStore_CloseOpenPeriod_UnknownPeriod(t *testing.T) {
	st := newTestStore(t)
	err := st.CloseOpenPeriod(context.Background(), "ghost", nil)
	assert.ErrorIs(t, err, engine.ErrPeriodNotFound)
}

func TestStore_ListPeriods_FilterAndOrder(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.GetOrCreatePeriod(ctx, engine.PeriodBiweekly, marchFirstHalf())
	require.NoError(t, err)
	_, err = st.GetOrCreatePeriod(ctx, engine.PeriodBiweekly, engine.DateRange{
		Start: engine.NewDate(2026, time.March, 16),
		End:   engine.NewDate(2026, time.March, 31),
	})
	require.NoError(t, err)
	_, err = st.GetOrCreatePeriod(ctx, engine.PeriodWeekly, engine.DateRange{
		Start: engine.NewDate(2026, time.March, 2),
		End:   engine.NewDate(2026, time.March, 8),
	})
	require.NoError(t, err)

	biweekly, err := st.ListPeriods(ctx, engine.PeriodBiweekly)
	require.NoError(t, err)
	require.Len(t, biweekly, 2)
	assert.Equal(t, "2026-03-16", biweekly[0].Start.String(), "newest window first")

	all, err := st.ListPeriods(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

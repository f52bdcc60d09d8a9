package api_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apex/activity-engine/api"
	"github.com/apex/activity-engine/engine"
	"github.com/apex/activity-engine/engine/store"
)

func TestAutoClose_ClosesPreviousBiweeklyWindow(t *testing.T) {
	// GIVEN: Today is in the second March half; the first half has
	// activity and was never closed
	mem := store.NewMemory()
	require.NoError(t, mem.SaveActivity(context.Background(), engine.Activity{
		User: engine.UserRef{ID: "u1", Name: "User One"},
		Type: engine.ActivityType{ID: "commit", Name: "Commit", Points: 5},
		Date: engine.NewDate(2026, time.March, 10),
	}))

	s := api.NewAutoCloseScheduler(engine.NewCloser(mem, mem, nil), nil)
	s.Now = func() engine.Date { return engine.NewDate(2026, time.March, 20) }

	// WHEN: The check runs
	s.CloseElapsed(context.Background())

	// THEN: The elapsed [Mar 1, Mar 15] window is closed with its ranking
	periods, err := mem.ListPeriods(context.Background(), engine.PeriodBiweekly)
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.Equal(t, "2026-03-01", periods[0].Start.String())
	assert.Equal(t, "2026-03-15", periods[0].End.String())
	assert.True(t, periods[0].Closed)

	entries, err := mem.RankingEntries(context.Background(), periods[0].ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, engine.UserID("u1"), entries[0].UserID)
}

func TestAutoClose_RepeatRunsAreNoOps(t *testing.T) {
	// GIVEN: A window already closed by a previous run
	mem := store.NewMemory()
	s := api.NewAutoCloseScheduler(engine.NewCloser(mem, mem, nil), nil)
	s.Now = func() engine.Date { return engine.NewDate(2026, time.March, 20) }
	s.CloseElapsed(context.Background())

	// WHEN: The check runs again
	s.CloseElapsed(context.Background())

	// THEN: Still exactly one period record
	periods, err := mem.ListPeriods(context.Background(), engine.PeriodBiweekly)
	require.NoError(t, err)
	assert.Len(t, periods, 1)
}

func TestAutoClose_CrossesMonthBoundary(t *testing.T) {
	// GIVEN: Today is the 1st, so the elapsed window is the previous
	// month's second half
	mem := store.NewMemory()
	s := api.NewAutoCloseScheduler(engine.NewCloser(mem, mem, nil), nil)
	s.Now = func() engine.Date { return engine.NewDate(2026, time.March, 1) }

	// WHEN: The check runs
	s.CloseElapsed(context.Background())

	// THEN: February's 16th-through-28th window is the one closed
	periods, err := mem.ListPeriods(context.Background(), engine.PeriodBiweekly)
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.Equal(t, "2026-02-16", periods[0].Start.String())
	assert.Equal(t, "2026-02-28", periods[0].End.String())
}

package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/R21Digital/Project-MorningStar-sub013/internal/events"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) (*SQLiteStorage, string) {
	t.Helper()
	dbPath := t.TempDir() + "/test.db"
	store, err := New(context.Background(), dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, dbPath
}

func started(name string, now time.Time) *types.GoalProgress {
	return &types.GoalProgress{
		Name:        name,
		Status:      types.StatusInProgress,
		TotalSteps:  3,
		StartTime:   &now,
		LastUpdated: now,
	}
}

func TestSaveAndGetProgress(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 10, 30, 0, 123456789, time.UTC)

	missing, err := store.GetProgress(ctx, "jedi")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, store.SaveProgress(ctx, started("jedi", now), ""))

	got, err := store.GetProgress(ctx, "jedi")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, types.StatusInProgress, got.Status)
	assert.Equal(t, 3, got.TotalSteps)
	require.NotNil(t, got.StartTime)
	assert.True(t, got.StartTime.Equal(now))
	assert.Nil(t, got.CompletionTime)
}

func TestSaveProgressCompareAndSwap(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	p := started("jedi", now)
	require.NoError(t, store.SaveProgress(ctx, p, ""))

	dup := types.NewGoalProgress("jedi")
	dup.LastUpdated = now
	err := store.SaveProgress(ctx, dup, "")
	assert.True(t, errors.Is(err, ErrConflict), "insert over an existing record conflicts")

	p.StepsCompleted = 1
	p.CurrentStep = "speak_to_elder"
	err = store.SaveProgress(ctx, p, types.StatusLocked)
	assert.True(t, errors.Is(err, ErrConflict), "stale expected status conflicts")

	require.NoError(t, store.SaveProgress(ctx, p, types.StatusInProgress))
	got, err := store.GetProgress(ctx, "jedi")
	require.NoError(t, err)
	assert.Equal(t, 1, got.StepsCompleted)
	assert.Equal(t, "speak_to_elder", got.CurrentStep)
}

func TestSingleActiveGoalEnforcedByStore(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.SaveProgress(ctx, started("first", now), ""))

	err := store.SaveProgress(ctx, started("second", now), "")
	assert.True(t, errors.Is(err, types.ErrGoalActive))

	second, err := store.GetProgress(ctx, "second")
	require.NoError(t, err)
	assert.Nil(t, second)

	// Once the first goal leaves IN_PROGRESS the slot frees up.
	first := started("first", now)
	first.Status = types.StatusLocked
	first.Reason = "level regressed"
	require.NoError(t, store.SaveProgress(ctx, first, types.StatusInProgress))
	require.NoError(t, store.SaveProgress(ctx, started("second", now), ""))
}

func TestLockCooldownPersisted(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 10, 30, 0, 0, time.UTC)

	p := started("cave_run", now)
	require.NoError(t, store.SaveProgress(ctx, p, ""))

	until := now.Add(10 * time.Minute)
	locked := p.Clone()
	locked.Status = types.StatusLocked
	locked.Reason = "navigation to dathomir/cave failed 3 consecutive times"
	locked.LockedUntil = &until
	locked.LockCount = 2
	require.NoError(t, store.SaveProgress(ctx, locked, types.StatusInProgress))

	got, err := store.GetProgress(ctx, "cave_run")
	require.NoError(t, err)
	require.NotNil(t, got.LockedUntil)
	assert.True(t, got.LockedUntil.Equal(until))
	assert.Equal(t, 2, got.LockCount)

	unlocked := got.Clone()
	unlocked.Status = types.StatusNotStarted
	unlocked.LockedUntil = nil
	require.NoError(t, store.SaveProgress(ctx, unlocked, types.StatusLocked))

	got, err = store.GetProgress(ctx, "cave_run")
	require.NoError(t, err)
	assert.Nil(t, got.LockedUntil)
	assert.Equal(t, 2, got.LockCount, "count survives the unlock")
}

func TestSaveProgressRejectsInvalid(t *testing.T) {
	store, _ := setupTestDB(t)
	p := started("jedi", time.Now())
	p.StepsCompleted = 4
	assert.Error(t, store.SaveProgress(context.Background(), p, ""))
}

func TestProgressSurvivesReopen(t *testing.T) {
	store, path := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	p := started("legacy", now)
	p.StepsCompleted = 2
	p.CurrentStep = "deliver_crystal"
	require.NoError(t, store.SaveProgress(ctx, p, ""))

	done := &types.GoalProgress{Name: "slot", Status: types.StatusCompleted, StepsCompleted: 1, TotalSteps: 1,
		StartTime: &now, CompletionTime: &now, LastUpdated: now}
	require.NoError(t, store.SaveProgress(ctx, done, ""))
	require.NoError(t, store.Close())

	reopened, err := New(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	all, err := reopened.ListProgress(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "legacy", all[0].Name)
	assert.Equal(t, 2, all[0].StepsCompleted)
	assert.Equal(t, "deliver_crystal", all[0].CurrentStep)
	assert.Equal(t, types.StatusCompleted, all[1].Status)
	require.NotNil(t, all[1].CompletionTime)
}

func TestEventLog(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	for i, tc := range []struct {
		typ  events.EventType
		goal string
	}{
		{events.EventTypeGoalStarted, "jedi"},
		{events.EventTypeNavigationFailed, "jedi"},
		{events.EventTypeGoalStarted, "legacy"},
		{events.EventTypeGoalLocked, "jedi"},
	} {
		e := events.NewGoalEvent(tc.typ, tc.goal, events.SeverityInfo, "msg", map[string]interface{}{"i": i})
		e.Timestamp = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, store.StoreEvent(ctx, e))
	}

	all, err := store.GetEvents(ctx, events.EventFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, events.EventTypeGoalLocked, all[0].Type, "newest first")
	assert.Equal(t, float64(3), all[0].Data["i"])

	jedi, err := store.GetEvents(ctx, events.EventFilter{Goal: "jedi"})
	require.NoError(t, err)
	assert.Len(t, jedi, 3)

	startedEvents, err := store.GetEvents(ctx, events.EventFilter{Type: events.EventTypeGoalStarted})
	require.NoError(t, err)
	assert.Len(t, startedEvents, 2)

	recent, err := store.GetEvents(ctx, events.EventFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "legacy", recent[1].Goal)

	after, err := store.GetEvents(ctx, events.EventFilter{AfterTime: base.Add(1500 * time.Millisecond)})
	require.NoError(t, err)
	assert.Len(t, after, 2)
}

func TestConfigRoundTrip(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	v, err := store.GetConfig(ctx, "character")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, store.SetConfig(ctx, "character", "Kael"))
	require.NoError(t, store.SetConfig(ctx, "character", "Kael Vantos"))
	v, err = store.GetConfig(ctx, "character")
	require.NoError(t, err)
	assert.Equal(t, "Kael Vantos", v)
}

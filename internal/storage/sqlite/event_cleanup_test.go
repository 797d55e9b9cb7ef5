package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/R21Digital/Project-MorningStar-sub013/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storeAt(t *testing.T, s *SQLiteStorage, ts time.Time, sev events.EventSeverity) {
	t.Helper()
	e := events.NewGoalEvent(events.EventTypeGoalProgressMade, "jedi", sev, "msg", nil)
	e.Timestamp = ts
	require.NoError(t, s.StoreEvent(context.Background(), e))
}

func TestCleanupEventsByAge(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)

	storeAt(t, store, now.AddDate(0, 0, -100), events.SeverityInfo)
	storeAt(t, store, now.AddDate(0, 0, -40), events.SeverityWarning)
	storeAt(t, store, now.AddDate(0, 0, -40), events.SeverityError)
	storeAt(t, store, now.AddDate(0, 0, -100), events.SeverityCritical)
	storeAt(t, store, now.AddDate(0, 0, -1), events.SeverityInfo)

	deleted, err := store.CleanupEventsByAge(ctx, now.AddDate(0, 0, -30), now.AddDate(0, 0, -90), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	left, err := store.GetEvents(ctx, events.EventFilter{})
	require.NoError(t, err)
	require.Len(t, left, 2)
	assert.Equal(t, events.SeverityInfo, left[0].Severity)
	assert.Equal(t, events.SeverityError, left[1].Severity, "error kept until the critical cutoff")
}

func TestCleanupEventsByGlobalLimit(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	storeAt(t, store, base, events.SeverityCritical)
	for i := 1; i <= 5; i++ {
		storeAt(t, store, base.Add(time.Duration(i)*time.Minute), events.SeverityInfo)
	}

	deleted, err := store.CleanupEventsByGlobalLimit(ctx, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	left, err := store.GetEvents(ctx, events.EventFilter{})
	require.NoError(t, err)
	require.Len(t, left, 3)
	assert.Equal(t, events.SeverityCritical, left[2].Severity, "oldest critical event survives")

	deleted, err = store.CleanupEventsByGlobalLimit(ctx, 3, 2)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

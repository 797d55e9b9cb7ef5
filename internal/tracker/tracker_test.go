package tracker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/R21Digital/Project-MorningStar-sub013/internal/catalog"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/clock"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/events"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/requirements"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/storage"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/types"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingObserver struct {
	transitions []string
	steps       int
}

func (o *recordingObserver) Transition(goal string, from, to types.Status) {
	o.transitions = append(o.transitions, goal+":"+string(from)+"->"+string(to))
}

func (o *recordingObserver) StepAdvanced(string) { o.steps++ }

type fixture struct {
	store    storage.Storage
	path     string
	catalog  *catalog.Catalog
	clock    *clock.Fake
	observer *recordingObserver
	tracker  *Tracker
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	loc := types.Location{Planet: "dathomir", Zone: "village"}
	cat, err := catalog.New(
		&types.Goal{
			Name: "jedi_unlock", Type: types.TypeCharacterSlot, Priority: types.PriorityCritical, Location: loc,
			Requirements: []types.Requirement{
				types.ReputationRequirement{Region: "Dathomir", Required: 2000},
				types.QuestRequirement{Quest: "legacy_quest"},
				types.LevelRequirement{Required: 25},
			},
			Rewards:    []string{"jedi_slot"},
			QuestChain: []types.QuestStep{{ID: "speak_to_elder"}, {ID: "pass_trial"}, {ID: "claim_slot"}},
		},
		&types.Goal{
			Name: "force_path", Type: types.TypeUnlockPath, Priority: types.PriorityHigh, Location: loc,
			Requirements: []types.Requirement{types.UnlockRequirement{Reward: "jedi_slot"}},
		},
		&types.Goal{
			Name: "starter", Type: types.TypeKeyQuest, Priority: types.PriorityLow, Location: loc,
			Requirements: []types.Requirement{types.LevelRequirement{Required: 1}},
		},
	)
	require.NoError(t, err)
	return cat
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		path:     filepath.Join(t.TempDir(), "test.db"),
		catalog:  testCatalog(t),
		clock:    clock.NewFake(time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)),
		observer: &recordingObserver{},
	}
	f.open(t)
	return f
}

func (f *fixture) open(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	store, err := storage.NewStorage(ctx, &storage.Config{Path: f.path})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	f.store = store

	rec := events.NewRecorder(store, zap.NewNop(), f.clock.Now)
	tr, err := New(ctx, store, f.catalog, rec, zap.NewNop(), WithClock(f.clock), WithObserver(f.observer))
	require.NoError(t, err)
	f.tracker = tr
}

func state(level int) *world.State {
	return &world.State{
		CharacterLevel: level,
		Reputations:    map[string]int{"Dathomir": 2000},
		Quests:         map[string]string{"legacy_quest": "completed"},
	}
}

func (f *fixture) snap(level int) requirements.Snapshot {
	return f.tracker.Snapshot(state(level))
}

func TestStartRequiresAllRequirements(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.Start(ctx, "jedi_unlock", f.snap(20))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrRequirementsUnmet))
	assert.Contains(t, err.Error(), "level >= 25")

	p, err := f.tracker.Get("jedi_unlock")
	require.NoError(t, err)
	assert.Equal(t, types.StatusNotStarted, p.Status)

	p, err = f.tracker.Start(ctx, "jedi_unlock", f.snap(25))
	require.NoError(t, err)
	assert.Equal(t, types.StatusInProgress, p.Status)
	assert.Equal(t, 3, p.TotalSteps)
	require.NotNil(t, p.StartTime)
	assert.Equal(t, f.clock.Now(), *p.StartTime)
}

func TestStartWhileAnotherActiveLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.Start(ctx, "jedi_unlock", f.snap(30))
	require.NoError(t, err)

	_, err = f.tracker.Start(ctx, "starter", f.snap(30))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrGoalActive))

	starter, err := f.store.GetProgress(ctx, "starter")
	require.NoError(t, err)
	assert.Nil(t, starter, "nothing persisted for the rejected goal")

	active := f.tracker.Active()
	require.NotNil(t, active)
	assert.Equal(t, "jedi_unlock", active.Name)
	assert.Equal(t, 1, f.tracker.Status().ActiveGoals)

	// Starting the active goal again is a no-op.
	p, err := f.tracker.Start(ctx, "jedi_unlock", f.snap(30))
	require.NoError(t, err)
	assert.Equal(t, types.StatusInProgress, p.Status)
}

func TestAdvanceToCompletionIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.Start(ctx, "jedi_unlock", f.snap(30))
	require.NoError(t, err)

	for _, step := range []string{"speak_to_elder", "pass_trial"} {
		p, err := f.tracker.Advance(ctx, "jedi_unlock", step)
		require.NoError(t, err)
		assert.Equal(t, types.StatusInProgress, p.Status)
		assert.Equal(t, step, p.CurrentStep)
	}
	f.clock.Advance(time.Minute)
	p, err := f.tracker.Advance(ctx, "jedi_unlock", "claim_slot")
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, p.Status)
	assert.Equal(t, 3, p.StepsCompleted)
	require.NotNil(t, p.CompletionTime)
	assert.Equal(t, f.clock.Now(), *p.CompletionTime)

	// Completed goals never change again.
	_, err = f.tracker.Advance(ctx, "jedi_unlock", "extra")
	assert.True(t, errors.Is(err, types.ErrInvalidTransition))
	_, err = f.tracker.Lock(ctx, "jedi_unlock", "x")
	assert.True(t, errors.Is(err, types.ErrInvalidTransition))
	_, err = f.tracker.Fail(ctx, "jedi_unlock", "x")
	assert.True(t, errors.Is(err, types.ErrInvalidTransition))
	_, err = f.tracker.Reset(ctx, "jedi_unlock")
	assert.True(t, errors.Is(err, types.ErrInvalidTransition))
	_, err = f.tracker.Start(ctx, "jedi_unlock", f.snap(30))
	assert.True(t, errors.Is(err, types.ErrInvalidTransition))

	stored, err := f.store.GetProgress(ctx, "jedi_unlock")
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, stored.Status)
	assert.Equal(t, 3, stored.StepsCompleted)

	assert.Equal(t, []string{"jedi_slot"}, f.tracker.GrantedRewards())
	assert.Equal(t, 3, f.observer.steps)

	completed, err := f.store.GetEvents(ctx, events.EventFilter{Type: events.EventTypeGoalCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	progress, err := f.store.GetEvents(ctx, events.EventFilter{Type: events.EventTypeGoalProgressMade})
	require.NoError(t, err)
	assert.Len(t, progress, 3)
}

func TestRewardsUnlockDependentGoal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.Start(ctx, "force_path", f.snap(30))
	assert.True(t, errors.Is(err, types.ErrRequirementsUnmet))

	_, err = f.tracker.Start(ctx, "jedi_unlock", f.snap(30))
	require.NoError(t, err)
	for _, step := range []string{"a", "b", "c"} {
		_, err = f.tracker.Advance(ctx, "jedi_unlock", step)
		require.NoError(t, err)
	}

	p, err := f.tracker.Start(ctx, "force_path", f.snap(30))
	require.NoError(t, err)
	assert.Equal(t, types.StatusInProgress, p.Status)
}

func TestLockPreservesStepsAndReconcileUnlocks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.Start(ctx, "jedi_unlock", f.snap(30))
	require.NoError(t, err)
	_, err = f.tracker.Advance(ctx, "jedi_unlock", "speak_to_elder")
	require.NoError(t, err)

	p, err := f.tracker.Lock(ctx, "jedi_unlock", "requirement level >= 25 no longer met")
	require.NoError(t, err)
	assert.Equal(t, types.StatusLocked, p.Status)
	assert.Equal(t, 1, p.StepsCompleted)
	assert.Equal(t, 1, f.tracker.Status().LockedGoals)
	assert.Nil(t, f.tracker.Status().CurrentGoal)

	unlocked, err := f.tracker.Reconcile(ctx, f.snap(20))
	require.NoError(t, err)
	assert.Empty(t, unlocked)

	unlocked, err = f.tracker.Reconcile(ctx, f.snap(25))
	require.NoError(t, err)
	assert.Equal(t, []string{"jedi_unlock"}, unlocked)

	p, err = f.tracker.Get("jedi_unlock")
	require.NoError(t, err)
	assert.Equal(t, types.StatusNotStarted, p.Status)
	assert.Empty(t, p.Reason)

	p, err = f.tracker.Start(ctx, "jedi_unlock", f.snap(25))
	require.NoError(t, err)
	assert.Equal(t, 1, p.StepsCompleted, "resumed goal keeps its steps")
	assert.Equal(t, 3, p.TotalSteps)
}

func TestStartLockedGoalUnlocksFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.Start(ctx, "jedi_unlock", f.snap(30))
	require.NoError(t, err)
	_, err = f.tracker.Lock(ctx, "jedi_unlock", "navigation failed 3 times")
	require.NoError(t, err)

	_, err = f.tracker.Start(ctx, "jedi_unlock", f.snap(30))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"jedi_unlock:NOT_STARTED->IN_PROGRESS",
		"jedi_unlock:IN_PROGRESS->LOCKED",
		"jedi_unlock:LOCKED->NOT_STARTED",
		"jedi_unlock:NOT_STARTED->IN_PROGRESS",
	}, f.observer.transitions)
}

func TestLockForHoldsGoalThroughCooldown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	locked := f.clock.Now()

	_, err := f.tracker.Start(ctx, "jedi_unlock", f.snap(30))
	require.NoError(t, err)
	p, err := f.tracker.LockFor(ctx, "jedi_unlock", "navigation failed 3 consecutive times", 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, types.StatusLocked, p.Status)
	assert.Equal(t, 1, p.LockCount)
	require.NotNil(t, p.LockedUntil)
	assert.True(t, p.LockedUntil.Equal(locked.Add(5*time.Minute)))

	lockEvents, err := f.store.GetEvents(ctx, events.EventFilter{Type: events.EventTypeGoalLocked})
	require.NoError(t, err)
	require.Len(t, lockEvents, 1)
	assert.Contains(t, lockEvents[0].Message, "retry after")

	// requirements hold, but the cool-down has not passed
	f.clock.Advance(4 * time.Minute)
	unlocked, err := f.tracker.Reconcile(ctx, f.snap(30))
	require.NoError(t, err)
	assert.Empty(t, unlocked)

	// the cool-down survives a restart
	require.NoError(t, f.store.Close())
	f.open(t)
	unlocked, err = f.tracker.Reconcile(ctx, f.snap(30))
	require.NoError(t, err)
	assert.Empty(t, unlocked)

	f.clock.Advance(time.Minute)
	unlocked, err = f.tracker.Reconcile(ctx, f.snap(30))
	require.NoError(t, err)
	assert.Equal(t, []string{"jedi_unlock"}, unlocked)

	p, err = f.tracker.Get("jedi_unlock")
	require.NoError(t, err)
	assert.Equal(t, types.StatusNotStarted, p.Status)
	assert.Nil(t, p.LockedUntil)
	assert.Equal(t, 1, p.LockCount)

	_, err = f.tracker.Start(ctx, "jedi_unlock", f.snap(30))
	require.NoError(t, err)
	p, err = f.tracker.LockFor(ctx, "jedi_unlock", "navigation failed 3 consecutive times", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, p.LockCount)

	// an explicit start overrides the cool-down; progress clears the count
	p, err = f.tracker.Start(ctx, "jedi_unlock", f.snap(30))
	require.NoError(t, err)
	assert.Nil(t, p.LockedUntil)
	p, err = f.tracker.Advance(ctx, "jedi_unlock", "speak_to_elder")
	require.NoError(t, err)
	assert.Zero(t, p.LockCount)
}

func TestFailAndReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.Start(ctx, "starter", f.snap(5))
	require.NoError(t, err)

	p, err := f.tracker.Fail(ctx, "starter", "quest giver removed from the world")
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, p.Status)
	assert.Equal(t, "quest giver removed from the world", p.Reason)
	assert.Equal(t, 1, f.tracker.Status().FailedGoals)

	_, err = f.tracker.Start(ctx, "starter", f.snap(5))
	assert.True(t, errors.Is(err, types.ErrInvalidTransition), "failed goals are not retried")

	p, err = f.tracker.Reset(ctx, "starter")
	require.NoError(t, err)
	assert.Equal(t, types.StatusNotStarted, p.Status)
	assert.Zero(t, p.StepsCompleted)
	assert.Nil(t, p.StartTime)

	_, err = f.tracker.Start(ctx, "starter", f.snap(5))
	require.NoError(t, err)

	resets, err := f.store.GetEvents(ctx, events.EventFilter{Type: events.EventTypeGoalReset})
	require.NoError(t, err)
	assert.Len(t, resets, 1)
}

func TestResumeAfterReopen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.Start(ctx, "jedi_unlock", f.snap(30))
	require.NoError(t, err)
	_, err = f.tracker.Advance(ctx, "jedi_unlock", "speak_to_elder")
	require.NoError(t, err)
	require.NoError(t, f.store.Close())

	f.open(t)

	active := f.tracker.Active()
	require.NotNil(t, active)
	assert.Equal(t, "jedi_unlock", active.Name)
	assert.Equal(t, 1, active.StepsCompleted)
	assert.Equal(t, "speak_to_elder", active.CurrentStep)

	status := f.tracker.Status()
	assert.Equal(t, 3, status.TotalGoals)
	require.NotNil(t, status.CurrentGoal)
	assert.Equal(t, 3, status.CurrentGoal.TotalSteps)

	p, err := f.tracker.Advance(ctx, "jedi_unlock", "pass_trial")
	require.NoError(t, err)
	assert.Equal(t, 2, p.StepsCompleted)
}

func TestUnknownGoal(t *testing.T) {
	f := newFixture(t)
	_, err := f.tracker.Start(context.Background(), "nope", f.snap(1))
	assert.True(t, errors.Is(err, types.ErrGoalNotFound))
	_, err = f.tracker.Get("nope")
	assert.True(t, errors.Is(err, types.ErrGoalNotFound))
}

// Package tracker owns per-goal progress and its state machine. Every
// transition is written to the store before the call returns and is then
// recorded in the event log.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/R21Digital/Project-MorningStar-sub013/internal/catalog"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/clock"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/events"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/requirements"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/storage"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/types"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/world"
	"go.uber.org/zap"
)

// Observer is notified after each persisted transition.
type Observer interface {
	Transition(goal string, from, to types.Status)
	StepAdvanced(goal string)
}

// Tracker tracks progress for every goal of one character.
type Tracker struct {
	store    storage.Storage
	catalog  *catalog.Catalog
	recorder *events.Recorder
	clock    clock.Clock
	logger   *zap.Logger
	observer Observer

	mu       sync.RWMutex
	progress map[string]*types.GoalProgress
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithObserver registers a transition observer (metrics).
func WithObserver(o Observer) Option {
	return func(t *Tracker) { t.observer = o }
}

// WithClock overrides the wall clock.
func WithClock(c clock.Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// New loads existing progress from the store.
func New(ctx context.Context, store storage.Storage, cat *catalog.Catalog, recorder *events.Recorder, logger *zap.Logger, opts ...Option) (*Tracker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{
		store:    store,
		catalog:  cat,
		recorder: recorder,
		clock:    clock.New(),
		logger:   logger.Named("tracker"),
		progress: make(map[string]*types.GoalProgress),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.recorder == nil {
		t.recorder = events.NewRecorder(store, t.logger, t.clock.Now)
	}

	records, err := store.ListProgress(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}
	for _, p := range records {
		if _, err := cat.Get(p.Name); err != nil {
			t.logger.Warn("stored progress for goal not in catalog", zap.String("goal", p.Name), zap.String("status", string(p.Status)))
		}
		t.progress[p.Name] = p
	}
	t.logger.Info("progress loaded", zap.Int("records", len(records)))
	return t, nil
}

// Get returns a copy of the goal's progress. Goals never selected report
// NOT_STARTED.
func (t *Tracker) Get(name string) (*types.GoalProgress, error) {
	if _, err := t.catalog.Get(name); err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.getLocked(name), nil
}

func (t *Tracker) getLocked(name string) *types.GoalProgress {
	if p, ok := t.progress[name]; ok {
		return p.Clone()
	}
	return types.NewGoalProgress(name)
}

// All returns copies of every stored record keyed by goal name.
func (t *Tracker) All() map[string]*types.GoalProgress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]*types.GoalProgress, len(t.progress))
	for name, p := range t.progress {
		out[name] = p.Clone()
	}
	return out
}

// Active returns the IN_PROGRESS goal's progress, or nil.
func (t *Tracker) Active() *types.GoalProgress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.activeLocked()
}

func (t *Tracker) activeLocked() *types.GoalProgress {
	for _, p := range t.progress {
		if p.Status == types.StatusInProgress {
			return p.Clone()
		}
	}
	return nil
}

// GrantedRewards returns the reward tags of every COMPLETED goal, sorted.
func (t *Tracker) GrantedRewards() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for name, p := range t.progress {
		if p.Status != types.StatusCompleted {
			continue
		}
		g, err := t.catalog.Get(name)
		if err != nil {
			continue
		}
		for _, r := range g.Rewards {
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Snapshot combines a perception with the rewards earned so far.
func (t *Tracker) Snapshot(p world.Perception) requirements.Snapshot {
	return requirements.WithGrants(p, t.GrantedRewards())
}

// Start moves a goal to IN_PROGRESS. It fails if another goal is in
// progress, the goal is terminal, or any requirement is unmet; in every
// failure case stored state is unchanged. A LOCKED goal is first unlocked,
// even inside a LockFor cool-down. A goal resumed after a lock keeps its
// completed steps.
func (t *Tracker) Start(ctx context.Context, name string, snap requirements.Snapshot) (*types.GoalProgress, error) {
	goal, err := t.catalog.Get(name)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if active := t.activeLocked(); active != nil {
		if active.Name == name {
			return active, nil
		}
		return nil, fmt.Errorf("cannot start %s while %s is in progress: %w", name, active.Name, types.ErrGoalActive)
	}

	current := t.getLocked(name)
	if current.Status.IsTerminal() {
		return nil, fmt.Errorf("cannot start %s: status is %s: %w", name, current.Status, types.ErrInvalidTransition)
	}

	check := requirements.CheckGoal(goal, snap)
	if !check.AllRequirementsMet {
		return nil, fmt.Errorf("cannot start %s: %s: %w", name, describeUnmet(check), types.ErrRequirementsUnmet)
	}

	now := t.clock.Now()
	if current.Status == types.StatusLocked {
		if current, err = t.unlockLocked(ctx, current, "requirements met at start"); err != nil {
			return nil, err
		}
	}

	next := current.Clone()
	_, stored := t.progress[name]
	resumed := next.TotalSteps > 0
	next.Status = types.StatusInProgress
	if !resumed {
		next.TotalSteps = goal.TotalSteps()
		next.StepsCompleted = 0
	}
	if next.StartTime == nil {
		next.StartTime = &now
	}
	next.CompletionTime = nil
	next.Reason = ""
	next.LastUpdated = now

	expected := current.Status
	if !stored {
		expected = ""
	}
	if err := t.persistLocked(ctx, next, expected); err != nil {
		return nil, err
	}

	t.recorder.Emit(ctx, events.EventTypeGoalStarted, name, events.SeverityInfo,
		fmt.Sprintf("started goal %s (%d/%d steps)", name, next.StepsCompleted, next.TotalSteps),
		map[string]interface{}{
			"resumed":         resumed,
			"steps_completed": next.StepsCompleted,
			"total_steps":     next.TotalSteps,
			"priority":        string(goal.Priority),
		})
	t.notify(name, current.Status, next.Status)
	return next.Clone(), nil
}

// Advance records a confirmed step. Reaching total_steps completes the goal.
func (t *Tracker) Advance(ctx context.Context, name, stepID string) (*types.GoalProgress, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	current, err := t.requireStatusLocked(name, types.StatusInProgress)
	if err != nil {
		return nil, err
	}

	now := t.clock.Now()
	next := current.Clone()
	next.StepsCompleted++
	next.CurrentStep = stepID
	next.LockCount = 0
	next.LastUpdated = now
	if next.StepsCompleted >= next.TotalSteps {
		next.StepsCompleted = next.TotalSteps
		next.Status = types.StatusCompleted
		next.CompletionTime = &now
	}

	if err := t.persistLocked(ctx, next, types.StatusInProgress); err != nil {
		return nil, err
	}

	data := events.StepProgressData{StepID: stepID, StepsCompleted: next.StepsCompleted, TotalSteps: next.TotalSteps}
	event, err := events.NewStepProgressEvent(events.EventTypeGoalProgressMade, name,
		fmt.Sprintf("goal %s step %s done (%d/%d)", name, stepID, next.StepsCompleted, next.TotalSteps), data)
	t.record(ctx, event, err)
	if t.observer != nil {
		t.observer.StepAdvanced(name)
	}

	if next.Status == types.StatusCompleted {
		event, err := events.NewStepProgressEvent(events.EventTypeGoalCompleted, name,
			fmt.Sprintf("goal %s completed", name), data)
		t.record(ctx, event, err)
		t.notify(name, types.StatusInProgress, types.StatusCompleted)
	}
	return next.Clone(), nil
}

// Fail marks an in-progress goal as permanently failed. It is never retried
// automatically; see Reset.
func (t *Tracker) Fail(ctx context.Context, name, reason string) (*types.GoalProgress, error) {
	return t.park(ctx, name, types.StatusFailed, reason, events.EventTypeGoalFailed, events.SeverityError, nil)
}

// Lock parks an in-progress goal whose requirements regressed. Steps are kept.
// Reconcile lifts the lock as soon as the requirements hold again.
func (t *Tracker) Lock(ctx context.Context, name, reason string) (*types.GoalProgress, error) {
	return t.park(ctx, name, types.StatusLocked, reason, events.EventTypeGoalLocked, events.SeverityWarning, nil)
}

// LockFor parks an in-progress goal that ran out of retries. Reconcile and
// the selector leave it alone until cooldown has passed, so other goals get
// a turn. Each call increments the goal's lock count; Advance clears it.
func (t *Tracker) LockFor(ctx context.Context, name, reason string, cooldown time.Duration) (*types.GoalProgress, error) {
	return t.park(ctx, name, types.StatusLocked, reason, events.EventTypeGoalLocked, events.SeverityWarning,
		func(next *types.GoalProgress) {
			next.LockCount++
			if cooldown > 0 {
				until := next.LastUpdated.Add(cooldown)
				next.LockedUntil = &until
			}
		})
}

func (t *Tracker) park(ctx context.Context, name string, to types.Status, reason string, eventType events.EventType, severity events.EventSeverity, mutate func(*types.GoalProgress)) (*types.GoalProgress, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	current, err := t.requireStatusLocked(name, types.StatusInProgress)
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	next.Status = to
	next.Reason = reason
	next.LastUpdated = t.clock.Now()
	if mutate != nil {
		mutate(next)
	}
	if err := t.persistLocked(ctx, next, types.StatusInProgress); err != nil {
		return nil, err
	}

	message := fmt.Sprintf("goal %s %s: %s", name, strings.ToLower(string(to)), reason)
	if next.LockedUntil != nil {
		message += fmt.Sprintf(" (retry after %s)", next.LockedUntil.Format(time.RFC3339))
	}
	event, err := events.NewTransitionEvent(eventType, name, severity, message,
		events.TransitionData{From: string(types.StatusInProgress), To: string(to), Reason: reason, LockedUntil: next.LockedUntil})
	t.record(ctx, event, err)
	t.notify(name, types.StatusInProgress, to)
	return next.Clone(), nil
}

// Reconcile returns every LOCKED goal whose requirements are met again to
// NOT_STARTED and reports their names in catalog order. Goals still inside
// a LockFor cool-down stay locked.
func (t *Tracker) Reconcile(ctx context.Context, snap requirements.Snapshot) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	var unlocked []string
	for _, goal := range t.catalog.All() {
		p, ok := t.progress[goal.Name]
		if !ok || p.Status != types.StatusLocked || p.CoolingDown(now) {
			continue
		}
		if !requirements.CheckGoal(goal, snap).AllRequirementsMet {
			continue
		}
		if _, err := t.unlockLocked(ctx, p.Clone(), "requirements met again"); err != nil {
			return unlocked, err
		}
		unlocked = append(unlocked, goal.Name)
	}
	return unlocked, nil
}

func (t *Tracker) unlockLocked(ctx context.Context, current *types.GoalProgress, reason string) (*types.GoalProgress, error) {
	next := current.Clone()
	next.Status = types.StatusNotStarted
	next.Reason = ""
	next.LockedUntil = nil
	next.LastUpdated = t.clock.Now()
	if err := t.persistLocked(ctx, next, types.StatusLocked); err != nil {
		return nil, err
	}
	event, err := events.NewTransitionEvent(events.EventTypeGoalUnlocked, next.Name, events.SeverityInfo,
		fmt.Sprintf("goal %s unlocked: %s", next.Name, reason),
		events.TransitionData{From: string(types.StatusLocked), To: string(types.StatusNotStarted), Reason: current.Reason})
	t.record(ctx, event, err)
	t.notify(next.Name, types.StatusLocked, types.StatusNotStarted)
	return next, nil
}

// Reset returns a FAILED goal to NOT_STARTED with its steps cleared.
// COMPLETED goals can never be reset.
func (t *Tracker) Reset(ctx context.Context, name string) (*types.GoalProgress, error) {
	if _, err := t.catalog.Get(name); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	current := t.getLocked(name)
	if !current.Status.CanReset() {
		return nil, fmt.Errorf("cannot reset %s from %s: %w", name, current.Status, types.ErrInvalidTransition)
	}

	next := types.NewGoalProgress(name)
	next.LastUpdated = t.clock.Now()
	if err := t.persistLocked(ctx, next, current.Status); err != nil {
		return nil, err
	}
	event, err := events.NewTransitionEvent(events.EventTypeGoalReset, name, events.SeverityInfo,
		fmt.Sprintf("goal %s reset by operator", name),
		events.TransitionData{From: string(current.Status), To: string(types.StatusNotStarted), Reason: current.Reason})
	t.record(ctx, event, err)
	t.notify(name, current.Status, types.StatusNotStarted)
	return next.Clone(), nil
}

// Status summarizes the last durable state.
func (t *Tracker) Status() types.GoalStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	status := types.GoalStatus{TotalGoals: t.catalog.Len()}
	for _, goal := range t.catalog.All() {
		p, ok := t.progress[goal.Name]
		if !ok {
			continue
		}
		switch p.Status {
		case types.StatusInProgress:
			status.ActiveGoals++
			status.CurrentGoal = &types.CurrentGoal{
				Name:           p.Name,
				StepsCompleted: p.StepsCompleted,
				TotalSteps:     p.TotalSteps,
				Status:         p.Status,
				CurrentStep:    p.CurrentStep,
			}
		case types.StatusCompleted:
			status.CompletedGoals++
		case types.StatusFailed:
			status.FailedGoals++
		case types.StatusLocked:
			status.LockedGoals++
		}
	}
	return status
}

func (t *Tracker) requireStatusLocked(name string, want types.Status) (*types.GoalProgress, error) {
	if _, err := t.catalog.Get(name); err != nil {
		return nil, err
	}
	current := t.getLocked(name)
	if current.Status != want {
		return nil, fmt.Errorf("goal %s is %s, not %s: %w", name, current.Status, want, types.ErrInvalidTransition)
	}
	return current, nil
}

// persistLocked writes next and, only on success, updates the cache. A
// conflicting write reloads the record so the cache matches the store.
func (t *Tracker) persistLocked(ctx context.Context, next *types.GoalProgress, expected types.Status) error {
	from := expected
	if from == "" {
		from = types.StatusNotStarted
	}
	reset := from.CanReset() && next.Status == types.StatusNotStarted
	if from != next.Status && !from.CanTransitionTo(next.Status) && !reset {
		return fmt.Errorf("%s: %s -> %s: %w", next.Name, from, next.Status, types.ErrInvalidTransition)
	}

	if err := t.store.SaveProgress(ctx, next, expected); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			if fresh, rerr := t.store.GetProgress(ctx, next.Name); rerr == nil && fresh != nil {
				t.progress[next.Name] = fresh
			}
		}
		return err
	}
	t.progress[next.Name] = next.Clone()
	return nil
}

func (t *Tracker) record(ctx context.Context, event *events.GoalEvent, err error) {
	if err != nil {
		t.logger.Warn("failed to build goal event", zap.Error(err))
		return
	}
	t.recorder.Record(ctx, event)
}

func (t *Tracker) notify(goal string, from, to types.Status) {
	if t.observer != nil {
		t.observer.Transition(goal, from, to)
	}
}

func describeUnmet(check requirements.GoalCheck) string {
	unmet := check.Unmet()
	parts := make([]string, 0, len(unmet))
	for _, ev := range unmet {
		if ev.Err != nil {
			parts = append(parts, ev.Err.Error())
			continue
		}
		parts = append(parts, fmt.Sprintf("%s (have %d, need %d)", ev.Description, ev.Current, ev.Required))
	}
	return strings.Join(parts, "; ")
}

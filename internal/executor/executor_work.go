package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/R21Digital/Project-MorningStar-sub013/internal/events"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/requirements"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/types"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/world"
	"go.uber.org/zap"
)

// Iteration outcomes, also used as metric labels
const (
	outcomeAdvanced    = "advanced"
	outcomeWaiting     = "waiting"
	outcomeTraveled    = "traveled"
	outcomeNavFailed   = "navigation_failed"
	outcomeInterFailed = "interaction_failed"
	outcomeLocked      = "locked"
	outcomeFailed      = "failed"
)

// work performs one micro-step on the active goal: re-validate its
// requirements, travel if needed, else interact.
func (e *Executor) work(ctx context.Context, st *loopState, p *types.GoalProgress, perception world.Perception, snap requirements.Snapshot) (string, time.Duration) {
	st.track(p)

	goal, err := e.catalog.Get(p.Name)
	if err != nil {
		e.lock(ctx, st, p.Name, "goal is no longer in the catalog")
		return outcomeLocked, e.config.PollInterval
	}

	check := requirements.CheckGoal(goal, snap)
	if !check.AllRequirementsMet {
		reg := &types.EnvironmentalRegression{Goal: goal.Name, Reason: regressionReason(check)}
		if e.metrics != nil {
			e.metrics.CollaboratorFailure("requirements", "regression")
		}
		e.lock(ctx, st, goal.Name, reg.Reason)
		return outcomeLocked, e.config.PollInterval
	}

	step, ok := goal.Step(p.StepsCompleted)
	if !ok {
		e.suspend(ctx, st, goal.Name, fmt.Sprintf("no step %d in quest chain of %d steps", p.StepsCompleted+1, goal.TotalSteps()))
		return outcomeLocked, e.config.PollInterval
	}

	if !e.arrived(st, perception, goal.Location) {
		return e.navigate(ctx, st, goal)
	}
	return e.interact(ctx, st, goal, step, snap)
}

// arrived trusts the reported position when there is one; otherwise a
// successful NavigateTo for this goal counts as arrival.
func (e *Executor) arrived(st *loopState, p world.Perception, loc types.Location) bool {
	if pos, ok := p.(world.Positioned); ok {
		if _, known := pos.Position(); known {
			return world.AtLocation(p, loc, e.config.ArrivalRadius)
		}
	}
	return st.moved
}

func (e *Executor) navigate(ctx context.Context, st *loopState, goal *types.Goal) (string, time.Duration) {
	e.throttle(ctx)
	callCtx, cancel := e.callContext(ctx, e.config.NavigationTimeout)
	err := e.navigator.NavigateTo(callCtx, goal.Location)
	cancel()

	if err == nil {
		st.moved = true
		st.navFailures = 0
		st.backoff = 0
		e.logger.Debug("arrived", zap.String("goal", goal.Name), zap.Stringer("location", goal.Location))
		return outcomeTraveled, e.config.PollInterval
	}

	e.collaboratorFailure("navigate", err)
	if types.IsTerminal(err) {
		e.fail(ctx, st, goal.Name, err)
		return outcomeFailed, e.config.PollInterval
	}

	st.moved = false
	st.navFailures++
	texErr := &types.TransientExecutionError{Op: "navigate", Err: err}
	if st.navFailures >= e.config.MaxNavigationFailures {
		e.recordFailure(ctx, events.EventTypeNavigationFailed, goal.Name, texErr, st.navFailures, e.config.MaxNavigationFailures, 0)
		e.suspend(ctx, st, goal.Name, fmt.Sprintf("navigation to %s failed %d consecutive times: %v", goal.Location, st.navFailures, err))
		return outcomeLocked, e.config.PollInterval
	}

	backoff := e.nextBackoff(st)
	e.recordFailure(ctx, events.EventTypeNavigationFailed, goal.Name, texErr, st.navFailures, e.config.MaxNavigationFailures, backoff)
	return outcomeNavFailed, backoff
}

// interact drives one dialogue exchange for the current step. Goals
// confirmed by state check the confirmation first and treat an unconfirmed
// but successful exchange as progress still under way.
func (e *Executor) interact(ctx context.Context, st *loopState, goal *types.Goal, step types.QuestStep, snap requirements.Snapshot) (string, time.Duration) {
	byState := goal.Type.ConfirmsByState()
	if byState && step.Confirm != nil && requirements.Evaluate(step.Confirm, snap).Met {
		return e.advance(ctx, st, goal, step)
	}

	if op, err := e.exchange(ctx, step); err != nil {
		return e.interactionFailure(ctx, st, goal, op, err)
	}

	if step.Confirm == nil {
		return e.advance(ctx, st, goal, step)
	}

	after, err := e.observe(ctx)
	if err != nil {
		return e.interactionFailure(ctx, st, goal, "confirm", err)
	}
	ev := requirements.Evaluate(step.Confirm, e.tracker.Snapshot(after))
	if ev.Met {
		return e.advance(ctx, st, goal, step)
	}
	if byState {
		st.interactionFailures = 0
		st.backoff = 0
		e.logger.Debug("step not yet confirmed",
			zap.String("goal", goal.Name),
			zap.String("step", step.ID),
			zap.Int("current", ev.Current),
			zap.Int("required", ev.Required))
		return outcomeWaiting, e.config.PollInterval
	}
	return e.interactionFailure(ctx, st, goal, "confirm",
		fmt.Errorf("step %s not confirmed: %s", step.ID, ev.Description))
}

// exchange opens the dialogue and selects the step's option. It returns the
// failing operation name with the error.
func (e *Executor) exchange(ctx context.Context, step types.QuestStep) (string, error) {
	e.throttle(ctx)
	callCtx, cancel := e.callContext(ctx, e.config.DialogueTimeout)
	defer cancel()

	win, err := e.dialogue.WaitForDialogue(callCtx, e.config.DialogueTimeout)
	if err != nil {
		return "dialogue", err
	}
	idx, err := win.Match(step.OptionText())
	if err != nil {
		return "select_option", err
	}
	if err := e.dialogue.SelectOption(callCtx, idx); err != nil {
		return "select_option", err
	}
	return "", nil
}

func (e *Executor) interactionFailure(ctx context.Context, st *loopState, goal *types.Goal, op string, err error) (string, time.Duration) {
	e.collaboratorFailure(op, err)
	if types.IsTerminal(err) {
		e.fail(ctx, st, goal.Name, err)
		return outcomeFailed, e.config.PollInterval
	}

	st.interactionFailures++
	texErr := &types.TransientExecutionError{Op: op, Err: err}
	if st.interactionFailures >= e.config.MaxInteractionFailures {
		e.recordFailure(ctx, events.EventTypeInteractionFailed, goal.Name, texErr, st.interactionFailures, e.config.MaxInteractionFailures, 0)
		e.suspend(ctx, st, goal.Name, fmt.Sprintf("interaction failed %d consecutive times: %v", st.interactionFailures, texErr))
		return outcomeLocked, e.config.PollInterval
	}

	backoff := e.nextBackoff(st)
	e.recordFailure(ctx, events.EventTypeInteractionFailed, goal.Name, texErr, st.interactionFailures, e.config.MaxInteractionFailures, backoff)
	return outcomeInterFailed, backoff
}

func (e *Executor) advance(ctx context.Context, st *loopState, goal *types.Goal, step types.QuestStep) (string, time.Duration) {
	p, err := e.tracker.Advance(ctx, goal.Name, step.ID)
	if err != nil {
		e.logger.Warn("failed to record step", zap.String("goal", goal.Name), zap.String("step", step.ID), zap.Error(err))
		return outcomeWaiting, e.config.PollInterval
	}
	st.resetFailures()
	e.logger.Info("step completed",
		zap.String("goal", goal.Name),
		zap.String("step", step.ID),
		zap.Int("steps_completed", p.StepsCompleted),
		zap.Int("total_steps", p.TotalSteps))
	return outcomeAdvanced, e.config.PollInterval
}

// lock parks the goal; it resumes once its requirements hold again
func (e *Executor) lock(ctx context.Context, st *loopState, name, reason string) {
	if _, err := e.tracker.Lock(ctx, name, reason); err != nil {
		e.logger.Warn("failed to lock goal", zap.String("goal", name), zap.Error(err))
	}
	st.forget()
}

// suspend locks a goal that ran out of retries. It stays locked for a
// cool-down that doubles with each lock since its last progress, and other
// goals are selected meanwhile.
func (e *Executor) suspend(ctx context.Context, st *loopState, name, reason string) {
	prior := 0
	if p, err := e.tracker.Get(name); err == nil {
		prior = p.LockCount
	}
	cooldown := e.lockCooldown(prior)
	if _, err := e.tracker.LockFor(ctx, name, reason, cooldown); err != nil {
		e.logger.Warn("failed to lock goal", zap.String("goal", name), zap.Error(err))
	} else {
		e.logger.Info("goal locked after retries",
			zap.String("goal", name),
			zap.Duration("cooldown", cooldown),
			zap.Int("locks", prior+1))
	}
	st.forget()
}

// lockCooldown returns the cool-down for a goal locked prior times before.
func (e *Executor) lockCooldown(prior int) time.Duration {
	d := e.config.LockCooldown
	for i := 0; i < prior && d < e.config.MaxLockCooldown; i++ {
		d *= 2
	}
	if d > e.config.MaxLockCooldown {
		d = e.config.MaxLockCooldown
	}
	return d
}

// fail marks the goal permanently failed
func (e *Executor) fail(ctx context.Context, st *loopState, name string, cause error) {
	reason := cause.Error()
	var tf *types.TerminalGoalFailure
	if errors.As(cause, &tf) && tf.Reason != "" {
		reason = tf.Reason
	}
	if _, err := e.tracker.Fail(ctx, name, reason); err != nil {
		e.logger.Warn("failed to mark goal failed", zap.String("goal", name), zap.Error(err))
	}
	st.forget()
}

func (e *Executor) recordFailure(ctx context.Context, eventType events.EventType, goal string, err *types.TransientExecutionError, attempt, maxAttempts int, backoff time.Duration) {
	event, buildErr := events.NewCollaboratorFailureEvent(eventType, goal,
		fmt.Sprintf("%s failed for goal %s (attempt %d/%d): %v", err.Op, goal, attempt, maxAttempts, err.Err),
		events.CollaboratorFailureData{
			Op:          err.Op,
			Attempt:     attempt,
			MaxAttempts: maxAttempts,
			Backoff:     backoff,
			Error:       err.Err.Error(),
		})
	if buildErr != nil {
		e.logger.Warn("failed to build failure event", zap.Error(buildErr))
		return
	}
	e.recorder.Record(ctx, event)
}

func regressionReason(check requirements.GoalCheck) string {
	unmet := check.Unmet()
	parts := make([]string, 0, len(unmet))
	for _, ev := range unmet {
		parts = append(parts, ev.Description)
	}
	return fmt.Sprintf("requirement %s no longer met", strings.Join(parts, ", "))
}

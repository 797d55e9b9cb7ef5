package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/R21Digital/Project-MorningStar-sub013/internal/events"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/requirements"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/selector"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/types"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/world"
	"go.uber.org/zap"
)

// loopState is owned by the loop goroutine and threaded through every
// iteration. Failure counters are scoped to one step of one goal.
type loopState struct {
	idleDelay time.Duration

	goal  string
	step  int
	moved bool // NavigateTo succeeded for the current goal

	navFailures         int
	interactionFailures int
	backoff             time.Duration

	lastCleanup time.Time
}

// track resets step-scoped state when the goal or step changes
func (st *loopState) track(p *types.GoalProgress) {
	if st.goal == p.Name && st.step == p.StepsCompleted {
		return
	}
	if st.goal != p.Name {
		st.moved = false
	}
	st.goal = p.Name
	st.step = p.StepsCompleted
	st.resetFailures()
}

func (st *loopState) resetFailures() {
	st.navFailures = 0
	st.interactionFailures = 0
	st.backoff = 0
}

func (st *loopState) forget() {
	st.goal = ""
	st.step = 0
	st.moved = false
	st.resetFailures()
}

// nextBackoff returns the delay before the next retry, growing by the
// configured multiplier up to the cap.
func (e *Executor) nextBackoff(st *loopState) time.Duration {
	if st.backoff <= 0 {
		st.backoff = e.config.InitialBackoff
	} else {
		st.backoff = time.Duration(float64(st.backoff) * e.config.BackoffMultiplier)
	}
	if st.backoff > e.config.MaxBackoff {
		st.backoff = e.config.MaxBackoff
	}
	return st.backoff
}

// idle returns the current idle delay and doubles it for next time.
func (e *Executor) idle(st *loopState) time.Duration {
	if st.idleDelay < e.config.PollInterval {
		st.idleDelay = e.config.PollInterval
	}
	d := st.idleDelay
	st.idleDelay *= 2
	if st.idleDelay > e.config.IdleBackoffMax {
		st.idleDelay = e.config.IdleBackoffMax
	}
	return d
}

// eventLoop is the main loop. Control requests are drained at the top of
// every iteration so the tracker is only mutated from this goroutine.
func (e *Executor) eventLoop(ctx context.Context) {
	st := &loopState{}

	for {
		if ctx.Err() != nil || e.stopping() {
			return
		}
		e.drainRequests(ctx, st)
		if ctx.Err() != nil || e.stopping() {
			return
		}

		e.cleanupEvents(ctx, st)

		delay := e.iterate(ctx, st)
		if err := e.pause(ctx, delay); err != nil {
			return
		}
	}
}

// iterate runs one pass and returns how long to wait before the next.
func (e *Executor) iterate(ctx context.Context, st *loopState) time.Duration {
	perception, err := e.observe(ctx)
	if err != nil {
		e.logger.Warn("observation failed", zap.Error(err))
		e.collaboratorFailure("observe", err)
		e.iteration("observe_failed")
		return e.config.PollInterval
	}
	snap := e.tracker.Snapshot(perception)

	unlocked, err := e.tracker.Reconcile(ctx, snap)
	if err != nil {
		e.logger.Warn("reconcile failed", zap.Error(err))
	}
	for _, name := range unlocked {
		e.logger.Info("goal unlocked", zap.String("goal", name))
	}

	active := e.tracker.Active()
	if active == nil {
		st.forget()
		started, ok := e.selectAndStart(ctx, snap)
		if !ok {
			e.iteration("idle")
			return e.idle(st)
		}
		active = started
	}
	st.idleDelay = 0

	outcome, delay := e.work(ctx, st, active, perception, snap)
	e.iteration(outcome)
	return delay
}

// selectAndStart asks the selector for a candidate and starts it. A start
// refused by the tracker is recorded and retried next cycle.
func (e *Executor) selectAndStart(ctx context.Context, snap requirements.Snapshot) (*types.GoalProgress, bool) {
	sel := selector.SelectNext(e.catalog, e.tracker.All(), snap, e.clock.Now())
	if sel.Candidate == nil {
		e.logger.Debug("no eligible goal", zap.Int("unmet", len(sel.Locked)))
		return nil, false
	}
	goal := sel.Candidate

	e.recorder.Emit(ctx, events.EventTypeGoalSelected, goal.Name, events.SeverityInfo,
		fmt.Sprintf("selected goal %s", goal.Name),
		map[string]interface{}{
			"priority": string(goal.Priority),
			"type":     string(goal.Type),
			"eligible": len(sel.Eligible),
		})

	p, err := e.tracker.Start(ctx, goal.Name, snap)
	if err != nil {
		e.recorder.Emit(ctx, events.EventTypeGoalStartRejected, goal.Name, events.SeverityWarning,
			fmt.Sprintf("start of %s rejected: %v", goal.Name, err),
			map[string]interface{}{"error": err.Error()})
		return nil, false
	}
	return p, true
}

// observe captures a fresh perception with the observe timeout
func (e *Executor) observe(ctx context.Context) (world.Perception, error) {
	callCtx, cancel := e.callContext(ctx, e.config.ObserveTimeout)
	defer cancel()
	return e.observer.Observe(callCtx)
}

// callContext bounds a collaborator call. It is detached from loop
// cancellation so a stop never interrupts an in-flight call.
func (e *Executor) callContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

// pause sleeps for d. A queued control request or Stop ends the pause
// early; only cancellation of ctx is reported as an error.
func (e *Executor) pause(ctx context.Context, d time.Duration) error {
	sleepCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-e.wake:
			cancel()
		case <-e.stopCh:
			cancel()
		case <-sleepCtx.Done():
		}
	}()
	_ = e.clock.Sleep(sleepCtx, d)
	return ctx.Err()
}

// throttle waits for the interaction limiter
func (e *Executor) throttle(ctx context.Context) {
	now := e.clock.Now()
	if delay := e.limiter.ReserveN(now, 1).DelayFrom(now); delay > 0 {
		_ = e.clock.Sleep(ctx, delay)
	}
}

func (e *Executor) iteration(outcome string) {
	if e.metrics != nil {
		e.metrics.Iteration(outcome)
	}
}

func (e *Executor) collaboratorFailure(op string, err error) {
	if e.metrics == nil {
		return
	}
	class := "transient"
	if types.IsTerminal(err) {
		class = "terminal"
	}
	e.metrics.CollaboratorFailure(op, class)
}

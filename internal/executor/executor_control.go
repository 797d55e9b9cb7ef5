package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/R21Digital/Project-MorningStar-sub013/internal/catalog"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/control"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/events"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/types"
	"go.uber.org/zap"
)

// request is a control operation executed on the loop goroutine
type request struct {
	fn    func(ctx context.Context, st *loopState) (interface{}, error)
	reply chan response
}

type response struct {
	value interface{}
	err   error
}

// GoalSummary is one row of ListGoals
type GoalSummary struct {
	Name           string         `json:"name"`
	Type           types.GoalType `json:"type"`
	Priority       types.Priority `json:"priority"`
	Location       string         `json:"location"`
	Status         types.Status   `json:"status"`
	StepsCompleted int            `json:"steps_completed"`
	TotalSteps     int            `json:"total_steps"`
	Reason         string         `json:"reason,omitempty"`
	LockedUntil    *time.Time     `json:"locked_until,omitempty"`
}

// submit queues fn for the loop goroutine and waits for its result. The
// pause between iterations is cut short so the request runs promptly.
func (e *Executor) submit(ctx context.Context, fn func(ctx context.Context, st *loopState) (interface{}, error)) (interface{}, error) {
	if !e.IsRunning() {
		return nil, ErrNotRunning
	}
	req := request{fn: fn, reply: make(chan response, 1)}

	select {
	case e.requests <- req:
	case <-e.doneCh:
		return nil, ErrNotRunning
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case e.wake <- struct{}{}:
	default:
	}

	select {
	case resp := <-req.reply:
		return resp.value, resp.err
	case <-e.doneCh:
		return nil, ErrNotRunning
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// drainRequests runs every queued request
func (e *Executor) drainRequests(ctx context.Context, st *loopState) {
	for {
		select {
		case req := <-e.requests:
			value, err := req.fn(ctx, st)
			req.reply <- response{value: value, err: err}
		default:
			return
		}
	}
}

// StartGoal starts the named goal against a fresh observation. A refusal is
// recorded as goal_start_rejected and returned.
func (e *Executor) StartGoal(ctx context.Context, name string) (*types.GoalProgress, error) {
	v, err := e.submit(ctx, func(ctx context.Context, st *loopState) (interface{}, error) {
		perception, err := e.observe(ctx)
		if err != nil {
			return nil, &types.TransientExecutionError{Op: "observe", Err: err}
		}
		p, err := e.tracker.Start(ctx, name, e.tracker.Snapshot(perception))
		if err != nil {
			e.recorder.Emit(ctx, events.EventTypeGoalStartRejected, name, events.SeverityWarning,
				fmt.Sprintf("start of %s rejected: %v", name, err),
				map[string]interface{}{"error": err.Error(), "source": "control"})
			return nil, err
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.GoalProgress), nil
}

// WorkOnCurrentGoal performs one micro-step on the active goal now and
// returns the iteration outcome.
func (e *Executor) WorkOnCurrentGoal(ctx context.Context) (string, error) {
	v, err := e.submit(ctx, func(ctx context.Context, st *loopState) (interface{}, error) {
		perception, err := e.observe(ctx)
		if err != nil {
			return nil, &types.TransientExecutionError{Op: "observe", Err: err}
		}
		active := e.tracker.Active()
		if active == nil {
			return nil, ErrNoActiveGoal
		}
		outcome, _ := e.work(ctx, st, active, perception, e.tracker.Snapshot(perception))
		e.iteration(outcome)
		return outcome, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// GoalStatus reports the last durable state of every goal
func (e *Executor) GoalStatus() types.GoalStatus {
	return e.tracker.Status()
}

// ListGoals returns catalog goals matching f with their progress
func (e *Executor) ListGoals(f catalog.Filter) []GoalSummary {
	return Summarize(e.catalog, e.tracker.All(), f)
}

// Summarize joins catalog goals matching f with their progress records.
// Goals without a record are reported as NOT_STARTED.
func Summarize(cat *catalog.Catalog, progress map[string]*types.GoalProgress, f catalog.Filter) []GoalSummary {
	goals := cat.List(f)
	out := make([]GoalSummary, 0, len(goals))
	for _, g := range goals {
		s := GoalSummary{
			Name:       g.Name,
			Type:       g.Type,
			Priority:   g.Priority,
			Location:   g.Location.String(),
			Status:     types.StatusNotStarted,
			TotalSteps: g.TotalSteps(),
		}
		if p, ok := progress[g.Name]; ok {
			s.Status = p.Status
			s.StepsCompleted = p.StepsCompleted
			if p.TotalSteps > 0 {
				s.TotalSteps = p.TotalSteps
			}
			s.Reason = p.Reason
			s.LockedUntil = p.LockedUntil
		}
		out = append(out, s)
	}
	return out
}

// HandleCommand serves control socket commands
func (e *Executor) HandleCommand(ctx context.Context, cmd control.Command) (map[string]interface{}, error) {
	e.logger.Debug("control command", zap.String("type", cmd.Type), zap.String("goal", cmd.Goal))

	switch cmd.Type {
	case control.CommandStatus:
		status := e.GoalStatus()
		data, err := toMap(status)
		if err != nil {
			return nil, err
		}
		data["running"] = e.IsRunning()
		data["instance_id"] = e.instanceID
		return data, nil

	case control.CommandStartGoal:
		if cmd.Goal == "" {
			return nil, fmt.Errorf("goal name is required")
		}
		p, err := e.StartGoal(ctx, cmd.Goal)
		if err != nil {
			return nil, err
		}
		return toMap(p)

	case control.CommandWork:
		outcome, err := e.WorkOnCurrentGoal(ctx)
		if err != nil {
			return nil, err
		}
		data := map[string]interface{}{"outcome": outcome}
		if active := e.tracker.Active(); active != nil {
			data["goal"] = active.Name
			data["steps_completed"] = active.StepsCompleted
			data["total_steps"] = active.TotalSteps
		}
		return data, nil

	case control.CommandList:
		var f catalog.Filter
		if cmd.GoalType != "" {
			t, err := types.ParseGoalType(cmd.GoalType)
			if err != nil {
				return nil, err
			}
			f.Type = t
		}
		if cmd.Priority != "" {
			p, err := types.ParsePriority(cmd.Priority)
			if err != nil {
				return nil, err
			}
			f.Priority = p
		}
		return map[string]interface{}{"goals": e.ListGoals(f)}, nil

	case control.CommandStop:
		e.stopOnce.Do(func() { close(e.stopCh) })
		return map[string]interface{}{"stopping": true}, nil

	default:
		return nil, fmt.Errorf("unknown command type: %s", cmd.Type)
	}
}

// toMap converts a JSON-tagged value into a response payload
func toMap(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	return out, nil
}

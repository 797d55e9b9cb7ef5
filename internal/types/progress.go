package types

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a goal for the character
type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusLocked     Status = "LOCKED"
)

// IsValid checks if the status value is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted, StatusFailed, StatusLocked:
		return true
	}
	return false
}

// IsTerminal reports whether no automatic transition leaves this state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ValidTransitions defines the goal progress state machine.
//
//	NOT_STARTED → IN_PROGRESS → COMPLETED
//	                  ↓   ↓
//	               FAILED LOCKED → NOT_STARTED
//
// FAILED → NOT_STARTED is reserved for an explicit operator reset and is
// not listed here; see CanReset.
func (s Status) ValidTransitions() []Status {
	switch s {
	case StatusNotStarted:
		return []Status{StatusInProgress}
	case StatusInProgress:
		return []Status{StatusInProgress, StatusCompleted, StatusFailed, StatusLocked}
	case StatusLocked:
		return []Status{StatusNotStarted}
	case StatusCompleted, StatusFailed:
		return []Status{} // Terminal
	default:
		return []Status{}
	}
}

// CanTransitionTo checks if a transition from this state to the target state is valid
func (s Status) CanTransitionTo(target Status) bool {
	for _, valid := range s.ValidTransitions() {
		if valid == target {
			return true
		}
	}
	return false
}

// CanReset reports whether an operator may reset a goal in this state.
func (s Status) CanReset() bool {
	return s == StatusFailed
}

// GoalProgress is the durable per-goal record for the character.
type GoalProgress struct {
	Name           string     `json:"name"`
	Status         Status     `json:"status"`
	CurrentStep    string     `json:"current_step,omitempty"`
	StepsCompleted int        `json:"steps_completed"`
	TotalSteps     int        `json:"total_steps"`
	StartTime      *time.Time `json:"start_time,omitempty"`
	CompletionTime *time.Time `json:"completion_time,omitempty"`
	LastUpdated    time.Time  `json:"last_updated"`
	// Reason records why the goal was locked or failed.
	Reason string `json:"reason,omitempty"`
	// LockedUntil holds a LOCKED goal back until the given time even when
	// its requirements are met. Nil for locks caused by unmet requirements.
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	// LockCount counts locks since the goal last made progress.
	LockCount int `json:"lock_count,omitempty"`
}

// NewGoalProgress returns the implicit record for a goal never selected.
func NewGoalProgress(name string) *GoalProgress {
	return &GoalProgress{Name: name, Status: StatusNotStarted}
}

// Validate checks the record's invariants
func (p *GoalProgress) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !p.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", p.Status)
	}
	if p.StepsCompleted < 0 {
		return fmt.Errorf("steps_completed cannot be negative (got %d)", p.StepsCompleted)
	}
	if p.LockCount < 0 {
		return fmt.Errorf("lock_count cannot be negative (got %d)", p.LockCount)
	}
	if p.LockedUntil != nil && p.Status != StatusLocked {
		return fmt.Errorf("locked_until set on %s goal", p.Status)
	}
	if p.TotalSteps < 0 {
		return fmt.Errorf("total_steps cannot be negative (got %d)", p.TotalSteps)
	}
	if p.TotalSteps > 0 && p.StepsCompleted > p.TotalSteps {
		return fmt.Errorf("steps_completed (%d) exceeds total_steps (%d)", p.StepsCompleted, p.TotalSteps)
	}
	if p.Status == StatusCompleted && p.CompletionTime == nil {
		return fmt.Errorf("completed goal must have completion_time")
	}
	return nil
}

// Clone returns a deep copy so callers can mutate without touching stored state.
func (p *GoalProgress) Clone() *GoalProgress {
	c := *p
	if p.StartTime != nil {
		t := *p.StartTime
		c.StartTime = &t
	}
	if p.CompletionTime != nil {
		t := *p.CompletionTime
		c.CompletionTime = &t
	}
	if p.LockedUntil != nil {
		t := *p.LockedUntil
		c.LockedUntil = &t
	}
	return &c
}

// CoolingDown reports whether a LOCKED goal is still held back at now.
func (p *GoalProgress) CoolingDown(now time.Time) bool {
	return p.Status == StatusLocked && p.LockedUntil != nil && now.Before(*p.LockedUntil)
}

// GoalStatus summarizes the last durable state for monitoring surfaces.
type GoalStatus struct {
	TotalGoals     int          `json:"total_goals"`
	ActiveGoals    int          `json:"active_goals"`
	CompletedGoals int          `json:"completed_goals"`
	FailedGoals    int          `json:"failed_goals"`
	LockedGoals    int          `json:"locked_goals"`
	CurrentGoal    *CurrentGoal `json:"current_goal,omitempty"`
}

// CurrentGoal describes the goal being worked on.
type CurrentGoal struct {
	Name           string `json:"name"`
	StepsCompleted int    `json:"steps_completed"`
	TotalSteps     int    `json:"total_steps"`
	Status         Status `json:"status"`
	CurrentStep    string `json:"current_step,omitempty"`
}

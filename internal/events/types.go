package events

import (
	"context"
	"time"
)

// EventType represents the type of event recorded while working on goals.
type EventType string

const (
	// Goal lifecycle events
	// EventTypeGoalSelected indicates the selector picked a goal to work on next
	EventTypeGoalSelected EventType = "goal_selected"
	// EventTypeGoalStarted indicates a goal entered IN_PROGRESS
	EventTypeGoalStarted EventType = "goal_started"
	// EventTypeGoalProgressMade indicates a quest step was confirmed
	EventTypeGoalProgressMade EventType = "goal_progress_made"
	// EventTypeGoalCompleted indicates a goal reached its final step
	EventTypeGoalCompleted EventType = "goal_completed"
	// EventTypeGoalFailed indicates a goal was marked permanently unreachable
	EventTypeGoalFailed EventType = "goal_failed"
	// EventTypeGoalLocked indicates an active goal was parked because a requirement regressed
	EventTypeGoalLocked EventType = "goal_locked"
	// EventTypeGoalUnlocked indicates a locked goal's requirements are met again
	EventTypeGoalUnlocked EventType = "goal_unlocked"
	// EventTypeGoalReset indicates an operator reset a failed goal
	EventTypeGoalReset EventType = "goal_reset"
	// EventTypeGoalStartRejected indicates a start attempt lost a race or was refused
	EventTypeGoalStartRejected EventType = "goal_start_rejected"

	// Collaborator failure events
	// EventTypeNavigationFailed indicates travel to the goal location failed
	EventTypeNavigationFailed EventType = "goal_navigation_failed"
	// EventTypeInteractionFailed indicates a dialogue interaction failed or was ambiguous
	EventTypeInteractionFailed EventType = "goal_interaction_failed"

	// EventTypeCatalogEntryRejected indicates a malformed catalog entry was skipped
	EventTypeCatalogEntryRejected EventType = "catalog_entry_rejected"

	// Executor lifecycle events
	EventTypeExecutorStarted EventType = "executor_started"
	EventTypeExecutorStopped EventType = "executor_stopped"

	// EventTypeEventCleanup records one pruning pass over the event log
	EventTypeEventCleanup EventType = "event_cleanup_completed"
)

// IsValid checks if the event type is one this package defines
func (t EventType) IsValid() bool {
	switch t {
	case EventTypeGoalSelected, EventTypeGoalStarted, EventTypeGoalProgressMade,
		EventTypeGoalCompleted, EventTypeGoalFailed, EventTypeGoalLocked,
		EventTypeGoalUnlocked, EventTypeGoalReset, EventTypeGoalStartRejected,
		EventTypeNavigationFailed, EventTypeInteractionFailed,
		EventTypeCatalogEntryRejected, EventTypeExecutorStarted, EventTypeExecutorStopped,
		EventTypeEventCleanup:
		return true
	}
	return false
}

// EventSeverity represents the severity level of an event.
type EventSeverity string

const (
	// SeverityInfo indicates informational events
	SeverityInfo EventSeverity = "info"
	// SeverityWarning indicates potentially problematic events
	SeverityWarning EventSeverity = "warning"
	// SeverityError indicates error events
	SeverityError EventSeverity = "error"
	// SeverityCritical indicates critical events requiring immediate attention
	SeverityCritical EventSeverity = "critical"
)

// GoalEvent is one entry of the append-only goal event log.
type GoalEvent struct {
	// ID is the unique identifier for this event
	ID string `json:"id"`
	// Type is the type of event
	Type EventType `json:"type"`
	// Timestamp is when the event occurred
	Timestamp time.Time `json:"timestamp"`
	// Goal is the goal the event refers to (empty for executor-level events)
	Goal string `json:"goal"`
	// Severity is the severity level of this event
	Severity EventSeverity `json:"severity"`
	// Message is a human-readable description of the event
	Message string `json:"message"`
	// Data contains structured, type-specific data (must be JSON-serializable)
	Data map[string]interface{} `json:"data"`
}

// StepProgressData contains structured data for goal_progress_made and goal_completed events.
type StepProgressData struct {
	StepID         string `json:"step_id"`
	StepsCompleted int    `json:"steps_completed"`
	TotalSteps     int    `json:"total_steps"`
}

// CollaboratorFailureData contains structured data for navigation and interaction failures.
type CollaboratorFailureData struct {
	// Op is the collaborator call that failed: navigate, dialogue, select_option, confirm
	Op string `json:"op"`
	// Attempt is the consecutive failure count for the current step
	Attempt int `json:"attempt"`
	// MaxAttempts is the bound after which the goal is locked
	MaxAttempts int `json:"max_attempts"`
	// Backoff is the delay before the next attempt
	Backoff time.Duration `json:"backoff"`
	Error   string        `json:"error"`
}

// TransitionData contains structured data for lock, unlock, fail and reset events.
type TransitionData struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
	// LockedUntil is set on locks that hold the goal back for a cool-down
	LockedUntil *time.Time `json:"locked_until,omitempty"`
}

// EventStore defines the interface for storing and retrieving goal events.
type EventStore interface {
	// StoreEvent appends an event to the log
	StoreEvent(ctx context.Context, event *GoalEvent) error

	// GetEvents retrieves events matching the given filter, newest first
	GetEvents(ctx context.Context, filter EventFilter) ([]*GoalEvent, error)
}

// EventFilter defines criteria for filtering events.
type EventFilter struct {
	// Goal filters events by goal name
	Goal string
	// Type filters events by event type
	Type EventType
	// Severity filters events by severity level
	Severity EventSeverity
	// AfterTime filters events that occurred after this time
	AfterTime time.Time
	// Limit limits the number of events returned
	Limit int
}

package events

import (
	"time"

	"github.com/google/uuid"
)

// NewGoalEvent creates a GoalEvent with free-form data.
func NewGoalEvent(eventType EventType, goal string, severity EventSeverity, message string, data map[string]interface{}) *GoalEvent {
	if data == nil {
		data = make(map[string]interface{})
	}
	return &GoalEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Goal:      goal,
		Severity:  severity,
		Message:   message,
		Data:      data,
	}
}

// NewStepProgressEvent creates a goal_progress_made or goal_completed event with type-safe data.
func NewStepProgressEvent(eventType EventType, goal, message string, data StepProgressData) (*GoalEvent, error) {
	event := NewGoalEvent(eventType, goal, SeverityInfo, message, nil)
	if err := event.SetStepProgressData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewCollaboratorFailureEvent creates a navigation or interaction failure event with type-safe data.
func NewCollaboratorFailureEvent(eventType EventType, goal, message string, data CollaboratorFailureData) (*GoalEvent, error) {
	event := NewGoalEvent(eventType, goal, SeverityWarning, message, nil)
	if err := event.SetCollaboratorFailureData(data); err != nil {
		return nil, err
	}
	return event, nil
}

// NewTransitionEvent creates a status transition event with type-safe data.
func NewTransitionEvent(eventType EventType, goal string, severity EventSeverity, message string, data TransitionData) (*GoalEvent, error) {
	event := NewGoalEvent(eventType, goal, severity, message, nil)
	if err := event.SetTransitionData(data); err != nil {
		return nil, err
	}
	return event, nil
}

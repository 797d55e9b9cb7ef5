package types

import (
	"errors"
	"fmt"
)

var (
	// ErrGoalNotFound is returned when a goal name is not in the catalog
	ErrGoalNotFound = errors.New("goal not found")
	// ErrGoalActive is returned when another goal is already IN_PROGRESS
	ErrGoalActive = errors.New("another goal is already in progress")
	// ErrRequirementsUnmet is returned when a goal cannot start because a requirement is unmet
	ErrRequirementsUnmet = errors.New("goal requirements are not met")
	// ErrInvalidTransition is returned when a status change violates the state machine
	ErrInvalidTransition = errors.New("invalid goal status transition")
)

// ConfigurationError reports a malformed catalog entry. The entry is
// skipped; the rest of the catalog still loads.
type ConfigurationError struct {
	Index int    // position of the entry in the source document
	Goal  string // goal name, if it could be read
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	name := e.Goal
	if name == "" {
		name = fmt.Sprintf("#%d", e.Index)
	}
	if e.Field != "" {
		return fmt.Sprintf("goal %s: %s: %v", name, e.Field, e.Err)
	}
	return fmt.Sprintf("goal %s: %v", name, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// RequirementEvaluationError reports a requirement the evaluator cannot
// interpret. The requirement evaluates as not met.
type RequirementEvaluationError struct {
	Kind   RequirementKind
	Target string
}

func (e *RequirementEvaluationError) Error() string {
	return fmt.Sprintf("cannot evaluate requirement of kind %q (target %q)", e.Kind, e.Target)
}

// TransientExecutionError wraps a navigation or dialogue failure that is
// expected to clear on retry.
type TransientExecutionError struct {
	Op  string // "navigate", "dialogue", "select_option"
	Err error
}

func (e *TransientExecutionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientExecutionError) Unwrap() error { return e.Err }

// EnvironmentalRegression reports that a previously met requirement is no
// longer met, or that retries were exhausted. The goal is locked and
// resumes automatically.
type EnvironmentalRegression struct {
	Goal   string
	Reason string
}

func (e *EnvironmentalRegression) Error() string {
	return fmt.Sprintf("goal %s locked: %s", e.Goal, e.Reason)
}

// TerminalGoalFailure marks a goal as permanently unreachable. Collaborators
// return (or wrap) it when retrying cannot help.
type TerminalGoalFailure struct {
	Goal   string
	Reason string
}

func (e *TerminalGoalFailure) Error() string {
	if e.Goal == "" {
		return fmt.Sprintf("terminal failure: %s", e.Reason)
	}
	return fmt.Sprintf("goal %s failed: %s", e.Goal, e.Reason)
}

// IsTerminal reports whether err carries a TerminalGoalFailure.
func IsTerminal(err error) bool {
	var tf *TerminalGoalFailure
	return errors.As(err, &tf)
}

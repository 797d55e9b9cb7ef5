// Package metrics exposes Prometheus collectors for goal progression.
package metrics

import (
	"github.com/R21Digital/Project-MorningStar-sub013/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "morningstar"

// Metrics holds every collector, registered on one registry.
type Metrics struct {
	// Transitions counts persisted status transitions.
	// Labels: from, to
	Transitions *prometheus.CounterVec

	// GoalsByOutcome counts goals reaching a resting status.
	// Labels: status (completed, failed, locked)
	GoalsByOutcome *prometheus.CounterVec

	// GoalsStarted counts goals moved to IN_PROGRESS.
	GoalsStarted prometheus.Counter

	// StepsAdvanced counts confirmed steps. Labels: goal
	StepsAdvanced *prometheus.CounterVec

	// CollaboratorFailures counts failed world calls.
	// Labels: op (navigate, dialogue, select, observe), class (transient, regression, terminal)
	CollaboratorFailures *prometheus.CounterVec

	// ActiveGoal is 1 while a goal is IN_PROGRESS. Labels: goal
	ActiveGoal *prometheus.GaugeVec

	// LoopIterations counts executor iterations. Labels: outcome
	LoopIterations *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "goal",
			Name:      "transitions_total",
			Help:      "Total number of persisted goal status transitions",
		}, []string{"from", "to"}),
		GoalsByOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "goal",
			Name:      "outcomes_total",
			Help:      "Total number of goals reaching completed, failed or locked",
		}, []string{"status"}),
		GoalsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "goal",
			Name:      "started_total",
			Help:      "Total number of goals started or resumed",
		}),
		StepsAdvanced: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "goal",
			Name:      "steps_advanced_total",
			Help:      "Total number of confirmed goal steps",
		}, []string{"goal"}),
		CollaboratorFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "collaborator_failures_total",
			Help:      "Total number of failed navigation, dialogue and perception calls",
		}, []string{"op", "class"}),
		ActiveGoal: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "goal",
			Name:      "active",
			Help:      "1 while the labelled goal is in progress",
		}, []string{"goal"}),
		LoopIterations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "iterations_total",
			Help:      "Total number of executor loop iterations by outcome",
		}, []string{"outcome"}),
	}
}

// Transition implements tracker.Observer.
func (m *Metrics) Transition(goal string, from, to types.Status) {
	m.Transitions.WithLabelValues(string(from), string(to)).Inc()

	switch to {
	case types.StatusInProgress:
		m.GoalsStarted.Inc()
		m.ActiveGoal.WithLabelValues(goal).Set(1)
	case types.StatusCompleted, types.StatusFailed, types.StatusLocked:
		m.GoalsByOutcome.WithLabelValues(outcomeLabel(to)).Inc()
	}
	if from == types.StatusInProgress {
		m.ActiveGoal.DeleteLabelValues(goal)
	}
}

// StepAdvanced implements tracker.Observer.
func (m *Metrics) StepAdvanced(goal string) {
	m.StepsAdvanced.WithLabelValues(goal).Inc()
}

// CollaboratorFailure records a failed world call.
func (m *Metrics) CollaboratorFailure(op, class string) {
	m.CollaboratorFailures.WithLabelValues(op, class).Inc()
}

// Iteration records one executor loop pass.
func (m *Metrics) Iteration(outcome string) {
	m.LoopIterations.WithLabelValues(outcome).Inc()
}

func outcomeLabel(s types.Status) string {
	switch s {
	case types.StatusCompleted:
		return "completed"
	case types.StatusFailed:
		return "failed"
	default:
		return "locked"
	}
}

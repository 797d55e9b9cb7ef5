// Package requirements evaluates goal requirements against a live
// world-state snapshot. Evaluation is pure: nothing is cached and nothing
// is mutated.
package requirements

import (
	"github.com/R21Digital/Project-MorningStar-sub013/internal/types"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/world"
)

// Snapshot is the state a requirement is evaluated against.
type Snapshot interface {
	world.Perception
	// RewardGranted reports whether the character already holds a reward tag.
	RewardGranted(tag string) bool
}

// WithGrants combines a perception with reward tags earned by completed
// goals. Tags the perception itself reports (via world.RewardReporter) count
// as granted too.
func WithGrants(p world.Perception, granted []string) Snapshot {
	set := make(map[string]struct{}, len(granted))
	for _, g := range granted {
		set[g] = struct{}{}
	}
	return grantedSnapshot{Perception: p, granted: set}
}

type grantedSnapshot struct {
	world.Perception
	granted map[string]struct{}
}

func (s grantedSnapshot) RewardGranted(tag string) bool {
	if _, ok := s.granted[tag]; ok {
		return true
	}
	if rr, ok := s.Perception.(world.RewardReporter); ok {
		return rr.RewardGranted(tag)
	}
	return false
}

// Evaluation is the result of checking one requirement.
type Evaluation struct {
	Requirement types.Requirement `json:"-"`
	Kind        string            `json:"kind"`
	Target      string            `json:"target"`
	Description string            `json:"description"`
	Met         bool              `json:"met"`
	// Current and Required are numeric for level, reputation and skill;
	// boolean kinds report 0/1.
	Current  int `json:"current"`
	Required int `json:"required"`
	// Err is set when the requirement could not be interpreted.
	Err error `json:"-"`
}

// Evaluate checks one requirement against snap. Unknown kinds evaluate as
// not met with a RequirementEvaluationError.
func Evaluate(req types.Requirement, snap Snapshot) Evaluation {
	ev := Evaluation{
		Requirement: req,
		Kind:        string(req.Kind()),
		Target:      req.Target(),
		Description: req.Description(),
		Required:    req.RequiredProgress(),
	}

	switch r := req.(type) {
	case types.LevelRequirement:
		ev.Current = snap.Level()
		ev.Met = ev.Current >= r.Required
	case types.ReputationRequirement:
		ev.Current = snap.Reputation(r.Region)
		ev.Met = ev.Current >= r.Required
	case types.SkillRequirement:
		ev.Current = snap.Skill(r.Skill)
		ev.Met = ev.Current >= r.Required
	case types.QuestRequirement:
		ev.Met = snap.QuestStatus(r.Quest) == r.ExpectedMarker()
		ev.Current = boolProgress(ev.Met)
	case types.CollectionRequirement:
		ev.Met = snap.CollectionComplete(r.Collection)
		ev.Current = boolProgress(ev.Met)
	case types.UnlockRequirement:
		ev.Met = snap.RewardGranted(r.Reward)
		ev.Current = boolProgress(ev.Met)
	default:
		ev.Err = &types.RequirementEvaluationError{Kind: req.Kind(), Target: req.Target()}
	}
	return ev
}

// GoalCheck is the evaluation of all of a goal's requirements.
type GoalCheck struct {
	Goal               string       `json:"goal"`
	AllRequirementsMet bool         `json:"all_requirements_met"`
	Requirements       []Evaluation `json:"requirements"`
}

// Unmet returns the evaluations that are not met, in goal order.
func (c GoalCheck) Unmet() []Evaluation {
	var out []Evaluation
	for _, ev := range c.Requirements {
		if !ev.Met {
			out = append(out, ev)
		}
	}
	return out
}

// CheckGoal evaluates every requirement of the goal.
func CheckGoal(goal *types.Goal, snap Snapshot) GoalCheck {
	check := GoalCheck{
		Goal:               goal.Name,
		AllRequirementsMet: true,
		Requirements:       make([]Evaluation, 0, len(goal.Requirements)),
	}
	for _, req := range goal.Requirements {
		ev := Evaluate(req, snap)
		if !ev.Met {
			check.AllRequirementsMet = false
		}
		check.Requirements = append(check.Requirements, ev)
	}
	return check
}

func boolProgress(met bool) int {
	if met {
		return 1
	}
	return 0
}

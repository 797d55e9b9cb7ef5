package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/R21Digital/Project-MorningStar-sub013/internal/types"
	"gopkg.in/yaml.v3"
)

// goalEntry is the on-disk shape of one catalog entry.
type goalEntry struct {
	Name              string             `yaml:"name"`
	Description       string             `yaml:"description"`
	Type              string             `yaml:"type"`
	Priority          string             `yaml:"priority"`
	Location          locationEntry      `yaml:"location"`
	Requirements      []requirementEntry `yaml:"requirements"`
	Rewards           []string           `yaml:"rewards"`
	EstimatedDuration string             `yaml:"estimated_duration"` // Duration string like "45m", "3h"
	QuestChain        []stepEntry        `yaml:"quest_chain"`
	CollectionTargets []string           `yaml:"collection_targets"`
}

type locationEntry struct {
	Planet string `yaml:"planet"`
	Zone   string `yaml:"zone"`
	// Coordinates accepts either [x, y] or {x: .., y: ..}.
	Coordinates yaml.Node `yaml:"coordinates"`
}

type requirementEntry struct {
	Kind        string `yaml:"kind"`
	Target      string `yaml:"target"`
	Required    int    `yaml:"required"`
	Marker      string `yaml:"marker"`
	Description string `yaml:"description"`
}

type stepEntry struct {
	ID             string            `yaml:"id"`
	Description    string            `yaml:"description"`
	DialogueOption string            `yaml:"dialogue_option"`
	Confirm        *requirementEntry `yaml:"confirm"`
}

// entryNodes accepts either a bare list of goals or {goals: [...]}.
func entryNodes(root *yaml.Node) ([]*yaml.Node, error) {
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return nil, nil
		}
		root = root.Content[0]
	}
	switch root.Kind {
	case yaml.SequenceNode:
		return root.Content, nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(root.Content); i += 2 {
			if root.Content[i].Value == "goals" {
				seq := root.Content[i+1]
				if seq.Kind != yaml.SequenceNode {
					return nil, fmt.Errorf("line %d: goals must be a list", seq.Line)
				}
				return seq.Content, nil
			}
		}
		return nil, fmt.Errorf("catalog document has no goals list")
	case 0:
		return nil, nil
	default:
		return nil, fmt.Errorf("line %d: catalog must be a list of goals", root.Line)
	}
}

// toGoal validates an entry and builds the immutable Goal. warn receives
// non-fatal findings such as unknown requirement kinds.
func (e *goalEntry) toGoal(index int, warn func(string)) (*types.Goal, error) {
	name := strings.TrimSpace(e.Name)
	fail := func(field string, err error) error {
		return &types.ConfigurationError{Index: index, Goal: name, Field: field, Err: err}
	}

	if name == "" {
		return nil, fail("name", fmt.Errorf("name is required"))
	}
	goalType, err := types.ParseGoalType(e.Type)
	if err != nil {
		return nil, fail("type", err)
	}
	priority, err := types.ParsePriority(e.Priority)
	if err != nil {
		return nil, fail("priority", err)
	}
	loc, err := e.Location.toLocation()
	if err != nil {
		return nil, fail("location", err)
	}

	if len(e.Requirements) == 0 {
		return nil, fail("requirements", fmt.Errorf("at least one requirement is required"))
	}
	reqs := make([]types.Requirement, 0, len(e.Requirements))
	for i := range e.Requirements {
		req, err := e.Requirements[i].toRequirement()
		if err != nil {
			return nil, fail(fmt.Sprintf("requirements[%d]", i), err)
		}
		if u, ok := req.(types.UnknownRequirement); ok {
			warn(fmt.Sprintf("goal %s: requirement %d has unknown kind %q and will never be met", name, i, u.RawKind))
		}
		reqs = append(reqs, req)
	}

	var duration *time.Duration
	if s := strings.TrimSpace(e.EstimatedDuration); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fail("estimated_duration", err)
		}
		if d < 0 {
			return nil, fail("estimated_duration", fmt.Errorf("must not be negative (got %s)", d))
		}
		duration = &d
	}

	for i, r := range e.Rewards {
		if strings.TrimSpace(r) == "" {
			return nil, fail(fmt.Sprintf("rewards[%d]", i), fmt.Errorf("reward tag is empty"))
		}
	}

	targets := make([]string, 0, len(e.CollectionTargets))
	seenTargets := make(map[string]bool)
	for i, t := range e.CollectionTargets {
		t = strings.TrimSpace(t)
		if t == "" {
			return nil, fail(fmt.Sprintf("collection_targets[%d]", i), fmt.Errorf("target is empty"))
		}
		if seenTargets[t] {
			return nil, fail(fmt.Sprintf("collection_targets[%d]", i), fmt.Errorf("duplicate target %q", t))
		}
		seenTargets[t] = true
		targets = append(targets, t)
	}

	chain, err := e.buildChain(goalType, targets)
	if err != nil {
		return nil, fail("quest_chain", err)
	}

	return &types.Goal{
		Name:              name,
		Description:       e.Description,
		Type:              goalType,
		Priority:          priority,
		Location:          loc,
		Requirements:      reqs,
		Rewards:           append([]string(nil), e.Rewards...),
		EstimatedDuration: duration,
		QuestChain:        chain,
		CollectionTargets: targets,
	}, nil
}

// buildChain validates the quest chain. Collection goals without an explicit
// chain get one step per collection target, confirmed by the collection
// being complete. Goal types confirmed by world state need a confirmation on
// every step.
func (e *goalEntry) buildChain(goalType types.GoalType, targets []string) ([]types.QuestStep, error) {
	if len(e.QuestChain) == 0 && goalType == types.TypeCollectionComplete && len(targets) > 0 {
		chain := make([]types.QuestStep, 0, len(targets))
		for _, t := range targets {
			chain = append(chain, types.QuestStep{
				ID:      t,
				Confirm: types.CollectionRequirement{Collection: t},
			})
		}
		return chain, nil
	}

	chain := make([]types.QuestStep, 0, len(e.QuestChain))
	seen := make(map[string]bool)
	for i, s := range e.QuestChain {
		id := strings.TrimSpace(s.ID)
		if id == "" {
			return nil, fmt.Errorf("step %d: id is required", i)
		}
		if seen[id] {
			return nil, fmt.Errorf("step %d: duplicate step id %q", i, id)
		}
		seen[id] = true

		step := types.QuestStep{ID: id, Description: s.Description, DialogueOption: s.DialogueOption}
		if s.Confirm != nil {
			req, err := s.Confirm.toRequirement()
			if err != nil {
				return nil, fmt.Errorf("step %s: confirm: %w", id, err)
			}
			if _, ok := req.(types.UnknownRequirement); ok {
				return nil, fmt.Errorf("step %s: confirm: unknown requirement kind %q", id, s.Confirm.Kind)
			}
			step.Confirm = req
		}
		if goalType.ConfirmsByState() && step.Confirm == nil {
			return nil, fmt.Errorf("step %s: %s goals need a confirm requirement on every step", id, goalType)
		}
		chain = append(chain, step)
	}

	if goalType.ConfirmsByState() && len(chain) == 0 {
		return nil, fmt.Errorf("%s goals need a quest_chain with confirm requirements or collection_targets", goalType)
	}
	return chain, nil
}

func (r *requirementEntry) toRequirement() (types.Requirement, error) {
	kind := types.RequirementKind(strings.ToLower(strings.TrimSpace(r.Kind)))
	target := strings.TrimSpace(r.Target)

	if kind == "" {
		return nil, fmt.Errorf("kind is required")
	}
	if r.Required < 0 {
		return nil, fmt.Errorf("required must not be negative (got %d)", r.Required)
	}
	if kind != types.KindLevel && kind.IsValid() && target == "" {
		return nil, fmt.Errorf("%s requirement needs a target", kind)
	}

	switch kind {
	case types.KindLevel:
		return types.LevelRequirement{Required: r.Required, Note: r.Description}, nil
	case types.KindReputation:
		return types.ReputationRequirement{Region: target, Required: r.Required, Note: r.Description}, nil
	case types.KindQuest:
		return types.QuestRequirement{Quest: target, Marker: strings.TrimSpace(r.Marker), Note: r.Description}, nil
	case types.KindSkill:
		return types.SkillRequirement{Skill: target, Required: r.Required, Note: r.Description}, nil
	case types.KindCollection:
		return types.CollectionRequirement{Collection: target, Note: r.Description}, nil
	case types.KindUnlock:
		return types.UnlockRequirement{Reward: target, Note: r.Description}, nil
	default:
		return types.UnknownRequirement{RawKind: string(kind), TargetID: target, Required: r.Required, Note: r.Description}, nil
	}
}

func (l *locationEntry) toLocation() (types.Location, error) {
	loc := types.Location{Planet: strings.TrimSpace(l.Planet), Zone: strings.TrimSpace(l.Zone)}

	switch l.Coordinates.Kind {
	case 0:
		// Coordinates omitted: the zone origin.
	case yaml.SequenceNode:
		var xy []float64
		if err := l.Coordinates.Decode(&xy); err != nil {
			return loc, fmt.Errorf("coordinates: %w", err)
		}
		if len(xy) != 2 {
			return loc, fmt.Errorf("coordinates must have exactly two values (got %d)", len(xy))
		}
		loc.Coordinates = types.Coordinates{X: xy[0], Y: xy[1]}
	case yaml.MappingNode:
		var xy struct {
			X *float64 `yaml:"x"`
			Y *float64 `yaml:"y"`
		}
		if err := l.Coordinates.Decode(&xy); err != nil {
			return loc, fmt.Errorf("coordinates: %w", err)
		}
		if xy.X == nil || xy.Y == nil {
			return loc, fmt.Errorf("coordinates need both x and y")
		}
		loc.Coordinates = types.Coordinates{X: *xy.X, Y: *xy.Y}
	default:
		return loc, fmt.Errorf("coordinates must be [x, y] or {x, y}")
	}

	return loc, loc.Validate()
}

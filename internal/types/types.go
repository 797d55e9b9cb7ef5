package types

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Goal is a long-horizon objective loaded from the catalog.
// Goals are immutable once the catalog is built.
type Goal struct {
	Name              string         `json:"name"`
	Description       string         `json:"description,omitempty"`
	Type              GoalType       `json:"type"`
	Priority          Priority       `json:"priority"`
	Location          Location       `json:"location"`
	Requirements      []Requirement  `json:"-"`
	Rewards           []string       `json:"rewards,omitempty"`
	EstimatedDuration *time.Duration `json:"estimated_duration,omitempty"`
	QuestChain        []QuestStep    `json:"quest_chain,omitempty"`
	CollectionTargets []string       `json:"collection_targets,omitempty"`
}

// TotalSteps is the number of steps needed to complete the goal:
// the quest chain length, or 1 for goals without a chain.
func (g *Goal) TotalSteps() int {
	if len(g.QuestChain) > 0 {
		return len(g.QuestChain)
	}
	return 1
}

// Step returns the step at the given index (normally steps_completed).
// Goals without a quest chain have a single implicit step named after the goal.
func (g *Goal) Step(index int) (QuestStep, bool) {
	if len(g.QuestChain) == 0 {
		if index != 0 {
			return QuestStep{}, false
		}
		return QuestStep{ID: g.Name, Description: g.Description}, true
	}
	if index < 0 || index >= len(g.QuestChain) {
		return QuestStep{}, false
	}
	return g.QuestChain[index], true
}

// HasReward reports whether completing the goal grants the given reward tag.
func (g *Goal) HasReward(tag string) bool {
	for _, r := range g.Rewards {
		if r == tag {
			return true
		}
	}
	return false
}

// QuestStep is one step of a goal's quest chain.
type QuestStep struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
	// DialogueOption is the option text to select when the step is driven
	// through dialogue. Empty means the step id is matched instead.
	DialogueOption string `json:"dialogue_option,omitempty"`
	// Confirm, when set, is checked against world state after the
	// interaction to confirm the step actually happened.
	Confirm Requirement `json:"-"`
}

// OptionText is the dialogue text this step matches against.
func (s QuestStep) OptionText() string {
	if s.DialogueOption != "" {
		return s.DialogueOption
	}
	return s.ID
}

// GoalType categorizes goals by the kind of progression they represent
type GoalType string

const (
	TypeCharacterSlot      GoalType = "character_slot"
	TypeKeyQuest           GoalType = "key_quest"
	TypeTokenLoop          GoalType = "token_loop"
	TypeReputationGrind    GoalType = "reputation_grind"
	TypeSkillMastery       GoalType = "skill_mastery"
	TypeCollectionComplete GoalType = "collection_complete"
	TypeUnlockPath         GoalType = "unlock_path"
)

// AllGoalTypes lists every goal type in declaration order.
var AllGoalTypes = []GoalType{
	TypeCharacterSlot, TypeKeyQuest, TypeTokenLoop, TypeReputationGrind,
	TypeSkillMastery, TypeCollectionComplete, TypeUnlockPath,
}

// IsValid checks if the goal type value is valid
func (t GoalType) IsValid() bool {
	switch t {
	case TypeCharacterSlot, TypeKeyQuest, TypeTokenLoop, TypeReputationGrind,
		TypeSkillMastery, TypeCollectionComplete, TypeUnlockPath:
		return true
	}
	return false
}

// ConfirmsByState reports whether steps of this goal type are confirmed by
// re-reading world state instead of by a matched dialogue option.
func (t GoalType) ConfirmsByState() bool {
	switch t {
	case TypeReputationGrind, TypeSkillMastery, TypeCollectionComplete:
		return true
	}
	return false
}

// Priority orders eligible goals. Critical runs first.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// IsValid checks if the priority value is valid
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Rank returns a comparable weight; higher runs first.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// ParsePriority accepts priority names case-insensitively.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("invalid priority: %q", s)
	}
	return p, nil
}

// ParseGoalType accepts goal type names case-insensitively.
func ParseGoalType(s string) (GoalType, error) {
	t := GoalType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("invalid goal type: %q", s)
	}
	return t, nil
}

// Location is where a goal is worked on.
type Location struct {
	Planet      string      `json:"planet"`
	Zone        string      `json:"zone"`
	Coordinates Coordinates `json:"coordinates"`
}

// Coordinates are planet-local world coordinates.
type Coordinates struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Validate checks the location is usable as a navigation target.
func (l Location) Validate() error {
	if strings.TrimSpace(l.Planet) == "" {
		return fmt.Errorf("planet is required")
	}
	if strings.TrimSpace(l.Zone) == "" {
		return fmt.Errorf("zone is required")
	}
	for _, v := range []float64{l.Coordinates.X, l.Coordinates.Y} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("coordinates must be finite (got %v, %v)", l.Coordinates.X, l.Coordinates.Y)
		}
	}
	return nil
}

func (l Location) String() string {
	return fmt.Sprintf("%s/%s (%g, %g)", l.Planet, l.Zone, l.Coordinates.X, l.Coordinates.Y)
}

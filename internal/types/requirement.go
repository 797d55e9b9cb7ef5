package types

import "fmt"

// RequirementKind names the kind of gating condition.
type RequirementKind string

const (
	KindLevel      RequirementKind = "level"
	KindReputation RequirementKind = "reputation"
	KindQuest      RequirementKind = "quest"
	KindSkill      RequirementKind = "skill"
	KindCollection RequirementKind = "collection"
	KindUnlock     RequirementKind = "unlock"
)

// IsValid checks if the requirement kind is one the evaluator understands
func (k RequirementKind) IsValid() bool {
	switch k {
	case KindLevel, KindReputation, KindQuest, KindSkill, KindCollection, KindUnlock:
		return true
	}
	return false
}

// DefaultQuestMarker is the quest status that counts as completed when a
// quest requirement does not name its own marker.
const DefaultQuestMarker = "completed"

// Requirement is a single gating condition a goal depends on.
//
// The set of implementations is closed: LevelRequirement,
// ReputationRequirement, QuestRequirement, SkillRequirement,
// CollectionRequirement, UnlockRequirement and UnknownRequirement.
type Requirement interface {
	Kind() RequirementKind
	// Target identifies what is checked (region, quest id, skill id, ...).
	Target() string
	Description() string
	// RequiredProgress is the numeric threshold; boolean kinds report 1.
	RequiredProgress() int

	isRequirement()
}

// LevelRequirement requires a minimum character level.
type LevelRequirement struct {
	Required int
	Note     string
}

func (LevelRequirement) Kind() RequirementKind   { return KindLevel }
func (LevelRequirement) Target() string          { return "level" }
func (r LevelRequirement) RequiredProgress() int { return r.Required }
func (LevelRequirement) isRequirement()          {}

func (r LevelRequirement) Description() string {
	if r.Note != "" {
		return r.Note
	}
	return fmt.Sprintf("level >= %d", r.Required)
}

// ReputationRequirement requires standing with a region or faction.
type ReputationRequirement struct {
	Region   string
	Required int
	Note     string
}

func (ReputationRequirement) Kind() RequirementKind   { return KindReputation }
func (r ReputationRequirement) Target() string        { return r.Region }
func (r ReputationRequirement) RequiredProgress() int { return r.Required }
func (ReputationRequirement) isRequirement()          {}

func (r ReputationRequirement) Description() string {
	if r.Note != "" {
		return r.Note
	}
	return fmt.Sprintf("reputation[%s] >= %d", r.Region, r.Required)
}

// QuestRequirement requires a quest to report an exact status marker.
type QuestRequirement struct {
	Quest  string
	Marker string
	Note   string
}

func (QuestRequirement) Kind() RequirementKind { return KindQuest }
func (r QuestRequirement) Target() string      { return r.Quest }
func (QuestRequirement) RequiredProgress() int { return 1 }
func (QuestRequirement) isRequirement()        {}

// ExpectedMarker is the status the quest must report.
func (r QuestRequirement) ExpectedMarker() string {
	if r.Marker == "" {
		return DefaultQuestMarker
	}
	return r.Marker
}

func (r QuestRequirement) Description() string {
	if r.Note != "" {
		return r.Note
	}
	return fmt.Sprintf("quest[%s] == %q", r.Quest, r.ExpectedMarker())
}

// SkillRequirement requires a minimum value in a named skill.
type SkillRequirement struct {
	Skill    string
	Required int
	Note     string
}

func (SkillRequirement) Kind() RequirementKind   { return KindSkill }
func (r SkillRequirement) Target() string        { return r.Skill }
func (r SkillRequirement) RequiredProgress() int { return r.Required }
func (SkillRequirement) isRequirement()          {}

func (r SkillRequirement) Description() string {
	if r.Note != "" {
		return r.Note
	}
	return fmt.Sprintf("skill[%s] >= %d", r.Skill, r.Required)
}

// CollectionRequirement requires a collection to be fully completed.
type CollectionRequirement struct {
	Collection string
	Note       string
}

func (CollectionRequirement) Kind() RequirementKind { return KindCollection }
func (r CollectionRequirement) Target() string      { return r.Collection }
func (CollectionRequirement) RequiredProgress() int { return 1 }
func (CollectionRequirement) isRequirement()        {}

func (r CollectionRequirement) Description() string {
	if r.Note != "" {
		return r.Note
	}
	return fmt.Sprintf("collection[%s] complete", r.Collection)
}

// UnlockRequirement requires a reward tag to have been granted already,
// usually by completing another goal.
type UnlockRequirement struct {
	Reward string
	Note   string
}

func (UnlockRequirement) Kind() RequirementKind { return KindUnlock }
func (r UnlockRequirement) Target() string      { return r.Reward }
func (UnlockRequirement) RequiredProgress() int { return 1 }
func (UnlockRequirement) isRequirement()        {}

func (r UnlockRequirement) Description() string {
	if r.Note != "" {
		return r.Note
	}
	return fmt.Sprintf("unlocked[%s]", r.Reward)
}

// UnknownRequirement carries a requirement whose kind was not recognized
// when the catalog was decoded. It never evaluates as met.
type UnknownRequirement struct {
	RawKind  string
	TargetID string
	Required int
	Note     string
}

func (r UnknownRequirement) Kind() RequirementKind { return RequirementKind(r.RawKind) }
func (r UnknownRequirement) Target() string        { return r.TargetID }
func (r UnknownRequirement) RequiredProgress() int { return r.Required }
func (UnknownRequirement) isRequirement()          {}

func (r UnknownRequirement) Description() string {
	if r.Note != "" {
		return r.Note
	}
	return fmt.Sprintf("unknown requirement kind %q (target %s)", r.RawKind, r.TargetID)
}

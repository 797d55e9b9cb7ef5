package requirements

import (
	"errors"
	"testing"

	"github.com/R21Digital/Project-MorningStar-sub013/internal/types"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(level int) *world.State {
	return &world.State{
		CharacterLevel: level,
		Reputations:    map[string]int{"Dathomir": 2000},
		Quests:         map[string]string{"legacy_quest": "completed", "bounty": "in_progress"},
		Skills:         map[string]int{"master_swordsman": 4000},
		Collections:    map[string]bool{"holocrons": true},
	}
}

func TestEvaluateNumericBoundary(t *testing.T) {
	req := types.LevelRequirement{Required: 25}

	at := Evaluate(req, WithGrants(snapshot(25), nil))
	assert.True(t, at.Met)
	assert.Equal(t, 25, at.Current)
	assert.Equal(t, 25, at.Required)

	below := Evaluate(req, WithGrants(snapshot(24), nil))
	assert.False(t, below.Met)
	assert.Equal(t, 24, below.Current)
}

func TestEvaluateKinds(t *testing.T) {
	snap := WithGrants(snapshot(10), []string{"jedi_slot"})

	tests := []struct {
		name string
		req  types.Requirement
		met  bool
	}{
		{"reputation met", types.ReputationRequirement{Region: "Dathomir", Required: 2000}, true},
		{"reputation unmet", types.ReputationRequirement{Region: "Dathomir", Required: 2001}, false},
		{"reputation unknown region", types.ReputationRequirement{Region: "Endor", Required: 1}, false},
		{"quest default marker", types.QuestRequirement{Quest: "legacy_quest"}, true},
		{"quest exact match only", types.QuestRequirement{Quest: "bounty"}, false},
		{"quest custom marker", types.QuestRequirement{Quest: "bounty", Marker: "in_progress"}, true},
		{"skill", types.SkillRequirement{Skill: "master_swordsman", Required: 4000}, true},
		{"collection complete", types.CollectionRequirement{Collection: "holocrons"}, true},
		{"collection incomplete", types.CollectionRequirement{Collection: "trophies"}, false},
		{"unlock granted", types.UnlockRequirement{Reward: "jedi_slot"}, true},
		{"unlock missing", types.UnlockRequirement{Reward: "force_sensitive"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Evaluate(tt.req, snap)
			assert.Equal(t, tt.met, ev.Met)
			assert.NoError(t, ev.Err)
		})
	}
}

func TestEvaluateUnknownKindFailsClosed(t *testing.T) {
	ev := Evaluate(types.UnknownRequirement{RawKind: "faction_war", TargetID: "rebel"}, WithGrants(snapshot(90), nil))
	assert.False(t, ev.Met)

	var evalErr *types.RequirementEvaluationError
	require.True(t, errors.As(ev.Err, &evalErr))
	assert.Equal(t, types.RequirementKind("faction_war"), evalErr.Kind)
}

func TestUnlockUsesWorldReportedRewards(t *testing.T) {
	s := snapshot(1)
	s.Rewards = []string{"from_world"}
	ev := Evaluate(types.UnlockRequirement{Reward: "from_world"}, WithGrants(s, nil))
	assert.True(t, ev.Met)
}

func TestCheckGoalScenario(t *testing.T) {
	goal := &types.Goal{
		Name: "jedi_unlock",
		Requirements: []types.Requirement{
			types.ReputationRequirement{Region: "Dathomir", Required: 2000},
			types.QuestRequirement{Quest: "legacy_quest"},
			types.LevelRequirement{Required: 25},
		},
	}

	check := CheckGoal(goal, WithGrants(snapshot(25), nil))
	assert.True(t, check.AllRequirementsMet)
	require.Len(t, check.Requirements, 3)
	assert.Empty(t, check.Unmet())

	check = CheckGoal(goal, WithGrants(snapshot(20), nil))
	assert.False(t, check.AllRequirementsMet)
	assert.True(t, check.Requirements[0].Met)
	assert.True(t, check.Requirements[1].Met)
	assert.False(t, check.Requirements[2].Met)

	unmet := check.Unmet()
	require.Len(t, unmet, 1)
	assert.Equal(t, "level", unmet[0].Kind)
	assert.Equal(t, 20, unmet[0].Current)
}

func TestCheckGoalWithoutRequirements(t *testing.T) {
	check := CheckGoal(&types.Goal{Name: "free"}, WithGrants(snapshot(1), nil))
	assert.True(t, check.AllRequirementsMet)
}

package types

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusNotStarted, StatusInProgress, true},
		{StatusNotStarted, StatusCompleted, false},
		{StatusNotStarted, StatusLocked, false},
		{StatusInProgress, StatusInProgress, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusFailed, true},
		{StatusInProgress, StatusLocked, true},
		{StatusInProgress, StatusNotStarted, false},
		{StatusLocked, StatusNotStarted, true},
		{StatusLocked, StatusInProgress, false},
		{StatusCompleted, StatusInProgress, false},
		{StatusCompleted, StatusNotStarted, false},
		{StatusFailed, StatusInProgress, false},
		{StatusFailed, StatusNotStarted, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestStatusTerminalAndReset(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, StatusLocked.IsTerminal())

	assert.True(t, StatusFailed.CanReset())
	assert.False(t, StatusCompleted.CanReset(), "completed goals are never reset")
	assert.False(t, StatusLocked.CanReset())
}

func TestPriorityRank(t *testing.T) {
	assert.Greater(t, PriorityCritical.Rank(), PriorityHigh.Rank())
	assert.Greater(t, PriorityHigh.Rank(), PriorityMedium.Rank())
	assert.Greater(t, PriorityMedium.Rank(), PriorityLow.Rank())

	p, err := ParsePriority(" Critical ")
	require.NoError(t, err)
	assert.Equal(t, PriorityCritical, p)

	_, err = ParsePriority("urgent")
	assert.Error(t, err)
}

func TestParseGoalType(t *testing.T) {
	for _, gt := range AllGoalTypes {
		parsed, err := ParseGoalType(string(gt))
		require.NoError(t, err)
		assert.Equal(t, gt, parsed)
	}
	_, err := ParseGoalType("raid")
	assert.Error(t, err)
}

func TestGoalSteps(t *testing.T) {
	single := &Goal{Name: "jedi-slot", Description: "unlock slot"}
	assert.Equal(t, 1, single.TotalSteps())
	step, ok := single.Step(0)
	require.True(t, ok)
	assert.Equal(t, "jedi-slot", step.ID)
	_, ok = single.Step(1)
	assert.False(t, ok)

	chain := &Goal{Name: "legacy", QuestChain: []QuestStep{
		{ID: "talk-to-elder"},
		{ID: "deliver-crystal", DialogueOption: "I have the crystal"},
	}}
	assert.Equal(t, 2, chain.TotalSteps())
	step, ok = chain.Step(1)
	require.True(t, ok)
	assert.Equal(t, "I have the crystal", step.OptionText())
	first, _ := chain.Step(0)
	assert.Equal(t, "talk-to-elder", first.OptionText())
}

func TestLocationValidate(t *testing.T) {
	valid := Location{Planet: "tatooine", Zone: "mos_eisley", Coordinates: Coordinates{X: 3528, Y: -4804}}
	assert.NoError(t, valid.Validate())

	assert.Error(t, Location{Zone: "z"}.Validate())
	assert.Error(t, Location{Planet: "p"}.Validate())
	assert.Error(t, Location{Planet: "p", Zone: "z", Coordinates: Coordinates{X: math.NaN()}}.Validate())
	assert.Error(t, Location{Planet: "p", Zone: "z", Coordinates: Coordinates{Y: math.Inf(1)}}.Validate())
}

func TestGoalProgressValidate(t *testing.T) {
	p := NewGoalProgress("g")
	assert.NoError(t, p.Validate())

	p.TotalSteps = 2
	p.StepsCompleted = 3
	assert.Error(t, p.Validate())

	p.StepsCompleted = 2
	p.Status = StatusCompleted
	assert.Error(t, p.Validate(), "completed requires completion_time")

	now := time.Now()
	p.CompletionTime = &now
	assert.NoError(t, p.Validate())
}

func TestGoalProgressClone(t *testing.T) {
	now := time.Now()
	p := &GoalProgress{Name: "g", Status: StatusInProgress, StartTime: &now}
	c := p.Clone()
	*c.StartTime = now.Add(time.Hour)
	assert.True(t, p.StartTime.Equal(now))

	until := now.Add(time.Minute)
	p = &GoalProgress{Name: "g", Status: StatusLocked, LockedUntil: &until}
	c = p.Clone()
	*c.LockedUntil = now
	assert.True(t, p.LockedUntil.Equal(until))
}

func TestGoalProgressCoolingDown(t *testing.T) {
	now := time.Date(2026, 5, 1, 6, 0, 0, 0, time.UTC)
	until := now.Add(5 * time.Minute)

	p := &GoalProgress{Name: "g", Status: StatusLocked, LockedUntil: &until}
	assert.NoError(t, p.Validate())
	assert.True(t, p.CoolingDown(now))
	assert.True(t, p.CoolingDown(until.Add(-time.Nanosecond)))
	assert.False(t, p.CoolingDown(until))

	p.LockedUntil = nil
	assert.False(t, p.CoolingDown(now), "requirement locks have no cool-down")

	p.Status = StatusNotStarted
	p.LockedUntil = &until
	assert.Error(t, p.Validate(), "only locked goals carry locked_until")
	assert.False(t, p.CoolingDown(now))
}

func TestRequirementDescriptions(t *testing.T) {
	assert.Equal(t, "level >= 25", LevelRequirement{Required: 25}.Description())
	assert.Equal(t, `quest[legacy] == "completed"`, QuestRequirement{Quest: "legacy"}.Description())
	assert.Equal(t, "custom", SkillRequirement{Skill: "x", Note: "custom"}.Description())
	assert.Equal(t, 1, CollectionRequirement{Collection: "c"}.RequiredProgress())
	assert.Equal(t, RequirementKind("faction_war"), UnknownRequirement{RawKind: "faction_war"}.Kind())
	assert.False(t, UnknownRequirement{RawKind: "faction_war"}.Kind().IsValid())
}

func TestErrorTaxonomy(t *testing.T) {
	cfgErr := &ConfigurationError{Index: 2, Field: "priority", Err: errors.New("invalid")}
	assert.Contains(t, cfgErr.Error(), "#2")

	wrapped := fmt.Errorf("navigate: %w", &TerminalGoalFailure{Reason: "zone removed"})
	assert.True(t, IsTerminal(wrapped))
	assert.False(t, IsTerminal(&TransientExecutionError{Op: "navigate", Err: errors.New("timeout")}))
}

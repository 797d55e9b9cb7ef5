package world

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/R21Digital/Project-MorningStar-sub013/internal/types"
	"go.uber.org/zap"
)

// Simulator is an in-memory world used for dry runs. It implements
// Observer, Navigator and Dialogue. Dialogue windows offer the pending quest
// steps of every goal located in the character's current zone, and selecting
// an option makes the step's confirmation requirement true.
type Simulator struct {
	mu     sync.Mutex
	state  *State
	goals  []*types.Goal
	logger *zap.Logger

	offered []types.QuestStep
	// navFailures is the number of upcoming NavigateTo calls that fail.
	navFailures int
}

// NewSimulator creates a simulator starting from initial (copied).
func NewSimulator(initial *State, goals []*types.Goal, logger *zap.Logger) *Simulator {
	if initial == nil {
		initial = &State{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := initial.Clone()
	s.ensureMaps()
	return &Simulator{state: s, goals: goals, logger: logger.Named("simulator")}
}

// FailNextNavigations makes the next n NavigateTo calls fail.
func (s *Simulator) FailNextNavigations(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navFailures = n
}

// Mutate applies fn to the simulated state under lock.
func (s *Simulator) Mutate(fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
}

func (s *Simulator) Observe(ctx context.Context) (Perception, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone(), nil
}

func (s *Simulator) NavigateTo(ctx context.Context, loc types.Location) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.navFailures > 0 {
		s.navFailures--
		return fmt.Errorf("simulated navigation failure to %s", loc)
	}
	l := loc
	s.state.Location = &l
	s.offered = nil
	s.logger.Debug("arrived", zap.Stringer("location", loc))
	return nil
}

func (s *Simulator) WaitForDialogue(ctx context.Context, _ time.Duration) (*Window, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.state.Location
	if pos == nil {
		return nil, ErrNoDialogue
	}

	seen := make(map[string]bool)
	s.offered = s.offered[:0]
	win := &Window{NPC: pos.Zone}
	for _, g := range s.goals {
		if !strings.EqualFold(g.Location.Planet, pos.Planet) || !strings.EqualFold(g.Location.Zone, pos.Zone) {
			continue
		}
		for i := 0; i < g.TotalSteps(); i++ {
			step, _ := g.Step(i)
			if s.stepDone(step) {
				continue
			}
			text := normalizeOption(step.OptionText())
			if seen[text] {
				continue
			}
			seen[text] = true
			s.offered = append(s.offered, step)
			win.Options = append(win.Options, step.OptionText())
		}
	}
	if len(win.Options) == 0 {
		return nil, ErrNoDialogue
	}
	return win, nil
}

func (s *Simulator) SelectOption(ctx context.Context, index int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.offered) {
		return fmt.Errorf("option %d out of range (%d offered)", index, len(s.offered))
	}
	step := s.offered[index]
	s.state.Quests[step.ID] = types.DefaultQuestMarker
	if step.Confirm != nil {
		s.satisfy(step.Confirm)
	}
	s.offered = nil
	s.logger.Debug("option selected", zap.String("step", step.ID))
	return nil
}

func (s *Simulator) stepDone(step types.QuestStep) bool {
	return s.state.Quests[step.ID] == types.DefaultQuestMarker
}

func (s *Simulator) satisfy(req types.Requirement) {
	switch r := req.(type) {
	case types.LevelRequirement:
		if s.state.CharacterLevel < r.Required {
			s.state.CharacterLevel = r.Required
		}
	case types.ReputationRequirement:
		if s.state.Reputations[r.Region] < r.Required {
			s.state.Reputations[r.Region] = r.Required
		}
	case types.QuestRequirement:
		s.state.Quests[r.Quest] = r.ExpectedMarker()
	case types.SkillRequirement:
		if s.state.Skills[r.Skill] < r.Required {
			s.state.Skills[r.Skill] = r.Required
		}
	case types.CollectionRequirement:
		s.state.Collections[r.Collection] = true
	case types.UnlockRequirement:
		if !s.state.RewardGranted(r.Reward) {
			s.state.Rewards = append(s.state.Rewards, r.Reward)
		}
	}
}

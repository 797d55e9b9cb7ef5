package world

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/R21Digital/Project-MorningStar-sub013/internal/types"
	"gopkg.in/yaml.v3"
)

// State is a plain character-state snapshot. It implements Perception,
// RewardReporter and Positioned.
type State struct {
	CharacterLevel int               `yaml:"level" json:"level"`
	Reputations    map[string]int    `yaml:"reputation" json:"reputation"`
	Quests         map[string]string `yaml:"quests" json:"quests"`
	Skills         map[string]int    `yaml:"skills" json:"skills"`
	Collections    map[string]bool   `yaml:"collections" json:"collections"`
	Rewards        []string          `yaml:"rewards" json:"rewards"`
	Location       *types.Location   `yaml:"location,omitempty" json:"location,omitempty"`
}

func (s *State) Level() int                       { return s.CharacterLevel }
func (s *State) Reputation(region string) int     { return s.Reputations[region] }
func (s *State) QuestStatus(quest string) string  { return s.Quests[quest] }
func (s *State) Skill(skill string) int           { return s.Skills[skill] }
func (s *State) CollectionComplete(c string) bool { return s.Collections[c] }

func (s *State) RewardGranted(tag string) bool {
	for _, r := range s.Rewards {
		if r == tag {
			return true
		}
	}
	return false
}

func (s *State) Position() (types.Location, bool) {
	if s.Location == nil {
		return types.Location{}, false
	}
	return *s.Location, true
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	c := &State{
		CharacterLevel: s.CharacterLevel,
		Reputations:    make(map[string]int, len(s.Reputations)),
		Quests:         make(map[string]string, len(s.Quests)),
		Skills:         make(map[string]int, len(s.Skills)),
		Collections:    make(map[string]bool, len(s.Collections)),
		Rewards:        append([]string(nil), s.Rewards...),
	}
	for k, v := range s.Reputations {
		c.Reputations[k] = v
	}
	for k, v := range s.Quests {
		c.Quests[k] = v
	}
	for k, v := range s.Skills {
		c.Skills[k] = v
	}
	for k, v := range s.Collections {
		c.Collections[k] = v
	}
	if s.Location != nil {
		loc := *s.Location
		c.Location = &loc
	}
	return c
}

func (s *State) ensureMaps() {
	if s.Reputations == nil {
		s.Reputations = map[string]int{}
	}
	if s.Quests == nil {
		s.Quests = map[string]string{}
	}
	if s.Skills == nil {
		s.Skills = map[string]int{}
	}
	if s.Collections == nil {
		s.Collections = map[string]bool{}
	}
}

// ParseState decodes a state document. JSON is detected by a leading '{';
// anything else is decoded as YAML.
func ParseState(data []byte) (*State, error) {
	var s State
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, fmt.Errorf("failed to parse state JSON: %w", err)
		}
	} else if err := yaml.Unmarshal(trimmed, &s); err != nil {
		return nil, fmt.Errorf("failed to parse state YAML: %w", err)
	}
	s.ensureMaps()
	return &s, nil
}

// LoadState reads a state file from disk.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	s, err := ParseState(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return s, nil
}

// SaveState writes s as YAML (or JSON for a .json path), replacing the file atomically.
func SaveState(path string, s *State) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(s, "", "  ")
	} else {
		data, err = yaml.Marshal(s)
	}
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// Package world defines the narrow contracts the executor uses to act in the
// game world (navigation, dialogue, perception) together with a file-backed
// perception source and an in-memory simulator.
package world

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/R21Digital/Project-MorningStar-sub013/internal/types"
)

var (
	// ErrNoDialogue is returned when no dialogue window opened within the timeout
	ErrNoDialogue = errors.New("no dialogue window")
	// ErrOptionNotFound is returned when no dialogue option matches the wanted text
	ErrOptionNotFound = errors.New("dialogue option not found")
	// ErrAmbiguousOption is returned when more than one dialogue option matches
	ErrAmbiguousOption = errors.New("dialogue option is ambiguous")
)

// Navigator moves the character. NavigateTo must be idempotent: calling it
// while already at the destination succeeds immediately.
type Navigator interface {
	NavigateTo(ctx context.Context, loc types.Location) error
}

// Dialogue drives NPC conversations.
type Dialogue interface {
	WaitForDialogue(ctx context.Context, timeout time.Duration) (*Window, error)
	SelectOption(ctx context.Context, index int) error
}

// Perception is a read-only view of character state.
type Perception interface {
	Level() int
	Reputation(region string) int
	QuestStatus(quest string) string
	Skill(skill string) int
	CollectionComplete(collection string) bool
}

// Observer captures a fresh Perception snapshot.
type Observer interface {
	Observe(ctx context.Context) (Perception, error)
}

// RewardReporter is implemented by perceptions that know which reward tags
// the character already holds.
type RewardReporter interface {
	RewardGranted(tag string) bool
}

// Positioned is implemented by perceptions that report where the character is.
type Positioned interface {
	Position() (types.Location, bool)
}

// Window is an open dialogue window.
type Window struct {
	NPC     string   `json:"npc,omitempty"`
	Options []string `json:"options"`
}

// Match returns the index of the single option equal to text, ignoring case
// and surrounding whitespace.
func (w *Window) Match(text string) (int, error) {
	if w == nil {
		return -1, ErrNoDialogue
	}
	want := normalizeOption(text)
	found := -1
	for i, opt := range w.Options {
		if normalizeOption(opt) != want {
			continue
		}
		if found >= 0 {
			return -1, fmt.Errorf("%w: %q matches options %d and %d", ErrAmbiguousOption, text, found, i)
		}
		found = i
	}
	if found < 0 {
		return -1, fmt.Errorf("%w: %q", ErrOptionNotFound, text)
	}
	return found, nil
}

func normalizeOption(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// AtLocation reports whether p says the character is at loc. Planet and zone
// must match and the coordinates must be within radius. Perceptions that do
// not report a position never count as arrived.
func AtLocation(p Perception, loc types.Location, radius float64) bool {
	pos, ok := p.(Positioned)
	if !ok {
		return false
	}
	cur, ok := pos.Position()
	if !ok {
		return false
	}
	if !strings.EqualFold(cur.Planet, loc.Planet) || !strings.EqualFold(cur.Zone, loc.Zone) {
		return false
	}
	dx := cur.Coordinates.X - loc.Coordinates.X
	dy := cur.Coordinates.Y - loc.Coordinates.Y
	return math.Hypot(dx, dy) <= radius
}

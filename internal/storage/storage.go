package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/R21Digital/Project-MorningStar-sub013/internal/events"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/storage/sqlite"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/types"
)

// ErrConflict is returned by SaveProgress when the stored status no longer
// matches the caller's expectation.
var ErrConflict = sqlite.ErrConflict

// Storage defines the interface for the durable goal progress store
type Storage interface {
	// Goal progress
	// GetProgress returns the record for a goal, or nil if none exists yet.
	GetProgress(ctx context.Context, name string) (*types.GoalProgress, error)
	ListProgress(ctx context.Context) ([]*types.GoalProgress, error)
	// SaveProgress writes p only if the stored status equals expected.
	// An empty expected status means no record may exist yet. A second
	// IN_PROGRESS goal is refused with types.ErrGoalActive.
	SaveProgress(ctx context.Context, p *types.GoalProgress, expected types.Status) error

	// Event log
	events.EventStore
	CleanupEventsByAge(ctx context.Context, regularCutoff, criticalCutoff time.Time, batchSize int) (int, error)
	CleanupEventsByGlobalLimit(ctx context.Context, globalLimit, batchSize int) (int, error)

	// Store metadata
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error

	// Lifecycle
	Close() error
}

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path
	// Default: ".morningstar/goals.db"
	Path string
	// Character binds the store to one character. Opening a store that
	// belongs to another character fails.
	Character string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path: ".morningstar/goals.db",
	}
}

// ErrCharacterMismatch is returned when a store belongs to another character.
var ErrCharacterMismatch = errors.New("store belongs to a different character")

// NewStorage opens the SQLite progress store
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Path == "" {
		cfg.Path = DefaultConfig().Path
	}

	store, err := sqlite.New(ctx, cfg.Path)
	if err != nil {
		return nil, err
	}
	if err := bindCharacter(ctx, store, cfg.Character); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// bindCharacter records the character on first open and refuses a store
// created for someone else. Progress is never shared across characters.
func bindCharacter(ctx context.Context, s Storage, character string) error {
	if character == "" {
		return nil
	}
	bound, err := s.GetConfig(ctx, "character")
	if err != nil {
		return err
	}
	switch bound {
	case "":
		return s.SetConfig(ctx, "character", character)
	case character:
		return nil
	default:
		return fmt.Errorf("%w: bound to %q, requested %q", ErrCharacterMismatch, bound, character)
	}
}

package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStorageBindsCharacter(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "goals.db")

	store, err := NewStorage(ctx, &Config{Path: path, Character: "Kael"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = NewStorage(ctx, &Config{Path: path, Character: "Kael"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = NewStorage(ctx, &Config{Path: path, Character: "Someone Else"})
	assert.True(t, errors.Is(err, ErrCharacterMismatch))

	// An unnamed open skips the check.
	store, err = NewStorage(ctx, &Config{Path: path})
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestDefaultConfig(t *testing.T) {
	assert.Equal(t, ".morningstar/goals.db", DefaultConfig().Path)
}

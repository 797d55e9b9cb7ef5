package main

import (
	"path/filepath"
	"testing"

	"github.com/R21Digital/Project-MorningStar-sub013/internal/types"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressBar(t *testing.T) {
	tests := []struct {
		done, total, width int
		want               string
	}{
		{0, 3, 6, "[------]"},
		{1, 3, 6, "[##----]"},
		{3, 3, 6, "[######]"},
		{5, 3, 6, "[######]"},
		{-1, 3, 3, "[---]"},
		{1, 0, 6, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, progressBar(tt.done, tt.total, tt.width), "%d/%d", tt.done, tt.total)
	}
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "navigat...", truncateString("navigation failed", 10))
	assert.Equal(t, "nav", truncateString("navigation", 3))
	assert.Equal(t, "unchanged", truncateString("unchanged", 0))
}

func TestFormatEventData(t *testing.T) {
	assert.Empty(t, formatEventData(nil))
	got := formatEventData(map[string]interface{}{
		"op":      "navigate",
		"attempt": 2,
		"backoff": "4s",
	})
	assert.Equal(t, "attempt=2 | backoff=4s | op=navigate", got)
}

func TestParseFilter(t *testing.T) {
	f, err := parseFilter("", "")
	require.NoError(t, err)
	assert.Empty(t, f.Type)
	assert.Empty(t, f.Priority)

	f, err = parseFilter("key_quest", "high")
	require.NoError(t, err)
	assert.Equal(t, types.TypeKeyQuest, f.Type)
	assert.Equal(t, types.PriorityHigh, f.Priority)

	_, err = parseFilter("dance_off", "")
	assert.Error(t, err)
	_, err = parseFilter("", "urgent")
	assert.Error(t, err)
}

func TestStatusIcon(t *testing.T) {
	assert.Equal(t, "●", statusIcon(types.StatusInProgress))
	assert.Equal(t, "⚠", statusIcon(types.StatusLocked))
	assert.Equal(t, "○", statusIcon(types.StatusNotStarted))
}

func TestSeedState(t *testing.T) {
	s, err := seedState("")
	require.NoError(t, err)
	assert.Zero(t, s.Level())

	s, err = seedState(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Zero(t, s.Level())

	path := filepath.Join(t.TempDir(), "world.yaml")
	require.NoError(t, world.SaveState(path, &world.State{CharacterLevel: 42}))
	s, err = seedState(path)
	require.NoError(t, err)
	assert.Equal(t, 42, s.Level())
}

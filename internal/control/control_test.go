package control

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// socketPath keeps the path short; unix socket paths are length-limited.
func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "ms")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "c.sock")
}

func startServer(t *testing.T, h Handler) (*Server, *Client) {
	t.Helper()
	path := socketPath(t)
	srv, err := NewServer(path, h, nil)
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { srv.Stop() })

	client := NewClient(path)
	client.SetTimeout(5 * time.Second)
	return srv, client
}

func TestRoundTrip(t *testing.T) {
	var (
		mu  sync.Mutex
		got []Command
	)
	_, client := startServer(t, func(_ context.Context, cmd Command) (map[string]interface{}, error) {
		mu.Lock()
		got = append(got, cmd)
		mu.Unlock()
		switch cmd.Type {
		case CommandStatus:
			return map[string]interface{}{"total_goals": 3, "active_goals": 1}, nil
		case CommandStartGoal:
			if cmd.Goal == "busy" {
				return nil, errors.New("another goal is already in progress")
			}
			return map[string]interface{}{"name": cmd.Goal, "status": "IN_PROGRESS"}, nil
		}
		return nil, nil
	})

	resp, err := client.Status()
	require.NoError(t, err)
	assert.True(t, resp.Success)

	var status struct {
		TotalGoals  int `json:"total_goals"`
		ActiveGoals int `json:"active_goals"`
	}
	require.NoError(t, resp.Decode(&status))
	assert.Equal(t, 3, status.TotalGoals)
	assert.Equal(t, 1, status.ActiveGoals)

	resp, err = client.StartGoal("jedi_unlock")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "IN_PROGRESS", resp.Data["status"])

	resp, err = client.StartGoal("busy")
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "already in progress")

	_, err = client.List("key_quest", "high")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 4)
	assert.Equal(t, "jedi_unlock", got[1].Goal)
	assert.Equal(t, "key_quest", got[3].GoalType)
	assert.Equal(t, "high", got[3].Priority)
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestStopRemovesSocket(t *testing.T) {
	srv, client := startServer(t, nil)
	assert.True(t, srv.IsRunning())

	resp, err := client.Status()
	require.NoError(t, err)
	assert.False(t, resp.Success, "no handler registered")

	require.NoError(t, srv.Stop())
	require.NoError(t, srv.Stop())
	_, err = os.Stat(srv.SocketPath())
	assert.True(t, os.IsNotExist(err))

	_, err = client.Status()
	assert.Error(t, err)
}

func TestServeStopsOnCancel(t *testing.T) {
	path := socketPath(t)
	srv, err := NewServer(path, func(context.Context, Command) (map[string]interface{}, error) {
		return nil, nil
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	require.Eventually(t, srv.IsRunning, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

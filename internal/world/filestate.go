package world

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultReloadDebounce is how long FileState waits after the last change
// before reloading the state file.
const DefaultReloadDebounce = 200 * time.Millisecond

// FileState is an Observer backed by a YAML or JSON state file that the
// perception layer rewrites. Watch reloads it whenever it changes.
type FileState struct {
	path     string
	logger   *zap.Logger
	debounce time.Duration

	mu      sync.RWMutex
	state   *State
	reloads int
	changed chan struct{}
}

// OpenFileState loads the state file once. Call Watch to keep it current.
func OpenFileState(path string, logger *zap.Logger) (*FileState, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s, err := LoadState(path)
	if err != nil {
		return nil, err
	}
	return &FileState{
		path:     path,
		logger:   logger.Named("filestate"),
		debounce: DefaultReloadDebounce,
		state:    s,
		changed:  make(chan struct{}, 1),
	}, nil
}

// SetDebounce sets the quiet period before a reload. Call before Watch.
func (f *FileState) SetDebounce(d time.Duration) {
	if d > 0 {
		f.debounce = d
	}
}

// Changed receives a value after each successful reload. Reloads that
// happen while a value is pending are coalesced.
func (f *FileState) Changed() <-chan struct{} {
	return f.changed
}

// Observe returns a copy of the most recently loaded state.
func (f *FileState) Observe(ctx context.Context) (Perception, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state.Clone(), nil
}

// Reloads reports how many successful reloads happened since open.
func (f *FileState) Reloads() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.reloads
}

// Reload re-reads the state file. On a parse error the previous state is kept.
func (f *FileState) Reload() error {
	s, err := LoadState(f.path)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.state = s
	f.reloads++
	f.mu.Unlock()
	select {
	case f.changed <- struct{}{}:
	default:
	}
	return nil
}

// Watch blocks until ctx is done, reloading the file after changes. The
// parent directory is watched so editors and atomic renames are picked up.
func (f *FileState) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(f.path), err)
	}

	target := filepath.Clean(f.path)
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(f.debounce, func() {
				if err := f.Reload(); err != nil {
					f.logger.Warn("keeping previous world state", zap.String("path", f.path), zap.Error(err))
					return
				}
				f.logger.Debug("world state reloaded", zap.String("path", f.path))
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("state file watcher error", zap.Error(err))
		}
	}
}

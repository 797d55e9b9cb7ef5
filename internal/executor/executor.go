// Package executor drives the goal loop: it reconciles locked goals, selects
// and starts the next goal, and performs one navigation or interaction step
// per iteration on a single goroutine.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/R21Digital/Project-MorningStar-sub013/internal/catalog"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/clock"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/config"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/events"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/metrics"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/storage"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/tracker"
	"github.com/R21Digital/Project-MorningStar-sub013/internal/world"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrNotRunning is returned by control requests when the loop is not running
	ErrNotRunning = errors.New("executor is not running")
	// ErrNoActiveGoal is returned by WorkOnCurrentGoal when nothing is in progress
	ErrNoActiveGoal = errors.New("no goal in progress")
)

// Executor runs the goal loop for one character
type Executor struct {
	tracker   *tracker.Tracker
	catalog   *catalog.Catalog
	observer  world.Observer
	navigator world.Navigator
	dialogue  world.Dialogue
	store     storage.Storage
	recorder  *events.Recorder
	clock     clock.Clock
	logger    *zap.Logger
	metrics   *metrics.Metrics
	limiter   *rate.Limiter
	config    config.ExecutorConfig
	retention *config.EventRetentionConfig

	instanceID string

	// Control channels
	requests chan request
	wake     chan struct{}
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}

	// State
	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// Config holds executor dependencies and tuning
type Config struct {
	Tracker   *tracker.Tracker
	Catalog   *catalog.Catalog
	Observer  world.Observer
	Navigator world.Navigator
	Dialogue  world.Dialogue
	// Store enables event log pruning when Retention is set (optional)
	Store    storage.Storage
	Recorder *events.Recorder // default: recorder over Store
	Clock    clock.Clock      // default: wall clock
	Logger   *zap.Logger      // default: no-op
	Metrics  *metrics.Metrics // optional
	Tuning   config.ExecutorConfig
	// Retention configures event log pruning; nil disables it
	Retention *config.EventRetentionConfig
}

// New creates a new executor instance
func New(cfg *Config) (*Executor, error) {
	if cfg.Tracker == nil {
		return nil, fmt.Errorf("tracker is required")
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if cfg.Observer == nil || cfg.Navigator == nil || cfg.Dialogue == nil {
		return nil, fmt.Errorf("observer, navigator and dialogue are required")
	}
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, fmt.Errorf("invalid executor config: %w", err)
	}
	if cfg.Retention != nil && cfg.Store == nil {
		return nil, fmt.Errorf("event retention requires a store")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	recorder := cfg.Recorder
	if recorder == nil {
		var store events.EventStore
		if cfg.Store != nil {
			store = cfg.Store
		}
		recorder = events.NewRecorder(store, logger, clk.Now)
	}

	return &Executor{
		tracker:    cfg.Tracker,
		catalog:    cfg.Catalog,
		observer:   cfg.Observer,
		navigator:  cfg.Navigator,
		dialogue:   cfg.Dialogue,
		store:      cfg.Store,
		recorder:   recorder,
		clock:      clk,
		logger:     logger.Named("executor"),
		metrics:    cfg.Metrics,
		limiter:    rate.NewLimiter(rate.Limit(cfg.Tuning.InteractionRate), cfg.Tuning.InteractionBurst),
		config:     cfg.Tuning,
		retention:  cfg.Retention,
		instanceID: uuid.New().String(),
		requests:   make(chan request, 16),
		wake:       make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}, nil
}

// Run drives the loop until ctx is cancelled or Stop is called. It returns
// nil on a clean stop.
func (e *Executor) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("executor is already running")
	}
	select {
	case <-e.doneCh:
		e.mu.Unlock()
		return fmt.Errorf("executor has already stopped")
	default:
	}
	e.running = true
	e.startedAt = e.clock.Now()
	e.mu.Unlock()

	e.recorder.Emit(ctx, events.EventTypeExecutorStarted, "", events.SeverityInfo,
		fmt.Sprintf("executor %s started", e.instanceID),
		map[string]interface{}{
			"instance_id":   e.instanceID,
			"poll_interval": e.config.PollInterval.String(),
			"goals":         e.catalog.Len(),
		})

	e.eventLoop(ctx)

	e.mu.Lock()
	e.running = false
	e.mu.Unlock()

	// The stopped event is recorded even when ctx is already cancelled
	e.recorder.Emit(context.WithoutCancel(ctx), events.EventTypeExecutorStopped, "", events.SeverityInfo,
		fmt.Sprintf("executor %s stopped", e.instanceID),
		map[string]interface{}{"instance_id": e.instanceID})
	close(e.doneCh)
	return nil
}

// Stop signals the loop to exit after the current iteration and waits for
// it to finish or ctx to expire. Safe to call more than once.
func (e *Executor) Stop(ctx context.Context) error {
	e.stopOnce.Do(func() { close(e.stopCh) })

	e.mu.RLock()
	running := e.running
	e.mu.RUnlock()
	if !running {
		return nil
	}

	select {
	case <-e.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning returns whether the loop is currently running
func (e *Executor) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Done is closed once Run has returned.
func (e *Executor) Done() <-chan struct{} {
	return e.doneCh
}

func (e *Executor) stopping() bool {
	select {
	case <-e.stopCh:
		return true
	default:
		return false
	}
}

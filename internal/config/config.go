// Package config loads runtime settings for the goal orchestrator.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is the full runtime configuration.
type Config struct {
	// Character binds the progress store to one character. Empty skips the check.
	Character string               `koanf:"character"`
	Storage   StorageConfig        `koanf:"storage"`
	Catalog   CatalogConfig        `koanf:"catalog"`
	World     WorldConfig          `koanf:"world"`
	Executor  ExecutorConfig       `koanf:"executor"`
	Control   ControlConfig        `koanf:"control"`
	Metrics   MetricsConfig        `koanf:"metrics"`
	Logging   LoggingConfig        `koanf:"logging"`
	Events    EventRetentionConfig `koanf:"events"`
}

// StorageConfig locates the progress database.
type StorageConfig struct {
	Path string `koanf:"path"`
}

// CatalogConfig locates the goal catalog.
type CatalogConfig struct {
	Path string `koanf:"path"`
}

// WorldConfig selects the perception source.
type WorldConfig struct {
	// StatePath is the world-state file written by the perception layer.
	StatePath      string        `koanf:"state_path"`
	ReloadDebounce time.Duration `koanf:"reload_debounce"`
	// Simulate drives the loop against in-process simulated collaborators.
	Simulate bool `koanf:"simulate"`
	// LivePerception observes the world through the state file, reloaded
	// on change, instead of the simulator's own state.
	LivePerception bool `koanf:"live_perception"`
}

// ExecutorConfig tunes the goal loop.
type ExecutorConfig struct {
	PollInterval           time.Duration `koanf:"poll_interval"`
	IdleBackoffMax         time.Duration `koanf:"idle_backoff_max"`
	NavigationTimeout      time.Duration `koanf:"navigation_timeout"`
	DialogueTimeout        time.Duration `koanf:"dialogue_timeout"`
	ObserveTimeout         time.Duration `koanf:"observe_timeout"`
	MaxNavigationFailures  int           `koanf:"max_navigation_failures"`
	MaxInteractionFailures int           `koanf:"max_interaction_failures"`
	InitialBackoff         time.Duration `koanf:"initial_backoff"`
	MaxBackoff             time.Duration `koanf:"max_backoff"`
	BackoffMultiplier      float64       `koanf:"backoff_multiplier"`
	// LockCooldown holds a goal that ran out of retries before it may be
	// selected again. It doubles with each further lock up to MaxLockCooldown.
	LockCooldown    time.Duration `koanf:"lock_cooldown"`
	MaxLockCooldown time.Duration `koanf:"max_lock_cooldown"`
	// InteractionRate limits world interactions per second.
	InteractionRate  float64 `koanf:"interaction_rate"`
	InteractionBurst int     `koanf:"interaction_burst"`
	// ArrivalRadius is how close the character must be to a goal location
	// to count as arrived.
	ArrivalRadius float64 `koanf:"arrival_radius"`
}

// ControlConfig locates the control socket.
type ControlConfig struct {
	SocketPath string `koanf:"socket_path"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Address string `koanf:"address"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{Path: ".morningstar/goals.db"},
		Catalog: CatalogConfig{Path: "goals.yaml"},
		World: WorldConfig{
			StatePath:      ".morningstar/world.yaml",
			ReloadDebounce: 200 * time.Millisecond,
		},
		Executor:  DefaultExecutorConfig(),
		Control:   ControlConfig{SocketPath: ".morningstar/control.sock"},
		Metrics:   MetricsConfig{Enabled: false, Address: "127.0.0.1:9464"},
		Logging:   LoggingConfig{Level: "info", Format: "console"},
		Events:    DefaultEventRetentionConfig(),
		Character: "",
	}
}

// DefaultExecutorConfig returns the default loop tuning.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		PollInterval:           time.Second,
		IdleBackoffMax:         30 * time.Second,
		NavigationTimeout:      2 * time.Minute,
		DialogueTimeout:        10 * time.Second,
		ObserveTimeout:         5 * time.Second,
		MaxNavigationFailures:  3,
		MaxInteractionFailures: 3,
		InitialBackoff:         2 * time.Second,
		MaxBackoff:             time.Minute,
		BackoffMultiplier:      2.0,
		LockCooldown:           5 * time.Minute,
		MaxLockCooldown:        time.Hour,
		InteractionRate:        1.0,
		InteractionBurst:       1,
		ArrivalRadius:          5.0,
	}
}

// Validate checks every section and joins the problems found.
func (c *Config) Validate() error {
	var errs []error
	if c.Storage.Path == "" {
		errs = append(errs, fmt.Errorf("storage.path is required"))
	}
	if c.Catalog.Path == "" {
		errs = append(errs, fmt.Errorf("catalog.path is required"))
	}
	if c.World.ReloadDebounce < 0 {
		errs = append(errs, fmt.Errorf("world.reload_debounce cannot be negative (got %s)", c.World.ReloadDebounce))
	}
	if (!c.World.Simulate || c.World.LivePerception) && c.World.StatePath == "" {
		errs = append(errs, fmt.Errorf("world.state_path is required for live perception"))
	}
	if err := c.Executor.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("executor: %w", err))
	}
	if c.Control.SocketPath == "" {
		errs = append(errs, fmt.Errorf("control.socket_path is required"))
	}
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		errs = append(errs, fmt.Errorf("metrics.address is required when metrics are enabled"))
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		errs = append(errs, fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format))
	}
	if err := c.Events.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("events: %w", err))
	}
	return errors.Join(errs...)
}

// Validate checks the loop tuning for usable values
func (c ExecutorConfig) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive (got %s)", c.PollInterval)
	}
	if c.IdleBackoffMax < c.PollInterval {
		return fmt.Errorf("idle_backoff_max (%s) must be >= poll_interval (%s)", c.IdleBackoffMax, c.PollInterval)
	}
	if c.NavigationTimeout <= 0 || c.DialogueTimeout <= 0 || c.ObserveTimeout <= 0 {
		return fmt.Errorf("collaborator timeouts must be positive (navigation=%s, dialogue=%s, observe=%s)",
			c.NavigationTimeout, c.DialogueTimeout, c.ObserveTimeout)
	}
	if c.MaxNavigationFailures < 1 || c.MaxNavigationFailures > 100 {
		return fmt.Errorf("max_navigation_failures must be between 1 and 100 (got %d)", c.MaxNavigationFailures)
	}
	if c.MaxInteractionFailures < 1 || c.MaxInteractionFailures > 100 {
		return fmt.Errorf("max_interaction_failures must be between 1 and 100 (got %d)", c.MaxInteractionFailures)
	}
	if c.InitialBackoff <= 0 {
		return fmt.Errorf("initial_backoff must be positive (got %s)", c.InitialBackoff)
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("max_backoff (%s) must be >= initial_backoff (%s)", c.MaxBackoff, c.InitialBackoff)
	}
	if c.BackoffMultiplier < 1.0 {
		return fmt.Errorf("backoff_multiplier must be >= 1.0 (got %.2f)", c.BackoffMultiplier)
	}
	if c.LockCooldown <= 0 {
		return fmt.Errorf("lock_cooldown must be positive (got %s)", c.LockCooldown)
	}
	if c.MaxLockCooldown < c.LockCooldown {
		return fmt.Errorf("max_lock_cooldown (%s) must be >= lock_cooldown (%s)", c.MaxLockCooldown, c.LockCooldown)
	}
	if c.InteractionRate <= 0 {
		return fmt.Errorf("interaction_rate must be positive (got %.2f)", c.InteractionRate)
	}
	if c.InteractionBurst < 1 {
		return fmt.Errorf("interaction_burst must be at least 1 (got %d)", c.InteractionBurst)
	}
	if c.ArrivalRadius < 0 {
		return fmt.Errorf("arrival_radius cannot be negative (got %.2f)", c.ArrivalRadius)
	}
	return nil
}

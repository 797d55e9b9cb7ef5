package config

import (
	"fmt"
	"time"
)

// EventRetentionConfig holds configuration for goal event log pruning
type EventRetentionConfig struct {
	// RetentionDays is the retention period for info/warning events (in days)
	// Default: 30, Range: 1-365
	RetentionDays int `koanf:"retention_days"`

	// RetentionCriticalDays is the retention period for error/critical events
	// (in days). Must be >= RetentionDays
	// Default: 90, Range: 1-730
	RetentionCriticalDays int `koanf:"retention_critical_days"`

	// GlobalLimitEvents caps the total number of events kept. The oldest
	// non-critical events go first
	// Default: 100000, Range: 1000-1000000
	GlobalLimitEvents int `koanf:"global_limit_events"`

	// CleanupInterval is how often the executor prunes the log
	// Default: 24h, Range: 1m-168h
	CleanupInterval time.Duration `koanf:"cleanup_interval"`

	// CleanupEnabled controls whether automatic pruning runs at all
	// Default: true
	CleanupEnabled bool `koanf:"cleanup_enabled"`
}

// DefaultEventRetentionConfig returns the default event retention configuration
func DefaultEventRetentionConfig() EventRetentionConfig {
	return EventRetentionConfig{
		RetentionDays:         30,
		RetentionCriticalDays: 90,
		GlobalLimitEvents:     100000,
		CleanupInterval:       24 * time.Hour,
		CleanupEnabled:        true,
	}
}

// Validate checks if the configuration has valid values
func (c EventRetentionConfig) Validate() error {
	if c.RetentionDays < 1 || c.RetentionDays > 365 {
		return fmt.Errorf("retention_days must be between 1 and 365 (got %d)", c.RetentionDays)
	}

	if c.RetentionCriticalDays < 1 || c.RetentionCriticalDays > 730 {
		return fmt.Errorf("retention_critical_days must be between 1 and 730 (got %d)",
			c.RetentionCriticalDays)
	}
	if c.RetentionCriticalDays < c.RetentionDays {
		return fmt.Errorf("retention_critical_days (%d) must be >= retention_days (%d)",
			c.RetentionCriticalDays, c.RetentionDays)
	}

	if c.GlobalLimitEvents < 1000 {
		return fmt.Errorf("global_limit_events must be at least 1000 (got %d)",
			c.GlobalLimitEvents)
	}
	if c.GlobalLimitEvents > 1000000 {
		return fmt.Errorf("global_limit_events too large (got %d, max 1000000)",
			c.GlobalLimitEvents)
	}

	if c.CleanupInterval < time.Minute {
		return fmt.Errorf("cleanup_interval must be at least 1m (got %s)", c.CleanupInterval)
	}
	if c.CleanupInterval > 168*time.Hour {
		return fmt.Errorf("cleanup_interval too large (got %s, max 168h)", c.CleanupInterval)
	}

	return nil
}

// Cutoffs returns the timestamps before which regular and critical events
// may be deleted.
func (c EventRetentionConfig) Cutoffs(now time.Time) (regular, critical time.Time) {
	day := 24 * time.Hour
	return now.Add(-time.Duration(c.RetentionDays) * day), now.Add(-time.Duration(c.RetentionCriticalDays) * day)
}

// String returns a human-readable representation of the config
func (c EventRetentionConfig) String() string {
	return fmt.Sprintf(
		"EventRetentionConfig{RetentionDays: %d, RetentionCriticalDays: %d, "+
			"GlobalLimit: %d, CleanupInterval: %s, Enabled: %t}",
		c.RetentionDays, c.RetentionCriticalDays, c.GlobalLimitEvents,
		c.CleanupInterval, c.CleanupEnabled,
	)
}

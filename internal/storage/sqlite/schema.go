package sqlite

import "github.com/R21Digital/Project-MorningStar-sub013/internal/storage/migrations"

// schemaMigrations builds the store schema. Append new versions; never edit
// an applied one.
var schemaMigrations = []migrations.Migration{
	{
		Version:     1,
		Description: "goal progress and event log",
		Up: `
-- One row per goal for this character
CREATE TABLE IF NOT EXISTS goal_progress (
    name TEXT PRIMARY KEY,
    status TEXT NOT NULL CHECK(status IN ('NOT_STARTED', 'IN_PROGRESS', 'COMPLETED', 'FAILED', 'LOCKED')),
    current_step TEXT NOT NULL DEFAULT '',
    steps_completed INTEGER NOT NULL DEFAULT 0 CHECK(steps_completed >= 0),
    total_steps INTEGER NOT NULL DEFAULT 0 CHECK(total_steps >= 0),
    start_time TEXT,
    completion_time TEXT,
    last_updated TEXT NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    CHECK(total_steps = 0 OR steps_completed <= total_steps)
);

CREATE INDEX IF NOT EXISTS idx_goal_progress_status ON goal_progress(status);

-- Append-only goal event log
CREATE TABLE IF NOT EXISTS goal_events (
    id TEXT PRIMARY KEY,
    timestamp TEXT NOT NULL,
    event_type TEXT NOT NULL,
    goal TEXT NOT NULL DEFAULT '',
    severity TEXT NOT NULL,
    message TEXT NOT NULL,
    data TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_goal_events_goal ON goal_events(goal);
CREATE INDEX IF NOT EXISTS idx_goal_events_timestamp ON goal_events(timestamp);
CREATE INDEX IF NOT EXISTS idx_goal_events_type ON goal_events(event_type);
`,
	},
	{
		Version:     2,
		Description: "at most one goal in progress",
		Up: `
CREATE UNIQUE INDEX IF NOT EXISTS idx_goal_progress_single_active
    ON goal_progress(status) WHERE status = 'IN_PROGRESS';
`,
	},
	{
		Version:     3,
		Description: "store metadata",
		Up: `
CREATE TABLE IF NOT EXISTS store_config (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`,
	},
	{
		Version:     4,
		Description: "lock cool-down",
		Up: `
ALTER TABLE goal_progress ADD COLUMN locked_until TEXT;
ALTER TABLE goal_progress ADD COLUMN lock_count INTEGER NOT NULL DEFAULT 0 CHECK(lock_count >= 0);
`,
	},
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/R21Digital/Project-MorningStar-sub013/internal/types"
)

const progressColumns = `name, status, current_step, steps_completed, total_steps,
	start_time, completion_time, last_updated, reason, locked_until, lock_count`

// GetProgress returns the stored record for a goal, or nil if none exists.
func (s *SQLiteStorage) GetProgress(ctx context.Context, name string) (*types.GoalProgress, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+progressColumns+` FROM goal_progress WHERE name = ?`, name)
	p, err := scanProgress(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress for %s: %w", name, err)
	}
	return p, nil
}

// ListProgress returns every stored record ordered by name.
func (s *SQLiteStorage) ListProgress(ctx context.Context) ([]*types.GoalProgress, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+progressColumns+` FROM goal_progress ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	var result []*types.GoalProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// SaveProgress writes p if the stored status equals expected ("" means the
// record must not exist yet). The write is committed before returning.
func (s *SQLiteStorage) SaveProgress(ctx context.Context, p *types.GoalProgress, expected types.Status) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid progress for %s: %w", p.Name, err)
	}

	if expected == "" {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO goal_progress (`+progressColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			p.Name, p.Status, p.CurrentStep, p.StepsCompleted, p.TotalSteps,
			formatNullTime(p.StartTime), formatNullTime(p.CompletionTime), formatTime(p.LastUpdated), p.Reason,
			formatNullTime(p.LockedUntil), p.LockCount,
		)
		return s.classifyWriteError(ctx, p, expected, err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE goal_progress
		SET status = ?, current_step = ?, steps_completed = ?, total_steps = ?,
		    start_time = ?, completion_time = ?, last_updated = ?, reason = ?,
		    locked_until = ?, lock_count = ?
		WHERE name = ? AND status = ?
	`,
		p.Status, p.CurrentStep, p.StepsCompleted, p.TotalSteps,
		formatNullTime(p.StartTime), formatNullTime(p.CompletionTime), formatTime(p.LastUpdated), p.Reason,
		formatNullTime(p.LockedUntil), p.LockCount,
		p.Name, expected,
	)
	if err != nil {
		return s.classifyWriteError(ctx, p, expected, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return s.conflict(ctx, p.Name, expected)
	}
	return nil
}

func (s *SQLiteStorage) classifyWriteError(ctx context.Context, p *types.GoalProgress, expected types.Status, err error) error {
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err, "goal_progress.status"):
		return fmt.Errorf("cannot set %s to %s: %w", p.Name, p.Status, types.ErrGoalActive)
	case isUniqueViolation(err, "goal_progress.name"):
		return s.conflict(ctx, p.Name, expected)
	default:
		return fmt.Errorf("failed to save progress for %s: %w", p.Name, err)
	}
}

// conflict reports which case a failed compare-and-swap hit.
func (s *SQLiteStorage) conflict(ctx context.Context, name string, expected types.Status) error {
	current, err := s.GetProgress(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to verify progress for %s: %w", name, err)
	}
	got := types.Status("<none>")
	if current != nil {
		got = current.Status
	}
	want := expected
	if want == "" {
		want = "<none>"
	}
	return fmt.Errorf("%w: %s expected status %s, found %s", ErrConflict, name, want, got)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProgress(row scanner) (*types.GoalProgress, error) {
	var (
		p                                      types.GoalProgress
		status                                 string
		startTime, completionTime, lockedUntil sql.NullString
		lastUpdated                            string
	)
	if err := row.Scan(
		&p.Name, &status, &p.CurrentStep, &p.StepsCompleted, &p.TotalSteps,
		&startTime, &completionTime, &lastUpdated, &p.Reason,
		&lockedUntil, &p.LockCount,
	); err != nil {
		return nil, err
	}
	p.Status = types.Status(status)

	var err error
	if p.StartTime, err = parseNullTime(startTime); err != nil {
		return nil, fmt.Errorf("invalid start_time for %s: %w", p.Name, err)
	}
	if p.CompletionTime, err = parseNullTime(completionTime); err != nil {
		return nil, fmt.Errorf("invalid completion_time for %s: %w", p.Name, err)
	}
	if p.LastUpdated, err = parseTime(lastUpdated); err != nil {
		return nil, fmt.Errorf("invalid last_updated for %s: %w", p.Name, err)
	}
	if p.LockedUntil, err = parseNullTime(lockedUntil); err != nil {
		return nil, fmt.Errorf("invalid locked_until for %s: %w", p.Name, err)
	}
	return &p, nil
}

package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// CleanupEventsByAge deletes info/warning events older than regularCutoff and
// error/critical events older than criticalCutoff, batchSize rows per statement.
func (s *SQLiteStorage) CleanupEventsByAge(ctx context.Context, regularCutoff, criticalCutoff time.Time, batchSize int) (int, error) {
	if batchSize < 1 {
		return 0, fmt.Errorf("batch size must be at least 1")
	}

	totalDeleted, err := s.deleteOldEventsBatch(ctx, regularCutoff, []string{"info", "warning"}, batchSize)
	if err != nil {
		return totalDeleted, fmt.Errorf("failed to delete old regular events: %w", err)
	}

	deleted, err := s.deleteOldEventsBatch(ctx, criticalCutoff, []string{"error", "critical"}, batchSize)
	totalDeleted += deleted
	if err != nil {
		return totalDeleted, fmt.Errorf("failed to delete old critical events: %w", err)
	}
	return totalDeleted, nil
}

func (s *SQLiteStorage) deleteOldEventsBatch(ctx context.Context, cutoff time.Time, severities []string, batchSize int) (int, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(severities)), ", ")
	query := fmt.Sprintf(`
		DELETE FROM goal_events
		WHERE id IN (
			SELECT id FROM goal_events
			WHERE timestamp < ?
			AND severity IN (%s)
			ORDER BY timestamp ASC
			LIMIT ?
		)
	`, placeholders)

	args := []interface{}{formatTime(cutoff)}
	for _, sev := range severities {
		args = append(args, sev)
	}
	args = append(args, batchSize)

	totalDeleted := 0
	for {
		if err := ctx.Err(); err != nil {
			return totalDeleted, err
		}

		result, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return totalDeleted, fmt.Errorf("failed to execute delete: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return totalDeleted, fmt.Errorf("failed to get rows affected: %w", err)
		}
		totalDeleted += int(rowsAffected)

		if rowsAffected < int64(batchSize) {
			return totalDeleted, nil
		}
	}
}

// CleanupEventsByGlobalLimit trims the log to globalLimit events, deleting
// the oldest info/warning events first. Error and critical events are kept
// even if that leaves the log above the limit.
func (s *SQLiteStorage) CleanupEventsByGlobalLimit(ctx context.Context, globalLimit, batchSize int) (int, error) {
	if globalLimit < 1 {
		return 0, fmt.Errorf("global limit must be at least 1")
	}
	if batchSize < 1 {
		return 0, fmt.Errorf("batch size must be at least 1")
	}

	var currentCount int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM goal_events").Scan(&currentCount); err != nil {
		return 0, fmt.Errorf("failed to get event count: %w", err)
	}
	if currentCount <= globalLimit {
		return 0, nil
	}

	eventsToDelete := currentCount - globalLimit
	totalDeleted := 0
	for eventsToDelete > 0 {
		if err := ctx.Err(); err != nil {
			return totalDeleted, err
		}

		limitThisBatch := batchSize
		if eventsToDelete < batchSize {
			limitThisBatch = eventsToDelete
		}

		result, err := s.db.ExecContext(ctx, `
			DELETE FROM goal_events
			WHERE id IN (
				SELECT id FROM goal_events
				WHERE severity NOT IN ('error', 'critical')
				ORDER BY timestamp ASC
				LIMIT ?
			)
		`, limitThisBatch)
		if err != nil {
			return totalDeleted, fmt.Errorf("failed to execute delete: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return totalDeleted, fmt.Errorf("failed to get rows affected: %w", err)
		}

		totalDeleted += int(rowsAffected)
		eventsToDelete -= int(rowsAffected)
		if rowsAffected < int64(limitThisBatch) {
			break
		}
	}
	return totalDeleted, nil
}

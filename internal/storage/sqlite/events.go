package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/R21Digital/Project-MorningStar-sub013/internal/events"
)

// StoreEvent appends an event to the goal event log
func (s *SQLiteStorage) StoreEvent(ctx context.Context, event *events.GoalEvent) error {
	// Marshal the Data field to JSON
	dataJSON, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO goal_events (id, timestamp, event_type, goal, severity, message, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID,
		formatTime(event.Timestamp),
		event.Type,
		event.Goal,
		event.Severity,
		event.Message,
		string(dataJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to store goal event (type=%s, goal=%s): %w", event.Type, event.Goal, err)
	}
	return nil
}

// GetEvents retrieves events matching the given filter, most recent first
func (s *SQLiteStorage) GetEvents(ctx context.Context, filter events.EventFilter) ([]*events.GoalEvent, error) {
	query := `
		SELECT id, timestamp, event_type, goal, severity, message, data
		FROM goal_events
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.Goal != "" {
		query += " AND goal = ?"
		args = append(args, filter.Goal)
	}
	if filter.Type != "" {
		query += " AND event_type = ?"
		args = append(args, filter.Type)
	}
	if filter.Severity != "" {
		query += " AND severity = ?"
		args = append(args, filter.Severity)
	}
	if !filter.AfterTime.IsZero() {
		query += " AND timestamp > ?"
		args = append(args, formatTime(filter.AfterTime))
	}

	query += " ORDER BY timestamp DESC, rowid DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query goal events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]*events.GoalEvent, error) {
	var result []*events.GoalEvent

	for rows.Next() {
		var (
			event     events.GoalEvent
			timestamp string
			dataJSON  string
		)
		if err := rows.Scan(&event.ID, &timestamp, &event.Type, &event.Goal,
			&event.Severity, &event.Message, &dataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan goal event: %w", err)
		}

		ts, err := parseTime(timestamp)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp on event %s: %w", event.ID, err)
		}
		event.Timestamp = ts

		if dataJSON != "" && dataJSON != "null" {
			if err := json.Unmarshal([]byte(dataJSON), &event.Data); err != nil {
				return nil, fmt.Errorf("failed to unmarshal data for event %s: %w", event.ID, err)
			}
		}
		result = append(result, &event)
	}

	return result, rows.Err()
}

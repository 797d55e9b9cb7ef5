package events

import (
	"context"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Recorder writes events to the structured log and to an EventStore.
// A failed store write is logged and otherwise ignored: the event log is
// observability, never a reason to abort work on a goal.
type Recorder struct {
	store  EventStore
	logger *zap.Logger
	now    func() time.Time
}

// NewRecorder creates a Recorder. store may be nil, in which case events
// only go to the logger. now overrides event timestamps when non-nil.
func NewRecorder(store EventStore, logger *zap.Logger, now func() time.Time) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{store: store, logger: logger, now: now}
}

// Record stamps, logs and stores the event.
func (r *Recorder) Record(ctx context.Context, event *GoalEvent) {
	if event == nil {
		return
	}
	if r.now != nil {
		event.Timestamp = r.now()
	}

	fields := []zap.Field{
		zap.String("event_type", string(event.Type)),
		zap.String("event_id", event.ID),
	}
	if event.Goal != "" {
		fields = append(fields, zap.String("goal", event.Goal))
	}
	if len(event.Data) > 0 {
		fields = append(fields, zap.Any("data", event.Data))
	}
	if ce := r.logger.Check(severityLevel(event.Severity), event.Message); ce != nil {
		ce.Write(fields...)
	}

	if r.store == nil {
		return
	}
	if err := r.store.StoreEvent(ctx, event); err != nil {
		r.logger.Warn("failed to store goal event",
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}

// Emit builds a free-form event and records it.
func (r *Recorder) Emit(ctx context.Context, eventType EventType, goal string, severity EventSeverity, message string, data map[string]interface{}) {
	r.Record(ctx, NewGoalEvent(eventType, goal, severity, message, data))
}

func severityLevel(s EventSeverity) zapcore.Level {
	switch s {
	case SeverityWarning:
		return zapcore.WarnLevel
	case SeverityError, SeverityCritical:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

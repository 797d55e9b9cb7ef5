package executor

import (
	"context"
	"fmt"

	"github.com/R21Digital/Project-MorningStar-sub013/internal/events"
	"go.uber.org/zap"
)

const cleanupBatchSize = 1000

// cleanupEvents prunes the event log once per cleanup interval. The first
// pass runs on the first iteration.
func (e *Executor) cleanupEvents(ctx context.Context, st *loopState) {
	if e.retention == nil || !e.retention.CleanupEnabled || e.store == nil {
		return
	}
	now := e.clock.Now()
	if !st.lastCleanup.IsZero() && now.Sub(st.lastCleanup) < e.retention.CleanupInterval {
		return
	}
	st.lastCleanup = now

	if err := e.runEventCleanup(ctx); err != nil {
		e.logger.Warn("event cleanup failed", zap.Error(err))
	}
}

// runEventCleanup executes one cycle: age-based pruning first, then the
// global cap.
func (e *Executor) runEventCleanup(ctx context.Context) error {
	start := e.clock.Now()
	regular, critical := e.retention.Cutoffs(start)

	byAge, err := e.store.CleanupEventsByAge(ctx, regular, critical, cleanupBatchSize)
	if err != nil {
		return fmt.Errorf("time-based cleanup failed: %w", err)
	}
	byLimit, err := e.store.CleanupEventsByGlobalLimit(ctx, e.retention.GlobalLimitEvents, cleanupBatchSize)
	if err != nil {
		return fmt.Errorf("global limit cleanup failed: %w", err)
	}

	total := byAge + byLimit
	if total == 0 {
		return nil
	}
	elapsed := e.clock.Now().Sub(start)
	e.logger.Info("event cleanup",
		zap.Int("deleted", total),
		zap.Int("time_based", byAge),
		zap.Int("global_limit", byLimit),
		zap.Duration("elapsed", elapsed))
	e.recorder.Emit(ctx, events.EventTypeEventCleanup, "", events.SeverityInfo,
		fmt.Sprintf("deleted %d events (time_based=%d, global_limit=%d)", total, byAge, byLimit),
		map[string]interface{}{
			"total_deleted":        total,
			"time_based_deleted":   byAge,
			"global_limit_deleted": byLimit,
			"processing_time_ms":   elapsed.Milliseconds(),
		})
	return nil
}

package services

import (
	"context"
	"log/slog"

	applog "payplan/internal/log"
)

// Publisher announces schedule changes. *amqp.Client implements it.
type Publisher interface {
	PublishScheduleRecomputed(ctx context.Context, reason string, instrumentIDs []string, entryCount int) error
}

// publish never fails the caller: the store is the source of truth and
// consumers only drop derived state.
func publish(ctx context.Context, p Publisher, reason string, instrumentIDs []string, entryCount int) {
	applog.NewStructuredLogger(applog.FromContext(ctx)).
		LogScheduleChange(ctx, applog.OpUpdate, reason, instrumentIDs, entryCount)

	if p == nil {
		slog.DebugContext(ctx, "No publisher configured, skipping schedule event", "reason", reason)
		return
	}
	if err := p.PublishScheduleRecomputed(ctx, reason, instrumentIDs, entryCount); err != nil {
		slog.ErrorContext(ctx, "Failed to publish schedule event",
			"reason", reason,
			"error", err)
	}
}

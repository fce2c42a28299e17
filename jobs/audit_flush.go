package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/mintelli/mintelli/internal/audit"
	"github.com/mintelli/mintelli/internal/observability"
)

// NewAuditFlushHandler returns the handler for TaskAuditFlush. It drains the
// trail's in-memory buffer and publishes the remaining pending count.
func NewAuditFlushHandler(trail *audit.Trail, metrics *observability.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		pending := trail.PendingCount()
		if err := trail.Flush(ctx); err != nil {
			logger.Error("audit flush failed", slog.Int("pending", pending), slog.Any("error", err))
			return err
		}
		if metrics != nil {
			metrics.SetAuditPending(trail.PendingCount())
		}
		if pending > 0 {
			logger.Info("audit trail flushed", slog.Int("entries", pending))
		}
		return nil
	}
}

package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/mintelli/mintelli/internal/privacy"
)

// NewPermissionCleanupHandler returns the handler for TaskPermissionCleanup.
// Expired grants are demoted to no access and the demotion is audited.
func NewPermissionCleanupHandler(service *privacy.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		demoted, err := service.CleanupExpired(ctx)
		if err != nil {
			logger.Error("permission cleanup failed", slog.Any("error", err))
			return err
		}
		if demoted > 0 {
			logger.Info("expired permissions demoted", slog.Int("count", demoted))
		}
		return nil
	}
}

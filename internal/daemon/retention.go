package daemon

import (
	"context"
	"log/slog"
	"time"
)

// AuditStore purges aged audit events.
type AuditStore interface {
	DeleteAuditEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditRetentionTask periodically removes audit events older than the
// retention window.
func AuditRetentionTask(store AuditStore, logger *slog.Logger, retention, interval time.Duration) DaemonFunc {
	return func(ctx context.Context, name string) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				cutoff := time.Now().UTC().Add(-retention)
				removed, err := store.DeleteAuditEventsBefore(ctx, cutoff)
				if err != nil {
					logger.Error("Failed to purge audit events", "daemon", name, "error", err)
					continue
				}
				if removed > 0 {
					logger.Info("Purged aged audit events", "daemon", name, "removed", removed)
				}
			}
		}
	}
}

// Package worker runs background tasks alongside the HTTP server.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/secureshare/portal/internal/service"
)

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// Sweeper removes stale records and reports how many it dropped.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// StartSweeper runs sweeper every interval until ctx is done. The returned
// channel closes once the loop has exited.
func StartSweeper(ctx context.Context, name string, sweeper Sweeper, interval time.Duration, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	if sweeper == nil || interval <= 0 {
		close(done)
		return done
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := sweeper.Sweep(ctx)
				if err != nil {
					logger.Warn("sweep failed", zap.String("sweeper", name), zap.Error(err))
					continue
				}
				if removed > 0 {
					logger.Debug("sweep", zap.String("sweeper", name), zap.Int("removed", removed))
				}
			}
		}
	}()
	return done
}

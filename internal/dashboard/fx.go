package dashboard

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/crashchain/crashchain/internal/dashboard/domain"
	"github.com/crashchain/crashchain/internal/dashboard/service"
)

var Module = fx.Module("dashboard.service",
	fx.Provide(service.New),
	fx.Invoke(warmUp),
)

// warmUp builds the first snapshot in the background so the dashboard has
// data before the first request. Backend outages at start are tolerated;
// the next request or publish retries.
func warmUp(lc fx.Lifecycle, svc domain.Service, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
				defer cancel()
				if _, err := svc.Refresh(ctx); err != nil {
					log.Named("dashboard.service").Warn("initial refresh failed", zap.Error(err))
				}
			}()
			return nil
		},
	})
}

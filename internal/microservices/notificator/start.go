package notificator

import (
	"context"

	"kitchen-sync/internal/changefeed"
	"kitchen-sync/internal/common/config"
	"kitchen-sync/internal/common/logger"
	"kitchen-sync/internal/microservices/notificator/service"
)

func Start(ctx context.Context, cfg config.MQ) error {
	lg := logger.New("notification-subscriber")
	return service.NewNotificatorService(service.DialQueue(cfg), nil, changefeed.DefaultBackoff, lg).Run(ctx)
}

package app

import (
	"context"
	"errors"

	"kitchen-sync/internal/common/config"
	"kitchen-sync/internal/common/logger"
	"kitchen-sync/internal/microservices/notificator"
)

func RunNotifier(ctx context.Context, cfg config.App) error {
	if !cfg.Rabbit.Enabled() {
		return errors.New("notification-subscriber needs a rabbitmq section")
	}
	logger.New("notification-subscriber").Info("service_started", map[string]any{"host": cfg.Rabbit.Host})
	return notificator.Start(ctx, cfg.Rabbit)
}

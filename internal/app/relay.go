package app

import (
	"context"
	"errors"

	"kitchen-sync/internal/changefeed"
	"kitchen-sync/internal/common/config"
	"kitchen-sync/internal/common/logger"
)

// RunRelay republishes Postgres change notifications onto the RabbitMQ fanout
// that sync-service nodes with feed.source rabbitmq consume.
func RunRelay(ctx context.Context, cfg config.App) error {
	lg := logger.New("feed-relay")
	if cfg.Store.Driver != config.DriverPostgres {
		return errors.New("feed-relay needs store.driver postgres")
	}

	if !cfg.Rabbit.Enabled() {
		return errors.New("feed-relay needs a rabbitmq section")
	}

	src := changefeed.NewPGListener(cfg.Database.DSN(), cfg.Feed.Channel)
	dial := changefeed.DialAMQPPublisher(cfg.Rabbit, cfg.Feed.Exchange)

	lg.Info("service_started", map[string]any{"source": src.Name(), "exchange": cfg.Feed.Exchange})
	return changefeed.NewRelay(src, dial, changefeed.DefaultBackoff, lg).Run(ctx)
}

// Package app wires configuration into running services.
package app

import (
	"context"
	"fmt"
	"os"

	"kitchen-sync/internal/changefeed"
	"kitchen-sync/internal/common/config"
	"kitchen-sync/internal/common/db"
	"kitchen-sync/internal/common/logger"
	"kitchen-sync/internal/repository"
)

// Runtime is the order store and the change feed that reports its commits.
type Runtime struct {
	Store repository.OrderStore
	Feed  changefeed.Source

	closers []func()
}

// Open connects the store named by cfg.Store and the feed named by cfg.Feed.
func Open(ctx context.Context, cfg config.App, lg *logger.Logger) (*Runtime, error) {
	rt := &Runtime{}

	switch cfg.Store.Driver {
	case config.DriverPostgres:
		conn, err := db.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, conn.Close)
		store := repository.NewOrdersPG(conn.Pool, cfg.Feed.Channel)
		if err := store.EnsureSchema(ctx); err != nil {
			rt.Close()
			return nil, err
		}
		rt.Store = store
		lg.Info("db_connected", map[string]any{"host": cfg.Database.Host, "database": cfg.Database.Name})

	case config.DriverSQLite:
		local := changefeed.NewLocal()
		store, err := repository.OpenSQLite(cfg.Store.SQLitePath, local)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, local.Close, func() { _ = store.Close() })
		rt.Store, rt.Feed = store, local
		lg.Info("db_connected", map[string]any{"sqlite_path": cfg.Store.SQLitePath})

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	switch cfg.Feed.Source {
	case config.SourcePostgres:
		rt.Feed = changefeed.NewPGListener(cfg.Database.DSN(), cfg.Feed.Channel)
	case config.SourceRabbitMQ:
		rt.Feed = changefeed.NewAMQPSource(cfg.Rabbit, cfg.Feed.Exchange, consumerName("sync"))
	}
	return rt, nil
}

// Close releases everything Open acquired, newest first.
func (rt *Runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

func consumerName(role string) string {
	host, _ := os.Hostname()
	return fmt.Sprintf("kitchen-sync-%s-%s-%d", role, host, os.Getpid())
}

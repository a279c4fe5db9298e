package app

import (
	"context"
	"net/http"
	"strconv"

	"golang.org/x/sync/errgroup"

	"kitchen-sync/internal/board"
	"kitchen-sync/internal/broadcast"
	"kitchen-sync/internal/changefeed"
	"kitchen-sync/internal/common/config"
	"kitchen-sync/internal/common/httpx"
	"kitchen-sync/internal/common/logger"
	"kitchen-sync/internal/microservices/kitchen"
	"kitchen-sync/internal/microservices/order"
	"kitchen-sync/internal/microservices/tracker"
	trackerhandler "kitchen-sync/internal/microservices/tracker/handler"
	"kitchen-sync/internal/ready"
	"kitchen-sync/internal/tracking"
)

// RunSyncService serves the kitchen, tracking and order APIs and keeps every
// attached viewer in step with the change feed.
func RunSyncService(ctx context.Context, cfg config.App) error {
	lg := logger.New("sync-service")

	rt, err := Open(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer rt.Close()

	var sink trackerhandler.AlertSink
	if cfg.Rabbit.Enabled() {
		pub := ready.NewAlertPublisher(ready.DialAlertChannel(cfg.Rabbit))
		defer pub.Close()
		sink = pub
	}

	hub := broadcast.New(cfg.Sync.DebounceWindow, logger.New("broadcaster"))

	mux := http.NewServeMux()
	order.Mount(mux, rt.Store)
	kitchen.Mount(mux, rt.Store, hub, BoardOptions(cfg.Sync), "kitchen-terminal")
	tracker.Mount(mux, rt.Store, hub, TrackingOptions(cfg.Sync), sink)
	mux.HandleFunc("GET /healthz", healthz(hub, rt.Feed))

	addr := ":" + strconv.Itoa(cfg.HTTP.Port)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx, rt.Feed, changefeed.DefaultBackoff) })
	g.Go(func() error { return httpx.New(addr, mux).Run(gctx) })

	lg.Info("service_started", map[string]any{
		"port":     cfg.HTTP.Port,
		"store":    cfg.Store.Driver,
		"feed":     rt.Feed.Name(),
		"alerts":   sink != nil,
		"debounce": cfg.Sync.DebounceWindow.String(),
	})
	err = g.Wait()
	lg.Info("graceful_shutdown", nil)
	return err
}

func BoardOptions(s config.Sync) board.Options {
	return board.Options{FetchTimeout: s.FetchTimeout, Tick: s.TickInterval}
}

func TrackingOptions(s config.Sync) tracking.Options {
	return tracking.Options{Grace: s.GraceWindow, Poll: s.PollInterval, FetchTimeout: s.FetchTimeout}
}

func healthz(hub *broadcast.Broadcaster, feed changefeed.Source) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"feed":    feed.Name(),
			"viewers": hub.Len(),
		})
	}
}

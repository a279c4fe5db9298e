package app

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"kitchen-sync/internal/board"
	"kitchen-sync/internal/broadcast"
	"kitchen-sync/internal/changefeed"
	"kitchen-sync/internal/common/config"
	"kitchen-sync/internal/common/logger"
)

const clearScreen = "\033[H\033[2J"

// RunBoard attaches one console kitchen display and redraws it on out after
// every update.
func RunBoard(ctx context.Context, cfg config.App, out io.Writer) error {
	lg := logger.New("board")

	rt, err := Open(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer rt.Close()

	hub := broadcast.New(cfg.Sync.DebounceWindow, lg)
	sub := hub.Attach(broadcast.ActiveScope())
	defer sub.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx, rt.Feed, changefeed.DefaultBackoff) })
	g.Go(func() error {
		bv := board.New(rt.Store, BoardOptions(cfg.Sync), lg)
		return bv.Run(gctx, sub.C(), func(v board.View) {
			_, _ = fmt.Fprint(out, clearScreen, board.Render(v))
		})
	})
	return g.Wait()
}

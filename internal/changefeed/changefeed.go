// Package changefeed turns store-side mutation notices into content-free
// Change signals. Sources are at-least-once and may drop or reorder messages
// during an outage; consumers always refetch from the store.
package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"kitchen-sync/internal/common/logger"
)

// Change names the order that changed. All means "assume everything changed".
type Change struct {
	OrderID string `json:"order_id,omitempty"`
	All     bool   `json:"all,omitempty"`
}

func (c Change) Affects(orderID string) bool { return c.All || c.OrderID == orderID }

// Source is one transport subscription.
type Source interface {
	Name() string
	// Listen blocks until the subscription fails or ctx ends (nil error).
	// It calls ready once the subscription is live, before delivering.
	Listen(ctx context.Context, ready func(), out chan<- Change) error
}

var errSourceClosed = errors.New("change source closed")

type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

var DefaultBackoff = Backoff{Initial: time.Second, Max: 30 * time.Second}

// OrDefault returns DefaultBackoff when b is unset.
func (b Backoff) OrDefault() Backoff {
	if b.Initial <= 0 {
		return DefaultBackoff
	}
	if b.Max < b.Initial {
		b.Max = b.Initial
	}
	return b
}

// Next doubles d, capped at Max.
func (b Backoff) Next(d time.Duration) time.Duration {
	d *= 2
	if d > b.Max {
		d = b.Max
	}
	return d
}

// Wait sleeps for d and reports false if ctx ended first.
func Wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Follow keeps src subscribed until ctx ends. Every time the subscription is
// re-established after a failure, onReconnect runs so consumers can force a
// refetch covering whatever the outage swallowed.
func Follow(ctx context.Context, src Source, b Backoff, out chan<- Change, onReconnect func(), lg *logger.Logger) {
	b = b.OrDefault()
	lg = lg.With(map[string]any{"source": src.Name()})

	delay := b.Initial
	failed := false
	for {
		live := false
		err := src.Listen(ctx, func() {
			live = true
			delay = b.Initial
			if failed {
				lg.Info("feed_reconnected", nil)
				if onReconnect != nil {
					onReconnect()
				}
			} else {
				lg.Info("feed_connected", nil)
			}
		}, out)

		if ctx.Err() != nil {
			lg.Info("graceful_shutdown", nil)
			return
		}
		if err == nil {
			err = errSourceClosed
		}
		failed = true
		lg.Error("feed_disconnected", err, map[string]any{"was_live": live, "next_attempt": delay.String()})

		if !Wait(ctx, delay) {
			return
		}
		delay = b.Next(delay)
	}
}

func encode(c Change) ([]byte, error) { return json.Marshal(c) }

// decode maps an unreadable message to All: a signal is never lost to a bad body.
func decode(b []byte) Change {
	var c Change
	if err := json.Unmarshal(b, &c); err != nil || (c.OrderID == "" && !c.All) {
		return Change{All: true}
	}
	return c
}

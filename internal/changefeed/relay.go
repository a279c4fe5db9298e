package changefeed

import (
	"context"
	"time"

	"kitchen-sync/internal/common/logger"
)

type Publisher interface {
	PublishChange(ctx context.Context, c Change) error
}

// PublisherConn is one publishing connection. It is discarded after the first
// failed publish.
type PublisherConn interface {
	Publisher
	Close()
}

// DialPublisher opens a fresh publishing connection.
type DialPublisher func(ctx context.Context) (PublisherConn, error)

// Relay forwards one source onto a publisher, e.g. Postgres NOTIFY onto a
// RabbitMQ fanout so several sync-service nodes share one listener. A failed
// publish drops the connection and the relay redials with backoff. After
// either side comes back it publishes an All change, letting downstream
// viewers heal too.
type Relay struct {
	src     Source
	dial    DialPublisher
	backoff Backoff
	timeout time.Duration
	log     *logger.Logger
}

func NewRelay(src Source, dial DialPublisher, backoff Backoff, lg *logger.Logger) *Relay {
	return &Relay{src: src, dial: dial, backoff: backoff.OrDefault(), timeout: 5 * time.Second, log: lg}
}

func (r *Relay) Run(ctx context.Context) error {
	changes := make(chan Change, 64)
	go Follow(ctx, r.src, r.backoff, changes, func() {
		select {
		case changes <- Change{All: true}:
		case <-ctx.Done():
		}
	}, r.log)

	var pub PublisherConn
	defer func() {
		if pub != nil {
			pub.Close()
		}
	}()

	healing := false
	for ctx.Err() == nil {
		if pub == nil {
			p, ok := r.connect(ctx, healing)
			if !ok {
				return nil
			}
			pub = p
		}
		if healing {
			// whatever was dropped while the broker was away
			if err := r.publish(ctx, pub, Change{All: true}); err != nil {
				pub.Close()
				pub = nil
				continue
			}
			healing = false
		}

		select {
		case <-ctx.Done():
			return nil
		case c := <-changes:
			if err := r.publish(ctx, pub, c); err != nil {
				pub.Close()
				pub = nil
				healing = true
			}
		}
	}
	return nil
}

func (r *Relay) connect(ctx context.Context, reconnect bool) (PublisherConn, bool) {
	delay := r.backoff.Initial
	for {
		p, err := r.dial(ctx)
		if err == nil {
			if reconnect {
				r.log.Info("publisher_reconnected", nil)
			} else {
				r.log.Info("publisher_connected", nil)
			}
			return p, true
		}
		r.log.Error("publisher_dial_failed", err, map[string]any{"next_attempt": delay.String()})
		if !Wait(ctx, delay) {
			return nil, false
		}
		delay = r.backoff.Next(delay)
	}
}

func (r *Relay) publish(ctx context.Context, pub Publisher, c Change) error {
	pctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := pub.PublishChange(pctx, c); err != nil {
		r.log.Error("rabbitmq_publish_failed", err, map[string]any{"order_id": c.OrderID, "all": c.All})
		return err
	}
	r.log.Debug("change_relayed", map[string]any{"order_id": c.OrderID, "all": c.All})
	return nil
}

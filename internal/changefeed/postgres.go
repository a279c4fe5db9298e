package changefeed

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// PGListener listens on a Postgres NOTIFY channel. The store sends the order
// id as payload inside the committing transaction.
type PGListener struct {
	dsn     string
	channel string
}

func NewPGListener(dsn, channel string) *PGListener {
	return &PGListener{dsn: dsn, channel: channel}
}

func (l *PGListener) Name() string { return "postgres:" + l.channel }

func (l *PGListener) Listen(ctx context.Context, ready func(), out chan<- Change) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", l.channel, err)
	}
	ready()

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		c := Change{OrderID: n.Payload}
		if c.OrderID == "" {
			c.All = true
		}
		select {
		case out <- c:
		case <-ctx.Done():
			return nil
		}
	}
}

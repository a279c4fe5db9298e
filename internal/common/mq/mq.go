package mq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"kitchen-sync/internal/common/config"
)

const (
	// NotificationsExchange carries customer-facing alerts such as "order ready".
	NotificationsExchange = "notifications_fanout"
	NotificationsQueue    = "notifications.q"
)

type Client struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Dial connects and puts the channel in publisher-confirm mode.
func Dial(cfg config.MQ) (*Client, error) {
	conn, err := amqp.Dial(cfg.URL())
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Client{conn: conn, ch: ch}, nil
}

// NotifyClose fires once when the underlying connection drops.
func (c *Client) NotifyClose() <-chan *amqp.Error {
	return c.conn.NotifyClose(make(chan *amqp.Error, 1))
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Client) DeclareFanout(name string) error {
	if err := c.ch.ExchangeDeclare(name, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", name, err)
	}
	return nil
}

// DeclareNotifications declares the alert exchange and its durable queue.
func (c *Client) DeclareNotifications() error {
	if err := c.DeclareFanout(NotificationsExchange); err != nil {
		return err
	}
	if _, err := c.ch.QueueDeclare(NotificationsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare %s: %w", NotificationsQueue, err)
	}
	if err := c.ch.QueueBind(NotificationsQueue, "", NotificationsExchange, false, nil); err != nil {
		return fmt.Errorf("queue bind %s: %w", NotificationsQueue, err)
	}
	return nil
}

// ConsumeFanout binds a private, auto-deleted queue to exchange and consumes it
// with auto-ack. Every consumer gets its own copy of each message.
func (c *Client) ConsumeFanout(exchange, consumer string) (<-chan amqp.Delivery, error) {
	if err := c.DeclareFanout(exchange); err != nil {
		return nil, err
	}
	q, err := c.ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, fmt.Errorf("declare private queue: %w", err)
	}
	if err := c.ch.QueueBind(q.Name, "", exchange, false, nil); err != nil {
		return nil, fmt.Errorf("bind %s: %w", q.Name, err)
	}
	return c.ch.Consume(q.Name, consumer, true, true, false, false, nil)
}

func (c *Client) Consume(queue, consumer string, prefetch int) (<-chan amqp.Delivery, error) {
	if err := c.ch.Qos(prefetch, 0, false); err != nil {
		return nil, err
	}
	return c.ch.Consume(queue, consumer, false, false, false, false, nil)
}

// Publish sends a JSON message and waits for the broker's ack of that
// particular delivery tag.
func (c *Client) Publish(ctx context.Context, exchange, key, correlationID string, body []byte, headers amqp.Table) error {
	dc, err := c.ch.PublishWithDeferredConfirmWithContext(ctx, exchange, key, false, false, amqp.Publishing{
		DeliveryMode:  amqp.Persistent,
		ContentType:   "application/json",
		MessageId:     uuid.NewString(),
		CorrelationId: correlationID,
		Timestamp:     time.Now().UTC(),
		Headers:       headers,
		Body:          body,
	})
	if err != nil {
		return err
	}
	if dc == nil {
		return errors.New("channel is not in confirm mode")
	}
	return awaitConfirm(ctx, dc)
}

type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

var ErrNacked = errors.New("publish NACK from broker")

func awaitConfirm(ctx context.Context, c confirmation) error {
	ack, err := c.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !ack {
		return ErrNacked
	}
	return nil
}

package ready

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"kitchen-sync/internal/common/config"
	"kitchen-sync/internal/common/mq"
)

// Alert is the system notification as it travels over RabbitMQ. Each tracker
// stream that sees the ready edge publishes its own, tagged with its viewer,
// so a customer with two open pages produces two alerts.
type Alert struct {
	OrderID   string    `json:"order_id"`
	ViewerID  string    `json:"viewer_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

func DecodeAlert(b []byte) (Alert, error) {
	var a Alert
	if err := json.Unmarshal(b, &a); err != nil {
		return Alert{}, fmt.Errorf("decode alert: %w", err)
	}
	if a.OrderID == "" {
		return Alert{}, fmt.Errorf("decode alert: missing order_id")
	}
	return a, nil
}

// AlertChannel is the slice of mq.Client the alert publisher needs.
type AlertChannel interface {
	DeclareNotifications() error
	Publish(ctx context.Context, exchange, key, correlationID string, body []byte, headers amqp.Table) error
	Close()
}

// DialAlertChannel opens a new broker connection on each call.
func DialAlertChannel(cfg config.MQ) func() (AlertChannel, error) {
	return func() (AlertChannel, error) {
		c, err := mq.Dial(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// AlertPublisher puts alerts on the notifications fanout exchange. The
// connection is opened lazily and replaced after a failed publish.
type AlertPublisher struct {
	dial    func() (AlertChannel, error)
	timeout time.Duration

	mu     sync.Mutex
	client AlertChannel
}

func NewAlertPublisher(dial func() (AlertChannel, error)) *AlertPublisher {
	return &AlertPublisher{dial: dial, timeout: 5 * time.Second}
}

func (p *AlertPublisher) Publish(ctx context.Context, a Alert) error {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	body, err := json.Marshal(a)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	headers := amqp.Table{"x-source": "tracker", "x-viewer": a.ViewerID}
	for attempt := 0; ; attempt++ {
		c, err := p.conn()
		if err != nil {
			return err
		}
		err = c.Publish(ctx, mq.NotificationsExchange, "", a.OrderID, body, headers)
		if err == nil {
			return nil
		}
		p.drop(c)
		// one redial per alert; a broker that is still down fails fast
		if attempt > 0 || ctx.Err() != nil {
			return err
		}
	}
}

func (p *AlertPublisher) conn() (AlertChannel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	c, err := p.dial()
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	if err := c.DeclareNotifications(); err != nil {
		c.Close()
		return nil, err
	}
	p.client = c
	return c, nil
}

func (p *AlertPublisher) drop(c AlertChannel) {
	p.mu.Lock()
	if p.client == c {
		p.client = nil
	}
	p.mu.Unlock()
	c.Close()
}

func (p *AlertPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
}

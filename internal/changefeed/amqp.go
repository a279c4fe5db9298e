package changefeed

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"kitchen-sync/internal/common/config"
	"kitchen-sync/internal/common/mq"
)

// AMQPSource consumes changes relayed onto a RabbitMQ fanout exchange. Each
// Listen call dials fresh and binds its own private queue.
type AMQPSource struct {
	cfg      config.MQ
	exchange string
	consumer string
}

func NewAMQPSource(cfg config.MQ, exchange, consumer string) *AMQPSource {
	return &AMQPSource{cfg: cfg, exchange: exchange, consumer: consumer}
}

func (s *AMQPSource) Name() string { return "rabbitmq:" + s.exchange }

func (s *AMQPSource) Listen(ctx context.Context, ready func(), out chan<- Change) error {
	client, err := mq.Dial(s.cfg)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer client.Close()

	closed := client.NotifyClose()
	msgs, err := client.ConsumeFanout(s.exchange, s.consumer)
	if err != nil {
		return fmt.Errorf("consume %s: %w", s.exchange, err)
	}
	ready()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-closed:
			if e == nil {
				return errSourceClosed
			}
			return fmt.Errorf("connection closed: %d %s", e.Code, e.Reason)
		case d, ok := <-msgs:
			if !ok {
				return errSourceClosed
			}
			select {
			case out <- decode(d.Body):
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// AMQPPublisher writes changes onto the fanout exchange AMQPSource reads. It
// owns its client.
type AMQPPublisher struct {
	client   *mq.Client
	exchange string
}

func NewAMQPPublisher(client *mq.Client, exchange string) (*AMQPPublisher, error) {
	if err := client.DeclareFanout(exchange); err != nil {
		return nil, err
	}
	return &AMQPPublisher{client: client, exchange: exchange}, nil
}

// DialAMQPPublisher returns a DialPublisher opening a new broker connection on
// each call.
func DialAMQPPublisher(cfg config.MQ, exchange string) DialPublisher {
	return func(context.Context) (PublisherConn, error) {
		client, err := mq.Dial(cfg)
		if err != nil {
			return nil, fmt.Errorf("dial: %w", err)
		}
		p, err := NewAMQPPublisher(client, exchange)
		if err != nil {
			client.Close()
			return nil, err
		}
		return p, nil
	}
}

func (p *AMQPPublisher) PublishChange(ctx context.Context, c Change) error {
	body, err := encode(c)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.exchange, "", c.OrderID, body, amqp.Table{"x-source": "feed-relay"})
}

func (p *AMQPPublisher) Close() { p.client.Close() }

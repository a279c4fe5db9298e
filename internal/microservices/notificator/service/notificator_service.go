package service

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"kitchen-sync/internal/changefeed"
	"kitchen-sync/internal/common/config"
	"kitchen-sync/internal/common/logger"
	"kitchen-sync/internal/common/mq"
	"kitchen-sync/internal/ready"
)

var errDeliveriesClosed = errors.New("notification deliveries closed")

// Subscribe opens one consumer on the notifications queue. The returned func
// releases it.
type Subscribe func(ctx context.Context) (<-chan amqp.Delivery, func(), error)

// DialQueue subscribes over a fresh broker connection each call.
func DialQueue(cfg config.MQ) Subscribe {
	return func(context.Context) (<-chan amqp.Delivery, func(), error) {
		client, err := mq.Dial(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("dial: %w", err)
		}
		if err := client.DeclareNotifications(); err != nil {
			client.Close()
			return nil, nil, err
		}
		msgs, err := client.Consume(mq.NotificationsQueue, "notificator", 10)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return msgs, client.Close, nil
	}
}

// NotificatorService drains ready alerts published by trackers and hands them
// to the host's own notification surface. It resubscribes with backoff
// whenever the broker goes away.
type NotificatorService struct {
	subscribe Subscribe
	surface   ready.Surface
	backoff   changefeed.Backoff
	log       *logger.Logger
}

func NewNotificatorService(subscribe Subscribe, surface ready.Surface, backoff changefeed.Backoff, lg *logger.Logger) *NotificatorService {
	if surface == nil {
		surface = ready.Funcs{}
	}
	return &NotificatorService{subscribe: subscribe, surface: surface, backoff: backoff.OrDefault(), log: lg}
}

func (ns *NotificatorService) Run(ctx context.Context) error {
	delay := ns.backoff.Initial
	for {
		live, err := ns.consume(ctx)
		if ctx.Err() != nil {
			ns.log.Info("graceful_shutdown", nil)
			return nil
		}
		if live {
			delay = ns.backoff.Initial
		}
		ns.log.Error("notifications_disconnected", err, map[string]any{"was_live": live, "next_attempt": delay.String()})
		if !changefeed.Wait(ctx, delay) {
			return nil
		}
		delay = ns.backoff.Next(delay)
	}
}

// consume handles deliveries until the subscription ends. live reports
// whether it was established at all.
func (ns *NotificatorService) consume(ctx context.Context) (live bool, err error) {
	msgs, release, err := ns.subscribe(ctx)
	if err != nil {
		return false, err
	}
	defer release()
	ns.log.Info("notifications_consuming", map[string]any{"queue": mq.NotificationsQueue})

	for {
		select {
		case <-ctx.Done():
			return true, nil
		case d, ok := <-msgs:
			if !ok {
				return true, errDeliveriesClosed
			}
			ns.handle(d)
		}
	}
}

func (ns *NotificatorService) handle(d amqp.Delivery) {
	a, err := ready.DecodeAlert(d.Body)
	if err != nil {
		ns.log.Warn("notification_rejected", err, map[string]any{"message_id": d.MessageId})
		_ = d.Nack(false, false)
		return
	}
	ns.log.Info("notification_received", map[string]any{
		"order_id":  a.OrderID,
		"viewer_id": a.ViewerID,
		"title":     a.Title,
		"body":      a.Body,
	})
	if err := ns.surface.ShowSystemNotification(a.Title, a.Body); err != nil {
		ns.log.Warn("notify_alert_failed", err, map[string]any{"order_id": a.OrderID})
	}
	_ = d.Ack(false)
}

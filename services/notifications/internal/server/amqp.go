package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"depohub/pkg/domain"
	"depohub/services/notifications/internal/app"
)

// Consumer feeds envelopes from a RabbitMQ queue into the handler chain.
// Data problems are acked and dropped: redelivering them cannot help.
// Infrastructure errors are nacked with requeue.
type Consumer struct {
	url   string
	queue string
	app   *app.App
	log   *slog.Logger
}

func NewConsumer(url, queue string, a *app.App, log *slog.Logger) *Consumer {
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{url: url, queue: queue, app: a, log: log}
}

// Run consumes until ctx is canceled, redialing with backoff when the broker
// connection drops.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		err := c.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Error("amqp consume loop ended, reconnecting",
			"queue", c.queue, "backoff", backoff.String(), "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (c *Consumer) consume(ctx context.Context) error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return err
	}
	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}
	c.log.Info("amqp consumer started", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return amqp.ErrClosed
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var env domain.NotificationEnvelope
	if err := json.Unmarshal(d.Body, &env); err != nil {
		c.log.Warn("dropping undecodable delivery", "err", err)
		_ = d.Ack(false)
		return
	}
	if err := c.app.Process(ctx, env); err != nil {
		if app.IsHandleError(err) {
			c.log.Warn("dropping unprocessable message", "message_id", env.MessageID, "err", err)
			_ = d.Ack(false)
			return
		}
		c.log.Error("processing failed, requeueing", "message_id", env.MessageID, "err", err)
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

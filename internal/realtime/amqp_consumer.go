package realtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// AMQPConsumer reads envelopes from a durable RabbitMQ queue.
type AMQPConsumer struct {
	url    string
	queue  string
	logger *logrus.Logger
}

func NewAMQPConsumer(url, queue string, logger *logrus.Logger) *AMQPConsumer {
	return &AMQPConsumer{url: url, queue: queue, logger: logger}
}

func (c *AMQPConsumer) Name() string { return "amqp" }

func (c *AMQPConsumer) Run(ctx context.Context, sink Sink) {
	wait := newBackoff(time.Second, 30*time.Second)
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			d := wait.next()
			c.logger.WithError(err).WithField("retry_in", d.String()).Warn("AMQP consumer: failed to dial broker")
			if !sleep(ctx, d) {
				return
			}
			continue
		}
		wait.reset()

		err = c.consumeLoop(ctx, conn, sink)
		_ = conn.Close()
		if ctx.Err() != nil {
			c.logger.Info("AMQP consumer stopped")
			return
		}
		c.logger.WithError(err).Warn("AMQP consumer: consume loop ended, reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return
		}
	}
}

func (c *AMQPConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection, sink Sink) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.logger.WithError(err).Warn("AMQP consumer: set QoS failed")
	}

	if _, err := ch.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	c.logger.WithField("queue", c.queue).Info("AMQP consumer listening")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.handleDelivery(ctx, sink, d)
		}
	}
}

// handleDelivery acks a delivery once the sink accepted it and requeues it
// otherwise.
func (c *AMQPConsumer) handleDelivery(ctx context.Context, sink Sink, d amqp.Delivery) {
	if err := publishTo(ctx, sink, c.Name(), d.MessageId, d.Body); err != nil {
		c.logger.WithError(err).WithField("redelivered", d.Redelivered).Warn("AMQP consumer: publish failed, requeueing")
		if nackErr := d.Nack(false, true); nackErr != nil {
			c.logger.WithError(nackErr).Warn("AMQP consumer: nack failed")
		}
		return
	}
	if err := d.Ack(false); err != nil {
		c.logger.WithError(err).Warn("AMQP consumer: ack failed")
	}
}

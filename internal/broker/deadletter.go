package broker

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DeadLetterHandler is notified for every job that lands on the
// dead-letter queue
type DeadLetterHandler interface {
	HandleDeadLetter(ctx context.Context, body []byte) error
}

// DeadLetterConsumer drains the dead-letter queue into a handler. Messages
// are acked unconditionally after the handler sees them: the DLQ is a
// terminal sink, re-poisoning it on handler error would loop forever.
type DeadLetterConsumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	handler DeadLetterHandler
	logger  *slog.Logger
}

func NewDeadLetterConsumer(url string, handler DeadLetterHandler, logger *slog.Logger) (*DeadLetterConsumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %v", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %v", err)
	}

	return &DeadLetterConsumer{
		conn:    conn,
		channel: ch,
		handler: handler,
		logger:  logger,
	}, nil
}

// Listen consumes the dead-letter queue until the context is canceled
func (c *DeadLetterConsumer) Listen(ctx context.Context) error {
	if err := c.channel.ExchangeDeclare(DeadLetterExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dead-letter exchange: %v", err)
	}
	q, err := c.channel.QueueDeclare(DeadLetterQueue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare dead-letter queue: %v", err)
	}
	if err := c.channel.QueueBind(q.Name, "#", DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind dead-letter queue: %v", err)
	}

	msgs, err := c.channel.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register dead-letter consumer: %v", err)
	}

	c.logger.Info("Dead-letter monitor online", "queue", q.Name)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("dead-letter channel closed")
			}

			if err := c.handler.HandleDeadLetter(ctx, d.Body); err != nil {
				c.logger.Error("Dead-letter handler error", "error", err)
			}
			d.Ack(false)
		}
	}
}

// Close gracefully terminates RabbitMQ resources
func (c *DeadLetterConsumer) Close() {
	c.channel.Close()
	c.conn.Close()
}

package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"quadsync/internal/models"
	"quadsync/internal/store"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RecordHandler processes one dequeued ChangeRecord. A nil return acks the
// job; a fatal error dead-letters it; anything else requeues it.
type RecordHandler interface {
	Dispatch(ctx context.Context, rec models.ChangeRecord) error
}

// Consumer manages the delivery flow from the durable queue to the handler
type Consumer struct {
	conn          *amqp.Connection
	channel       *amqp.Channel
	handler       RecordHandler
	logger        *slog.Logger
	deliveryLimit int
}

// NewConsumer opens the consuming channel. deliveryLimit bounds redelivery:
// once a job has been nacked that many times the broker routes it to the
// dead-letter exchange instead of back onto the queue.
func NewConsumer(url string, deliveryLimit int, handler RecordHandler, logger *slog.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %v", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %v", err)
	}

	// QoS: prefetch 1 keeps the single-worker model honest, one job is
	// dispatched at a time
	if err := ch.Qos(1, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set QoS: %v", err)
	}

	return &Consumer{
		conn:          conn,
		channel:       ch,
		handler:       handler,
		logger:        logger,
		deliveryLimit: deliveryLimit,
	}, nil
}

// Listen declares the queue topology and runs the consumption loop until
// the context is canceled
func (c *Consumer) Listen(ctx context.Context) error {
	// Dead-letter side first: exhausted jobs must always have somewhere
	// to land
	if err := c.channel.ExchangeDeclare(DeadLetterExchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dead-letter exchange: %v", err)
	}
	dlq, err := c.channel.QueueDeclare(DeadLetterQueue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare dead-letter queue: %v", err)
	}
	if err := c.channel.QueueBind(dlq.Name, "#", DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind dead-letter queue: %v", err)
	}

	if err := c.channel.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare topic exchange: %v", err)
	}

	// Quorum queue survives broker restarts; the delivery limit is the
	// retry budget for a job
	args := amqp.Table{
		"x-queue-type":           "quorum",
		"x-delivery-limit":       int32(c.deliveryLimit),
		"x-dead-letter-exchange": DeadLetterExchange,
	}
	q, err := c.channel.QueueDeclare(QueueName, true, false, false, false, args)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %v", err)
	}
	if err := c.channel.QueueBind(q.Name, "change.#", Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %v", err)
	}

	msgs, err := c.channel.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %v", err)
	}

	c.logger.Info("Worker is online and waiting for change records",
		"queue", q.Name,
		"delivery_limit", c.deliveryLimit,
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			var rec models.ChangeRecord
			if err := json.Unmarshal(d.Body, &rec); err != nil {
				c.logger.Error("Failed to unmarshal change record, dead-lettering", "error", err)
				d.Nack(false, false)
				continue
			}

			err := c.handler.Dispatch(ctx, rec)
			if err != nil {
				if store.IsFatal(err) {
					// Redelivery cannot help; skip straight to the DLQ
					c.logger.Error("Fatal dispatch error, dead-lettering",
						"correlation_id", rec.CorrelationID, "error", err)
					d.Nack(false, false)
					continue
				}

				c.logger.Error("Dispatch incomplete, requeueing",
					"correlation_id", rec.CorrelationID, "error", err)
				time.Sleep(5 * time.Second) // Throttling retries
				d.Nack(false, true)
				continue
			}

			// Manual Ack: only after every target settled successfully
			if err := d.Ack(false); err != nil {
				c.logger.Error("Failed to Ack change record",
					"correlation_id", rec.CorrelationID, "error", err)
			}
		}
	}
}

// Close gracefully terminates RabbitMQ resources
func (c *Consumer) Close() {
	c.logger.Info("Shutting down replication consumer")
	c.channel.Close()
	c.conn.Close()
}

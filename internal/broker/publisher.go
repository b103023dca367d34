package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"quadsync/internal/models"
	"quadsync/pkg/metrics"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// Exchange carrying replication jobs
	Exchange = "replication.topic"
	// DeadLetterExchange receives jobs that exhausted their delivery limit
	// or failed fatally
	DeadLetterExchange = "replication.dlx"

	// QueueName is the worker's quorum queue
	QueueName = "replication.jobs"
	// DeadLetterQueue is where poison jobs land for inspection
	DeadLetterQueue = "replication.deadletter"
)

// ErrUnavailable is returned when the broker link is down and a change
// cannot be enqueued at all
var ErrUnavailable = errors.New("replication queue unavailable")

// Publisher handles the low-level publishing side of the durable queue,
// with Publisher Confirms enabled so an enqueue is only reported done once
// the broker has persisted it
type Publisher struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	logger     *slog.Logger
	connClosed chan *amqp.Error
	chanClosed chan *amqp.Error
	closeOnce  sync.Once
	healthy    atomic.Bool
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewPublisher initializes a connection and a channel, declares the topic
// exchange and enables Publisher Confirms
func NewPublisher(url string, l *slog.Logger) (*Publisher, error) {
	c, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %v", err)
	}

	ch, err := c.Channel()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %v", err)
	}

	if err := ch.ExchangeDeclare(
		Exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		ch.Close()
		c.Close()
		return nil, fmt.Errorf("failed to declare topic exchange: %v", err)
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		c.Close()
		return nil, fmt.Errorf("failed to activate Publisher Confirms: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Publisher{
		conn:       c,
		channel:    ch,
		logger:     l,
		connClosed: make(chan *amqp.Error, 1),
		chanClosed: make(chan *amqp.Error, 1),
		ctx:        ctx,
		cancel:     cancel,
	}

	p.healthy.Store(true)
	metrics.QueueHealthy.Set(1)

	p.conn.NotifyClose(p.connClosed)
	p.channel.NotifyClose(p.chanClosed)

	go func() {
		select {
		case err := <-p.connClosed:
			p.healthy.Store(false)
			metrics.QueueHealthy.Set(0)
			l.Warn("RabbitMQ connection closed", "error", err)
		case err := <-p.chanClosed:
			p.healthy.Store(false)
			metrics.QueueHealthy.Set(0)
			l.Warn("RabbitMQ channel closed", "error", err)
		case <-p.ctx.Done():
			return
		}
	}()
	l.Info("Connected to RabbitMQ, publisher confirms active", "url", url)
	return p, nil
}

// Publish appends one durable ChangeRecord and blocks until the broker
// confirms persistence (ACK/NACK)
func (p *Publisher) Publish(ctx context.Context, rec models.ChangeRecord) error {
	if !p.IsHealthy() {
		return ErrUnavailable
	}

	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to serialize change record: %v", err)
	}

	routingKey := fmt.Sprintf("change.%s.%s", rec.EntityKind, rec.Operation)
	l := p.logger.With(
		"correlation_id", rec.CorrelationID,
		"routing_key", routingKey,
	)

	deferred, err := p.channel.PublishWithDeferredConfirmWithContext(
		ctx,
		Exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			Headers: amqp.Table{
				"correlation_id": rec.CorrelationID,
			},
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		l.Error("failed to publish change record", "error", err)
		return fmt.Errorf("publish call failed: %v", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-deferred.Done():
		if !deferred.Acked() {
			return fmt.Errorf("RabbitMQ NACK received: change record not persisted")
		}
		return nil
	case <-time.After(10 * time.Second):
		return fmt.Errorf("publisher confirm timeout")
	}
}

// Close gracefully shuts down the RabbitMQ resources
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		p.logger.Info("Terminating RabbitMQ publisher")
		p.cancel()
		if p.channel != nil {
			p.channel.Close()
		}
		if p.conn != nil {
			p.conn.Close()
		}
	})
	return nil
}

// IsHealthy returns true if the connection and channel are active
func (p *Publisher) IsHealthy() bool {
	return p.healthy.Load()
}

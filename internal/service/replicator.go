package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"quadsync/internal/broker"
	"quadsync/internal/models"

	"github.com/google/uuid"
)

// BrokerClient defines the enqueue contract the facade needs
type BrokerClient interface {
	Publish(ctx context.Context, rec models.ChangeRecord) error
	IsHealthy() bool
}

// Recorder is the single entry point CRUD handlers call after committing a
// write to a store. Enqueueing is fire-and-forget from the caller's
// perspective: publish failures are logged, never propagated. The one
// exception is a broker link that is down outright, which surfaces as
// broker.ErrUnavailable so the caller can alert on the pending
// replication it just lost.
type Recorder struct {
	broker BrokerClient
	logger *slog.Logger

	inflight sync.WaitGroup
}

func NewRecorder(b BrokerClient, l *slog.Logger) *Recorder {
	return &Recorder{
		broker: b,
		logger: l,
	}
}

// RecordChange enqueues one durable replication job for the given change.
// The payload must be an Incident, User or Resource matching kind; a
// mismatch is a caller bug and is returned synchronously.
func (r *Recorder) RecordChange(ctx context.Context, source models.StoreID, op models.Operation, kind models.EntityKind, payload any) error {
	if !r.broker.IsHealthy() {
		return broker.ErrUnavailable
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("payload not serializable: %w", err)
	}

	rec := models.ChangeRecord{
		CorrelationID: uuid.NewString(),
		Source:        source,
		Operation:     op,
		EntityKind:    kind,
		Payload:       body,
		EnqueuedAt:    time.Now().UTC(),
	}
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid change: %w", err)
	}

	// Detached from the caller's request lifetime: the CRUD response must
	// not wait on the publisher confirm
	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()

		pubCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := r.broker.Publish(pubCtx, rec); err != nil {
			r.logger.Error("Failed to enqueue change record",
				"correlation_id", rec.CorrelationID,
				"source", rec.Source,
				"entity_kind", rec.EntityKind,
				"operation", rec.Operation,
				"error", err,
			)
			return
		}

		r.logger.Debug("Change record enqueued",
			"correlation_id", rec.CorrelationID,
			"entity_kind", rec.EntityKind,
			"operation", rec.Operation,
		)
	}()

	return nil
}

// Drain blocks until every in-flight enqueue has settled. Called on
// shutdown before the broker connection is closed.
func (r *Recorder) Drain() {
	r.inflight.Wait()
}

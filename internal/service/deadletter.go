package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"quadsync/internal/models"
	"quadsync/pkg/metrics"
)

// DeadLetterMonitor drains the dead-letter queue. Jobs land there after
// exhausting their delivery limit or failing fatally; nothing retries them
// automatically, so the monitor's job is to make each one loud: a warning
// log with enough context to replay the change by hand, plus a metric to
// alert on.
type DeadLetterMonitor struct {
	logger *slog.Logger
}

func NewDeadLetterMonitor(l *slog.Logger) *DeadLetterMonitor {
	return &DeadLetterMonitor{logger: l}
}

// HandleDeadLetter records one poisoned job
func (m *DeadLetterMonitor) HandleDeadLetter(ctx context.Context, body []byte) error {
	metrics.DeadLettered.Inc()

	var rec models.ChangeRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		m.logger.Error("Dead letter is not a parseable change record",
			"error", err,
			"body_bytes", len(body),
		)
		return nil
	}

	m.logger.Warn("Change record exhausted its retry budget",
		"correlation_id", rec.CorrelationID,
		"source", rec.Source,
		"operation", rec.Operation,
		"entity_kind", rec.EntityKind,
		"enqueued_at", rec.EnqueuedAt,
	)
	return nil
}

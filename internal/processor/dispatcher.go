package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"quadsync/internal/models"
	"quadsync/internal/store"
	"quadsync/pkg/metrics"
)

// Dispatcher fans one dequeued ChangeRecord out to every store except the
// one that originated it. Target writes run concurrently and are awaited
// independently; one adapter's failure never cancels or blocks a sibling.
// Only after all branches settle does the job get acked (all succeeded) or
// nacked (anything failed), so idempotent adapter writes are a hard
// requirement: a retry re-runs every target, including the ones that
// already succeeded.
type Dispatcher struct {
	adapters store.Registry
	logger   *slog.Logger
}

func NewDispatcher(adapters store.Registry, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		adapters: adapters,
		logger:   logger,
	}
}

// Dispatch executes the full fan-out cycle for one change record
func (d *Dispatcher) Dispatch(ctx context.Context, rec models.ChangeRecord) (err error) {
	defer func() {
		status := "success"
		if err != nil {
			if store.IsFatal(err) {
				status = "fatal_error"
			} else {
				status = "transient_error"
			}
		}
		metrics.RecordsProcessed.WithLabelValues(status, string(rec.EntityKind), string(rec.Operation)).Inc()
	}()

	if verr := rec.Validate(); verr != nil {
		d.logger.Error("Rejecting malformed change record",
			"correlation_id", rec.CorrelationID, "error", verr)
		return store.Fatal("invalid change record: %v", verr)
	}

	id := entityID(rec.Payload)
	l := d.logger.With(
		"correlation_id", rec.CorrelationID,
		"entity_kind", rec.EntityKind,
		"operation", rec.Operation,
		"entity_id", id,
	)

	targets := make([]store.Adapter, 0, len(d.adapters))
	for _, name := range models.Targets(rec.Source) {
		if adapter, ok := d.adapters[name]; ok {
			targets = append(targets, adapter)
		}
	}
	if len(targets) == 0 {
		l.Warn("No target adapters configured for change", "source", rec.Source)
		return nil
	}

	l.Info("Starting fan-out", "source", rec.Source, "targets", len(targets))

	// Fan-out/fan-in join that never short-circuits on first failure
	results := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target store.Adapter) {
			defer wg.Done()

			start := time.Now()
			werr := target.Write(ctx, rec)
			status := "success"
			if werr != nil {
				status = "error"
			}
			metrics.FanoutDuration.WithLabelValues(status, string(target.Name()), string(rec.Operation)).
				Observe(time.Since(start).Seconds())

			results[i] = werr
		}(i, target)
	}
	wg.Wait()

	succeeded, failed, fatals := 0, 0, 0
	for i, werr := range results {
		name := targets[i].Name()
		if werr == nil {
			succeeded++
			l.Info("Replication succeeded", "target", name)
			continue
		}

		failed++
		if store.IsFatal(werr) {
			fatals++
		}
		metrics.FanoutFailures.WithLabelValues(string(name)).Inc()
		l.Error("Replication to target failed",
			"target", name,
			"error", werr,
		)
	}

	l.Info("Fan-out settled", "succeeded", succeeded, "failed", failed)

	if failed == 0 {
		return nil
	}
	if fatals == failed {
		// Every failure is permanent; redelivery cannot converge
		return store.Fatal("%d/%d targets failed permanently", failed, len(targets))
	}
	return fmt.Errorf("replication incomplete: %d/%d targets failed", failed, len(targets))
}

// entityID pulls the canonical join key out of a raw payload for logging.
// Best effort only: an unparseable payload is the adapter's problem, not ours.
func entityID(payload json.RawMessage) string {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return "unknown"
	}
	return probe.ID
}

package service

import (
	"context"
	"sync"
	"time"

	"quadsync/internal/models"
	"quadsync/internal/store"
	"quadsync/pkg/metrics"
)

// StoreHealth is one connectivity probe result
type StoreHealth struct {
	Connected bool    `json:"connected"`
	Error     *string `json:"error"`
}

// HealthReport covers every backing store plus the queue backend
type HealthReport struct {
	Timestamp time.Time              `json:"timestamp"`
	Databases map[string]StoreHealth `json:"databases"`
}

// AllConnected reports whether every probe succeeded
func (r HealthReport) AllConnected() bool {
	for _, h := range r.Databases {
		if !h.Connected {
			return false
		}
	}
	return true
}

// QueueProbe exposes the broker link state to the health checker
type QueueProbe interface {
	IsHealthy() bool
}

// HealthChecker probes every store's connectivity on demand. Probes are
// fresh connections, the same cost model as adapter writes.
type HealthChecker struct {
	adapters store.Registry
	queue    QueueProbe
}

func NewHealthChecker(adapters store.Registry, queue QueueProbe) *HealthChecker {
	return &HealthChecker{
		adapters: adapters,
		queue:    queue,
	}
}

// Check probes all stores in parallel with a per-probe timeout
func (h *HealthChecker) Check(ctx context.Context) HealthReport {
	report := HealthReport{
		Timestamp: time.Now().UTC(),
		Databases: make(map[string]StoreHealth, len(h.adapters)+1),
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, adapter := range h.adapters {
		wg.Add(1)
		go func(name models.StoreID, adapter store.Adapter) {
			defer wg.Done()

			probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			health := StoreHealth{Connected: true}
			gauge := 1.0
			if err := adapter.Ping(probeCtx); err != nil {
				msg := err.Error()
				health = StoreHealth{Connected: false, Error: &msg}
				gauge = 0
			}
			metrics.StoreHealthy.WithLabelValues(string(name)).Set(gauge)

			mu.Lock()
			report.Databases[string(name)] = health
			mu.Unlock()
		}(name, adapter)
	}
	wg.Wait()

	queueHealth := StoreHealth{Connected: h.queue.IsHealthy()}
	if !queueHealth.Connected {
		msg := "broker link is down"
		queueHealth.Error = &msg
	}
	report.Databases["rabbitmq"] = queueHealth

	return report
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsProcessed tracks worker throughput by outcome
	// status: success, transient_error, fatal_error
	RecordsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "replication_records_processed_total",
		Help: "Total number of change records processed by the worker",
	}, []string{"status", "entity_kind", "operation"})

	// FanoutDuration measures a single adapter write inside the fan-out.
	// Buckets are wide because each write pays a fresh connect/disconnect.
	FanoutDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "replication_fanout_write_duration_seconds",
		Help:    "Time taken for one target store write, connect to disconnect",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"status", "store", "operation"})

	// FanoutFailures counts isolated per-target failures. A non-zero rate
	// with zero dead-letters means retries are converging.
	FanoutFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "replication_fanout_failures_total",
		Help: "Total number of isolated target write failures",
	}, []string{"store"})

	// DeadLettered counts jobs that exhausted their retry budget or failed
	// fatally. If this grows, manual intervention is required.
	DeadLettered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "replication_dead_lettered_total",
		Help: "Total number of change records routed to the dead-letter queue",
	})

	// QueueHealthy provides a binary 0/1 signal for the broker link
	QueueHealthy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "replication_queue_healthy",
		Help: "Current health of the RabbitMQ link (1 healthy, 0 down)",
	})

	// StoreHealthy reports the last connectivity probe per backing store
	StoreHealthy = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "replication_store_healthy",
		Help: "Last connectivity probe result per store (1 connected, 0 down)",
	}, []string{"store"})
)

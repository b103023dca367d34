package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quadsync/internal/broker"
	"quadsync/internal/config"
	"quadsync/internal/processor"
	"quadsync/internal/service"
	"quadsync/internal/store"
	"quadsync/pkg/infra"
	_ "quadsync/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := config.Load()
	logger := infra.SetupLogger(cfg)
	slog.SetDefault(logger)

	// Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Replication worker initializing",
		"delivery_limit", cfg.DeliveryLimit,
	)

	registry, err := store.NewRegistry(
		store.NewPostgresAdapter(cfg.PostgresURL),
		store.NewMongoAdapter(cfg.MongoURL, cfg.MongoDatabase),
		store.NewFirebirdAdapter(cfg.FirebirdDSN, logger),
		store.NewCassandraAdapter(cfg.CassandraHosts, cfg.CassandraKeyspace, cfg.CassandraUser, cfg.CassandraPassword),
	)
	if err != nil {
		logger.Error("CRITICAL: adapter registry setup failed", "error", err)
		os.Exit(1)
	}

	dispatcher := processor.NewDispatcher(registry, logger)

	go startObservabilityServer(cfg.MetricsPort, logger)
	go runDeadLetterMonitor(ctx, cfg, logger)

	connBackoff := infra.NewBackoff(1*time.Second, 60*time.Second, 2.0)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutdown signal received")
			return
		default:
			consumer, err := broker.NewConsumer(cfg.RabbitMQURL, cfg.DeliveryLimit, dispatcher, logger)
			if err != nil {
				wait := connBackoff.Next()
				logger.Error("RabbitMQ connection failed, retrying...",
					"wait_duration", wait,
					"error", err,
				)

				select {
				case <-ctx.Done():
					return
				case <-time.After(wait):
					continue
				}
			}

			connBackoff.Reset()
			logger.Info("Connected to broker. Consuming change records...")

			if err := consumer.Listen(ctx); err != nil {
				logger.Error("Consumer connection lost", "error", err)
			}

			consumer.Close()
		}
	}
}

// runDeadLetterMonitor keeps a consumer on the dead-letter queue so
// exhausted jobs are logged and counted instead of rotting silently
func runDeadLetterMonitor(ctx context.Context, cfg *config.Config, logger *slog.Logger) {
	monitor := service.NewDeadLetterMonitor(logger)
	dlqBackoff := infra.NewBackoff(1*time.Second, 60*time.Second, 2.0)

	for {
		select {
		case <-ctx.Done():
			return
		default:
			consumer, err := broker.NewDeadLetterConsumer(cfg.RabbitMQURL, monitor, logger)
			if err != nil {
				wait := dlqBackoff.Next()
				logger.Error("Dead-letter consumer connection failed, retrying...",
					"wait_duration", wait,
					"error", err,
				)

				select {
				case <-ctx.Done():
					return
				case <-time.After(wait):
					continue
				}
			}

			dlqBackoff.Reset()
			if err := consumer.Listen(ctx); err != nil {
				logger.Error("Dead-letter consumer lost", "error", err)
			}
			consumer.Close()
		}
	}
}

func startObservabilityServer(port string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("WORKER ALIVE"))
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	logger.Info("Observability server online", "url", "http://localhost:"+port+"/metrics")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Observability server failed", "error", err)
	}
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quadsync/internal/api"
	"quadsync/internal/broker"
	"quadsync/internal/config"
	"quadsync/internal/service"
	"quadsync/internal/store"
	"quadsync/pkg/infra"
)

func main() {
	cfg := config.Load()
	logger := infra.SetupLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	// The ops API only needs the broker for its health probe; a failed
	// connection keeps the API up with the queue reported down
	var queue service.QueueProbe = downQueue{}
	publisher, err := broker.NewPublisher(cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Warn("Broker unreachable at startup, health will report it down", "error", err)
	} else {
		defer publisher.Close()
		queue = publisher
	}

	verifier := service.NewVerifier(registry, logger)
	health := service.NewHealthChecker(registry, queue)

	server := &http.Server{
		Addr:         ":" + cfg.OpsAPIPort,
		Handler:      api.NewServer(verifier, health, logger).Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("Ops API online", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Ops API failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down ops API...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Ops API shutdown error", "error", err)
	}
	logger.Info("Shutdown complete")
}

// downQueue is the health stand-in when the broker was unreachable at boot
type downQueue struct{}

func (downQueue) IsHealthy() bool { return false }

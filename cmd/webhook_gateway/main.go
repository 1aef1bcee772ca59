package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/viban-reconciler/internal/config"
	"github.com/viban-reconciler/internal/data/mongo"
	"github.com/viban-reconciler/internal/data/postgres"
	"github.com/viban-reconciler/internal/logger"
	"github.com/viban-reconciler/internal/platform/messaging/producers"
	"github.com/viban-reconciler/internal/platform/persistence"
	"github.com/viban-reconciler/internal/reconciliation/components"
	"github.com/viban-reconciler/internal/webhook_gateway"
	"github.com/viban-reconciler/internal/webhook_gateway/service"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("webhook_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Webhook Gateway",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Events whose ingestion fails are handed to the reconciliation worker
	retryProducer, err := producers.NewPaymentEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize payment event Kafka producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	repos := components.Repositories{
		Events:   postgres.NewEventRepository(log, postgresDB),
		Accounts: postgres.NewAccountRepository(log, postgresDB),
		TopUps:   postgres.NewTopUpRepository(log, postgresDB),
		Orders:   postgres.NewOrderRepository(log, postgresDB),
		Audits:   postgres.NewAuditRepository(log, postgresDB),
		Alerts:   postgres.NewAlertOutboxRepository(log, postgresDB),
	}
	snapshotRepo := mongo.NewSnapshotRepository(log, mongoDB.Database())

	// Initialize reconciliation pipeline
	pipeline := components.CreatePipeline(postgresDB, repos, cfg, retryProducer, log)

	// Initialize REST server
	server := webhook_gateway.NewServer(log, cfg, webhook_gateway.Services{
		Ingestion:  pipeline.Webhook,
		Resolution: pipeline.Resolution,
		Query:      service.NewQueryService(repos.Events, repos.Audits, snapshotRepo),
		AuditSink:  pipeline.AuditSink,
	})
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Stop accepting webhooks before draining in-flight ingestion
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	pipeline.Shutdown(cfg.Server.ShutdownTimeout)

	// Cancel the application context
	cancelAppCtx()

	if err = retryProducer.Close(); err != nil {
		log.Error("Error closing Kafka producer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serverErr != nil {
		log.Error("Webhook Gateway shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Webhook Gateway shutdown completed with errors")
	} else {
		log.Info("Webhook Gateway shutdown completed successfully")
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/viban-reconciler/internal/config"
	"github.com/viban-reconciler/internal/data/mongo"
	"github.com/viban-reconciler/internal/data/postgres"
	"github.com/viban-reconciler/internal/logger"
	"github.com/viban-reconciler/internal/platform/messaging/consumers"
	"github.com/viban-reconciler/internal/platform/messaging/producers"
	"github.com/viban-reconciler/internal/platform/persistence"
	"github.com/viban-reconciler/internal/platform/provider"
	"github.com/viban-reconciler/internal/reconciliation/components"
	"github.com/viban-reconciler/internal/reconciliation/consumer"
	"github.com/viban-reconciler/internal/reconciliation/outbox_poller"
	"github.com/viban-reconciler/internal/reconciliation/worker"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("reconciliation_worker")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Reconciliation Worker",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
		"segregated_accounts", len(cfg.SegregatedAccounts),
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
	if err := snapshotRepo.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to ensure snapshot indexes", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producers
	alertProducer, err := producers.NewAlertProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize alert Kafka producer", "error", err)
		os.Exit(1)
	}

	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	// A nil *DLQProducer must not reach the handler as a non-nil interface
	var deadLetters producers.DeadLetterPublisher
	if dlqProducer != nil {
		deadLetters = dlqProducer
	}

	// The worker retries synchronously and never republishes
	pipeline := components.CreatePipeline(postgresDB, repos, cfg, nil, log)

	// Initialize scheduled jobs
	providerClient := provider.NewClient(log, &cfg.Provider)
	jobs := worker.NewJobs(cfg, worker.Dependencies{
		Provider:  providerClient,
		Repos:     repos,
		Snapshots: snapshotRepo,
		Pipeline:  pipeline,
	}, log)
	sched := jobs.Schedule(cfg, pipeline, log)

	// Initialize retry consumer
	kafkaConsumer := consumers.NewPaymentEventConsumer(log, &cfg.Kafka, deadLetters)
	paymentEventHandler := consumer.NewPaymentEventHandler(log, pipeline.Ingestion, deadLetters)

	// Initialize alert outbox poller
	alertPublisher := outbox_poller.NewAlertPublisher(repos.Alerts, alertProducer, log)
	poller := outbox_poller.NewPoller(&cfg.Outbox, repos.Alerts, alertPublisher, log)

	// Create error channel for service errors
	errChan := make(chan error, 1)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Start retry consumer
	log.Info("Starting Kafka consumer",
		"topic", cfg.Kafka.PaymentEventTopic,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := kafkaConsumer.Subscribe(appCtx, paymentEventHandler.HandleMessage); err != nil {
		errChan <- fmt.Errorf("kafka consumer error: %w", err)
	}

	// Start scheduled jobs
	sched.Start(appCtx)

	// Start outbox poller in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Alert Outbox Poller",
			"interval", cfg.Outbox.PollingInterval.String(),
			"batch_size", cfg.Outbox.BatchSize,
		)
		poller.Start(appCtx)
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Wait for all goroutines to finish
	log.Info("Waiting for services to stop...")
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		sched.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	pipeline.Shutdown(5 * time.Second)

	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	if err = alertProducer.Close(); err != nil {
		log.Error("Error closing alert Kafka producer", "error", err)
	}

	if dlqProducer != nil {
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
		}
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Close MongoDB connection
	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serviceErr != nil {
		log.Error("Reconciliation Worker shutdown with errors", "error", serviceErr)
	}
	if err != nil {
		log.Error("Reconciliation Worker shutdown completed with errors")
	} else {
		log.Info("Reconciliation Worker shutdown completed successfully")
	}
}

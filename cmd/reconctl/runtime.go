package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/viban-reconciler/internal/config"
	"github.com/viban-reconciler/internal/data/mongo"
	"github.com/viban-reconciler/internal/data/postgres"
	"github.com/viban-reconciler/internal/logger"
	"github.com/viban-reconciler/internal/platform/persistence"
	"github.com/viban-reconciler/internal/platform/provider"
	"github.com/viban-reconciler/internal/reconciliation/components"
	"github.com/viban-reconciler/internal/reconciliation/worker"
)

// runtime is the wired engine a single command runs against
type runtime struct {
	cfg      *config.Config
	log      *slog.Logger
	postgres *persistence.PostgresDB
	mongo    *persistence.MongoDB
	pipeline *components.Pipeline
	jobs     *worker.Jobs
}

func openRuntime(ctx context.Context, cmd *cobra.Command) (*runtime, error) {
	name, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.NewLogger(cfg)

	postgresDB, err := persistence.NewPostgresDB(ctx, log, &cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	mongoDB, err := persistence.NewMongoDB(ctx, log, &cfg.MongoDB)
	if err != nil {
		postgresDB.Close()
		return nil, fmt.Errorf("failed to initialize MongoDB: %w", err)
	}

	repos := components.Repositories{
		Events:   postgres.NewEventRepository(log, postgresDB),
		Accounts: postgres.NewAccountRepository(log, postgresDB),
		TopUps:   postgres.NewTopUpRepository(log, postgresDB),
		Orders:   postgres.NewOrderRepository(log, postgresDB),
		Audits:   postgres.NewAuditRepository(log, postgresDB),
		Alerts:   postgres.NewAlertOutboxRepository(log, postgresDB),
	}
	pipeline := components.CreatePipeline(postgresDB, repos, cfg, nil, log)

	jobs := worker.NewJobs(cfg, worker.Dependencies{
		Provider:  provider.NewClient(log, &cfg.Provider),
		Repos:     repos,
		Snapshots: mongo.NewSnapshotRepository(log, mongoDB.Database()),
		Pipeline:  pipeline,
	}, log)

	return &runtime{
		cfg:      cfg,
		log:      log,
		postgres: postgresDB,
		mongo:    mongoDB,
		pipeline: pipeline,
		jobs:     jobs,
	}, nil
}

func (r *runtime) Close() {
	r.pipeline.Shutdown(5 * time.Second)
	r.postgres.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.mongo.Close(ctx); err != nil {
		r.log.Error("Error closing MongoDB connection", "error", err)
	}
}

// withRuntime opens the engine, runs fn and closes everything afterwards
func withRuntime(fn func(ctx context.Context, r *runtime, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		r, err := openRuntime(ctx, cmd)
		if err != nil {
			return err
		}
		defer r.Close()

		return fn(ctx, r, cmd, args)
	}
}

// Package worker assembles the scheduled reconciliation jobs shared by the
// worker binary and the operator CLI.
package worker

import (
	"log/slog"

	"github.com/viban-reconciler/internal/config"
	"github.com/viban-reconciler/internal/domain/snapshot"
	"github.com/viban-reconciler/internal/reconciliation/balance"
	"github.com/viban-reconciler/internal/reconciliation/components"
	"github.com/viban-reconciler/internal/reconciliation/expiry"
	"github.com/viban-reconciler/internal/reconciliation/polling"
	"github.com/viban-reconciler/internal/reconciliation/scheduler"
)

// Provider is the banking provider API the jobs read from
type Provider interface {
	polling.PaymentSource
	balance.BalanceSource
}

// Dependencies are the collaborators of the scheduled jobs
type Dependencies struct {
	Provider  Provider
	Repos     components.Repositories
	Snapshots snapshot.Repository
	Pipeline  *components.Pipeline
}

// Jobs holds one instance of every scheduled job
type Jobs struct {
	Polling *polling.Job
	Balance *balance.Validator
	Expiry  *expiry.Sweeper
}

func NewJobs(cfg *config.Config, deps Dependencies, logger *slog.Logger) *Jobs {
	return &Jobs{
		Polling: polling.NewJob(
			cfg,
			deps.Provider,
			deps.Repos.Events,
			deps.Pipeline.Ingestion,
			deps.Pipeline.AuditSink,
			logger.With("job", "polling_recovery"),
		),
		Balance: balance.NewValidator(
			cfg,
			deps.Provider,
			deps.Repos.Accounts,
			deps.Snapshots,
			deps.Pipeline.AuditSink,
			deps.Pipeline.Pager,
			logger.With("job", "balance_validator"),
		),
		Expiry: expiry.NewSweeper(
			deps.Repos.TopUps,
			deps.Pipeline.AuditSink,
			logger.With("job", "topup_expiry"),
		),
	}
}

// Schedule registers every job on a scheduler that audits and pages failures
func (j *Jobs) Schedule(cfg *config.Config, pipeline *components.Pipeline, logger *slog.Logger) *scheduler.Scheduler {
	sched := scheduler.New(logger.With("component", "scheduler"), scheduler.AlertOnFailure(pipeline.AuditSink, pipeline.Pager))

	sched.Register(j.Polling, cfg.Polling.Interval, cfg.Polling.Timeout)
	sched.Register(j.Balance, cfg.BalanceValidation.Interval, cfg.BalanceValidation.Timeout)
	sched.Register(j.Expiry, cfg.TopUp.ExpirySweepInterval, cfg.TopUp.ExpirySweepInterval)

	return sched
}

package components

import (
	"log/slog"
	"time"

	"github.com/viban-reconciler/internal/config"
	"github.com/viban-reconciler/internal/domain/account"
	"github.com/viban-reconciler/internal/domain/alert"
	"github.com/viban-reconciler/internal/domain/audit"
	"github.com/viban-reconciler/internal/domain/order"
	"github.com/viban-reconciler/internal/domain/payment"
	"github.com/viban-reconciler/internal/domain/topup"
	"github.com/viban-reconciler/internal/platform/messaging/producers"
	"github.com/viban-reconciler/internal/platform/persistence"
	"github.com/viban-reconciler/internal/reconciliation/service"
)

// Repositories groups the stores the pipeline writes to
type Repositories struct {
	Events   payment.Repository
	Accounts account.Repository
	TopUps   topup.Repository
	Orders   order.Ledger
	Audits   audit.Repository
	Alerts   alert.Repository
}

// Pipeline is the wired reconciliation core shared by every binary
type Pipeline struct {
	// Ingestion runs synchronously; polling and the retry consumer use it
	Ingestion service.IngestionService
	// Webhook bounds ingestion by the webhook processing budget
	Webhook    service.IngestionService
	Resolution service.ResolutionService
	AuditSink  *AuditRecorder
	Pager      *AlertPager

	workerPool *service.WorkerPoolIngestionService
}

// CreatePipeline wires the VOP gate, matcher tiers, ledger mutator and
// ingestion services. retry may be nil.
func CreatePipeline(
	db persistence.TxExecutor,
	repos Repositories,
	cfg *config.Config,
	retry producers.MessagePublisher,
	logger *slog.Logger,
) *Pipeline {
	tolerance := cfg.Matching.Tolerance

	auditSink := NewAuditRecorder(repos.Audits, logger.With("component", "audit"))
	pager := NewAlertPager(repos.Alerts, logger.With("component", "alerts"))

	mutator := NewLedgerMutator(repos.Accounts, repos.TopUps, repos.Orders, repos.Events, repos.Audits, logger.With("component", "ledger_mutator"))
	tiers := []MatchTier{
		NewTopUpTier(repos.TopUps, mutator, tolerance),
		NewOrderTier(repos.Orders, mutator, tolerance),
	}
	matcher := NewMatcher(db, repos.Events, repos.Accounts, repos.Audits, tiers, logger.With("component", "matcher"))

	ingestion := service.NewIngestionService(
		repos.Events,
		NewVOPGate(logger.With("component", "vop_gate")),
		matcher,
		auditSink,
		logger.With("component", "ingestion"),
	)

	pipeline := &Pipeline{
		Ingestion:  ingestion,
		Webhook:    ingestion,
		Resolution: service.NewResolutionService(db, repos.Events, repos.TopUps, repos.Orders, mutator, logger.With("component", "resolution")),
		AuditSink:  auditSink,
		Pager:      pager,
	}

	workerPool, err := service.NewWorkerPoolIngestionService(
		ingestion,
		service.WorkerPoolConfig{
			Size:   cfg.WorkerPool.Size,
			Budget: cfg.Webhook.ProcessingBudget,
		},
		retry,
		auditSink,
		logger.With("component", "worker_pool"),
	)
	if err != nil {
		logger.Error("Failed to create worker pool, webhook ingestion runs inline", "error", err)
		return pipeline
	}

	logger.Info("Created worker pool ingestion service", "pool_size", cfg.WorkerPool.Size, "budget", cfg.Webhook.ProcessingBudget.String())
	pipeline.Webhook = workerPool
	pipeline.workerPool = workerPool
	return pipeline
}

// Shutdown drains the worker pool when one was created
func (p *Pipeline) Shutdown(timeout time.Duration) {
	if p.workerPool != nil {
		p.workerPool.Shutdown(timeout)
	}
}

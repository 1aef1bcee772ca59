package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/viban-reconciler/internal/domain/audit"
	"github.com/viban-reconciler/internal/domain/payment"
	"github.com/viban-reconciler/internal/platform/messaging/producers"
)

// WorkerPoolIngestionService bounds how long a caller waits for ingestion.
// Work that outlives the budget keeps running on the pool, and failures are
// handed to the retry topic.
type WorkerPoolIngestionService struct {
	baseService IngestionService
	pool        *ants.Pool
	retry       producers.MessagePublisher // nil disables the retry topic
	auditSink   audit.Sink
	budget      time.Duration
	logger      *slog.Logger
}

type WorkerPoolConfig struct {
	Size   int
	Budget time.Duration
}

type ingestResult struct {
	outcome *payment.Outcome
	err     error
}

func NewWorkerPoolIngestionService(
	baseService IngestionService,
	config WorkerPoolConfig,
	retry producers.MessagePublisher,
	auditSink audit.Sink,
	logger *slog.Logger,
) (*WorkerPoolIngestionService, error) {
	if config.Budget <= 0 {
		return nil, fmt.Errorf("processing budget must be positive")
	}
	pool, err := ants.NewPool(config.Size, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}

	return &WorkerPoolIngestionService{
		baseService: baseService,
		pool:        pool,
		retry:       retry,
		auditSink:   auditSink,
		budget:      config.Budget,
		logger:      logger,
	}, nil
}

// Ingest submits the event to the pool and waits at most the budget. The
// worker runs detached from ctx so a caller giving up never aborts a ledger
// transaction half way. A saturated pool never blocks the caller: the event
// goes to the retry topic and the ack is deferred, or the overload is
// returned as an error when no retry topic is configured.
func (s *WorkerPoolIngestionService) Ingest(ctx context.Context, event *payment.Event) (*payment.Outcome, error) {
	logger := s.logger.With("provider_transaction_id", event.ProviderTransactionID)

	resultChan := make(chan ingestResult, 1)
	detached := context.WithoutCancel(ctx)
	eventCopy := *event

	err := s.pool.Submit(func() {
		outcome, err := s.baseService.Ingest(detached, &eventCopy)
		if err != nil {
			s.handleFailure(detached, &eventCopy, err)
		}
		resultChan <- ingestResult{outcome: outcome, err: err}
	})
	if errors.Is(err, ants.ErrPoolOverload) {
		logger.Warn("Worker pool saturated", "running_workers", s.pool.Running())
		if s.retry == nil {
			s.handleFailure(detached, &eventCopy, err)
			return nil, fmt.Errorf("failed to submit event %s: %w", event.ProviderTransactionID, err)
		}
		go s.handleFailure(detached, &eventCopy, err)
		return payment.DeferredOutcome(event), nil
	}
	if err != nil {
		logger.Error("Failed to submit event to worker pool", "error", err)
		return nil, fmt.Errorf("failed to submit event %s: %w", event.ProviderTransactionID, err)
	}

	timer := time.NewTimer(s.budget)
	defer timer.Stop()

	select {
	case result := <-resultChan:
		return result.outcome, result.err
	case <-timer.C:
		logger.Warn("Processing budget elapsed, acknowledging early", "budget", s.budget.String())
		return payment.DeferredOutcome(event), nil
	case <-ctx.Done():
		logger.Warn("Caller went away before processing finished", "error", ctx.Err())
		return payment.DeferredOutcome(event), nil
	}
}

func (s *WorkerPoolIngestionService) handleFailure(ctx context.Context, event *payment.Event, cause error) {
	logger := s.logger.With("provider_transaction_id", event.ProviderTransactionID)
	logger.Error("Ingestion failed", "error", cause)

	record := audit.NewEvent(audit.TypeWebhook, audit.SeverityError, audit.ActionProcessingFailed, cause.Error()).
		ForTransaction(event.ProviderTransactionID).
		With("source", string(event.Source)).
		With("queued_for_retry", s.retry != nil)
	s.auditSink.Record(ctx, record)

	if s.retry == nil {
		return
	}
	if err := s.retry.Publish(ctx, event.ProviderTransactionID, event); err != nil {
		logger.Error("Failed to queue event for retry", "error", err)
		return
	}
	logger.Info("Event queued for retry")
}

// Shutdown waits up to timeout for in-flight ingestion before releasing the pool.
func (s *WorkerPoolIngestionService) Shutdown(timeout time.Duration) {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	if err := s.pool.ReleaseTimeout(timeout); err != nil {
		s.logger.Warn("Worker pool did not drain before timeout", "error", err)
	}
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolIngestionService) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolIngestionService) Capacity() int {
	return s.pool.Cap()
}

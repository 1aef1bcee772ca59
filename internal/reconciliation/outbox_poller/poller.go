// Package outbox_poller relays critical alerts written to the alert outbox by
// the reconciliation jobs to the alert Kafka topic.
package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/viban-reconciler/internal/config"
	"github.com/viban-reconciler/internal/domain/alert"
	"github.com/viban-reconciler/internal/domain/shared"
)

// Poller processes pending alert outbox messages
type Poller struct {
	alertRepo        alert.Repository
	publisher        AlertPublisher
	logger           *slog.Logger
	pollInterval     time.Duration
	batchSize        int
	maxRetryAttempts int
}

func NewPoller(
	cfg *config.OutboxConfig,
	alertRepo alert.Repository,
	publisher AlertPublisher,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		alertRepo:        alertRepo,
		publisher:        publisher,
		logger:           logger,
		pollInterval:     cfg.PollingInterval,
		batchSize:        cfg.BatchSize,
		maxRetryAttempts: cfg.MaxRetryAttempts,
	}
}

// Start begins polling until context is canceled
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Starting Alert Outbox Poller",
		"poll_interval", p.pollInterval.String(),
		"batch_size", p.batchSize,
		"max_retry_attempts", p.maxRetryAttempts,
	)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Alert Outbox Poller stopping due to context cancellation.")
			return
		case <-ticker.C:
			if err := p.processPendingMessages(ctx); err != nil {
				p.logger.Error("Error during batch processing of pending alert messages", "error", err)
			}
		}
	}
}

func (p *Poller) processPendingMessages(ctx context.Context) error {
	messages, err := p.alertRepo.GetPending(ctx, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending alert messages: %w", err)
	}

	if len(messages) == 0 {
		p.logger.Debug("No pending alert messages found.")
		return nil
	}

	p.logger.Info("Fetched pending alert messages", "count", len(messages))

	for _, msg := range messages {
		logger := p.logger.With("alert_id", msg.AlertID.String())

		if err := p.publisher.PublishAlert(ctx, msg); err != nil {
			logger.Error("Failed to relay alert",
				"outbox_id", msg.ID, "current_attempts", msg.Attempts, "error", err,
			)

			if errInc := p.alertRepo.IncrementAttempts(ctx, msg.ID); errInc != nil {
				logger.Error("Failed to increment attempts for alert message", "outbox_id", msg.ID, "error", errInc)
				continue
			}

			if msg.Attempts+1 >= p.maxRetryAttempts {
				logger.Warn("Max retry attempts reached for alert message, marking as FAILED_TO_PUBLISH",
					"outbox_id", msg.ID, "attempts_made", msg.Attempts+1,
				)
				if errUpdate := p.alertRepo.UpdateStatus(ctx, msg.ID, shared.OutboxStatusFailedToPublish); errUpdate != nil {
					logger.Error("Failed to update alert status to FAILED_TO_PUBLISH after max retries", "outbox_id", msg.ID, "error", errUpdate)
				}
			}
		}
	}
	return nil
}

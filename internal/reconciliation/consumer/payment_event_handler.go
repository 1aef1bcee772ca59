// Package consumer replays normalized payment events whose webhook ingestion
// failed and were queued on the retry topic.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/viban-reconciler/internal/domain/payment"
	"github.com/viban-reconciler/internal/platform/messaging/producers"
	"github.com/viban-reconciler/internal/reconciliation/service"
)

var ErrInvalidEvent = errors.New("payment event is missing its provider transaction id")

// PaymentEventHandler handles retried payment events from Kafka
type PaymentEventHandler struct {
	ingestion service.IngestionService
	producer  producers.DeadLetterPublisher
	logger    *slog.Logger
}

func NewPaymentEventHandler(
	logger *slog.Logger,
	ingestion service.IngestionService,
	producer producers.DeadLetterPublisher,
) *PaymentEventHandler {
	return &PaymentEventHandler{
		ingestion: ingestion,
		producer:  producer,
		logger:    logger,
	}
}

// HandleMessage feeds the event back through ingestion. Replays of events
// that were stored in the meantime resolve to duplicates.
func (h *PaymentEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var event payment.Event
	err := json.Unmarshal(value, &event)
	if err == nil && event.ProviderTransactionID == "" {
		err = ErrInvalidEvent
	}
	if err != nil {
		h.logger.Error("Failed to decode payment event from Kafka message", "error", err, "message_key", string(key))

		if h.producer != nil {
			reason := fmt.Sprintf("undecodable payment event: %s", err.Error())
			dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, reason)
			if dlqErr == nil {
				h.logger.Info("Published undecodable payment event to DLQ", "message_key", string(key))
				return nil
			}
			h.logger.Error("Failed to publish message to DLQ after decode error", "dlq_error", dlqErr, "message_key", string(key))
		}
		return fmt.Errorf("failed to decode message value: %w", err)
	}

	// The queued copy may carry a status set before its store write failed
	event.Status = payment.StatusNew
	event.StatusReason = ""

	logger := h.logger.With("transaction_id", event.ProviderTransactionID)
	logger.Info("Received payment event for retry", "source", event.Source, "amount", event.Amount, "currency", event.Currency)

	outcome, err := h.ingestion.Ingest(ctx, &event)
	if err != nil {
		logger.Error("Retried ingestion failed", "error", err)
		return fmt.Errorf("ingesting payment event %s failed: %w", event.ProviderTransactionID, err)
	}

	logger.Info("Retried payment event ingested",
		"match_type", outcome.MatchType,
		"reconciled", outcome.Reconciled,
		"duplicate", outcome.Duplicate,
	)
	return nil
}

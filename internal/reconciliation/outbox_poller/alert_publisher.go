package outbox_poller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/viban-reconciler/internal/domain/alert"
	"github.com/viban-reconciler/internal/domain/shared"
	"github.com/viban-reconciler/internal/platform/messaging/producers"
)

// AlertPublisher relays one outbox row to the on-call channel
type AlertPublisher interface {
	PublishAlert(ctx context.Context, message *alert.Message) error
}

// KafkaAlertPublisher writes alerts to the alert topic keyed by alert id
type KafkaAlertPublisher struct {
	alertRepo alert.Repository
	producer  producers.MessagePublisher
	logger    *slog.Logger
}

func NewAlertPublisher(
	alertRepo alert.Repository,
	producer producers.MessagePublisher,
	logger *slog.Logger,
) AlertPublisher {
	return &KafkaAlertPublisher{
		alertRepo: alertRepo,
		producer:  producer,
		logger:    logger,
	}
}

// PublishAlert publishes the payload and marks the row PROCESSED. A payload
// that cannot be decoded is marked FAILED_TO_PUBLISH straight away.
func (p *KafkaAlertPublisher) PublishAlert(ctx context.Context, message *alert.Message) error {
	page, err := message.GetAlert()
	if err != nil {
		p.logger.Error("Failed to unmarshal alert from outbox payload", "outbox_id", message.ID, "error", err)
		if updateErr := p.alertRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusFailedToPublish); updateErr != nil {
			p.logger.Error("Also failed to update outbox status to FAILED_TO_PUBLISH after unmarshal error", "outbox_id", message.ID, "update_error", updateErr)
		}
		return fmt.Errorf("unmarshal payload for outbox %d failed: %w", message.ID, err)
	}

	logger := p.logger.With("alert_id", page.ID.String(), "source", page.Source)

	if err := p.producer.Publish(ctx, page.ID.String(), json.RawMessage(message.Payload)); err != nil {
		return fmt.Errorf("failed to publish alert %s: %w", page.ID, err)
	}

	if err := p.alertRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		// Published but not marked: the next tick publishes it again and consumers dedupe by alert id
		logger.Error("Failed to mark alert outbox message as PROCESSED", "outbox_id", message.ID, "error", err)
		return fmt.Errorf("failed to update outbox %d status: %w", message.ID, err)
	}

	logger.Info("Alert relayed", "outbox_id", message.ID, "title", page.Title)
	return nil
}

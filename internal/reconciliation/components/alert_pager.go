package components

import (
	"context"
	"log/slog"

	"github.com/viban-reconciler/internal/domain/alert"
)

// AlertPager stores critical alerts in the outbox; the alert outbox poller
// delivers them to the alert topic
type AlertPager struct {
	alertRepo alert.Repository
	logger    *slog.Logger
}

func NewAlertPager(alertRepo alert.Repository, logger *slog.Logger) *AlertPager {
	return &AlertPager{
		alertRepo: alertRepo,
		logger:    logger,
	}
}

// PageCritical never fails the caller. An alert that cannot be stored is
// still written to the log at ERROR level.
func (p *AlertPager) PageCritical(ctx context.Context, a *alert.Alert) {
	logger := p.logger.With("alert_id", a.ID.String(), "source", a.Source, "title", a.Title)
	logger.Error("CRITICAL alert raised", "details", a.Details)

	message, err := alert.NewMessage(a)
	if err != nil {
		logger.Error("Failed to encode alert for outbox", "error", err)
		return
	}

	if err := p.alertRepo.Create(ctx, message); err != nil {
		logger.Error("Failed to store alert in outbox", "error", err)
		return
	}
	logger.Debug("Alert stored in outbox", "outbox_id", message.ID)
}

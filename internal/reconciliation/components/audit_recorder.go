package components

import (
	"context"
	"log/slog"

	"github.com/viban-reconciler/internal/domain/audit"
)

// AuditRecorder is the fire-and-forget audit sink used outside ledger transactions
type AuditRecorder struct {
	auditRepo audit.Repository
	logger    *slog.Logger
}

func NewAuditRecorder(auditRepo audit.Repository, logger *slog.Logger) *AuditRecorder {
	return &AuditRecorder{
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// Record appends event and logs instead of failing when the store is unavailable
func (r *AuditRecorder) Record(ctx context.Context, event *audit.Event) {
	logger := r.logger.With(
		"audit_type", event.Type,
		"action", event.Action,
		"provider_transaction_id", event.TransactionID,
	)

	if err := r.auditRepo.Append(ctx, event); err != nil {
		logger.Error("Failed to record audit event", "severity", event.Severity, "reason", event.Reason, "error", err)
		return
	}

	switch event.Severity {
	case audit.SeverityCritical, audit.SeverityError:
		logger.Error("Audit event recorded", "severity", event.Severity, "reason", event.Reason)
	case audit.SeverityWarning:
		logger.Warn("Audit event recorded", "reason", event.Reason)
	default:
		logger.Debug("Audit event recorded")
	}
}

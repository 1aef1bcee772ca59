package service

import (
	"context"
	"time"

	"github.com/viban-reconciler/internal/domain/audit"
	"github.com/viban-reconciler/internal/domain/payment"
	"github.com/viban-reconciler/internal/domain/snapshot"
)

// EventDetail is an event with the audit trail recorded against it
type EventDetail struct {
	Event *payment.Event
	Trail []*audit.Event
}

// QueryService serves the read side of the admin reconciliation queue
type QueryService interface {
	// ListEvents returns one page of events in status and the total count
	ListEvents(ctx context.Context, status payment.Status, page, perPage int) ([]*payment.Event, int64, error)

	// GetEvent returns ErrEventNotFound for unknown provider ids
	GetEvent(ctx context.Context, providerTransactionID string) (*EventDetail, error)

	// ListAudit returns the most recent audit events, optionally of one severity
	ListAudit(ctx context.Context, severity audit.Severity, limit int) ([]*audit.Event, error)

	// ListSnapshots returns snapshots of one grouping newest first
	ListSnapshots(ctx context.Context, segregatedAccountID string, start, end time.Time, page, perPage int) ([]*snapshot.Snapshot, error)
}

package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/viban-reconciler/internal/domain/audit"
	"github.com/viban-reconciler/internal/domain/order"
	"github.com/viban-reconciler/internal/domain/payment"
	"github.com/viban-reconciler/internal/domain/topup"
)

// IngestionService runs a normalized event through idempotency, the VOP gate
// and the matcher. Webhook, polling and retry paths all call it.
type IngestionService interface {
	Ingest(ctx context.Context, event *payment.Event) (*payment.Outcome, error)
}

// VOPGate decides whether an event must wait for a human before matching
type VOPGate interface {
	Evaluate(event *payment.Event) (held bool, reason string)
}

// Matcher attributes a stored NEW event to a top-up request or an order
type Matcher interface {
	Match(ctx context.Context, eventID uuid.UUID) (*payment.Outcome, error)
}

// LedgerMutator applies a match. Both operations run inside the caller's
// transaction and leave nothing behind when it rolls back.
type LedgerMutator interface {
	ApplyTopUp(ctx context.Context, tx pgx.Tx, event *payment.Event, request *topup.Request, by Attribution) error
	ReconcileOrder(ctx context.Context, tx pgx.Tx, event *payment.Event, ord *order.Order, by Attribution) error
}

// Attribution is written to the audit record of every applied match.
// Reason is set for manual resolutions only.
type Attribution struct {
	Actor  string
	Reason string
}

// SystemAttribution marks matches made by the automatic matcher
var SystemAttribution = Attribution{Actor: audit.SystemActor}

// ResolutionService settles events parked in the manual queue
type ResolutionService interface {
	Resolve(ctx context.Context, cmd ResolveCommand) (*payment.Outcome, error)
}

// ResolveCommand names exactly one target for a parked event
type ResolveCommand struct {
	ProviderTransactionID string
	TopUpRequestID        *uuid.UUID
	OrderID               *uuid.UUID
	Operator              string
	Reason                string
}

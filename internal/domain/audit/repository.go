package audit

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Repository stores audit events; records are never updated or deleted
type Repository interface {
	Append(ctx context.Context, event *Event) error
	ListByTransaction(ctx context.Context, providerTransactionID string) ([]*Event, error)
	ListRecent(ctx context.Context, severity Severity, limit int) ([]*Event, error)
	WithTx(tx pgx.Tx) Repository
}

// Sink records audit events outside any ledger transaction. Implementations
// must not fail the caller.
type Sink interface {
	Record(ctx context.Context, event *Event)
}

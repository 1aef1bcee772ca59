package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository is the idempotent transaction store. The provider transaction id
// is unique: the first write wins and later inserts report ErrDuplicateEvent.
type Repository interface {
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*Event, error)
	GetByProviderID(ctx context.Context, providerTransactionID string) (*Event, error)

	// LockByID acquires a row lock for the rest of the transaction
	LockByID(ctx context.Context, id uuid.UUID) (*Event, error)

	// UpdateStatus persists status and match links only if the row is still in from
	UpdateStatus(ctx context.Context, event *Event, from Status) error

	// ExistingProviderIDs returns the subset of ids already stored
	ExistingProviderIDs(ctx context.Context, providerTransactionIDs []string) (map[string]struct{}, error)
	ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*Event, error)
	CountByStatus(ctx context.Context, status Status) (int64, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrDuplicateEvent indicates the provider transaction id is already stored
type ErrDuplicateEvent struct {
	ProviderTransactionID string
}

func (e ErrDuplicateEvent) Error() string {
	return "transaction event already exists: " + e.ProviderTransactionID
}

// Is implements the errors.Is interface for ErrDuplicateEvent
func (e ErrDuplicateEvent) Is(target error) bool {
	t, ok := target.(ErrDuplicateEvent)
	if !ok {
		return false
	}
	return t.ProviderTransactionID == "" || t.ProviderTransactionID == e.ProviderTransactionID
}

// ErrEventNotFound indicates a missing transaction event
type ErrEventNotFound struct {
	Key string
}

func (e ErrEventNotFound) Error() string {
	return "transaction event not found: " + e.Key
}

// Is implements the errors.Is interface for ErrEventNotFound
func (e ErrEventNotFound) Is(target error) bool {
	t, ok := target.(ErrEventNotFound)
	if !ok {
		return false
	}
	return t.Key == "" || t.Key == e.Key
}

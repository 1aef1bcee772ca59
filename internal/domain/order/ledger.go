package order

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Ledger is the order store as seen by the matcher and the mutator
type Ledger interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// LockByID acquires a row lock for the rest of the transaction
	LockByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindEligible locks the oldest PENDING_PAYMENT order on the account whose
	// expected amount is within tolerance. It returns nil without error when
	// nothing qualifies.
	FindEligible(ctx context.Context, accountID uuid.UUID, amount, tolerance int64, currency string) (*Order, error)

	// MarkPaymentReceived links a PENDING_PAYMENT order to its funding event
	MarkPaymentReceived(ctx context.Context, order *Order) error
	WithTx(tx pgx.Tx) Ledger
}

// ErrOrderNotFound indicates a missing order
type ErrOrderNotFound struct {
	ID uuid.UUID
}

func (e ErrOrderNotFound) Error() string {
	return "order not found: " + e.ID.String()
}

// Is implements the errors.Is interface for ErrOrderNotFound
func (e ErrOrderNotFound) Is(target error) bool {
	t, ok := target.(ErrOrderNotFound)
	if !ok {
		return false
	}
	return t.ID == uuid.Nil || t.ID == e.ID
}

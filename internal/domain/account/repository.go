package account

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines virtual IBAN account persistence operations
type Repository interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByIBAN(ctx context.Context, iban string) (*Account, error)

	// Credit atomically adds amount to one account row and returns the new balance
	Credit(ctx context.Context, id uuid.UUID, amount int64) (int64, error)

	// ListActiveBySegregatedAccount returns ACTIVE accounts of one grouping ordered by IBAN
	ListActiveBySegregatedAccount(ctx context.Context, segregatedAccountID string) ([]*Account, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrAccountNotFound indicates missing account
type ErrAccountNotFound struct {
	Key string
}

func (e ErrAccountNotFound) Error() string {
	return "account not found: " + e.Key
}

// Is implements the errors.Is interface for ErrAccountNotFound
func (e ErrAccountNotFound) Is(target error) bool {
	t, ok := target.(ErrAccountNotFound)
	if !ok {
		return false
	}
	return t.Key == "" || t.Key == e.Key
}

// ErrDuplicateIBAN indicates IBAN uniqueness violation
type ErrDuplicateIBAN struct {
	IBAN string
}

func (e ErrDuplicateIBAN) Error() string {
	return "account with IBAN already exists: " + e.IBAN
}

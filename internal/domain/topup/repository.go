package topup

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository manages top-up request persistence
type Repository interface {
	Create(ctx context.Context, request *Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*Request, error)

	// LockByID acquires a row lock for the rest of the transaction
	LockByID(ctx context.Context, id uuid.UUID) (*Request, error)

	// FindPendingMatch locks the oldest PENDING, unexpired request on the account
	// whose reference equals reference and whose amount is within tolerance.
	// It returns nil without error when nothing qualifies.
	FindPendingMatch(ctx context.Context, accountID uuid.UUID, reference string, amount, tolerance int64, currency string, now time.Time) (*Request, error)

	// MarkCompleted settles a request that is still PENDING or MATCHED
	MarkCompleted(ctx context.Context, id uuid.UUID, eventID uuid.UUID, completedAt time.Time) error

	// ExpireStale moves PENDING requests whose expiry passed to EXPIRED
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrRequestNotFound indicates a missing or no longer pending top-up request
type ErrRequestNotFound struct {
	ID uuid.UUID
}

func (e ErrRequestNotFound) Error() string {
	return "top-up request not found: " + e.ID.String()
}

// Is implements the errors.Is interface for ErrRequestNotFound
func (e ErrRequestNotFound) Is(target error) bool {
	t, ok := target.(ErrRequestNotFound)
	if !ok {
		return false
	}
	return t.ID == uuid.Nil || t.ID == e.ID
}

// ErrDuplicateReference indicates reference uniqueness violation
type ErrDuplicateReference struct {
	Reference string
}

func (e ErrDuplicateReference) Error() string {
	return "top-up reference already exists: " + e.Reference
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/viban-reconciler/internal/domain/topup"
	"github.com/viban-reconciler/internal/platform/persistence"
)

const topUpColumns = `id, account_id, reference, expected_amount, currency, status, matched_event_id, created_at, expires_at, completed_at`

// TopUpRepository implements topup.Repository for PostgreSQL
type TopUpRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewTopUpRepository creates a new PostgreSQL top-up request repository
func NewTopUpRepository(logger *slog.Logger, db *persistence.PostgresDB) topup.Repository {
	return &TopUpRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *TopUpRepository) WithTx(tx pgx.Tx) topup.Repository {
	return &TopUpRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a PENDING top-up request
func (r *TopUpRepository) Create(ctx context.Context, req *topup.Request) error {
	query := `
		INSERT INTO top_up_requests (` + topUpColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.querier.Exec(ctx, query,
		req.ID,
		req.AccountID,
		req.Reference,
		req.ExpectedAmount,
		req.Currency,
		req.Status,
		req.MatchedEventID,
		req.CreatedAt,
		req.ExpiresAt,
		req.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "top_up_requests_reference_key") {
			return topup.ErrDuplicateReference{Reference: req.Reference}
		}
		r.logger.Error("Failed to create top-up request", "reference", req.Reference, "error", err)
		return fmt.Errorf("failed to create top-up request: %w", err)
	}

	return nil
}

// GetByID retrieves a top-up request
func (r *TopUpRepository) GetByID(ctx context.Context, id uuid.UUID) (*topup.Request, error) {
	query := `SELECT ` + topUpColumns + ` FROM top_up_requests WHERE id = $1`
	return r.getOne(ctx, id, query)
}

// LockByID retrieves a top-up request and holds its row lock
func (r *TopUpRepository) LockByID(ctx context.Context, id uuid.UUID) (*topup.Request, error) {
	query := `SELECT ` + topUpColumns + ` FROM top_up_requests WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, id, query)
}

func (r *TopUpRepository) getOne(ctx context.Context, id uuid.UUID, query string) (*topup.Request, error) {
	req, err := scanTopUp(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, topup.ErrRequestNotFound{ID: id}
		}
		r.logger.Error("Failed to get top-up request", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get top-up request: %w", err)
	}
	return req, nil
}

// FindPendingMatch locks the oldest qualifying request. SKIP LOCKED is not
// used: a concurrent matcher holding the row must be waited for so that it
// is seen as COMPLETED afterwards.
func (r *TopUpRepository) FindPendingMatch(ctx context.Context, accountID uuid.UUID, reference string, amount, tolerance int64, currency string, now time.Time) (*topup.Request, error) {
	if reference == "" {
		return nil, nil
	}

	query := `
		SELECT ` + topUpColumns + `
		FROM top_up_requests
		WHERE account_id = $1
		  AND reference = $2
		  AND currency = $3
		  AND status = $4
		  AND expires_at > $5
		  AND ABS(expected_amount - $6) <= $7
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE
	`

	req, err := scanTopUp(r.querier.QueryRow(ctx, query,
		accountID, reference, currency, topup.StatusPending, now, amount, tolerance))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to find pending top-up request",
			"account_id", accountID.String(),
			"reference", reference,
			"error", err,
		)
		return nil, fmt.Errorf("failed to find pending top-up request: %w", err)
	}

	return req, nil
}

// MarkCompleted settles a request still awaiting funds
func (r *TopUpRepository) MarkCompleted(ctx context.Context, id uuid.UUID, eventID uuid.UUID, completedAt time.Time) error {
	query := `
		UPDATE top_up_requests
		SET status = $1, matched_event_id = $2, completed_at = $3
		WHERE id = $4 AND status IN ($5, $6)
	`

	result, err := r.querier.Exec(ctx, query,
		topup.StatusCompleted, eventID, completedAt, id, topup.StatusPending, topup.StatusMatched)
	if err != nil {
		r.logger.Error("Failed to complete top-up request", "id", id.String(), "error", err)
		return fmt.Errorf("failed to complete top-up request: %w", err)
	}

	if result.RowsAffected() == 0 {
		return topup.ErrRequestNotFound{ID: id}
	}

	return nil
}

// ExpireStale moves overdue PENDING requests to EXPIRED
func (r *TopUpRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE top_up_requests
		SET status = $1
		WHERE status = $2 AND expires_at <= $3
	`

	result, err := r.querier.Exec(ctx, query, topup.StatusExpired, topup.StatusPending, now)
	if err != nil {
		r.logger.Error("Failed to expire top-up requests", "error", err)
		return 0, fmt.Errorf("failed to expire top-up requests: %w", err)
	}

	return result.RowsAffected(), nil
}

func scanTopUp(row pgx.Row) (*topup.Request, error) {
	var req topup.Request
	err := row.Scan(
		&req.ID,
		&req.AccountID,
		&req.Reference,
		&req.ExpectedAmount,
		&req.Currency,
		&req.Status,
		&req.MatchedEventID,
		&req.CreatedAt,
		&req.ExpiresAt,
		&req.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

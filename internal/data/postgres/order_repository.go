package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/viban-reconciler/internal/domain/order"
	"github.com/viban-reconciler/internal/platform/persistence"
)

const orderColumns = `id, account_id, expected_amount, currency, status, payment_event_id, created_at, paid_at`

// OrderRepository implements order.Ledger on the orders table
type OrderRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewOrderRepository creates a new PostgreSQL order ledger
func NewOrderRepository(logger *slog.Logger, db *persistence.PostgresDB) order.Ledger {
	return &OrderRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *OrderRepository) WithTx(tx pgx.Tx) order.Ledger {
	return &OrderRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// GetByID retrieves an order
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return r.getOne(ctx, id, query)
}

// LockByID retrieves an order and holds its row lock
func (r *OrderRepository) LockByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, id, query)
}

func (r *OrderRepository) getOne(ctx context.Context, id uuid.UUID, query string) (*order.Order, error) {
	o, err := scanOrder(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound{ID: id}
		}
		r.logger.Error("Failed to get order", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

// FindEligible locks the oldest order awaiting a payment of this amount
func (r *OrderRepository) FindEligible(ctx context.Context, accountID uuid.UUID, amount, tolerance int64, currency string) (*order.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE account_id = $1
		  AND currency = $2
		  AND status = $3
		  AND ABS(expected_amount - $4) <= $5
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE
	`

	o, err := scanOrder(r.querier.QueryRow(ctx, query,
		accountID, currency, order.StatusPendingPayment, amount, tolerance))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to find eligible order", "account_id", accountID.String(), "error", err)
		return nil, fmt.Errorf("failed to find eligible order: %w", err)
	}

	return o, nil
}

// MarkPaymentReceived persists the order's link to its funding event
func (r *OrderRepository) MarkPaymentReceived(ctx context.Context, o *order.Order) error {
	query := `
		UPDATE orders
		SET status = $1, payment_event_id = $2, paid_at = $3
		WHERE id = $4 AND status = $5
	`

	result, err := r.querier.Exec(ctx, query,
		o.Status, o.PaymentEventID, o.PaidAt, o.ID, order.StatusPendingPayment)
	if err != nil {
		r.logger.Error("Failed to mark order paid", "id", o.ID.String(), "error", err)
		return fmt.Errorf("failed to mark order paid: %w", err)
	}

	if result.RowsAffected() == 0 {
		return order.ErrOrderNotFound{ID: o.ID}
	}

	return nil
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID,
		&o.AccountID,
		&o.ExpectedAmount,
		&o.Currency,
		&o.Status,
		&o.PaymentEventID,
		&o.CreatedAt,
		&o.PaidAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

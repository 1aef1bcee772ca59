package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/viban-reconciler/internal/domain/payment"
	"github.com/viban-reconciler/internal/platform/persistence"
)

const eventColumns = `id, provider_transaction_id, segregated_account_id, amount, currency, direction,
		beneficiary_iban, sender_name, sender_iban, reference, vop_status, raw_payload, source,
		status, status_reason, matched_topup_id, matched_order_id, received_at, updated_at`

// EventRepository implements payment.Repository for PostgreSQL. The unique
// index on provider_transaction_id is the single-writer gate shared by the
// webhook gateway and the polling job.
type EventRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewEventRepository creates a new PostgreSQL transaction event repository
func NewEventRepository(logger *slog.Logger, db *persistence.PostgresDB) payment.Repository {
	return &EventRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx binds the repository to a transaction
func (r *EventRepository) WithTx(tx pgx.Tx) payment.Repository {
	return &EventRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create inserts a new event. A second insert for the same provider
// transaction id returns payment.ErrDuplicateEvent and writes nothing.
func (r *EventRepository) Create(ctx context.Context, event *payment.Event) error {
	query := `
		INSERT INTO transaction_events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err := r.querier.Exec(ctx, query,
		event.ID,
		event.ProviderTransactionID,
		event.SegregatedAccountID,
		event.Amount,
		event.Currency,
		event.Direction,
		event.BeneficiaryIBAN,
		event.SenderName,
		event.SenderIBAN,
		event.Reference,
		event.VOPStatus,
		event.RawPayload,
		event.Source,
		event.Status,
		event.StatusReason,
		event.MatchedTopUpID,
		event.MatchedOrderID,
		event.ReceivedAt,
		event.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "transaction_events_provider_transaction_id_key") {
			return payment.ErrDuplicateEvent{ProviderTransactionID: event.ProviderTransactionID}
		}
		r.logger.Error("Failed to create transaction event",
			"provider_transaction_id", event.ProviderTransactionID,
			"error", err,
		)
		return fmt.Errorf("failed to create transaction event: %w", err)
	}

	return nil
}

// GetByID retrieves an event by its internal id
func (r *EventRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM transaction_events WHERE id = $1`
	return r.getOne(ctx, id.String(), query, id)
}

// GetByProviderID retrieves an event by the provider's transaction id
func (r *EventRepository) GetByProviderID(ctx context.Context, providerTransactionID string) (*payment.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM transaction_events WHERE provider_transaction_id = $1`
	return r.getOne(ctx, providerTransactionID, query, providerTransactionID)
}

// LockByID reads an event and holds its row lock until the transaction ends.
// Only meaningful on a repository bound with WithTx.
func (r *EventRepository) LockByID(ctx context.Context, id uuid.UUID) (*payment.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM transaction_events WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, id.String(), query, id)
}

func (r *EventRepository) getOne(ctx context.Context, key, query string, arg any) (*payment.Event, error) {
	event, err := scanEvent(r.querier.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrEventNotFound{Key: key}
		}
		r.logger.Error("Failed to get transaction event", "key", key, "error", err)
		return nil, fmt.Errorf("failed to get transaction event: %w", err)
	}
	return event, nil
}

// UpdateStatus persists the status, reason and match links of an event that
// is still in from. A row that moved on in the meantime yields
// payment.ErrInvalidTransition.
func (r *EventRepository) UpdateStatus(ctx context.Context, event *payment.Event, from payment.Status) error {
	query := `
		UPDATE transaction_events
		SET status = $1, status_reason = $2, matched_topup_id = $3, matched_order_id = $4, updated_at = $5
		WHERE id = $6 AND status = $7
	`

	result, err := r.querier.Exec(ctx, query,
		event.Status,
		event.StatusReason,
		event.MatchedTopUpID,
		event.MatchedOrderID,
		event.UpdatedAt,
		event.ID,
		from,
	)
	if err != nil {
		r.logger.Error("Failed to update transaction event status",
			"id", event.ID.String(),
			"status", string(event.Status),
			"error", err,
		)
		return fmt.Errorf("failed to update transaction event status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return payment.ErrInvalidTransition{EventID: event.ID, From: from, To: event.Status}
	}

	return nil
}

// ExistingProviderIDs returns which of the given provider ids are already stored
func (r *EventRepository) ExistingProviderIDs(ctx context.Context, providerTransactionIDs []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{}, len(providerTransactionIDs))
	if len(providerTransactionIDs) == 0 {
		return existing, nil
	}

	query := `
		SELECT provider_transaction_id
		FROM transaction_events
		WHERE provider_transaction_id = ANY($1)
	`

	rows, err := r.querier.Query(ctx, query, providerTransactionIDs)
	if err != nil {
		r.logger.Error("Failed to query existing provider ids", "count", len(providerTransactionIDs), "error", err)
		return nil, fmt.Errorf("failed to query existing provider ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan provider id: %w", err)
		}
		existing[id] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over provider ids: %w", err)
	}

	return existing, nil
}

// ListByStatus returns events in a status, newest first
func (r *EventRepository) ListByStatus(ctx context.Context, status payment.Status, limit, offset int) ([]*payment.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM transaction_events
		WHERE status = $1
		ORDER BY received_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.querier.Query(ctx, query, status, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list transaction events", "status", string(status), "error", err)
		return nil, fmt.Errorf("failed to list transaction events: %w", err)
	}
	defer rows.Close()

	events := make([]*payment.Event, 0, limit)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			r.logger.Error("Failed to scan transaction event", "error", err)
			return nil, fmt.Errorf("failed to scan transaction event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over transaction events", "error", err)
		return nil, fmt.Errorf("error iterating over transaction events: %w", err)
	}

	return events, nil
}

// CountByStatus counts events in a status
func (r *EventRepository) CountByStatus(ctx context.Context, status payment.Status) (int64, error) {
	var count int64
	err := r.querier.QueryRow(ctx, `SELECT COUNT(*) FROM transaction_events WHERE status = $1`, status).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count transaction events", "status", string(status), "error", err)
		return 0, fmt.Errorf("failed to count transaction events: %w", err)
	}
	return count, nil
}

func scanEvent(row pgx.Row) (*payment.Event, error) {
	var e payment.Event
	err := row.Scan(
		&e.ID,
		&e.ProviderTransactionID,
		&e.SegregatedAccountID,
		&e.Amount,
		&e.Currency,
		&e.Direction,
		&e.BeneficiaryIBAN,
		&e.SenderName,
		&e.SenderIBAN,
		&e.Reference,
		&e.VOPStatus,
		&e.RawPayload,
		&e.Source,
		&e.Status,
		&e.StatusReason,
		&e.MatchedTopUpID,
		&e.MatchedOrderID,
		&e.ReceivedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

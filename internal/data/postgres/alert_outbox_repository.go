package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/viban-reconciler/internal/domain/alert"
	"github.com/viban-reconciler/internal/domain/shared"
	"github.com/viban-reconciler/internal/platform/persistence"
)

// AlertOutboxRepository implements the alert.Repository interface for PostgreSQL
type AlertOutboxRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewAlertOutboxRepository creates a new PostgreSQL alert outbox repository
func NewAlertOutboxRepository(logger *slog.Logger, db *persistence.PostgresDB) alert.Repository {
	return &AlertOutboxRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations.
func (r *AlertOutboxRepository) WithTx(tx pgx.Tx) alert.Repository {
	return &AlertOutboxRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new alert in pending status.
// The message will be picked up by the alert outbox poller.
func (r *AlertOutboxRepository) Create(ctx context.Context, message *alert.Message) error {
	query := `
		INSERT INTO alert_outbox (alert_id, payload, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.querier.QueryRow(ctx, query,
		message.AlertID,
		message.Payload,
		message.Status,
		message.Attempts,
		message.CreatedAt,
	).Scan(&message.ID)

	if err != nil {
		r.logger.Error("Failed to create alert outbox message",
			"alert_id", message.AlertID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to create alert outbox message: %w", err)
	}

	return nil
}

// GetPending retrieves a batch of pending alerts in FIFO order.
func (r *AlertOutboxRepository) GetPending(ctx context.Context, limit int) ([]*alert.Message, error) {
	query := `
		SELECT id, alert_id, payload, status, attempts, created_at, last_attempt_at
		FROM alert_outbox
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.querier.Query(ctx, query, shared.OutboxStatusPending, limit)
	if err != nil {
		r.logger.Error("Failed to get pending alert outbox messages", "error", err)
		return nil, fmt.Errorf("failed to get pending alert outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []*alert.Message
	for rows.Next() {
		var message alert.Message
		err := rows.Scan(
			&message.ID,
			&message.AlertID,
			&message.Payload,
			&message.Status,
			&message.Attempts,
			&message.CreatedAt,
			&message.LastAttemptAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan alert outbox message", "error", err)
			return nil, fmt.Errorf("failed to scan alert outbox message: %w", err)
		}
		messages = append(messages, &message)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over alert outbox messages", "error", err)
		return nil, fmt.Errorf("error iterating over alert outbox messages: %w", err)
	}

	return messages, nil
}

// UpdateStatus updates the message status and last attempt timestamp.
func (r *AlertOutboxRepository) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	query := `
		UPDATE alert_outbox
		SET status = $1, last_attempt_at = $2
		WHERE id = $3
	`

	result, err := r.querier.Exec(ctx, query, status, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to update alert outbox message status",
			"id", id,
			"status", string(status),
			"error", err,
		)
		return fmt.Errorf("failed to update alert outbox message status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return alert.ErrMessageNotFound{ID: id}
	}

	return nil
}

// IncrementAttempts increments the retry counter and updates last attempt time.
func (r *AlertOutboxRepository) IncrementAttempts(ctx context.Context, id int64) error {
	query := `
		UPDATE alert_outbox
		SET attempts = attempts + 1, last_attempt_at = $1
		WHERE id = $2
	`

	result, err := r.querier.Exec(ctx, query, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to increment alert outbox message attempts",
			"id", id,
			"error", err,
		)
		return fmt.Errorf("failed to increment alert outbox message attempts: %w", err)
	}

	if result.RowsAffected() == 0 {
		return alert.ErrMessageNotFound{ID: id}
	}

	return nil
}

package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/viban-reconciler/internal/domain/audit"
	"github.com/viban-reconciler/internal/platform/persistence"
)

const auditColumns = `id, type, severity, action, transaction_id, actor, metadata, reason, created_at`

// AuditRepository implements audit.Repository. Rows are insert-only.
type AuditRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewAuditRepository creates a new PostgreSQL audit repository
func NewAuditRepository(logger *slog.Logger, db *persistence.PostgresDB) audit.Repository {
	return &AuditRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *AuditRepository) WithTx(tx pgx.Tx) audit.Repository {
	return &AuditRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Append inserts one audit event
func (r *AuditRepository) Append(ctx context.Context, event *audit.Event) error {
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode audit metadata: %w", err)
	}

	query := `
		INSERT INTO audit_events (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.querier.Exec(ctx, query,
		event.ID,
		event.Type,
		event.Severity,
		event.Action,
		event.TransactionID,
		event.Actor,
		metadata,
		event.Reason,
		event.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to append audit event",
			"action", event.Action,
			"transaction_id", event.TransactionID,
			"error", err,
		)
		return fmt.Errorf("failed to append audit event: %w", err)
	}

	return nil
}

// ListByTransaction returns the trail of one provider transaction in order
func (r *AuditRepository) ListByTransaction(ctx context.Context, providerTransactionID string) ([]*audit.Event, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_events
		WHERE transaction_id = $1
		ORDER BY created_at ASC
	`
	return r.list(ctx, query, providerTransactionID)
}

// ListRecent returns the newest events at or above a severity
func (r *AuditRepository) ListRecent(ctx context.Context, severity audit.Severity, limit int) ([]*audit.Event, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_events
		WHERE severity = ANY($1)
		ORDER BY created_at DESC
		LIMIT $2
	`
	return r.list(ctx, query, severitiesFrom(severity), limit)
}

func (r *AuditRepository) list(ctx context.Context, query string, args ...any) ([]*audit.Event, error) {
	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query audit events", "error", err)
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []*audit.Event
	for rows.Next() {
		var (
			event    audit.Event
			metadata []byte
		)
		err := rows.Scan(
			&event.ID,
			&event.Type,
			&event.Severity,
			&event.Action,
			&event.TransactionID,
			&event.Actor,
			&metadata,
			&event.Reason,
			&event.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan audit event", "error", err)
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode audit metadata: %w", err)
			}
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over audit events", "error", err)
		return nil, fmt.Errorf("error iterating over audit events: %w", err)
	}

	return events, nil
}

var severityOrder = []audit.Severity{
	audit.SeverityInfo,
	audit.SeverityWarning,
	audit.SeverityError,
	audit.SeverityCritical,
}

// severitiesFrom lists floor and every severity above it
func severitiesFrom(floor audit.Severity) []string {
	for i, s := range severityOrder {
		if s == floor {
			out := make([]string, 0, len(severityOrder)-i)
			for _, above := range severityOrder[i:] {
				out = append(out, string(above))
			}
			return out
		}
	}
	out := make([]string, 0, len(severityOrder))
	for _, s := range severityOrder {
		out = append(out, string(s))
	}
	return out
}

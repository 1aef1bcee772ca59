// Package postgres provides PostgreSQL implementations of the domain repositories.
// Every repository can be rebound to a transaction with WithTx so that the
// ledger mutator's balance, request, event and audit writes commit together.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/viban-reconciler/internal/domain/account"
	"github.com/viban-reconciler/internal/platform/persistence"
)

const accountColumns = `id, iban, owner_id, currency, balance, status, segregated_account_id, version, created_at, updated_at`

// AccountRepository implements the account.Repository interface for PostgreSQL
type AccountRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewAccountRepository creates a new PostgreSQL account repository.
func NewAccountRepository(logger *slog.Logger, db *persistence.PostgresDB) account.Repository {
	return &AccountRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction. The returned repository
// uses tx for all database operations.
func (r *AccountRepository) WithTx(tx pgx.Tx) account.Repository {
	return &AccountRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new virtual IBAN account
func (r *AccountRepository) Create(ctx context.Context, acc *account.Account) error {
	query := `
		INSERT INTO virtual_iban_accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.querier.Exec(ctx, query,
		acc.ID,
		acc.IBAN,
		acc.OwnerID,
		acc.Currency,
		acc.Balance,
		acc.Status,
		acc.SegregatedAccountID,
		acc.Version,
		acc.CreatedAt,
		acc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "virtual_iban_accounts_iban_key") {
			return account.ErrDuplicateIBAN{IBAN: acc.IBAN}
		}
		r.logger.Error("Failed to create account", "error", err)
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetByID retrieves an account by its ID
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM virtual_iban_accounts WHERE id = $1`

	acc, err := scanAccount(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrAccountNotFound{Key: id.String()}
		}
		r.logger.Error("Failed to get account", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return acc, nil
}

// GetByIBAN retrieves an account by its virtual IBAN
func (r *AccountRepository) GetByIBAN(ctx context.Context, iban string) (*account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM virtual_iban_accounts WHERE iban = $1`

	acc, err := scanAccount(r.querier.QueryRow(ctx, query, iban))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrAccountNotFound{Key: iban}
		}
		r.logger.Error("Failed to get account by IBAN", "iban", iban, "error", err)
		return nil, fmt.Errorf("failed to get account by IBAN: %w", err)
	}

	return acc, nil
}

// Credit adds amount to the balance in a single statement so that concurrent
// credits to the same row are serialized by the row lock.
func (r *AccountRepository) Credit(ctx context.Context, id uuid.UUID, amount int64) (int64, error) {
	query := `
		UPDATE virtual_iban_accounts
		SET balance = balance + $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND status = $3
		RETURNING balance
	`

	var balance int64
	err := r.querier.QueryRow(ctx, query, amount, id, account.StatusActive).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, account.ErrAccountNotFound{Key: id.String()}
		}
		r.logger.Error("Failed to credit account", "id", id.String(), "error", err)
		return 0, fmt.Errorf("failed to credit account: %w", err)
	}

	return balance, nil
}

// ListActiveBySegregatedAccount lists ACTIVE accounts of one grouping
func (r *AccountRepository) ListActiveBySegregatedAccount(ctx context.Context, segregatedAccountID string) ([]*account.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM virtual_iban_accounts
		WHERE segregated_account_id = $1 AND status = $2
		ORDER BY iban
	`

	rows, err := r.querier.Query(ctx, query, segregatedAccountID, account.StatusActive)
	if err != nil {
		r.logger.Error("Failed to list accounts", "segregated_account_id", segregatedAccountID, "error", err)
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*account.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			r.logger.Error("Failed to scan account", "error", err)
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over accounts", "error", err)
		return nil, fmt.Errorf("error iterating over accounts: %w", err)
	}

	return accounts, nil
}

func scanAccount(row pgx.Row) (*account.Account, error) {
	var acc account.Account
	err := row.Scan(
		&acc.ID,
		&acc.IBAN,
		&acc.OwnerID,
		&acc.Currency,
		&acc.Balance,
		&acc.Status,
		&acc.SegregatedAccountID,
		&acc.Version,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

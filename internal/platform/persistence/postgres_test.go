package persistence

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*PostgresDB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	return &PostgresDB{
		begin:   mock,
		logger:  slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})),
		retries: maxTxAttempts,
	}, mock
}

func TestPostgresDB_ExecuteTx(t *testing.T) {
	ctx := context.Background()

	t.Run("Commit", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE virtual_iban_accounts").WithArgs(int64(500)).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		err := db.ExecuteTx(ctx, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, "UPDATE virtual_iban_accounts SET balance = balance + $1", int64(500))
			return err
		})

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ErrorRollsBack", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("currency mismatch")
		err := db.ExecuteTx(ctx, func(tx pgx.Tx) error { return boom })

		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("SerializationFailureIsRetried", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectRollback()
		mock.ExpectBegin()
		mock.ExpectCommit()

		calls := 0
		err := db.ExecuteTx(ctx, func(tx pgx.Tx) error {
			calls++
			if calls == 1 {
				return &pgconn.PgError{Code: serializationFailureCode}
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 2, calls)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DeadlockRetriesAreBounded", func(t *testing.T) {
		db, mock := newMockDB(t)
		for i := 0; i < maxTxAttempts; i++ {
			mock.ExpectBegin()
			mock.ExpectRollback()
		}

		calls := 0
		err := db.ExecuteTx(ctx, func(tx pgx.Tx) error {
			calls++
			return &pgconn.PgError{Code: deadlockDetectedCode}
		})

		require.Error(t, err)
		assert.True(t, isTxConflict(err))
		assert.Equal(t, maxTxAttempts, calls)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("BeginFailure", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

		err := db.ExecuteTx(ctx, func(tx pgx.Tx) error {
			t.Fatal("fn must not run without a transaction")
			return nil
		})

		assert.ErrorContains(t, err, "failed to begin transaction")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("PanicRollsBack", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.PanicsWithValue(t, "boom", func() {
			_ = db.ExecuteTx(ctx, func(tx pgx.Tx) error { panic("boom") })
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestIsTxConflict(t *testing.T) {
	assert.True(t, isTxConflict(&pgconn.PgError{Code: serializationFailureCode}))
	assert.True(t, isTxConflict(errors.Join(errors.New("match"), &pgconn.PgError{Code: deadlockDetectedCode})))
	assert.False(t, isTxConflict(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isTxConflict(errors.New("plain")))
}

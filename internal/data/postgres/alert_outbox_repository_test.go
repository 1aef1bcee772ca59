package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viban-reconciler/internal/domain/alert"
	"github.com/viban-reconciler/internal/domain/shared"
)

func TestAlertOutboxRepository_Create(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &AlertOutboxRepository{querier: mock, logger: newTestLogger()}
	msg, err := alert.NewMessage(alert.New("balance_validator", "balance mismatch", nil))
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO alert_outbox")).
		WithArgs(msg.AlertID, msg.Payload, shared.OutboxStatusPending, 0, msg.CreatedAt).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

	require.NoError(t, repo.Create(ctx, msg))
	assert.Equal(t, int64(42), msg.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertOutboxRepository_GetPending(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &AlertOutboxRepository{querier: mock, logger: newTestLogger()}
	alertID := uuid.New()
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM alert_outbox")).
		WithArgs(shared.OutboxStatusPending, 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "alert_id", "payload", "status", "attempts", "created_at", "last_attempt_at"}).
			AddRow(int64(1), alertID, []byte(`{"title":"x"}`), shared.OutboxStatusPending, 0, now, nil))

	messages, err := repo.GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, alertID, messages[0].AlertID)
	assert.Nil(t, messages[0].LastAttemptAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertOutboxRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &AlertOutboxRepository{querier: mock, logger: newTestLogger()}
	query := regexp.QuoteMeta("UPDATE alert_outbox")

	mock.ExpectExec(query).
		WithArgs(shared.OutboxStatusProcessed, pgxmock.AnyArg(), int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	assert.NoError(t, repo.UpdateStatus(ctx, 7, shared.OutboxStatusProcessed))

	mock.ExpectExec(query).
		WithArgs(pgxmock.AnyArg(), int64(8)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	err = repo.IncrementAttempts(ctx, 8)
	var notFound alert.ErrMessageNotFound
	assert.ErrorAs(t, err, &notFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viban-reconciler/internal/domain/account"
	"github.com/viban-reconciler/internal/domain/payment"
)

func TestStore_ExecuteTxRollsBack(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	acc, err := account.NewAccount("DE89370400440532013000", "user", "EUR", "seg-eur")
	require.NoError(t, err)
	require.NoError(t, store.Accounts().Create(ctx, acc))

	err = store.ExecuteTx(ctx, func(tx pgx.Tx) error {
		_, err := store.Accounts().WithTx(tx).Credit(ctx, acc.ID, 10000)
		require.NoError(t, err)
		return ErrInjected
	})
	assert.ErrorIs(t, err, ErrInjected)

	stored, err := store.Accounts().GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.Balance)

	require.NoError(t, store.ExecuteTx(ctx, func(tx pgx.Tx) error {
		_, err := store.Accounts().WithTx(tx).Credit(ctx, acc.ID, 10000)
		return err
	}))
	stored, err = store.Accounts().GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), stored.Balance)
}

func TestEventRepository_UniqueProviderID(t *testing.T) {
	ctx := context.Background()
	events := NewStore().Events()
	now := time.Now()

	first := &payment.Event{ID: uuid.New(), ProviderTransactionID: "tx-1", Status: payment.StatusNew, ReceivedAt: now}
	second := &payment.Event{ID: uuid.New(), ProviderTransactionID: "tx-1", Status: payment.StatusNew, ReceivedAt: now}

	require.NoError(t, events.Create(ctx, first))
	assert.ErrorIs(t, events.Create(ctx, second), payment.ErrDuplicateEvent{})

	stored, err := events.GetByProviderID(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, stored.ID)

	existing, err := events.ExistingProviderIDs(ctx, []string{"tx-1", "tx-2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"tx-1": {}}, existing)
}

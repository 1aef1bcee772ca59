package components

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viban-reconciler/internal/domain/payment"
	"github.com/viban-reconciler/internal/domain/topup"
	"github.com/viban-reconciler/internal/reconciliation/service"
)

func TestResolution_HeldEventCreditedByOperator(t *testing.T) {
	f := newFixture(t)
	request := f.addTopUp(t, "TOPUP-HELD", 10000, time.Time{})

	_, err := f.pipeline.Ingestion.Ingest(f.ctx, creditEvent(t, "tx-held", 10000, "TOPUP-HELD", withVOP("CLOSE_MATCH")))
	require.NoError(t, err)
	require.Equal(t, int64(0), f.balance(t))

	outcome, err := f.pipeline.Resolution.Resolve(f.ctx, service.ResolveCommand{
		ProviderTransactionID: "tx-held",
		TopUpRequestID:        &request.ID,
		Operator:              "alice",
		Reason:                "payee confirmed by phone",
	})
	require.NoError(t, err)
	assert.True(t, outcome.Reconciled)
	assert.Equal(t, int64(10000), f.balance(t))

	trail := f.store.AuditTrail()
	last := trail[len(trail)-1]
	assert.Equal(t, "operator:alice", last.Actor)
	assert.Equal(t, string(payment.StatusHeldVOP), last.Metadata["previous_status"])
	assert.Equal(t, "payee confirmed by phone", last.Metadata["resolution_reason"])

	t.Run("SecondResolutionRejected", func(t *testing.T) {
		_, err := f.pipeline.Resolution.Resolve(f.ctx, service.ResolveCommand{
			ProviderTransactionID: "tx-held",
			TopUpRequestID:        &request.ID,
			Operator:              "bob",
		})
		assert.ErrorIs(t, err, service.ErrNotAwaitingReview)
		assert.Equal(t, int64(10000), f.balance(t))
	})
}

func TestResolution_UnmatchedEventLinkedToOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.pipeline.Ingestion.Ingest(f.ctx, creditEvent(t, "tx-late", 3000, ""))
	require.NoError(t, err)
	require.Equal(t, payment.StatusUnmatched, f.storedEvent(t, "tx-late").Status)

	ord := f.addOrder(t, 3000, time.Now())
	outcome, err := f.pipeline.Resolution.Resolve(f.ctx, service.ResolveCommand{
		ProviderTransactionID: "tx-late",
		OrderID:               &ord.ID,
		Operator:              "carol",
	})
	require.NoError(t, err)
	assert.Equal(t, payment.MatchTypeOrder, outcome.MatchType)

	trail := f.store.AuditTrail()
	last := trail[len(trail)-1]
	assert.Equal(t, "operator:carol", last.Actor)
	assert.NotContains(t, last.Metadata, "resolution_reason")
}

func TestResolution_Validation(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()

	_, err := f.pipeline.Resolution.Resolve(f.ctx, service.ResolveCommand{ProviderTransactionID: "x", Operator: "alice"})
	assert.ErrorIs(t, err, service.ErrResolutionTarget)

	_, err = f.pipeline.Resolution.Resolve(f.ctx, service.ResolveCommand{ProviderTransactionID: "x", TopUpRequestID: &id, OrderID: &id, Operator: "alice"})
	assert.ErrorIs(t, err, service.ErrResolutionTarget)

	_, err = f.pipeline.Resolution.Resolve(f.ctx, service.ResolveCommand{ProviderTransactionID: "x", TopUpRequestID: &id, Operator: " "})
	assert.ErrorIs(t, err, service.ErrOperatorRequired)

	_, err = f.pipeline.Resolution.Resolve(f.ctx, service.ResolveCommand{ProviderTransactionID: "missing", TopUpRequestID: &id, Operator: "alice"})
	assert.ErrorIs(t, err, payment.ErrEventNotFound{})

	_, err = f.pipeline.Ingestion.Ingest(f.ctx, creditEvent(t, "tx-parked", 100, ""))
	require.NoError(t, err)
	_, err = f.pipeline.Resolution.Resolve(f.ctx, service.ResolveCommand{ProviderTransactionID: "tx-parked", TopUpRequestID: &id, Operator: "alice"})
	assert.ErrorIs(t, err, topup.ErrRequestNotFound{})
}

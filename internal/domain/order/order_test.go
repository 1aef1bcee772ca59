package order

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrder_MarkPaid(t *testing.T) {
	o := &Order{ID: uuid.New(), Status: StatusPendingPayment}
	eventID := uuid.New()

	require.NoError(t, o.MarkPaid(eventID, time.Now()))
	assert.Equal(t, StatusPaymentReceived, o.Status)
	assert.Equal(t, eventID, *o.PaymentEventID)
	require.NotNil(t, o.PaidAt)

	assert.ErrorIs(t, o.MarkPaid(uuid.New(), time.Now()), ErrNotAwaitingPayment)
	assert.Equal(t, eventID, *o.PaymentEventID)
}

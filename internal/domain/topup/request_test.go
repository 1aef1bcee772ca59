package topup

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viban-reconciler/internal/domain/shared"
)

func TestNewRequest(t *testing.T) {
	accountID := uuid.New()

	req, err := NewRequest(accountID, " TOPUP-ABC123 ", 10000, "eur", 72*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "TOPUP-ABC123", req.Reference)
	assert.Equal(t, "EUR", req.Currency)
	assert.Equal(t, StatusPending, req.Status)
	assert.Equal(t, 72*time.Hour, req.ExpiresAt.Sub(req.CreatedAt))
	assert.Nil(t, req.MatchedEventID)

	_, err = NewRequest(accountID, "", 10000, "EUR", time.Hour)
	assert.ErrorIs(t, err, ErrEmptyReference)

	_, err = NewRequest(accountID, "REF", 0, "EUR", time.Hour)
	assert.ErrorIs(t, err, shared.ErrInvalidAmount)
}

func TestRequest_Accepts(t *testing.T) {
	now := time.Now()
	req := &Request{
		Reference:      "TOPUP-ABC123",
		ExpectedAmount: 10000,
		Currency:       "EUR",
		Status:         StatusPending,
		ExpiresAt:      now.Add(time.Hour),
	}

	testCases := []struct {
		name      string
		reference string
		amount    int64
		currency  string
		at        time.Time
		want      bool
	}{
		{"ExactMatch", "TOPUP-ABC123", 10000, "EUR", now, true},
		{"WithinTolerance", "TOPUP-ABC123", 10001, "EUR", now, true},
		{"OutsideTolerance", "TOPUP-ABC123", 10002, "EUR", now, false},
		{"OtherReference", "TOPUP-XYZ", 10000, "EUR", now, false},
		{"EmptyReference", "", 10000, "EUR", now, false},
		{"OtherCurrency", "TOPUP-ABC123", 10000, "USD", now, false},
		{"Expired", "TOPUP-ABC123", 10000, "EUR", now.Add(2 * time.Hour), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, req.Accepts(tc.reference, tc.amount, tc.currency, 1, tc.at))
		})
	}
}

func TestRequest_Complete(t *testing.T) {
	req := &Request{Status: StatusPending}
	eventID := uuid.New()
	at := time.Now()

	require.NoError(t, req.Complete(eventID, at))
	assert.Equal(t, StatusCompleted, req.Status)
	assert.Equal(t, eventID, *req.MatchedEventID)
	assert.Equal(t, at, *req.CompletedAt)

	assert.ErrorIs(t, req.Complete(uuid.New(), at), ErrNotPending)

	expired := &Request{Status: StatusExpired}
	assert.ErrorIs(t, expired.Complete(eventID, at), ErrNotPending)
}

func TestErrRequestNotFound_Is(t *testing.T) {
	id := uuid.New()
	err := ErrRequestNotFound{ID: id}
	assert.True(t, errors.Is(err, ErrRequestNotFound{}))
	assert.True(t, errors.Is(err, ErrRequestNotFound{ID: id}))
	assert.False(t, errors.Is(err, ErrRequestNotFound{ID: uuid.New()}))
}

package provider

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viban-reconciler/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(slog.Default(), &config.ProviderConfig{
		BaseURL: server.URL + "/",
		APIKey:  "secret-key",
		Timeout: 2 * time.Second,
	})
}

func TestClient_ListPayments(t *testing.T) {
	since := time.Date(2026, 3, 2, 9, 45, 0, 0, time.UTC)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/prov-eur/payments", r.URL.Path)
		assert.Equal(t, "2026-03-02T09:45:00Z", r.URL.Query().Get("since"))
		assert.Equal(t, "Bearer secret-key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"payments":[{"id":"pay-1"},{"id":"pay-2"}]}`))
	})

	ids, err := client.ListPayments(context.Background(), "prov-eur", since)
	require.NoError(t, err)
	assert.Equal(t, []string{"pay-1", "pay-2"}, ids)
}

func TestClient_GetPayment(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/accounts/prov-usd/payments/pay-77", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"pay-77","status":"Settled","amount":"50.00","currency":"USD","createdAt":"2026-03-02T10:00:00Z"}`))
	})

	detail, err := client.GetPayment(context.Background(), "prov-usd", "pay-77")
	require.NoError(t, err)
	assert.True(t, detail.IsSettled())
	assert.True(t, decimal.RequireFromString("50").Equal(detail.Amount))
	assert.Equal(t, "USD", detail.Currency)
}

func TestClient_ListTransactions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2026-03-02", r.URL.Query().Get("since"))
		_, _ = w.Write([]byte(`{"transactions":[{"id":"bk-1","amount":50.00,"currency":"USD","credit":true,"iban":"DE89370400440532013000","bookedAt":"2026-03-02T10:00:05Z"}]}`))
	})

	txs, err := client.ListTransactions(context.Background(), "prov-usd", time.Date(2026, 3, 2, 9, 45, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.True(t, txs[0].Credit)
	assert.Equal(t, "DE89370400440532013000", txs[0].IBAN)
}

func TestClient_GetBalance(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"balance":"1000.00","currency":"EUR"}`))
	})

	balance, err := client.GetBalance(context.Background(), "prov-eur")
	require.NoError(t, err)
	assert.Equal(t, "1000.00", balance.Balance.StringFixed(2))
	assert.Equal(t, "EUR", balance.Currency)
}

func TestClient_Errors(t *testing.T) {
	t.Run("ServerErrorIsUnavailable", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := client.GetBalance(context.Background(), "prov-eur")
		assert.True(t, errors.Is(err, ErrProviderUnavailable{}))
	})

	t.Run("ClientErrorIsNotRetryable", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`unknown account`))
		})

		_, err := client.GetBalance(context.Background(), "missing")
		var statusErr ErrUnexpectedStatus
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
		assert.False(t, errors.Is(err, ErrProviderUnavailable{}))
	})

	t.Run("TimeoutIsUnavailable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		t.Cleanup(server.Close)
		client := NewClient(slog.Default(), &config.ProviderConfig{BaseURL: server.URL, Timeout: 20 * time.Millisecond})

		_, err := client.ListPayments(context.Background(), "prov-eur", time.Now())
		assert.True(t, errors.Is(err, ErrProviderUnavailable{}))
	})
}

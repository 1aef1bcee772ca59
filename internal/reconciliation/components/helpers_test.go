package components

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/viban-reconciler/internal/config"
	"github.com/viban-reconciler/internal/data/memory"
	"github.com/viban-reconciler/internal/domain/account"
	"github.com/viban-reconciler/internal/domain/order"
	"github.com/viban-reconciler/internal/domain/payment"
	"github.com/viban-reconciler/internal/domain/shared"
	"github.com/viban-reconciler/internal/domain/topup"
)

const testIBAN = "DE89370400440532013000"

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func memoryRepositories(store *memory.Store) Repositories {
	return Repositories{
		Events:   store.Events(),
		Accounts: store.Accounts(),
		TopUps:   store.TopUps(),
		Orders:   store.Orders(),
		Audits:   store.Audits(),
		Alerts:   store.Alerts(),
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Matching:   config.MatchingConfig{Tolerance: decimal.New(1, -2)},
		WorkerPool: config.WorkerPoolConfig{Size: 4},
		Webhook:    config.WebhookConfig{ProcessingBudget: 2 * time.Second},
	}
}

type fixture struct {
	ctx      context.Context
	store    *memory.Store
	pipeline *Pipeline
	account  *account.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	pipeline := CreatePipeline(store, memoryRepositories(store), testConfig(), nil, newTestLogger())
	t.Cleanup(func() { pipeline.Shutdown(time.Second) })

	f := &fixture{ctx: context.Background(), store: store, pipeline: pipeline}
	f.account = f.addAccount(t, testIBAN, "EUR")
	return f
}

func (f *fixture) addAccount(t *testing.T, iban, currency string) *account.Account {
	t.Helper()
	acc, err := account.NewAccount(iban, "user-"+iban[len(iban)-4:], currency, "seg-"+currency)
	require.NoError(t, err)
	require.NoError(t, f.store.Accounts().Create(f.ctx, acc))
	return acc
}

func (f *fixture) addTopUp(t *testing.T, reference string, amount int64, createdAt time.Time) *topup.Request {
	t.Helper()
	req, err := topup.NewRequest(f.account.ID, reference, amount, f.account.Currency, time.Hour)
	require.NoError(t, err)
	if !createdAt.IsZero() {
		req.CreatedAt = createdAt
	}
	require.NoError(t, f.store.TopUps().Create(f.ctx, req))
	return req
}

func (f *fixture) addOrder(t *testing.T, amount int64, createdAt time.Time) *order.Order {
	t.Helper()
	o := &order.Order{
		ID:             uuid.New(),
		AccountID:      f.account.ID,
		ExpectedAmount: amount,
		Currency:       f.account.Currency,
		Status:         order.StatusPendingPayment,
		CreatedAt:      createdAt,
	}
	f.store.AddOrder(o)
	return o
}

func (f *fixture) balance(t *testing.T) int64 {
	t.Helper()
	acc, err := f.store.Accounts().GetByID(f.ctx, f.account.ID)
	require.NoError(t, err)
	return acc.Balance
}

func (f *fixture) storedEvent(t *testing.T, providerID string) *payment.Event {
	t.Helper()
	event, err := f.store.Events().GetByProviderID(f.ctx, providerID)
	require.NoError(t, err)
	return event
}

type eventOption func(*payment.WebhookPayload)

func withVOP(status string) eventOption {
	return func(p *payment.WebhookPayload) { p.VOPStatus = status }
}

func withIBAN(iban string) eventOption {
	return func(p *payment.WebhookPayload) { p.IBAN = iban }
}

func withDirection(direction string) eventOption {
	return func(p *payment.WebhookPayload) { p.Direction = direction }
}

// creditEvent builds a normalized EUR webhook credit to testIBAN
func creditEvent(t *testing.T, providerID string, amount int64, reference string, opts ...eventOption) *payment.Event {
	t.Helper()
	payload := &payment.WebhookPayload{
		TransactionID: providerID,
		AccountID:     "seg-EUR",
		Amount:        shared.FromMinorUnits(amount, "EUR"),
		Currency:      "EUR",
		Direction:     "CREDIT",
		IBAN:          testIBAN,
		Details:       payment.PayloadDetails{Reference: reference, SenderName: "Jane Roe"},
	}
	for _, opt := range opts {
		opt(payload)
	}
	event, err := payment.Normalize(payload, nil, payment.SourceWebhook, time.Now())
	require.NoError(t, err)
	return event
}

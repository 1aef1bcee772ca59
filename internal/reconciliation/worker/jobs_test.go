package worker

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/viban-reconciler/internal/config"
	"github.com/viban-reconciler/internal/data/memory"
	"github.com/viban-reconciler/internal/domain/account"
	"github.com/viban-reconciler/internal/domain/audit"
	"github.com/viban-reconciler/internal/domain/topup"
	"github.com/viban-reconciler/internal/platform/provider"
	"github.com/viban-reconciler/internal/reconciliation/components"
	"github.com/viban-reconciler/internal/reconciliation/scheduler"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) ListPayments(ctx context.Context, accountID string, since time.Time) ([]string, error) {
	args := m.Called(ctx, accountID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockProvider) GetPayment(ctx context.Context, accountID, paymentID string) (*provider.PaymentDetail, error) {
	args := m.Called(ctx, accountID, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.PaymentDetail), args.Error(1)
}

func (m *MockProvider) ListTransactions(ctx context.Context, accountID string, sinceDate time.Time) ([]provider.Transaction, error) {
	args := m.Called(ctx, accountID, sinceDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]provider.Transaction), args.Error(1)
}

func (m *MockProvider) GetBalance(ctx context.Context, accountID string) (*provider.Balance, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Balance), args.Error(1)
}

type workerFixture struct {
	store    *memory.Store
	provider *MockProvider
	pipeline *components.Pipeline
	sched    *scheduler.Scheduler
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg := &config.Config{
		Matching:          config.MatchingConfig{Tolerance: decimal.New(1, -2)},
		Polling:           config.PollingConfig{Interval: time.Hour, LookBack: 10 * time.Minute, Timeout: time.Second},
		BalanceValidation: config.BalanceValidationConfig{Interval: time.Hour, Timeout: time.Second, Tolerance: decimal.New(1, -2)},
		TopUp:             config.TopUpConfig{TTL: time.Hour, ExpirySweepInterval: time.Hour},
		SegregatedAccounts: []config.SegregatedAccount{
			{ID: "seg-eur", ProviderAccountID: "prov-eur", Currency: "EUR"},
		},
	}

	store := memory.NewStore()
	repos := components.Repositories{
		Events:   store.Events(),
		Accounts: store.Accounts(),
		TopUps:   store.TopUps(),
		Orders:   store.Orders(),
		Audits:   store.Audits(),
		Alerts:   store.Alerts(),
	}
	pipeline := components.CreatePipeline(store, repos, cfg, nil, logger)
	t.Cleanup(func() { pipeline.Shutdown(time.Second) })

	source := new(MockProvider)
	jobs := NewJobs(cfg, Dependencies{
		Provider:  source,
		Repos:     repos,
		Snapshots: store.Snapshots(),
		Pipeline:  pipeline,
	}, logger)

	return &workerFixture{
		store:    store,
		provider: source,
		pipeline: pipeline,
		sched:    jobs.Schedule(cfg, pipeline, logger),
	}
}

func TestJobs_Schedule(t *testing.T) {
	ctx := context.Background()

	t.Run("ExpirySweep", func(t *testing.T) {
		f := newWorkerFixture(t)
		acc, err := account.NewAccount("DE89370400440532013000", "user-1", "EUR", "seg-eur")
		require.NoError(t, err)
		require.NoError(t, f.store.Accounts().Create(ctx, acc))

		stale, err := topup.NewRequest(acc.ID, "TOPUP-OLD", 1000, "EUR", time.Minute)
		require.NoError(t, err)
		stale.ExpiresAt = time.Now().Add(-time.Minute)
		require.NoError(t, f.store.TopUps().Create(ctx, stale))

		require.NoError(t, f.sched.RunOnce(ctx, "topup_expiry"))

		stored, err := f.store.TopUps().GetByID(ctx, stale.ID)
		require.NoError(t, err)
		assert.Equal(t, topup.StatusExpired, stored.Status)
	})

	t.Run("BalanceValidation", func(t *testing.T) {
		f := newWorkerFixture(t)
		f.provider.On("GetBalance", mock.Anything, "prov-eur").
			Return(&provider.Balance{Balance: decimal.Zero, Currency: "EUR"}, nil)

		require.NoError(t, f.sched.RunOnce(ctx, "balance_validator"))

		history := f.store.SnapshotHistory()
		require.Len(t, history, 1)
		assert.True(t, history[0].IsValid)
	})

	t.Run("PollingFailureIsPaged", func(t *testing.T) {
		f := newWorkerFixture(t)
		f.provider.On("ListPayments", mock.Anything, "prov-eur", mock.Anything).
			Return(nil, provider.ErrProviderUnavailable{Op: "list payments"})

		err := f.sched.RunOnce(ctx, "polling_recovery")
		require.Error(t, err)

		var jobFailed *audit.Event
		for _, e := range f.store.AuditTrail() {
			if e.Action == audit.ActionJobFailed {
				jobFailed = e
			}
		}
		require.NotNil(t, jobFailed)
		assert.Equal(t, audit.SeverityCritical, jobFailed.Severity)
		assert.Len(t, f.store.AlertMessages(), 1)
	})
}

package components

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/viban-reconciler/internal/domain/account"
	"github.com/viban-reconciler/internal/domain/order"
	"github.com/viban-reconciler/internal/domain/payment"
	"github.com/viban-reconciler/internal/domain/shared"
	"github.com/viban-reconciler/internal/domain/topup"
	"github.com/viban-reconciler/internal/reconciliation/service"
)

// MatchTier is one strategy of the matcher. Settle reports false when the
// tier has no candidate; the next tier is then tried.
type MatchTier interface {
	Name() string
	Settle(ctx context.Context, tx pgx.Tx, event *payment.Event, acc *account.Account) (bool, error)
}

// topUpTier matches a pending top-up request by exact reference
type topUpTier struct {
	topUpRepo topup.Repository
	mutator   service.LedgerMutator
	tolerance decimal.Decimal
	now       func() time.Time
}

func NewTopUpTier(topUpRepo topup.Repository, mutator service.LedgerMutator, tolerance decimal.Decimal) MatchTier {
	return &topUpTier{
		topUpRepo: topUpRepo,
		mutator:   mutator,
		tolerance: tolerance,
		now:       time.Now,
	}
}

func (t *topUpTier) Name() string { return "topup_request" }

func (t *topUpTier) Settle(ctx context.Context, tx pgx.Tx, event *payment.Event, acc *account.Account) (bool, error) {
	request, err := t.topUpRepo.WithTx(tx).FindPendingMatch(ctx, acc.ID, event.Reference, event.Amount, shared.ToleranceInMinorUnits(t.tolerance, event.Currency), event.Currency, t.now())
	if err != nil {
		return false, fmt.Errorf("top-up lookup failed: %w", err)
	}
	if request == nil {
		return false, nil
	}
	return true, t.mutator.ApplyTopUp(ctx, tx, event, request, service.SystemAttribution)
}

// orderTier matches the oldest order awaiting an amount within tolerance
type orderTier struct {
	orderLedger order.Ledger
	mutator     service.LedgerMutator
	tolerance   decimal.Decimal
}

func NewOrderTier(orderLedger order.Ledger, mutator service.LedgerMutator, tolerance decimal.Decimal) MatchTier {
	return &orderTier{
		orderLedger: orderLedger,
		mutator:     mutator,
		tolerance:   tolerance,
	}
}

func (t *orderTier) Name() string { return "order" }

func (t *orderTier) Settle(ctx context.Context, tx pgx.Tx, event *payment.Event, acc *account.Account) (bool, error) {
	ord, err := t.orderLedger.WithTx(tx).FindEligible(ctx, acc.ID, event.Amount, shared.ToleranceInMinorUnits(t.tolerance, event.Currency), event.Currency)
	if err != nil {
		return false, fmt.Errorf("order lookup failed: %w", err)
	}
	if ord == nil {
		return false, nil
	}
	return true, t.mutator.ReconcileOrder(ctx, tx, event, ord, service.SystemAttribution)
}

package components

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/viban-reconciler/internal/domain/account"
	"github.com/viban-reconciler/internal/domain/audit"
	"github.com/viban-reconciler/internal/domain/order"
	"github.com/viban-reconciler/internal/domain/payment"
	"github.com/viban-reconciler/internal/domain/shared"
	"github.com/viban-reconciler/internal/domain/topup"
	"github.com/viban-reconciler/internal/reconciliation/service"
)

// LedgerMutatorImpl is the only code path that changes account balances
type LedgerMutatorImpl struct {
	accountRepo account.Repository
	topUpRepo   topup.Repository
	orderLedger order.Ledger
	eventRepo   payment.Repository
	auditRepo   audit.Repository
	logger      *slog.Logger
}

func NewLedgerMutator(
	accountRepo account.Repository,
	topUpRepo topup.Repository,
	orderLedger order.Ledger,
	eventRepo payment.Repository,
	auditRepo audit.Repository,
	logger *slog.Logger,
) service.LedgerMutator {
	return &LedgerMutatorImpl{
		accountRepo: accountRepo,
		topUpRepo:   topUpRepo,
		orderLedger: orderLedger,
		eventRepo:   eventRepo,
		auditRepo:   auditRepo,
		logger:      logger,
	}
}

// ApplyTopUp credits the request's account by the event amount, completes the
// request, marks the event MATCHED_TOPUP and appends the audit record.
func (m *LedgerMutatorImpl) ApplyTopUp(ctx context.Context, tx pgx.Tx, event *payment.Event, request *topup.Request, by service.Attribution) error {
	logger := m.logger.With("provider_transaction_id", event.ProviderTransactionID, "topup_request_id", request.ID.String())
	from := event.Status

	if !payment.CanTransition(from, payment.StatusMatchedTopUp) {
		return payment.ErrInvalidTransition{EventID: event.ID, From: from, To: payment.StatusMatchedTopUp}
	}
	if request.Status != topup.StatusPending && request.Status != topup.StatusMatched {
		return topup.ErrNotPending
	}
	if request.Currency != event.Currency {
		logger.Warn("Currency mismatch between payment and top-up request", "event_currency", event.Currency, "request_currency", request.Currency)
		return account.ErrCurrencyMismatch
	}

	accountRepoTx := m.accountRepo.WithTx(tx)
	acc, err := accountRepoTx.GetByID(ctx, request.AccountID)
	if err != nil {
		return err
	}
	if err := acc.CanReceive(event.Amount, event.Currency); err != nil {
		logger.Warn("Account cannot receive payment", "account_id", acc.ID.String(), "error", err)
		return err
	}

	newBalance, err := accountRepoTx.Credit(ctx, acc.ID, event.Amount)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := m.topUpRepo.WithTx(tx).MarkCompleted(ctx, request.ID, event.ID, now); err != nil {
		return err
	}

	requestID := request.ID
	event.MatchedTopUpID = &requestID
	if err := event.TransitionTo(payment.StatusMatchedTopUp, "credited against top-up "+request.Reference); err != nil {
		return err
	}
	if err := m.eventRepo.WithTx(tx).UpdateStatus(ctx, event, from); err != nil {
		return err
	}

	record := audit.NewEvent(audit.TypeLedger, audit.SeverityInfo, audit.ActionTopUpCredited,
		fmt.Sprintf("credited %s %s to %s", shared.FormatMinor(event.Amount, event.Currency), event.Currency, acc.IBAN)).
		ForTransaction(event.ProviderTransactionID).
		By(by.Actor).
		With("account_id", acc.ID.String()).
		With("topup_request_id", request.ID.String()).
		With("reference", request.Reference).
		With("amount", event.Amount).
		With("expected_amount", request.ExpectedAmount).
		With("new_balance", newBalance).
		With("previous_status", string(from))
	withResolutionReason(record, by)
	if err := m.auditRepo.WithTx(tx).Append(ctx, record); err != nil {
		return err
	}

	logger.Info("Top-up credited", "account_id", acc.ID.String(), "amount", event.Amount, "new_balance", newBalance, "actor", record.Actor)
	return nil
}

// ReconcileOrder links the payment to an order awaiting payment. Account
// balances are left alone.
func (m *LedgerMutatorImpl) ReconcileOrder(ctx context.Context, tx pgx.Tx, event *payment.Event, ord *order.Order, by service.Attribution) error {
	logger := m.logger.With("provider_transaction_id", event.ProviderTransactionID, "order_id", ord.ID.String())
	from := event.Status

	if !payment.CanTransition(from, payment.StatusMatchedOrder) {
		return payment.ErrInvalidTransition{EventID: event.ID, From: from, To: payment.StatusMatchedOrder}
	}
	if ord.Currency != event.Currency {
		logger.Warn("Currency mismatch between payment and order", "event_currency", event.Currency, "order_currency", ord.Currency)
		return account.ErrCurrencyMismatch
	}

	now := time.Now().UTC()
	if err := ord.MarkPaid(event.ID, now); err != nil {
		return err
	}
	if err := m.orderLedger.WithTx(tx).MarkPaymentReceived(ctx, ord); err != nil {
		return err
	}

	orderID := ord.ID
	event.MatchedOrderID = &orderID
	if err := event.TransitionTo(payment.StatusMatchedOrder, "payment linked to order "+ord.ID.String()); err != nil {
		return err
	}
	if err := m.eventRepo.WithTx(tx).UpdateStatus(ctx, event, from); err != nil {
		return err
	}

	record := audit.NewEvent(audit.TypeLedger, audit.SeverityInfo, audit.ActionOrderPaid,
		fmt.Sprintf("payment of %s %s received for order", shared.FormatMinor(event.Amount, event.Currency), event.Currency)).
		ForTransaction(event.ProviderTransactionID).
		By(by.Actor).
		With("order_id", ord.ID.String()).
		With("account_id", ord.AccountID.String()).
		With("amount", event.Amount).
		With("expected_amount", ord.ExpectedAmount).
		With("previous_status", string(from))
	withResolutionReason(record, by)
	if err := m.auditRepo.WithTx(tx).Append(ctx, record); err != nil {
		return err
	}

	logger.Info("Order payment received", "amount", event.Amount, "actor", record.Actor)
	return nil
}

func withResolutionReason(record *audit.Event, by service.Attribution) {
	if by.Reason != "" {
		record.With("resolution_reason", by.Reason)
	}
}

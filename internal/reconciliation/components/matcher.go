package components

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/viban-reconciler/internal/domain/account"
	"github.com/viban-reconciler/internal/domain/audit"
	"github.com/viban-reconciler/internal/domain/payment"
	"github.com/viban-reconciler/internal/platform/persistence"
	"github.com/viban-reconciler/internal/reconciliation/service"
)

// MatcherImpl runs the tiers in order inside one transaction that holds the
// event row lock, so concurrent deliveries of one payment settle it once.
type MatcherImpl struct {
	db          persistence.TxExecutor
	eventRepo   payment.Repository
	accountRepo account.Repository
	auditRepo   audit.Repository
	tiers       []MatchTier
	logger      *slog.Logger
}

func NewMatcher(
	db persistence.TxExecutor,
	eventRepo payment.Repository,
	accountRepo account.Repository,
	auditRepo audit.Repository,
	tiers []MatchTier,
	logger *slog.Logger,
) service.Matcher {
	return &MatcherImpl{
		db:          db,
		eventRepo:   eventRepo,
		accountRepo: accountRepo,
		auditRepo:   auditRepo,
		tiers:       tiers,
		logger:      logger,
	}
}

// Match settles a NEW event. Events in any other status are left untouched and
// their current outcome is returned.
func (m *MatcherImpl) Match(ctx context.Context, eventID uuid.UUID) (*payment.Outcome, error) {
	var outcome *payment.Outcome

	err := m.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		event, err := m.eventRepo.WithTx(tx).LockByID(ctx, eventID)
		if err != nil {
			return err
		}
		logger := m.logger.With("provider_transaction_id", event.ProviderTransactionID)

		if event.Status != payment.StatusNew {
			logger.Info("Event already settled, skipping match", "status", event.Status)
			outcome = payment.OutcomeFor(event)
			return nil
		}

		acc, reason, err := m.resolveAccount(ctx, tx, event)
		if err != nil {
			return err
		}

		if acc != nil {
			for _, tier := range m.tiers {
				matched, err := tier.Settle(ctx, tx, event, acc)
				if err != nil {
					logger.Error("Match tier failed", "tier", tier.Name(), "error", err)
					return err
				}
				if matched {
					logger.Info("Payment matched", "tier", tier.Name(), "status", event.Status)
					outcome = payment.OutcomeFor(event)
					return nil
				}
			}
			reason = "no pending top-up request or order matches reference and amount"
		}

		if err := m.markUnmatched(ctx, tx, event, reason); err != nil {
			return err
		}
		logger.Warn("Payment left unmatched", "reason", reason)
		outcome = payment.OutcomeFor(event)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to match event %s: %w", eventID, err)
	}

	return outcome, nil
}

// resolveAccount returns the destination account, or a reason why the event
// cannot be attributed to one
func (m *MatcherImpl) resolveAccount(ctx context.Context, tx pgx.Tx, event *payment.Event) (*account.Account, string, error) {
	if event.BeneficiaryIBAN == "" {
		return nil, "payment carries no beneficiary IBAN", nil
	}

	acc, err := m.accountRepo.WithTx(tx).GetByIBAN(ctx, event.BeneficiaryIBAN)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound{}) {
			return nil, "no account for beneficiary IBAN " + event.BeneficiaryIBAN, nil
		}
		return nil, "", err
	}
	if !acc.IsActive() {
		return nil, "account " + acc.IBAN + " is not active", nil
	}
	if acc.Currency != event.Currency {
		return nil, fmt.Sprintf("payment currency %s does not match account currency %s", event.Currency, acc.Currency), nil
	}
	return acc, "", nil
}

func (m *MatcherImpl) markUnmatched(ctx context.Context, tx pgx.Tx, event *payment.Event, reason string) error {
	from := event.Status
	if err := event.TransitionTo(payment.StatusUnmatched, reason); err != nil {
		return err
	}
	if err := m.eventRepo.WithTx(tx).UpdateStatus(ctx, event, from); err != nil {
		return err
	}

	record := audit.NewEvent(audit.TypeMatching, audit.SeverityWarning, audit.ActionUnmatched, reason).
		ForTransaction(event.ProviderTransactionID).
		With("beneficiary_iban", event.BeneficiaryIBAN).
		With("reference", event.Reference).
		With("amount", event.Amount).
		With("currency", event.Currency).
		With("sender_name", event.SenderName)
	return m.auditRepo.WithTx(tx).Append(ctx, record)
}

// Package balance checks that the virtual IBAN balances of every segregated
// account add up to the balance the provider reports for it.
package balance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/viban-reconciler/internal/config"
	"github.com/viban-reconciler/internal/domain/account"
	"github.com/viban-reconciler/internal/domain/alert"
	"github.com/viban-reconciler/internal/domain/audit"
	"github.com/viban-reconciler/internal/domain/shared"
	"github.com/viban-reconciler/internal/domain/snapshot"
	"github.com/viban-reconciler/internal/platform/provider"
)

const source = "balance_validator"

var ErrCurrencyMismatch = errors.New("provider balance currency does not match segregated account")

// BalanceSource reads the provider's authoritative balance
type BalanceSource interface {
	GetBalance(ctx context.Context, accountID string) (*provider.Balance, error)
}

type Validator struct {
	source       BalanceSource
	accountRepo  account.Repository
	snapshotRepo snapshot.Repository
	auditSink    audit.Sink
	pager        alert.Pager
	accounts     []config.SegregatedAccount
	tolerance    decimal.Decimal
	logger       *slog.Logger
}

func NewValidator(
	cfg *config.Config,
	source BalanceSource,
	accountRepo account.Repository,
	snapshotRepo snapshot.Repository,
	auditSink audit.Sink,
	pager alert.Pager,
	logger *slog.Logger,
) *Validator {
	return &Validator{
		source:       source,
		accountRepo:  accountRepo,
		snapshotRepo: snapshotRepo,
		auditSink:    auditSink,
		pager:        pager,
		accounts:     cfg.SegregatedAccounts,
		tolerance:    cfg.BalanceValidation.Tolerance,
		logger:       logger,
	}
}

func (v *Validator) Name() string { return source }

// Run validates every grouping. A grouping that cannot be validated raises a
// reconciliation failed page and the remaining groupings are still checked.
// Only cancellation of ctx is returned.
func (v *Validator) Run(ctx context.Context) error {
	_, err := v.ValidateAll(ctx)
	return err
}

// ValidateAll returns the snapshots written during the run
func (v *Validator) ValidateAll(ctx context.Context) ([]*snapshot.Snapshot, error) {
	var snapshots []*snapshot.Snapshot
	for _, sa := range v.accounts {
		if err := ctx.Err(); err != nil {
			return snapshots, err
		}

		snap, err := v.Validate(ctx, sa)
		if err != nil {
			v.reconciliationFailed(ctx, sa, err)
			continue
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}

// Validate compares one grouping and persists the snapshot, valid or not.
// No snapshot is written when the provider balance cannot be obtained.
func (v *Validator) Validate(ctx context.Context, sa config.SegregatedAccount) (*snapshot.Snapshot, error) {
	logger := v.logger.With("segregated_account_id", sa.ID)

	bal, err := v.source.GetBalance(ctx, sa.ProviderAccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch provider balance: %w", err)
	}

	currency, err := shared.NormalizeCurrency(bal.Currency)
	if err != nil {
		return nil, fmt.Errorf("invalid provider balance: %w", err)
	}
	if currency != sa.Currency {
		return nil, fmt.Errorf("%w: provider reports %s, configured %s", ErrCurrencyMismatch, currency, sa.Currency)
	}

	providerTotal, err := shared.ToMinorUnits(bal.Balance, currency)
	if err != nil {
		return nil, fmt.Errorf("invalid provider balance: %w", err)
	}

	accounts, err := v.accountRepo.ListActiveBySegregatedAccount(ctx, sa.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	breakdown := make([]snapshot.AccountBalance, 0, len(accounts))
	for _, acc := range accounts {
		breakdown = append(breakdown, snapshot.AccountBalance{
			AccountID: acc.ID.String(),
			IBAN:      acc.IBAN,
			Balance:   acc.Balance,
		})
	}

	snap := snapshot.New(sa.ID, currency, providerTotal, breakdown, shared.ToleranceInMinorUnits(v.tolerance, currency))
	if err := v.snapshotRepo.Create(ctx, snap); err != nil {
		return nil, fmt.Errorf("failed to store snapshot: %w", err)
	}

	if snap.IsValid {
		logger.Info("Balance validated",
			"provider_total", shared.FormatMinor(snap.ProviderTotal, currency),
			"local_total", shared.FormatMinor(snap.LocalTotal, currency),
			"accounts", len(breakdown),
		)
		return snap, nil
	}

	logger.Error("Balance mismatch detected",
		"provider_total", shared.FormatMinor(snap.ProviderTotal, currency),
		"local_total", shared.FormatMinor(snap.LocalTotal, currency),
		"difference", shared.FormatMinor(snap.Difference, currency),
	)

	reason := fmt.Sprintf("provider balance %s differs from local total %s by %s %s",
		shared.FormatMinor(snap.ProviderTotal, currency),
		shared.FormatMinor(snap.LocalTotal, currency),
		shared.FormatMinor(snap.Difference, currency),
		currency,
	)
	v.auditSink.Record(ctx, audit.NewEvent(audit.TypeBalanceCheck, audit.SeverityCritical, audit.ActionBalanceMismatch, reason).
		With("segregated_account_id", sa.ID).
		With("snapshot_id", snap.ID).
		With("provider_total", snap.ProviderTotal).
		With("local_total", snap.LocalTotal).
		With("difference", snap.Difference).
		With("breakdown", snap.Breakdown))
	v.pager.PageCritical(ctx, alert.New(source, "Balance mismatch on "+sa.ID, map[string]any{
		"segregated_account_id": sa.ID,
		"snapshot_id":           snap.ID,
		"currency":              currency,
		"provider_total":        snap.ProviderTotal,
		"local_total":           snap.LocalTotal,
		"difference":            snap.Difference,
		"breakdown":             snap.Breakdown,
	}))

	return snap, nil
}

func (v *Validator) reconciliationFailed(ctx context.Context, sa config.SegregatedAccount, err error) {
	v.logger.Error("Balance reconciliation failed", "segregated_account_id", sa.ID, "error", err)

	v.auditSink.Record(ctx, audit.NewEvent(audit.TypeBalanceCheck, audit.SeverityError, audit.ActionReconciliationFail, err.Error()).
		With("segregated_account_id", sa.ID).
		With("provider_unavailable", errors.Is(err, provider.ErrProviderUnavailable{})))
	v.pager.PageCritical(ctx, alert.New(source, "Balance reconciliation failed for "+sa.ID, map[string]any{
		"segregated_account_id": sa.ID,
		"error":                 err.Error(),
	}))
}

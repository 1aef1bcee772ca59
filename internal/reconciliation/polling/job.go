// Package polling recovers credits whose webhook never arrived. It lists
// recent provider payments, skips the ones already stored, attributes each
// settled payment to a virtual IBAN through the transactions API and feeds
// it through the same ingestion pipeline as the webhook.
package polling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/viban-reconciler/internal/config"
	"github.com/viban-reconciler/internal/domain/audit"
	"github.com/viban-reconciler/internal/domain/payment"
	"github.com/viban-reconciler/internal/platform/provider"
	"github.com/viban-reconciler/internal/reconciliation/service"
)

// PaymentSource is the part of the provider API the job reads
type PaymentSource interface {
	ListPayments(ctx context.Context, accountID string, since time.Time) ([]string, error)
	GetPayment(ctx context.Context, accountID, paymentID string) (*provider.PaymentDetail, error)
	ListTransactions(ctx context.Context, accountID string, sinceDate time.Time) ([]provider.Transaction, error)
}

// ErrAttributionAmbiguous means a settled payment could not be tied to
// exactly one booked transaction carrying a beneficiary IBAN
type ErrAttributionAmbiguous struct {
	PaymentID  string
	Candidates int
}

func (e ErrAttributionAmbiguous) Error() string {
	return fmt.Sprintf("cannot determine recipient of payment %s: %d candidate transactions", e.PaymentID, e.Candidates)
}

// Is matches any ErrAttributionAmbiguous
func (e ErrAttributionAmbiguous) Is(target error) bool {
	_, ok := target.(ErrAttributionAmbiguous)
	return ok
}

// Result counts what one run did
type Result struct {
	Recovered  int
	Unresolved int
	Skipped    int
}

func (r *Result) add(o Result) {
	r.Recovered += o.Recovered
	r.Unresolved += o.Unresolved
	r.Skipped += o.Skipped
}

type Job struct {
	source    PaymentSource
	eventRepo payment.Repository
	ingestion service.IngestionService
	auditSink audit.Sink
	accounts  []config.SegregatedAccount
	lookBack  time.Duration
	proximity time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

func NewJob(
	cfg *config.Config,
	source PaymentSource,
	eventRepo payment.Repository,
	ingestion service.IngestionService,
	auditSink audit.Sink,
	logger *slog.Logger,
) *Job {
	return &Job{
		source:    source,
		eventRepo: eventRepo,
		ingestion: ingestion,
		auditSink: auditSink,
		accounts:  cfg.SegregatedAccounts,
		lookBack:  cfg.Polling.LookBack,
		proximity: cfg.Polling.ProximityWindow,
		now:       time.Now,
		logger:    logger,
	}
}

func (j *Job) Name() string { return "polling_recovery" }

// Run polls every configured segregated account. Provider and store failures
// are returned after the remaining accounts were polled.
func (j *Job) Run(ctx context.Context) error {
	_, err := j.Poll(ctx)
	return err
}

// Poll is Run with the per-run counters exposed
func (j *Job) Poll(ctx context.Context) (Result, error) {
	var total Result
	var errs []error

	for _, sa := range j.accounts {
		result, err := j.pollAccount(ctx, sa)
		total.add(result)
		if err != nil {
			j.logger.Error("Polling failed for segregated account", "segregated_account_id", sa.ID, "error", err)
			errs = append(errs, fmt.Errorf("segregated account %s: %w", sa.ID, err))
		}
	}

	if total.Recovered > 0 || total.Unresolved > 0 {
		j.auditSink.Record(ctx, audit.NewEvent(audit.TypePolling, audit.SeverityWarning, audit.ActionPollingSummary,
			fmt.Sprintf("polling recovered %d payments, %d unresolved", total.Recovered, total.Unresolved)).
			With("recovered", total.Recovered).
			With("unresolved", total.Unresolved).
			With("skipped", total.Skipped))
	}

	j.logger.Info("Polling run finished", "recovered", total.Recovered, "unresolved", total.Unresolved, "skipped", total.Skipped)
	return total, errors.Join(errs...)
}

func (j *Job) pollAccount(ctx context.Context, sa config.SegregatedAccount) (Result, error) {
	var result Result
	logger := j.logger.With("segregated_account_id", sa.ID)
	since := j.now().Add(-j.lookBack)

	ids, err := j.source.ListPayments(ctx, sa.ProviderAccountID, since)
	if err != nil {
		return result, err
	}
	if len(ids) == 0 {
		return result, nil
	}

	known, err := j.eventRepo.ExistingProviderIDs(ctx, ids)
	if err != nil {
		return result, err
	}

	var transactions []provider.Transaction
	transactionsLoaded := false
	var errs []error

	for _, id := range ids {
		if _, ok := known[id]; ok {
			continue
		}

		detail, err := j.source.GetPayment(ctx, sa.ProviderAccountID, id)
		if err != nil {
			return result, err
		}
		if !detail.IsSettled() {
			logger.Debug("Skipping payment that is not settled", "payment_id", id, "status", detail.Status)
			result.Skipped++
			continue
		}

		if !transactionsLoaded {
			transactions, err = j.source.ListTransactions(ctx, sa.ProviderAccountID, since)
			if err != nil {
				return result, err
			}
			transactionsLoaded = true
		}

		txn, err := j.attribute(detail, transactions)
		if err != nil {
			result.Unresolved++
			logger.Error("Cannot determine recipient", "payment_id", id, "error", err)
			j.auditSink.Record(ctx, audit.NewEvent(audit.TypePolling, audit.SeverityError, audit.ActionRecipientUnknown, err.Error()).
				ForTransaction(detail.ID).
				With("segregated_account_id", sa.ID).
				With("amount", detail.Amount.String()).
				With("currency", detail.Currency))
			continue
		}

		event, err := payment.Normalize(synthesize(sa, detail, txn), nil, payment.SourcePolling, j.now())
		if err != nil {
			result.Unresolved++
			j.auditSink.Record(ctx, audit.NewEvent(audit.TypePolling, audit.SeverityError, audit.ActionMalformedPayload, err.Error()).
				ForTransaction(detail.ID))
			continue
		}

		outcome, err := j.ingestion.Ingest(ctx, event)
		if err != nil {
			result.Unresolved++
			errs = append(errs, fmt.Errorf("ingest payment %s: %w", id, err))
			continue
		}
		if outcome.Duplicate {
			result.Skipped++
			continue
		}

		logger.Info("Recovered missed payment", "payment_id", id, "match_type", outcome.MatchType)
		result.Recovered++
	}

	return result, errors.Join(errs...)
}

// attribute finds the booked credit that carries the payment's IBAN. Several
// candidates are narrowed by booking time when a proximity window is set.
func (j *Job) attribute(detail *provider.PaymentDetail, transactions []provider.Transaction) (*provider.Transaction, error) {
	var candidates []provider.Transaction
	for _, t := range transactions {
		if !t.Credit || strings.TrimSpace(t.IBAN) == "" {
			continue
		}
		if !strings.EqualFold(t.Currency, detail.Currency) || !t.Amount.Equal(detail.Amount) {
			continue
		}
		candidates = append(candidates, t)
	}

	if len(candidates) > 1 && j.proximity > 0 {
		var near []provider.Transaction
		for _, t := range candidates {
			if absDuration(t.BookedAt.Sub(detail.CreatedAt)) <= j.proximity {
				near = append(near, t)
			}
		}
		candidates = near
	}

	if len(candidates) != 1 {
		return nil, ErrAttributionAmbiguous{PaymentID: detail.ID, Candidates: len(candidates)}
	}
	return &candidates[0], nil
}

func synthesize(sa config.SegregatedAccount, detail *provider.PaymentDetail, txn *provider.Transaction) *payment.WebhookPayload {
	reference := detail.Reference
	if reference == "" {
		reference = txn.Details.Reference
	}
	return &payment.WebhookPayload{
		TransactionID: detail.ID,
		AccountID:     sa.ID,
		Amount:        detail.Amount,
		Currency:      detail.Currency,
		Direction:     string(payment.DirectionCredit),
		IBAN:          txn.IBAN,
		Details: payment.PayloadDetails{
			Reference:  reference,
			SenderName: txn.Details.SenderName,
			SenderIBAN: txn.Details.SenderIBAN,
		},
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

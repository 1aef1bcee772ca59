package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/viban-reconciler/internal/domain/audit"
	"github.com/viban-reconciler/internal/domain/payment"
)

type IngestionServiceImpl struct {
	eventRepo payment.Repository
	vopGate   VOPGate
	matcher   Matcher
	auditSink audit.Sink
	logger    *slog.Logger
}

func NewIngestionService(
	eventRepo payment.Repository,
	vopGate VOPGate,
	matcher Matcher,
	auditSink audit.Sink,
	logger *slog.Logger,
) IngestionService {
	return &IngestionServiceImpl{
		eventRepo: eventRepo,
		vopGate:   vopGate,
		matcher:   matcher,
		auditSink: auditSink,
		logger:    logger,
	}
}

// Ingest persists a normalized event once per provider transaction id and
// hands it to the matcher. Replays return the stored outcome.
func (s *IngestionServiceImpl) Ingest(ctx context.Context, event *payment.Event) (*payment.Outcome, error) {
	logger := s.logger.With("provider_transaction_id", event.ProviderTransactionID, "source", event.Source)

	// 1. Idempotency
	existing, err := s.eventRepo.GetByProviderID(ctx, event.ProviderTransactionID)
	if err == nil {
		return s.resume(ctx, logger, existing)
	}
	if !errors.Is(err, payment.ErrEventNotFound{}) {
		return nil, fmt.Errorf("failed to look up event %s: %w", event.ProviderTransactionID, err)
	}

	// 2. Only credits move money into a virtual account
	if !event.IsCredit() {
		logger.Info("Ignoring non-credit payment", "direction", event.Direction)
		return payment.IgnoredOutcome(event, "non-credit transaction acknowledged without processing"), nil
	}

	// 3. VOP gate
	if held, reason := s.vopGate.Evaluate(event); held {
		if err := event.TransitionTo(payment.StatusHeldVOP, reason); err != nil {
			return nil, err
		}
	}

	// 4. First write wins
	if err := s.eventRepo.Create(ctx, event); err != nil {
		if errors.Is(err, payment.ErrDuplicateEvent{}) {
			logger.Info("Concurrent delivery stored the event first, resuming")
			existing, getErr := s.eventRepo.GetByProviderID(ctx, event.ProviderTransactionID)
			if getErr != nil {
				return nil, fmt.Errorf("failed to re-read event %s: %w", event.ProviderTransactionID, getErr)
			}
			return s.resume(ctx, logger, existing)
		}
		return nil, fmt.Errorf("failed to store event %s: %w", event.ProviderTransactionID, err)
	}
	logger.Info("Payment event stored", "event_id", event.ID.String(), "amount", event.Amount, "currency", event.Currency)

	if event.Status == payment.StatusHeldVOP {
		s.auditSink.Record(ctx, audit.NewEvent(audit.TypeVOP, audit.SeverityWarning, audit.ActionHeldForVOP, event.StatusReason).
			ForTransaction(event.ProviderTransactionID).
			With("vop_status", string(event.VOPStatus)).
			With("sender_name", event.SenderName).
			With("beneficiary_iban", event.BeneficiaryIBAN).
			With("amount", event.Amount))
		return payment.OutcomeFor(event), nil
	}

	// 5. Match
	return s.matcher.Match(ctx, event.ID)
}

// resume finishes an event left NEW by an earlier attempt, otherwise reports
// the replay as a duplicate
func (s *IngestionServiceImpl) resume(ctx context.Context, logger *slog.Logger, existing *payment.Event) (*payment.Outcome, error) {
	if existing.Status == payment.StatusNew {
		logger.Info("Stored event still NEW, retrying match", "event_id", existing.ID.String())
		return s.matcher.Match(ctx, existing.ID)
	}
	logger.Info("Duplicate delivery, returning stored outcome", "status", existing.Status)
	return payment.DuplicateOutcome(existing), nil
}

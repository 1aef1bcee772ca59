package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/viban-reconciler/internal/domain/order"
	"github.com/viban-reconciler/internal/domain/payment"
	"github.com/viban-reconciler/internal/domain/topup"
	"github.com/viban-reconciler/internal/platform/persistence"
)

var (
	ErrResolutionTarget  = errors.New("exactly one of topUpRequestId or orderId is required")
	ErrOperatorRequired  = errors.New("operator is required")
	ErrNotAwaitingReview = errors.New("event is not awaiting manual resolution")
)

type ResolutionServiceImpl struct {
	db          persistence.TxExecutor
	eventRepo   payment.Repository
	topUpRepo   topup.Repository
	orderLedger order.Ledger
	mutator     LedgerMutator
	logger      *slog.Logger
}

func NewResolutionService(
	db persistence.TxExecutor,
	eventRepo payment.Repository,
	topUpRepo topup.Repository,
	orderLedger order.Ledger,
	mutator LedgerMutator,
	logger *slog.Logger,
) ResolutionService {
	return &ResolutionServiceImpl{
		db:          db,
		eventRepo:   eventRepo,
		topUpRepo:   topUpRepo,
		orderLedger: orderLedger,
		mutator:     mutator,
		logger:      logger,
	}
}

// Resolve applies an operator's decision to a HELD_VOP or UNMATCHED event
// through the same mutator paths the matcher uses.
func (s *ResolutionServiceImpl) Resolve(ctx context.Context, cmd ResolveCommand) (*payment.Outcome, error) {
	if (cmd.TopUpRequestID == nil) == (cmd.OrderID == nil) {
		return nil, ErrResolutionTarget
	}
	operator := strings.TrimSpace(cmd.Operator)
	if operator == "" {
		return nil, ErrOperatorRequired
	}

	stored, err := s.eventRepo.GetByProviderID(ctx, cmd.ProviderTransactionID)
	if err != nil {
		return nil, err
	}

	logger := s.logger.With("provider_transaction_id", cmd.ProviderTransactionID, "operator", operator)

	var outcome *payment.Outcome
	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		event, err := s.eventRepo.WithTx(tx).LockByID(ctx, stored.ID)
		if err != nil {
			return err
		}
		if event.Status != payment.StatusHeldVOP && event.Status != payment.StatusUnmatched {
			return fmt.Errorf("%w: status is %s", ErrNotAwaitingReview, event.Status)
		}

		by := Attribution{Actor: "operator:" + operator, Reason: strings.TrimSpace(cmd.Reason)}
		if cmd.TopUpRequestID != nil {
			request, err := s.topUpRepo.WithTx(tx).LockByID(ctx, *cmd.TopUpRequestID)
			if err != nil {
				return err
			}
			if err := s.mutator.ApplyTopUp(ctx, tx, event, request, by); err != nil {
				return err
			}
		} else {
			ord, err := s.orderLedger.WithTx(tx).LockByID(ctx, *cmd.OrderID)
			if err != nil {
				return err
			}
			if err := s.mutator.ReconcileOrder(ctx, tx, event, ord, by); err != nil {
				return err
			}
		}

		outcome = payment.OutcomeFor(event)
		return nil
	})
	if err != nil {
		logger.Warn("Manual resolution failed", "error", err)
		return nil, err
	}

	logger.Info("Event resolved manually", "match_type", outcome.MatchType, "reason", cmd.Reason)
	return outcome, nil
}

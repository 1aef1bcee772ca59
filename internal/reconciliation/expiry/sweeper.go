// Package expiry moves PENDING top-up requests past their TTL to EXPIRED.
package expiry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/viban-reconciler/internal/domain/audit"
	"github.com/viban-reconciler/internal/domain/topup"
)

type Sweeper struct {
	topUpRepo topup.Repository
	auditSink audit.Sink
	now       func() time.Time
	logger    *slog.Logger
}

func NewSweeper(topUpRepo topup.Repository, auditSink audit.Sink, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		topUpRepo: topUpRepo,
		auditSink: auditSink,
		now:       time.Now,
		logger:    logger,
	}
}

func (s *Sweeper) Name() string { return "topup_expiry" }

// Run expires stale requests in one statement
func (s *Sweeper) Run(ctx context.Context) error {
	expired, err := s.topUpRepo.ExpireStale(ctx, s.now())
	if err != nil {
		return fmt.Errorf("failed to expire top-up requests: %w", err)
	}
	if expired == 0 {
		return nil
	}

	s.logger.Info("Expired stale top-up requests", "count", expired)
	s.auditSink.Record(ctx, audit.NewEvent(audit.TypeTopUpExpiry, audit.SeverityInfo, audit.ActionTopUpsExpired,
		fmt.Sprintf("%d top-up requests passed their TTL", expired)).
		With("count", expired))
	return nil
}

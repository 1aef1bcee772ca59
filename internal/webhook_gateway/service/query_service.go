package service

import (
	"context"
	"fmt"
	"time"

	"github.com/viban-reconciler/internal/domain/audit"
	"github.com/viban-reconciler/internal/domain/payment"
	"github.com/viban-reconciler/internal/domain/snapshot"
)

// QueryServiceImpl implements the QueryService interface
type QueryServiceImpl struct {
	eventRepo    payment.Repository
	auditRepo    audit.Repository
	snapshotRepo snapshot.Repository
}

// NewQueryService creates a new query service
func NewQueryService(eventRepo payment.Repository, auditRepo audit.Repository, snapshotRepo snapshot.Repository) QueryService {
	return &QueryServiceImpl{
		eventRepo:    eventRepo,
		auditRepo:    auditRepo,
		snapshotRepo: snapshotRepo,
	}
}

func (s *QueryServiceImpl) ListEvents(ctx context.Context, status payment.Status, page, perPage int) ([]*payment.Event, int64, error) {
	offset := (page - 1) * perPage

	events, err := s.eventRepo.ListByStatus(ctx, status, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.eventRepo.CountByStatus(ctx, status)
	if err != nil {
		return nil, 0, err
	}

	return events, total, nil
}

func (s *QueryServiceImpl) GetEvent(ctx context.Context, providerTransactionID string) (*EventDetail, error) {
	event, err := s.eventRepo.GetByProviderID(ctx, providerTransactionID)
	if err != nil {
		return nil, err
	}

	trail, err := s.auditRepo.ListByTransaction(ctx, providerTransactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit trail: %w", err)
	}

	return &EventDetail{Event: event, Trail: trail}, nil
}

func (s *QueryServiceImpl) ListAudit(ctx context.Context, severity audit.Severity, limit int) ([]*audit.Event, error) {
	return s.auditRepo.ListRecent(ctx, severity, limit)
}

func (s *QueryServiceImpl) ListSnapshots(ctx context.Context, segregatedAccountID string, start, end time.Time, page, perPage int) ([]*snapshot.Snapshot, error) {
	return s.snapshotRepo.GetByTimeRange(ctx, segregatedAccountID, start, end, perPage, (page-1)*perPage)
}

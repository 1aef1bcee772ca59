package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/viban-reconciler/internal/domain/audit"
	"github.com/viban-reconciler/internal/domain/order"
	"github.com/viban-reconciler/internal/domain/payment"
	"github.com/viban-reconciler/internal/domain/snapshot"
	"github.com/viban-reconciler/internal/domain/topup"
	reconciliation "github.com/viban-reconciler/internal/reconciliation/service"
	"github.com/viban-reconciler/internal/webhook_gateway/service"
)

// TypedResponse is a generic version of Response for decoding test bodies
type TypedResponse[T any] struct {
	Data          T          `json:"data"`
	Error         *ErrorInfo `json:"error,omitempty"`
	CorrelationID string     `json:"correlation_id,omitempty"`
	Meta          *MetaInfo  `json:"meta,omitempty"`
}

type MockQueryService struct {
	mock.Mock
}

func (m *MockQueryService) ListEvents(ctx context.Context, status payment.Status, page, perPage int) ([]*payment.Event, int64, error) {
	args := m.Called(ctx, status, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*payment.Event), args.Get(1).(int64), args.Error(2)
}

func (m *MockQueryService) GetEvent(ctx context.Context, providerTransactionID string) (*service.EventDetail, error) {
	args := m.Called(ctx, providerTransactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.EventDetail), args.Error(1)
}

func (m *MockQueryService) ListAudit(ctx context.Context, severity audit.Severity, limit int) ([]*audit.Event, error) {
	args := m.Called(ctx, severity, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*audit.Event), args.Error(1)
}

func (m *MockQueryService) ListSnapshots(ctx context.Context, segregatedAccountID string, start, end time.Time, page, perPage int) ([]*snapshot.Snapshot, error) {
	args := m.Called(ctx, segregatedAccountID, start, end, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*snapshot.Snapshot), args.Error(1)
}

type MockResolutionService struct {
	mock.Mock
}

func (m *MockResolutionService) Resolve(ctx context.Context, cmd reconciliation.ResolveCommand) (*payment.Outcome, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Outcome), args.Error(1)
}

func newAdminRouter(query *MockQueryService, resolution *MockResolutionService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewReconciliationHandler(newTestLogger(), query, resolution)

	router := gin.New()
	admin := router.Group("/api/v1/reconciliation")
	admin.GET("/events", h.ListEvents)
	admin.GET("/events/:transactionId", h.GetEvent)
	admin.POST("/events/:transactionId/resolve", h.Resolve)
	admin.GET("/audit", h.ListAudit)
	admin.GET("/snapshots/:segregatedAccountId", h.ListSnapshots)
	return router
}

func sampleEvent(providerID string, status payment.Status) *payment.Event {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	return &payment.Event{
		ID:                    uuid.New(),
		ProviderTransactionID: providerID,
		SegregatedAccountID:   "seg-eur",
		Amount:                10000,
		Currency:              "EUR",
		Direction:             payment.DirectionCredit,
		BeneficiaryIBAN:       eurIBAN,
		Reference:             "TOPUP-ABC123",
		VOPStatus:             payment.VOPNoMatch,
		Source:                payment.SourceWebhook,
		Status:                status,
		ReceivedAt:            now,
		UpdatedAt:             now,
	}
}

func TestReconciliationHandler_ListEvents(t *testing.T) {
	t.Run("DefaultsToUnmatched", func(t *testing.T) {
		query := new(MockQueryService)
		router := newAdminRouter(query, new(MockResolutionService))
		query.On("ListEvents", mock.Anything, payment.StatusUnmatched, 1, 20).
			Return([]*payment.Event{sampleEvent("prov-1", payment.StatusUnmatched)}, int64(21), nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/reconciliation/events", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var response TypedResponse[[]EventResponse]
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		require.Len(t, response.Data, 1)
		assert.Equal(t, "prov-1", response.Data[0].ProviderTransactionID)
		assert.Equal(t, "100.00", response.Data[0].AmountDisplay)
		assert.Equal(t, 2, response.Meta.TotalPages)
		assert.Equal(t, 21, response.Meta.TotalItems)
		query.AssertExpectations(t)
	})

	t.Run("InvalidStatus", func(t *testing.T) {
		query := new(MockQueryService)
		router := newAdminRouter(query, new(MockResolutionService))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/reconciliation/events?status=SETTLED", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		query.AssertNotCalled(t, "ListEvents", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ServiceError", func(t *testing.T) {
		query := new(MockQueryService)
		router := newAdminRouter(query, new(MockResolutionService))
		query.On("ListEvents", mock.Anything, payment.StatusHeldVOP, 2, 10).Return(nil, int64(0), errors.New("db down"))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/reconciliation/events?status=HELD_VOP&page=2&per_page=10", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestReconciliationHandler_GetEvent(t *testing.T) {
	t.Run("WithTrail", func(t *testing.T) {
		query := new(MockQueryService)
		router := newAdminRouter(query, new(MockResolutionService))
		event := sampleEvent("prov-2", payment.StatusHeldVOP)
		trail := []*audit.Event{
			audit.NewEvent(audit.TypeVOP, audit.SeverityWarning, audit.ActionHeldForVOP, "beneficiary name mismatch").ForTransaction("prov-2"),
		}
		query.On("GetEvent", mock.Anything, "prov-2").Return(&service.EventDetail{Event: event, Trail: trail}, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/reconciliation/events/prov-2", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var response TypedResponse[EventDetailResponse]
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "HELD_VOP", response.Data.Event.Status)
		require.Len(t, response.Data.Trail, 1)
		assert.Equal(t, audit.ActionHeldForVOP, response.Data.Trail[0].Action)
	})

	t.Run("NotFound", func(t *testing.T) {
		query := new(MockQueryService)
		router := newAdminRouter(query, new(MockResolutionService))
		query.On("GetEvent", mock.Anything, "missing").Return(nil, payment.ErrEventNotFound{Key: "missing"})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/reconciliation/events/missing", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestReconciliationHandler_Resolve(t *testing.T) {
	topUpID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		resolution := new(MockResolutionService)
		router := newAdminRouter(new(MockQueryService), resolution)
		resolution.On("Resolve", mock.Anything, mock.MatchedBy(func(cmd reconciliation.ResolveCommand) bool {
			return cmd.ProviderTransactionID == "prov-3" &&
				cmd.TopUpRequestID != nil && *cmd.TopUpRequestID == topUpID &&
				cmd.OrderID == nil &&
				cmd.Operator == "ops@example.com"
		})).Return(&payment.Outcome{
			Success:       true,
			TransactionID: "prov-3",
			MatchType:     payment.MatchTypeTopUp,
			Reconciled:    true,
			Message:       "resolved manually",
		}, nil)

		body, _ := json.Marshal(map[string]string{
			"top_up_request_id": topUpID.String(),
			"operator":          "ops@example.com",
			"reason":            "sender confirmed by phone",
		})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/reconciliation/events/prov-3/resolve", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var response TypedResponse[ResolveResponse]
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "topup_request", response.Data.MatchType)
		assert.True(t, response.Data.Reconciled)
		resolution.AssertExpectations(t)
	})

	t.Run("InvalidBody", func(t *testing.T) {
		resolution := new(MockResolutionService)
		router := newAdminRouter(new(MockQueryService), resolution)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/reconciliation/events/prov-3/resolve",
			bytes.NewBufferString(`{"top_up_request_id":"not-a-uuid","operator":"ops","reason":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resolution.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
	})

	errorCases := []struct {
		name   string
		err    error
		status int
	}{
		{"NoTarget", reconciliation.ErrResolutionTarget, http.StatusBadRequest},
		{"EventMissing", payment.ErrEventNotFound{Key: "prov-3"}, http.StatusNotFound},
		{"RequestMissing", topup.ErrRequestNotFound{ID: topUpID}, http.StatusNotFound},
		{"OrderMissing", order.ErrOrderNotFound{ID: uuid.New()}, http.StatusNotFound},
		{"AlreadyResolved", reconciliation.ErrNotAwaitingReview, http.StatusConflict},
		{"RequestExpired", topup.ErrNotPending, http.StatusConflict},
		{"WrappedConflict", errors.Join(errors.New("apply"), order.ErrNotAwaitingPayment), http.StatusConflict},
		{"Unexpected", errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			resolution := new(MockResolutionService)
			router := newAdminRouter(new(MockQueryService), resolution)
			resolution.On("Resolve", mock.Anything, mock.Anything).Return(nil, tc.err)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/reconciliation/events/prov-3/resolve",
				bytes.NewBufferString(`{"operator":"ops","reason":"checked"}`))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestReconciliationHandler_ListAudit(t *testing.T) {
	query := new(MockQueryService)
	router := newAdminRouter(query, new(MockResolutionService))
	record := audit.NewEvent(audit.TypeBalanceCheck, audit.SeverityCritical, audit.ActionBalanceMismatch, "drift").
		With("difference", int64(5000))
	query.On("ListAudit", mock.Anything, audit.SeverityCritical, 50).Return([]*audit.Event{record}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reconciliation/audit?severity=CRITICAL", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var response TypedResponse[[]AuditResponse]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response.Data, 1)
	assert.Equal(t, "CRITICAL", response.Data[0].Severity)
	assert.Equal(t, float64(5000), response.Data[0].Metadata["difference"])
}

func TestReconciliationHandler_ListSnapshots(t *testing.T) {
	t.Run("ExplicitWindow", func(t *testing.T) {
		query := new(MockQueryService)
		router := newAdminRouter(query, new(MockResolutionService))
		from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
		snap := &snapshot.Snapshot{
			ID:                  "snap-1",
			SegregatedAccountID: "seg-eur",
			Currency:            "EUR",
			ProviderTotal:       100000,
			LocalTotal:          95000,
			Difference:          5000,
			IsValid:             false,
			Breakdown:           []snapshot.AccountBalance{{AccountID: "acc-1", IBAN: eurIBAN, Balance: 95000}},
			CreatedAt:           to,
		}
		query.On("ListSnapshots", mock.Anything, "seg-eur", from, to, 1, 20).Return([]*snapshot.Snapshot{snap}, nil)

		req := httptest.NewRequest(http.MethodGet,
			"/api/v1/reconciliation/snapshots/seg-eur?from=2026-03-01T00:00:00Z&to=2026-03-02T00:00:00Z", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var response TypedResponse[[]SnapshotResponse]
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		require.Len(t, response.Data, 1)
		assert.Equal(t, "1000.00", response.Data[0].ProviderTotal)
		assert.Equal(t, "50.00", response.Data[0].Difference)
		assert.False(t, response.Data[0].IsValid)
		require.Len(t, response.Data[0].Breakdown, 1)
		assert.Equal(t, "950.00", response.Data[0].Breakdown[0].Balance)
	})

	t.Run("DefaultWindow", func(t *testing.T) {
		query := new(MockQueryService)
		router := newAdminRouter(query, new(MockResolutionService))
		query.On("ListSnapshots", mock.Anything, "seg-eur",
			mock.MatchedBy(func(start time.Time) bool { return time.Since(start) > 23*time.Hour }),
			mock.MatchedBy(func(end time.Time) bool { return time.Since(end) < time.Minute }),
			1, 20).Return([]*snapshot.Snapshot{}, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/reconciliation/snapshots/seg-eur", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		query.AssertExpectations(t)
	})

	t.Run("BadTimestamp", func(t *testing.T) {
		router := newAdminRouter(new(MockQueryService), new(MockResolutionService))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/reconciliation/snapshots/seg-eur?from=yesterday", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/viban-reconciler/internal/domain/account"
	"github.com/viban-reconciler/internal/domain/audit"
	"github.com/viban-reconciler/internal/domain/order"
	"github.com/viban-reconciler/internal/domain/payment"
	"github.com/viban-reconciler/internal/domain/shared"
	"github.com/viban-reconciler/internal/domain/snapshot"
	"github.com/viban-reconciler/internal/domain/topup"
	reconciliation "github.com/viban-reconciler/internal/reconciliation/service"
	"github.com/viban-reconciler/internal/webhook_gateway/service"
)

// ReconciliationHandler serves the admin reconciliation queue
type ReconciliationHandler struct {
	queryService service.QueryService
	resolution   reconciliation.ResolutionService
	logger       *slog.Logger
}

// NewReconciliationHandler creates a new reconciliation handler
func NewReconciliationHandler(logger *slog.Logger, queryService service.QueryService, resolution reconciliation.ResolutionService) *ReconciliationHandler {
	return &ReconciliationHandler{
		queryService: queryService,
		resolution:   resolution,
		logger:       logger,
	}
}

// ListEvents returns a page of events in one status, UNMATCHED by default
func (h *ReconciliationHandler) ListEvents(c *gin.Context) {
	var params EventListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		h.logger.Error("Invalid query parameters", "error", err)
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	events, total, err := h.queryService.ListEvents(c.Request.Context(), payment.Status(params.Status), params.Page, params.PerPage)
	if err != nil {
		h.logger.Error("Failed to list events", "status", params.Status, "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]EventResponse, 0, len(events))
	for _, event := range events {
		responses = append(responses, mapEventToResponse(event))
	}

	RespondWithPaginatedData(c, http.StatusOK, responses, params.Page, params.PerPage, int(total))
}

// GetEvent returns one event and its audit trail
func (h *ReconciliationHandler) GetEvent(c *gin.Context) {
	transactionID := c.Param("transactionId")

	detail, err := h.queryService.GetEvent(c.Request.Context(), transactionID)
	if err != nil {
		if errors.Is(err, payment.ErrEventNotFound{}) {
			RespondNotFound(c, "Transaction event not found")
			return
		}
		h.logger.Error("Failed to get event", "transaction_id", transactionID, "error", err)
		RespondInternalError(c)
		return
	}

	trail := make([]AuditResponse, 0, len(detail.Trail))
	for _, record := range detail.Trail {
		trail = append(trail, mapAuditToResponse(record))
	}

	RespondOK(c, EventDetailResponse{
		Event: mapEventToResponse(detail.Event),
		Trail: trail,
	})
}

// Resolve applies an operator decision to a HELD_VOP or UNMATCHED event
func (h *ReconciliationHandler) Resolve(c *gin.Context) {
	transactionID := c.Param("transactionId")

	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	cmd := reconciliation.ResolveCommand{
		ProviderTransactionID: transactionID,
		Operator:              req.Operator,
		Reason:                req.Reason,
	}
	if req.TopUpRequestID != "" {
		id := uuid.MustParse(req.TopUpRequestID)
		cmd.TopUpRequestID = &id
	}
	if req.OrderID != "" {
		id := uuid.MustParse(req.OrderID)
		cmd.OrderID = &id
	}

	outcome, err := h.resolution.Resolve(c.Request.Context(), cmd)
	if err != nil {
		h.respondResolutionError(c, transactionID, err)
		return
	}

	RespondOK(c, ResolveResponse{
		TransactionID: outcome.TransactionID,
		MatchType:     string(outcome.MatchType),
		Reconciled:    outcome.Reconciled,
		Message:       outcome.Message,
	})
}

func (h *ReconciliationHandler) respondResolutionError(c *gin.Context, transactionID string, err error) {
	switch {
	case errors.Is(err, reconciliation.ErrResolutionTarget),
		errors.Is(err, reconciliation.ErrOperatorRequired):
		RespondBadRequest(c, err.Error())
	case errors.Is(err, payment.ErrEventNotFound{}),
		errors.Is(err, topup.ErrRequestNotFound{}),
		errors.Is(err, order.ErrOrderNotFound{}),
		errors.Is(err, account.ErrAccountNotFound{}):
		RespondNotFound(c, err.Error())
	case errors.Is(err, reconciliation.ErrNotAwaitingReview),
		errors.Is(err, payment.ErrInvalidTransition{}),
		errors.Is(err, topup.ErrNotPending),
		errors.Is(err, order.ErrNotAwaitingPayment),
		errors.Is(err, account.ErrCurrencyMismatch),
		errors.Is(err, account.ErrAccountNotActive):
		RespondConflict(c, err.Error())
	default:
		h.logger.Error("Failed to resolve event", "transaction_id", transactionID, "error", err)
		RespondInternalError(c)
	}
}

// ListAudit returns recent audit records, newest first
func (h *ReconciliationHandler) ListAudit(c *gin.Context) {
	var params AuditListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		h.logger.Error("Invalid query parameters", "error", err)
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	records, err := h.queryService.ListAudit(c.Request.Context(), audit.Severity(params.Severity), params.Limit)
	if err != nil {
		h.logger.Error("Failed to list audit events", "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]AuditResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, mapAuditToResponse(record))
	}
	RespondOK(c, responses)
}

// ListSnapshots returns the balance validation history of one grouping.
// The window defaults to the last 24 hours.
func (h *ReconciliationHandler) ListSnapshots(c *gin.Context) {
	segregatedAccountID := c.Param("segregatedAccountId")

	var params SnapshotListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		h.logger.Error("Invalid query parameters", "error", err)
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	end := time.Now().UTC()
	start := end.Add(-24 * time.Hour)
	var err error
	if params.From != "" {
		if start, err = time.Parse(time.RFC3339, params.From); err != nil {
			RespondBadRequest(c, "from must be an RFC3339 timestamp")
			return
		}
	}
	if params.To != "" {
		if end, err = time.Parse(time.RFC3339, params.To); err != nil {
			RespondBadRequest(c, "to must be an RFC3339 timestamp")
			return
		}
	}

	snapshots, err := h.queryService.ListSnapshots(c.Request.Context(), segregatedAccountID, start, end, params.Page, params.PerPage)
	if err != nil {
		h.logger.Error("Failed to list snapshots", "segregated_account_id", segregatedAccountID, "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]SnapshotResponse, 0, len(snapshots))
	for _, snap := range snapshots {
		responses = append(responses, mapSnapshotToResponse(snap))
	}
	RespondOK(c, responses)
}

func mapEventToResponse(event *payment.Event) EventResponse {
	response := EventResponse{
		ID:                    event.ID.String(),
		ProviderTransactionID: event.ProviderTransactionID,
		SegregatedAccountID:   event.SegregatedAccountID,
		Amount:                event.Amount,
		AmountDisplay:         shared.FormatMinor(event.Amount, event.Currency),
		Currency:              event.Currency,
		BeneficiaryIBAN:       event.BeneficiaryIBAN,
		SenderName:            event.SenderName,
		SenderIBAN:            event.SenderIBAN,
		Reference:             event.Reference,
		VOPStatus:             string(event.VOPStatus),
		Source:                string(event.Source),
		Status:                string(event.Status),
		StatusReason:          event.StatusReason,
		ReceivedAt:            event.ReceivedAt.Format(time.RFC3339),
		UpdatedAt:             event.UpdatedAt.Format(time.RFC3339),
	}

	if event.MatchedTopUpID != nil {
		response.MatchedTopUpID = event.MatchedTopUpID.String()
	}
	if event.MatchedOrderID != nil {
		response.MatchedOrderID = event.MatchedOrderID.String()
	}

	return response
}

func mapAuditToResponse(record *audit.Event) AuditResponse {
	return AuditResponse{
		ID:            record.ID.String(),
		Type:          string(record.Type),
		Severity:      string(record.Severity),
		Action:        record.Action,
		TransactionID: record.TransactionID,
		Actor:         record.Actor,
		Reason:        record.Reason,
		Metadata:      record.Metadata,
		CreatedAt:     record.CreatedAt.Format(time.RFC3339),
	}
}

func mapSnapshotToResponse(snap *snapshot.Snapshot) SnapshotResponse {
	breakdown := make([]AccountBalanceResult, 0, len(snap.Breakdown))
	for _, b := range snap.Breakdown {
		breakdown = append(breakdown, AccountBalanceResult{
			AccountID: b.AccountID,
			IBAN:      b.IBAN,
			Balance:   shared.FormatMinor(b.Balance, snap.Currency),
		})
	}

	return SnapshotResponse{
		ID:                  snap.ID,
		SegregatedAccountID: snap.SegregatedAccountID,
		Currency:            snap.Currency,
		ProviderTotal:       shared.FormatMinor(snap.ProviderTotal, snap.Currency),
		LocalTotal:          shared.FormatMinor(snap.LocalTotal, snap.Currency),
		Difference:          shared.FormatMinor(snap.Difference, snap.Currency),
		IsValid:             snap.IsValid,
		Breakdown:           breakdown,
		CreatedAt:           snap.CreatedAt.Format(time.RFC3339),
	}
}

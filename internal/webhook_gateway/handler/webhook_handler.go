package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/viban-reconciler/internal/domain/audit"
	"github.com/viban-reconciler/internal/domain/payment"
	"github.com/viban-reconciler/internal/reconciliation/service"
	"github.com/viban-reconciler/internal/webhook_gateway/middleware"
)

// WebhookHandler receives provider payment notifications. Every POST is
// answered with 200 so the provider never retries because of our failures;
// idempotent ingestion and the polling job cover what is lost.
type WebhookHandler struct {
	ingestion service.IngestionService
	auditSink audit.Sink
	logger    *slog.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(logger *slog.Logger, ingestion service.IngestionService, auditSink audit.Sink) *WebhookHandler {
	return &WebhookHandler{
		ingestion: ingestion,
		auditSink: auditSink,
		logger:    logger,
	}
}

// Receive normalizes the payload and runs it through ingestion within the
// processing budget
func (h *WebhookHandler) Receive(c *gin.Context) {
	raw, ok := middleware.GetRawBody(c)
	if !ok {
		var err error
		if raw, err = io.ReadAll(c.Request.Body); err != nil {
			h.logger.Error("Failed to read webhook body", "error", err)
			respondAck(c, payment.FailedOutcome("", "unreadable request body"))
			return
		}
	}

	event, err := payment.ParseWebhook(raw, time.Now().UTC())
	if err != nil {
		transactionID := peekTransactionID(raw)
		c.Set(middleware.TransactionIDKey, transactionID)
		h.logger.Error("Malformed webhook payload", "error", err, "transaction_id", transactionID)
		h.auditSink.Record(c.Request.Context(), audit.NewEvent(audit.TypeWebhook, audit.SeverityError, audit.ActionMalformedPayload, err.Error()).
			ForTransaction(transactionID).
			With("correlation_id", middleware.GetCorrelationID(c)).
			With("payload", string(raw)))
		respondAck(c, payment.FailedOutcome(transactionID, err.Error()))
		return
	}
	c.Set(middleware.TransactionIDKey, event.ProviderTransactionID)

	outcome, err := h.ingestion.Ingest(c.Request.Context(), event)
	if err != nil {
		h.logger.Error("Webhook ingestion failed", "transaction_id", event.ProviderTransactionID, "error", err)
		respondAck(c, payment.FailedOutcome(event.ProviderTransactionID, "processing failed; the payment will be retried"))
		return
	}

	respondAck(c, outcome)
}

// Verify answers the provider's endpoint verification call
func (h *WebhookHandler) Verify(c *gin.Context) {
	c.JSON(http.StatusOK, VerificationResponse{
		Status:    "ok",
		Challenge: c.Query("challenge"),
	})
}

func respondAck(c *gin.Context, outcome *payment.Outcome) {
	c.JSON(http.StatusOK, WebhookResponse{
		Success:        outcome.Success,
		TransactionID:  outcome.TransactionID,
		MatchType:      string(outcome.MatchType),
		Reconciled:     outcome.Reconciled,
		RequiresReview: outcome.RequiresReview,
		Deferred:       outcome.Deferred,
		Message:        outcome.Message,
	})
}

// peekTransactionID extracts the id from a payload that failed validation
func peekTransactionID(raw []byte) string {
	var partial struct {
		TransactionID string `json:"transactionId"`
	}
	_ = json.Unmarshal(raw, &partial)
	return partial.TransactionID
}

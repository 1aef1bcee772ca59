package webhook_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/viban-reconciler/internal/config"
	"github.com/viban-reconciler/internal/webhook_gateway/handler"
	"github.com/viban-reconciler/internal/webhook_gateway/middleware"
)

// setupRouter configures the provider webhook, the admin reconciliation API
// and the health check
func setupRouter(
	logger *slog.Logger,
	cfg *config.WebhookConfig,
	r *gin.Engine,
	webhookHandler *handler.WebhookHandler,
	reconciliationHandler *handler.ReconciliationHandler,
) {
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Logger(logger))

	// Provider callbacks: always acknowledged, even on panic
	webhooks := r.Group("/webhooks")
	webhooks.Use(middleware.AckOnPanic(logger))
	{
		webhooks.GET("/viban", webhookHandler.Verify)
		webhooks.POST("/viban", middleware.VerifySignature(cfg.Secret, cfg.SignatureHeader, logger), webhookHandler.Receive)
	}

	// Admin reconciliation queue
	v1 := r.Group("/api/v1")
	v1.Use(middleware.Recovery(logger))
	{
		reconciliation := v1.Group("/reconciliation")
		{
			reconciliation.GET("/events", reconciliationHandler.ListEvents)
			reconciliation.GET("/events/:transactionId", reconciliationHandler.GetEvent)
			reconciliation.POST("/events/:transactionId/resolve", reconciliationHandler.Resolve)
			reconciliation.GET("/audit", reconciliationHandler.ListAudit)
			reconciliation.GET("/snapshots/:segregatedAccountId", reconciliationHandler.ListSnapshots)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}

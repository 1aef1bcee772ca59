package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// Recovery catches panics, logs them with stack traces, and returns a 500
// error carrying the correlation ID
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return recoverWith(logger, func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, withCorrelation(c, gin.H{
			"error": gin.H{
				"code":    "INTERNAL_SERVER_ERROR",
				"message": "An internal server error occurred",
			},
		}))
	})
}

// AckOnPanic is Recovery for provider callbacks: the provider still receives
// a 200 so it does not start a retry storm. The polling job recovers the
// payment if nothing was stored.
func AckOnPanic(logger *slog.Logger) gin.HandlerFunc {
	return recoverWith(logger, func(c *gin.Context) {
		abortWithFailedAck(c, "internal error; delivery acknowledged")
	})
}

// abortWithFailedAck answers a provider callback with the 200 webhook
// response shape and success=false.
func abortWithFailedAck(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusOK, withCorrelation(c, gin.H{
		"success":        false,
		"transactionId":  GetTransactionID(c),
		"matchType":      "none",
		"reconciled":     false,
		"requiresReview": false,
		"message":        message,
	}))
}

func recoverWith(logger *slog.Logger, respond func(c *gin.Context)) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Panic recovered",
					"error", r,
					"stack", string(debug.Stack()),
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
					"transaction_id", GetTransactionID(c),
				)
				respond(c)
			}
		}()

		c.Next()
	}
}

func withCorrelation(c *gin.Context, body gin.H) gin.H {
	if correlationID := GetCorrelationID(c); correlationID != "" {
		body["correlation_id"] = correlationID
	}
	return body
}

package middleware

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/viban-reconciler/internal/webhook_gateway/signature"
)

const (
	// RawBodyKey holds the request body read for verification
	RawBodyKey = "raw_body"

	maxWebhookBody = 1 << 20
)

var ErrBodyTooLarge = errors.New("webhook body exceeds 1 MiB")

// VerifySignature reads the body once, checks the HMAC in header and stores
// the raw bytes for the handler. An empty secret disables the check. Only a
// bad signature is refused; an unreadable or oversized body is acknowledged
// with success=false like any other undeliverable webhook.
func VerifySignature(secret, header string, logger *slog.Logger) gin.HandlerFunc {
	if secret == "" {
		logger.Warn("Webhook signature verification is disabled, no secret configured")
	}

	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
		if err == nil && len(body) > maxWebhookBody {
			err = ErrBodyTooLarge
		}
		if err != nil {
			logger.Warn("Failed to read webhook body", "error", err, "correlation_id", GetCorrelationID(c))
			abortWithFailedAck(c, "unreadable request body: "+err.Error())
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Set(RawBodyKey, body)

		if secret != "" {
			if err := signature.Verify(secret, body, c.GetHeader(header)); err != nil {
				logger.Warn("Rejected webhook with invalid signature",
					"client_ip", c.ClientIP(),
					"correlation_id", GetCorrelationID(c),
				)
				c.AbortWithStatusJSON(http.StatusUnauthorized, withCorrelation(c, gin.H{
					"error": gin.H{"code": "UNAUTHORIZED", "message": err.Error()},
				}))
				return
			}
		}

		c.Next()
	}
}

// GetRawBody returns the body stored by VerifySignature
func GetRawBody(c *gin.Context) ([]byte, bool) {
	v, exists := c.Get(RawBodyKey)
	if !exists {
		return nil, false
	}
	body, ok := v.([]byte)
	return body, ok
}

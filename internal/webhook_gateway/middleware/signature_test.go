package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viban-reconciler/internal/webhook_gateway/signature"
)

const signatureHeader = "X-Signature"

func newSignedRouter(secret string) (*gin.Engine, *[]byte) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	router := gin.New()
	router.Use(VerifySignature(secret, signatureHeader, logger))

	var seen []byte
	router.POST("/webhooks/viban", func(c *gin.Context) {
		seen, _ = GetRawBody(c)
		c.Status(http.StatusOK)
	})
	return router, &seen
}

func TestVerifySignature(t *testing.T) {
	gin.SetMode(gin.TestMode)
	body := []byte(`{"transactionId":"prov-tx-1"}`)

	t.Run("ValidSignaturePassesBodyThrough", func(t *testing.T) {
		router, seen := newSignedRouter("secret")
		req, _ := http.NewRequest(http.MethodPost, "/webhooks/viban", bytes.NewReader(body))
		req.Header.Set(signatureHeader, "sha256="+signature.Sign("secret", body))

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, body, *seen)
	})

	t.Run("InvalidSignatureRejected", func(t *testing.T) {
		router, seen := newSignedRouter("secret")
		req, _ := http.NewRequest(http.MethodPost, "/webhooks/viban", bytes.NewReader(body))
		req.Header.Set(signatureHeader, signature.Sign("wrong", body))

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), "UNAUTHORIZED")
		assert.Nil(t, *seen)
	})

	t.Run("MissingSignatureRejected", func(t *testing.T) {
		router, _ := newSignedRouter("secret")
		req, _ := http.NewRequest(http.MethodPost, "/webhooks/viban", bytes.NewReader(body))

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("NoSecretSkipsVerification", func(t *testing.T) {
		router, seen := newSignedRouter("")
		req, _ := http.NewRequest(http.MethodPost, "/webhooks/viban", bytes.NewReader(body))

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, body, *seen)
	})

	t.Run("OversizedBodyAcknowledged", func(t *testing.T) {
		router, seen := newSignedRouter("secret")
		req, _ := http.NewRequest(http.MethodPost, "/webhooks/viban", strings.NewReader(strings.Repeat("a", maxWebhookBody+1)))

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Nil(t, *seen)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, false, resp["success"])
		assert.Equal(t, "none", resp["matchType"])
		assert.Contains(t, resp["message"], ErrBodyTooLarge.Error())
	})

	t.Run("UnreadableBodyAcknowledged", func(t *testing.T) {
		router, seen := newSignedRouter("")
		req, _ := http.NewRequest(http.MethodPost, "/webhooks/viban", iotest.ErrReader(errors.New("connection reset")))

		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Nil(t, *seen)
		assert.Contains(t, rr.Body.String(), `"success":false`)
	})
}

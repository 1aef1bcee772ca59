// Package signature verifies the provider's webhook body signature: the hex
// encoded HMAC-SHA256 of the raw request body, optionally prefixed "sha256=".
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

const prefix = "sha256="

var ErrSignatureInvalid = errors.New("webhook signature is missing or invalid")

// Sign returns the hex signature of body
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks header against body in constant time
func Verify(secret string, body []byte, header string) error {
	header = strings.TrimSpace(header)
	header = strings.TrimPrefix(strings.ToLower(header), prefix)
	if header == "" {
		return ErrSignatureInvalid
	}

	got, err := hex.DecodeString(header)
	if err != nil {
		return ErrSignatureInvalid
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrSignatureInvalid
	}
	return nil
}

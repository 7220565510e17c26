// Package webhook provides boundary utilities for inbound webhook requests.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifySignature checks an inbound webhook signature: an HMAC-SHA256 of the
// raw request body under the shared secret, presented as a hex digest
// optionally prefixed "sha256=". Malformed hex and length mismatches are
// verification failures, never errors.
func VerifySignature(appSecret string, rawBody []byte, signatureHeader string) bool {
	if signatureHeader == "" {
		return false
	}

	digest := strings.TrimPrefix(signatureHeader, "sha256=")
	received, err := hex.DecodeString(digest)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(rawBody)
	expected := mac.Sum(nil)

	// hmac.Equal is constant-time and false on length mismatch.
	return hmac.Equal(received, expected)
}

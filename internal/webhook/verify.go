package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

const signatureScheme = "sha256="

// VerifySignature checks that signatureHeader carries a valid HMAC-SHA256 of
// body keyed by secret, in the platform's "sha256=<hex>" form. The
// comparison is constant-time. A missing header or secret fails verification
// rather than passing by default, and a malformed header is a failure, not a
// panic.
func VerifySignature(body []byte, signatureHeader, secret string) bool {
	if secret == "" || signatureHeader == "" {
		return false
	}
	if len(signatureHeader) <= len(signatureScheme) || signatureHeader[:len(signatureScheme)] != signatureScheme {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signatureHeader[len(signatureScheme):]))
}

package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
)

// Webhook signature verification for the supported payment providers.
// All comparisons are constant time and a missing secret fails closed.

type VerificationResult struct {
	Valid bool
	Err   error
}

var (
	errSecretMissing    = errors.New("webhook secret not configured")
	errSignatureMissing = errors.New("signature missing")
)

// VerifySepay checks the HMAC-SHA256 hex signature computed over the raw
// payload bytes.
func VerifySepay(payload []byte, signature, secret string) VerificationResult {
	if secret == "" {
		return VerificationResult{Valid: false, Err: errSecretMissing}
	}
	if signature == "" {
		return VerificationResult{Valid: false, Err: errSignatureMissing}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return VerificationResult{Valid: constantTimeEqual(signature, expected)}
}

// VerifyCasso checks the shared secure token sent inside the payload.
func VerifyCasso(secureToken, expectedToken string) VerificationResult {
	if expectedToken == "" {
		return VerificationResult{Valid: false, Err: errSecretMissing}
	}
	if secureToken == "" {
		return VerificationResult{Valid: false, Err: errSignatureMissing}
	}
	return VerificationResult{Valid: constantTimeEqual(secureToken, expectedToken)}
}

// VerifyVNPay checks vnp_SecureHash: HMAC-SHA256 over the remaining params
// sorted by key and joined as key=value&..., compared case-insensitively.
func VerifyVNPay(params map[string]string, receivedHash, secret string) VerificationResult {
	if secret == "" {
		return VerificationResult{Valid: false, Err: errSecretMissing}
	}
	if receivedHash == "" {
		return VerificationResult{Valid: false, Err: errSignatureMissing}
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "vnp_SecureHash" || k == "vnp_SecureHashType" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	signData := strings.Join(pairs, "&")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signData))
	expected := hex.EncodeToString(mac.Sum(nil))

	return VerificationResult{Valid: constantTimeEqual(strings.ToLower(receivedHash), expected)}
}

// constantTimeEqual compares two strings in time independent of both content
// and length: both sides are reduced to fixed-size SHA-256 digests first, so
// a short or mismatched-length candidate consumes the same time as a
// near-miss of equal length.
func constantTimeEqual(a, b string) bool {
	da := sha256.Sum256([]byte(a))
	db := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(da[:], db[:]) == 1
}

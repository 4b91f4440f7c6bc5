package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// SignatureHeader is the request header carrying the delivery signature.
const SignatureHeader = "X-Meetwire-Signature"

// signaturePrefix tags the only digest algorithm this package computes.
// A header with any other tag is malformed, not merely mismatched.
const signaturePrefix = "sha256="

// ErrMissingSignature is returned when the signature header is absent or
// empty.
var ErrMissingSignature = errors.New("webhook: missing signature header")

// ErrSignatureMismatch is returned when a well-formed signature does not
// match the payload.
var ErrSignatureMismatch = errors.New("webhook: signature mismatch")

// FormatError reports a signature header that does not have the expected
// "sha256=<hex>" shape.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("webhook: malformed signature header: %s", e.Reason)
}

// VerificationResult is the outcome of one verification attempt.
type VerificationResult struct {
	Valid bool
	Err   error
}

// Sign computes the signature header value for a payload. It is the inverse
// of Verify and is primarily useful for tests and local tooling.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks that signature authenticates payload under secret.
//
// The digest comparison is constant-time. A digest of the wrong length is
// rejected without a byte-wise comparison, which leaks nothing about how
// much of the digest matched.
func Verify(secret string, payload []byte, signature string) VerificationResult {
	if signature == "" {
		return VerificationResult{Valid: false, Err: ErrMissingSignature}
	}

	rest, ok := strings.CutPrefix(signature, signaturePrefix)
	if !ok {
		return VerificationResult{Valid: false, Err: &FormatError{Reason: "expected sha256= prefix"}}
	}

	provided, err := hex.DecodeString(rest)
	if err != nil {
		return VerificationResult{Valid: false, Err: &FormatError{Reason: "digest is not hex"}}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := mac.Sum(nil)

	// hmac.Equal is constant-time and rejects length mismatches up front.
	if !hmac.Equal(expected, provided) {
		return VerificationResult{Valid: false, Err: ErrSignatureMismatch}
	}

	return VerificationResult{Valid: true}
}

// Package webhook authenticates DocuSign Connect deliveries signed with HMAC-SHA256.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
)

const (
	// SignatureHeaderPrefix is followed by the key index, starting at 1.
	SignatureHeaderPrefix = "X-DocuSign-Signature-"
	// maxSignatureHeaders bounds the number of Connect HMAC keys looked up.
	maxSignatureHeaders = 10
)

var (
	ErrMissingSignature = errors.New("missing webhook signature")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Sign returns the base64 HMAC-SHA256 of body, as Connect sends it.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify checks body against every X-DocuSign-Signature-N header returned by header.
// One matching signature is enough since Connect signs with each active key.
// An empty secret disables verification.
func Verify(secret string, body []byte, header func(key string) string) error {
	if strings.TrimSpace(secret) == "" {
		return nil
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	expected := mac.Sum(nil)

	seen := false
	for i := 1; i <= maxSignatureHeaders; i++ {
		sig := strings.TrimSpace(header(SignatureHeaderPrefix + strconv.Itoa(i)))
		if sig == "" {
			continue
		}
		seen = true
		got, err := base64.StdEncoding.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(got, expected) {
			return nil
		}
	}
	if !seen {
		return ErrMissingSignature
	}
	return ErrInvalidSignature
}

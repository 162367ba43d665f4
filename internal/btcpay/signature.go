package btcpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
)

// SignatureHeader is the header BTCPay Server signs webhook deliveries with.
const SignatureHeader = "BTCPay-Sig"

// Older proxies and test tooling forward the signature under these names.
var alternateSignatureHeaders = []string{"X-BTCPay-Sig", "X-Signature"}

const signaturePrefix = "sha256="

var (
	ErrSecretNotConfigured = errors.New("btcpay webhook secret not configured")
	ErrMissingSignature    = errors.New("missing webhook signature")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
)

// Verifier authenticates webhook bodies against the shared store secret.
// It holds no mutable state and is safe for concurrent use.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrSecretNotConfigured
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Verify checks received against HMAC-SHA256(secret, body).
// received may be bare hex or carry the "sha256=" prefix.
func (v *Verifier) Verify(body []byte, received string) error {
	received = strings.TrimSpace(received)
	if received == "" {
		return ErrMissingSignature
	}
	if len(received) >= len(signaturePrefix) && strings.EqualFold(received[:len(signaturePrefix)], signaturePrefix) {
		received = received[len(signaturePrefix):]
	}

	got, err := hex.DecodeString(received)
	if err != nil {
		return ErrInvalidSignature
	}
	if !hmac.Equal(got, v.mac(body)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns the header value BTCPay would send for body.
func (v *Verifier) Sign(body []byte) string {
	return signaturePrefix + hex.EncodeToString(v.mac(body))
}

func (v *Verifier) mac(body []byte) []byte {
	m := hmac.New(sha256.New, v.secret)
	m.Write(body)
	return m.Sum(nil)
}

// SignatureFromHeader returns the first non-empty signature header.
func SignatureFromHeader(h http.Header) string {
	if s := h.Get(SignatureHeader); s != "" {
		return s
	}
	for _, name := range alternateSignatureHeaders {
		if s := h.Get(name); s != "" {
			return s
		}
	}
	return ""
}

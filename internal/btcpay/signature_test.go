package btcpay

import (
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestNewVerifier_RequiresSecret(t *testing.T) {
	if _, err := NewVerifier(" "); !errors.Is(err, ErrSecretNotConfigured) {
		t.Fatalf("expected ErrSecretNotConfigured, got %v", err)
	}
}

func TestVerify_AcceptsPrefixedAndBareHex(t *testing.T) {
	v, err := NewVerifier("whsec")
	if err != nil {
		t.Fatal(err)
	}
	body := []byte(`{"type":"InvoiceSettled","invoiceId":"INV-001"}`)
	sig := v.Sign(body)
	if !strings.HasPrefix(sig, "sha256=") {
		t.Fatalf("expected prefixed signature, got %q", sig)
	}

	for _, s := range []string{sig, strings.TrimPrefix(sig, "sha256="), "SHA256=" + strings.TrimPrefix(sig, "sha256=")} {
		if err := v.Verify(body, s); err != nil {
			t.Fatalf("verify %q: %v", s, err)
		}
	}
}

func TestVerify_Rejects(t *testing.T) {
	v, _ := NewVerifier("whsec")
	other, _ := NewVerifier("other")
	body := []byte(`{"a":1}`)

	cases := []struct {
		name string
		sig  string
		want error
	}{
		{"missing", "", ErrMissingSignature},
		{"not hex", "sha256=zz", ErrInvalidSignature},
		{"wrong secret", other.Sign(body), ErrInvalidSignature},
		{"tampered body", v.Sign([]byte(`{"a":2}`)), ErrInvalidSignature},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := v.Verify(body, tc.sig); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestSignatureFromHeader(t *testing.T) {
	h := http.Header{}
	if got := SignatureFromHeader(h); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	h.Set("X-Signature", "alt")
	if got := SignatureFromHeader(h); got != "alt" {
		t.Fatalf("expected alternate header, got %q", got)
	}
	h.Set("btcpay-sig", "primary")
	if got := SignatureFromHeader(h); got != "primary" {
		t.Fatalf("expected primary header, got %q", got)
	}
}

package topup

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"topup-ledger/internal/audit"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
)

func newRouter(h *harness, maxBody int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhooks/btcpay", WebhookHandler{Processor: h.proc, MaxBodyBytes: maxBody}.Handle)
	return r
}

func post(r http.Handler, body, sig string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/btcpay", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sig != "" {
		req.Header.Set("BTCPay-Sig", sig)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeAck(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return m
}

func TestWebhookHandler_Credited(t *testing.T) {
	h := newHarness(t, Classifier{})
	r := newRouter(h, 1<<20)

	w := post(r, settledINV001, h.verifier.Sign([]byte(settledINV001)))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	ack := decodeAck(t, w)
	if ack["received"] != true || ack["processed"] != true {
		t.Fatalf("unexpected ack: %v", ack)
	}

	w = post(r, settledINV001, h.verifier.Sign([]byte(settledINV001)))
	ack = decodeAck(t, w)
	if w.Code != http.StatusOK || ack["processed"] != false || ack["ignored"] != "already settled" {
		t.Fatalf("unexpected redelivery ack %d: %v", w.Code, ack)
	}
}

func TestWebhookHandler_VerifiesExactBytes(t *testing.T) {
	h := newHarness(t, Classifier{})
	r := newRouter(h, 1<<20)

	// Whitespace changes the bytes, so the signature of the compact form must not match.
	pretty := strings.Replace(settledINV001, `"type":"InvoiceSettled"`, `"type": "InvoiceSettled"`, 1)
	w := post(r, pretty, h.verifier.Sign([]byte(settledINV001)))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if ack := decodeAck(t, w); ack["received"] != false || ack["error"] != "unauthorized" {
		t.Fatalf("unexpected ack: %v", ack)
	}
	if strings.Contains(w.Body.String(), secret) {
		t.Fatalf("secret leaked into response")
	}
}

func TestWebhookHandler_AlternateHeader(t *testing.T) {
	h := newHarness(t, Classifier{})
	r := newRouter(h, 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/btcpay", strings.NewReader(settledINV001))
	req.Header.Set("X-Signature", strings.TrimPrefix(h.verifier.Sign([]byte(settledINV001)), "sha256="))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestWebhookHandler_BodyTooLarge(t *testing.T) {
	h := newHarness(t, Classifier{})
	r := newRouter(h, 64)

	body := `{"type":"InvoiceCreated","invoiceId":"INV-BIG","metadata":{"userId":"` + userU1 + `","topupAmountUsd":"25.00","note":"` + strings.Repeat("x", 120) + `"}}`
	w := post(r, body, h.verifier.Sign([]byte(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("oversized body must be acknowledged, got %d", w.Code)
	}
	if ack := decodeAck(t, w); ack["received"] != true || ack["error"] != "rejected" {
		t.Fatalf("unexpected ack: %v", ack)
	}
	evs := h.audits.Events()
	if len(evs) != 1 || evs[0].Type != audit.EventTypePayloadRejected || evs[0].IPAddress == "" {
		t.Fatalf("expected payload audit, got %+v", evs)
	}
	if got := testutil.ToFloat64(h.metrics.Deliveries.WithLabelValues(string(OutcomeRejected))); got != 1 {
		t.Fatalf("expected 1 rejected delivery, got %v", got)
	}
	if !h.balance(t).Equal(decimal.RequireFromString("10.00")) {
		t.Fatalf("balance changed on rejected body")
	}
}

type failingBody struct{}

func (failingBody) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestWebhookHandler_ReadErrorIs500(t *testing.T) {
	h := newHarness(t, Classifier{})
	r := newRouter(h, 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/btcpay", failingBody{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if ack := decodeAck(t, w); ack["error"] != "retry" {
		t.Fatalf("unexpected ack: %v", ack)
	}
	if len(h.audits.Events()) != 0 {
		t.Fatalf("read failures are not audited")
	}
}

func TestWebhookHandler_TransientIs500(t *testing.T) {
	h := newHarness(t, Classifier{})
	h.store.FailOn("FindSettlement", errors.New("db down"))
	r := newRouter(h, 1<<20)

	w := post(r, settledINV001, h.verifier.Sign([]byte(settledINV001)))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if ack := decodeAck(t, w); ack["error"] != "retry" {
		t.Fatalf("unexpected ack: %v", ack)
	}
	if strings.Contains(w.Body.String(), "db down") {
		t.Fatalf("internal error leaked into response")
	}
}

func TestWebhookHandler_TestPingAcknowledged(t *testing.T) {
	h := newHarness(t, Classifier{})
	r := newRouter(h, 1<<20)

	body := `{"type":"InvoiceSettled"}`
	w := post(r, body, h.verifier.Sign([]byte(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ack := decodeAck(t, w); ack["ignored"] != "no invoice id" {
		t.Fatalf("unexpected ack: %v", ack)
	}
}

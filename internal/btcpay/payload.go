package btcpay

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

var ErrMalformedPayload = errors.New("malformed webhook payload")

// Shape is the structural form a delivery arrived in.
type Shape int

const (
	ShapeUnknown Shape = iota
	// ShapeEvent is a webhook event wrapper: {"type": "...", "invoiceId": "...", ...}.
	ShapeEvent
	// ShapeInvoice is a bare invoice object: {"id": "...", "status": "...", ...}.
	ShapeInvoice
)

func (s Shape) String() string {
	switch s {
	case ShapeEvent:
		return "event"
	case ShapeInvoice:
		return "invoice"
	default:
		return "unknown"
	}
}

// EventKind is the provider vocabulary collapsed to what the ledger cares about.
type EventKind string

const (
	KindSettled    EventKind = "settled"
	KindProcessing EventKind = "processing"
	KindExpired    EventKind = "expired"
	KindInvalid    EventKind = "invalid"
	KindOther      EventKind = "other"
)

// Metadata is the invoice metadata carried by the delivery, if any.
// Raw holds a metadata string that did not parse as a JSON object.
type Metadata struct {
	Fields map[string]any
	Raw    string
}

// String returns the first non-empty value among keys, stringified.
func (m Metadata) String(keys ...string) string {
	for _, k := range keys {
		if s := scalarString(m.Fields[k]); s != "" {
			return s
		}
	}
	return ""
}

func (m Metadata) Empty() bool {
	return len(m.Fields) == 0
}

// Notification is a delivery normalized into a single shape.
type Notification struct {
	Shape     Shape
	EventType string
	Kind      EventKind
	InvoiceID string
	Metadata  Metadata

	// Informational; never used for idempotency.
	DeliveryID   string
	StoreID      string
	IsRedelivery bool
}

var (
	invoiceIDPaths = [][]string{
		{"invoiceId"},
		{"data", "invoiceId"},
		{"invoice", "id"},
		{"data", "id"},
	}
	metadataPaths = [][]string{
		{"metadata"},
		{"invoice", "metadata"},
		{"data", "metadata"},
	}
)

// ParseNotification normalizes the raw body. It never mutates body.
func ParseNotification(body []byte) (Notification, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var root map[string]any
	if err := dec.Decode(&root); err != nil || root == nil {
		return Notification{}, ErrMalformedPayload
	}

	n := Notification{
		DeliveryID:   firstString(root, []string{"deliveryId"}, []string{"originalDeliveryId"}),
		StoreID:      firstString(root, []string{"storeId"}, []string{"data", "storeId"}),
		IsRedelivery: root["isRedelivery"] == true,
	}

	switch eventType := firstString(root, []string{"type"}, []string{"eventType"}); {
	case eventType != "":
		n.Shape = ShapeEvent
		n.EventType = eventType
		n.InvoiceID = firstString(root, invoiceIDPaths...)
	case scalarString(root["id"]) != "" && scalarString(root["status"]) != "":
		n.Shape = ShapeInvoice
		n.EventType = scalarString(root["status"])
		n.InvoiceID = scalarString(root["id"])
	default:
		n.Shape = ShapeUnknown
		n.InvoiceID = firstString(root, invoiceIDPaths...)
	}

	n.Kind = ClassifyEventType(n.EventType)
	n.Metadata = locateMetadata(root)
	return n, nil
}

// ClassifyEventType maps provider event names and invoice statuses to an EventKind.
// Matching ignores case and punctuation.
func ClassifyEventType(raw string) EventKind {
	switch letters(raw) {
	case "invoicesettled", "settled", "complete", "confirmed":
		return KindSettled
	case "invoiceprocessing", "processing", "paid":
		return KindProcessing
	case "invoiceexpired", "expired":
		return KindExpired
	case "invoiceinvalid", "invalid":
		return KindInvalid
	default:
		return KindOther
	}
}

func locateMetadata(root map[string]any) Metadata {
	for _, p := range metadataPaths {
		v, ok := lookup(root, p)
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case map[string]any:
			return Metadata{Fields: t}
		case string:
			if strings.TrimSpace(t) == "" {
				continue
			}
			dec := json.NewDecoder(strings.NewReader(t))
			dec.UseNumber()
			var m map[string]any
			if err := dec.Decode(&m); err != nil || m == nil {
				return Metadata{Raw: t}
			}
			return Metadata{Fields: m}
		}
	}
	return Metadata{}
}

func lookup(root map[string]any, path []string) (any, bool) {
	var cur any = root
	for _, k := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[k]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func firstString(root map[string]any, paths ...[]string) string {
	for _, p := range paths {
		if v, ok := lookup(root, p); ok {
			if s := scalarString(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func letters(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

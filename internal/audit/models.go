package audit

import "time"

// Event is an immutable, append-only record of a webhook delivery decision.
//
// Invariants:
// - Events are never updated or deleted.
// - Recording is best-effort; a failed append never changes the delivery outcome.
// - Signatures, secrets and raw bodies are never stored.
type Event struct {
	ID   string    `json:"id" db:"id"`
	Type EventType `json:"type" db:"type"`

	InvoiceID string `json:"invoice_id,omitempty" db:"invoice_id"`
	UserID    string `json:"user_id,omitempty" db:"user_id"`

	// ProviderEventType is the event name as the processor sent it.
	ProviderEventType string `json:"provider_event_type,omitempty" db:"provider_event_type"`
	DeliveryID        string `json:"delivery_id,omitempty" db:"delivery_id"`
	Outcome           string `json:"outcome" db:"outcome"`

	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeSignatureRejected  EventType = "signature_rejected"
	EventTypePayloadRejected    EventType = "payload_rejected"
	EventTypeMetadataUnresolved EventType = "metadata_unresolved"
	EventTypeIntegrityError     EventType = "integrity_error"
	EventTypeCredited           EventType = "credited"
)

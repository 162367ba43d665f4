package audit

import (
	"context"
	"errors"
	"testing"
)

func TestService_AppendRequiresTypeAndOutcome(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{Outcome: "ignored"}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
	if err := svc.Append(context.Background(), Event{Type: EventTypeCredited}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
	if len(repo.Events()) != 0 {
		t.Fatalf("expected nothing appended")
	}
}

func TestService_NilIsNotConfigured(t *testing.T) {
	var svc *Service
	if err := svc.LogSignatureRejected(context.Background(), "1.2.3.4", "invalid"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogSignatureRejected(context.Background(), "1.2.3.4", "invalid webhook signature"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	if evs[0].IPAddress != "1.2.3.4" {
		t.Fatalf("expected ip captured")
	}
	if evs[0].Type != EventTypeSignatureRejected || evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("unexpected event: %+v", evs[0])
	}
}

func TestService_ListByInvoiceNewestFirst(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_ = svc.Append(ctx, Event{Type: EventTypeMetadataUnresolved, Outcome: "ignored", InvoiceID: "INV-1"})
	_ = svc.Append(ctx, Event{Type: EventTypeCredited, Outcome: "credited", InvoiceID: "INV-2"})
	_ = svc.Append(ctx, Event{Type: EventTypeCredited, Outcome: "credited", InvoiceID: "INV-1"})

	evs, err := svc.ListByInvoice(ctx, "INV-1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 2 || evs[0].Type != EventTypeCredited {
		t.Fatalf("unexpected events: %+v", evs)
	}
}

package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Lister is implemented by repositories that can serve the ops API.
type Lister interface {
	ListByInvoice(ctx context.Context, invoiceID string, limit int) ([]Event, error)
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only and served only to operators.
// - Callers should treat audit logging as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var (
	ErrInvalidEvent       = errors.New("audit: invalid event")
	ErrNotConfigured      = errors.New("audit: repository not configured")
	ErrListingUnsupported = errors.New("audit: repository cannot list")
)

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil || s.repo == nil {
		return ErrNotConfigured
	}
	if e.Type == "" || e.Outcome == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogSignatureRejected records an unauthenticated delivery. Only the reason
// and caller IP are kept; the body is untrusted.
func (s *Service) LogSignatureRejected(ctx context.Context, ip, reason string) error {
	return s.Append(ctx, Event{
		Type:      EventTypeSignatureRejected,
		Outcome:   "unauthenticated",
		IPAddress: ip,
		Message:   reason,
	})
}

func (s *Service) ListByInvoice(ctx context.Context, invoiceID string, limit int) ([]Event, error) {
	if s == nil || s.repo == nil {
		return nil, ErrNotConfigured
	}
	l, ok := s.repo.(Lister)
	if !ok {
		return nil, ErrListingUnsupported
	}
	if limit <= 0 {
		limit = 50
	}
	return l.ListByInvoice(ctx, invoiceID, limit)
}

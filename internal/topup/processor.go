package topup

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"topup-ledger/internal/audit"
	"topup-ledger/internal/btcpay"
	"topup-ledger/internal/ledger"
	"topup-ledger/pkg/logger"
	"topup-ledger/pkg/metrics"
)

// Settler is the ledger side of a credit.
type Settler interface {
	Settle(ctx context.Context, req ledger.SettleRequest) (ledger.SettleResult, error)
}

// Deps is everything the processor needs; all of it is wired once at startup.
// Cache, Notifier and Audit are optional.
type Deps struct {
	Verifier   *btcpay.Verifier
	Resolver   *Resolver
	Classifier Classifier
	Ledger     Settler
	Invoices   InvoiceRepository

	Cache    SettledCache
	Notifier Notifier
	Audit    *audit.Service
	Metrics  *metrics.Webhook
}

// Delivery is one webhook request as received.
type Delivery struct {
	Body      []byte
	Signature string
	RemoteIP  string
}

type Processor struct {
	d     Deps
	clock func() time.Time
}

func NewProcessor(d Deps) (*Processor, error) {
	if d.Verifier == nil || d.Resolver == nil || d.Ledger == nil {
		return nil, errors.New("topup: verifier, resolver and ledger are required")
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Nop()
	}
	return &Processor{d: d, clock: time.Now}, nil
}

// Process runs one delivery through verify, normalize, resolve, classify and
// settle. It never panics on payload content and never returns secrets.
func (p *Processor) Process(ctx context.Context, del Delivery) Result {
	return p.finish(ctx, p.process(ctx, del))
}

// Unreadable acknowledges a delivery whose body could not be read. A body over
// the size limit can never succeed, so it is rejected with a 200; any other
// read error asks for redelivery.
func (p *Processor) Unreadable(ctx context.Context, remoteIP string, err error) Result {
	var tooLarge *http.MaxBytesError
	if !errors.As(err, &tooLarge) {
		return p.finish(ctx, Result{Outcome: OutcomeTransient, Reason: "body read failed", Err: err})
	}
	p.audit(ctx, func() error {
		return p.d.Audit.Append(ctx, audit.Event{
			Type:      audit.EventTypePayloadRejected,
			Outcome:   string(OutcomeRejected),
			IPAddress: remoteIP,
			Message:   fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit),
		})
	})
	return p.finish(ctx, Result{Outcome: OutcomeRejected, Reason: "body too large", Err: err})
}

func (p *Processor) finish(ctx context.Context, res Result) Result {
	p.d.Metrics.Deliveries.WithLabelValues(string(res.Outcome)).Inc()

	log := logger.From(ctx).With(
		"invoice_id", res.InvoiceID,
		"outcome", string(res.Outcome),
	)
	switch res.Outcome {
	case OutcomeTransient:
		log.Error("webhook delivery failed", "reason", res.Reason, "err", res.Err)
	case OutcomeUnauthenticated, OutcomeRejected, OutcomeIntegrityError:
		log.Warn("webhook delivery refused", "reason", res.Reason, "err", res.Err)
	case OutcomeCredited:
		log.Info("webhook delivery credited", "user_id", res.UserID)
	default:
		log.Info("webhook delivery acknowledged", "reason", res.Reason)
	}
	return res
}

func (p *Processor) process(ctx context.Context, del Delivery) Result {
	if err := p.d.Verifier.Verify(del.Body, del.Signature); err != nil {
		reason := "invalid"
		if errors.Is(err, btcpay.ErrMissingSignature) {
			reason = "missing"
		}
		p.d.Metrics.SignatureFailures.WithLabelValues(reason).Inc()
		p.audit(ctx, func() error { return p.d.Audit.LogSignatureRejected(ctx, del.RemoteIP, err.Error()) })
		return Result{Outcome: OutcomeUnauthenticated, Reason: reason + " signature", Err: err}
	}

	n, err := btcpay.ParseNotification(del.Body)
	if err != nil {
		p.audit(ctx, func() error {
			return p.d.Audit.Append(ctx, audit.Event{
				Type:      audit.EventTypePayloadRejected,
				Outcome:   string(OutcomeRejected),
				IPAddress: del.RemoteIP,
				Message:   err.Error(),
			})
		})
		return Result{Outcome: OutcomeRejected, Reason: "malformed payload", Err: err}
	}
	logger.From(ctx).Debug("webhook delivery parsed",
		"shape", n.Shape.String(),
		"event_type", n.EventType,
		"delivery_id", n.DeliveryID,
		"store_id", n.StoreID,
		"redelivery", n.IsRedelivery,
	)

	if n.InvoiceID == "" {
		return Result{Outcome: OutcomeIgnored, Reason: "no invoice id"}
	}
	base := Result{InvoiceID: n.InvoiceID}

	switch n.Kind {
	case btcpay.KindExpired:
		p.markInvoice(ctx, n.InvoiceID, InvoiceExpired)
		return base.with(OutcomeIgnored, "invoice expired")
	case btcpay.KindInvalid:
		p.markInvoice(ctx, n.InvoiceID, InvoiceFailed)
		return base.with(OutcomeIgnored, "invoice invalid")
	}
	if !p.d.Classifier.IsSettlementTrigger(n.Kind) {
		return base.with(OutcomeIgnored, "irrelevant event")
	}

	if p.d.Cache != nil {
		if hit, err := p.d.Cache.IsSettled(ctx, n.InvoiceID); err != nil {
			logger.From(ctx).Warn("settled hint lookup failed", "invoice_id", n.InvoiceID, "err", err)
		} else if hit {
			return base.with(OutcomeAlreadySettled, "already settled")
		}
	}

	resolved, err := p.d.Resolver.Resolve(ctx, n)
	if err != nil {
		if errors.Is(err, ErrMetadataUnresolved) {
			p.audit(ctx, func() error {
				return p.d.Audit.Append(ctx, p.deliveryEvent(n, audit.EventTypeMetadataUnresolved, OutcomeIgnored, resolved.UserID, err.Error()))
			})
			return base.with(OutcomeIgnored, "missing metadata")
		}
		out := base.with(OutcomeTransient, "invoice lookup failed")
		out.Err = err
		return out
	}
	base.UserID = resolved.UserID

	if ok, reason := p.d.Classifier.Classify(n.Kind, resolved); !ok {
		return base.with(OutcomeIgnored, reason)
	}

	start := time.Now()
	sr, err := p.d.Ledger.Settle(ctx, ledger.SettleRequest{
		InvoiceID: n.InvoiceID,
		UserID:    resolved.UserID,
		Amount:    resolved.Amount,
		Currency:  resolved.Currency,
		Kind:      resolved.Kind,
		Method:    ledger.MethodBTCPay,
	})
	p.d.Metrics.LedgerTxDuration.WithLabelValues(txResult(sr, err)).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
	case ledger.IsIntegrity(err):
		p.audit(ctx, func() error {
			return p.d.Audit.Append(ctx, p.deliveryEvent(n, audit.EventTypeIntegrityError, OutcomeIntegrityError, resolved.UserID, err.Error()))
		})
		out := base.with(OutcomeIntegrityError, "integrity")
		out.Err = err
		return out
	default:
		out := base.with(OutcomeTransient, "ledger unavailable")
		out.Err = err
		return out
	}

	p.markCached(ctx, n.InvoiceID)
	if sr.Status == ledger.StatusAlreadySettled {
		return base.with(OutcomeAlreadySettled, "already settled")
	}

	p.d.Metrics.CreditedUSD.Add(resolved.Amount.InexactFloat64())
	p.audit(ctx, func() error {
		return p.d.Audit.Append(ctx, p.deliveryEvent(n, audit.EventTypeCredited, OutcomeCredited, resolved.UserID, "credited "+resolved.Amount.StringFixed(2)))
	})
	if p.d.Notifier != nil {
		ev := CreditEvent{
			InvoiceID:  n.InvoiceID,
			UserID:     resolved.UserID,
			AmountUSD:  resolved.Amount,
			BalanceUSD: sr.NewBalance,
			CreditedAt: p.clock().UTC(),
		}
		if err := p.d.Notifier.CreditApplied(ctx, ev); err != nil {
			logger.From(ctx).Warn("credit notification failed", "invoice_id", n.InvoiceID, "err", err)
		}
	}
	return base.with(OutcomeCredited, "")
}

func (r Result) with(o Outcome, reason string) Result {
	r.Outcome = o
	r.Reason = reason
	return r
}

func (p *Processor) markInvoice(ctx context.Context, invoiceID string, to InvoiceStatus) {
	if p.d.Invoices == nil {
		return
	}
	if _, err := p.d.Invoices.MarkInvoiceStatus(ctx, invoiceID, InvoicePending, to); err != nil {
		logger.From(ctx).Warn("invoice status update failed", "invoice_id", invoiceID, "to", string(to), "err", err)
	}
}

func (p *Processor) markCached(ctx context.Context, invoiceID string) {
	if p.d.Cache == nil {
		return
	}
	if err := p.d.Cache.MarkSettled(ctx, invoiceID); err != nil {
		logger.From(ctx).Warn("settled hint write failed", "invoice_id", invoiceID, "err", err)
	}
}

func (p *Processor) audit(ctx context.Context, fn func() error) {
	if p.d.Audit == nil {
		return
	}
	if err := fn(); err != nil {
		logger.From(ctx).Warn("audit append failed", "err", err)
	}
}

func (p *Processor) deliveryEvent(n btcpay.Notification, typ audit.EventType, o Outcome, userID, msg string) audit.Event {
	return audit.Event{
		Type:              typ,
		InvoiceID:         n.InvoiceID,
		UserID:            userID,
		ProviderEventType: n.EventType,
		DeliveryID:        n.DeliveryID,
		Outcome:           string(o),
		Message:           msg,
	}
}

func txResult(sr ledger.SettleResult, err error) string {
	switch {
	case err == nil:
		return string(sr.Status)
	case ledger.IsIntegrity(err):
		return "integrity"
	default:
		return "error"
	}
}

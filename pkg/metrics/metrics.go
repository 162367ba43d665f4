package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Webhook holds the counters the ingestion pipeline reports.
// Build one per registry; tests pass prometheus.NewRegistry().
type Webhook struct {
	Deliveries        *prometheus.CounterVec
	SignatureFailures *prometheus.CounterVec
	CreditedUSD       prometheus.Counter
	LedgerTxDuration  *prometheus.HistogramVec
}

func NewWebhook(reg prometheus.Registerer) *Webhook {
	f := promauto.With(reg)
	return &Webhook{
		Deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "topup_webhook_deliveries_total",
			Help: "Webhook deliveries by acknowledged outcome",
		}, []string{"outcome"}),
		SignatureFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "topup_webhook_signature_failures_total",
			Help: "Rejected webhook signatures",
		}, []string{"reason"}),
		CreditedUSD: f.NewCounter(prometheus.CounterOpts{
			Name: "topup_ledger_credited_usd_total",
			Help: "Sum of USD credited to balances",
		}),
		LedgerTxDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "topup_ledger_tx_duration_seconds",
			Help:    "Duration of the settlement transaction",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"result"}),
	}
}

// Nop returns counters registered on a throwaway registry.
func Nop() *Webhook {
	return NewWebhook(prometheus.NewRegistry())
}

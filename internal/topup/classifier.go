package topup

import "topup-ledger/internal/btcpay"

// Classifier decides whether a delivery should move money.
type Classifier struct {
	// CreditOnProcessing treats InvoiceProcessing as final. BTCPay emits it
	// once the full amount is seen, before the configured confirmations.
	CreditOnProcessing bool
}

func (c Classifier) IsSettlementTrigger(k btcpay.EventKind) bool {
	switch k {
	case btcpay.KindSettled:
		return true
	case btcpay.KindProcessing:
		return c.CreditOnProcessing
	default:
		return false
	}
}

// Classify returns a non-empty reason when the delivery must not be credited.
func (c Classifier) Classify(k btcpay.EventKind, r Resolved) (relevant bool, reason string) {
	if !c.IsSettlementTrigger(k) {
		return false, "irrelevant event"
	}
	if r.Kind != KindBalanceTopup {
		return false, "not a balance top-up"
	}
	return true, ""
}

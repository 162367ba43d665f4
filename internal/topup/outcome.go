package topup

import "net/http"

// Outcome is the acknowledgement class of a delivery.
type Outcome string

const (
	OutcomeCredited        Outcome = "credited"
	OutcomeAlreadySettled  Outcome = "already_settled"
	OutcomeIgnored         Outcome = "ignored"
	OutcomeRejected        Outcome = "rejected"
	OutcomeIntegrityError  Outcome = "integrity_error"
	OutcomeUnauthenticated Outcome = "unauthenticated"
	OutcomeTransient       Outcome = "transient"
)

// HTTPStatus maps an outcome to the status code the processor sees.
// Only transient failures ask for redelivery.
func (o Outcome) HTTPStatus() int {
	switch o {
	case OutcomeUnauthenticated:
		return http.StatusUnauthorized
	case OutcomeTransient:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

// Result is the outcome of one delivery plus what is known about it.
type Result struct {
	Outcome   Outcome
	Reason    string
	InvoiceID string
	UserID    string
	// Err is for logs only and never reaches the response body.
	Err error
}

func (r Result) HTTPStatus() int { return r.Outcome.HTTPStatus() }

// Ack is the JSON acknowledgement body.
type Ack struct {
	Received  bool   `json:"received"`
	Processed *bool  `json:"processed,omitempty"`
	Ignored   string `json:"ignored,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (r Result) Body() Ack {
	yes, no := true, false
	switch r.Outcome {
	case OutcomeCredited:
		return Ack{Received: true, Processed: &yes}
	case OutcomeAlreadySettled:
		return Ack{Received: true, Processed: &no, Ignored: "already settled"}
	case OutcomeIgnored:
		return Ack{Received: true, Ignored: r.Reason}
	case OutcomeRejected:
		return Ack{Received: true, Error: "rejected"}
	case OutcomeIntegrityError:
		return Ack{Received: true, Error: "integrity"}
	case OutcomeUnauthenticated:
		return Ack{Received: false, Error: "unauthorized"}
	default:
		return Ack{Received: false, Error: "retry"}
	}
}

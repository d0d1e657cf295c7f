// Package payment contains the reconciliation layer between the
// payment provider and local booking state. The provider is the
// source of truth for monetary state; this package's job is to fold
// its webhook events into booking statuses idempotently, and to issue
// refunds when staff ask for them.
package payment

import (
	"errors"
	"time"
)

// Provider event types the reconciler understands. These are the
// provider's own type strings; anything else is acknowledged and
// ignored.
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventChargeSucceeded  = "charge.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
	EventChargeRefunded   = "charge.refunded"
	EventDisputeCreated   = "charge.dispute.created"
)

// ErrUnmatched is returned when a webhook event references a payment
// with no corresponding local booking. The event has already been
// parked in the unmatched queue when this comes back; it is the seam
// the recovery path exists to close.
var ErrUnmatched = errors.New("no booking matches payment reference")

// ErrUpstream is returned when the payment provider is unavailable or
// rejected a call. Handlers translate it into an HTTP 502 response.
var ErrUpstream = errors.New("payment provider error")

// Event is the normalized form of a provider webhook event. The
// webhook handler verifies the provider signature and maps the raw
// payload into this before handing it to the reconciler.
type Event struct {
	ProviderEventID string    // provider's event id, the idempotency key
	Type            string    // one of the constants above, or an unknown type
	PaymentRef      string    // charge or payment-intent reference
	AmountCents     int64     // amount involved, informational
	Payload         string    // raw JSON, kept for the unmatched queue
	ReceivedAt      time.Time // when this service received the event
}

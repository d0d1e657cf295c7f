package payment

import (
	"fmt"
	"log"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/refund"
)

// RefundClient creates refunds at the payment provider. The provider
// remains the source of truth: a successful call here only starts the
// refund; local booking state changes when the charge.refunded webhook
// comes back through the reconciler.
type RefundClient struct {
	enabled bool
}

// NewRefundClient configures the provider SDK with the secret key.
// With an empty key the client is disabled and every call returns
// ErrUpstream, which keeps local development webhook-driven only.
func NewRefundClient(secretKey string) *RefundClient {
	if secretKey == "" {
		return &RefundClient{enabled: false}
	}
	stripe.Key = secretKey
	return &RefundClient{enabled: true}
}

// CreateRefund asks the provider to refund the given charge or
// payment-intent reference. amountCents of zero refunds the full
// amount. It returns the provider's refund id, or ErrUpstream when
// the provider is unavailable or rejects the call.
func (c *RefundClient) CreateRefund(chargeRef string, amountCents int64, reason string) (string, error) {
	if !c.enabled {
		return "", fmt.Errorf("%w: refund client not configured", ErrUpstream)
	}
	if chargeRef == "" {
		return "", fmt.Errorf("%w: missing charge reference", ErrUpstream)
	}
	params := &stripe.RefundParams{}
	if strings.HasPrefix(chargeRef, "pi_") {
		params.PaymentIntent = stripe.String(chargeRef)
	} else {
		params.Charge = stripe.String(chargeRef)
	}
	if amountCents > 0 {
		params.Amount = stripe.Int64(amountCents)
	}
	if reason != "" {
		params.Reason = stripe.String(reason)
	}
	r, err := refund.New(params)
	if err != nil {
		log.Printf("payment: refund create failed for %s: %v", chargeRef, err)
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return r.ID, nil
}

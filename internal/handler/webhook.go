package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/lanternhall/dinner-show-booking/internal/payment"
)

// WebhookHandler receives payment provider webhooks, verifies the
// signature, normalizes the payload and hands it to the reconciler.
// The provider retries until it sees a 2xx, so the handler only
// returns non-2xx for requests it wants redelivered; an event that
// matched no booking is acknowledged because it has already been
// parked in the unmatched queue.
type WebhookHandler struct {
	Reconciler    *payment.Reconciler
	WebhookSecret string // empty skips signature verification (local dev only)
}

// NewWebhookHandler wires a WebhookHandler.
func NewWebhookHandler(rec *payment.Reconciler, secret string) *WebhookHandler {
	return &WebhookHandler{Reconciler: rec, WebhookSecret: secret}
}

// HandlePaymentWebhook is the POST /v1/webhooks/payment endpoint.
func (h *WebhookHandler) HandlePaymentWebhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "failed to read body"})
	}

	var event stripe.Event
	if h.WebhookSecret != "" {
		sig := c.Request().Header.Get("Stripe-Signature")
		if sig == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing signature header"})
		}
		event, err = webhook.ConstructEvent(body, sig, h.WebhookSecret)
		if err != nil {
			log.Printf("webhook: signature verification failed: %v", err)
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid signature"})
		}
	} else if err := json.Unmarshal(body, &event); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}

	norm, err := normalizeEvent(event)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	if err := h.Reconciler.ApplyPaymentEvent(c.Request().Context(), norm); err != nil {
		if errors.Is(err, payment.ErrUnmatched) {
			// Parked for recovery; acknowledge so the provider stops
			// retrying an event we cannot match.
			return c.JSON(http.StatusOK, echo.Map{"received": true, "matched": false})
		}
		log.Printf("webhook: apply %s failed: %v", norm.ProviderEventID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "apply failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}

// normalizeEvent maps a raw provider event onto the reconciler's
// normalized form, extracting the payment reference the booking was
// stored under.  Intent events carry it as the object id; charge and
// dispute events point back at the intent.
func normalizeEvent(event stripe.Event) (payment.Event, error) {
	norm := payment.Event{
		ProviderEventID: event.ID,
		Type:            string(event.Type),
		Payload:         string(event.Data.Raw),
		ReceivedAt:      time.Now().UTC(),
	}
	if norm.ProviderEventID == "" {
		return norm, errors.New("event id missing")
	}

	switch norm.Type {
	case payment.EventPaymentSucceeded, payment.EventPaymentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return norm, errors.New("failed to parse payment intent")
		}
		norm.PaymentRef = pi.ID
		norm.AmountCents = pi.Amount
	case payment.EventChargeSucceeded, payment.EventChargeRefunded:
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return norm, errors.New("failed to parse charge")
		}
		norm.PaymentRef = ch.ID
		if ch.PaymentIntent != nil && ch.PaymentIntent.ID != "" {
			norm.PaymentRef = ch.PaymentIntent.ID
		}
		norm.AmountCents = ch.Amount
	case payment.EventDisputeCreated:
		var dp stripe.Dispute
		if err := json.Unmarshal(event.Data.Raw, &dp); err != nil {
			return norm, errors.New("failed to parse dispute")
		}
		if dp.PaymentIntent != nil && dp.PaymentIntent.ID != "" {
			norm.PaymentRef = dp.PaymentIntent.ID
		} else if dp.Charge != nil {
			norm.PaymentRef = dp.Charge.ID
		}
		norm.AmountCents = dp.Amount
	default:
		// Unknown types still pass through so the idempotency ledger
		// records them; the reconciler ignores what it cannot handle.
		var obj struct {
			ID string `json:"id"`
		}
		_ = json.Unmarshal(event.Data.Raw, &obj)
		norm.PaymentRef = obj.ID
	}
	if norm.PaymentRef == "" {
		return norm, errors.New("payment reference missing")
	}
	return norm, nil
}

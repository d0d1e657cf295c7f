// Package queue defines message payloads exchanged over the message broker.
package queue

import "context"

// BookingConfirmedEvent is published when a booking reaches the
// confirmed (or staff-reserved/comp) state. It carries enough for the
// notification worker to render and send the confirmation email and
// the digital ticket without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID     uint64   `json:"booking_id"`
	Reference     string   `json:"reference"`
	EventID       uint64   `json:"event_id"`
	EventTitle    string   `json:"event_title"`
	StartsAt      string   `json:"starts_at"`
	TableLabel    string   `json:"table_label,omitempty"`
	CustomerEmail string   `json:"customer_email"`
	PartySize     uint32   `json:"party_size"`
	GuestNames    []string `json:"guest_names,omitempty"`
	ConfirmedAt   string   `json:"confirmed_at"`
}

// BookingRefundedEvent is published after a booking transitions to
// refunded so the customer can be notified. The refund itself is
// already final when this event is emitted; delivery failures are
// retried by the consumer and never roll the refund back.
type BookingRefundedEvent struct {
	BookingID     uint64 `json:"booking_id"`
	Reference     string `json:"reference"`
	EventID       uint64 `json:"event_id"`
	CustomerEmail string `json:"customer_email"`
	PartySize     uint32 `json:"party_size"`
	RefundedAt    string `json:"refunded_at"`
}

// Notifier abstracts the best-effort notification transport. Errors
// returned here are logged by callers and never fail the booking or
// refund transaction that triggered the notification.
type Notifier interface {
	BookingConfirmed(ctx context.Context, ev BookingConfirmedEvent) error
	BookingRefunded(ctx context.Context, ev BookingRefundedEvent) error
}

// NopNotifier discards notifications. Used in tests and when the
// broker is not configured.
type NopNotifier struct{}

func (NopNotifier) BookingConfirmed(ctx context.Context, ev BookingConfirmedEvent) error { return nil }
func (NopNotifier) BookingRefunded(ctx context.Context, ev BookingRefundedEvent) error   { return nil }

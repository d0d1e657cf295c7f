// Package booking holds the validation, creation and recovery logic
// for table bookings. It sits between the HTTP handlers and the
// BookingStore: shape validation and the ticket-cutoff rule live
// here, while the atomic check-then-act insert lives in the store.
package booking

import (
	"errors"
	"fmt"
)

// ErrCutoffPassed is returned when the event's ticket sale window has
// closed. Handlers translate it into an HTTP 410 response.
var ErrCutoffPassed = errors.New("ticket sales for this event have closed")

// ErrHoldExpired is returned when a checkout presents a hold that has
// outlived its TTL. The caller must restart validation; the stale
// token proves nothing.
var ErrHoldExpired = errors.New("hold has expired")

// ValidationError reports a malformed request shape: a bad email, an
// impossible party size, more guest names than guests. It is distinct
// from the availability errors the store returns.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Msg: msg}
}

// Package repository defines the booking store and the error types
// shared across its implementations. These sentinel values allow
// higher layers such as handlers to distinguish between different
// failure scenarios. For example, ErrTableTaken indicates that the
// caller lost the race for a table to a concurrent booking, while
// ErrNotFound signals that the referenced event, table or booking
// does not exist at all. Callers must be able to tell "no such
// resource" apart from "resource taken".
package repository

import "errors"

// ErrNotFound is returned when the referenced event, table or booking
// does not exist. Handlers should translate this into an HTTP 404
// response.
var ErrNotFound = errors.New("not found")

// ErrTableTaken is returned when another booking with an active status
// already references the same (event, table) pair. This is the
// concurrent-loser outcome; handlers should translate it into an HTTP
// 409 response so the customer can pick another table.
var ErrTableTaken = errors.New("table already booked")

// ErrSoldOut is returned when the event no longer has enough available
// seats or tables for the requested party. Handlers should translate
// this into an HTTP 409 response.
var ErrSoldOut = errors.New("event sold out")

// ErrInvalidTransition is returned when a status change would violate
// the booking state machine, for example confirming an already
// refunded booking.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrDuplicateReference is returned when a booking with the same
// payment reference already exists. The recovery path relies on this
// to stay idempotent.
var ErrDuplicateReference = errors.New("payment reference already recorded")

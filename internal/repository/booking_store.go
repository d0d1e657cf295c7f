package repository

import (
	"context"
	"time"

	"github.com/lanternhall/dinner-show-booking/internal/model"
)

// ProcessedEvent mirrors the payment_events table. One row is written
// per provider webhook event the service has applied; the unique
// provider_event_id column is what makes webhook application
// idempotent under redelivery.
type ProcessedEvent struct {
	ProviderEventID string    // provider's event/idempotency id
	PaymentRef      string    // charge or intent reference in the event
	EventType       string    // provider event type string
	ReceivedAt      time.Time // when the event was first applied
}

// UnmatchedEvent mirrors the unmatched_events table. Webhook events
// that reference no local booking are parked here for an administrator
// instead of being dropped; the recovery path resolves them.
type UnmatchedEvent struct {
	ID              uint64
	ProviderEventID string
	PaymentRef      string
	EventType       string
	Payload         string
	ReceivedAt      time.Time
	ResolvedAt      *time.Time
}

// Reconciliation mirrors the reconciliations table. One audit row is
// written for every status transition driven by a payment event so
// that counter movements can be traced back to the webhook that
// caused them.
type Reconciliation struct {
	ID              uint64
	BookingID       uint64
	ProviderEventID string
	Action          string // e.g. "confirm", "refund"
	SeatDelta       int32
	TableDelta      int32
	CreatedAt       time.Time
}

// BookingStore is the persistence contract used by the booking writer,
// the validator, the payment reconciler and the recovery path. Two
// implementations exist: MySQLBookingStore backed by the relational
// schema, and MemoryBookingStore used in tests and local development.
//
// The mutating operations are atomic with respect to the shared
// (event, table) key. InsertBooking performs its availability check
// and the insert as a single unit, and TransitionStatus pairs the
// status change with the counter adjustment it implies; callers never
// see one half without the other.
type BookingStore interface {
	// GetEvent returns the event or ErrNotFound.
	GetEvent(ctx context.Context, eventID uint64) (*model.Event, error)

	// GetTable returns the table or ErrNotFound.
	GetTable(ctx context.Context, tableID uint64) (*model.Table, error)

	// HasActiveBooking reports whether a booking with an active status
	// (confirmed, reserved or comp) references the (event, table) pair.
	// excludeBookingID, when non-zero, ignores that booking; admin
	// reassignment uses this to exclude the booking being moved.
	HasActiveBooking(ctx context.Context, eventID, tableID, excludeBookingID uint64) (bool, error)

	// InsertBooking atomically re-validates availability, inserts the
	// booking and decrements the event's availability counters. It
	// returns ErrNotFound for a missing event or table, ErrSoldOut when
	// the counters cannot cover the party, ErrTableTaken when another
	// non-terminal booking already claims the table, and
	// ErrDuplicateReference when the payment reference is already
	// recorded. On success the generated ID and timestamps are
	// populated on the passed booking.
	InsertBooking(ctx context.Context, b *model.Booking) error

	// GetBooking returns a booking by primary key or ErrNotFound.
	GetBooking(ctx context.Context, bookingID uint64) (*model.Booking, error)

	// GetBookingByPaymentRef returns the booking holding the given
	// provider payment reference or ErrNotFound.
	GetBookingByPaymentRef(ctx context.Context, paymentRef string) (*model.Booking, error)

	// TransitionStatus atomically moves a booking to a new status and
	// applies the implied counter adjustment: a transition out of a
	// non-terminal status into cancelled or refunded returns the
	// party's seats (and table) to the event. It returns
	// ErrInvalidTransition when the state machine forbids the move and
	// the updated booking on success.
	TransitionStatus(ctx context.Context, bookingID uint64, to string) (*model.Booking, error)

	// ReassignTable atomically moves an active booking to a new table,
	// re-running the same availability rule as creation. It returns
	// ErrTableTaken when the target table is claimed, ErrNotFound for
	// unknown booking/table, and ErrInvalidTransition when the booking
	// is not in an active status.
	ReassignTable(ctx context.Context, bookingID, newTableID uint64) error

	// SetCheckedIn stamps the booking's check-in time once. A second
	// call returns ErrInvalidTransition.
	SetCheckedIn(ctx context.Context, bookingID uint64, at time.Time) error

	// WasEventProcessed reports whether a provider event id is already
	// in the idempotency ledger.
	WasEventProcessed(ctx context.Context, providerEventID string) (bool, error)

	// MarkEventProcessed records a provider event id in the idempotency
	// ledger. It returns true when this is the first time the id has
	// been seen; false means the event was already recorded. Callers
	// write the ledger row only after the event's effect has been
	// applied, so a failed apply stays retryable under redelivery.
	MarkEventProcessed(ctx context.Context, ev ProcessedEvent) (bool, error)

	// RecordUnmatched parks a webhook event that matched no local
	// booking. Recording the same provider event id twice is a no-op.
	RecordUnmatched(ctx context.Context, ev UnmatchedEvent) error

	// ListUnmatched returns unresolved unmatched events, oldest first.
	ListUnmatched(ctx context.Context) ([]UnmatchedEvent, error)

	// ResolveUnmatched marks every unmatched event carrying the payment
	// reference as resolved.
	ResolveUnmatched(ctx context.Context, paymentRef string, at time.Time) error

	// RecordReconciliation appends an audit row for a payment-driven
	// status transition.
	RecordReconciliation(ctx context.Context, rec Reconciliation) error
}

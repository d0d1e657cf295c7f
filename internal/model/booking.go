package model

import "time"

// Booking status values.  These mirror the bookings.status enum in the
// database.  pending bookings are awaiting payment confirmation,
// reserved bookings were taken by staff against a payment link, comp
// bookings are complimentary.  cancelled and refunded are terminal.
const (
	StatusPending   = "pending"
	StatusReserved  = "reserved"
	StatusComp      = "comp"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusRefunded  = "refunded"
)

// FoodSelection records one dinner choice made at checkout.  Selections
// are embedded on the booking as JSON; they are written once and only
// read afterwards, so no normalised rows exist for them.
type FoodSelection struct {
	GuestName string `json:"guest_name"`
	Course    string `json:"course"`
	Dish      string `json:"dish"`
}

// WineSelection records one wine add-on chosen at checkout.
type WineSelection struct {
	Label    string `json:"label"`
	Quantity uint32 `json:"quantity"`
}

// Booking groups a party's claim on a table (or on loose seats for
// ticket-only events) for one event, together with the dinner choices
// and the payment reference.  At most one booking with an active
// status may reference the same (EventID, TableID) pair; the database
// enforces this with a unique index over a generated column.
//
// Fields:
//  ID             – primary key identifier.
//  Reference      – public ticket reference printed on the digital ticket.
//  EventID        – event being attended.
//  TableID        – table claimed; nil for seat-only ticket bookings.
//  CustomerEmail  – contact address for the party.
//  PartySize      – number of guests attending.
//  GuestNames     – names of the guests, at most PartySize entries.
//  FoodSelections – dinner choices, embedded JSON.
//  WineSelections – wine add-ons, embedded JSON.
//  PaymentRef     – provider charge/intent reference; nil for comp.
//  Status         – one of the status constants above.
//  CheckedInAt    – set once by front-of-house at the door.
type Booking struct {
	ID             uint64          // bookings.id
	Reference      string          // bookings.reference
	EventID        uint64          // bookings.event_id
	TableID        *uint64         // bookings.table_id (nullable)
	CustomerEmail  string          // bookings.customer_email
	PartySize      uint32          // bookings.party_size
	GuestNames     []string        // bookings.guest_names (JSON)
	FoodSelections []FoodSelection // bookings.food_selections (JSON)
	WineSelections []WineSelection // bookings.wine_selections (JSON)
	PaymentRef     *string         // bookings.payment_ref (nullable)
	Status         string          // bookings.status
	CreatedAt      time.Time       // bookings.created_at
	UpdatedAt      time.Time       // bookings.updated_at
	CheckedInAt    *time.Time      // bookings.checked_in_at (nullable)
}

// ActiveStatuses are the statuses that occupy a table.  A booking in
// any other status has released its claim.
var ActiveStatuses = []string{StatusConfirmed, StatusReserved, StatusComp}

// IsActiveStatus reports whether a booking in the given status holds
// its table.
func IsActiveStatus(status string) bool {
	for _, s := range ActiveStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// CanTransition reports whether a booking may move from one status to
// another.  cancelled and refunded are terminal: nothing leaves them,
// which is what protects a refunded booking from a stale confirmation
// webhook delivered late.
func CanTransition(from, to string) bool {
	switch from {
	case StatusPending:
		return to == StatusConfirmed || to == StatusCancelled
	case StatusReserved:
		return to == StatusConfirmed || to == StatusCancelled
	case StatusComp:
		return to == StatusCancelled
	case StatusConfirmed:
		return to == StatusRefunded
	default:
		return false
	}
}

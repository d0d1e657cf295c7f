package model

import "time"

// Hold represents a temporary, advisory claim on a table while a
// customer is in the middle of checkout.  A hold is a UX courtesy
// only: it keeps the table marked "held" in the seat map but does not
// guarantee the booking.  Final correctness is enforced by the
// availability check inside the booking write transaction.
//
// Fields:
//  TableID   – table being held.
//  EventID   – event for which the table is held.
//  SessionID – opaque per-browser-session identifier of the holder.
//  Token     – random token returned to the client for reference.
//  StartTime – when the hold was taken.
//  ExpiresAt – when the hold lapses.
type Hold struct {
	TableID   uint64    // table being held
	EventID   uint64    // event scope of the hold
	SessionID string    // session that owns the hold
	Token     string    // opaque client-facing token
	StartTime time.Time // hold creation time (UTC)
	ExpiresAt time.Time // StartTime + TTL
}

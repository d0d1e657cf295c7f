package model

import "time"

// Table represents a physical table on the venue floor.  The Active
// flag only controls whether the table is offered for sale at all;
// whether a table is free for a given event is derived from the
// absence of an active booking referencing it, never stored here.
//
// Fields:
//  ID       – primary key identifier.
//  Label    – human-readable floor label ("Table 5", "Balcony A").
//  Capacity – maximum party size the table seats.
//  Active   – whether the table is currently sellable.
type Table struct {
	ID        uint64    // venue_tables.id
	Label     string    // venue_tables.label
	Capacity  uint32    // venue_tables.capacity
	Active    bool      // venue_tables.active
	CreatedAt time.Time // venue_tables.created_at
}

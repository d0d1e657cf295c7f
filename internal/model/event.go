package model

import "time"

// Event represents a single dinner-show evening at the venue.  Each
// event has a fixed inventory of seats and tables; the available_*
// counters are denormalised and move in lockstep with booking status
// changes.  Events are created by staff and never deleted while
// bookings reference them.
//
// Fields:
//  ID               – primary key identifier.
//  Title            – name of the evening (artist, menu theme).
//  StartsAt         – when doors open, stored in UTC.
//  TotalSeats       – seat capacity of the room.
//  TotalTables      – table count of the room.
//  AvailableSeats   – seats not claimed by an active booking.
//  AvailableTables  – tables not claimed by an active booking.
//  TicketCutoffDays – how many days before StartsAt ticket sales close.
//  Status           – current state of the event (SCHEDULED, CLOSED).
type Event struct {
	ID               uint64    // events.id
	Title            string    // events.title
	StartsAt         time.Time // events.starts_at
	TotalSeats       uint32    // events.total_seats
	TotalTables      uint32    // events.total_tables
	AvailableSeats   int32     // events.available_seats
	AvailableTables  int32     // events.available_tables
	TicketCutoffDays int       // events.ticket_cutoff_days
	Status           string    // events.status
	CreatedAt        time.Time // events.created_at
	UpdatedAt        time.Time // events.updated_at
}

// Event status values.
const (
	EventScheduled = "SCHEDULED"
	EventClosed    = "CLOSED"
)

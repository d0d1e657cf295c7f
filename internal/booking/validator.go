package booking

import (
	"context"
	"time"

	"github.com/lanternhall/dinner-show-booking/internal/hold"
	"github.com/lanternhall/dinner-show-booking/internal/model"
	"github.com/lanternhall/dinner-show-booking/internal/repository"
)

// Validator answers the availability and timing questions asked before
// and during booking creation. Its reads may be slightly stale under
// concurrency, which is acceptable: the store re-validates inside the
// write transaction, so a "true" here is advice, never a promise.
type Validator struct {
	store repository.BookingStore
	holds *hold.Manager
	now   func() time.Time
}

// NewValidator wires a Validator.
func NewValidator(store repository.BookingStore, holds *hold.Manager) *Validator {
	return &Validator{store: store, holds: holds, now: time.Now}
}

// SetClock overrides the time source, for tests.
func (v *Validator) SetClock(now func() time.Time) { v.now = now }

// ValidateTableAvailability reports whether the table is free for the
// event: true iff no booking with status confirmed, reserved or comp
// references the (event, table) pair. A missing event or table yields
// repository.ErrNotFound, which callers must keep distinct from an
// unavailable table.
func (v *Validator) ValidateTableAvailability(ctx context.Context, tableID, eventID uint64) (bool, error) {
	if _, err := v.store.GetEvent(ctx, eventID); err != nil {
		return false, err
	}
	if _, err := v.store.GetTable(ctx, tableID); err != nil {
		return false, err
	}
	taken, err := v.store.HasActiveBooking(ctx, eventID, tableID, 0)
	if err != nil {
		return false, err
	}
	return !taken, nil
}

// ValidateTableReassignment applies the same availability rule for an
// admin edit, excluding the booking being moved so that reassigning a
// booking to its own table validates.
func (v *Validator) ValidateTableReassignment(ctx context.Context, newTableID, eventID, bookingID uint64) (bool, error) {
	if _, err := v.store.GetEvent(ctx, eventID); err != nil {
		return false, err
	}
	if _, err := v.store.GetTable(ctx, newTableID); err != nil {
		return false, err
	}
	taken, err := v.store.HasActiveBooking(ctx, eventID, newTableID, bookingID)
	if err != nil {
		return false, err
	}
	return !taken, nil
}

// IsWithinTicketCutoff reports whether ticket purchase is still
// permitted for an event starting at eventDate with the given cutoff.
// The window closes exactly cutoffDays*24h before the event: purchase
// is allowed while now <= eventDate - cutoffDays days, and one tick
// past that boundary is outside the window.
func (v *Validator) IsWithinTicketCutoff(eventDate time.Time, cutoffDays int) bool {
	boundary := eventDate.Add(-time.Duration(cutoffDays) * 24 * time.Hour)
	return !v.now().UTC().After(boundary)
}

// IsBookingHoldExpired delegates to the hold manager's expiry rule.
// An expired hold forces the caller through full validation again.
func (v *Validator) IsBookingHoldExpired(holdStartTime time.Time) bool {
	return v.holds.IsExpired(holdStartTime)
}

// CheckCutoff loads the event and applies the cutoff rule, returning
// ErrCutoffPassed when sales have closed. Shared by the writer and
// the public ticket-cutoff endpoint.
func (v *Validator) CheckCutoff(ctx context.Context, eventID uint64) (*model.Event, error) {
	ev, err := v.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !v.IsWithinTicketCutoff(ev.StartsAt, ev.TicketCutoffDays) {
		return ev, ErrCutoffPassed
	}
	return ev, nil
}

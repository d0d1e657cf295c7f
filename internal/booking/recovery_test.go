package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanternhall/dinner-show-booking/internal/model"
	"github.com/lanternhall/dinner-show-booking/internal/repository"
)

func TestRecoverBookingCreatesConfirmed(t *testing.T) {
	w, store, _ := newWriterFixture(t)
	rec := NewRecoverer(w, store)
	ctx := context.Background()

	// A webhook for this reference arrived earlier and was parked.
	require.NoError(t, store.RecordUnmatched(ctx, repository.UnmatchedEvent{
		ProviderEventID: "evt_orphan",
		PaymentRef:      "pi_lost",
		EventType:       "payment_intent.succeeded",
		ReceivedAt:      time.Date(2026, 10, 1, 11, 0, 0, 0, time.UTC),
	}))

	b, err := rec.RecoverBooking(ctx, "pi_lost", validInput())
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, b.Status)
	require.NotNil(t, b.PaymentRef)
	assert.Equal(t, "pi_lost", *b.PaymentRef)

	// The parked event is resolved and an audit row with negative
	// deltas records the counter movement.
	parked, err := store.ListUnmatched(ctx)
	require.NoError(t, err)
	assert.Empty(t, parked)

	recs := store.Reconciliations()
	require.Len(t, recs, 1)
	assert.Equal(t, "recover", recs[0].Action)
	assert.Equal(t, int32(-4), recs[0].SeatDelta)
	assert.Equal(t, int32(-1), recs[0].TableDelta)

	ev, err := store.GetEvent(ctx, 35)
	require.NoError(t, err)
	assert.Equal(t, int32(116), ev.AvailableSeats)
	assert.Equal(t, int32(19), ev.AvailableTables)
}

func TestRecoverBookingIdempotent(t *testing.T) {
	w, store, _ := newWriterFixture(t)
	rec := NewRecoverer(w, store)
	ctx := context.Background()

	first, err := rec.RecoverBooking(ctx, "pi_lost", validInput())
	require.NoError(t, err)

	second, err := rec.RecoverBooking(ctx, "pi_lost", validInput())
	require.NoError(t, err)
	assert.Equal(t, first.Reference, second.Reference)

	// Only one booking exists; counters moved once.
	ev, err := store.GetEvent(ctx, 35)
	require.NoError(t, err)
	assert.Equal(t, int32(116), ev.AvailableSeats)
}

func TestRecoverBookingSkipsCutoff(t *testing.T) {
	w, store, valid := newWriterFixture(t)
	rec := NewRecoverer(w, store)
	ctx := context.Background()

	// Sales closed, but the payment already settled, so recovery
	// still writes the booking.
	valid.SetClock(func() time.Time {
		return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	})
	b, err := rec.RecoverBooking(ctx, "pi_late", validInput())
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, b.Status)
}

func TestRecoverBookingRequiresReference(t *testing.T) {
	w, store, _ := newWriterFixture(t)
	rec := NewRecoverer(w, store)

	_, err := rec.RecoverBooking(context.Background(), "  ", validInput())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "payment_ref", verr.Field)
}

func TestRecoverBookingTakenTable(t *testing.T) {
	w, store, _ := newWriterFixture(t)
	rec := NewRecoverer(w, store)
	ctx := context.Background()

	_, err := w.CreateBooking(ctx, validInput())
	require.NoError(t, err)

	_, err = rec.RecoverBooking(ctx, "pi_other", validInput())
	assert.ErrorIs(t, err, repository.ErrTableTaken)
}

package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanternhall/dinner-show-booking/internal/hold"
	"github.com/lanternhall/dinner-show-booking/internal/model"
	"github.com/lanternhall/dinner-show-booking/internal/repository"
)

func TestIsWithinTicketCutoff(t *testing.T) {
	valid := NewValidator(repository.NewMemoryBookingStore(), hold.NewManager(hold.NewMemoryStore(), nil, 0))
	eventDate := time.Date(2026, 10, 20, 19, 0, 0, 0, time.UTC)
	boundary := eventDate.Add(-3 * 24 * time.Hour) // Oct 17 19:00

	cases := []struct {
		name string
		now  time.Time
		days int
		want bool
	}{
		{"well before boundary", boundary.Add(-48 * time.Hour), 3, true},
		{"exactly at boundary", boundary, 3, true},
		{"one second past boundary", boundary.Add(time.Second), 3, false},
		{"zero cutoff sells until start", eventDate, 0, true},
		{"zero cutoff closes after start", eventDate.Add(time.Second), 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			valid.SetClock(func() time.Time { return tc.now })
			assert.Equal(t, tc.want, valid.IsWithinTicketCutoff(eventDate, tc.days))
		})
	}
}

func TestValidateTableAvailability(t *testing.T) {
	w, store, valid := newWriterFixture(t)
	ctx := context.Background()

	free, err := valid.ValidateTableAvailability(ctx, 5, 35)
	require.NoError(t, err)
	assert.True(t, free)

	// A pending booking does not count as active for reads, but a
	// confirmed one does.
	b, err := w.CreateBooking(ctx, validInput())
	require.NoError(t, err)
	_, err = store.TransitionStatus(ctx, b.ID, model.StatusConfirmed)
	require.NoError(t, err)

	free, err = valid.ValidateTableAvailability(ctx, 5, 35)
	require.NoError(t, err)
	assert.False(t, free)

	// Refunding releases the claim.
	_, err = store.TransitionStatus(ctx, b.ID, model.StatusRefunded)
	require.NoError(t, err)
	free, err = valid.ValidateTableAvailability(ctx, 5, 35)
	require.NoError(t, err)
	assert.True(t, free)
}

func TestValidateTableAvailabilityUnknownIDs(t *testing.T) {
	_, _, valid := newWriterFixture(t)
	ctx := context.Background()

	_, err := valid.ValidateTableAvailability(ctx, 5, 999)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = valid.ValidateTableAvailability(ctx, 999, 35)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestValidateTableReassignment(t *testing.T) {
	w, store, valid := newWriterFixture(t)
	ctx := context.Background()

	in := validInput()
	in.Status = model.StatusReserved
	b, err := w.CreateBooking(ctx, in)
	require.NoError(t, err)

	// Moving to a free table validates; moving onto a table with a
	// confirmed booking does not.
	ok, err := valid.ValidateTableReassignment(ctx, 7, 35, b.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	other := validInput()
	other.TableID = tableRef(7)
	other.CustomerEmail = "other@example.com"
	ob, err := w.CreateBooking(ctx, other)
	require.NoError(t, err)
	_, err = store.TransitionStatus(ctx, ob.ID, model.StatusConfirmed)
	require.NoError(t, err)

	ok, err = valid.ValidateTableReassignment(ctx, 7, 35, b.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	// Reassigning a booking to its own table validates because the
	// booking itself is excluded.
	ok, err = valid.ValidateTableReassignment(ctx, 5, 35, b.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIsBookingHoldExpired(t *testing.T) {
	store := repository.NewMemoryBookingStore()
	holds := hold.NewManager(hold.NewMemoryStore(), store, 5*time.Minute)
	valid := NewValidator(store, holds)

	start := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	holds.SetClock(func() time.Time { return start.Add(6 * time.Minute) })
	assert.True(t, valid.IsBookingHoldExpired(start))

	holds.SetClock(func() time.Time { return start.Add(5 * time.Minute) })
	assert.False(t, valid.IsBookingHoldExpired(start), "exactly at TTL is still held")
}

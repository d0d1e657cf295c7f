package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanternhall/dinner-show-booking/internal/model"
)

func seededStore(t *testing.T) *MemoryBookingStore {
	t.Helper()
	s := NewMemoryBookingStore()
	s.SeedEvent(model.Event{
		ID:              1,
		Title:           "Cabaret Night",
		StartsAt:        time.Date(2026, 12, 5, 19, 0, 0, 0, time.UTC),
		TotalSeats:      40,
		TotalTables:     8,
		AvailableSeats:  40,
		AvailableTables: 8,
		Status:          model.EventScheduled,
	})
	s.SeedTable(model.Table{ID: 1, Label: "Table 1", Capacity: 6, Active: true})
	s.SeedTable(model.Table{ID: 2, Label: "Table 2", Capacity: 6, Active: true})
	s.SeedTable(model.Table{ID: 3, Label: "Stage Rail", Capacity: 2, Active: false})
	return s
}

func insert(t *testing.T, s *MemoryBookingStore, tableID uint64, status string) *model.Booking {
	t.Helper()
	b := &model.Booking{
		Reference:     "ref-" + status,
		EventID:       1,
		TableID:       &tableID,
		CustomerEmail: "guest@example.com",
		PartySize:     2,
		Status:        status,
	}
	require.NoError(t, s.InsertBooking(context.Background(), b))
	return b
}

func TestTransitionStatusStateMachine(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()
	b := insert(t, s, 1, model.StatusPending)

	// pending -> confirmed -> refunded walks the happy path; a
	// stale confirm against the terminal state is refused.
	_, err := s.TransitionStatus(ctx, b.ID, model.StatusRefunded)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = s.TransitionStatus(ctx, b.ID, model.StatusConfirmed)
	require.NoError(t, err)
	_, err = s.TransitionStatus(ctx, b.ID, model.StatusRefunded)
	require.NoError(t, err)
	_, err = s.TransitionStatus(ctx, b.ID, model.StatusConfirmed)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransitionStatusRestoresCountersOnce(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()
	b := insert(t, s, 1, model.StatusReserved)

	ev, _ := s.GetEvent(ctx, 1)
	require.Equal(t, int32(38), ev.AvailableSeats)
	require.Equal(t, int32(7), ev.AvailableTables)

	// reserved -> confirmed keeps the claim; confirmed -> refunded
	// releases it exactly once.
	_, err := s.TransitionStatus(ctx, b.ID, model.StatusConfirmed)
	require.NoError(t, err)
	ev, _ = s.GetEvent(ctx, 1)
	assert.Equal(t, int32(38), ev.AvailableSeats)

	_, err = s.TransitionStatus(ctx, b.ID, model.StatusRefunded)
	require.NoError(t, err)
	ev, _ = s.GetEvent(ctx, 1)
	assert.Equal(t, int32(40), ev.AvailableSeats)
	assert.Equal(t, int32(8), ev.AvailableTables)
}

func TestReassignTable(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()
	b := insert(t, s, 1, model.StatusConfirmed)

	require.NoError(t, s.ReassignTable(ctx, b.ID, 2))
	got, err := s.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), *got.TableID)

	// Target claimed by another non-terminal booking conflicts, an
	// inactive table is not found, and a cancelled booking cannot be
	// moved at all.
	insert(t, s, 1, model.StatusPending)
	assert.ErrorIs(t, s.ReassignTable(ctx, b.ID, 1), ErrTableTaken)
	assert.ErrorIs(t, s.ReassignTable(ctx, b.ID, 3), ErrNotFound)

	_, err = s.TransitionStatus(ctx, b.ID, model.StatusRefunded)
	require.NoError(t, err)
	assert.ErrorIs(t, s.ReassignTable(ctx, b.ID, 2), ErrInvalidTransition)
}

func TestSetCheckedInOnce(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()
	b := insert(t, s, 1, model.StatusConfirmed)

	at := time.Date(2026, 12, 5, 18, 30, 0, 0, time.UTC)
	require.NoError(t, s.SetCheckedIn(ctx, b.ID, at))
	assert.ErrorIs(t, s.SetCheckedIn(ctx, b.ID, at.Add(time.Minute)), ErrInvalidTransition)

	got, err := s.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CheckedInAt)
	assert.True(t, got.CheckedInAt.Equal(at))
}

func TestMarkEventProcessed(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()
	ev := ProcessedEvent{ProviderEventID: "evt_1", PaymentRef: "pi_1", EventType: "payment_intent.succeeded", ReceivedAt: time.Now().UTC()}

	first, err := s.MarkEventProcessed(ctx, ev)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := s.MarkEventProcessed(ctx, ev)
	require.NoError(t, err)
	assert.False(t, again)
}

func TestUnmatchedQueueLifecycle(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	ev := UnmatchedEvent{ProviderEventID: "evt_1", PaymentRef: "pi_1", EventType: "charge.succeeded", ReceivedAt: time.Now().UTC()}
	require.NoError(t, s.RecordUnmatched(ctx, ev))
	// A redelivered event is recorded once.
	require.NoError(t, s.RecordUnmatched(ctx, ev))

	parked, err := s.ListUnmatched(ctx)
	require.NoError(t, err)
	require.Len(t, parked, 1)

	require.NoError(t, s.ResolveUnmatched(ctx, "pi_1", time.Now().UTC()))
	parked, err = s.ListUnmatched(ctx)
	require.NoError(t, err)
	assert.Empty(t, parked)
}

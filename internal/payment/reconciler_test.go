package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanternhall/dinner-show-booking/internal/model"
	"github.com/lanternhall/dinner-show-booking/internal/queue"
	"github.com/lanternhall/dinner-show-booking/internal/repository"
)

func newReconcilerFixture(t *testing.T) (*Reconciler, *repository.MemoryBookingStore) {
	t.Helper()
	store := repository.NewMemoryBookingStore()
	store.SeedEvent(model.Event{
		ID:              35,
		Title:           "Jazz Supper Club",
		StartsAt:        time.Date(2026, 10, 20, 19, 0, 0, 0, time.UTC),
		TotalSeats:      120,
		TotalTables:     20,
		AvailableSeats:  120,
		AvailableTables: 20,
		Status:          model.EventScheduled,
	})
	store.SeedTable(model.Table{ID: 5, Label: "Table 5", Capacity: 6, Active: true})
	return NewReconciler(store, queue.NopNotifier{}), store
}

// seedBooking inserts a booking holding paymentRef in the given status.
func seedBooking(t *testing.T, store *repository.MemoryBookingStore, paymentRef, status string, partySize uint32) *model.Booking {
	t.Helper()
	tableID := uint64(5)
	b := &model.Booking{
		Reference:     "ref-" + paymentRef,
		EventID:       35,
		TableID:       &tableID,
		CustomerEmail: "party@example.com",
		PartySize:     partySize,
		PaymentRef:    &paymentRef,
		Status:        status,
	}
	require.NoError(t, store.InsertBooking(context.Background(), b))
	return b
}

func succeededEvent(id, ref string) Event {
	return Event{ProviderEventID: id, Type: EventPaymentSucceeded, PaymentRef: ref, AmountCents: 18000}
}

func TestApplyPaymentEventConfirmsPending(t *testing.T) {
	r, store := newReconcilerFixture(t)
	ctx := context.Background()
	b := seedBooking(t, store, "pi_1", model.StatusPending, 4)

	require.NoError(t, r.ApplyPaymentEvent(ctx, succeededEvent("evt_1", "pi_1")))

	got, err := store.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, got.Status)

	recs := store.Reconciliations()
	require.Len(t, recs, 1)
	assert.Equal(t, "confirm", recs[0].Action)
}

// transitionFlakyStore fails the first TransitionStatus call, the way
// a deadlocked or restarted database would.
type transitionFlakyStore struct {
	*repository.MemoryBookingStore
	failures int
}

func (s *transitionFlakyStore) TransitionStatus(ctx context.Context, bookingID uint64, to string) (*model.Booking, error) {
	if s.failures > 0 {
		s.failures--
		return nil, errors.New("transient store failure")
	}
	return s.MemoryBookingStore.TransitionStatus(ctx, bookingID, to)
}

func TestApplyPaymentEventRetriedAfterTransientFailure(t *testing.T) {
	_, mem := newReconcilerFixture(t)
	b := seedBooking(t, mem, "pi_retry", model.StatusPending, 4)

	flaky := &transitionFlakyStore{MemoryBookingStore: mem, failures: 1}
	r := NewReconciler(flaky, queue.NopNotifier{})
	ctx := context.Background()

	// The first delivery fails before anything is recorded, so the
	// provider's redelivery must still be able to apply the event.
	err := r.ApplyPaymentEvent(ctx, succeededEvent("evt_retry", "pi_retry"))
	require.Error(t, err)

	got, err := mem.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusPending, got.Status)

	require.NoError(t, r.ApplyPaymentEvent(ctx, succeededEvent("evt_retry", "pi_retry")))

	got, err = mem.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, got.Status)

	// And a third delivery is now the ledger no-op.
	require.NoError(t, r.ApplyPaymentEvent(ctx, succeededEvent("evt_retry", "pi_retry")))
	assert.Len(t, mem.Reconciliations(), 1)
}

func TestApplyPaymentEventIdempotent(t *testing.T) {
	r, store := newReconcilerFixture(t)
	ctx := context.Background()
	seedBooking(t, store, "pi_1", model.StatusPending, 4)

	require.NoError(t, r.ApplyPaymentEvent(ctx, succeededEvent("evt_1", "pi_1")))
	// Redelivery of the same provider event id is a no-op.
	require.NoError(t, r.ApplyPaymentEvent(ctx, succeededEvent("evt_1", "pi_1")))

	assert.Len(t, store.Reconciliations(), 1)
}

func TestApplyPaymentEventRefundRestoresCounters(t *testing.T) {
	r, store := newReconcilerFixture(t)
	ctx := context.Background()
	b := seedBooking(t, store, "pi_2", model.StatusConfirmed, 2)

	before, err := store.GetEvent(ctx, 35)
	require.NoError(t, err)
	assert.Equal(t, int32(118), before.AvailableSeats)
	assert.Equal(t, int32(19), before.AvailableTables)

	err = r.ApplyPaymentEvent(ctx, Event{
		ProviderEventID: "evt_rf",
		Type:            EventChargeRefunded,
		PaymentRef:      "pi_2",
	})
	require.NoError(t, err)

	got, err := store.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRefunded, got.Status)

	after, err := store.GetEvent(ctx, 35)
	require.NoError(t, err)
	assert.Equal(t, int32(120), after.AvailableSeats, "party of two returns both seats")
	assert.Equal(t, int32(20), after.AvailableTables)

	recs := store.Reconciliations()
	require.Len(t, recs, 1)
	assert.Equal(t, "refund", recs[0].Action)
	assert.Equal(t, int32(2), recs[0].SeatDelta)
	assert.Equal(t, int32(1), recs[0].TableDelta)
}

func TestApplyPaymentEventStaleConfirmAfterRefund(t *testing.T) {
	r, store := newReconcilerFixture(t)
	ctx := context.Background()
	b := seedBooking(t, store, "pi_3", model.StatusConfirmed, 2)

	require.NoError(t, r.ApplyPaymentEvent(ctx, Event{
		ProviderEventID: "evt_rf",
		Type:            EventChargeRefunded,
		PaymentRef:      "pi_3",
	}))

	// A confirmation delivered after the refund must not resurrect
	// the booking.
	require.NoError(t, r.ApplyPaymentEvent(ctx, succeededEvent("evt_late", "pi_3")))

	got, err := store.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRefunded, got.Status)
}

func TestApplyPaymentEventRefundBeforeConfirmCancels(t *testing.T) {
	r, store := newReconcilerFixture(t)
	ctx := context.Background()
	b := seedBooking(t, store, "pi_4", model.StatusPending, 3)

	require.NoError(t, r.ApplyPaymentEvent(ctx, Event{
		ProviderEventID: "evt_rf",
		Type:            EventChargeRefunded,
		PaymentRef:      "pi_4",
	}))

	got, err := store.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)
}

func TestApplyPaymentEventFailureCancelsPending(t *testing.T) {
	r, store := newReconcilerFixture(t)
	ctx := context.Background()
	b := seedBooking(t, store, "pi_5", model.StatusPending, 4)

	require.NoError(t, r.ApplyPaymentEvent(ctx, Event{
		ProviderEventID: "evt_f",
		Type:            EventPaymentFailed,
		PaymentRef:      "pi_5",
	}))

	got, err := store.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)

	ev, err := store.GetEvent(ctx, 35)
	require.NoError(t, err)
	assert.Equal(t, int32(120), ev.AvailableSeats)
}

func TestApplyPaymentEventUnmatchedParked(t *testing.T) {
	r, store := newReconcilerFixture(t)
	ctx := context.Background()

	err := r.ApplyPaymentEvent(ctx, succeededEvent("evt_x", "pi_ghost"))
	assert.ErrorIs(t, err, ErrUnmatched)

	parked, err := store.ListUnmatched(ctx)
	require.NoError(t, err)
	require.Len(t, parked, 1)
	assert.Equal(t, "pi_ghost", parked[0].PaymentRef)
	assert.Equal(t, "evt_x", parked[0].ProviderEventID)
}

func TestApplyPaymentEventUnknownTypeIgnored(t *testing.T) {
	r, store := newReconcilerFixture(t)
	ctx := context.Background()
	b := seedBooking(t, store, "pi_6", model.StatusPending, 4)

	require.NoError(t, r.ApplyPaymentEvent(ctx, Event{
		ProviderEventID: "evt_u",
		Type:            "customer.updated",
		PaymentRef:      "pi_6",
	}))

	got, err := store.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Empty(t, store.Reconciliations())
}

package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanternhall/dinner-show-booking/internal/hold"
	"github.com/lanternhall/dinner-show-booking/internal/model"
	"github.com/lanternhall/dinner-show-booking/internal/queue"
	"github.com/lanternhall/dinner-show-booking/internal/repository"
)

// newWriterFixture builds a writer over a seeded in-memory store with
// a frozen clock well inside the sale window.
func newWriterFixture(t *testing.T) (*Writer, *repository.MemoryBookingStore, *Validator) {
	t.Helper()
	store := repository.NewMemoryBookingStore()
	store.SeedEvent(model.Event{
		ID:               35,
		Title:            "Jazz Supper Club",
		StartsAt:         time.Date(2026, 10, 20, 19, 0, 0, 0, time.UTC),
		TotalSeats:       120,
		TotalTables:      20,
		AvailableSeats:   120,
		AvailableTables:  20,
		TicketCutoffDays: 3,
		Status:           model.EventScheduled,
	})
	store.SeedTable(model.Table{ID: 5, Label: "Table 5", Capacity: 6, Active: true})
	store.SeedTable(model.Table{ID: 7, Label: "Table 7", Capacity: 4, Active: true})

	holds := hold.NewManager(hold.NewMemoryStore(), store, hold.DefaultTTL)
	valid := NewValidator(store, holds)
	valid.SetClock(func() time.Time {
		return time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	})
	return NewWriter(store, valid, queue.NopNotifier{}), store, valid
}

func tableRef(id uint64) *uint64 { return &id }

func validInput() CreateBookingInput {
	return CreateBookingInput{
		EventID:       35,
		TableID:       tableRef(5),
		CustomerEmail: "party@example.com",
		PartySize:     4,
		GuestNames:    []string{"Ada", "Ben", "Cleo", "Dev"},
		FoodSelections: []model.FoodSelection{
			{GuestName: "Ada", Course: "main", Dish: "duck confit"},
		},
		WineSelections: []model.WineSelection{
			{Label: "House Red", Quantity: 2},
		},
	}
}

func TestCreateBookingHappyPath(t *testing.T) {
	w, store, _ := newWriterFixture(t)

	b, err := w.CreateBooking(context.Background(), validInput())
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.NotEmpty(t, b.Reference)
	assert.Equal(t, model.StatusPending, b.Status)
	require.NotNil(t, b.TableID)
	assert.Equal(t, uint64(5), *b.TableID)

	ev, err := store.GetEvent(context.Background(), 35)
	require.NoError(t, err)
	assert.Equal(t, int32(116), ev.AvailableSeats)
	assert.Equal(t, int32(19), ev.AvailableTables)
}

func TestCreateBookingConcurrentSameTable(t *testing.T) {
	w, store, _ := newWriterFixture(t)

	const racers = 2
	var wg sync.WaitGroup
	results := make([]error, racers)
	wg.Add(racers)
	for i := 0; i < racers; i++ {
		go func(i int) {
			defer wg.Done()
			_, results[i] = w.CreateBooking(context.Background(), validInput())
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case assert.ErrorIs(t, err, repository.ErrTableTaken):
			conflicts++
		}
	}
	assert.Equal(t, 1, wins, "exactly one checkout must win the table")
	assert.Equal(t, 1, conflicts)

	// Counters moved exactly once.
	ev, err := store.GetEvent(context.Background(), 35)
	require.NoError(t, err)
	assert.Equal(t, int32(116), ev.AvailableSeats)
	assert.Equal(t, int32(19), ev.AvailableTables)
}

func TestCreateBookingSecondPartySameTable(t *testing.T) {
	w, _, _ := newWriterFixture(t)

	_, err := w.CreateBooking(context.Background(), validInput())
	require.NoError(t, err)

	in := validInput()
	in.CustomerEmail = "late@example.com"
	_, err = w.CreateBooking(context.Background(), in)
	assert.ErrorIs(t, err, repository.ErrTableTaken)
}

func TestCreateBookingAfterCancellationFreesTable(t *testing.T) {
	w, store, _ := newWriterFixture(t)

	first, err := w.CreateBooking(context.Background(), validInput())
	require.NoError(t, err)

	_, err = store.TransitionStatus(context.Background(), first.ID, model.StatusCancelled)
	require.NoError(t, err)

	in := validInput()
	in.CustomerEmail = "second@example.com"
	second, err := w.CreateBooking(context.Background(), in)
	require.NoError(t, err)
	assert.NotEqual(t, first.Reference, second.Reference)
}

func TestCreateBookingCutoffClosed(t *testing.T) {
	w, _, valid := newWriterFixture(t)

	// One second past the boundary: event on Oct 20 19:00, cutoff 3
	// days, so sales close at Oct 17 19:00.
	valid.SetClock(func() time.Time {
		return time.Date(2026, 10, 17, 19, 0, 1, 0, time.UTC)
	})
	_, err := w.CreateBooking(context.Background(), validInput())
	assert.ErrorIs(t, err, ErrCutoffPassed)
}

func TestCreateBookingValidation(t *testing.T) {
	w, _, _ := newWriterFixture(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*CreateBookingInput)
		field  string
	}{
		{"missing event", func(in *CreateBookingInput) { in.EventID = 0 }, "event_id"},
		{"zero party", func(in *CreateBookingInput) { in.PartySize = 0 }, "party_size"},
		{"bad email", func(in *CreateBookingInput) { in.CustomerEmail = "not-an-email" }, "customer_email"},
		{"too many names", func(in *CreateBookingInput) { in.PartySize = 1 }, "guest_names"},
		{"oversized party", func(in *CreateBookingInput) { in.PartySize = 7; in.GuestNames = nil }, "party_size"},
		{"empty dish", func(in *CreateBookingInput) { in.FoodSelections[0].Dish = "" }, "food_selections"},
		{"zero wine quantity", func(in *CreateBookingInput) { in.WineSelections[0].Quantity = 0 }, "wine_selections"},
		{"terminal status on create", func(in *CreateBookingInput) { in.Status = model.StatusRefunded }, "status"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, err := w.CreateBooking(ctx, in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestCreateBookingTicketOnlyNeedsNoTable(t *testing.T) {
	w, store, _ := newWriterFixture(t)

	in := validInput()
	in.TableID = nil
	b, err := w.CreateBooking(context.Background(), in)
	require.NoError(t, err)
	assert.Nil(t, b.TableID)

	// Seats decrement, tables do not.
	ev, err := store.GetEvent(context.Background(), 35)
	require.NoError(t, err)
	assert.Equal(t, int32(116), ev.AvailableSeats)
	assert.Equal(t, int32(20), ev.AvailableTables)
}

func TestCreateBookingSoldOut(t *testing.T) {
	w, store, _ := newWriterFixture(t)

	store.SeedEvent(model.Event{
		ID:               36,
		Title:            "Sold Out Night",
		StartsAt:         time.Date(2026, 11, 2, 19, 0, 0, 0, time.UTC),
		TotalSeats:       2,
		TotalTables:      1,
		AvailableSeats:   2,
		AvailableTables:  1,
		TicketCutoffDays: 0,
		Status:           model.EventScheduled,
	})

	in := validInput()
	in.EventID = 36
	in.TableID = nil
	in.PartySize = 4
	in.GuestNames = nil
	_, err := w.CreateBooking(context.Background(), in)
	assert.ErrorIs(t, err, repository.ErrSoldOut)
}

func TestCreateBookingDuplicatePaymentRef(t *testing.T) {
	w, _, _ := newWriterFixture(t)

	ref := "pi_test_123"
	in := validInput()
	in.PaymentRef = &ref
	_, err := w.CreateBooking(context.Background(), in)
	require.NoError(t, err)

	dup := validInput()
	dup.TableID = tableRef(7)
	dup.PaymentRef = &ref
	_, err = w.CreateBooking(context.Background(), dup)
	assert.ErrorIs(t, err, repository.ErrDuplicateReference)
}

package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanternhall/dinner-show-booking/internal/booking"
	"github.com/lanternhall/dinner-show-booking/internal/hold"
	"github.com/lanternhall/dinner-show-booking/internal/model"
	"github.com/lanternhall/dinner-show-booking/internal/queue"
	"github.com/lanternhall/dinner-show-booking/internal/repository"
)

// newCheckoutFixture builds the public booking handler and the staff
// handler over one seeded memory store, with the clock frozen inside
// the sale window.
func newCheckoutFixture(t *testing.T) (*BookingHandler, *AdminHandler, *repository.MemoryBookingStore) {
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

	holds := hold.NewManager(hold.NewMemoryStore(), store, hold.DefaultTTL)
	valid := booking.NewValidator(store, holds)
	valid.SetClock(func() time.Time {
		return time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	})
	writer := booking.NewWriter(store, valid, queue.NopNotifier{})
	pub := NewBookingHandler(holds, valid, writer)
	admin := NewAdminHandler(valid, writer, booking.NewRecoverer(writer, store), store, nil, nil)
	return pub, admin, store
}

func postJSON(t *testing.T, h echo.HandlerFunc, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return rec, payload
}

func TestCheckoutIgnoresPrivilegedFields(t *testing.T) {
	pub, _, store := newCheckoutFixture(t)

	// An anonymous customer smuggling a staff status and a payment
	// reference into checkout still gets a plain pending booking with
	// neither field honored.
	body := `{
		"event_id": 35,
		"table_id": 5,
		"customer_email": "sneaky@example.com",
		"party_size": 2,
		"status": "comp",
		"payment_ref": "pi_hijack"
	}`
	rec, payload := postJSON(t, pub.Checkout, "/v1/checkout", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, model.StatusPending, payload["status"])

	_, err := store.GetBookingByPaymentRef(context.Background(), "pi_hijack")
	assert.ErrorIs(t, err, repository.ErrNotFound,
		"public checkout must not bind a payment reference")
}

func TestCheckoutReservedStatusRejectedPublicly(t *testing.T) {
	pub, _, store := newCheckoutFixture(t)

	body := `{
		"event_id": 35,
		"table_id": 5,
		"customer_email": "guest@example.com",
		"party_size": 2,
		"status": "reserved"
	}`
	_, payload := postJSON(t, pub.Checkout, "/v1/checkout", body)
	assert.Equal(t, model.StatusPending, payload["status"])

	b, err := store.GetBooking(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, b.Status)
}

func TestAdminCreateBookingAcceptsStaffStatuses(t *testing.T) {
	_, admin, store := newCheckoutFixture(t)

	body := `{
		"event_id": 35,
		"table_id": 5,
		"customer_email": "walkin@example.com",
		"party_size": 3,
		"status": "reserved",
		"payment_ref": "pi_link_1"
	}`
	rec, payload := postJSON(t, admin.CreateBooking, "/v1/admin/bookings", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, model.StatusReserved, payload["status"])

	b, err := store.GetBookingByPaymentRef(context.Background(), "pi_link_1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusReserved, b.Status)
}

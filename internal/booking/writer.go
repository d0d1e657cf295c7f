package booking

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lanternhall/dinner-show-booking/internal/model"
	"github.com/lanternhall/dinner-show-booking/internal/queue"
	"github.com/lanternhall/dinner-show-booking/internal/repository"
)

// CreateBookingInput is the schema-validated boundary for booking
// creation. Handlers bind request JSON into this; the writer rejects
// malformed shapes before anything touches the store.
type CreateBookingInput struct {
	EventID        uint64                `json:"event_id"`
	TableID        *uint64               `json:"table_id,omitempty"`
	CustomerEmail  string                `json:"customer_email"`
	PartySize      uint32                `json:"party_size"`
	GuestNames     []string              `json:"guest_names,omitempty"`
	FoodSelections []model.FoodSelection `json:"food_selections,omitempty"`
	WineSelections []model.WineSelection `json:"wine_selections,omitempty"`
	PaymentRef     *string               `json:"payment_ref,omitempty"`
	Status         string                `json:"status,omitempty"`
}

// Writer creates bookings. Shape validation and the cutoff rule run
// here; the availability check and the insert run as one atomic unit
// inside the store, so no booking for the same (event, table) pair
// can slip in between them.
type Writer struct {
	store    repository.BookingStore
	valid    *Validator
	notifier queue.Notifier
}

// NewWriter wires a Writer. notifier may be queue.NopNotifier.
func NewWriter(store repository.BookingStore, valid *Validator, notifier queue.Notifier) *Writer {
	return &Writer{store: store, valid: valid, notifier: notifier}
}

// validateInput checks request shape only. Availability belongs to
// the store; timing to the validator.
func (w *Writer) validateInput(in *CreateBookingInput) error {
	if in.EventID == 0 {
		return invalid("event_id", "required")
	}
	if in.PartySize == 0 {
		return invalid("party_size", "must be at least 1")
	}
	email := strings.TrimSpace(in.CustomerEmail)
	if email == "" || !strings.Contains(email, "@") {
		return invalid("customer_email", "must be a valid email address")
	}
	if len(in.GuestNames) > int(in.PartySize) {
		return invalid("guest_names", "more names than guests")
	}
	for _, g := range in.GuestNames {
		if strings.TrimSpace(g) == "" {
			return invalid("guest_names", "empty name")
		}
	}
	for _, f := range in.FoodSelections {
		if f.Dish == "" {
			return invalid("food_selections", "missing dish")
		}
	}
	for _, ws := range in.WineSelections {
		if ws.Label == "" || ws.Quantity == 0 {
			return invalid("wine_selections", "missing label or quantity")
		}
	}
	switch in.Status {
	case "", model.StatusPending, model.StatusReserved, model.StatusComp:
	default:
		return invalid("status", "not a creation status")
	}
	return nil
}

// CreateBooking validates the input, enforces the ticket cutoff and
// inserts the booking, decrementing the event's availability counters
// in the same transaction. It returns a *ValidationError for bad
// shapes, ErrCutoffPassed outside the sale window,
// repository.ErrNotFound for unknown event/table, and
// repository.ErrTableTaken when a concurrent booking won the table.
func (w *Writer) CreateBooking(ctx context.Context, in CreateBookingInput) (*model.Booking, error) {
	if err := w.validateInput(&in); err != nil {
		return nil, err
	}
	ev, err := w.valid.CheckCutoff(ctx, in.EventID)
	if err != nil {
		return nil, err
	}
	if in.TableID != nil {
		t, err := w.store.GetTable(ctx, *in.TableID)
		if err != nil {
			return nil, err
		}
		if in.PartySize > t.Capacity {
			return nil, invalid("party_size", "exceeds table capacity")
		}
	}

	status := in.Status
	if status == "" {
		status = model.StatusPending
	}
	b := &model.Booking{
		Reference:      uuid.NewString(),
		EventID:        in.EventID,
		TableID:        in.TableID,
		CustomerEmail:  strings.TrimSpace(in.CustomerEmail),
		PartySize:      in.PartySize,
		GuestNames:     in.GuestNames,
		FoodSelections: in.FoodSelections,
		WineSelections: in.WineSelections,
		PaymentRef:     in.PaymentRef,
		Status:         status,
	}
	if err := w.store.InsertBooking(ctx, b); err != nil {
		return nil, err
	}

	// Staff-created reserved and comp bookings are active immediately
	// and get their confirmation now; pending ones wait for the
	// payment webhook.
	if model.IsActiveStatus(b.Status) {
		w.notifyConfirmed(ctx, b, ev)
	}
	return b, nil
}

// notifyConfirmed publishes the confirmation event. Failures are
// logged only: notification is best-effort and independently
// retryable, the booking itself is already final.
func (w *Writer) notifyConfirmed(ctx context.Context, b *model.Booking, ev *model.Event) {
	tableLabel := ""
	if b.TableID != nil {
		if t, err := w.store.GetTable(ctx, *b.TableID); err == nil {
			tableLabel = t.Label
		}
	}
	msg := queue.BookingConfirmedEvent{
		BookingID:     b.ID,
		Reference:     b.Reference,
		EventID:       b.EventID,
		EventTitle:    ev.Title,
		StartsAt:      ev.StartsAt.Format(time.RFC3339),
		TableLabel:    tableLabel,
		CustomerEmail: b.CustomerEmail,
		PartySize:     b.PartySize,
		GuestNames:    b.GuestNames,
		ConfirmedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if err := w.notifier.BookingConfirmed(ctx, msg); err != nil {
		log.Printf("booking: confirmation notify failed for booking %d: %v", b.ID, err)
	}
}

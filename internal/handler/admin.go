package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lanternhall/dinner-show-booking/internal/booking"
	"github.com/lanternhall/dinner-show-booking/internal/model"
	"github.com/lanternhall/dinner-show-booking/internal/payment"
	"github.com/lanternhall/dinner-show-booking/internal/repository"
)

// AdminHandler serves the staff backoffice: table reassignment,
// booking recovery, refunds, check-in, the unmatched-event queue and
// event administration.  Every route is behind JWT auth with the
// STAFF or MANAGER role.
type AdminHandler struct {
	Validator *booking.Validator
	Writer    *booking.Writer
	Recoverer *booking.Recoverer
	Store     repository.BookingStore
	Events    *repository.EventRepo
	Refunds   *payment.RefundClient
}

// NewAdminHandler wires an AdminHandler with its dependencies.
func NewAdminHandler(v *booking.Validator, w *booking.Writer, rec *booking.Recoverer, store repository.BookingStore, events *repository.EventRepo, refunds *payment.RefundClient) *AdminHandler {
	return &AdminHandler{Validator: v, Writer: w, Recoverer: rec, Store: store, Events: events, Refunds: refunds}
}

// CreateBooking is the staff-side booking write.  Unlike the public
// checkout it accepts the writer's full input, so front-of-house can
// take reserved bookings against a payment link or issue comp seats.
// The writer still refuses anything outside the creation statuses.
func (h *AdminHandler) CreateBooking(c echo.Context) error {
	var in booking.CreateBookingInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	b, err := h.Writer.CreateBooking(c.Request().Context(), in)
	if err != nil {
		var verr *booking.ValidationError
		switch {
		case errors.As(err, &verr):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": verr.Error(), "field": verr.Field})
		case errors.Is(err, booking.ErrCutoffPassed):
			return c.JSON(http.StatusGone, echo.Map{"error": "ticket sales for this event have closed"})
		case errors.Is(err, repository.ErrTableTaken):
			return c.JSON(http.StatusConflict, echo.Map{"error": "table is taken"})
		case errors.Is(err, repository.ErrSoldOut):
			return c.JSON(http.StatusConflict, echo.Map{"error": "event is sold out"})
		case errors.Is(err, repository.ErrDuplicateReference):
			return c.JSON(http.StatusConflict, echo.Map{"error": "payment reference already used"})
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event or table not found"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "booking failed"})
		}
	}
	return c.JSON(http.StatusCreated, bookingJSON(b))
}

// reassignRequest is the JSON body accepted by ValidateReassignment
// and Reassign.
type reassignRequest struct {
	BookingID  uint64 `json:"booking_id"`
	NewTableID uint64 `json:"new_table_id"`
}

// ValidateReassignment is the dry-run half of table reassignment: it
// reports whether the target table is free without moving anything,
// so front-of-house can preview a seating change.
func (h *AdminHandler) ValidateReassignment(c echo.Context) error {
	var req reassignRequest
	if err := c.Bind(&req); err != nil || req.BookingID == 0 || req.NewTableID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "booking_id and new_table_id are required"})
	}
	b, err := h.Store.GetBooking(c.Request().Context(), req.BookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	ok, err := h.Validator.ValidateTableReassignment(c.Request().Context(), req.NewTableID, b.EventID, b.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "table not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "validation failed"})
	}
	if !ok {
		return c.JSON(http.StatusConflict, echo.Map{"valid": false, "reason": "target table is taken"})
	}
	return c.JSON(http.StatusOK, echo.Map{"valid": true})
}

// Reassign moves an active booking to a new table.  The store runs
// the same availability rule as creation inside one transaction, so a
// concurrent claim on the target table makes exactly one of the two
// writes lose with a conflict.
func (h *AdminHandler) Reassign(c echo.Context) error {
	var req reassignRequest
	if err := c.Bind(&req); err != nil || req.BookingID == 0 || req.NewTableID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "booking_id and new_table_id are required"})
	}
	err := h.Store.ReassignTable(c.Request().Context(), req.BookingID, req.NewTableID)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, echo.Map{"reassigned": true, "booking_id": req.BookingID, "table_id": req.NewTableID})
	case errors.Is(err, repository.ErrTableTaken):
		return c.JSON(http.StatusConflict, echo.Map{"error": "target table is taken"})
	case errors.Is(err, repository.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking is not active"})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking or table not found"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reassign failed"})
	}
}

// recoverRequest is the JSON body accepted by RecoverBooking.
type recoverRequest struct {
	PaymentRef string                     `json:"payment_ref"`
	Details    booking.CreateBookingInput `json:"details"`
}

// RecoverBooking re-creates a booking for a settled payment whose
// original write was lost.  Calling it twice for the same reference
// returns the same booking.
func (h *AdminHandler) RecoverBooking(c echo.Context) error {
	var req recoverRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	b, err := h.Recoverer.RecoverBooking(c.Request().Context(), req.PaymentRef, req.Details)
	if err != nil {
		var verr *booking.ValidationError
		switch {
		case errors.As(err, &verr):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": verr.Error(), "field": verr.Field})
		case errors.Is(err, repository.ErrTableTaken):
			return c.JSON(http.StatusConflict, echo.Map{"error": "table is taken; recover with a different table"})
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event or table not found"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "recovery failed"})
		}
	}
	return c.JSON(http.StatusCreated, bookingJSON(b))
}

// refundRequest is the JSON body accepted by Refund.
type refundRequest struct {
	BookingID   uint64 `json:"booking_id"`
	AmountCents int64  `json:"amount_cents,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Refund asks the payment provider to refund a confirmed booking.
// The local status is not changed here: the provider's
// charge.refunded webhook drives the transition and the counter
// restore, so a lost response from the provider cannot desynchronize
// the two systems.
func (h *AdminHandler) Refund(c echo.Context) error {
	var req refundRequest
	if err := c.Bind(&req); err != nil || req.BookingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "booking_id is required"})
	}
	b, err := h.Store.GetBooking(c.Request().Context(), req.BookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	if b.Status != model.StatusConfirmed {
		return c.JSON(http.StatusConflict, echo.Map{"error": "only confirmed bookings can be refunded"})
	}
	if b.PaymentRef == nil || *b.PaymentRef == "" {
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking has no payment reference"})
	}

	refundID, err := h.Refunds.CreateRefund(*b.PaymentRef, req.AmountCents, req.Reason)
	if err != nil {
		if errors.Is(err, payment.ErrUpstream) {
			return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment provider unavailable"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "refund failed"})
	}
	return c.JSON(http.StatusAccepted, echo.Map{
		"refund_id":  refundID,
		"booking_id": b.ID,
		"status":     b.Status, // unchanged until the webhook lands
	})
}

// checkInRequest is the JSON body accepted by CheckIn.
type checkInRequest struct {
	BookingID uint64 `json:"booking_id"`
}

// CheckIn stamps the arrival time on a booking at the door.  A second
// scan of the same ticket conflicts instead of silently overwriting
// the first timestamp.
func (h *AdminHandler) CheckIn(c echo.Context) error {
	var req checkInRequest
	if err := c.Bind(&req); err != nil || req.BookingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "booking_id is required"})
	}
	err := h.Store.SetCheckedIn(c.Request().Context(), req.BookingID, time.Now().UTC())
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, echo.Map{"checked_in": true, "booking_id": req.BookingID})
	case errors.Is(err, repository.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking already checked in or not active"})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "check-in failed"})
	}
}

// ListUnmatched returns the queue of webhook events awaiting manual
// recovery, oldest first.
func (h *AdminHandler) ListUnmatched(c echo.Context) error {
	events, err := h.Store.ListUnmatched(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "listing failed"})
	}
	out := make([]echo.Map, 0, len(events))
	for _, ev := range events {
		out = append(out, echo.Map{
			"id":                ev.ID,
			"provider_event_id": ev.ProviderEventID,
			"payment_ref":       ev.PaymentRef,
			"event_type":        ev.EventType,
			"received_at":       ev.ReceivedAt.UTC().Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"unmatched_events": out})
}

// createEventRequest is the JSON body accepted by CreateEvent.
type createEventRequest struct {
	Title            string `json:"title"`
	StartsAt         string `json:"starts_at"` // RFC3339
	TotalSeats       uint32 `json:"total_seats"`
	TotalTables      uint32 `json:"total_tables"`
	TicketCutoffDays int    `json:"ticket_cutoff_days"`
}

// CreateEvent schedules a new dinner-show evening.  Availability
// counters start at the full capacity.
func (h *AdminHandler) CreateEvent(c echo.Context) error {
	var req createEventRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Title == "" || req.TotalSeats == 0 || req.TotalTables == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title, total_seats and total_tables are required"})
	}
	if req.TicketCutoffDays < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ticket_cutoff_days must not be negative"})
	}
	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must be RFC3339"})
	}

	ev := &model.Event{
		Title:            req.Title,
		StartsAt:         startsAt.UTC(),
		TotalSeats:       req.TotalSeats,
		TotalTables:      req.TotalTables,
		TicketCutoffDays: req.TicketCutoffDays,
		Status:           model.EventScheduled,
	}
	if err := h.Events.Create(c.Request().Context(), ev); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create failed"})
	}
	return c.JSON(http.StatusCreated, eventJSON(ev))
}

// ListEvents returns every event with its live availability counters.
func (h *AdminHandler) ListEvents(c echo.Context) error {
	events, err := h.Events.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "listing failed"})
	}
	out := make([]echo.Map, 0, len(events))
	for i := range events {
		out = append(out, eventJSON(&events[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"events": out})
}

// CloseEvent takes an event off sale.  Existing bookings are
// untouched; new holds and checkouts are refused once the status
// flips.
func (h *AdminHandler) CloseEvent(c echo.Context) error {
	eventID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	if err := h.Events.Close(c.Request().Context(), eventID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "close failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"event_id": eventID, "status": model.EventClosed})
}

// ListTables returns the venue floor plan.
func (h *AdminHandler) ListTables(c echo.Context) error {
	tables, err := h.Events.ListTables(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "listing failed"})
	}
	out := make([]echo.Map, 0, len(tables))
	for _, t := range tables {
		out = append(out, echo.Map{"id": t.ID, "label": t.Label, "capacity": t.Capacity, "active": t.Active})
	}
	return c.JSON(http.StatusOK, echo.Map{"tables": out})
}

// eventJSON renders an event for API responses.
func eventJSON(ev *model.Event) echo.Map {
	return echo.Map{
		"id":                 ev.ID,
		"title":              ev.Title,
		"starts_at":          ev.StartsAt.UTC().Format(time.RFC3339),
		"total_seats":        ev.TotalSeats,
		"total_tables":       ev.TotalTables,
		"available_seats":    ev.AvailableSeats,
		"available_tables":   ev.AvailableTables,
		"ticket_cutoff_days": ev.TicketCutoffDays,
		"status":             ev.Status,
	}
}

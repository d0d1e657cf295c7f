package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lanternhall/dinner-show-booking/internal/booking"
	"github.com/lanternhall/dinner-show-booking/internal/hold"
	"github.com/lanternhall/dinner-show-booking/internal/model"
	"github.com/lanternhall/dinner-show-booking/internal/repository"
)

// BookingHandler serves the public booking flow: holds, availability
// checks, the ticket cutoff and checkout.  Everything here is
// unauthenticated; abuse is contained by the rate limiter in front of
// the routes, and correctness never depends on a hold because the
// writer re-validates at insert time.
type BookingHandler struct {
	Holds     *hold.Manager
	Validator *booking.Validator
	Writer    *booking.Writer
}

// NewBookingHandler wires a BookingHandler with its dependencies.
func NewBookingHandler(holds *hold.Manager, v *booking.Validator, w *booking.Writer) *BookingHandler {
	return &BookingHandler{Holds: holds, Validator: v, Writer: w}
}

// holdRequest is the JSON body accepted by CreateHold and ReleaseHold.
type holdRequest struct {
	TableID   uint64 `json:"table_id"`
	SessionID string `json:"session_id"`
}

// CreateHold places an advisory hold on a table for the event in the
// path.  A granted hold returns 201 with the token and expiry; a
// table that is booked or held by someone else returns 409 with the
// reason, which the storefront shows verbatim.
func (h *BookingHandler) CreateHold(c echo.Context) error {
	eventID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var req holdRequest
	if err := c.Bind(&req); err != nil || req.TableID == 0 || req.SessionID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "table_id and session_id are required"})
	}

	res, err := h.Holds.CreateHold(c.Request().Context(), req.TableID, eventID, req.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event or table not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "hold failed"})
	}
	if !res.Granted {
		return c.JSON(http.StatusConflict, echo.Map{"granted": false, "reason": res.Reason})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"granted":    true,
		"token":      res.Token,
		"expires_at": res.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// ReleaseHold drops a hold the session no longer wants, freeing the
// table for other shoppers before the TTL would.
func (h *BookingHandler) ReleaseHold(c echo.Context) error {
	eventID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var req holdRequest
	if err := c.Bind(&req); err != nil || req.TableID == 0 || req.SessionID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "table_id and session_id are required"})
	}
	if err := h.Holds.ReleaseHold(c.Request().Context(), req.TableID, eventID, req.SessionID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "release failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"released": true})
}

// validateTableRequest is the JSON body accepted by ValidateTable.
type validateTableRequest struct {
	TableID uint64 `json:"table_id"`
	EventID uint64 `json:"event_id"`
}

// ValidateTable reports whether a table is free for an event.  The
// answer only reflects active bookings in the database; holds are not
// consulted because this endpoint backs the seat map, which renders
// holds separately.
func (h *BookingHandler) ValidateTable(c echo.Context) error {
	var req validateTableRequest
	if err := c.Bind(&req); err != nil || req.TableID == 0 || req.EventID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "table_id and event_id are required"})
	}
	free, err := h.Validator.ValidateTableAvailability(c.Request().Context(), req.TableID, req.EventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event or table not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "validation failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"table_id": req.TableID, "event_id": req.EventID, "available": free})
}

// TicketCutoff reports whether tickets for the event are still on
// sale.  410 Gone signals a closed sale window so the storefront can
// distinguish it from a missing event.
func (h *BookingHandler) TicketCutoff(c echo.Context) error {
	eventID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ev, err := h.Validator.CheckCutoff(c.Request().Context(), eventID)
	if err != nil {
		if errors.Is(err, booking.ErrCutoffPassed) {
			return c.JSON(http.StatusGone, echo.Map{
				"on_sale":  false,
				"event_id": eventID,
				"closes":   cutoffBoundary(ev).Format(time.RFC3339),
			})
		}
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "lookup failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"on_sale":  true,
		"event_id": eventID,
		"closes":   cutoffBoundary(ev).Format(time.RFC3339),
	})
}

// checkoutRequest is the JSON body accepted by Checkout.  It is
// deliberately narrower than the writer's input: status and payment
// reference are privileged fields that only the staff surface and the
// payment webhook may set, so an anonymous request has nowhere to put
// them.  Every public checkout starts life as pending.
type checkoutRequest struct {
	EventID        uint64                `json:"event_id"`
	TableID        *uint64               `json:"table_id,omitempty"`
	CustomerEmail  string                `json:"customer_email"`
	PartySize      uint32                `json:"party_size"`
	GuestNames     []string              `json:"guest_names,omitempty"`
	FoodSelections []model.FoodSelection `json:"food_selections,omitempty"`
	WineSelections []model.WineSelection `json:"wine_selections,omitempty"`
}

// Checkout creates a pending booking.  The writer owns all
// validation; the handler only maps its errors onto HTTP codes.  A
// lost table race surfaces as 409 so the storefront can send the
// customer back to the seat map.
func (h *BookingHandler) Checkout(c echo.Context) error {
	var req checkoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	in := booking.CreateBookingInput{
		EventID:        req.EventID,
		TableID:        req.TableID,
		CustomerEmail:  req.CustomerEmail,
		PartySize:      req.PartySize,
		GuestNames:     req.GuestNames,
		FoodSelections: req.FoodSelections,
		WineSelections: req.WineSelections,
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
			return c.JSON(http.StatusConflict, echo.Map{"error": "table was booked by another customer"})
		case errors.Is(err, repository.ErrSoldOut):
			return c.JSON(http.StatusConflict, echo.Map{"error": "event is sold out"})
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event or table not found"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "booking failed"})
		}
	}
	return c.JSON(http.StatusCreated, bookingJSON(b))
}

// pathID parses a numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}

// cutoffBoundary computes the last instant at which tickets may still
// be purchased for the event.
func cutoffBoundary(ev *model.Event) time.Time {
	return ev.StartsAt.Add(-time.Duration(ev.TicketCutoffDays) * 24 * time.Hour).UTC()
}

// bookingJSON renders a booking for API responses.  The internal ID
// stays internal; customers identify bookings by reference.
func bookingJSON(b *model.Booking) echo.Map {
	m := echo.Map{
		"reference":  b.Reference,
		"event_id":   b.EventID,
		"party_size": b.PartySize,
		"status":     b.Status,
	}
	if b.TableID != nil {
		m["table_id"] = *b.TableID
	}
	if b.CheckedInAt != nil {
		m["checked_in_at"] = b.CheckedInAt.UTC().Format(time.RFC3339)
	}
	return m
}

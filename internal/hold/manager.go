package hold

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lanternhall/dinner-show-booking/internal/model"
	"github.com/lanternhall/dinner-show-booking/internal/repository"
)

// Reasons a hold could not be issued. Contention is an expected
// outcome, not an error, so it travels in the Result rather than in
// the error return.
const (
	ReasonBooked = "table already booked"
	ReasonHeld   = "table held by another customer"
)

// Result is the outcome of a hold request. When Granted is false,
// Reason says why; Hold is populated only on success.
type Result struct {
	Granted   bool        `json:"granted"`
	Reason    string      `json:"reason,omitempty"`
	Hold      *model.Hold `json:"-"`
	Token     string      `json:"token,omitempty"`
	ExpiresAt time.Time   `json:"expires_at,omitempty"`
}

// Manager issues and checks holds. It consults the booking store
// before granting a hold so a table already claimed by an active
// booking is never shown as holdable, but it deliberately does not
// lock anything: the booking write path revalidates regardless.
type Manager struct {
	store    Store
	bookings repository.BookingStore
	ttl      time.Duration
	now      func() time.Time
}

// NewManager wires a Manager. ttl <= 0 selects DefaultTTL.
func NewManager(store Store, bookings repository.BookingStore, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, bookings: bookings, ttl: ttl, now: time.Now}
}

// SetClock overrides the time source, for tests.
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

// TTL returns the configured hold lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// CreateHold issues an advisory hold on (tableID, eventID) for the
// given session. It returns repository.ErrNotFound when the event or
// table does not exist or the event is no longer on sale; expected
// contention (booked or held tables) comes back as an ungranted
// Result, never as an error.
func (m *Manager) CreateHold(ctx context.Context, tableID, eventID uint64, sessionID string) (Result, error) {
	ev, err := m.bookings.GetEvent(ctx, eventID)
	if err != nil {
		return Result{}, err
	}
	if ev.Status != model.EventScheduled {
		return Result{}, repository.ErrNotFound
	}
	if _, err := m.bookings.GetTable(ctx, tableID); err != nil {
		return Result{}, err
	}

	booked, err := m.bookings.HasActiveBooking(ctx, eventID, tableID, 0)
	if err != nil {
		return Result{}, err
	}
	if booked {
		return Result{Granted: false, Reason: ReasonBooked}, nil
	}

	now := m.now().UTC()
	h := model.Hold{
		TableID:   tableID,
		EventID:   eventID,
		SessionID: sessionID,
		Token:     uuid.NewString(),
		StartTime: now,
		ExpiresAt: now.Add(m.ttl),
	}
	granted, _, err := m.store.Acquire(ctx, h, m.ttl)
	if err != nil {
		return Result{}, err
	}
	if !granted {
		return Result{Granted: false, Reason: ReasonHeld}, nil
	}
	return Result{Granted: true, Hold: &h, Token: h.Token, ExpiresAt: h.ExpiresAt}, nil
}

// ReleaseHold drops the session's hold, if any. Releasing a hold that
// does not exist is a no-op.
func (m *Manager) ReleaseHold(ctx context.Context, tableID, eventID uint64, sessionID string) error {
	return m.store.Release(ctx, eventID, tableID, sessionID)
}

// IsExpired reports whether a hold taken at startTime has outlived the
// TTL. Downstream booking attempts must re-validate availability when
// this returns true instead of trusting the stale token.
func (m *Manager) IsExpired(startTime time.Time) bool {
	return m.now().UTC().After(startTime.Add(m.ttl))
}

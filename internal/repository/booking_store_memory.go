package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lanternhall/dinner-show-booking/internal/model"
)

// MemoryBookingStore implements BookingStore with in-memory maps
// guarded by a single mutex. The mutex plays the role the database
// transaction plays in MySQLBookingStore: the availability check and
// the insert happen in one critical section, so the store exhibits the
// same winner/loser behaviour under concurrent booking attempts. It
// is used in tests and local development.
type MemoryBookingStore struct {
	mu           sync.Mutex
	events       map[uint64]*model.Event
	tables       map[uint64]*model.Table
	bookings     map[uint64]*model.Booking
	byPaymentRef map[string]uint64
	processed    map[string]ProcessedEvent
	unmatched    []UnmatchedEvent
	recs         []Reconciliation
	nextBooking  uint64
	nextUnmatch  uint64
}

// NewMemoryBookingStore returns an empty in-memory store.
func NewMemoryBookingStore() *MemoryBookingStore {
	return &MemoryBookingStore{
		events:       make(map[uint64]*model.Event),
		tables:       make(map[uint64]*model.Table),
		bookings:     make(map[uint64]*model.Booking),
		byPaymentRef: make(map[string]uint64),
		processed:    make(map[string]ProcessedEvent),
	}
}

// SeedEvent installs an event fixture.
func (s *MemoryBookingStore) SeedEvent(ev model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := ev
	s.events[ev.ID] = &e
}

// SeedTable installs a table fixture.
func (s *MemoryBookingStore) SeedTable(t model.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tt := t
	s.tables[t.ID] = &tt
}

// GetEvent returns a copy of the event or ErrNotFound.
func (s *MemoryBookingStore) GetEvent(ctx context.Context, eventID uint64) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[eventID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ev
	return &cp, nil
}

// GetTable returns a copy of the table or ErrNotFound.
func (s *MemoryBookingStore) GetTable(ctx context.Context, tableID uint64) (*model.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[tableID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// HasActiveBooking reports whether an active-status booking claims the
// (event, table) pair, ignoring excludeBookingID when non-zero.
func (s *MemoryBookingStore) HasActiveBooking(ctx context.Context, eventID, tableID, excludeBookingID uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeBookingLocked(eventID, tableID, excludeBookingID), nil
}

func (s *MemoryBookingStore) activeBookingLocked(eventID, tableID, excludeBookingID uint64) bool {
	for _, b := range s.bookings {
		if b.ID == excludeBookingID || b.EventID != eventID || b.TableID == nil {
			continue
		}
		if *b.TableID == tableID && model.IsActiveStatus(b.Status) {
			return true
		}
	}
	return false
}

func (s *MemoryBookingStore) slotClaimedLocked(eventID, tableID uint64) bool {
	for _, b := range s.bookings {
		if b.EventID != eventID || b.TableID == nil {
			continue
		}
		if *b.TableID == tableID && !statusReleased(b.Status) {
			return true
		}
	}
	return false
}

// InsertBooking mirrors the MySQL implementation: one critical section
// covering the availability check, the insert and the counter
// decrement.
func (s *MemoryBookingStore) InsertBooking(ctx context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[b.EventID]
	if !ok {
		return ErrNotFound
	}
	if ev.Status != model.EventScheduled {
		return ErrSoldOut
	}
	tableDelta := int32(0)
	if b.TableID != nil {
		t, ok := s.tables[*b.TableID]
		if !ok || !t.Active {
			return ErrNotFound
		}
		if s.slotClaimedLocked(b.EventID, *b.TableID) {
			return ErrTableTaken
		}
		tableDelta = 1
	}
	if ev.AvailableSeats < int32(b.PartySize) || ev.AvailableTables < tableDelta {
		return ErrSoldOut
	}
	if b.PaymentRef != nil {
		if _, exists := s.byPaymentRef[*b.PaymentRef]; exists {
			return ErrDuplicateReference
		}
	}

	s.nextBooking++
	b.ID = s.nextBooking
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	cp := *b
	s.bookings[b.ID] = &cp
	if b.PaymentRef != nil {
		s.byPaymentRef[*b.PaymentRef] = b.ID
	}
	ev.AvailableSeats -= int32(b.PartySize)
	ev.AvailableTables -= tableDelta
	return nil
}

// GetBooking returns a copy of the booking or ErrNotFound.
func (s *MemoryBookingStore) GetBooking(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

// GetBookingByPaymentRef returns the booking carrying the payment
// reference or ErrNotFound.
func (s *MemoryBookingStore) GetBookingByPaymentRef(ctx context.Context, paymentRef string) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byPaymentRef[paymentRef]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.bookings[id]
	return &cp, nil
}

// TransitionStatus applies the state machine and the paired counter
// restore under the mutex.
func (s *MemoryBookingStore) TransitionStatus(ctx context.Context, bookingID uint64, to string) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return nil, ErrNotFound
	}
	if !model.CanTransition(b.Status, to) {
		return nil, ErrInvalidTransition
	}
	from := b.Status
	b.Status = to
	b.UpdatedAt = time.Now().UTC()
	if !statusReleased(from) && statusReleased(to) {
		ev := s.events[b.EventID]
		if ev != nil {
			ev.AvailableSeats += int32(b.PartySize)
			if b.TableID != nil {
				ev.AvailableTables++
			}
		}
	}
	cp := *b
	return &cp, nil
}

// ReassignTable moves an active booking onto a free table.
func (s *MemoryBookingStore) ReassignTable(ctx context.Context, bookingID, newTableID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return ErrNotFound
	}
	if !model.IsActiveStatus(b.Status) {
		return ErrInvalidTransition
	}
	t, ok := s.tables[newTableID]
	if !ok || !t.Active {
		return ErrNotFound
	}
	if s.slotClaimedLocked(b.EventID, newTableID) {
		return ErrTableTaken
	}
	tid := newTableID
	b.TableID = &tid
	b.UpdatedAt = time.Now().UTC()
	return nil
}

// SetCheckedIn stamps the check-in time once.
func (s *MemoryBookingStore) SetCheckedIn(ctx context.Context, bookingID uint64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return ErrNotFound
	}
	if b.CheckedInAt != nil {
		return ErrInvalidTransition
	}
	t := at.UTC()
	b.CheckedInAt = &t
	return nil
}

// WasEventProcessed checks the ledger for the event id.
func (s *MemoryBookingStore) WasEventProcessed(ctx context.Context, providerEventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, seen := s.processed[providerEventID]
	return seen, nil
}

// MarkEventProcessed records the provider event id; false means it was
// seen before.
func (s *MemoryBookingStore) MarkEventProcessed(ctx context.Context, ev ProcessedEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.processed[ev.ProviderEventID]; seen {
		return false, nil
	}
	s.processed[ev.ProviderEventID] = ev
	return true, nil
}

// RecordUnmatched parks an unmatched webhook; duplicates by provider
// event id are ignored.
func (s *MemoryBookingStore) RecordUnmatched(ctx context.Context, ev UnmatchedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.unmatched {
		if existing.ProviderEventID == ev.ProviderEventID {
			return nil
		}
	}
	s.nextUnmatch++
	ev.ID = s.nextUnmatch
	s.unmatched = append(s.unmatched, ev)
	return nil
}

// ListUnmatched returns unresolved entries oldest first.
func (s *MemoryBookingStore) ListUnmatched(ctx context.Context) ([]UnmatchedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]UnmatchedEvent, 0)
	for _, ev := range s.unmatched {
		if ev.ResolvedAt == nil {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	return out, nil
}

// ResolveUnmatched closes entries for the payment reference.
func (s *MemoryBookingStore) ResolveUnmatched(ctx context.Context, paymentRef string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := at.UTC()
	for i := range s.unmatched {
		if s.unmatched[i].PaymentRef == paymentRef && s.unmatched[i].ResolvedAt == nil {
			s.unmatched[i].ResolvedAt = &t
		}
	}
	return nil
}

// RecordReconciliation appends an audit entry.
func (s *MemoryBookingStore) RecordReconciliation(ctx context.Context, rec Reconciliation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = uint64(len(s.recs) + 1)
	rec.CreatedAt = time.Now().UTC()
	s.recs = append(s.recs, rec)
	return nil
}

// Reconciliations returns a copy of the audit log, for tests.
func (s *MemoryBookingStore) Reconciliations() []Reconciliation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Reconciliation, len(s.recs))
	copy(out, s.recs)
	return out
}

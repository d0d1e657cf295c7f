package hold

import (
	"context"
	"sync"
	"time"

	"github.com/lanternhall/dinner-show-booking/internal/model"
)

// MemoryStore is a process-local hold store: a keyed map with lazy TTL
// eviction. It mirrors RedisStore's semantics closely enough that the
// manager behaves identically against either, which is what the tests
// rely on. Not suitable once the service is horizontally scaled.
type MemoryStore struct {
	mu    sync.Mutex
	holds map[[2]uint64]entry
	now   func() time.Time
}

type entry struct {
	hold      model.Hold
	expiresAt time.Time
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{holds: make(map[[2]uint64]entry), now: time.Now}
}

// SetClock overrides the time source, for tests.
func (s *MemoryStore) SetClock(now func() time.Time) { s.now = now }

// Acquire takes or refreshes the key under the mutex.
func (s *MemoryStore) Acquire(ctx context.Context, h model.Hold, ttl time.Duration) (bool, *model.Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]uint64{h.EventID, h.TableID}
	now := s.now().UTC()
	if e, ok := s.holds[key]; ok && e.expiresAt.After(now) && e.hold.SessionID != h.SessionID {
		cur := e.hold
		return false, &cur, nil
	}
	s.holds[key] = entry{hold: h, expiresAt: now.Add(ttl)}
	return true, &h, nil
}

// Lookup returns the live hold or nil, pruning expired entries as it
// finds them.
func (s *MemoryStore) Lookup(ctx context.Context, eventID, tableID uint64) (*model.Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]uint64{eventID, tableID}
	e, ok := s.holds[key]
	if !ok {
		return nil, nil
	}
	if !e.expiresAt.After(s.now().UTC()) {
		delete(s.holds, key)
		return nil, nil
	}
	cur := e.hold
	return &cur, nil
}

// Release drops the key when the session owns it.
func (s *MemoryStore) Release(ctx context.Context, eventID, tableID uint64, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]uint64{eventID, tableID}
	if e, ok := s.holds[key]; ok && e.hold.SessionID == sessionID {
		delete(s.holds, key)
	}
	return nil
}

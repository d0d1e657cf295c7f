package hold

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lanternhall/dinner-show-booking/internal/model"
)

// RedisStore keeps holds as redis string keys with a PX expiry, so
// eviction is handled entirely by the server and holds are visible to
// every instance of the service. The value is the JSON-encoded hold;
// SET NX decides contention atomically.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore returns a store backed by the given client.
func NewRedisStore(rdb *redis.Client) *RedisStore { return &RedisStore{rdb: rdb} }

func holdKey(eventID, tableID uint64) string {
	return fmt.Sprintf("hold:%d:%d", eventID, tableID)
}

// Acquire takes the key with SET NX PX. On contention it reads the
// current holder; if that holder is the same session the TTL is
// refreshed with SET XX PX instead.
func (s *RedisStore) Acquire(ctx context.Context, h model.Hold, ttl time.Duration) (bool, *model.Hold, error) {
	key := holdKey(h.EventID, h.TableID)
	body, err := json.Marshal(h)
	if err != nil {
		return false, nil, err
	}
	ok, err := s.rdb.SetNX(ctx, key, body, ttl).Result()
	if err != nil {
		return false, nil, err
	}
	if ok {
		return true, &h, nil
	}
	current, err := s.Lookup(ctx, h.EventID, h.TableID)
	if err != nil {
		return false, nil, err
	}
	if current == nil {
		// Key expired between SETNX and GET; retry once.
		ok, err := s.rdb.SetNX(ctx, key, body, ttl).Result()
		if err != nil || !ok {
			return false, nil, err
		}
		return true, &h, nil
	}
	if current.SessionID == h.SessionID {
		// Same session extends its own hold.
		if err := s.rdb.Set(ctx, key, body, ttl).Err(); err != nil {
			return false, nil, err
		}
		return true, &h, nil
	}
	return false, current, nil
}

// Lookup returns the live hold for the key or nil after expiry.
func (s *RedisStore) Lookup(ctx context.Context, eventID, tableID uint64) (*model.Hold, error) {
	raw, err := s.rdb.Get(ctx, holdKey(eventID, tableID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var h model.Hold
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Release deletes the key only when the caller's session owns it.
func (s *RedisStore) Release(ctx context.Context, eventID, tableID uint64, sessionID string) error {
	current, err := s.Lookup(ctx, eventID, tableID)
	if err != nil {
		return err
	}
	if current == nil || current.SessionID != sessionID {
		return nil
	}
	return s.rdb.Del(ctx, holdKey(eventID, tableID)).Err()
}

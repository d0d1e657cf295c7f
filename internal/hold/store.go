// Package hold implements the advisory table-hold layer used during
// checkout. A hold marks a table as "held" in the seat map for a few
// minutes so two customers are unlikely to fill in guest details for
// the same table at the same time. It is a UX optimisation only:
// expiry or even total loss of the hold store never corrupts booking
// state, because availability is re-validated inside the booking
// write transaction.
package hold

import (
	"context"
	"time"

	"github.com/lanternhall/dinner-show-booking/internal/model"
)

// DefaultTTL is how long a hold lives. Checkout flows that outlast it
// must restart validation rather than trust the stale token.
const DefaultTTL = 5 * time.Minute

// Store is the keyed TTL store behind the hold manager. The redis
// implementation is shared across horizontally scaled instances so a
// hold taken on one instance is visible to whichever instance handles
// the eventual booking request; the memory implementation is
// process-local and suits tests and single-node development.
type Store interface {
	// Acquire attempts to take the (event, table) key for the hold's
	// session. When another session already holds the key, it returns
	// false together with the current hold. Re-acquiring a key the
	// same session already owns refreshes its TTL.
	Acquire(ctx context.Context, h model.Hold, ttl time.Duration) (bool, *model.Hold, error)

	// Lookup returns the current hold for the key, or nil when the key
	// is free or has expired.
	Lookup(ctx context.Context, eventID, tableID uint64) (*model.Hold, error)

	// Release drops the hold if it is owned by the given session.
	Release(ctx context.Context, eventID, tableID uint64, sessionID string) error
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/lanternhall/dinner-show-booking/internal/model"
)

// MySQLBookingStore implements BookingStore on top of the relational
// schema. Every mutating method runs inside its own transaction so
// that the availability check, the row change and the counter
// adjustment commit or roll back as one unit. The uq_active_table
// unique index is the final backstop for the one-active-booking-per-
// table invariant: even if two transactions pass the in-transaction
// availability check, only one insert can succeed.
type MySQLBookingStore struct {
	db *sql.DB
}

// NewMySQLBookingStore returns a store bound to the given database.
func NewMySQLBookingStore(db *sql.DB) *MySQLBookingStore { return &MySQLBookingStore{db: db} }

// DB exposes the underlying sql.DB. It allows callers such as the
// staff event repository to share the same pool.
func (s *MySQLBookingStore) DB() *sql.DB { return s.db }

const dbTimeLayout = "2006-01-02 15:04:05"

// isDuplicateKey reports whether err is a MySQL duplicate-entry error
// (1062) for the named unique key. An empty key matches any 1062.
func isDuplicateKey(err error, key string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if !strings.Contains(msg, "1062") && !strings.Contains(msg, "Duplicate entry") {
		return false
	}
	return key == "" || strings.Contains(msg, key)
}

// statusReleased reports whether a booking in the given status has
// released its claim on the table and the counters.
func statusReleased(status string) bool {
	return status == model.StatusCancelled || status == model.StatusRefunded
}

// GetEvent returns the event row or ErrNotFound.
func (s *MySQLBookingStore) GetEvent(ctx context.Context, eventID uint64) (*model.Event, error) {
	const q = `SELECT id, title, starts_at, total_seats, total_tables, available_seats,
                      available_tables, ticket_cutoff_days, status, created_at, updated_at
               FROM events WHERE id = ?`
	return scanEvent(s.db.QueryRowContext(ctx, q, eventID))
}

func scanEvent(row *sql.Row) (*model.Event, error) {
	var ev model.Event
	err := row.Scan(&ev.ID, &ev.Title, &ev.StartsAt, &ev.TotalSeats, &ev.TotalTables,
		&ev.AvailableSeats, &ev.AvailableTables, &ev.TicketCutoffDays, &ev.Status,
		&ev.CreatedAt, &ev.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	ev.StartsAt = ev.StartsAt.UTC()
	return &ev, nil
}

// GetTable returns the table row or ErrNotFound.
func (s *MySQLBookingStore) GetTable(ctx context.Context, tableID uint64) (*model.Table, error) {
	const q = `SELECT id, label, capacity, active, created_at FROM venue_tables WHERE id = ?`
	var t model.Table
	err := s.db.QueryRowContext(ctx, q, tableID).Scan(&t.ID, &t.Label, &t.Capacity, &t.Active, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// HasActiveBooking reports whether an active-status booking references
// the (event, table) pair, optionally excluding one booking ID.
func (s *MySQLBookingStore) HasActiveBooking(ctx context.Context, eventID, tableID, excludeBookingID uint64) (bool, error) {
	const q = `SELECT COUNT(*) FROM bookings
               WHERE event_id = ? AND table_id = ?
                 AND status IN ('confirmed','reserved','comp')
                 AND id <> ?`
	var n int
	if err := s.db.QueryRowContext(ctx, q, eventID, tableID, excludeBookingID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// InsertBooking performs the check-then-act sequence for booking
// creation inside a single transaction: lock the event row, verify the
// counters cover the party, insert the booking, decrement the
// counters. The uq_active_table index turns a lost race into
// ErrTableTaken rather than a second active booking.
func (s *MySQLBookingStore) InsertBooking(ctx context.Context, b *model.Booking) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Lock the event row for the duration of the transaction so the
	// counter check and the decrement see the same values.
	const evQ = `SELECT available_seats, available_tables, status FROM events WHERE id = ? FOR UPDATE`
	var seats, tables int32
	var evStatus string
	if err := tx.QueryRowContext(ctx, evQ, b.EventID).Scan(&seats, &tables, &evStatus); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if evStatus != model.EventScheduled {
		return ErrSoldOut
	}

	tableDelta := int32(0)
	if b.TableID != nil {
		var active bool
		const tQ = `SELECT active FROM venue_tables WHERE id = ?`
		if err := tx.QueryRowContext(ctx, tQ, *b.TableID).Scan(&active); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if !active {
			return ErrNotFound
		}
		tableDelta = 1
	}
	if seats < int32(b.PartySize) || tables < tableDelta {
		return ErrSoldOut
	}

	guests, foods, wines, err := marshalSelections(b)
	if err != nil {
		return err
	}
	const ins = `INSERT INTO bookings
                 (reference, event_id, table_id, customer_email, party_size,
                  guest_names, food_selections, wine_selections, payment_ref, status)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, ins,
		b.Reference, b.EventID, b.TableID, b.CustomerEmail, b.PartySize,
		guests, foods, wines, b.PaymentRef, b.Status)
	if err != nil {
		if isDuplicateKey(err, "uq_active_table") {
			return ErrTableTaken
		}
		if isDuplicateKey(err, "uq_payment_ref") {
			return ErrDuplicateReference
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)

	const upd = `UPDATE events
                 SET available_seats = available_seats - ?, available_tables = available_tables - ?
                 WHERE id = ?`
	if _, err := tx.ExecContext(ctx, upd, b.PartySize, tableDelta, b.EventID); err != nil {
		return err
	}

	// Query back timestamps so the caller sees what the database stored.
	const sel = `SELECT created_at, updated_at FROM bookings WHERE id = ?`
	if err := tx.QueryRowContext(ctx, sel, b.ID).Scan(&b.CreatedAt, &b.UpdatedAt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func marshalSelections(b *model.Booking) (string, string, string, error) {
	guests, err := json.Marshal(b.GuestNames)
	if err != nil {
		return "", "", "", err
	}
	foods, err := json.Marshal(b.FoodSelections)
	if err != nil {
		return "", "", "", err
	}
	wines, err := json.Marshal(b.WineSelections)
	if err != nil {
		return "", "", "", err
	}
	return string(guests), string(foods), string(wines), nil
}

const bookingColumns = `id, reference, event_id, table_id, customer_email, party_size,
                        guest_names, food_selections, wine_selections, payment_ref,
                        status, created_at, updated_at, checked_in_at`

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*model.Booking, error) {
	var b model.Booking
	var tableID sql.NullInt64
	var guests, foods, wines []byte
	var payRef sql.NullString
	var checkedIn sql.NullTime
	err := row.Scan(&b.ID, &b.Reference, &b.EventID, &tableID, &b.CustomerEmail, &b.PartySize,
		&guests, &foods, &wines, &payRef, &b.Status, &b.CreatedAt, &b.UpdatedAt, &checkedIn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if tableID.Valid {
		tid := uint64(tableID.Int64)
		b.TableID = &tid
	}
	if payRef.Valid {
		ref := payRef.String
		b.PaymentRef = &ref
	}
	if checkedIn.Valid {
		t := checkedIn.Time.UTC()
		b.CheckedInAt = &t
	}
	if len(guests) > 0 {
		if err := json.Unmarshal(guests, &b.GuestNames); err != nil {
			return nil, err
		}
	}
	if len(foods) > 0 {
		if err := json.Unmarshal(foods, &b.FoodSelections); err != nil {
			return nil, err
		}
	}
	if len(wines) > 0 {
		if err := json.Unmarshal(wines, &b.WineSelections); err != nil {
			return nil, err
		}
	}
	return &b, nil
}

// GetBooking returns a booking by primary key or ErrNotFound.
func (s *MySQLBookingStore) GetBooking(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	return scanBooking(s.db.QueryRowContext(ctx, q, bookingID))
}

// GetBookingByPaymentRef returns the booking carrying the provider
// payment reference or ErrNotFound.
func (s *MySQLBookingStore) GetBookingByPaymentRef(ctx context.Context, paymentRef string) (*model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE payment_ref = ? LIMIT 1`
	return scanBooking(s.db.QueryRowContext(ctx, q, paymentRef))
}

// TransitionStatus moves a booking through the state machine and pairs
// the status change with the counter restore it implies, all in one
// transaction. The booking row is locked so concurrent webhook
// deliveries serialise on it.
func (s *MySQLBookingStore) TransitionStatus(ctx context.Context, bookingID uint64, to string) (*model.Booking, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ? FOR UPDATE`
	b, err := scanBooking(tx.QueryRowContext(ctx, q, bookingID))
	if err != nil {
		return nil, err
	}
	if !model.CanTransition(b.Status, to) {
		return nil, ErrInvalidTransition
	}

	if _, err := tx.ExecContext(ctx, `UPDATE bookings SET status = ? WHERE id = ?`, to, bookingID); err != nil {
		return nil, err
	}

	// Leaving the non-terminal world hands the seats (and the table)
	// back to the event.
	if !statusReleased(b.Status) && statusReleased(to) {
		tableDelta := 0
		if b.TableID != nil {
			tableDelta = 1
		}
		const upd = `UPDATE events
                     SET available_seats = available_seats + ?, available_tables = available_tables + ?
                     WHERE id = ?`
		if _, err := tx.ExecContext(ctx, upd, b.PartySize, tableDelta, b.EventID); err != nil {
			return nil, err
		}
	}

	sel := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	updated, err := scanBooking(tx.QueryRowContext(ctx, sel, bookingID))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return updated, nil
}

// ReassignTable moves an active booking onto a different table. The
// availability rule is the same one booking creation runs; the unique
// index again decides the race.
func (s *MySQLBookingStore) ReassignTable(ctx context.Context, bookingID, newTableID uint64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ? FOR UPDATE`
	b, err := scanBooking(tx.QueryRowContext(ctx, q, bookingID))
	if err != nil {
		return err
	}
	if !model.IsActiveStatus(b.Status) {
		return ErrInvalidTransition
	}

	var active bool
	if err := tx.QueryRowContext(ctx, `SELECT active FROM venue_tables WHERE id = ?`, newTableID).Scan(&active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if !active {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `UPDATE bookings SET table_id = ? WHERE id = ?`, newTableID, bookingID); err != nil {
		if isDuplicateKey(err, "uq_active_table") {
			return ErrTableTaken
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// SetCheckedIn stamps the check-in timestamp exactly once.
func (s *MySQLBookingStore) SetCheckedIn(ctx context.Context, bookingID uint64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bookings SET checked_in_at = ? WHERE id = ? AND checked_in_at IS NULL`,
		at.UTC().Format(dbTimeLayout), bookingID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish a missing booking from a repeated check-in.
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE id = ?`, bookingID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ErrNotFound
		}
		return ErrInvalidTransition
	}
	return nil
}

// WasEventProcessed checks the idempotency ledger for the event id.
func (s *MySQLBookingStore) WasEventProcessed(ctx context.Context, providerEventID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payment_events WHERE provider_event_id = ?`, providerEventID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkEventProcessed inserts into the idempotency ledger. The unique
// provider_event_id column makes the second insert fail, which is how
// a concurrent duplicate delivery is detected.
func (s *MySQLBookingStore) MarkEventProcessed(ctx context.Context, ev ProcessedEvent) (bool, error) {
	const q = `INSERT INTO payment_events (provider_event_id, payment_ref, event_type, received_at)
               VALUES (?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, ev.ProviderEventID, ev.PaymentRef, ev.EventType,
		ev.ReceivedAt.UTC().Format(dbTimeLayout))
	if err != nil {
		if isDuplicateKey(err, "") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RecordUnmatched parks a webhook with no local booking. Duplicate
// provider event ids are ignored so redeliveries do not pile up.
func (s *MySQLBookingStore) RecordUnmatched(ctx context.Context, ev UnmatchedEvent) error {
	const q = `INSERT INTO unmatched_events (provider_event_id, payment_ref, event_type, payload, received_at)
               VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, ev.ProviderEventID, ev.PaymentRef, ev.EventType, ev.Payload,
		ev.ReceivedAt.UTC().Format(dbTimeLayout))
	if isDuplicateKey(err, "") {
		return nil
	}
	return err
}

// ListUnmatched returns the unresolved administrator queue, oldest
// first.
func (s *MySQLBookingStore) ListUnmatched(ctx context.Context) ([]UnmatchedEvent, error) {
	const q = `SELECT id, provider_event_id, payment_ref, event_type, payload, received_at, resolved_at
               FROM unmatched_events WHERE resolved_at IS NULL ORDER BY received_at ASC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := make([]UnmatchedEvent, 0)
	for rows.Next() {
		var ev UnmatchedEvent
		var resolved sql.NullTime
		if err := rows.Scan(&ev.ID, &ev.ProviderEventID, &ev.PaymentRef, &ev.EventType,
			&ev.Payload, &ev.ReceivedAt, &resolved); err != nil {
			return nil, err
		}
		if resolved.Valid {
			t := resolved.Time.UTC()
			ev.ResolvedAt = &t
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// ResolveUnmatched closes every unmatched entry for a payment
// reference once recovery has re-created the booking.
func (s *MySQLBookingStore) ResolveUnmatched(ctx context.Context, paymentRef string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE unmatched_events SET resolved_at = ? WHERE payment_ref = ? AND resolved_at IS NULL`,
		at.UTC().Format(dbTimeLayout), paymentRef)
	return err
}

// RecordReconciliation appends an audit row.
func (s *MySQLBookingStore) RecordReconciliation(ctx context.Context, rec Reconciliation) error {
	const q = `INSERT INTO reconciliations (booking_id, provider_event_id, action, seat_delta, table_delta)
               VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, rec.BookingID, rec.ProviderEventID, rec.Action, rec.SeatDelta, rec.TableDelta)
	return err
}

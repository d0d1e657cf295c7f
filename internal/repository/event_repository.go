// This file contains staff-facing persistence for events. Event rows
// are created by the backoffice when an evening goes on sale and are
// never deleted while bookings reference them; closing an event only
// flips its status so existing bookings stay intact.
package repository

import (
	"context"
	"database/sql"

	"github.com/lanternhall/dinner-show-booking/internal/model"
)

// EventRepo manages staff CRUD over the events table. Availability
// counters are initialised to the totals at creation time and are
// mutated exclusively through the BookingStore afterwards.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns an EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// Create inserts a new event. The available counters start equal to
// the totals. On success the generated ID and timestamps are
// populated on the passed event.
func (r *EventRepo) Create(ctx context.Context, ev *model.Event) error {
	const q = `INSERT INTO events
               (title, starts_at, total_seats, total_tables, available_seats, available_tables, ticket_cutoff_days, status)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		ev.Title, ev.StartsAt.UTC().Format(dbTimeLayout),
		ev.TotalSeats, ev.TotalTables, ev.TotalSeats, ev.TotalTables,
		ev.TicketCutoffDays, model.EventScheduled)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ev.ID = uint64(id)
	const sel = `SELECT id, title, starts_at, total_seats, total_tables, available_seats,
                        available_tables, ticket_cutoff_days, status, created_at, updated_at
                 FROM events WHERE id = ?`
	got, err := scanEvent(r.db.QueryRowContext(ctx, sel, ev.ID))
	if err != nil {
		return err
	}
	*ev = *got
	return nil
}

// List returns all events ordered by start time ascending.
func (r *EventRepo) List(ctx context.Context) ([]model.Event, error) {
	const q = `SELECT id, title, starts_at, total_seats, total_tables, available_seats,
                      available_tables, ticket_cutoff_days, status, created_at, updated_at
               FROM events ORDER BY starts_at ASC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := make([]model.Event, 0)
	for rows.Next() {
		var ev model.Event
		if err := rows.Scan(&ev.ID, &ev.Title, &ev.StartsAt, &ev.TotalSeats, &ev.TotalTables,
			&ev.AvailableSeats, &ev.AvailableTables, &ev.TicketCutoffDays, &ev.Status,
			&ev.CreatedAt, &ev.UpdatedAt); err != nil {
			return nil, err
		}
		ev.StartsAt = ev.StartsAt.UTC()
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// Close marks an event as no longer on sale. Existing bookings are
// untouched.
func (r *EventRepo) Close(ctx context.Context, eventID uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE events SET status = ? WHERE id = ?`, model.EventClosed, eventID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE id = ?`, eventID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ErrNotFound
		}
	}
	return nil
}

// ListTables returns every sellable table on the floor.
func (r *EventRepo) ListTables(ctx context.Context) ([]model.Table, error) {
	const q = `SELECT id, label, capacity, active, created_at FROM venue_tables WHERE active = 1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tables := make([]model.Table, 0)
	for rows.Next() {
		var t model.Table
		if err := rows.Scan(&t.ID, &t.Label, &t.Capacity, &t.Active, &t.CreatedAt); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tables, nil
}

// GetByID returns an event or ErrNotFound. Kept separate from the
// BookingStore so read-only staff endpoints do not need the full
// store.
func (r *EventRepo) GetByID(ctx context.Context, eventID uint64) (*model.Event, error) {
	const q = `SELECT id, title, starts_at, total_seats, total_tables, available_seats,
                      available_tables, ticket_cutoff_days, status, created_at, updated_at
               FROM events WHERE id = ?`
	return scanEvent(r.db.QueryRowContext(ctx, q, eventID))
}

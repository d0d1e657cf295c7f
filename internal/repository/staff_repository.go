package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/lanternhall/dinner-show-booking/internal/model"
)

// StaffRepo looks up backoffice accounts for login. Passwords are
// stored as bcrypt hashes only; verification happens in the handler.
type StaffRepo struct{ DB *sql.DB }

func NewStaffRepo(db *sql.DB) *StaffRepo { return &StaffRepo{DB: db} }

// ErrEmailExists indicates an attempt to create a second staff account
// with the same email.
var ErrEmailExists = errors.New("email already exists")

// Create inserts a staff user and returns its ID. The email is
// normalized to lowercase before storage.
func (r *StaffRepo) Create(ctx context.Context, email, passwordHash, role string) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO staff_users (email, password_hash, role) VALUES (?,?,?)",
		email, passwordHash, role)
	if err != nil {
		if isDuplicateKey(err, "") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a staff user by normalized email. sql.ErrNoRows
// is returned unchanged so callers can treat unknown accounts and bad
// passwords identically.
func (r *StaffRepo) GetByEmail(ctx context.Context, email string) (model.StaffUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u model.StaffUser
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, email, password_hash, role, created_at FROM staff_users WHERE email=? LIMIT 1",
		email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	return u, err
}

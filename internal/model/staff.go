package model

import "time"

// StaffUser represents a backoffice account.  Staff log in with email
// and password and receive a short-lived JWT for the /admin surface.
// Only the bcrypt hash of the password is ever stored.
type StaffUser struct {
	ID           uint64    // staff_users.id
	Email        string    // staff_users.email
	PasswordHash string    // staff_users.password_hash
	Role         string    // staff_users.role (STAFF or MANAGER)
	CreatedAt    time.Time // staff_users.created_at
}

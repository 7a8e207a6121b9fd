package domain

import "time"

// User is a first-party account (staff or student) able to sign in and
// authorize OAuth clients.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Name         string
	RoleID       int64
	Locale       string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal identifies the authenticated caller. It is always passed
// explicitly; nothing reads it from ambient state.
type Principal struct {
	UserID int64
	RoleID int64
	Locale string
}

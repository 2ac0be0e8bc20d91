// Package model defines the data structures used throughout the application.
package model

import (
	"time"

	"github.com/sakif/civicfix/internal/geo"
)

// User is a registered account. Username and email are unique
// case-insensitively — "Alex" and "alex" are the same person as far as
// signup is concerned, and login accepts either spelling.
//
// PasswordHash holds the bcrypt hash and is never serialized. It is empty
// for accounts created through GitHub sign-in; those users have no password
// to verify and can only authenticate via OAuth.
//
// GitHubID is zero for password accounts. For OAuth accounts it is GitHub's
// stable numeric user ID, which is what we key the upsert on — usernames can
// change on GitHub, the ID cannot.
type User struct {
	ID           string    `json:"id"         db:"id"`
	Username     string    `json:"username"   db:"username"`
	Email        string    `json:"email"      db:"email"`
	PasswordHash string    `json:"-"          db:"password_hash"`
	GitHubID     int64     `json:"-"          db:"github_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Civic is the per-user profile extension: phone number, optional home
// location, optional avatar. Exactly one exists per user (UNIQUE on
// user_id); it is created in the same transaction as the account during
// signup and never standalone.
type Civic struct {
	ID          string     `json:"id"           db:"id"`
	UserID      string     `json:"user_id"      db:"user_id"`
	PhoneNumber string     `json:"phone_number" db:"phone_number"`
	Avatar      string     `json:"avatar"       db:"avatar"` // stored file path (media root relative)
	Location    *geo.Point `json:"location"`
	CreatedAt   time.Time  `json:"created_at"   db:"created_at"`
}

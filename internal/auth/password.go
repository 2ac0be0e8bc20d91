// Package auth — password hashing and strength validation.
//
// bcrypt is slow on purpose: the cost factor makes brute-forcing stolen
// hashes expensive. It generates and embeds a random salt, so the hash
// string is self-contained — store it as-is, no separate salt column.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor. Cost 12 takes roughly ~250ms on a
// modern server — negligible for login, brutal for attackers.
const defaultCost = 12

// minPasswordLength mirrors the platform's password policy.
const minPasswordLength = 8

// PasswordService provides bcrypt hashing and verification. It's a struct
// (not free functions) so tests can inject a lower cost and skip the ~250ms
// per hash.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the default cost (12).
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest creates a PasswordService with a reduced bcrypt
// cost. Do NOT use in production.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash hashes the given plaintext password with bcrypt.
// bcrypt silently truncates inputs over 72 bytes; we reject them instead so
// callers aren't surprised.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify checks a plaintext password against a stored bcrypt hash.
// bcrypt's comparison is constant-time, so this is safe against timing
// attacks. Returns nil on match.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("auth: invalid password")
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}

// CheckStrength applies the signup password policy: minimum length and not
// entirely numeric. Returns a human-readable reason on failure, suitable for
// a field error on "password".
func (p *PasswordService) CheckStrength(plaintext string) error {
	if len(plaintext) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	if strings.Trim(plaintext, "0123456789") == "" {
		return errors.New("password cannot be entirely numeric")
	}
	return nil
}

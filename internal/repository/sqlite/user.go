package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/civicfix/internal/apperror"
	"github.com/sakif/civicfix/internal/geo"
	"github.com/sakif/civicfix/internal/model"
	"github.com/sakif/civicfix/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// CreateWithProfile inserts a user and their civic profile in one
// transaction. Either both rows land or neither does — signup must never
// leave an account without its profile.
func (db *DB) CreateWithProfile(ctx context.Context, user *model.User, civic *model.Civic) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	civic.ID = xid.New().String()
	civic.UserID = user.ID
	civic.CreatedAt = now

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning signup transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, github_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.GitHubID,
		user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Username, err)
	}

	lat, lng := coordsColumns(civic.Location)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO civics (id, user_id, phone_number, avatar, coords_lat, coords_lng, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		civic.ID,
		civic.UserID,
		civic.PhoneNumber,
		civic.Avatar,
		lat,
		lng,
		civic.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting civic profile for %s: %w", user.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing signup transaction: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user by internal ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, `id = ?`, id)
}

// GetUserByUsername matches case-insensitively: "Alex" finds "alex".
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.getUser(ctx, `username = ? COLLATE NOCASE`, username)
}

// GetUserByEmail matches case-insensitively.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUser(ctx, `email = ? COLLATE NOCASE AND email <> ''`, email)
}

func (db *DB) getUser(ctx context.Context, where string, arg any) (*model.User, error) {
	var u model.User
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, github_id, created_at
		 FROM users WHERE `+where, arg,
	).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.GitHubID,
		&u.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", fmt.Sprintf("%v", arg))
		}
		return nil, fmt.Errorf("sqlite: getting user %v: %w", arg, err)
	}
	return &u, nil
}

// GetCivicByUserID retrieves the civic profile attached to a user.
func (db *DB) GetCivicByUserID(ctx context.Context, userID string) (*model.Civic, error) {
	var (
		c        model.Civic
		lat, lng sql.NullFloat64
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, phone_number, avatar, coords_lat, coords_lng, created_at
		 FROM civics WHERE user_id = ?`, userID,
	).Scan(
		&c.ID,
		&c.UserID,
		&c.PhoneNumber,
		&c.Avatar,
		&lat,
		&lng,
		&c.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("civic profile", userID)
		}
		return nil, fmt.Errorf("sqlite: getting civic profile for %s: %w", userID, err)
	}
	if lat.Valid && lng.Valid {
		c.Location = &geo.Point{Lat: lat.Float64, Lng: lng.Float64}
	}
	return &c, nil
}

// UpsertGitHub creates or refreshes an account keyed on its GitHub ID.
// First sign-in inserts the user plus an empty civic profile; later sign-ins
// keep the internal ID and refresh the email in case it changed on GitHub.
// The GitHub login becomes the username; a suffix is appended if a password
// account already claimed it.
func (db *DB) UpsertGitHub(ctx context.Context, user *model.User) error {
	var existingID string
	err := db.conn.QueryRowContext(ctx,
		`SELECT id FROM users WHERE github_id = ?`, user.GitHubID,
	).Scan(&existingID)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("sqlite: looking up user by github_id %d: %w", user.GitHubID, err)
	}

	if existingID != "" {
		user.ID = existingID
		_, err = db.conn.ExecContext(ctx,
			`UPDATE users SET email = ? WHERE id = ?`,
			user.Email, user.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
		}
		// Fill in the stored username and timestamps; GitHub's login may
		// have been suffixed on first sign-in and must not drift.
		stored, err := db.GetUserByID(ctx, existingID)
		if err != nil {
			return err
		}
		*user = *stored
		return nil
	}

	// New account. The username must not collide with an existing password
	// account; fall back to login + github id, which is unique by
	// construction.
	username := user.Username
	if _, err := db.GetUserByUsername(ctx, username); err == nil {
		username = fmt.Sprintf("%s-%d", user.Username, user.GitHubID)
	}
	user.Username = username

	civic := &model.Civic{}
	return db.CreateWithProfile(ctx, user, civic)
}

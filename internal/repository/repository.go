package repository

import (
	"context"

	"github.com/sakif/civicfix/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

type ReportRepository interface {
	Create(ctx context.Context, report *model.Report) error
	GetByID(ctx context.Context, id string) (*model.Report, error)
	List(ctx context.Context, opts ListOptions) ([]model.Report, error)
	Count(ctx context.Context) (int, error)
	Update(ctx context.Context, report *model.Report) error
	Delete(ctx context.Context, id string) error
	// Any reports whether at least one report exists — the seed endpoint's
	// idempotence check.
	Any(ctx context.Context) (bool, error)
}

type UserRepository interface {
	// CreateWithProfile inserts the user and their civic profile in a single
	// transaction. Signup is the only caller; a user never exists without a
	// profile and vice versa.
	CreateWithProfile(ctx context.Context, user *model.User, civic *model.Civic) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	// GetUserByUsername and GetUserByEmail match case-insensitively.
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetCivicByUserID(ctx context.Context, userID string) (*model.Civic, error)
	// UpsertGitHub creates or refreshes an account keyed on its GitHub ID,
	// creating an empty civic profile on first sign-in.
	UpsertGitHub(ctx context.Context, user *model.User) error
}

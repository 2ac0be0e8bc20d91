// Package service — account business logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"strings"

	"github.com/sakif/civicfix/internal/apperror"
	"github.com/sakif/civicfix/internal/auth"
	"github.com/sakif/civicfix/internal/geo"
	"github.com/sakif/civicfix/internal/media"
	"github.com/sakif/civicfix/internal/model"
	"github.com/sakif/civicfix/internal/repository"
)

const MaxUsernameLength = 150

// AuthService orchestrates signup, login, and profile lookups. It owns all
// the account rules; handlers only parse and serialize.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	media     *media.Store
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	mediaStore *media.Store,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		media:     mediaStore,
		logger:    logger,
	}
}

// AuthResult bundles the account, its civic profile, and the issued token so
// the handler can respond in one step.
type AuthResult struct {
	User  *model.User
	Civic *model.Civic
	Token string
}

// SignupInput carries the normalized fields of a signup request.
type SignupInput struct {
	Username        string
	Email           string
	Password        string
	PasswordConfirm string
	PhoneNumber     string
	Location        *geo.Point
	Avatar          *multipart.FileHeader
}

// Signup validates the input, creates the account and its civic profile in
// one transaction, and issues a token usable immediately.
//
// Uniqueness of username and email is case-insensitive — "Alex" blocks
// "alex". The avatar (if any) is staged to disk before the transactional
// write, so the profile row is only ever created with its final file
// reference.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	if in.Username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	if len(in.Username) > MaxUsernameLength {
		return nil, apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d characters or less", MaxUsernameLength))
	}
	if in.Email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	if !strings.Contains(in.Email, "@") {
		return nil, apperror.ValidationFailed("email", "enter a valid email address")
	}
	if in.Password != in.PasswordConfirm {
		return nil, apperror.ValidationFailed("password_confirm", "password fields didn't match")
	}
	if err := s.passwords.CheckStrength(in.Password); err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	if err := s.checkAvailable(ctx, in.Username, in.Email); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", "password must be 72 bytes or fewer")
	}

	civic := &model.Civic{
		PhoneNumber: strings.TrimSpace(in.PhoneNumber),
		Location:    in.Location,
	}
	if in.Avatar != nil {
		path, err := s.media.Save("avatars", in.Avatar)
		if err != nil {
			s.logger.Error("failed to store avatar",
				slog.String("username", in.Username),
				slog.String("error", err.Error()),
			)
			return nil, fmt.Errorf("storing avatar: %w", err)
		}
		civic.Avatar = path
	}

	user := &model.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
	}
	if err := s.users.CreateWithProfile(ctx, user, civic); err != nil {
		return nil, fmt.Errorf("creating account for %s: %w", in.Username, err)
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issuing token for %s: %w", user.ID, err)
	}

	s.logger.Info("user signed up",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	return &AuthResult{User: user, Civic: civic, Token: token}, nil
}

// checkAvailable verifies neither the username nor the email is taken.
// A lookup that succeeds means a duplicate; only NotFound means available.
func (s *AuthService) checkAvailable(ctx context.Context, username, email string) error {
	_, err := s.users.GetUserByUsername(ctx, username)
	if err == nil {
		return apperror.ValidationFailed("username", "a user with that username already exists")
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("checking username availability: %w", err)
	}

	_, err = s.users.GetUserByEmail(ctx, email)
	if err == nil {
		return apperror.ValidationFailed("email", "a user with that email already exists")
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("checking email availability: %w", err)
	}

	return nil
}

// errInvalidCredentials is the one rejection login ever gives. Whether the
// identifier was unknown or the password wrong is deliberately not
// revealed — distinguishing them would let an attacker enumerate accounts.
func errInvalidCredentials() *apperror.AppError {
	return apperror.ValidationFailed("", "unable to log in with the provided credentials")
}

// Login authenticates with a username OR an email (case-insensitive) plus a
// password, and issues a fresh token.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, errInvalidCredentials()
	}

	user, err := s.users.GetUserByUsername(ctx, identifier)
	if errors.Is(err, apperror.ErrNotFound) {
		user, err = s.users.GetUserByEmail(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, errInvalidCredentials()
		}
		return nil, fmt.Errorf("looking up account: %w", err)
	}

	// OAuth-only accounts have no password to verify.
	if user.PasswordHash == "" {
		return nil, errInvalidCredentials()
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, errInvalidCredentials()
	}

	civic, err := s.users.GetCivicByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("loading civic profile for %s: %w", user.ID, err)
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issuing token for %s: %w", user.ID, err)
	}

	s.logger.Info("user logged in",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	return &AuthResult{User: user, Civic: civic, Token: token}, nil
}

// Me returns the account and profile behind an already-validated token.
func (s *AuthService) Me(ctx context.Context, userID string) (*model.User, *model.Civic, error) {
	if userID == "" {
		return nil, nil, apperror.Unauthorized("valid authentication required")
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching user %s: %w", userID, err)
	}
	civic, err := s.users.GetCivicByUserID(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading civic profile for %s: %w", userID, err)
	}

	return user, civic, nil
}

// LoginOrRegisterGitHub completes a GitHub sign-in: upsert the account keyed
// on the GitHub ID (first sign-in also creates an empty civic profile) and
// issue the same kind of token password logins get.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user := &model.User{
		GitHubID: ghUser.ID,
		Username: ghUser.Login,
		Email:    ghUser.Email,
	}
	if err := s.users.UpsertGitHub(ctx, user); err != nil {
		return nil, fmt.Errorf("upserting GitHub user %d: %w", ghUser.ID, err)
	}

	civic, err := s.users.GetCivicByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("loading civic profile for %s: %w", user.ID, err)
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issuing token for %s: %w", user.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)

	return &AuthResult{User: user, Civic: civic, Token: token}, nil
}

// Package register implements direct username/password signup, feeding the
// same account store as the OAuth reconciler. Depending on site policy a
// signup either activates immediately or is staged for administrator
// approval.
package register

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/lunatv/authd/domain"
	"github.com/lunatv/authd/internal/auth"
)

var (
	ErrRegistrationDisabled = errors.New("registration is currently closed")
	ErrInvalidUsername      = errors.New("invalid username")
	ErrInvalidPassword      = errors.New("invalid password")
	ErrPasswordMismatch     = errors.New("passwords do not match")

	// ErrUsernameTaken covers both an existing account and a pending
	// registration. The two causes are logged differently but the user
	// sees the same message so the approval queue is not probeable.
	ErrUsernameTaken = errors.New("username already taken")

	ErrReservedUsername = errors.New("username is not available")
	ErrUserLimitReached = errors.New("user registration limit reached")
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Result reports a successful registration.
type Result struct {
	Message       string
	NeedsApproval bool
}

// Service validates and accepts direct registrations.
type Service struct {
	repo     domain.UserRepository
	hasher   auth.PasswordHasher
	settings domain.SettingsSource
}

// NewService creates the registration workflow.
func NewService(repo domain.UserRepository, hasher auth.PasswordHasher, settings domain.SettingsSource) *Service {
	return &Service{repo: repo, hasher: hasher, settings: settings}
}

// Register runs the ordered validation chain and, on success, either stages
// the signup for approval or creates an active account. The first failing
// check wins; nothing is written to the store before every check passes.
func (s *Service) Register(ctx context.Context, username, password, confirmPassword string) (*Result, error) {
	site := s.settings.Site()
	if !site.EnableRegistration {
		return nil, ErrRegistrationDisabled
	}

	username = strings.TrimSpace(username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if n := utf8.RuneCountInString(password); n < 6 || n > 50 {
		return nil, fmt.Errorf("%w: password must be 6-50 characters", ErrInvalidPassword)
	}
	if password != confirmPassword {
		return nil, ErrPasswordMismatch
	}

	exists, err := s.repo.UserExists(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username availability: %w", err)
	}
	if exists {
		return nil, ErrUsernameTaken
	}

	pendingExists, err := s.repo.PendingUserExists(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check pending registrations: %w", err)
	}
	if pendingExists {
		log.Debug().Str("username", username).Msg("Registration rejected, username already awaiting approval")
		return nil, ErrUsernameTaken
	}

	if site.AdminUsername != "" && username == site.AdminUsername {
		return nil, ErrReservedUsername
	}

	if site.MaxUsers > 0 {
		stats, err := s.repo.RegistrationStats(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read registration stats: %w", err)
		}
		if stats.TotalUsers >= site.MaxUsers {
			return nil, ErrUserLimitReached
		}
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	now := time.Now()

	if site.RegistrationApproval {
		pending := &domain.PendingUser{Username: username, PasswordHash: hash, RegisteredAt: now}
		if err := s.repo.CreatePendingUser(ctx, pending); err != nil {
			if errors.Is(err, domain.ErrUsernameTaken) {
				return nil, ErrUsernameTaken
			}
			return nil, fmt.Errorf("failed to stage registration: %w", err)
		}
		log.Info().Str("username", username).Msg("Registration staged for administrator approval")
		return &Result{
			Message:       "registration submitted, awaiting administrator approval",
			NeedsApproval: true,
		}, nil
	}

	account := &domain.Account{
		Username:     username,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Status:       domain.UserStatusActive,
		RegisteredAt: now,
	}
	if err := s.repo.CreateUser(ctx, account); err != nil {
		if errors.Is(err, domain.ErrUsernameTaken) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	log.Info().Str("username", username).Msg("Account registered")
	return &Result{Message: "registration successful, you can now sign in"}, nil
}

func validateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("%w: username must not be empty", ErrInvalidUsername)
	}
	if len(username) < 3 || len(username) > 20 {
		return fmt.Errorf("%w: username must be 3-20 characters", ErrInvalidUsername)
	}
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("%w: username may only contain letters, digits and underscores", ErrInvalidUsername)
	}
	return nil
}

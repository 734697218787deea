package domain

import (
	"context"
	"errors"
)

var (
	// ErrUserNotFound is returned by lookups that matched no record.
	ErrUserNotFound = errors.New("user not found")

	// ErrUsernameTaken is returned by create operations when the username
	// already exists. The store's uniqueness constraint is authoritative;
	// callers must treat this as the conflict signal even after a prior
	// existence check reported the name free.
	ErrUsernameTaken = errors.New("username already exists")

	// ErrIdentityLinked is returned when a create would attach a LinuxDo id
	// that is already linked to another account.
	ErrIdentityLinked = errors.New("external identity already linked")
)

// UserRepository is the account store consumed by the OAuth reconciler and
// the registration workflow.
type UserRepository interface {
	// UserExists reports whether an account (any status) holds the username.
	UserExists(ctx context.Context, username string) (bool, error)

	// CreateUser inserts a new account. Returns ErrUsernameTaken or
	// ErrIdentityLinked on uniqueness violations.
	CreateUser(ctx context.Context, account *Account) error

	// GetUserByLinuxDoID finds the account linked to the given external id,
	// or ErrUserNotFound.
	GetUserByLinuxDoID(ctx context.Context, id int64) (*Account, error)

	// UpdateUser persists changes to an existing account, keyed by username.
	UpdateUser(ctx context.Context, account *Account) error

	// CreatePendingUser stages a registration awaiting approval. Returns
	// ErrUsernameTaken when a pending record with the username exists.
	CreatePendingUser(ctx context.Context, pending *PendingUser) error

	// PendingUserExists reports whether a pending registration holds the
	// username.
	PendingUserExists(ctx context.Context, username string) (bool, error)

	// ListPendingUsers returns all registrations awaiting approval.
	ListPendingUsers(ctx context.Context) ([]*PendingUser, error)

	// RegistrationStats returns user-population counters.
	RegistrationStats(ctx context.Context) (*RegistrationStats, error)
}

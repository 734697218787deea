package federation_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunatv/authd/domain"
	"github.com/lunatv/authd/internal/auth"
	"github.com/lunatv/authd/internal/federation"
)

// bcryptTestCost keeps hashing cheap in tests.
const bcryptTestCost = 4

// fakeUserRepo is an in-memory UserRepository enforcing the same uniqueness
// rules as the real store.
type fakeUserRepo struct {
	accounts map[string]*domain.Account
	pending  map[string]*domain.PendingUser

	// stealUsernames makes CreateUser report the name taken once per entry,
	// simulating a concurrent registration winning between the existence
	// check and the insert.
	stealUsernames map[string]bool
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		accounts:       make(map[string]*domain.Account),
		pending:        make(map[string]*domain.PendingUser),
		stealUsernames: make(map[string]bool),
	}
}

func (r *fakeUserRepo) UserExists(_ context.Context, username string) (bool, error) {
	_, ok := r.accounts[username]
	return ok, nil
}

func (r *fakeUserRepo) CreateUser(_ context.Context, account *domain.Account) error {
	if r.stealUsernames[account.Username] {
		delete(r.stealUsernames, account.Username)
		return domain.ErrUsernameTaken
	}
	if _, ok := r.accounts[account.Username]; ok {
		return domain.ErrUsernameTaken
	}
	if account.LinuxDoID != 0 {
		for _, existing := range r.accounts {
			if existing.LinuxDoID == account.LinuxDoID {
				return domain.ErrIdentityLinked
			}
		}
	}
	clone := *account
	r.accounts[account.Username] = &clone
	return nil
}

func (r *fakeUserRepo) GetUserByLinuxDoID(_ context.Context, id int64) (*domain.Account, error) {
	for _, account := range r.accounts {
		if account.LinuxDoID == id {
			clone := *account
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *fakeUserRepo) UpdateUser(_ context.Context, account *domain.Account) error {
	if _, ok := r.accounts[account.Username]; !ok {
		return domain.ErrUserNotFound
	}
	clone := *account
	r.accounts[account.Username] = &clone
	return nil
}

func (r *fakeUserRepo) CreatePendingUser(_ context.Context, pending *domain.PendingUser) error {
	if _, ok := r.pending[pending.Username]; ok {
		return domain.ErrUsernameTaken
	}
	clone := *pending
	r.pending[pending.Username] = &clone
	return nil
}

func (r *fakeUserRepo) PendingUserExists(_ context.Context, username string) (bool, error) {
	_, ok := r.pending[username]
	return ok, nil
}

func (r *fakeUserRepo) ListPendingUsers(_ context.Context) ([]*domain.PendingUser, error) {
	out := make([]*domain.PendingUser, 0, len(r.pending))
	for _, p := range r.pending {
		clone := *p
		out = append(out, &clone)
	}
	return out, nil
}

func (r *fakeUserRepo) RegistrationStats(_ context.Context) (*domain.RegistrationStats, error) {
	return &domain.RegistrationStats{TotalUsers: len(r.accounts), PendingUsers: len(r.pending)}, nil
}

var _ domain.UserRepository = (*fakeUserRepo)(nil)

func autoRegisterSettings() domain.OAuthSettings {
	cfg := enabledSettings()
	cfg.AutoRegister = true
	cfg.DefaultRole = domain.RoleUser
	return cfg
}

func TestReconcile_ProvisionsNewAccount(t *testing.T) {
	repo := newFakeUserRepo()
	rec := federation.NewReconciler(repo, auth.NewBcryptPasswordHasher(bcryptTestCost))

	identity := &domain.ExternalIdentity{ID: 42, Username: "alice", Active: true, TrustLevel: 3}
	created, err := rec.ReconcileOrProvision(context.Background(), identity, autoRegisterSettings())
	require.NoError(t, err)
	assert.Equal(t, "linuxdo_alice", created.Username)

	account := repo.accounts[created.Username]
	require.NotNil(t, account)
	assert.Equal(t, domain.RoleUser, account.Role)
	assert.Equal(t, domain.UserStatusActive, account.Status)
	assert.Equal(t, int64(42), account.LinuxDoID)
	assert.Equal(t, "alice", account.LinuxDoUsername)
	assert.WithinDuration(t, time.Now(), account.RegisteredAt, time.Minute)
	assert.NotEmpty(t, account.PasswordHash)
	assert.True(t, strings.HasPrefix(account.PasswordHash, "$2"), "throwaway password must be stored hashed")
}

func TestReconcile_SameIdentityTwiceYieldsSameAccount(t *testing.T) {
	repo := newFakeUserRepo()
	rec := federation.NewReconciler(repo, auth.NewBcryptPasswordHasher(bcryptTestCost))
	identity := &domain.ExternalIdentity{ID: 42, Username: "alice", Active: true, TrustLevel: 3}

	first, err := rec.ReconcileOrProvision(context.Background(), identity, autoRegisterSettings())
	require.NoError(t, err)
	second, err := rec.ReconcileOrProvision(context.Background(), identity, autoRegisterSettings())
	require.NoError(t, err)

	assert.Equal(t, first.Username, second.Username)
	assert.Len(t, repo.accounts, 1, "repeat logins must not create a second account")
}

func TestReconcile_RefreshesLinkedHandle(t *testing.T) {
	repo := newFakeUserRepo()
	repo.accounts["linuxdo_alice"] = &domain.Account{
		Username:        "linuxdo_alice",
		Role:            domain.RoleAdmin,
		Banned:          true,
		Status:          domain.UserStatusActive,
		LinuxDoID:       42,
		LinuxDoUsername: "alice",
	}
	rec := federation.NewReconciler(repo, auth.NewBcryptPasswordHasher(bcryptTestCost))

	identity := &domain.ExternalIdentity{ID: 42, Username: "alice_renamed", Active: true, TrustLevel: 3}
	reconciled, err := rec.ReconcileOrProvision(context.Background(), identity, autoRegisterSettings())
	require.NoError(t, err)

	assert.Equal(t, "linuxdo_alice", reconciled.Username, "local username is stable across upstream renames")
	assert.Equal(t, domain.RoleAdmin, reconciled.Role, "caller sees the stored role, not the default")
	account := repo.accounts["linuxdo_alice"]
	assert.Equal(t, "alice_renamed", account.LinuxDoUsername)
	assert.Equal(t, domain.RoleAdmin, account.Role, "repeat login must not touch the role")
	assert.True(t, account.Banned, "repeat login must not touch the ban flag")
}

func TestReconcile_UsernameCollisionSuffix(t *testing.T) {
	repo := newFakeUserRepo()
	repo.accounts["linuxdo_alice"] = &domain.Account{Username: "linuxdo_alice", LinuxDoID: 1}
	repo.accounts["linuxdo_alice_1"] = &domain.Account{Username: "linuxdo_alice_1", LinuxDoID: 2}
	rec := federation.NewReconciler(repo, auth.NewBcryptPasswordHasher(bcryptTestCost))

	identity := &domain.ExternalIdentity{ID: 3, Username: "alice", Active: true, TrustLevel: 3}
	created, err := rec.ReconcileOrProvision(context.Background(), identity, autoRegisterSettings())
	require.NoError(t, err)
	assert.Equal(t, "linuxdo_alice_2", created.Username)
}

func TestReconcile_CreateConflictBumpsSuffix(t *testing.T) {
	repo := newFakeUserRepo()
	repo.stealUsernames["linuxdo_alice"] = true
	rec := federation.NewReconciler(repo, auth.NewBcryptPasswordHasher(bcryptTestCost))

	identity := &domain.ExternalIdentity{ID: 3, Username: "alice", Active: true, TrustLevel: 3}
	created, err := rec.ReconcileOrProvision(context.Background(), identity, autoRegisterSettings())
	require.NoError(t, err)
	assert.Equal(t, "linuxdo_alice_1", created.Username, "store conflict is authoritative over the existence check")
}

func TestReconcile_AutoRegisterDisabled(t *testing.T) {
	repo := newFakeUserRepo()
	rec := federation.NewReconciler(repo, auth.NewBcryptPasswordHasher(bcryptTestCost))

	cfg := autoRegisterSettings()
	cfg.AutoRegister = false
	identity := &domain.ExternalIdentity{ID: 42, Username: "alice", Active: true, TrustLevel: 3}

	_, err := rec.ReconcileOrProvision(context.Background(), identity, cfg)
	require.ErrorIs(t, err, federation.ErrAutoRegisterDisabled)
	assert.Empty(t, repo.accounts, "no account may be created when auto-registration is off")
}

package federation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lunatv/authd/domain"
	"github.com/lunatv/authd/internal/auth"
)

// usernamePrefix marks locally provisioned LinuxDo accounts, keeping them
// out of the direct-registration namespace.
const usernamePrefix = "linuxdo_"

// Reconciler maps a verified external identity to a local account.
type Reconciler struct {
	repo   domain.UserRepository
	hasher auth.PasswordHasher
}

// NewReconciler creates a Reconciler backed by the given account store.
func NewReconciler(repo domain.UserRepository, hasher auth.PasswordHasher) *Reconciler {
	return &Reconciler{repo: repo, hasher: hasher}
}

// ReconcileOrProvision returns the local account for the identity, creating
// one under the auto-registration policy when none is linked yet. Repeat
// logins refresh only the linked LinuxDo handle; the local username, role and
// ban status stay untouched.
func (r *Reconciler) ReconcileOrProvision(ctx context.Context, identity *domain.ExternalIdentity, cfg domain.OAuthSettings) (*domain.Account, error) {
	existing, err := r.repo.GetUserByLinuxDoID(ctx, identity.ID)
	switch {
	case err == nil:
		if existing.LinuxDoUsername != identity.Username {
			updated := *existing
			updated.LinuxDoUsername = identity.Username
			if err := r.repo.UpdateUser(ctx, &updated); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrProvisioningFailed, err)
			}
			return &updated, nil
		}
		return existing, nil
	case !errors.Is(err, domain.ErrUserNotFound):
		return nil, fmt.Errorf("%w: %v", ErrProvisioningFailed, err)
	}

	if !cfg.AutoRegister {
		log.Info().Str("linuxdo_username", identity.Username).
			Msg("Auto-registration disabled, rejecting first-time LinuxDo login")
		return nil, ErrAutoRegisterDisabled
	}

	return r.provision(ctx, identity, cfg)
}

// provision creates a new linked account. The store's create is the
// authority on uniqueness: a username conflict bumps the suffix, an identity
// conflict means a concurrent callback won and its account is returned.
func (r *Reconciler) provision(ctx context.Context, identity *domain.ExternalIdentity, cfg domain.OAuthSettings) (*domain.Account, error) {
	// The account record requires a password; OAuth users never see this one.
	password, err := randomPassword()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvisioningFailed, err)
	}
	hash, err := r.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvisioningFailed, err)
	}

	base := usernamePrefix + identity.Username
	candidate := base
	for suffix := 1; ; suffix++ {
		exists, err := r.repo.UserExists(ctx, candidate)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProvisioningFailed, err)
		}
		if !exists {
			account := &domain.Account{
				Username:        candidate,
				PasswordHash:    hash,
				Role:            cfg.DefaultRole,
				Status:          domain.UserStatusActive,
				RegisteredAt:    time.Now(),
				LinuxDoID:       identity.ID,
				LinuxDoUsername: identity.Username,
			}
			err := r.repo.CreateUser(ctx, account)
			switch {
			case err == nil:
				log.Info().
					Str("username", candidate).
					Str("linuxdo_username", identity.Username).
					Msg("Auto-created account for LinuxDo user")
				return account, nil
			case errors.Is(err, domain.ErrUsernameTaken):
				// Lost a race for the name; keep walking the suffixes.
			case errors.Is(err, domain.ErrIdentityLinked):
				winner, lookupErr := r.repo.GetUserByLinuxDoID(ctx, identity.ID)
				if lookupErr != nil {
					return nil, fmt.Errorf("%w: %v", ErrProvisioningFailed, lookupErr)
				}
				return winner, nil
			default:
				return nil, fmt.Errorf("%w: %v", ErrProvisioningFailed, err)
			}
		}
		candidate = fmt.Sprintf("%s_%d", base, suffix)
	}
}

// randomPassword returns 16 random bytes, hex encoded.
func randomPassword() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Package federation drives the LinuxDo OAuth2 authorization-code flow:
// building the provider redirect, validating the returned state, exchanging
// the code, fetching the remote identity and reconciling it with the local
// account store.
package federation

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lunatv/authd/domain"
	"github.com/lunatv/authd/internal/statestore"
)

const (
	// StateTTL is the lifetime of one authorization attempt. It bounds both
	// the state cookie and the server-side ledger entry.
	StateTTL = 10 * time.Minute

	callbackPath = "/api/oauth/callback"
)

// ProviderFactory builds a Provider for one settings snapshot. Site
// configuration is administrator-editable, so the provider is rebuilt per
// request rather than held for the process lifetime.
type ProviderFactory func(domain.OAuthSettings) Provider

// Service sequences the authorize/callback sides of the exchange.
type Service struct {
	settings    domain.SettingsSource
	states      statestore.Store
	newProvider ProviderFactory
}

// NewService creates the exchange engine. A nil factory uses the LinuxDo
// provider.
func NewService(settings domain.SettingsSource, states statestore.Store, factory ProviderFactory) *Service {
	if factory == nil {
		factory = func(cfg domain.OAuthSettings) Provider { return NewLinuxDoProvider(cfg) }
	}
	return &Service{settings: settings, states: states, newProvider: factory}
}

// RedirectDirective instructs the HTTP layer to send the user agent to the
// provider and to bind State to it via the state cookie.
type RedirectDirective struct {
	URL   string
	State string
}

// Authorize starts an authorization attempt. It distinguishes the feature
// being switched off (a normal administrative choice) from missing client
// credentials (an operator bug).
func (s *Service) Authorize(ctx context.Context, req *http.Request) (*RedirectDirective, error) {
	cfg := s.settings.OAuth()
	if !cfg.Enabled {
		return nil, ErrFeatureDisabled
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMisconfigured
	}

	state, err := NewState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate oauth state: %w", err)
	}
	if err := s.states.Put(ctx, state, StateTTL); err != nil {
		return nil, fmt.Errorf("failed to record oauth state: %w", err)
	}

	return &RedirectDirective{
		URL:   s.newProvider(cfg).AuthCodeURL(state, s.redirectURI(cfg, req)),
		State: state,
	}, nil
}

// CallbackParams carries everything the provider redirect handed back plus
// the state cookie bound to the user agent.
type CallbackParams struct {
	Code          string
	State         string
	CookieState   string
	ProviderError string
}

// Callback validates the provider redirect, exchanges the code and returns
// the verified external identity. Checks run in order and short-circuit on
// the first failure.
func (s *Service) Callback(ctx context.Context, req *http.Request, p CallbackParams) (*domain.ExternalIdentity, error) {
	if p.ProviderError != "" {
		log.Warn().Str("provider_error", p.ProviderError).Msg("Authorization denied or cancelled at provider")
		return nil, fmt.Errorf("%w: %s", ErrProviderDenied, p.ProviderError)
	}
	if p.Code == "" || p.State == "" {
		return nil, ErrMissingParameters
	}
	if p.CookieState == "" || p.CookieState != p.State {
		log.Warn().
			Str("event", "oauth_state_mismatch").
			Bool("cookie_present", p.CookieState != "").
			Msg("OAuth state verification failed, possible CSRF attempt")
		return nil, ErrStateMismatch
	}
	consumed, err := s.states.Consume(ctx, p.State)
	if err != nil {
		return nil, fmt.Errorf("failed to consume oauth state: %w", err)
	}
	if !consumed {
		log.Warn().
			Str("event", "oauth_state_replayed").
			Msg("OAuth state was expired or already used")
		return nil, ErrStateMismatch
	}

	cfg := s.settings.OAuth()
	if !cfg.Enabled {
		return nil, ErrFeatureDisabled
	}

	provider := s.newProvider(cfg)
	token, err := provider.Exchange(ctx, p.Code, s.redirectURI(cfg, req))
	if err != nil {
		log.Error().Err(err).Msg("Token exchange failed")
		return nil, err
	}
	identity, err := provider.FetchIdentity(ctx, token)
	if err != nil {
		log.Error().Err(err).Msg("Identity fetch failed")
		return nil, err
	}

	if !identity.Active {
		return nil, ErrAccountDisabled
	}
	if identity.Silenced {
		return nil, ErrAccountSilenced
	}
	if identity.TrustLevel < cfg.MinTrustLevel {
		return nil, fmt.Errorf("%w: trust level %d or above required, current level is %d",
			ErrTrustLevelTooLow, cfg.MinTrustLevel, identity.TrustLevel)
	}

	return identity, nil
}

// redirectURI prefers the explicitly configured value; otherwise it derives
// the callback address from the inbound request, trusting reverse-proxy
// headers over the raw URL.
func (s *Service) redirectURI(cfg domain.OAuthSettings, req *http.Request) string {
	if cfg.RedirectURI != "" {
		return cfg.RedirectURI
	}
	scheme := req.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "http"
		if req.TLS != nil {
			scheme = "https"
		}
	}
	return fmt.Sprintf("%s://%s%s", scheme, req.Host, callbackPath)
}

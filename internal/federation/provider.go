package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/lunatv/authd/domain"
)

// upstreamTimeout bounds the blocking calls to the provider. Authorization
// codes are single-use, so there is no retry: a timeout surfaces to the user
// as a failed login they can restart.
const upstreamTimeout = 10 * time.Second

// Provider is the outbound side of the OAuth2 exchange.
type Provider interface {
	// AuthCodeURL builds the provider authorization URL carrying
	// response_type=code, client_id, state and redirect_uri.
	AuthCodeURL(state, redirectURI string) string

	// Exchange trades the authorization code for an access token.
	Exchange(ctx context.Context, code, redirectURI string) (*oauth2.Token, error)

	// FetchIdentity retrieves the remote user record with a bearer token.
	FetchIdentity(ctx context.Context, token *oauth2.Token) (*domain.ExternalIdentity, error)
}

// LinuxDoProvider implements Provider against the LinuxDo Connect endpoints.
type LinuxDoProvider struct {
	settings domain.OAuthSettings
	client   *http.Client
}

// NewLinuxDoProvider creates a provider for one settings snapshot.
func NewLinuxDoProvider(settings domain.OAuthSettings) *LinuxDoProvider {
	return &LinuxDoProvider{
		settings: settings,
		client:   &http.Client{Timeout: upstreamTimeout},
	}
}

// oauthConfig builds the oauth2.Config for one call. AuthStyleInHeader
// forces client_secret_basic: LinuxDo expects the client credentials in an
// Authorization: Basic header on the token request.
func (p *LinuxDoProvider) oauthConfig(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.settings.ClientID,
		ClientSecret: p.settings.ClientSecret,
		RedirectURL:  redirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.settings.AuthorizeURL,
			TokenURL:  p.settings.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

func (p *LinuxDoProvider) AuthCodeURL(state, redirectURI string) string {
	return p.oauthConfig(redirectURI).AuthCodeURL(state)
}

func (p *LinuxDoProvider) Exchange(ctx context.Context, code, redirectURI string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	token, err := p.oauthConfig(redirectURI).Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeCodeFailed, err)
	}
	return token, nil
}

func (p *LinuxDoProvider) FetchIdentity(ctx context.Context, token *oauth2.Token) (*domain.ExternalIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.settings.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchIdentityFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchIdentityFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: status %d, body: %s", ErrFetchIdentityFailed, resp.StatusCode, string(body))
	}

	var identity domain.ExternalIdentity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchIdentityFailed, err)
	}
	return &identity, nil
}

var _ Provider = (*LinuxDoProvider)(nil)

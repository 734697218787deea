// Package echo exposes the authentication workflows over HTTP: the LinuxDo
// OAuth2 redirect pair and direct registration.
package echo

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/lunatv/authd/domain"
	"github.com/lunatv/authd/internal/auth"
	"github.com/lunatv/authd/internal/federation"
	"github.com/lunatv/authd/internal/register"
)

const (
	// StateCookieName binds an authorization attempt to the user agent.
	StateCookieName = "oauth_state"

	// AuthCookieName carries the issued credential. Frontend code reads it,
	// so unlike the state cookie it is not HttpOnly.
	AuthCookieName = "auth"

	authCookieTTL = 7 * 24 * time.Hour

	loginPath = "/login"
)

// AuthAPI holds the workflow dependencies for the HTTP handlers.
type AuthAPI struct {
	federation *federation.Service
	reconciler *federation.Reconciler
	register   *register.Service
	signer     *auth.CookieSigner
	settings   domain.SettingsSource
}

// NewAuthAPI initializes the authentication API.
func NewAuthAPI(
	fed *federation.Service,
	rec *federation.Reconciler,
	reg *register.Service,
	signer *auth.CookieSigner,
	settings domain.SettingsSource,
) *AuthAPI {
	return &AuthAPI{
		federation: fed,
		reconciler: rec,
		register:   reg,
		signer:     signer,
		settings:   settings,
	}
}

// RegisterRoutes registers the authentication routes.
func (a *AuthAPI) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/oauth/authorize", a.AuthorizeHandler)
	e.GET("/api/oauth/callback", a.CallbackHandler)
	e.POST("/api/register", a.RegisterHandler)
}

// AuthorizeHandler starts the LinuxDo flow: it records a fresh state, binds
// it to the user agent via the state cookie and redirects to the provider.
func (a *AuthAPI) AuthorizeHandler(c echo.Context) error {
	directive, err := a.federation.Authorize(c.Request().Context(), c.Request())
	if err != nil {
		switch {
		case errors.Is(err, federation.ErrFeatureDisabled):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "oauth login is not enabled"})
		case errors.Is(err, federation.ErrMisconfigured):
			log.Error().Err(err).Msg("OAuth authorize rejected, client credentials missing")
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "oauth is not configured"})
		default:
			log.Error().Err(err).Msg("Failed to start oauth authorization")
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start oauth authorization"})
		}
	}

	c.SetCookie(&http.Cookie{
		Name:     StateCookieName,
		Value:    directive.State,
		Path:     "/",
		MaxAge:   int(federation.StateTTL.Seconds()),
		HttpOnly: true,
		Secure:   c.Request().TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return c.Redirect(http.StatusFound, directive.URL)
}

// CallbackHandler finishes the flow: it validates the provider redirect,
// reconciles the external identity with the account store and issues the
// auth cookie. Every failure lands the user back on the login page with the
// reason in the oauth_error query parameter.
func (a *AuthAPI) CallbackHandler(c echo.Context) error {
	params := federation.CallbackParams{
		Code:          c.QueryParam("code"),
		State:         c.QueryParam("state"),
		ProviderError: c.QueryParam("error"),
	}
	if cookie, err := c.Cookie(StateCookieName); err == nil {
		params.CookieState = cookie.Value
	}

	identity, err := a.federation.Callback(c.Request().Context(), c.Request(), params)
	if err != nil {
		return a.failLogin(c, err)
	}

	account, err := a.reconciler.ReconcileOrProvision(c.Request().Context(), identity, a.settings.OAuth())
	if err != nil {
		return a.failLogin(c, err)
	}

	cred := a.signer.IssueCredential(account.Username, account.Role, time.Now())
	encoded, err := cred.Encode()
	if err != nil {
		return a.failLogin(c, err)
	}

	secure := c.Request().TLS != nil
	c.SetCookie(&http.Cookie{
		Name:     AuthCookieName,
		Value:    encoded,
		Path:     "/",
		MaxAge:   int(authCookieTTL.Seconds()),
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	a.clearStateCookie(c, secure)

	log.Info().
		Str("username", account.Username).
		Int64("linuxdo_id", identity.ID).
		Msg("OAuth login completed")
	return c.Redirect(http.StatusFound, "/")
}

// failLogin clears the state cookie and bounces to the login page with the
// failure reason.
func (a *AuthAPI) failLogin(c echo.Context, err error) error {
	if errors.Is(err, federation.ErrStateMismatch) {
		log.Warn().
			Str("remote_ip", c.RealIP()).
			Msg("OAuth callback rejected with state mismatch")
	} else {
		log.Error().Err(err).Msg("OAuth callback failed")
	}

	a.clearStateCookie(c, c.Request().TLS != nil)

	q := url.Values{}
	q.Set("oauth_error", loginErrorMessage(err))
	return c.Redirect(http.StatusFound, loginPath+"?"+q.Encode())
}

// loginErrorMessage maps a callback failure to the text placed in the
// oauth_error query parameter. Upstream and store failures collapse to
// their sentinel message; anything unrecognized gets a generic one. The
// full error stays in the server log only.
func loginErrorMessage(err error) string {
	switch {
	case errors.Is(err, federation.ErrExchangeCodeFailed):
		return federation.ErrExchangeCodeFailed.Error()
	case errors.Is(err, federation.ErrFetchIdentityFailed):
		return federation.ErrFetchIdentityFailed.Error()
	case errors.Is(err, federation.ErrProvisioningFailed):
		return federation.ErrProvisioningFailed.Error()
	case errors.Is(err, federation.ErrProviderDenied),
		errors.Is(err, federation.ErrMissingParameters),
		errors.Is(err, federation.ErrStateMismatch),
		errors.Is(err, federation.ErrFeatureDisabled),
		errors.Is(err, federation.ErrAccountDisabled),
		errors.Is(err, federation.ErrAccountSilenced),
		errors.Is(err, federation.ErrTrustLevelTooLow),
		errors.Is(err, federation.ErrAutoRegisterDisabled):
		// Policy rejections carry user-relevant detail, like the trust
		// level numbers, and are safe to show.
		return err.Error()
	default:
		return "login failed, please try again"
	}
}

func (a *AuthAPI) clearStateCookie(c echo.Context, secure bool) {
	c.SetCookie(&http.Cookie{
		Name:     StateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// RegisterRequest is the direct registration payload.
type RegisterRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// RegisterResponse reports the registration outcome.
type RegisterResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	NeedsApproval bool   `json:"needsApproval,omitempty"`
}

// RegisterHandler accepts a direct username/password signup.
func (a *AuthAPI) RegisterHandler(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, RegisterResponse{Message: "invalid request body"})
	}

	result, err := a.register.Register(c.Request().Context(), req.Username, req.Password, req.ConfirmPassword)
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, register.ErrRegistrationDisabled):
			status = http.StatusForbidden
		case errors.Is(err, register.ErrInvalidUsername),
			errors.Is(err, register.ErrInvalidPassword),
			errors.Is(err, register.ErrPasswordMismatch),
			errors.Is(err, register.ErrUsernameTaken),
			errors.Is(err, register.ErrReservedUsername),
			errors.Is(err, register.ErrUserLimitReached):
			status = http.StatusBadRequest
		default:
			log.Error().Err(err).Msg("Registration failed")
			return c.JSON(http.StatusInternalServerError, RegisterResponse{Message: "registration failed"})
		}
		return c.JSON(status, RegisterResponse{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, RegisterResponse{
		Success:       true,
		Message:       result.Message,
		NeedsApproval: result.NeedsApproval,
	})
}

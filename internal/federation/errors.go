package federation

import "errors"

var (
	// ErrFeatureDisabled means the administrator has turned LinuxDo login
	// off. A policy choice, not a fault.
	ErrFeatureDisabled = errors.New("LinuxDo OAuth is not enabled")

	// ErrMisconfigured means the feature is on but client credentials are
	// missing. An operator bug, surfaced as a 5xx.
	ErrMisconfigured = errors.New("OAuth configuration is incomplete, contact the administrator")

	ErrProviderDenied    = errors.New("authorization was denied or cancelled")
	ErrMissingParameters = errors.New("authorization callback parameters are missing")

	// ErrStateMismatch is the CSRF signal: the state returned by the
	// provider does not match the one bound to this user agent, or was
	// already consumed.
	ErrStateMismatch = errors.New("authorization state verification failed")

	ErrExchangeCodeFailed  = errors.New("failed to exchange authorization code for access token")
	ErrFetchIdentityFailed = errors.New("failed to fetch user info from provider")

	ErrAccountDisabled  = errors.New("your LinuxDo account is disabled")
	ErrAccountSilenced  = errors.New("your LinuxDo account is silenced")
	ErrTrustLevelTooLow = errors.New("trust level too low")

	ErrAutoRegisterDisabled = errors.New("automatic registration is disabled")
	ErrProvisioningFailed   = errors.New("failed to find or create user account")
)

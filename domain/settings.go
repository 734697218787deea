package domain

// OAuthSettings is the LinuxDo OAuth2 provider configuration as seen by one
// request. Values are immutable snapshots: callers that change a setting
// produce a new value and persist it rather than mutating a shared object.
type OAuthSettings struct {
	Enabled       bool
	ClientID      string
	ClientSecret  string
	AuthorizeURL  string
	TokenURL      string
	UserInfoURL   string
	RedirectURI   string // optional; derived from request headers when empty
	MinTrustLevel int
	AutoRegister  bool
	DefaultRole   Role
}

// SiteSettings holds the registration policy toggles.
type SiteSettings struct {
	EnableRegistration   bool
	RegistrationApproval bool
	MaxUsers             int // 0 means unlimited
	AdminUsername        string
}

// SettingsSource yields the current settings snapshot. Site configuration is
// administrator-editable at runtime, so services read it per request instead
// of capturing it at construction time.
type SettingsSource interface {
	OAuth() OAuthSettings
	Site() SiteSettings
}

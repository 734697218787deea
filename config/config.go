package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/lunatv/authd/domain"
)

// ServerConfig holds all configuration for the server.
// Tags use mapstructure for Viper unmarshalling and env for environment variable binding.
type ServerConfig struct {
	HTTPPort    string `mapstructure:"HTTP_PORT"`
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`
	// RedisAddr switches the OAuth state ledger from in-process memory to
	// Redis when set, for multi-instance deployments.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	RedisPrefix   string `mapstructure:"REDIS_PREFIX"`
	LogLevel      string `mapstructure:"LOG_LEVEL"`
	LogPretty     bool   `mapstructure:"LOG_PRETTY"`

	// AuthSecret signs the auth cookie. When empty, credentials are issued
	// unsigned and must only be trusted behind an authenticating proxy.
	AuthSecret    string `mapstructure:"AUTH_SECRET"`
	AdminUsername string `mapstructure:"ADMIN_USERNAME"`

	OAuthEnabled      bool   `mapstructure:"OAUTH_ENABLED"`
	OAuthClientID     string `mapstructure:"OAUTH_CLIENT_ID"`
	OAuthClientSecret string `mapstructure:"OAUTH_CLIENT_SECRET"`
	OAuthAuthorizeURL string `mapstructure:"OAUTH_AUTHORIZE_URL"`
	OAuthTokenURL     string `mapstructure:"OAUTH_TOKEN_URL"`
	OAuthUserInfoURL  string `mapstructure:"OAUTH_USERINFO_URL"`
	// OAuthRedirectURI overrides the callback URL derived from the incoming
	// request, for deployments behind a rewriting proxy.
	OAuthRedirectURI   string `mapstructure:"OAUTH_REDIRECT_URI"`
	OAuthMinTrustLevel int    `mapstructure:"OAUTH_MIN_TRUST_LEVEL"`
	OAuthAutoRegister  bool   `mapstructure:"OAUTH_AUTO_REGISTER"`
	OAuthDefaultRole   string `mapstructure:"OAUTH_DEFAULT_ROLE"`

	EnableRegistration   bool `mapstructure:"ENABLE_REGISTRATION"`
	RegistrationApproval bool `mapstructure:"REGISTRATION_APPROVAL"`
	MaxUsers             int  `mapstructure:"MAX_USERS"`
}

// LoadConfig reads configuration from file, environment variables, and defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("/etc/authd/")
	v.AddConfigPath("$HOME/.authd")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/authd_dev")
	v.SetDefault("MONGO_DB_NAME", "authd_dev")
	v.SetDefault("REDIS_PREFIX", "authd")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("OAUTH_AUTHORIZE_URL", "https://connect.linux.do/oauth2/authorize")
	v.SetDefault("OAUTH_TOKEN_URL", "https://connect.linux.do/oauth2/token")
	v.SetDefault("OAUTH_USERINFO_URL", "https://connect.linux.do/api/user")
	v.SetDefault("OAUTH_MIN_TRUST_LEVEL", 0)
	v.SetDefault("OAUTH_AUTO_REGISTER", true)
	v.SetDefault("OAUTH_DEFAULT_ROLE", string(domain.RoleUser))
	v.SetDefault("ENABLE_REGISTRATION", true)
	v.SetDefault("REGISTRATION_APPROVAL", false)
	v.SetDefault("MAX_USERS", 0)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults and env vars take over.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}

// OAuth snapshots the provider settings for the federation flow.
func (c *ServerConfig) OAuth() domain.OAuthSettings {
	return domain.OAuthSettings{
		Enabled:       c.OAuthEnabled,
		ClientID:      c.OAuthClientID,
		ClientSecret:  c.OAuthClientSecret,
		AuthorizeURL:  c.OAuthAuthorizeURL,
		TokenURL:      c.OAuthTokenURL,
		UserInfoURL:   c.OAuthUserInfoURL,
		RedirectURI:   c.OAuthRedirectURI,
		MinTrustLevel: c.OAuthMinTrustLevel,
		AutoRegister:  c.OAuthAutoRegister,
		DefaultRole:   domain.Role(c.OAuthDefaultRole),
	}
}

// Site snapshots the registration policy.
func (c *ServerConfig) Site() domain.SiteSettings {
	return domain.SiteSettings{
		EnableRegistration:   c.EnableRegistration,
		RegistrationApproval: c.RegistrationApproval,
		MaxUsers:             c.MaxUsers,
		AdminUsername:        c.AdminUsername,
	}
}

var _ domain.SettingsSource = (*ServerConfig)(nil)

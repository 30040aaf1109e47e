package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/jrsteele09/go-sso-service/internal/errors"
)

// Config is the complete service configuration. Every value is read from the
// environment; defaults are declared on the struct tags of each section.
type Config struct {
	EnvVars
	OAuth
	Security
	Store
}

// New parses the process environment into a Config and validates it.
func New() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("[config New] parse env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Defaults returns a Config holding only the declared defaults, ignoring the
// process environment. It is not validated.
func Defaults() Config {
	var c Config
	// Parsing an empty environment only fails on malformed defaults.
	if err := env.ParseWithOptions(&c, env.Options{Environment: map[string]string{}}); err != nil {
		panic("config defaults: " + err.Error())
	}
	return c
}

// Validate reports the first problem that would stop the service from
// completing an SSO flow.
func (c Config) Validate() error {
	var problems []string

	if c.ClientID == "" {
		problems = append(problems, "SSO_CLIENT_ID is required")
	}
	if c.Issuer == "" && (c.AuthURL == "" || c.TokenURL == "") {
		problems = append(problems, "either SSO_ISSUER or both SSO_AUTHORIZATION_URL and SSO_TOKEN_URL are required")
	}
	if !strings.HasPrefix(c.CallbackPath, "/") || strings.ContainsAny(c.CallbackPath, "*?[") {
		problems = append(problems, fmt.Sprintf("SSO_CALLBACK_PATH must be a literal absolute path, got %q", c.CallbackPath))
	}
	if c.SessionTTL <= 0 {
		problems = append(problems, "SSO_SESSION_TTL must be positive")
	}
	if c.PendingStateTTL <= 0 {
		problems = append(problems, "SSO_PENDING_STATE_TTL must be positive")
	}
	if c.PendingStateCapacity <= 0 {
		problems = append(problems, "SSO_PENDING_STATE_CAPACITY must be positive")
	}
	if c.TokenExchangeTimeout <= 0 {
		problems = append(problems, "SSO_TOKEN_EXCHANGE_TIMEOUT must be positive")
	}
	switch c.AuthStyle {
	case AuthStyleAuto, AuthStyleHeader, AuthStyleParams:
	default:
		problems = append(problems, fmt.Sprintf("unknown SSO_TOKEN_AUTH_STYLE %q", c.AuthStyle))
	}
	switch c.Backend {
	case BackendMemory, BackendRedis:
	default:
		problems = append(problems, fmt.Sprintf("unknown STORE_BACKEND %q", c.Backend))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", errors.ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// GetRedirectURL returns the absolute callback URL registered with the
// authorization server.
func (c Config) GetRedirectURL() string {
	if c.RedirectURL != "" {
		return c.RedirectURL
	}
	return strings.TrimSuffix(c.GetBaseURL(), "/") + c.CallbackPath
}

// GetCookieSecure reports whether cookies must carry the Secure attribute.
func (c Config) GetCookieSecure() bool {
	return c.CookieSecure || strings.HasPrefix(c.GetBaseURL(), "https://")
}

package config

import "time"

type Security struct {
	SessionTTL           time.Duration `env:"SSO_SESSION_TTL" envDefault:"30m"`
	SessionSweepInterval time.Duration `env:"SSO_SESSION_SWEEP_INTERVAL" envDefault:"1m"`
	PendingStateTTL      time.Duration `env:"SSO_PENDING_STATE_TTL" envDefault:"5m"`
	PendingStateCapacity int           `env:"SSO_PENDING_STATE_CAPACITY" envDefault:"10000"`

	CookieName   string `env:"SSO_COOKIE_NAME" envDefault:"sso_session"`
	CookieSecret string `env:"SSO_COOKIE_SECRET"`
	CookieSecure bool   `env:"SSO_COOKIE_SECURE" envDefault:"false"`

	// PermitPatterns are matched in order before the catch-all
	// authenticated rule.
	PermitPatterns []string `env:"SSO_PERMIT_PATTERNS" envDefault:"/actuator/**,/error/**,/login/**,/logout,/oauth2/callback" envSeparator:","`
	LogoutRedirect string   `env:"SSO_LOGOUT_REDIRECT" envDefault:"/login"`
}

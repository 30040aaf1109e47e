package config

import "time"

// Token endpoint client authentication styles.
const (
	AuthStyleAuto   = "auto"
	AuthStyleHeader = "header"
	AuthStyleParams = "params"
)

// OAuth describes the authorization server this service is a client of.
// Either Issuer (OIDC discovery) or the explicit endpoint URLs must be set;
// explicit URLs win over discovered ones.
type OAuth struct {
	Issuer       string   `env:"SSO_ISSUER"`
	ClientID     string   `env:"SSO_CLIENT_ID"`
	ClientSecret string   `env:"SSO_CLIENT_SECRET"`
	AuthURL      string   `env:"SSO_AUTHORIZATION_URL"`
	TokenURL     string   `env:"SSO_TOKEN_URL"`
	UserInfoURL  string   `env:"SSO_USERINFO_URL"`
	JWKSURL      string   `env:"SSO_JWKS_URL"`
	RedirectURL  string   `env:"SSO_REDIRECT_URL"`
	CallbackPath string   `env:"SSO_CALLBACK_PATH" envDefault:"/oauth2/callback"`
	Scopes       []string `env:"SSO_SCOPES" envDefault:"openid,profile,email" envSeparator:","`

	// PrincipalClaim selects the claim used as the principal name. Empty
	// means preferred_username, name, email, sub in that order.
	PrincipalClaim string `env:"SSO_PRINCIPAL_CLAIM"`

	AuthStyle            string        `env:"SSO_TOKEN_AUTH_STYLE" envDefault:"auto"`
	TokenExchangeTimeout time.Duration `env:"SSO_TOKEN_EXCHANGE_TIMEOUT" envDefault:"10s"`
}

// UsesDiscovery reports whether endpoints must be fetched from the issuer's
// discovery document.
func (o OAuth) UsesDiscovery() bool {
	return o.AuthURL == "" || o.TokenURL == ""
}

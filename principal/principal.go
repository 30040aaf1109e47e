// Package principal holds the authenticated identity resolved from the
// authorization server and carries it through request contexts.
package principal

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/jrsteele09/go-sso-service/internal/errors"
)

// Authority prefixes
const (
	RoleUser    = "ROLE_USER"
	ScopePrefix = "SCOPE_"
	GroupPrefix = "GROUP_"
)

// defaultNameClaims is the fallback order used when no principal claim is configured
var defaultNameClaims = []string{"preferred_username", "name", "email", "sub"}

// Authority is a single granted authority. The JSON shape matches the
// {"authority": "..."} objects browsers of the original demo expect.
type Authority struct {
	Authority string `json:"authority"`
}

// Principal is an authenticated identity. It is immutable once built:
// accessors hand out copies.
type Principal struct {
	subject     string
	name        string
	issuer      string
	email       string
	groups      []string
	authorities []Authority
}

// Claims is the raw material a Principal is built from.
type Claims struct {
	Subject string
	Name    string
	Issuer  string
	Email   string
	Groups  []string
	Scopes  []string
}

// New builds a Principal. A subject is mandatory.
func New(c Claims) (*Principal, error) {
	if c.Subject == "" {
		return nil, fmt.Errorf("%w: principal has no subject", errors.ErrInvalidToken)
	}
	name := c.Name
	if name == "" {
		name = c.Subject
	}

	authorities := []Authority{{Authority: RoleUser}}
	seen := map[string]bool{RoleUser: true}
	grant := func(prefix, value string) {
		value = strings.TrimSpace(value)
		if value == "" || seen[prefix+value] {
			return
		}
		seen[prefix+value] = true
		authorities = append(authorities, Authority{Authority: prefix + value})
	}
	for _, s := range c.Scopes {
		grant(ScopePrefix, s)
	}
	for _, g := range c.Groups {
		grant(GroupPrefix, g)
	}

	return &Principal{
		subject:     c.Subject,
		name:        name,
		issuer:      c.Issuer,
		email:       c.Email,
		groups:      slices.Clone(c.Groups),
		authorities: authorities,
	}, nil
}

func (p *Principal) Subject() string { return p.subject }
func (p *Principal) Name() string    { return p.name }
func (p *Principal) Issuer() string  { return p.issuer }
func (p *Principal) Email() string   { return p.email }

func (p *Principal) Groups() []string {
	return slices.Clone(p.groups)
}

func (p *Principal) Authorities() []Authority {
	return slices.Clone(p.authorities)
}

// HasAuthority reports whether the principal was granted authority.
func (p *Principal) HasAuthority(authority string) bool {
	return slices.Contains(p.authorities, Authority{Authority: authority})
}

type principalJSON struct {
	Name          string      `json:"name"`
	Subject       string      `json:"subject"`
	Issuer        string      `json:"issuer,omitempty"`
	Email         string      `json:"email,omitempty"`
	Groups        []string    `json:"groups,omitempty"`
	Authorities   []Authority `json:"authorities"`
	Authenticated bool        `json:"authenticated"`
}

func (p *Principal) MarshalJSON() ([]byte, error) {
	return json.Marshal(principalJSON{
		Name:          p.name,
		Subject:       p.subject,
		Issuer:        p.issuer,
		Email:         p.email,
		Groups:        p.groups,
		Authorities:   p.authorities,
		Authenticated: true,
	})
}

// UnmarshalJSON restores a Principal written by MarshalJSON. It is only
// meant for session stores that serialise sessions.
func (p *Principal) UnmarshalJSON(data []byte) error {
	var raw principalJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Subject == "" {
		return fmt.Errorf("%w: principal has no subject", errors.ErrInvalidToken)
	}
	*p = Principal{
		subject:     raw.Subject,
		name:        raw.Name,
		issuer:      raw.Issuer,
		email:       raw.Email,
		groups:      raw.Groups,
		authorities: raw.Authorities,
	}
	return nil
}

// ResolveOptions controls how raw token claims map onto a Principal.
type ResolveOptions struct {
	// NameClaim is the claim used as the display name; empty means the
	// default fallback order.
	NameClaim string
	// DefaultIssuer is used when the claims carry no iss.
	DefaultIssuer string
	// Scopes are the granted scopes.
	Scopes []string
}

// FromClaims resolves a Principal from ID token and/or userinfo claims.
func FromClaims(claims map[string]any, opts ResolveOptions) (*Principal, error) {
	c := Claims{
		Subject: stringClaim(claims, "sub"),
		Issuer:  stringClaim(claims, "iss"),
		Email:   stringClaim(claims, "email"),
		Groups:  stringsClaim(claims, "groups"),
		Scopes:  opts.Scopes,
	}
	if c.Issuer == "" {
		c.Issuer = opts.DefaultIssuer
	}

	if opts.NameClaim != "" {
		c.Name = stringClaim(claims, opts.NameClaim)
	} else {
		for _, claim := range defaultNameClaims {
			if c.Name = stringClaim(claims, claim); c.Name != "" {
				break
			}
		}
	}
	return New(c)
}

func stringClaim(claims map[string]any, key string) string {
	switch v := claims[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return ""
}

func stringsClaim(claims map[string]any, key string) []string {
	switch v := claims[key].(type) {
	case string:
		return strings.Fields(v)
	case []string:
		return slices.Clone(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

package principal_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-sso-service/internal/errors"
	"github.com/jrsteele09/go-sso-service/principal"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresSubject(t *testing.T) {
	_, err := principal.New(principal.Claims{Name: "alice"})
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrInvalidToken))
}

func TestNewBuildsAuthorities(t *testing.T) {
	p, err := principal.New(principal.Claims{
		Subject: "user-1",
		Name:    "alice",
		Issuer:  "https://idp.example.com",
		Scopes:  []string{"openid", "profile", "openid"},
		Groups:  []string{"admins", " "},
	})
	require.NoError(t, err)

	require.Equal(t, "alice", p.Name())
	require.Equal(t, "user-1", p.Subject())
	require.Equal(t, []principal.Authority{
		{Authority: "ROLE_USER"},
		{Authority: "SCOPE_openid"},
		{Authority: "SCOPE_profile"},
		{Authority: "GROUP_admins"},
	}, p.Authorities())
	require.True(t, p.HasAuthority("GROUP_admins"))
	require.False(t, p.HasAuthority("ROLE_ADMIN"))
}

func TestPrincipalIsImmutable(t *testing.T) {
	groups := []string{"a"}
	p, err := principal.New(principal.Claims{Subject: "s", Groups: groups})
	require.NoError(t, err)

	groups[0] = "changed"
	got := p.Groups()
	got[0] = "also changed"
	auths := p.Authorities()
	auths[0].Authority = "ROLE_ADMIN"

	require.Equal(t, []string{"a"}, p.Groups())
	require.True(t, p.HasAuthority("ROLE_USER"))
	require.False(t, p.HasAuthority("ROLE_ADMIN"))
}

func TestNameDefaultsToSubject(t *testing.T) {
	p, err := principal.New(principal.Claims{Subject: "user-1"})
	require.NoError(t, err)
	require.Equal(t, "user-1", p.Name())
}

func TestJSONRoundTrip(t *testing.T) {
	p, err := principal.New(principal.Claims{Subject: "user-1", Name: "alice", Email: "alice@example.com", Scopes: []string{"openid"}})
	require.NoError(t, err)

	data, err := json.Marshal(p)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"name": "alice",
		"subject": "user-1",
		"email": "alice@example.com",
		"authorities": [{"authority": "ROLE_USER"}, {"authority": "SCOPE_openid"}],
		"authenticated": true
	}`, string(data))

	var restored principal.Principal
	require.NoError(t, json.Unmarshal(data, &restored))
	require.Equal(t, p.Name(), restored.Name())
	require.Equal(t, p.Authorities(), restored.Authorities())

	require.Error(t, json.Unmarshal([]byte(`{"name":"nobody"}`), &restored))
}

func TestFromClaims(t *testing.T) {
	claims := map[string]any{
		"sub":                "user-1",
		"iss":                "https://idp.example.com",
		"preferred_username": "alice",
		"name":               "Alice Liddell",
		"email":              "alice@example.com",
		"groups":             []any{"readers", 42},
	}

	t.Run("default name order", func(t *testing.T) {
		p, err := principal.FromClaims(claims, principal.ResolveOptions{})
		require.NoError(t, err)
		require.Equal(t, "alice", p.Name())
		require.Equal(t, "https://idp.example.com", p.Issuer())
		require.Equal(t, []string{"readers"}, p.Groups())
	})

	t.Run("configured claim", func(t *testing.T) {
		p, err := principal.FromClaims(claims, principal.ResolveOptions{NameClaim: "email"})
		require.NoError(t, err)
		require.Equal(t, "alice@example.com", p.Name())
	})

	t.Run("default issuer", func(t *testing.T) {
		p, err := principal.FromClaims(map[string]any{"sub": "user-2"}, principal.ResolveOptions{DefaultIssuer: "https://fallback"})
		require.NoError(t, err)
		require.Equal(t, "https://fallback", p.Issuer())
		require.Equal(t, "user-2", p.Name())
	})

	t.Run("missing subject", func(t *testing.T) {
		_, err := principal.FromClaims(map[string]any{"name": "ghost"}, principal.ResolveOptions{})
		require.Error(t, err)
	})
}

func TestContext(t *testing.T) {
	_, ok := principal.FromContext(context.Background())
	require.False(t, ok)

	_, ok = principal.FromContext(principal.NewContext(context.Background(), nil))
	require.False(t, ok)

	p, err := principal.New(principal.Claims{Subject: "user-1"})
	require.NoError(t, err)
	got, ok := principal.FromContext(principal.NewContext(context.Background(), p))
	require.True(t, ok)
	require.Same(t, p, got)
}

func TestGrantedScopes(t *testing.T) {
	requested := []string{"openid", "profile"}

	require.Equal(t, []string{"openid", "email"}, principal.GrantedScopes("openid email", "opaque", requested))
	require.Equal(t, requested, principal.GrantedScopes("", "opaque", requested))

	scopeToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"scope": "read write"}).SignedString([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []string{"read", "write"}, principal.GrantedScopes("", scopeToken, requested))

	scpToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"scp": []string{"api"}}).SignedString([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []string{"api"}, principal.GrantedScopes("", scpToken, requested))

	require.Equal(t, requested, principal.GrantedScopes("", "not.a.jwt", requested))
}

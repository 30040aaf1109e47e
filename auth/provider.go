package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-sso-service/internal/config"
	"github.com/jrsteele09/go-sso-service/internal/errors"
	"github.com/jrsteele09/go-sso-service/internal/telemetry"
	"github.com/jrsteele09/go-sso-service/principal"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// Upstream is the authorization server as seen by the session guard.
type Upstream interface {
	// AuthCodeURL builds the authorization endpoint URL for one redirect.
	AuthCodeURL(state, codeVerifier, nonce string) string
	// Exchange trades an authorization code for tokens. It makes exactly
	// one bounded call and never retries.
	Exchange(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error)
	// ResolvePrincipal turns a token response into a Principal.
	ResolvePrincipal(ctx context.Context, token *oauth2.Token, nonce string) (*principal.Principal, error)
}

var _ Upstream = (*OidcProvider)(nil)

// OidcProvider is an Upstream backed by go-oidc and x/oauth2. Endpoints come
// from OIDC discovery or from explicit configuration.
type OidcProvider struct {
	provider     *oidc.Provider
	oauth2Config *oauth2.Config
	verifier     *oidc.IDTokenVerifier // nil when no key set is known
	userInfoURL  string
	issuer       string
	nameClaim    string
	httpClient   *http.Client
	timeout      time.Duration
}

// NewOidcProvider builds the upstream client. With discovery this performs
// one request against the issuer.
func NewOidcProvider(ctx context.Context, c config.Config) (*OidcProvider, error) {
	return NewOidcProviderWithClient(ctx, c, &http.Client{
		Timeout:   c.TokenExchangeTimeout,
		Transport: telemetry.Transport(http.DefaultTransport),
	})
}

// NewOidcProviderWithClient is NewOidcProvider with a caller supplied HTTP
// client for every call to the authorization server.
func NewOidcProviderWithClient(ctx context.Context, c config.Config, httpClient *http.Client) (*OidcProvider, error) {
	ctx = oidc.ClientContext(ctx, httpClient)

	var provider *oidc.Provider
	var jwksURL string
	if c.UsesDiscovery() {
		discoveryCtx, cancel := context.WithTimeout(ctx, c.TokenExchangeTimeout)
		defer cancel()

		p, err := oidc.NewProvider(discoveryCtx, c.Issuer)
		if err != nil {
			return nil, fmt.Errorf("[auth NewOidcProvider] failed to discover OIDC endpoints: %w", err)
		}
		var discovered struct {
			JWKSURL string `json:"jwks_uri"`
		}
		if err := p.Claims(&discovered); err != nil {
			return nil, fmt.Errorf("[auth NewOidcProvider] failed to read provider claims: %w", err)
		}
		provider, jwksURL = p, discovered.JWKSURL
	} else {
		provider = (&oidc.ProviderConfig{
			IssuerURL:   c.Issuer,
			AuthURL:     c.AuthURL,
			TokenURL:    c.TokenURL,
			UserInfoURL: c.UserInfoURL,
			JWKSURL:     c.JWKSURL,
		}).NewProvider(ctx)
		jwksURL = c.JWKSURL
	}

	endpoint := provider.Endpoint()
	switch c.AuthStyle {
	case config.AuthStyleHeader:
		endpoint.AuthStyle = oauth2.AuthStyleInHeader
	case config.AuthStyleParams:
		endpoint.AuthStyle = oauth2.AuthStyleInParams
	default:
		endpoint.AuthStyle = oauth2.AuthStyleAutoDetect
	}

	p := &OidcProvider{
		provider: provider,
		oauth2Config: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  c.GetRedirectURL(),
			Scopes:       c.Scopes,
		},
		userInfoURL: provider.UserInfoEndpoint(),
		issuer:      c.Issuer,
		nameClaim:   c.PrincipalClaim,
		httpClient:  httpClient,
		timeout:     c.TokenExchangeTimeout,
	}
	if jwksURL != "" && c.Issuer != "" {
		p.verifier = provider.Verifier(&oidc.Config{ClientID: c.ClientID})
	}
	return p, nil
}

// AuthCodeURL returns the authorization endpoint URL with state, PKCE S256
// challenge and nonce.
func (p *OidcProvider) AuthCodeURL(state, codeVerifier, nonce string) string {
	return p.oauth2Config.AuthCodeURL(state,
		oauth2.S256ChallengeOption(codeVerifier),
		oidc.Nonce(nonce),
	)
}

// Exchange performs the authorization code grant.
func (p *OidcProvider) Exchange(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error) {
	ctx, cancel := p.upstreamContext(ctx)
	defer cancel()

	token, err := p.oauth2Config.Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, classifyExchangeError(err)
	}
	return token, nil
}

// ResolvePrincipal verifies the ID token when one is present and a key set
// is known, merges userinfo claims when an endpoint is known, and builds
// the Principal.
func (p *OidcProvider) ResolvePrincipal(ctx context.Context, token *oauth2.Token, nonce string) (*principal.Principal, error) {
	ctx, cancel := p.upstreamContext(ctx)
	defer cancel()
	logger := zerolog.Ctx(ctx)

	claims := map[string]any{}
	var idSubject string

	if rawIDToken, _ := token.Extra("id_token").(string); rawIDToken != "" && p.verifier != nil {
		idToken, err := p.verifier.Verify(ctx, rawIDToken)
		if err != nil {
			return nil, fmt.Errorf("%w: ID token verification failed: %w", errors.ErrInvalidToken, err)
		}
		if idToken.Nonce != nonce {
			return nil, fmt.Errorf("%w: %w", errors.ErrInvalidToken, errors.ErrNonceMismatch)
		}
		if err := idToken.Claims(&claims); err != nil {
			return nil, fmt.Errorf("%w: failed to extract ID token claims: %w", errors.ErrInvalidToken, err)
		}
		idSubject = idToken.Subject
	}

	if p.userInfoURL != "" {
		userInfo, err := p.provider.UserInfo(ctx, oauth2.StaticTokenSource(token))
		switch {
		case err != nil && idSubject == "":
			return nil, fmt.Errorf("%w: userinfo request failed: %w", errors.ErrUpstreamFailure, err)
		case err != nil:
			logger.Warn().Err(err).Msg("userinfo request failed, using ID token claims only")
		default:
			switch {
			case idSubject == "" || userInfo.Subject == idSubject:
			case userInfo.Subject == "":
				logger.Warn().Msg("userinfo response carries no subject, keeping the ID token subject")
			default:
				return nil, fmt.Errorf("%w: userinfo subject does not match ID token", errors.ErrInvalidToken)
			}
			var userInfoClaims map[string]any
			if err := userInfo.Claims(&userInfoClaims); err != nil {
				return nil, fmt.Errorf("%w: failed to decode userinfo: %w", errors.ErrUpstreamFailure, err)
			}
			mergeClaims(claims, userInfoClaims)
		}
	}

	if sub, _ := claims["sub"].(string); sub == "" {
		return nil, fmt.Errorf("%w: authorization server returned no subject", errors.ErrUpstreamFailure)
	}

	responseScope, _ := token.Extra("scope").(string)
	return principal.FromClaims(claims, principal.ResolveOptions{
		NameClaim:     p.nameClaim,
		DefaultIssuer: p.issuer,
		Scopes:        principal.GrantedScopes(responseScope, token.AccessToken, p.oauth2Config.Scopes),
	})
}

func (p *OidcProvider) upstreamContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	ctx = oidc.ClientContext(ctx, p.httpClient)
	return context.WithTimeout(ctx, p.timeout)
}

// mergeClaims copies userinfo claims over ID token claims, keeping the
// claims that bind the ID token to this client and issuer.
func mergeClaims(dst, src map[string]any) {
	for k, v := range src {
		switch k {
		case "iss", "aud", "nonce", "exp", "iat", "azp":
			if _, ok := dst[k]; ok {
				continue
			}
		}
		dst[k] = v
	}
}

// classifyExchangeError separates "the authorization server said no" from
// "the authorization server could not be reached".
func classifyExchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil && retrieveErr.Response.StatusCode < http.StatusInternalServerError {
		return fmt.Errorf("%w: token endpoint rejected the code: %w", errors.ErrAuthenticationFailed, err)
	}
	return fmt.Errorf("%w: token exchange failed: %w", errors.ErrUpstreamFailure, err)
}

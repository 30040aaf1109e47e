package auth

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/go-sso-service/internal/config"
	"github.com/jrsteele09/go-sso-service/internal/errors"
	"github.com/jrsteele09/go-sso-service/internal/metrics"
	"github.com/jrsteele09/go-sso-service/principal"
	"github.com/jrsteele09/go-sso-service/server/authflowrepo"
	"github.com/jrsteele09/go-sso-service/server/loginsession"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const (
	stateLength     = 32
	nonceLength     = 16
	sessionIDLength = 32
)

// Action is the outcome of evaluating one request.
type Action int

const (
	// ActionForward passes the request on, with the principal if one is known.
	ActionForward Action = iota
	// ActionRedirect sends the browser to the authorization server.
	ActionRedirect
	// ActionReject ends the request with an error response.
	ActionReject
)

func (a Action) String() string {
	switch a {
	case ActionForward:
		return metrics.DecisionForward
	case ActionRedirect:
		return metrics.DecisionRedirect
	default:
		return metrics.DecisionReject
	}
}

// Decision is what the guard wants done with a request.
type Decision struct {
	Action Action
	// Principal is set on Forward when a valid session exists.
	Principal *principal.Principal
	// RedirectURL is the authorization URL for ActionRedirect.
	RedirectURL string
	// ClearCookie asks for the (invalid or expired) session cookie to be
	// expired alongside the redirect.
	ClearCookie bool
	// Err is set on ActionReject.
	Err error
}

// SessionGuard decides, for every request, whether an authenticated session
// exists and drives the authorization code flow when it does not.
type SessionGuard struct {
	rules      Rules
	upstream   Upstream
	sessions   loginsession.Repo
	pending    authflowrepo.Repo
	cookies    *cookieJar
	sessionTTL time.Duration
	now        func() time.Time
}

// NewSessionGuard wires the guard from configuration.
func NewSessionGuard(c config.Config, upstream Upstream, sessions loginsession.Repo, pending authflowrepo.Repo) (*SessionGuard, error) {
	cookies, err := newCookieJar(c.CookieName, c.CookieSecret, c.GetCookieSecure(), c.SessionTTL, c.PendingStateTTL)
	if err != nil {
		return nil, errors.Wrapf(err, "[auth NewSessionGuard]")
	}
	// The callback is always reachable without a session, whatever the
	// configured permit list says
	rules := append(Rules{{Pattern: c.CallbackPath, Access: AccessPermit}}, RulesFromPatterns(c.PermitPatterns)...)
	return &SessionGuard{
		rules:      rules,
		upstream:   upstream,
		sessions:   sessions,
		pending:    pending,
		cookies:    cookies,
		sessionTTL: c.SessionTTL,
		now:        time.Now,
	}, nil
}

// Rules returns the guard's ordered rule table.
func (g *SessionGuard) Rules() Rules {
	return append(Rules(nil), g.rules...)
}

// Evaluate applies the rule table to r. Redirect decisions have already
// stored their pending auth state and bound it to the browser through a
// cookie written to w.
func (g *SessionGuard) Evaluate(w http.ResponseWriter, r *http.Request) Decision {
	d := g.evaluate(w, r)
	metrics.GuardDecisions.WithLabelValues(d.Action.String()).Inc()
	return d
}

func (g *SessionGuard) evaluate(w http.ResponseWriter, r *http.Request) Decision {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	p, cookiePresent, err := g.CurrentPrincipal(r)
	if err != nil {
		logger.Error().Err(err).Msg("session lookup failed")
		if g.rules.Match(r.URL.Path) == AccessPermit {
			return Decision{Action: ActionForward}
		}
		return Decision{Action: ActionReject, Err: err}
	}

	if g.rules.Match(r.URL.Path) == AccessPermit || p != nil {
		return Decision{Action: ActionForward, Principal: p}
	}

	authURL, err := g.BeginLogin(w, r, returnURLFor(r))
	if err != nil {
		logger.Error().Err(err).Msg("failed to start login")
		return Decision{Action: ActionReject, Err: err}
	}
	return Decision{Action: ActionRedirect, RedirectURL: authURL, ClearCookie: cookiePresent}
}

// CurrentPrincipal resolves the principal of the request's session. A
// missing, undecodable, unknown or expired session yields a nil principal
// and nil error; cookiePresent tells those cases apart from "no cookie".
// Only store failures are returned as errors.
func (g *SessionGuard) CurrentPrincipal(r *http.Request) (p *principal.Principal, cookiePresent bool, err error) {
	sessionID, cookiePresent := g.cookies.SessionID(r)
	if sessionID == "" {
		return nil, cookiePresent, nil
	}

	session, err := g.sessions.Get(r.Context(), sessionID)
	switch {
	case errors.Is(err, errors.ErrSessionNotFound), errors.Is(err, errors.ErrSessionExpired):
		return nil, true, nil
	case err != nil:
		return nil, true, errors.Wrapf(err, "%w: failed to read session", errors.ErrInternal)
	}
	if session.Expired(g.now()) {
		_ = g.sessions.Delete(r.Context(), sessionID)
		return nil, true, nil
	}
	return session.Principal, true, nil
}

// BeginLogin stores a fresh pending auth state, binds it to the browser
// with a cookie and returns the URL that starts the authorization code
// flow. returnURL must be a local path; any other value is replaced by "/".
func (g *SessionGuard) BeginLogin(w http.ResponseWriter, r *http.Request, returnURL string) (string, error) {
	ctx := r.Context()
	state, err := generateRandomString(stateLength)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errors.ErrInternal, err)
	}
	nonce, err := generateRandomString(nonceLength)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errors.ErrInternal, err)
	}
	flow := &authflowrepo.AuthFlowState{
		State:        state,
		CodeVerifier: oauth2.GenerateVerifier(),
		Nonce:        nonce,
		ReturnURL:    SafeReturnURL(returnURL),
		CreatedAt:    g.now(),
	}
	if err := g.pending.Upsert(ctx, state, flow); err != nil {
		return "", errors.Wrapf(err, "%w: failed to store pending auth state", errors.ErrInternal)
	}
	if err := g.cookies.BindState(w, r, state); err != nil {
		_ = g.pending.Delete(ctx, state)
		return "", errors.Wrapf(err, "%w", errors.ErrInternal)
	}

	zerolog.Ctx(ctx).Debug().Str("return_url", flow.ReturnURL).Msg("redirecting to authorization server")
	return g.upstream.AuthCodeURL(state, flow.CodeVerifier, nonce), nil
}

// HandleCallback completes the authorization code flow: it checks the state
// was issued to this browser, consumes it, exchanges the code, creates a session, sets the cookie and
// returns the local path to send the browser to.
func (g *SessionGuard) HandleCallback(w http.ResponseWriter, r *http.Request) (string, error) {
	returnURL, err := g.handleCallback(w, r)
	metrics.Logins.WithLabelValues(loginResult(err)).Inc()
	return returnURL, err
}

func (g *SessionGuard) handleCallback(w http.ResponseWriter, r *http.Request) (string, error) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	query := r.URL.Query()
	state := query.Get("state")
	code := query.Get("code")

	if errorParam := query.Get("error"); errorParam != "" {
		logger.Warn().
			Str("error", errorParam).
			Str("error_description", query.Get("error_description")).
			Msg("authorization server returned an error")
		if state != "" && g.cookies.StateBound(r, state) {
			g.cookies.ReleaseState(w, r, state)
			_ = g.pending.Delete(ctx, state)
		}
		return "", fmt.Errorf("%w: authorization server returned %q", errors.ErrAuthenticationFailed, errorParam)
	}

	if state == "" || code == "" {
		return "", fmt.Errorf("%w: missing code or state parameter", errors.ErrInvalidRequest)
	}

	// A state this browser was never sent out with is someone else's login
	if !g.cookies.StateBound(r, state) {
		return "", fmt.Errorf("%w: state was not issued to this browser", errors.ErrInvalidState)
	}
	g.cookies.ReleaseState(w, r, state)

	flow, err := g.pending.Consume(ctx, state)
	if err != nil {
		if errors.Is(err, errors.ErrStateNotFound) {
			return "", fmt.Errorf("%w: state is unknown, expired or already used", errors.ErrInvalidState)
		}
		return "", fmt.Errorf("%w: %w", errors.ErrInternal, err)
	}

	started := time.Now()
	token, err := g.upstream.Exchange(ctx, code, flow.CodeVerifier)
	metrics.TokenExchangeDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		return "", err
	}

	p, err := g.upstream.ResolvePrincipal(ctx, token, flow.Nonce)
	if err != nil {
		return "", err
	}

	// A new ID on every login, whatever the browser presented before
	if oldID, _ := g.cookies.SessionID(r); oldID != "" {
		_ = g.sessions.Delete(ctx, oldID)
	}

	sessionID, err := generateRandomString(sessionIDLength)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errors.ErrInternal, err)
	}
	now := g.now()
	rawIDToken, _ := token.Extra("id_token").(string)
	session := loginsession.Session{
		ID:          sessionID,
		Principal:   p,
		AccessToken: token.AccessToken,
		IDToken:     rawIDToken,
		CreatedAt:   now,
		ExpiresAt:   now.Add(g.sessionTTL),
	}
	if err := g.sessions.Upsert(ctx, session); err != nil {
		return "", errors.Wrapf(err, "%w: failed to create session", errors.ErrInternal)
	}
	if err := g.cookies.Save(w, r, sessionID); err != nil {
		_ = g.sessions.Delete(ctx, sessionID)
		return "", fmt.Errorf("%w: %w", errors.ErrInternal, err)
	}

	logger.Info().Str("subject", p.Subject()).Str("name", p.Name()).Msg("login succeeded")
	return SafeReturnURL(flow.ReturnURL), nil
}

// Logout destroys the request's session, if any, and expires the cookie.
func (g *SessionGuard) Logout(w http.ResponseWriter, r *http.Request) error {
	sessionID, present := g.cookies.SessionID(r)
	if present {
		g.cookies.Clear(w, r)
	}
	if sessionID == "" {
		return nil
	}
	if err := g.sessions.Delete(r.Context(), sessionID); err != nil {
		return errors.Wrapf(err, "%w: failed to delete session", errors.ErrInternal)
	}
	metrics.Logouts.Inc()
	return nil
}

// ClearCookie expires the session cookie.
func (g *SessionGuard) ClearCookie(w http.ResponseWriter, r *http.Request) {
	g.cookies.Clear(w, r)
}

// returnURLFor is where the browser goes after logging in. Only safe,
// idempotent requests are replayed; anything else lands on "/".
func returnURLFor(r *http.Request) string {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return "/"
	}
	return r.URL.RequestURI()
}

// SafeReturnURL returns u when it is a path on this service and "/"
// otherwise, so a login can never bounce the browser to another origin.
func SafeReturnURL(u string) string {
	if u == "" || !strings.HasPrefix(u, "/") || strings.HasPrefix(u, "//") || strings.HasPrefix(u, "/\\") {
		return "/"
	}
	parsed, err := url.Parse(u)
	if err != nil || parsed.IsAbs() || parsed.Host != "" {
		return "/"
	}
	return u
}

func loginResult(err error) string {
	switch {
	case err == nil:
		return metrics.LoginSuccess
	case errors.Is(err, errors.ErrInvalidState):
		return metrics.LoginInvalidState
	case errors.Is(err, errors.ErrInvalidRequest):
		return metrics.LoginInvalidRequest
	case errors.Is(err, errors.ErrAuthenticationFailed):
		return metrics.LoginRejected
	case errors.Is(err, errors.ErrUpstreamFailure):
		return metrics.LoginUpstreamError
	case errors.Is(err, errors.ErrInvalidToken):
		return metrics.LoginInvalidToken
	default:
		return metrics.LoginInternalError
	}
}

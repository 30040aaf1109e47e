package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/go-sso-service/auth"
	"github.com/jrsteele09/go-sso-service/internal/config"
	"github.com/jrsteele09/go-sso-service/server"
	"github.com/oauth2-proxy/mockoidc"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	oidc    *mockoidc.MockOIDC
	server  *server.Server
	ts      *httptest.Server
	browser *http.Client
	redis   *miniredis.Miniredis // nil for the memory backend
}

type fixtureOption func(*config.Config)

func withPermitPatterns(patterns ...string) fixtureOption {
	return func(c *config.Config) { c.PermitPatterns = patterns }
}

func withRedis() fixtureOption {
	return func(c *config.Config) { c.Backend = config.BackendRedis }
}

func newFixture(t *testing.T, opts ...fixtureOption) *testFixture {
	t.Helper()

	m, err := mockoidc.Run()
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown() })

	f := &testFixture{oidc: m}

	// The callback URL depends on the listener, so the handler is swapped
	// in once the server is built.
	var handler http.Handler = http.NotFoundHandler()
	f.ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(f.ts.Close)

	c := config.Defaults()
	c.Env = "TEST"
	c.BaseURL = f.ts.URL
	c.Issuer = m.Issuer()
	c.ClientID = m.Config().ClientID
	c.ClientSecret = m.Config().ClientSecret
	c.AuthStyle = config.AuthStyleParams
	c.CookieSecret = "server-test-secret"
	c.Version = "1.2.3"
	for _, opt := range opts {
		opt(&c)
	}
	require.NoError(t, c.Validate())

	var stores server.Stores
	if c.Backend == config.BackendRedis {
		f.redis = miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: f.redis.Addr()})
		stores = server.NewRedisStores(client, c)
	} else {
		stores, err = server.NewStores(context.Background(), c)
		require.NoError(t, err)
	}
	t.Cleanup(func() { _ = stores.Close() })

	upstream, err := auth.NewOidcProvider(context.Background(), c)
	require.NoError(t, err)

	f.server, err = server.New(c, upstream, stores)
	require.NoError(t, err)
	handler = f.server

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	f.browser = &http.Client{
		Jar:           jar,
		Timeout:       5 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	return f
}

func (f *testFixture) get(t *testing.T, target string) *http.Response {
	t.Helper()
	if strings.HasPrefix(target, "/") {
		target = f.ts.URL + target
	}
	resp, err := f.browser.Get(target)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (f *testFixture) post(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := f.browser.Post(f.ts.URL+path, "application/x-www-form-urlencoded", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, &v), string(body))
	return v
}

func location(t *testing.T, resp *http.Response) *url.URL {
	t.Helper()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	u, err := resp.Location()
	require.NoError(t, err)
	return u
}

// localRedirect returns the Location of a redirect within this service.
func localRedirect(t *testing.T, resp *http.Response) string {
	t.Helper()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	return resp.Header.Get("Location")
}

// login walks the browser through the authorization server and returns the
// callback response.
func (f *testFixture) login(t *testing.T, path string) *http.Response {
	t.Helper()
	authorize := location(t, f.get(t, path))
	require.True(t, strings.HasPrefix(authorize.String(), f.oidc.Issuer()), authorize.String())

	callback := location(t, f.get(t, authorize.String()))
	require.Equal(t, "/oauth2/callback", callback.Path)
	return f.get(t, callback.String())
}

type identity struct {
	Name          string `json:"name"`
	Subject       string `json:"subject"`
	Issuer        string `json:"issuer"`
	Authenticated bool   `json:"authenticated"`
	Authorities   []struct {
		Authority string `json:"authority"`
	} `json:"authorities"`
}

func TestEndToEndLogin(t *testing.T) {
	backends := map[string][]fixtureOption{
		"memory": nil,
		"redis":  {withRedis()},
	}
	for name, opts := range backends {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, opts...)
			f.oidc.QueueUser(&mockoidc.MockUser{
				Subject:           "alice-id",
				Email:             "alice@example.com",
				PreferredUsername: "alice",
			})

			// Unauthenticated GET / is sent to the authorization server
			resp := f.get(t, "/")
			authorize := location(t, resp)
			q := authorize.Query()
			require.Equal(t, f.ts.URL+"/oauth2/callback", q.Get("redirect_uri"))
			require.NotEmpty(t, q.Get("state"))
			require.Equal(t, "S256", q.Get("code_challenge_method"))

			// The authorization server sends the browser back with a code
			callback := location(t, f.get(t, authorize.String()))
			require.Equal(t, q.Get("state"), callback.Query().Get("state"))

			resp = f.get(t, callback.String())
			require.Equal(t, "/", localRedirect(t, resp))
			require.NotEmpty(t, resp.Header.Values("Set-Cookie"))

			// The session cookie now authenticates GET /
			resp = f.get(t, "/")
			require.Equal(t, http.StatusOK, resp.StatusCode)
			require.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
			got := decode[identity](t, resp)
			require.Equal(t, "alice", got.Name)
			require.Equal(t, "alice-id", got.Subject)
			require.Equal(t, f.oidc.Issuer(), got.Issuer)
			require.True(t, got.Authenticated)
			require.NotEmpty(t, got.Authorities)
			require.Equal(t, "ROLE_USER", got.Authorities[0].Authority)

			// Replaying the callback is rejected and leaves the session alone
			resp = f.get(t, callback.String())
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			body := decode[map[string]string](t, resp)
			require.Equal(t, auth.CodeInvalidState, body["error"])

			require.Equal(t, http.StatusOK, f.get(t, "/").StatusCode)
		})
	}
}

func TestLoginReturnsToOriginalPath(t *testing.T) {
	f := newFixture(t)

	resp := f.login(t, "/reports?year=2024")
	require.Equal(t, "/reports?year=2024", localRedirect(t, resp))

	// Authenticated but unrouted paths are plain 404s
	resp = f.get(t, "/reports?year=2024")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLoginEndpoint(t *testing.T) {
	f := newFixture(t)

	// Off-site return targets are dropped
	authorize := location(t, f.get(t, "/login?return_to=https://evil.example.com/"))
	callback := location(t, f.get(t, authorize.String()))
	require.Equal(t, "/", localRedirect(t, f.get(t, callback.String())))

	// With a session, /login goes straight to return_to
	require.Equal(t, "/somewhere", localRedirect(t, f.get(t, "/login?return_to=/somewhere")))
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	f.login(t, "/")
	require.Equal(t, http.StatusOK, f.get(t, "/").StatusCode)

	// A plain link cannot end the session
	resp := f.get(t, "/logout")
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	require.Equal(t, http.MethodPost, resp.Header.Get("Allow"))
	require.Equal(t, http.StatusOK, f.get(t, "/").StatusCode)

	resp = f.post(t, "/logout")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/login", resp.Header.Get("Location"))

	resp = f.get(t, "/")
	require.True(t, strings.HasPrefix(location(t, resp).String(), f.oidc.Issuer()), "logged out sessions must log in again")

	// Logging out without a session is harmless
	resp = f.post(t, "/logout")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestCallbackFromAnotherBrowserIsRejected(t *testing.T) {
	f := newFixture(t)

	// One browser starts a login and gets a code from the authorization server
	authorize := location(t, f.get(t, "/"))
	callback := location(t, f.get(t, authorize.String()))

	// A second browser, without the first one's cookies, follows the link
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	victim := &http.Client{
		Jar:           jar,
		Timeout:       5 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	resp, err := victim.Get(callback.String())
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Empty(t, resp.Header.Values("Set-Cookie"))
	body := decode[map[string]string](t, resp)
	require.Equal(t, auth.CodeInvalidState, body["error"])

	// The browser that started the login can still finish it
	require.Equal(t, "/", localRedirect(t, f.get(t, callback.String())))
}

func TestCustomCallbackPathCompletesLogin(t *testing.T) {
	// The callback is left out of the permit list on purpose
	f := newFixture(t, func(c *config.Config) {
		c.CallbackPath = "/auth/callback"
		c.PermitPatterns = []string{"/actuator/**"}
	})

	authorize := location(t, f.get(t, "/"))
	require.Equal(t, f.ts.URL+"/auth/callback", authorize.Query().Get("redirect_uri"))

	callback := location(t, f.get(t, authorize.String()))
	require.Equal(t, "/auth/callback", callback.Path)
	require.Equal(t, "/", localRedirect(t, f.get(t, callback.String())))
	require.Equal(t, http.StatusOK, f.get(t, "/").StatusCode)
}

func TestCallbackRejections(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		query  string
		status int
		code   string
	}{
		{"unknown state", "?state=forged&code=abc", http.StatusUnauthorized, auth.CodeInvalidState},
		{"missing code", "?state=forged", http.StatusBadRequest, auth.CodeInvalidRequest},
		{"authorization server error", "?error=access_denied&error_description=secret+detail", http.StatusUnauthorized, auth.CodeAccessDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.get(t, "/oauth2/callback"+tt.query)
			require.Equal(t, tt.status, resp.StatusCode)
			require.Empty(t, resp.Header.Values("Set-Cookie"))

			body := decode[map[string]string](t, resp)
			require.Equal(t, tt.code, body["error"])
			require.NotEmpty(t, body["error_description"])
			require.NotContains(t, body["error_description"], "secret detail")
		})
	}
}

func TestPermittedRoutesNeedNoSession(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/actuator", "/actuator/health", "/actuator/info", "/actuator/prometheus", "/error"} {
		resp := f.get(t, path)
		require.NotEqual(t, http.StatusFound, resp.StatusCode, path)
	}
}

func TestActuator(t *testing.T) {
	f := newFixture(t)

	links := decode[map[string]map[string]map[string]string](t, f.get(t, "/actuator"))
	require.Equal(t, f.ts.URL+"/actuator/health", links["_links"]["health"]["href"])

	resp := f.get(t, "/actuator/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	health := decode[map[string]any](t, resp)
	require.Equal(t, "UP", health["status"])

	info := decode[struct {
		App map[string]string `json:"app"`
	}](t, f.get(t, "/actuator/info"))
	require.Equal(t, "1.2.3", info.App["version"])
	require.Equal(t, "TEST", info.App["environment"])

	// Drive one guard decision so the counter is exported
	f.get(t, "/")
	resp = f.get(t, "/actuator/prometheus")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "sso_guard_decisions_total")
}

func TestHealthReportsStoreOutage(t *testing.T) {
	f := newFixture(t, withRedis())
	f.redis.Close()

	resp := f.get(t, "/actuator/health")
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	health := decode[struct {
		Status     string                       `json:"status"`
		Components map[string]map[string]string `json:"components"`
	}](t, resp)
	require.Equal(t, "DOWN", health.Status)
	require.Equal(t, "DOWN", health.Components["sessionStore"]["status"])
}

func TestIdentityWithoutPrincipalFailsClosed(t *testing.T) {
	// Misconfigured rules let "/" through without a session
	f := newFixture(t, withPermitPatterns("/**"))

	resp := f.get(t, "/")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	require.Equal(t, auth.CodeUnauthenticated, body["error"])
}

func TestErrorEndpoint(t *testing.T) {
	f := newFixture(t)

	resp := f.get(t, "/error")
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	require.Equal(t, auth.CodeServerError, body["error"])
}

func TestStandardHeaders(t *testing.T) {
	f := newFixture(t)

	resp := f.get(t, "/actuator/info")
	require.NotEmpty(t, resp.Header.Get("X-Request-Id"))
	require.Equal(t, "SAMEORIGIN", resp.Header.Get("X-Frame-Options"))
	require.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	req, err := http.NewRequest(http.MethodGet, f.ts.URL+"/actuator/info", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "caller-supplied")
	resp, err = f.browser.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "caller-supplied", resp.Header.Get("X-Request-Id"))
}

func TestRecoverMiddleware(t *testing.T) {
	f := newFixture(t)

	h := server.ChainMiddleware(func(http.ResponseWriter, *http.Request) { panic("boom") }, f.server.RecoverMiddleware)
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), auth.CodeServerError)
}

func TestNewStoresRejectsUnknownBackend(t *testing.T) {
	c := config.Defaults()
	c.Backend = "etcd"
	_, err := server.NewStores(context.Background(), c)
	require.Error(t, err)
}

func TestNewStoresRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	c := config.Defaults()
	c.Backend = config.BackendRedis
	c.RedisAddr = mr.Addr()

	stores, err := server.NewStores(context.Background(), c)
	require.NoError(t, err)
	for name, err := range stores.Ping(context.Background()) {
		require.NoError(t, err, name)
	}
	require.NoError(t, stores.Close())

	c.RedisAddr = "127.0.0.1:1"
	_, err = server.NewStores(context.Background(), c)
	require.Error(t, err)
}

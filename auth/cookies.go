package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/sessions"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/hkdf"
)

const (
	// sessionIDKey is the cookie session value holding the server-side session ID
	sessionIDKey = "sid"
	// stateHashesKey holds the hashes of the states this browser was sent
	// to the authorization server with, space separated, newest last
	stateHashesKey = "states"
	// maxBoundStates bounds the logins one browser can have in flight
	maxBoundStates = 5
)

// cookieJar reads and writes the session cookie and the login state cookie.
// Both are signed and encrypted with keys derived from one secret. The
// session cookie carries only the opaque session ID; the state cookie
// carries hashes of the pending states started by this browser.
type cookieJar struct {
	store     *sessions.CookieStore
	name      string
	stateName string
	stateTTL  time.Duration
}

func newCookieJar(name, secret string, secure bool, ttl, stateTTL time.Duration) (*cookieJar, error) {
	if secret == "" {
		log.Warn().Msg("no cookie secret configured, using a random one: sessions will not survive a restart")
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return nil, fmt.Errorf("failed to generate cookie secret: %w", err)
		}
		secret = string(b)
	}

	hashKey, blockKey, err := deriveCookieKeys([]byte(secret))
	if err != nil {
		return nil, err
	}

	store := sessions.NewCookieStore(hashKey, blockKey)
	store.MaxAge(int(ttl.Seconds()))
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = secure
	store.Options.SameSite = http.SameSiteLaxMode

	return &cookieJar{store: store, name: name, stateName: name + "_state", stateTTL: stateTTL}, nil
}

// deriveCookieKeys expands secret into a 64 byte HMAC key and a 32 byte
// AES key.
func deriveCookieKeys(secret []byte) (hashKey, blockKey []byte, err error) {
	kdf := hkdf.New(sha256.New, secret, nil, []byte("sso-session-cookie"))
	hashKey = make([]byte, 64)
	blockKey = make([]byte, 32)
	if _, err := io.ReadFull(kdf, hashKey); err != nil {
		return nil, nil, fmt.Errorf("failed to derive cookie hash key: %w", err)
	}
	if _, err := io.ReadFull(kdf, blockKey); err != nil {
		return nil, nil, fmt.Errorf("failed to derive cookie block key: %w", err)
	}
	return hashKey, blockKey, nil
}

// SessionID returns the session ID carried by the request cookie. present
// reports whether a cookie was sent at all, valid or not.
func (j *cookieJar) SessionID(r *http.Request) (sessionID string, present bool) {
	if _, err := r.Cookie(j.name); err != nil {
		return "", false
	}
	sess, err := j.store.New(r, j.name)
	if err != nil {
		return "", true
	}
	sessionID, _ = sess.Values[sessionIDKey].(string)
	return sessionID, true
}

// Save writes a cookie carrying sessionID.
func (j *cookieJar) Save(w http.ResponseWriter, r *http.Request, sessionID string) error {
	sess, _ := j.store.New(r, j.name) // a stale cookie only means a fresh session
	sess.Values = map[interface{}]interface{}{sessionIDKey: sessionID}
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("failed to save session cookie: %w", err)
	}
	return nil
}

// Clear expires the cookie in the browser.
func (j *cookieJar) Clear(w http.ResponseWriter, r *http.Request) {
	sess, _ := j.store.New(r, j.name)
	sess.Options.MaxAge = -1
	sess.Values = map[interface{}]interface{}{}
	if err := sess.Save(r, w); err != nil {
		log.Warn().Err(err).Msg("failed to clear session cookie")
	}
}

// BindState remembers in the browser that it was sent to the authorization
// server with state.
func (j *cookieJar) BindState(w http.ResponseWriter, r *http.Request, state string) error {
	hashes := append(j.stateHashes(r), hashState(state))
	if len(hashes) > maxBoundStates {
		hashes = hashes[len(hashes)-maxBoundStates:]
	}
	return j.saveStateHashes(w, r, hashes)
}

// StateBound reports whether the request's browser was sent out with state.
func (j *cookieJar) StateBound(r *http.Request, state string) bool {
	return slices.Contains(j.stateHashes(r), hashState(state))
}

// ReleaseState forgets state, expiring the cookie once no login is left in
// flight.
func (j *cookieJar) ReleaseState(w http.ResponseWriter, r *http.Request, state string) {
	hash := hashState(state)
	hashes := slices.DeleteFunc(j.stateHashes(r), func(h string) bool { return h == hash })
	if err := j.saveStateHashes(w, r, hashes); err != nil {
		log.Warn().Err(err).Msg("failed to update login state cookie")
	}
}

func (j *cookieJar) stateHashes(r *http.Request) []string {
	if _, err := r.Cookie(j.stateName); err != nil {
		return nil
	}
	sess, err := j.store.New(r, j.stateName)
	if err != nil {
		return nil
	}
	joined, _ := sess.Values[stateHashesKey].(string)
	return strings.Fields(joined)
}

func (j *cookieJar) saveStateHashes(w http.ResponseWriter, r *http.Request, hashes []string) error {
	sess, _ := j.store.New(r, j.stateName)
	sess.Options.MaxAge = int(j.stateTTL.Seconds())
	if len(hashes) == 0 {
		sess.Options.MaxAge = -1
	}
	sess.Values = map[interface{}]interface{}{stateHashesKey: strings.Join(hashes, " ")}
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("failed to save login state cookie: %w", err)
	}
	return nil
}

func hashState(state string) string {
	sum := sha256.Sum256([]byte(state))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

package loginsession

import (
	"context"
	"time"

	"github.com/jrsteele09/go-sso-service/principal"
)

type Session struct {
	// Core identity
	ID        string               `json:"id"`
	Principal *principal.Principal `json:"principal"`

	// Tokens as returned by the authorization server. They are kept for
	// the lifetime of the session only and never refreshed.
	AccessToken string `json:"access_token,omitempty"`
	IDToken     string `json:"id_token,omitempty"`

	// Session management
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer usable at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Repo stores authenticated sessions. Get never returns an expired session:
// it deletes it and reports ErrSessionExpired instead.
type Repo interface {
	Upsert(ctx context.Context, session Session) error
	Get(ctx context.Context, sessionID string) (Session, error)
	Delete(ctx context.Context, sessionID string) error
	Ping(ctx context.Context) error
	Close() error
}

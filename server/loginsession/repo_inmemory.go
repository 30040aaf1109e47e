package loginsession

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/go-sso-service/internal/errors"
	"github.com/jrsteele09/go-sso-service/internal/metrics"
	"github.com/rs/zerolog/log"
)

var _ Repo = (*InMemoryLoginSessionRepo)(nil)

// InMemoryLoginSessionRepo is an in-memory implementation of Repo
type InMemoryLoginSessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]Session // sessionID -> Session

	now         func() time.Time
	stopCleanup chan struct{}
	cleanupDone chan struct{}
	closeOnce   sync.Once
}

// NewInMemoryLoginSessionRepo creates a new in-memory login session repository
// and starts a goroutine that drops expired sessions every sweepInterval.
func NewInMemoryLoginSessionRepo(sweepInterval time.Duration) *InMemoryLoginSessionRepo {
	r := &InMemoryLoginSessionRepo{
		sessions:    make(map[string]Session),
		now:         time.Now,
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
	go r.cleanupLoop(sweepInterval)
	return r
}

// Upsert creates or updates a login session
func (r *InMemoryLoginSessionRepo) Upsert(_ context.Context, session Session) error {
	if session.ID == "" {
		return fmt.Errorf("sessionID is required")
	}
	if session.Principal == nil {
		return fmt.Errorf("principal is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[session.ID] = session
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	return nil
}

// Get retrieves a live login session by ID
func (r *InMemoryLoginSessionRepo) Get(ctx context.Context, sessionID string) (Session, error) {
	if sessionID == "" {
		return Session{}, errors.ErrSessionNotFound
	}

	r.mu.RLock()
	session, ok := r.sessions[sessionID]
	r.mu.RUnlock()

	if !ok {
		return Session{}, errors.ErrSessionNotFound
	}
	if session.Expired(r.now()) {
		_ = r.Delete(ctx, sessionID)
		return Session{}, errors.ErrSessionExpired
	}
	return session, nil
}

// Delete removes a login session
func (r *InMemoryLoginSessionRepo) Delete(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID) // Already doesn't exist, no error
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	return nil
}

// Len returns the number of stored sessions, expired or not
func (r *InMemoryLoginSessionRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *InMemoryLoginSessionRepo) Ping(context.Context) error { return nil }

// Close stops the cleanup goroutine and waits for it to finish
func (r *InMemoryLoginSessionRepo) Close() error {
	r.closeOnce.Do(func() { close(r.stopCleanup) })
	<-r.cleanupDone
	return nil
}

func (r *InMemoryLoginSessionRepo) cleanupLoop(interval time.Duration) {
	defer close(r.cleanupDone)
	if interval <= 0 {
		<-r.stopCleanup
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCleanup:
			return
		case <-ticker.C:
			r.deleteExpired()
		}
	}
}

func (r *InMemoryLoginSessionRepo) deleteExpired() {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, session := range r.sessions {
		if session.Expired(now) {
			delete(r.sessions, id)
			removed++
		}
	}
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	if removed > 0 {
		log.Debug().Int("removed", removed).Msg("expired sessions swept")
	}
}

package authflowrepo

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	ssoerrors "github.com/jrsteele09/go-sso-service/internal/errors"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface.
// It is bounded both in size and in time: the oldest entries are evicted once
// capacity is reached and every entry expires after ttl.
type InMemoryRepo struct {
	states *expirable.LRU[string, AuthFlowState]
}

// NewInMemoryRepo creates a new in-memory auth flow state repository
func NewInMemoryRepo(capacity int, ttl time.Duration) *InMemoryRepo {
	return &InMemoryRepo{
		states: expirable.NewLRU[string, AuthFlowState](capacity, nil, ttl),
	}
}

// Upsert stores or updates an auth flow state
func (r *InMemoryRepo) Upsert(_ context.Context, state string, authState *AuthFlowState) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if authState == nil {
		return errors.New("authState cannot be nil")
	}

	// Stored by value so callers cannot modify it afterwards
	r.states.Add(state, *authState)
	return nil
}

// Get retrieves an auth flow state without consuming it
func (r *InMemoryRepo) Get(_ context.Context, state string) (*AuthFlowState, error) {
	if state == "" {
		return nil, ssoerrors.ErrStateNotFound
	}

	authState, ok := r.states.Peek(state)
	if !ok {
		return nil, ssoerrors.ErrStateNotFound
	}
	return &authState, nil
}

// Consume retrieves and removes an auth flow state
func (r *InMemoryRepo) Consume(_ context.Context, state string) (*AuthFlowState, error) {
	if state == "" {
		return nil, ssoerrors.ErrStateNotFound
	}

	authState, ok := r.states.Peek(state)
	if !ok {
		return nil, ssoerrors.ErrStateNotFound
	}
	// Only the caller whose Remove succeeds owns the entry
	if !r.states.Remove(state) {
		return nil, ssoerrors.ErrStateNotFound
	}
	return &authState, nil
}

// Delete removes an auth flow state
func (r *InMemoryRepo) Delete(_ context.Context, state string) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	r.states.Remove(state)
	return nil
}

// Len returns the number of live entries
func (r *InMemoryRepo) Len() int {
	return r.states.Len()
}

func (r *InMemoryRepo) Ping(context.Context) error { return nil }

func (r *InMemoryRepo) Close() error {
	r.states.Purge()
	return nil
}

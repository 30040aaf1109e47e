package loginsession

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jrsteele09/go-sso-service/internal/errors"
	"github.com/redis/go-redis/v9"
)

var _ Repo = (*RedisLoginSessionRepo)(nil)

const keyTypeSession = "session:"

// RedisLoginSessionRepo stores sessions as JSON with a Redis TTL matching
// the session expiry.
type RedisLoginSessionRepo struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisLoginSessionRepo creates a Redis backed repository. The client is
// owned by the caller, Close leaves it open.
func NewRedisLoginSessionRepo(client redis.UniversalClient, keyPrefix string) *RedisLoginSessionRepo {
	return &RedisLoginSessionRepo{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (r *RedisLoginSessionRepo) key(sessionID string) string {
	return r.keyPrefix + keyTypeSession + sessionID
}

func (r *RedisLoginSessionRepo) Upsert(ctx context.Context, session Session) error {
	if session.ID == "" {
		return fmt.Errorf("sessionID is required")
	}
	if session.Principal == nil {
		return fmt.Errorf("principal is required")
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return errors.ErrSessionExpired
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.client.Set(ctx, r.key(session.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (r *RedisLoginSessionRepo) Get(ctx context.Context, sessionID string) (Session, error) {
	if sessionID == "" {
		return Session{}, errors.ErrSessionNotFound
	}

	data, err := r.client.Get(ctx, r.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, errors.ErrSessionNotFound
		}
		return Session{}, fmt.Errorf("failed to get session: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return Session{}, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if session.Expired(time.Now()) {
		_ = r.Delete(ctx, sessionID)
		return Session{}, errors.ErrSessionExpired
	}
	return session, nil
}

func (r *RedisLoginSessionRepo) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID is required")
	}
	if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *RedisLoginSessionRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisLoginSessionRepo) Close() error { return nil }

package authflowrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	ssoerrors "github.com/jrsteele09/go-sso-service/internal/errors"
	"github.com/redis/go-redis/v9"
)

var _ Repo = (*RedisRepo)(nil)

const keyTypePending = "pending:"

// RedisRepo keeps pending auth states in Redis so that several service
// replicas can complete each other's flows. Consume relies on GETDEL (Redis
// 6.2+) for single use.
type RedisRepo struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// NewRedisRepo creates a Redis backed repository. The client is owned by the
// caller, Close leaves it open.
func NewRedisRepo(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisRepo {
	return &RedisRepo{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

func (r *RedisRepo) key(state string) string {
	return r.keyPrefix + keyTypePending + state
}

func (r *RedisRepo) Upsert(ctx context.Context, state string, authState *AuthFlowState) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if authState == nil {
		return errors.New("authState cannot be nil")
	}

	data, err := json.Marshal(authState)
	if err != nil {
		return fmt.Errorf("failed to marshal auth flow state: %w", err)
	}
	if err := r.client.Set(ctx, r.key(state), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store auth flow state: %w", err)
	}
	return nil
}

func (r *RedisRepo) Get(ctx context.Context, state string) (*AuthFlowState, error) {
	if state == "" {
		return nil, ssoerrors.ErrStateNotFound
	}
	data, err := r.client.Get(ctx, r.key(state)).Bytes()
	return r.decode(data, err)
}

func (r *RedisRepo) Consume(ctx context.Context, state string) (*AuthFlowState, error) {
	if state == "" {
		return nil, ssoerrors.ErrStateNotFound
	}
	data, err := r.client.GetDel(ctx, r.key(state)).Bytes()
	return r.decode(data, err)
}

func (r *RedisRepo) decode(data []byte, err error) (*AuthFlowState, error) {
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ssoerrors.ErrStateNotFound
		}
		return nil, fmt.Errorf("failed to get auth flow state: %w", err)
	}

	var authState AuthFlowState
	if err := json.Unmarshal(data, &authState); err != nil {
		return nil, fmt.Errorf("failed to unmarshal auth flow state: %w", err)
	}

	// TTL should handle this, but double-check
	if time.Since(authState.CreatedAt) > r.ttl {
		return nil, ssoerrors.ErrStateNotFound
	}
	return &authState, nil
}

func (r *RedisRepo) Delete(ctx context.Context, state string) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if err := r.client.Del(ctx, r.key(state)).Err(); err != nil {
		return fmt.Errorf("failed to delete auth flow state: %w", err)
	}
	return nil
}

func (r *RedisRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepo) Close() error { return nil }

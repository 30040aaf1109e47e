package server

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/go-sso-service/internal/config"
	"github.com/jrsteele09/go-sso-service/internal/errors"
	"github.com/jrsteele09/go-sso-service/server/authflowrepo"
	"github.com/jrsteele09/go-sso-service/server/loginsession"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const redisConnectTimeout = 5 * time.Second

// Stores are the two pieces of shared mutable state: authenticated sessions
// and pending auth states.
type Stores struct {
	Sessions loginsession.Repo
	Pending  authflowrepo.Repo

	client redis.UniversalClient // nil for the memory backend
}

// NewStores builds the stores for the configured backend. The Redis backend
// fails fast when the server cannot be reached.
func NewStores(ctx context.Context, c config.Config) (Stores, error) {
	switch c.Backend {
	case config.BackendMemory:
		return Stores{
			Sessions: loginsession.NewInMemoryLoginSessionRepo(c.SessionSweepInterval),
			Pending:  authflowrepo.NewInMemoryRepo(c.PendingStateCapacity, c.PendingStateTTL),
		}, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     c.RedisAddr,
			Username: c.RedisUsername,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, redisConnectTimeout)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return Stores{}, fmt.Errorf("[server NewStores] failed to connect to redis at %s: %w", c.RedisAddr, err)
		}
		log.Info().Str("addr", c.RedisAddr).Msg("using redis session store")
		return NewRedisStores(client, c), nil

	default:
		return Stores{}, fmt.Errorf("%w: unknown store backend %q", errors.ErrInvalidConfig, c.Backend)
	}
}

// NewRedisStores builds both stores on an existing client. Close closes the
// client.
func NewRedisStores(client redis.UniversalClient, c config.Config) Stores {
	return Stores{
		Sessions: loginsession.NewRedisLoginSessionRepo(client, c.RedisKeyPrefix),
		Pending:  authflowrepo.NewRedisRepo(client, c.RedisKeyPrefix, c.PendingStateTTL),
		client:   client,
	}
}

// Ping checks every store and returns the outcome per component.
func (s Stores) Ping(ctx context.Context) map[string]error {
	return map[string]error{
		"sessionStore": s.Sessions.Ping(ctx),
		"pendingStore": s.Pending.Ping(ctx),
	}
}

// Close releases both stores and the shared Redis client, if any.
func (s Stores) Close() error {
	var errs []error
	if s.Sessions != nil {
		errs = append(errs, s.Sessions.Close())
	}
	if s.Pending != nil {
		errs = append(errs, s.Pending.Close())
	}
	if s.client != nil {
		errs = append(errs, s.client.Close())
	}
	return errors.Join(errs...)
}

// Package redisstore implements quota.Store against Redis using the same
// single-round-trip Lua script style as breaker/store/redisstore.
package redisstore

import (
	"context"
	"time"

	"github.com/ceyewan/distbreaker/clog"
	"github.com/ceyewan/distbreaker/connector"
	"github.com/ceyewan/distbreaker/quota"
	"github.com/ceyewan/distbreaker/xerrors"

	"github.com/redis/go-redis/v9"
)

var _ quota.Store = (*Store)(nil)

// Store is a quota.Store backed by a Redis connection obtained from a
// connector.RedisConnector. It does not own the connector's lifecycle.
type Store struct {
	client *redis.Client
	logger clog.Logger
}

// New wraps conn's client as a quota.Store. conn must already be connected.
func New(conn connector.RedisConnector, logger clog.Logger) (*Store, error) {
	if conn == nil {
		return nil, xerrors.New("quota/redisstore: connector is nil")
	}
	if logger == nil {
		logger = clog.Discard()
	}
	client := conn.GetClient()
	if client == nil {
		return nil, xerrors.New("quota/redisstore: connector has no client; call Connect first")
	}
	return &Store{client: client, logger: logger.WithNamespace("quota-redisstore")}, nil
}

func (s *Store) IncrementAndGet(ctx context.Context, key string, period time.Duration) (int64, error) {
	seconds := int64(period / time.Second)
	if seconds <= 0 {
		seconds = 1
	}

	result, err := incrementScript.Run(ctx, s.client, []string{quotaKey(key)}, seconds).Result()
	if err != nil {
		return 0, xerrors.Wrap(err, "quota/redisstore: increment")
	}
	n, ok := result.(int64)
	if !ok {
		return 0, xerrors.New("quota/redisstore: unexpected increment result type")
	}
	return n, nil
}

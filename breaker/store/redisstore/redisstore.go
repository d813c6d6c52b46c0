// Package redisstore implements store.Store against Redis, using Lua
// scripts for every operation that must be atomic across a single logical
// key, in the same style as the connector pack's rate limiter and
// distributed lock: one round trip per call via redis.Script.
package redisstore

import (
	"context"
	"strconv"
	"time"

	"github.com/ceyewan/distbreaker/breaker/store"
	"github.com/ceyewan/distbreaker/clog"
	"github.com/ceyewan/distbreaker/connector"
	"github.com/ceyewan/distbreaker/xerrors"

	"github.com/redis/go-redis/v9"
)

var _ store.Store = (*Store)(nil)

// Store is a store.Store backed by a Redis connection obtained from a
// connector.RedisConnector. It does not own the connector's lifecycle:
// callers created the connector and are responsible for Close().
type Store struct {
	client *redis.Client
	logger clog.Logger
}

// New wraps conn's client as a store.Store. conn must already be connected.
func New(conn connector.RedisConnector, logger clog.Logger) (*Store, error) {
	if conn == nil {
		return nil, xerrors.New("redisstore: connector is nil")
	}
	if logger == nil {
		logger = clog.Discard()
	}
	client := conn.GetClient()
	if client == nil {
		return nil, xerrors.New("redisstore: connector has no client; call Connect first")
	}
	return &Store{client: client, logger: logger.WithNamespace("redisstore")}, nil
}

func (s *Store) Record(ctx context.Context, key string, success bool, timestamp int64, window, bucket time.Duration) error {
	epoch := store.Align(timestamp, bucket)
	field := "f"
	if success {
		field = "s"
	}
	ttl := int64((window + bucket) / time.Second)

	if err := recordScript.Run(ctx, s.client, []string{bucketKey(key, epoch)}, field, ttl).Err(); err != nil {
		return xerrors.Wrap(err, "redisstore: record")
	}
	return nil
}

func (s *Store) ReadWindow(ctx context.Context, key string, now int64, window, bucket time.Duration) (int64, int64, error) {
	lo := store.Align(now-int64(window/time.Second), bucket)
	hi := store.Align(now, bucket)

	step := int64(bucket / time.Second)
	if step <= 0 {
		step = 1
	}

	keys := make([]string, 0, (hi-lo)/step+1)
	for epoch := lo; epoch <= hi; epoch += step {
		keys = append(keys, bucketKey(key, epoch))
	}

	result, err := readWindowScript.Run(ctx, s.client, keys).Result()
	if err != nil {
		return 0, 0, xerrors.Wrap(err, "redisstore: read window")
	}

	vals, ok := result.([]interface{})
	if !ok || len(vals) != 2 {
		return 0, 0, xerrors.New("redisstore: unexpected read window result shape")
	}
	successes, err := toInt64(vals[0])
	if err != nil {
		return 0, 0, xerrors.Wrap(err, "redisstore: parse successes")
	}
	failures, err := toInt64(vals[1])
	if err != nil {
		return 0, 0, xerrors.Wrap(err, "redisstore: parse failures")
	}
	return successes, failures, nil
}

func (s *Store) ReadLatch(ctx context.Context, key string) (store.State, bool, error) {
	val, err := s.client.Get(ctx, latchKey(key)).Result()
	if err == redis.Nil {
		return store.StateClosed, false, nil
	}
	if err != nil {
		return store.StateClosed, false, xerrors.Wrap(err, "redisstore: read latch")
	}
	return store.State(val), true, nil
}

func (s *Store) SetLatch(ctx context.Context, key string, state store.State, ttl time.Duration) error {
	if err := s.client.Set(ctx, latchKey(key), string(state), ttl).Err(); err != nil {
		return xerrors.Wrap(err, "redisstore: set latch")
	}
	return nil
}

func (s *Store) TryAcquireProbe(ctx context.Context, key string, maxProbes int, ttl time.Duration) (bool, error) {
	ttlSeconds := int64(ttl / time.Second)
	if ttlSeconds <= 0 {
		ttlSeconds = 1
	}
	result, err := acquireProbeScript.Run(ctx, s.client, []string{probesKey(key)}, maxProbes, ttlSeconds).Result()
	if err != nil {
		return false, xerrors.Wrap(err, "redisstore: acquire probe")
	}
	n, err := toInt64(result)
	if err != nil {
		return false, xerrors.Wrap(err, "redisstore: parse acquire probe result")
	}
	return n == 1, nil
}

func (s *Store) ReleaseProbe(ctx context.Context, key string) error {
	if err := s.client.Decr(ctx, probesKey(key)).Err(); err != nil {
		return xerrors.Wrap(err, "redisstore: release probe")
	}
	return nil
}

func (s *Store) ReadRamp(ctx context.Context, key string) (int, bool, error) {
	val, err := s.client.Get(ctx, rampKey(key)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, xerrors.Wrap(err, "redisstore: read ramp")
	}
	percent, convErr := strconv.Atoi(val)
	if convErr != nil {
		return 0, false, xerrors.Wrap(convErr, "redisstore: parse ramp value")
	}
	return percent, true, nil
}

func (s *Store) SetRamp(ctx context.Context, key string, percent int, ttl time.Duration) error {
	if err := s.client.Set(ctx, rampKey(key), strconv.Itoa(percent), ttl).Err(); err != nil {
		return xerrors.Wrap(err, "redisstore: set ramp")
	}
	return nil
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, xerrors.New("redisstore: value is not an integer")
	}
}

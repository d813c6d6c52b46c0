//go:build integration

package redisstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/ceyewan/distbreaker/breaker/store"
	"github.com/ceyewan/distbreaker/breaker/store/redisstore"
	"github.com/ceyewan/distbreaker/testkit"

	"github.com/stretchr/testify/require"
)

func TestRecordAndReadWindow(t *testing.T) {
	conn := testkit.NewRedisContainerConnector(t)
	st, err := redisstore.New(conn, testkit.NewLogger())
	require.NoError(t, err)

	ctx := context.Background()
	key := testkit.NewID()
	now := time.Now().Unix()

	require.NoError(t, st.Record(ctx, key, true, now, 60*time.Second, 10*time.Second))
	require.NoError(t, st.Record(ctx, key, false, now, 60*time.Second, 10*time.Second))
	require.NoError(t, st.Record(ctx, key, false, now, 60*time.Second, 10*time.Second))

	successes, failures, err := st.ReadWindow(ctx, key, now, 60*time.Second, 10*time.Second)
	require.NoError(t, err)
	require.Equal(t, int64(1), successes)
	require.Equal(t, int64(2), failures)
}

func TestLatchRoundTrip(t *testing.T) {
	conn := testkit.NewRedisContainerConnector(t)
	st, err := redisstore.New(conn, testkit.NewLogger())
	require.NoError(t, err)

	ctx := context.Background()
	key := testkit.NewID()

	_, ok, err := st.ReadLatch(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, st.SetLatch(ctx, key, store.StateOpen, time.Second))

	got, ok, err := st.ReadLatch(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, store.StateOpen, got)

	time.Sleep(1500 * time.Millisecond)

	_, ok, err = st.ReadLatch(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestProbeSemaphoreCap(t *testing.T) {
	conn := testkit.NewRedisContainerConnector(t)
	st, err := redisstore.New(conn, testkit.NewLogger())
	require.NoError(t, err)

	ctx := context.Background()
	key := testkit.NewID()

	ok1, err := st.TryAcquireProbe(ctx, key, 1, time.Second)
	require.NoError(t, err)
	require.True(t, ok1)

	ok2, err := st.TryAcquireProbe(ctx, key, 1, time.Second)
	require.NoError(t, err)
	require.False(t, ok2)

	require.NoError(t, st.ReleaseProbe(ctx, key))

	ok3, err := st.TryAcquireProbe(ctx, key, 1, time.Second)
	require.NoError(t, err)
	require.True(t, ok3)
}

func TestRampRoundTrip(t *testing.T) {
	conn := testkit.NewRedisContainerConnector(t)
	st, err := redisstore.New(conn, testkit.NewLogger())
	require.NoError(t, err)

	ctx := context.Background()
	key := testkit.NewID()

	_, ok, err := st.ReadRamp(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, st.SetRamp(ctx, key, 25, time.Minute))

	percent, ok, err := st.ReadRamp(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 25, percent)
}

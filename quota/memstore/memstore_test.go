package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIncrementAndGet(t *testing.T) {
	s := New()
	ctx := context.Background()

	n1, err := s.IncrementAndGet(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), n1)

	n2, err := s.IncrementAndGet(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(2), n2)
}

func TestIncrementAndGetResetsAfterPeriod(t *testing.T) {
	s := New()
	ctx := context.Background()

	now := int64(1000)
	s.clock = func() int64 { return now }

	n1, err := s.IncrementAndGet(ctx, "k", 10*time.Second)
	require.NoError(t, err)
	require.Equal(t, int64(1), n1)

	now += 5
	n2, err := s.IncrementAndGet(ctx, "k", 10*time.Second)
	require.NoError(t, err)
	require.Equal(t, int64(2), n2)

	now += 10
	n3, err := s.IncrementAndGet(ctx, "k", 10*time.Second)
	require.NoError(t, err)
	require.Equal(t, int64(1), n3)
}

func TestIncrementAndGetIsolatesKeys(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.IncrementAndGet(ctx, "a", time.Minute)
	require.NoError(t, err)

	n, err := s.IncrementAndGet(ctx, "b", time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

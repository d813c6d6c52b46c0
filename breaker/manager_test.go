package breaker

import (
	"testing"
	"time"

	"github.com/ceyewan/distbreaker/breaker/store/memstore"

	"github.com/stretchr/testify/require"
)

func TestManagerGetCachesEnginePerKey(t *testing.T) {
	st := memstore.New()
	m := NewManager(st, func(key string) Options {
		return testOptions(time.Minute)
	})
	defer m.Close()

	e1, err := m.Get("a")
	require.NoError(t, err)
	e2, err := m.Get("a")
	require.NoError(t, err)
	require.Same(t, e1, e2)

	e3, err := m.Get("b")
	require.NoError(t, err)
	require.NotSame(t, e1, e3)
}

func TestManagerGetPropagatesOptionsError(t *testing.T) {
	st := memstore.New()
	m := NewManager(st, func(key string) Options {
		return Options{} // missing Key, fails Validate
	})
	defer m.Close()

	_, err := m.Get("a")
	require.Error(t, err)
}

func TestManagerCloseClosesAllEngines(t *testing.T) {
	st := memstore.New()
	m := NewManager(st, func(key string) Options {
		return testOptions(time.Minute)
	})

	_, err := m.Get("a")
	require.NoError(t, err)
	_, err = m.Get("b")
	require.NoError(t, err)

	m.Close() // must not panic or block
}

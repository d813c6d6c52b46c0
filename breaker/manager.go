package breaker

import (
	"sync"

	"github.com/ceyewan/distbreaker/breaker/store"
)

// Manager is a sync.Map-keyed registry of *Engine per breaker key, mirroring
// the teacher framework's internal breaker Manager: a process that calls
// Decide/Report for many breaker names does not need to construct and wire
// an Engine per name by hand.
type Manager struct {
	st          store.Store
	defaultOpts func(key string) Options
	engineOpts  []Option
	engines     sync.Map // key: string, value: *Engine
	constructMu sync.Mutex
}

// NewManager returns a Manager that lazily constructs one Engine per key,
// using optsFor to produce that key's Options and engineOpts to inject
// shared dependencies (logger, meter, clock) into every Engine it creates.
func NewManager(st store.Store, optsFor func(key string) Options, engineOpts ...Option) *Manager {
	return &Manager{
		st:          st,
		defaultOpts: optsFor,
		engineOpts:  engineOpts,
	}
}

// Get returns the Engine for key, constructing and caching it on first use.
func (m *Manager) Get(key string) (*Engine, error) {
	if val, ok := m.engines.Load(key); ok {
		return val.(*Engine), nil
	}

	// Only one goroutine should pay the construction cost for a given key;
	// LoadOrStore below still guards the cache, this mutex just avoids
	// constructing two Engines for the same key concurrently.
	m.constructMu.Lock()
	defer m.constructMu.Unlock()

	if val, ok := m.engines.Load(key); ok {
		return val.(*Engine), nil
	}

	e, err := New(m.defaultOpts(key), m.st, m.engineOpts...)
	if err != nil {
		return nil, err
	}

	actual, loaded := m.engines.LoadOrStore(key, e)
	if loaded {
		e.Close()
		return actual.(*Engine), nil
	}
	return e, nil
}

// Close closes every Engine the Manager has constructed.
func (m *Manager) Close() {
	m.engines.Range(func(_, val any) bool {
		val.(*Engine).Close()
		return true
	})
}

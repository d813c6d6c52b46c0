// Package quota implements the simpler breaker variant noted in spec.md
// §9: a single atomic counter with TTL that routes to the secondary
// endpoint once a per-period call quota is exceeded. Unlike the main
// Engine it carries no failure-rate logic, no latch, and no probing — the
// counter itself both measures and enforces the limit.
package quota

import (
	"context"
	"time"
)

// Store is the atomic primitive the quota breaker needs: increment a
// per-key counter and return its new value, arming a TTL of period on the
// first increment of each cycle so the counter self-resets without an
// explicit reset call. It is the same increment+TTL-on-first-use shape as
// breaker/store.Store's TryAcquireProbe, stripped of the cap check.
type Store interface {
	IncrementAndGet(ctx context.Context, key string, period time.Duration) (int64, error)
}

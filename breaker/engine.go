// Package breaker implements a distributed circuit breaker: a decision
// engine that coordinates failure detection and endpoint failover across
// many processes by sharing state through store.Store. While the primary
// endpoint is healthy all traffic goes there; while unhealthy, traffic is
// diverted to a secondary endpoint; during recovery traffic is gradually
// restored.
package breaker

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ceyewan/distbreaker/breaker/store"
	"github.com/ceyewan/distbreaker/clog"
	"github.com/ceyewan/distbreaker/metrics"
	"github.com/ceyewan/distbreaker/xerrors"

	"go.opentelemetry.io/otel"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// tracerName names the tracer every engine obtains from the global OTel
// provider. meterName is used as a prefix: the three counters are created on
// the injected metrics.Meter as "DistributedCircuitBreaker_requests_total",
// "DistributedCircuitBreaker_successes_total" and
// "DistributedCircuitBreaker_failures_total"; the engine does not create a
// meter of its own named "DistributedCircuitBreaker".
const (
	meterName  = "DistributedCircuitBreaker"
	tracerName = "DistributedCircuitBreaker"
)

// Engine is one breaker instance. It owns a small volatile local cache of
// the last observed state and an in-process counter of consecutive probe
// successes, delegating all durable state to the Store. An Engine is safe
// for concurrent use; engines sharing a Key and Store are the same logical
// breaker.
type Engine struct {
	opts  Options
	store store.Store
	clock Clock

	logger clog.Logger
	tracer oteltrace.Tracer

	requestsCounter  metrics.Counter
	successesCounter metrics.Counter
	failuresCounter  metrics.Counter

	state              atomic.Int32
	probeSuccessStreak atomic.Int32

	deferredMu     sync.Mutex
	deferredCancel context.CancelFunc
	wg             sync.WaitGroup

	closeOnce sync.Once
	closed    chan struct{}
}

// New constructs an Engine for the given Options and Store. Validation
// errors are returned immediately and never surface at runtime.
func New(opts Options, st store.Store, engineOpts ...Option) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if st == nil {
		return nil, ErrStoreNil
	}

	ro := &runtimeOptions{}
	for _, o := range engineOpts {
		o(ro)
	}
	ro.applyDefaults()

	e := &Engine{
		opts:   opts,
		store:  st,
		clock:  ro.clock,
		logger: ro.logger.With(clog.String("key", opts.Key)),
		tracer: otel.Tracer(tracerName),
		closed: make(chan struct{}),
	}
	e.state.Store(int32(StateClosed))

	var err error
	if e.requestsCounter, err = ro.meter.Counter(meterName+"_requests_total", "total decisions made by the breaker", metrics.WithUnit("1")); err != nil {
		return nil, xerrors.Wrap(err, "create requests counter")
	}
	if e.successesCounter, err = ro.meter.Counter(meterName+"_successes_total", "total reports of success", metrics.WithUnit("1")); err != nil {
		return nil, xerrors.Wrap(err, "create successes counter")
	}
	if e.failuresCounter, err = ro.meter.Counter(meterName+"_failures_total", "total reports of failure", metrics.WithUnit("1")); err != nil {
		return nil, xerrors.Wrap(err, "create failures counter")
	}

	return e, nil
}

// State returns the engine's locally cached state. It is eventually
// consistent with the latch: the next Decide that finds a latch adopts it.
// While the latch is absent the cached state is kept as it is.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Close cancels the engine's deferred Open→HalfOpen transition task, if one
// is pending. It does not touch the Store; other engines sharing Key are
// unaffected.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		close(e.closed)
		e.deferredMu.Lock()
		if e.deferredCancel != nil {
			e.deferredCancel()
		}
		e.deferredMu.Unlock()
		e.wg.Wait()
	})
}

// Decide chooses which endpoint a protected call should target. Any Store
// error is fatal to the decision and propagated to the caller, because no
// safe default exists without knowing the authoritative state.
func (e *Engine) Decide(ctx context.Context, primary, secondary string) (EndpointChoice, error) {
	ctx, span := e.tracer.Start(ctx, "choose")
	defer span.End()

	e.requestsCounter.Inc(ctx, metrics.L("key", e.opts.Key))

	latchState, ok, err := e.store.ReadLatch(ctx, e.opts.Key)
	if err != nil {
		return EndpointChoice{}, xerrors.Wrap(err, "decide: read latch")
	}
	if ok {
		e.adopt(fromStoreState(latchState))
	}

	switch e.State() {
	case StateOpen:
		return EndpointChoice{Endpoint: secondary, UseProbe: false, PrimaryWeightPercent: 0}, nil

	case StateHalfOpen:
		acquired, err := e.store.TryAcquireProbe(ctx, e.opts.Key, e.opts.HalfOpenMaxProbes, e.opts.OpenCooldown)
		if err != nil {
			return EndpointChoice{}, xerrors.Wrap(err, "decide: acquire probe")
		}
		if acquired {
			return EndpointChoice{Endpoint: primary, UseProbe: true, PrimaryWeightPercent: 0}, nil
		}
		return EndpointChoice{Endpoint: secondary, UseProbe: false, PrimaryWeightPercent: 0}, nil

	default: // StateClosed
		percent, ok, err := e.store.ReadRamp(ctx, e.opts.Key)
		if err != nil {
			return EndpointChoice{}, xerrors.Wrap(err, "decide: read ramp")
		}
		if !ok || percent >= 100 {
			return EndpointChoice{Endpoint: primary, UseProbe: false, PrimaryWeightPercent: 100}, nil
		}
		if rand.N(100) < percent {
			return EndpointChoice{Endpoint: primary, UseProbe: false, PrimaryWeightPercent: percent}, nil
		}
		return EndpointChoice{Endpoint: secondary, UseProbe: false, PrimaryWeightPercent: percent}, nil
	}
}

// Report records the outcome of a protected call previously dispatched by
// Decide. Store errors during Record are propagated; all subsequent
// cleanup errors (probe release, latch/ramp writes) are logged and
// swallowed per spec.md §7.
func (e *Engine) Report(ctx context.Context, success, wasProbe bool) error {
	ctx, span := e.tracer.Start(ctx, "report")
	defer span.End()

	now := e.clock.Now()
	if err := e.store.Record(ctx, e.opts.Key, success, now, e.opts.Window, e.opts.Bucket); err != nil {
		return xerrors.Wrap(err, "report: record")
	}

	if success {
		e.successesCounter.Inc(ctx, metrics.L("key", e.opts.Key))
	} else {
		e.failuresCounter.Inc(ctx, metrics.L("key", e.opts.Key))
	}

	state := e.State()
	if wasProbe && state != StateHalfOpen {
		e.logger.Warn("report claims wasProbe outside half-open", clog.Error(ErrNotProbe), clog.String("state", state.String()))
	}

	switch state {
	case StateClosed:
		e.evaluateOpen(ctx, now)
		e.evaluateRamp(ctx, now)

	case StateHalfOpen:
		if wasProbe {
			e.reportProbe(ctx, success)
		}
		// Open, or HalfOpen non-probe: the bucket was recorded above so
		// statistics stay continuous across states, but no state change.
	}

	return nil
}

// reportProbe handles a Report(success, wasProbe=true) while locally
// HalfOpen. Per the design notes, the probe slot is released before
// evaluating the close condition to minimize the window during which it
// stays blocked.
func (e *Engine) reportProbe(ctx context.Context, success bool) {
	if err := e.store.ReleaseProbe(ctx, e.opts.Key); err != nil {
		e.logger.Warn("failed to release probe", clog.Error(err))
	}

	if !success {
		e.probeSuccessStreak.Store(0)
		e.tripOpen(ctx)
		return
	}

	streak := e.probeSuccessStreak.Add(1)
	if int(streak) < e.opts.HalfOpenSuccessesToClose {
		return
	}

	e.probeSuccessStreak.Store(0)
	e.adopt(StateClosed)
	if err := e.store.SetLatch(ctx, e.opts.Key, store.StateClosed, 0); err != nil {
		e.logger.Warn("failed to write closed latch", clog.Error(err))
	}
	if len(e.opts.Ramp.Percentages) > 0 {
		first := e.opts.Ramp.Percentages[0]
		if err := e.store.SetRamp(ctx, e.opts.Key, first, e.opts.Ramp.HoldDuration); err != nil {
			e.logger.Warn("failed to initialize ramp", clog.Error(err))
		}
	}
}

// evaluateOpen implements §4.1 EvaluateOpen.
func (e *Engine) evaluateOpen(ctx context.Context, now int64) {
	successes, failures, err := e.store.ReadWindow(ctx, e.opts.Key, now, e.opts.Window, e.opts.Bucket)
	if err != nil {
		e.logger.Warn("failed to read window", clog.Error(err))
		return
	}
	n := successes + failures
	if n < int64(e.opts.MinSamples) {
		return
	}
	if float64(failures)/float64(n) >= e.opts.FailureRateToOpen {
		e.tripOpen(ctx)
	}
}

// evaluateRamp implements §4.1 EvaluateRamp.
func (e *Engine) evaluateRamp(ctx context.Context, now int64) {
	percent, ok, err := e.store.ReadRamp(ctx, e.opts.Key)
	if err != nil {
		e.logger.Warn("failed to read ramp", clog.Error(err))
		return
	}
	if !ok || percent >= 100 {
		return
	}

	successes, failures, err := e.store.ReadWindow(ctx, e.opts.Key, now, e.opts.Window, e.opts.Bucket)
	if err != nil {
		e.logger.Warn("failed to read window for ramp evaluation", clog.Error(err))
		return
	}
	total := successes + failures
	var rate float64
	if total > 0 {
		rate = float64(failures) / float64(total)
	}
	if rate > e.opts.Ramp.MaxFailureRatePerStep {
		e.tripOpen(ctx)
		return
	}

	idx := indexOf(e.opts.Ramp.Percentages, percent)
	var next int
	if idx >= 0 && idx < len(e.opts.Ramp.Percentages)-1 {
		next = e.opts.Ramp.Percentages[idx+1]
	} else {
		next = 100
	}
	if err := e.store.SetRamp(ctx, e.opts.Key, next, e.opts.Ramp.HoldDuration); err != nil {
		e.logger.Warn("failed to advance ramp", clog.Error(err))
	}
}

// tripOpen implements §4.1 TripOpen: latch Open, zero the ramp, and
// schedule a detached-but-lifetime-bound task to adopt Half-Open after
// openCooldown elapses.
func (e *Engine) tripOpen(ctx context.Context) {
	e.adopt(StateOpen)
	e.probeSuccessStreak.Store(0)

	if err := e.store.SetLatch(ctx, e.opts.Key, store.StateOpen, e.opts.OpenCooldown); err != nil {
		e.logger.Warn("failed to write open latch", clog.Error(err))
	}
	if err := e.store.SetRamp(ctx, e.opts.Key, 0, e.opts.Ramp.HoldDuration); err != nil {
		e.logger.Warn("failed to zero ramp", clog.Error(err))
	}

	e.scheduleHalfOpenTransition()
}

// scheduleHalfOpenTransition attaches a cancellable timer to the engine's
// lifetime that adopts Half-Open and rewrites the latch once openCooldown
// elapses. A stale timer from a prior trip is replaced, not stacked.
func (e *Engine) scheduleHalfOpenTransition() {
	e.deferredMu.Lock()
	defer e.deferredMu.Unlock()

	if e.deferredCancel != nil {
		e.deferredCancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.deferredCancel = cancel

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		timer := time.NewTimer(e.opts.OpenCooldown)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return
		case <-e.closed:
			return
		case <-timer.C:
		}

		if e.State() != StateOpen {
			// Already reconciled by a concurrent Decide/Report; nothing to do.
			return
		}
		e.adopt(StateHalfOpen)
		if err := e.store.SetLatch(context.Background(), e.opts.Key, store.StateHalfOpen, e.opts.OpenCooldown); err != nil {
			e.logger.Warn("failed to write half-open latch", clog.Error(err))
		}
	}()
}

// adopt reconciles the local cached state with a newly observed value.
func (e *Engine) adopt(s State) {
	e.state.Store(int32(s))
}

func fromStoreState(s store.State) State {
	switch s {
	case store.StateOpen:
		return StateOpen
	case store.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

func indexOf(xs []int, v int) int {
	for i, x := range xs {
		if x == v {
			return i
		}
	}
	return -1
}

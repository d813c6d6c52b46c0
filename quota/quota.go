package quota

import (
	"context"

	"github.com/ceyewan/distbreaker/breaker"
	"github.com/ceyewan/distbreaker/clog"
	"github.com/ceyewan/distbreaker/metrics"
	"github.com/ceyewan/distbreaker/xerrors"

	"go.opentelemetry.io/otel"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// meterName and tracerName follow the engine's DistributedCircuitBreaker
// naming (spec.md §6) with a Quota suffix so the two variants' series
// don't collide when both run in the same process.
const (
	meterName  = "DistributedCircuitBreakerQuota"
	tracerName = "DistributedCircuitBreakerQuota"
)

// Breaker is a quota-based breaker: it has no Report call, no latch and no
// ramp. Every Decide increments the period's counter and compares it
// against Limit; the decision alone is the observation.
type Breaker struct {
	opts  Options
	store Store

	logger clog.Logger
	tracer oteltrace.Tracer

	requestsCounter metrics.Counter
	exceededCounter metrics.Counter
}

// New constructs a Breaker for the given Options and Store.
func New(opts Options, st Store, breakerOpts ...Option) (*Breaker, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if st == nil {
		return nil, xerrors.New("quota: store is nil")
	}

	ro := &runtimeOptions{}
	for _, o := range breakerOpts {
		o(ro)
	}
	ro.applyDefaults()

	b := &Breaker{
		opts:   opts,
		store:  st,
		logger: ro.logger.With(clog.String("key", opts.Key)),
		tracer: otel.Tracer(tracerName),
	}

	var err error
	if b.requestsCounter, err = ro.meter.Counter(meterName+"_requests_total", "total decisions made by the quota breaker", metrics.WithUnit("1")); err != nil {
		return nil, xerrors.Wrap(err, "create requests counter")
	}
	if b.exceededCounter, err = ro.meter.Counter(meterName+"_quota_exceeded_total", "total decisions routed to the secondary due to quota", metrics.WithUnit("1")); err != nil {
		return nil, xerrors.Wrap(err, "create quota exceeded counter")
	}

	return b, nil
}

// Decide increments the current period's counter and routes to primary
// while the count stays at or below Limit, to secondary once it is
// exceeded. There is no Report counterpart: the counter only measures
// call volume, not outcome.
func (b *Breaker) Decide(ctx context.Context, primary, secondary string) (breaker.EndpointChoice, error) {
	ctx, span := b.tracer.Start(ctx, "choose")
	defer span.End()

	b.requestsCounter.Inc(ctx, metrics.L("key", b.opts.Key))

	n, err := b.store.IncrementAndGet(ctx, b.opts.Key, b.opts.Period)
	if err != nil {
		return breaker.EndpointChoice{}, xerrors.Wrap(err, "quota: decide")
	}

	if n > b.opts.Limit {
		b.exceededCounter.Inc(ctx, metrics.L("key", b.opts.Key))
		return breaker.EndpointChoice{Endpoint: secondary, UseProbe: false, PrimaryWeightPercent: 0}, nil
	}
	return breaker.EndpointChoice{Endpoint: primary, UseProbe: false, PrimaryWeightPercent: 100}, nil
}

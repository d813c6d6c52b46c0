package quota

import (
	"time"

	"github.com/ceyewan/distbreaker/clog"
	"github.com/ceyewan/distbreaker/metrics"
	"github.com/ceyewan/distbreaker/xerrors"
)

// Options is the immutable, validated configuration for one quota breaker.
type Options struct {
	// Key identifies the counter; all Store keys are derived from it.
	Key string
	// Limit is the number of calls allowed to the primary per Period
	// before routing switches to the secondary for the remainder of it.
	Limit int64
	// Period is the cycle the counter resets on.
	Period time.Duration
}

// Validate checks the option combination before a Breaker is constructed.
func (o Options) Validate() error {
	if o.Key == "" {
		return xerrors.New("quota: key is empty")
	}
	if o.Limit < 1 {
		return xerrors.New("quota: limit must be >= 1")
	}
	if o.Period <= 0 {
		return xerrors.New("quota: period must be > 0")
	}
	return nil
}

// runtimeOptions holds dependency-injection options, separate from the
// business-config Options, matching breaker.runtimeOptions' split.
type runtimeOptions struct {
	logger clog.Logger
	meter  metrics.Meter
}

func (o *runtimeOptions) applyDefaults() {
	if o.logger == nil {
		o.logger = clog.Discard()
	}
	if o.meter == nil {
		o.meter = metrics.Discard()
	}
}

// Option configures a Breaker instance's dependencies.
type Option func(*runtimeOptions)

// WithLogger sets the logger; nil falls back to clog.Discard().
func WithLogger(logger clog.Logger) Option {
	return func(o *runtimeOptions) {
		if logger == nil {
			o.logger = clog.Discard()
			return
		}
		o.logger = logger.WithNamespace("distbreaker-quota")
	}
}

// WithMeter sets the metrics collector.
func WithMeter(meter metrics.Meter) Option {
	return func(o *runtimeOptions) {
		o.meter = meter
	}
}

package breaker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ceyewan/distbreaker/breaker/store/memstore"

	"github.com/stretchr/testify/require"
)

// fakeClock lets tests control bucket-alignment time independently of wall
// clock, while the engine's deferred Open→HalfOpen transition still runs on
// a real (short) timer — mirroring how spec.md's concrete scenarios "wait"
// out the cooldown rather than virtualize it.
type fakeClock struct {
	now atomic.Int64
}

func newFakeClock(start int64) *fakeClock {
	c := &fakeClock{}
	c.now.Store(start)
	return c
}

func (c *fakeClock) Now() int64    { return c.now.Load() }
func (c *fakeClock) Advance(d int64) { c.now.Add(d) }

// testOptions returns the literal scenario configuration from spec.md §8:
// key="t", window=60s, bucket=10s, minSamples=1, failureRateToOpen=0.5,
// openCooldown scaled down for test speed, halfOpenMaxProbes=1,
// halfOpenSuccessesToClose=1, ramp=({100}, holdDuration, 1.0).
func testOptions(cooldown time.Duration) Options {
	return Options{
		Key:                      "t",
		Window:                   60 * time.Second,
		Bucket:                   10 * time.Second,
		MinSamples:               1,
		FailureRateToOpen:        0.5,
		OpenCooldown:             cooldown,
		HalfOpenMaxProbes:        1,
		HalfOpenSuccessesToClose: 1,
		Ramp: RampOptions{
			Percentages:           []int{100},
			HoldDuration:          cooldown,
			MaxFailureRatePerStep: 1.0,
		},
	}
}

func TestScenario1_FreshEngineTripsOpenOnFailure(t *testing.T) {
	st := memstore.New()
	clock := newFakeClock(1000)
	e, err := New(testOptions(50*time.Millisecond), st, WithClock(clock))
	require.NoError(t, err)
	defer e.Close()

	ctx := context.Background()

	choice, err := e.Decide(ctx, "P", "S")
	require.NoError(t, err)
	require.Equal(t, EndpointChoice{Endpoint: "P", UseProbe: false, PrimaryWeightPercent: 100}, choice)

	require.NoError(t, e.Report(ctx, false, false))
	require.Equal(t, StateOpen, e.State())

	choice, err = e.Decide(ctx, "P", "S")
	require.NoError(t, err)
	require.Equal(t, EndpointChoice{Endpoint: "S", UseProbe: false, PrimaryWeightPercent: 0}, choice)
}

func TestScenario2_CooldownThenProbeCapThenClose(t *testing.T) {
	st := memstore.New()
	clock := newFakeClock(1000)
	cooldown := 80 * time.Millisecond
	e, err := New(testOptions(cooldown), st, WithClock(clock))
	require.NoError(t, err)
	defer e.Close()

	ctx := context.Background()

	_, err = e.Decide(ctx, "P", "S")
	require.NoError(t, err)
	require.NoError(t, e.Report(ctx, false, false))
	require.Equal(t, StateOpen, e.State())

	time.Sleep(cooldown + 50*time.Millisecond)

	choice, err := e.Decide(ctx, "P", "S")
	require.NoError(t, err)
	require.Equal(t, EndpointChoice{Endpoint: "P", UseProbe: true, PrimaryWeightPercent: 0}, choice)

	// Second immediate Decide hits the probe cap.
	choice2, err := e.Decide(ctx, "P", "S")
	require.NoError(t, err)
	require.Equal(t, EndpointChoice{Endpoint: "S", UseProbe: false, PrimaryWeightPercent: 0}, choice2)

	require.NoError(t, e.Report(ctx, true, true))
	require.Equal(t, StateClosed, e.State())

	latch, ok, err := st.ReadLatch(ctx, "t")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, fromStoreState(latch), StateClosed)

	percent, ok, err := st.ReadRamp(ctx, "t")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 100, percent)
}

func TestScenario3_AfterCloseNextDecideUsesFullRamp(t *testing.T) {
	st := memstore.New()
	clock := newFakeClock(1000)
	cooldown := 60 * time.Millisecond
	e, err := New(testOptions(cooldown), st, WithClock(clock))
	require.NoError(t, err)
	defer e.Close()

	ctx := context.Background()

	_, _ = e.Decide(ctx, "P", "S")
	require.NoError(t, e.Report(ctx, false, false))
	time.Sleep(cooldown + 50*time.Millisecond)
	_, _ = e.Decide(ctx, "P", "S")
	require.NoError(t, e.Report(ctx, true, true))
	require.Equal(t, StateClosed, e.State())

	choice, err := e.Decide(ctx, "P", "S")
	require.NoError(t, err)
	require.Equal(t, EndpointChoice{Endpoint: "P", UseProbe: false, PrimaryWeightPercent: 100}, choice)
}

func TestScenario4_ClusterConvergence(t *testing.T) {
	st := memstore.New()
	clockA := newFakeClock(1000)
	clockB := newFakeClock(1000)

	a, err := New(testOptions(time.Minute), st, WithClock(clockA))
	require.NoError(t, err)
	defer a.Close()
	b, err := New(testOptions(time.Minute), st, WithClock(clockB))
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()

	_, err = a.Decide(ctx, "P", "S")
	require.NoError(t, err)
	require.NoError(t, a.Report(ctx, false, false))
	require.Equal(t, StateOpen, a.State())

	// B never called Decide/Report before, yet shares the store and key.
	choice, err := b.Decide(ctx, "P", "S")
	require.NoError(t, err)
	require.Equal(t, EndpointChoice{Endpoint: "S", UseProbe: false, PrimaryWeightPercent: 0}, choice)
}

func TestScenario5_RampAdvancesStepByStepWithLowFailureRate(t *testing.T) {
	st := memstore.New()
	clock := newFakeClock(1000)
	opts := Options{
		Key:                      "ramp-advance",
		Window:                   60 * time.Second,
		Bucket:                   10 * time.Second,
		MinSamples:               1,
		FailureRateToOpen:        0.9,
		OpenCooldown:             time.Minute,
		HalfOpenMaxProbes:        1,
		HalfOpenSuccessesToClose: 1,
		Ramp: RampOptions{
			Percentages:           []int{25, 50, 100},
			HoldDuration:          time.Minute,
			MaxFailureRatePerStep: 0.1,
		},
	}
	e, err := New(opts, st, WithClock(clock))
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, st.SetRamp(context.Background(), opts.Key, 25, time.Minute))

	ctx := context.Background()

	require.NoError(t, e.Report(ctx, true, false))
	percent, ok, err := st.ReadRamp(ctx, opts.Key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 50, percent)

	require.NoError(t, e.Report(ctx, true, false))
	percent, ok, err = st.ReadRamp(ctx, opts.Key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 100, percent)

	// Once fully ramped, further successes leave the ramp untouched.
	require.NoError(t, e.Report(ctx, true, false))
	percent, ok, err = st.ReadRamp(ctx, opts.Key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 100, percent)
}

func TestScenario6_ProbeFailureReopens(t *testing.T) {
	st := memstore.New()
	clock := newFakeClock(1000)
	cooldown := 60 * time.Millisecond
	e, err := New(testOptions(cooldown), st, WithClock(clock))
	require.NoError(t, err)
	defer e.Close()

	ctx := context.Background()

	_, _ = e.Decide(ctx, "P", "S")
	require.NoError(t, e.Report(ctx, false, false))
	time.Sleep(cooldown + 50*time.Millisecond)

	choice, err := e.Decide(ctx, "P", "S")
	require.NoError(t, err)
	require.True(t, choice.UseProbe)

	require.NoError(t, e.Report(ctx, false, true))
	require.Equal(t, StateOpen, e.State())
}

func TestThresholdCorrectness(t *testing.T) {
	st := memstore.New()
	clock := newFakeClock(1000)
	opts := testOptions(time.Minute)
	opts.MinSamples = 4
	e, err := New(opts, st, WithClock(clock))
	require.NoError(t, err)
	defer e.Close()

	ctx := context.Background()
	require.NoError(t, e.Report(ctx, true, false))
	require.NoError(t, e.Report(ctx, true, false))
	require.NoError(t, e.Report(ctx, false, false))
	require.NoError(t, e.Report(ctx, false, false))

	require.Equal(t, StateOpen, e.State())
}

func TestClosureUnderIdempotentReportsBelowMinSamples(t *testing.T) {
	st := memstore.New()
	clock := newFakeClock(1000)
	opts := testOptions(time.Minute)
	opts.MinSamples = 10
	e, err := New(opts, st, WithClock(clock))
	require.NoError(t, err)
	defer e.Close()

	ctx := context.Background()
	for i := 0; i < 9; i++ {
		require.NoError(t, e.Report(ctx, false, false))
	}
	require.Equal(t, StateClosed, e.State())
}

package breaker

import (
	"time"

	"github.com/ceyewan/distbreaker/clog"
	"github.com/ceyewan/distbreaker/metrics"
	"github.com/ceyewan/distbreaker/xerrors"
)

// RampOptions 描述渐进恢复的策略。
type RampOptions struct {
	// Percentages 是非空、按恢复顺序排列的 0-100 权重列表
	Percentages []int
	// HoldDuration 是每个 ramp 步骤的驻留时长
	HoldDuration time.Duration
	// MaxFailureRatePerStep 是导致某个 ramp 步骤中止（回到 Open）的失败率
	MaxFailureRatePerStep float64
}

// Options 是单个熔断器实例的不可变配置，对应 spec 的 §3 数据模型。
type Options struct {
	// Key 是熔断器标识，所有 Store 键都由此派生
	Key string
	// Window 是滑动观测窗口的总时长
	Window time.Duration
	// Bucket 是时间对齐桶的粒度
	Bucket time.Duration
	// MinSamples 是 Closed→Open 生效前所需的最小观测数
	MinSamples int
	// FailureRateToOpen 是触发 Closed→Open 的失败率阈值
	FailureRateToOpen float64
	// OpenCooldown 是 Open 状态到 Half-Open 的驻留时长
	OpenCooldown time.Duration
	// HalfOpenMaxProbes 是半开状态下并发探测请求的上限
	HalfOpenMaxProbes int
	// HalfOpenSuccessesToClose 是连续探测成功达到此数才会关闭熔断器
	HalfOpenSuccessesToClose int
	// Ramp 是渐进恢复策略
	Ramp RampOptions
}

// Validate 在引擎构造前校验配置组合是否合法。
func (o Options) Validate() error {
	if o.Key == "" {
		return xerrors.Wrap(ErrKeyEmpty, "validate options")
	}
	if o.Bucket < time.Second {
		return xerrors.New("breaker: bucket must be >= 1s")
	}
	if o.Window <= o.Bucket {
		return xerrors.New("breaker: window must be greater than bucket")
	}
	if o.Window > 24*time.Hour {
		return xerrors.New("breaker: window must be <= 24h")
	}
	if o.MinSamples < 1 {
		return xerrors.New("breaker: minSamples must be >= 1")
	}
	if o.FailureRateToOpen < 0 || o.FailureRateToOpen > 1 {
		return xerrors.New("breaker: failureRateToOpen must be in [0,1]")
	}
	if o.OpenCooldown <= 0 {
		return xerrors.New("breaker: openCooldown must be > 0")
	}
	if o.HalfOpenMaxProbes < 1 {
		return xerrors.New("breaker: halfOpenMaxProbes must be >= 1")
	}
	if o.HalfOpenSuccessesToClose < 1 {
		return xerrors.New("breaker: halfOpenSuccessesToClose must be >= 1")
	}
	if len(o.Ramp.Percentages) < 1 {
		return xerrors.New("breaker: ramp.percentages must have length >= 1")
	}
	for _, p := range o.Ramp.Percentages {
		if p < 0 || p > 100 {
			return xerrors.New("breaker: ramp.percentages entries must be in [0,100]")
		}
	}
	if o.Ramp.HoldDuration <= 0 {
		return xerrors.New("breaker: ramp.holdDuration must be > 0")
	}
	if o.Ramp.MaxFailureRatePerStep < 0 || o.Ramp.MaxFailureRatePerStep > 1 {
		return xerrors.New("breaker: ramp.maxFailureRatePerStep must be in [0,1]")
	}
	return nil
}

// runtimeOptions 持有依赖注入相关的可选项，和 Options 的业务字段分开，
// 与 connector/metrics 包中 functional Option 的用法一致。
type runtimeOptions struct {
	logger clog.Logger
	meter  metrics.Meter
	clock  Clock
}

func (o *runtimeOptions) applyDefaults() {
	if o.logger == nil {
		o.logger = clog.Discard()
	}
	if o.meter == nil {
		o.meter = metrics.Discard()
	}
	if o.clock == nil {
		o.clock = SystemClock
	}
}

// Option 配置引擎实例的依赖项
type Option func(*runtimeOptions)

// WithLogger 设置日志记录器，传入 nil 时使用 clog.Discard()
func WithLogger(logger clog.Logger) Option {
	return func(o *runtimeOptions) {
		if logger == nil {
			o.logger = clog.Discard()
			return
		}
		o.logger = logger.WithNamespace("distbreaker")
	}
}

// WithMeter 设置指标收集器
func WithMeter(meter metrics.Meter) Option {
	return func(o *runtimeOptions) {
		o.meter = meter
	}
}

// WithClock 注入自定义时钟，主要用于确定性测试
func WithClock(clock Clock) Option {
	return func(o *runtimeOptions) {
		o.clock = clock
	}
}

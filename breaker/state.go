package breaker

// State 熔断器状态
type State int32

const (
	// StateClosed 正常状态，请求按 ramp 权重路由到主端点
	StateClosed State = iota
	// StateOpen 熔断状态，请求全部路由到次端点
	StateOpen
	// StateHalfOpen 半开状态，少量探测请求允许访问主端点
	StateHalfOpen
)

// String 返回状态的文本表示，与 latch 中存储的值一致
func (s State) String() string {
	switch s {
	case StateClosed:
		return "Closed"
	case StateOpen:
		return "Open"
	case StateHalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

// EndpointChoice 是 Decide 的返回值：调用方应访问哪个端点，
// 是否作为半开探测请求，以及 Closed 状态下路由到主端点的权重。
type EndpointChoice struct {
	Endpoint             string
	UseProbe             bool
	PrimaryWeightPercent int
}

package breaker

import "time"

// Clock 是引擎的单调时间源，返回 UTC 秒。注入以便测试。
type Clock interface {
	Now() int64
}

// systemClock 使用墙钟时间，按 §5 的要求以整秒做桶对齐运算。
type systemClock struct{}

func (systemClock) Now() int64 {
	return time.Now().Unix()
}

// SystemClock 是生产环境下使用的默认 Clock
var SystemClock Clock = systemClock{}

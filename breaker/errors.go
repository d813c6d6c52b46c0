package breaker

import "github.com/ceyewan/distbreaker/xerrors"

// 错误定义
var (
	// ErrOptionsNil 选项为空
	ErrOptionsNil = xerrors.New("breaker: options is nil")

	// ErrKeyEmpty 熔断键为空
	ErrKeyEmpty = xerrors.New("breaker: key is empty")

	// ErrStoreNil Store 为空
	ErrStoreNil = xerrors.New("breaker: store is nil")

	// ErrNotProbe Report 声称 wasProbe 但本地没有对应的探测记录；
	// 按非探测上报处理，只记录告警，不中断调用方
	ErrNotProbe = xerrors.New("breaker: reported wasProbe without a matching probe acquisition")
)

package trace

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc/stats"
)

// GRPCClientStatsHandler 返回一个可重用的 gRPC 客户端状态处理程序用于跟踪，
// 供 grpc.WithStatsHandler 使用
func GRPCClientStatsHandler() stats.Handler {
	return otelgrpc.NewClientHandler()
}

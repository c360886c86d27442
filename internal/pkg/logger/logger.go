// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

var base zerolog.Logger

func init() {
	base = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// Init 设置全局日志器的服务名与日志级别。
// 级别字符串无法解析时回退到 info，避免因配置错误导致完全无日志。
func Init(serviceName, level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	base = zerolog.New(os.Stdout).
		Level(lvl).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

// Logger 返回全局日志器。
func Logger() *zerolog.Logger {
	return &base
}

// Ctx 返回一个绑定了追踪上下文的日志器。
// 如果 ctx 中存在有效的 Span，会自动附加 trace_id / span_id 字段，
// 方便在 Jaeger 与日志系统之间相互跳转。
func Ctx(ctx context.Context) *zerolog.Logger {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return &base
	}
	l := base.With().
		Str("trace_id", spanCtx.TraceID().String()).
		Str("span_id", spanCtx.SpanID().String()).
		Logger()
	return &l
}

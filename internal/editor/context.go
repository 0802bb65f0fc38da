package editor

import "context"

type correlationKey struct{}

// WithCorrelationID 将请求的 Correlation ID 附加到 ctx，写入事件时一并带出。
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID 取出 ctx 中的 Correlation ID。
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

package ctxkeys

import "context"

// contextKey 用于在 context 中存储值的键类型
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	jobIDKey     contextKey = "job_id"
	apiKeyKey    contextKey = "api_key"
)

// WithRequestID 设置 RequestID
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID 获取 RequestID
func RequestID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(requestIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithJobID 设置生成任务 ID
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, jobIDKey, jobID)
}

// JobID 获取生成任务 ID
func JobID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(jobIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithAPIKey 记录通过鉴权的 API Key（已脱敏）
func WithAPIKey(ctx context.Context, masked string) context.Context {
	return context.WithValue(ctx, apiKeyKey, masked)
}

// APIKey 获取已脱敏的 API Key
func APIKey(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(apiKeyKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

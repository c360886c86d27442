// internal/service/checkout/port/notifier.go
package port

import "context"

// 通知级别
const (
	LevelInfo  = "info"
	LevelError = "error"
)

// Notifier 把通知与状态变更推送给外围 UI。
// 两个方法都是 fire-and-forget：核心绝不因为 UI 不在而阻塞。
type Notifier interface {
	Notify(ctx context.Context, level, message string)
	PushEvent(ctx context.Context, event string, payload interface{})
}

// internal/service/checkout/infrastructure/adapter/widget_hub_adapter.go
package adapter

import (
	"context"

	"kiosk/internal/service/checkout/port"
)

// WidgetPusher 是支付组件桥的最小依赖面：
// 组件宿主（UI hub）报告桥是否就绪，并接收打开命令。
type WidgetPusher interface {
	WidgetReady() bool
	PushEvent(ctx context.Context, event string, payload interface{})
}

// HubWidgetAdapter 把内嵌支付组件桥落到 UI 推送通道上。
// 组件脚本在 UI 侧异步加载，就绪与否由 UI 客户端主动上报。
type HubWidgetAdapter struct {
	pusher WidgetPusher
}

func NewHubWidgetAdapter(pusher WidgetPusher) *HubWidgetAdapter {
	return &HubWidgetAdapter{pusher: pusher}
}

var _ port.Widget = (*HubWidgetAdapter)(nil)

func (a *HubWidgetAdapter) Ready() bool {
	return a.pusher.WidgetReady()
}

func (a *HubWidgetAdapter) Open(ctx context.Context, req port.WidgetOpenRequest) error {
	a.pusher.PushEvent(ctx, "open_payment_widget", req)
	return nil
}

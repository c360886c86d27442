// internal/service/checkout/port/widget.go
package port

import "context"

// WidgetOpenRequest 携带打开内嵌支付组件所需的短期令牌。
type WidgetOpenRequest struct {
	Token   string `json:"token"`
	OrderID string `json:"order_id"`
	Amount  int64  `json:"amount"`
}

// Widget 是内嵌第三方支付组件的桥。
// 组件脚本异步加载，交易确认到达时可能尚未就绪——Ready 为 false 时
// 调用方以有界的固定退避重试 Open，而不是手写递归超时。
type Widget interface {
	Ready() bool
	Open(ctx context.Context, req WidgetOpenRequest) error
}

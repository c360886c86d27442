// internal/service/checkout/domain/errors.go
package domain

import "errors"

var (
	// ErrConfigurationClosed 表示配置界面不在打开状态
	ErrConfigurationClosed = errors.New("configuration view is not open")
	// ErrCameraBusy 表示摄像头当前不接受该操作
	ErrCameraBusy = errors.New("camera is busy")
	// ErrCartEmpty 表示空购物车不允许发起结账（本地前置检查，不上通道）
	ErrCartEmpty = errors.New("cart is empty")
	// ErrWidgetOpen 表示支付组件已打开，新的尝试被拒绝
	ErrWidgetOpen = errors.New("payment widget is already open")
	// ErrNoActivePayment 表示当前没有可操作的支付会话
	ErrNoActivePayment = errors.New("no active payment session")
)

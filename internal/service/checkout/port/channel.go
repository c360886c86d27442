// internal/service/checkout/port/channel.go
package port

import (
	"context"

	"kiosk/internal/service/checkout/domain"
)

// CreatePaymentRequest 是发给支付网关的创建交易命令。
type CreatePaymentRequest struct {
	TransactionID string            `json:"transaction_id"`
	Items         []domain.CartItem `json:"items"`
	GrossAmount   int64             `json:"gross_amount"`
	Currency      string            `json:"currency"`
	CustomerName  string            `json:"customer_name"`
	CustomerEmail string            `json:"customer_email"`
}

// Channel 是到检测后端与支付网关的 fire-and-forget 命令通道。
// 所有方法只负责把命令发出去；结果以独立的入站事件返回（或永远不回来）。
type Channel interface {
	InitializeCamera(ctx context.Context, deviceID int) error
	ReleaseCamera(ctx context.Context) error
	SwitchCamera(ctx context.Context, deviceID int) error

	ChangeModel(ctx context.Context, modelID string) error
	RequestModelLabels(ctx context.Context) error
	RequestAvailableCameras(ctx context.Context) error
	RequestAvailableModels(ctx context.Context) error

	CreatePayment(ctx context.Context, req CreatePaymentRequest) error
	CheckPaymentStatus(ctx context.Context, orderID string) error
	CancelPayment(ctx context.Context, orderID string) error

	ClearCart(ctx context.Context) error
	RemoveItem(ctx context.Context, productID string) error
}

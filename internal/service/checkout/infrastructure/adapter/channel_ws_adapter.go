// internal/service/checkout/infrastructure/adapter/channel_ws_adapter.go
package adapter

import (
	"context"

	"kiosk/internal/pkg/ws"
	"kiosk/internal/service/checkout/domain"
	"kiosk/internal/service/checkout/port"
)

// WsChannelAdapter 把命令端口落到 WebSocket 事件通道上。
// 每个方法只负责把对应的命令帧发出去；确认以独立的入站事件返回。
type WsChannelAdapter struct {
	client *ws.Client
}

func NewWsChannelAdapter(client *ws.Client) *WsChannelAdapter {
	return &WsChannelAdapter{client: client}
}

var _ port.Channel = (*WsChannelAdapter)(nil)

func (a *WsChannelAdapter) InitializeCamera(_ context.Context, deviceID int) error {
	return a.client.Emit(domain.CmdInitializeCamera, map[string]int{"camera_index": deviceID})
}

func (a *WsChannelAdapter) ReleaseCamera(_ context.Context) error {
	return a.client.Emit(domain.CmdReleaseCamera, map[string]interface{}{})
}

func (a *WsChannelAdapter) SwitchCamera(_ context.Context, deviceID int) error {
	return a.client.Emit(domain.CmdSwitchCamera, map[string]int{"camera_index": deviceID})
}

func (a *WsChannelAdapter) ChangeModel(_ context.Context, modelID string) error {
	return a.client.Emit(domain.CmdChangeModel, map[string]string{"model_id": modelID})
}

func (a *WsChannelAdapter) RequestModelLabels(_ context.Context) error {
	return a.client.Emit(domain.CmdGetModelLabels, map[string]interface{}{})
}

func (a *WsChannelAdapter) RequestAvailableCameras(_ context.Context) error {
	return a.client.Emit(domain.CmdGetCameras, map[string]interface{}{})
}

func (a *WsChannelAdapter) RequestAvailableModels(_ context.Context) error {
	return a.client.Emit(domain.CmdGetModels, map[string]interface{}{})
}

func (a *WsChannelAdapter) CreatePayment(_ context.Context, req port.CreatePaymentRequest) error {
	return a.client.Emit(domain.CmdCreatePayment, req)
}

func (a *WsChannelAdapter) CheckPaymentStatus(_ context.Context, orderID string) error {
	return a.client.Emit(domain.CmdCheckPaymentStatus, map[string]string{"order_id": orderID})
}

func (a *WsChannelAdapter) CancelPayment(_ context.Context, orderID string) error {
	return a.client.Emit(domain.CmdCancelPayment, map[string]string{"order_id": orderID})
}

func (a *WsChannelAdapter) ClearCart(_ context.Context) error {
	return a.client.Emit(domain.CmdClearCart, map[string]interface{}{})
}

func (a *WsChannelAdapter) RemoveItem(_ context.Context, productID string) error {
	return a.client.Emit(domain.CmdRemoveItem, map[string]string{"product_id": productID})
}

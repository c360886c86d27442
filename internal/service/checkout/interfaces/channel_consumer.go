// internal/service/checkout/interfaces/channel_consumer.go
package interfaces

import (
	"context"

	"kiosk/internal/pkg/logger"
	"kiosk/internal/pkg/ws"
	"kiosk/internal/service/checkout/application"
	"kiosk/internal/service/checkout/domain"
)

// ChannelConsumer 是事件通道入站帧的唯一消费者。
// 帧在边界处解码校验，失败即丢弃；合法事件按类型分发给协调器。
type ChannelConsumer struct {
	client   *ws.Client
	camera   *application.CameraCoordinator
	payments *application.PaymentController
}

func NewChannelConsumer(client *ws.Client, camera *application.CameraCoordinator, payments *application.PaymentController) *ChannelConsumer {
	c := &ChannelConsumer{client: client, camera: camera, payments: payments}
	client.OnFrame(c.dispatch)
	return c
}

// Run 驱动底层连接循环，直到 ctx 取消。
func (c *ChannelConsumer) Run(ctx context.Context) error {
	return c.client.Run(ctx)
}

func (c *ChannelConsumer) dispatch(frame ws.Frame) {
	ctx := context.Background()

	event, err := domain.DecodeEvent(frame.Event, frame.Data)
	if err != nil {
		// 缺必需字段的帧在这里止步，绝不进入状态机
		logger.Ctx(ctx).Warn().Err(err).Str("event", frame.Event).Msg("rejected malformed event")
		return
	}

	switch evt := event.(type) {
	case *domain.CameraAckEvent:
		c.camera.HandleCameraAck(ctx, evt)
	case *domain.CameraReleasedEvent:
		c.camera.HandleCameraReleased(ctx, evt)
	case *domain.ModelChangedEvent:
		c.camera.HandleModelChanged(ctx, evt)
	case *domain.ModelLabelsEvent:
		c.camera.HandleModelLabels(ctx, evt)
	case *domain.AvailableCamerasEvent:
		c.camera.HandleAvailableCameras(ctx, evt)
	case *domain.AvailableModelsEvent:
		c.camera.HandleAvailableModels(ctx, evt)
	case *domain.PaymentCreatedEvent:
		c.payments.HandlePaymentCreated(ctx, evt)
	case *domain.PaymentErrorEvent:
		c.payments.HandlePaymentError(ctx, evt)
	case *domain.PaymentStatusEvent:
		c.payments.HandlePaymentStatus(ctx, evt)
	case *domain.PaymentCompletedEvent:
		c.payments.HandlePaymentCompleted(ctx, evt)
	case *domain.CartUpdateEvent:
		c.payments.HandleCartUpdate(ctx, evt)
	}
}

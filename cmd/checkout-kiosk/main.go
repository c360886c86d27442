package main

import (
	"context"
	"sync"

	"kiosk/internal/pkg/bootstrap"
	"kiosk/internal/pkg/logger"
	kioskredis "kiosk/internal/pkg/redis"
	"kiosk/internal/pkg/ws"
	"kiosk/internal/service/checkout/application"
	"kiosk/internal/service/checkout/domain"
	"kiosk/internal/service/checkout/infrastructure/adapter"
	"kiosk/internal/service/checkout/interfaces"

	"go.opentelemetry.io/otel"
)

const serviceName = "checkout-kiosk"

func main() {
	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) []func(ctx context.Context) error {
			cfg := appCtx.Config

			// 基础设施
			redisClient, err := kioskredis.NewClient(cfg.Infra.Redis.Addr)
			if err != nil {
				logger.Logger().Fatal().Err(err).Msg("failed to connect to redis")
			}
			wsClient := ws.NewClient(cfg.Infra.Backend.WsURL)
			hub := interfaces.NewHub()

			// 出站适配器
			channel := adapter.NewWsChannelAdapter(wsClient)
			store := adapter.NewRedisConfigStore(redisClient)
			recorder := adapter.NewKafkaEventRecorder(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.EventsTopic)
			widget := adapter.NewHubWidgetAdapter(hub)

			// 应用层：两个协调器共享同一个 Operation Tracker
			tracer := otel.Tracer(serviceName)
			tracker := domain.NewTracker()
			camera := application.NewCameraCoordinator(
				tracker, channel, store, hub, recorder, tracer,
				cfg.CameraAcquireTimeout(), cfg.ModelTimeout(),
			)
			payments := application.NewPaymentController(
				tracker, channel, hub, widget, recorder, tracer,
				cfg.PaymentCreateTimeout(),
				cfg.Checkout.Currency, cfg.Checkout.CustomerName, cfg.Checkout.CustomerEmail,
			)

			// 入站分发与 HTTP 意图
			consumer := interfaces.NewChannelConsumer(wsClient, camera, payments)
			handler := interfaces.NewCheckoutHandler(camera, payments, hub)
			handler.RegisterRoutes(appCtx.Mux)

			// 连接（含重连）成功后启动一次会话初始化
			var startOnce sync.Once
			wsClient.OnConnect(func() {
				startOnce.Do(func() {
					go camera.Start(context.Background())
				})
			})

			return []func(ctx context.Context) error{
				hub.Run,
				consumer.Run,
				func(ctx context.Context) error {
					<-ctx.Done()
					recorder.Close()
					redisClient.Close()
					return nil
				},
			}
		},
	})
}

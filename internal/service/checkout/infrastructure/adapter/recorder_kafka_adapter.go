// internal/service/checkout/infrastructure/adapter/recorder_kafka_adapter.go
package adapter

import (
	"context"
	"encoding/json"

	"kiosk/internal/pkg/logger"
	"kiosk/internal/pkg/mq"
	"kiosk/internal/service/checkout/port"

	"github.com/segmentio/kafka-go"
)

// KafkaEventRecorder 把结账审计记录异步写入 Kafka。
// 审计流只服务门店后台，写失败记日志即止，绝不反灌进协调器。
type KafkaEventRecorder struct {
	writer *kafka.Writer
}

func NewKafkaEventRecorder(brokers []string, topic string) *KafkaEventRecorder {
	return &KafkaEventRecorder{writer: mq.NewKafkaWriter(brokers, topic)}
}

var _ port.EventRecorder = (*KafkaEventRecorder)(nil)

func (r *KafkaEventRecorder) Record(ctx context.Context, event port.CheckoutEvent) {
	value, err := json.Marshal(event)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("type", event.Type).Msg("failed to marshal audit event")
		return
	}
	key := []byte(event.SessionID)
	if len(key) == 0 {
		key = []byte(event.Type)
	}
	if err := mq.ProduceMessage(ctx, r.writer, key, value); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("type", event.Type).Msg("failed to produce audit event")
	}
}

func (r *KafkaEventRecorder) Close() error {
	return r.writer.Close()
}

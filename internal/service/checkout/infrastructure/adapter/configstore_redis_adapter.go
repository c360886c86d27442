// internal/service/checkout/infrastructure/adapter/configstore_redis_adapter.go
package adapter

import (
	"context"
	"encoding/json"
	"time"

	kioskredis "kiosk/internal/pkg/redis"
	"kiosk/internal/service/checkout/port"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

const deviceConfigKey = "kiosk:device_config"

// RedisConfigStore 把已提交的设备/模型选择持久化到 Redis。
// 整份配置存成一个 JSON 文档，原子读写，没有部分更新。
type RedisConfigStore struct {
	rdb     *goredis.Client
	timeout time.Duration
}

func NewRedisConfigStore(client *kioskredis.Client) *RedisConfigStore {
	return &RedisConfigStore{rdb: client.GetClient(), timeout: 3 * time.Second}
}

var _ port.ConfigStore = (*RedisConfigStore)(nil)

// Load 读取已提交的配置。键不存在返回 (nil, nil)，首次启动走默认值。
func (s *RedisConfigStore) Load(ctx context.Context) (*port.DeviceConfig, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.rdb.Get(ctx, deviceConfigKey).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load device config")
	}

	var cfg port.DeviceConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrap(err, "device config is corrupted")
	}
	return &cfg, nil
}

// Save 写入配置。写失败必须让保存流程中止——存储先行，硬件在后。
func (s *RedisConfigStore) Save(ctx context.Context, cfg *port.DeviceConfig) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := json.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal device config")
	}
	if err := s.rdb.Set(ctx, deviceConfigKey, raw, 0).Err(); err != nil {
		return errors.Wrap(err, "failed to save device config")
	}
	return nil
}

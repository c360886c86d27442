package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  service_name: test-kiosk\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "test-kiosk", cfg.App.ServiceName)
	assert.Equal(t, 8090, cfg.App.Port)
	assert.Equal(t, "localhost:6379", cfg.Infra.Redis.Addr)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Infra.Kafka.Brokers)
	assert.Equal(t, "checkout-events", cfg.Infra.Kafka.EventsTopic)
	assert.Equal(t, "IDR", cfg.Checkout.Currency)
	assert.Equal(t, 30*time.Second, cfg.CameraAcquireTimeout())
	assert.Equal(t, time.Minute, cfg.ModelTimeout())
	assert.Equal(t, 30*time.Second, cfg.PaymentCreateTimeout())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  port: 9000\n"), 0o644))

	t.Setenv("KIOSK_PORT", "9100")
	t.Setenv("REDIS_ADDR", "redis.internal:6379")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.App.Port)
	assert.Equal(t, "redis.internal:6379", cfg.Infra.Redis.Addr)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Infra.Kafka.Brokers)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

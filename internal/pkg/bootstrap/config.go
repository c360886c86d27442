// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config 是整个进程的静态配置。
// 来源是一个 YAML 文件，个别字段允许用环境变量覆盖，方便容器化部署。
type Config struct {
	App struct {
		ServiceName string `yaml:"service_name"`
		Port        int    `yaml:"port"`
		LogLevel    string `yaml:"log_level"`
	} `yaml:"app"`

	Infra struct {
		Jaeger struct {
			Endpoint string `yaml:"endpoint"`
		} `yaml:"jaeger"`
		Redis struct {
			Addr string `yaml:"addr"`
		} `yaml:"redis"`
		Kafka struct {
			Brokers     []string `yaml:"brokers"`
			EventsTopic string   `yaml:"events_topic"`
		} `yaml:"kafka"`
		Backend struct {
			// 检测后端的 WebSocket 事件通道地址
			WsURL string `yaml:"ws_url"`
		} `yaml:"backend"`
	} `yaml:"infra"`

	Checkout struct {
		Currency      string `yaml:"currency"`
		CustomerName  string `yaml:"customer_name"`
		CustomerEmail string `yaml:"customer_email"`

		CameraAcquireTimeoutSec int `yaml:"camera_acquire_timeout_sec"`
		ModelTimeoutSec         int `yaml:"model_timeout_sec"`
		PaymentCreateTimeoutSec int `yaml:"payment_create_timeout_sec"`
	} `yaml:"checkout"`
}

var (
	currentConfig Config
	configOnce    sync.Once
)

// LoadConfig 从指定路径加载配置并应用环境变量覆盖。
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}
	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	currentConfig = cfg
	return &cfg, nil
}

// GetCurrentConfig 返回当前生效的配置。
// 未显式加载时回退到默认值，保证单元测试无需配置文件即可运行。
func GetCurrentConfig() *Config {
	configOnce.Do(func() {
		if currentConfig.App.ServiceName == "" {
			currentConfig.applyDefaults()
			currentConfig.applyEnvOverrides()
		}
	})
	return &currentConfig
}

func (c *Config) applyDefaults() {
	if c.App.ServiceName == "" {
		c.App.ServiceName = "checkout-kiosk"
	}
	if c.App.Port == 0 {
		c.App.Port = 8090
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Infra.Jaeger.Endpoint == "" {
		c.Infra.Jaeger.Endpoint = "http://localhost:14268/api/traces"
	}
	if c.Infra.Redis.Addr == "" {
		c.Infra.Redis.Addr = "localhost:6379"
	}
	if len(c.Infra.Kafka.Brokers) == 0 {
		c.Infra.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Infra.Kafka.EventsTopic == "" {
		c.Infra.Kafka.EventsTopic = "checkout-events"
	}
	if c.Infra.Backend.WsURL == "" {
		c.Infra.Backend.WsURL = "ws://localhost:5000/events"
	}
	if c.Checkout.Currency == "" {
		c.Checkout.Currency = "IDR"
	}
	if c.Checkout.CustomerName == "" {
		c.Checkout.CustomerName = "Self Checkout Customer"
	}
	if c.Checkout.CustomerEmail == "" {
		c.Checkout.CustomerEmail = "customer@selfcheckout.local"
	}
	if c.Checkout.CameraAcquireTimeoutSec == 0 {
		c.Checkout.CameraAcquireTimeoutSec = 30
	}
	if c.Checkout.ModelTimeoutSec == 0 {
		c.Checkout.ModelTimeoutSec = 60
	}
	if c.Checkout.PaymentCreateTimeoutSec == 0 {
		c.Checkout.PaymentCreateTimeoutSec = 30
	}
}

func (c *Config) applyEnvOverrides() {
	if v := getEnv("KIOSK_PORT", ""); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.App.Port = port
		}
	}
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		c.App.LogLevel = v
	}
	if v := getEnv("JAEGER_ENDPOINT", ""); v != "" {
		c.Infra.Jaeger.Endpoint = v
	}
	if v := getEnv("REDIS_ADDR", ""); v != "" {
		c.Infra.Redis.Addr = v
	}
	if v := getEnv("KAFKA_BROKERS", ""); v != "" {
		c.Infra.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getEnv("BACKEND_WS_URL", ""); v != "" {
		c.Infra.Backend.WsURL = v
	}
}

// CameraAcquireTimeout 返回硬件占用操作的截止时长。
func (c *Config) CameraAcquireTimeout() time.Duration {
	return time.Duration(c.Checkout.CameraAcquireTimeoutSec) * time.Second
}

// ModelTimeout 返回模型类操作的宽松截止时长。
func (c *Config) ModelTimeout() time.Duration {
	return time.Duration(c.Checkout.ModelTimeoutSec) * time.Second
}

// PaymentCreateTimeout 返回创建交易操作的截止时长。
func (c *Config) PaymentCreateTimeout() time.Duration {
	return time.Duration(c.Checkout.PaymentCreateTimeoutSec) * time.Second
}

// getEnv 是一个内部辅助函数，从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// internal/service/checkout/port/configstore.go
package port

import "context"

// DeviceConfig 是已提交的设备/模型选择，配置存储是它的持久化事实来源。
type DeviceConfig struct {
	CameraIndex int    `json:"camera_index"`
	ModelID     string `json:"model_id"`
}

// ConfigStore 是外部持久化配置存储。
// 保存设置时先写存储、写成功才碰硬件；写失败是本地错误，保存中止。
type ConfigStore interface {
	Load(ctx context.Context) (*DeviceConfig, error)
	Save(ctx context.Context, cfg *DeviceConfig) error
}

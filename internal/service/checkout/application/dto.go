// internal/service/checkout/application/dto.go
package application

import "kiosk/internal/service/checkout/domain"

// ModelSnapshot 是检测模型状态的只读视图。
type ModelSnapshot struct {
	Status        string   `json:"status"`
	ActiveModelID string   `json:"active_model_id"`
	Labels        []string `json:"labels"`
}

// CameraSnapshot 是摄像头资源与配置会话的只读视图。
type CameraSnapshot struct {
	Owner             string              `json:"owner"`
	Phase             string              `json:"phase"`
	SelectedDeviceID  int                 `json:"selected_device_id"`
	CommittedDeviceID int                 `json:"committed_device_id"`
	Enabled           bool                `json:"enabled"`
	ConfigOpen        bool                `json:"config_open"`
	ActiveTab         string              `json:"active_tab"`
	AvailableCameras  []domain.CameraInfo `json:"available_cameras"`
	Model             ModelSnapshot       `json:"model"`
	AvailableModels   []domain.ModelInfo  `json:"available_models"`
}

// PaymentSnapshot 是结账会话的只读视图。
type PaymentSnapshot struct {
	Status           string            `json:"status"`
	OrderID          string            `json:"order_id,omitempty"`
	TransactionID    string            `json:"transaction_id,omitempty"`
	RemainingSeconds int               `json:"remaining_seconds"`
	WidgetOpen       bool              `json:"widget_open"`
	Amount           int64             `json:"amount"`
	Items            []domain.CartItem `json:"items,omitempty"`
}

// CartSnapshot 是购物车镜像的只读视图。
type CartSnapshot struct {
	Items []domain.CartItem `json:"items"`
	Total int64             `json:"total"`
}

// StateSnapshot 聚合整机状态，供 UI 一次拉取。
type StateSnapshot struct {
	Camera  CameraSnapshot  `json:"camera"`
	Payment PaymentSnapshot `json:"payment"`
	Cart    CartSnapshot    `json:"cart"`
}

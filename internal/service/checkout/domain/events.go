// internal/service/checkout/domain/events.go
//
// 通道契约：入站事件在边界处被解码成带显式成功/失败判别式的类型化变体，
// 必需字段校验通过之后才允许触碰任何状态机。
// 通道不携带请求标识，关联完全依赖"每类资源最多一个在途 Operation"。
package domain

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// 入站事件名
const (
	EvtCameraInitialized   = "camera_initialized"
	EvtCameraSwitched      = "camera_switched"
	EvtCameraReleased      = "camera_killed_for_config"
	EvtModelChanged        = "model_changed"
	EvtModelLabels         = "model_labels"
	EvtAvailableCameras    = "available_cameras"
	EvtAvailableModels     = "available_models"
	EvtPaymentCreated      = "payment_created"
	EvtPaymentError        = "payment_error"
	EvtPaymentStatusUpdate = "payment_status_update"
	EvtPaymentCompleted    = "payment_completed"
	EvtPaymentStatus       = "payment_status_checked"
	EvtCartUpdate          = "cart_update"
)

// 出站命令名
const (
	CmdInitializeCamera   = "initialize_camera"
	CmdReleaseCamera      = "kill_camera_for_config"
	CmdSwitchCamera       = "switch_camera"
	CmdChangeModel        = "change_model"
	CmdGetModelLabels     = "get_model_labels"
	CmdGetCameras         = "get_available_cameras"
	CmdGetModels          = "get_available_models"
	CmdCreatePayment      = "create_payment"
	CmdCheckPaymentStatus = "check_payment_status"
	CmdCancelPayment      = "cancel_payment"
	CmdClearCart          = "clear_cart"
	CmdRemoveItem         = "remove_item"
)

// CameraInfo 描述一个可用的摄像头设备。
type CameraInfo struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

// ModelInfo 描述一个可用的检测模型。
type ModelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CameraAckEvent 覆盖 camera_initialized / camera_switched 两类硬件确认。
type CameraAckEvent struct {
	Success     bool   `json:"success"`
	CameraIndex *int   `json:"camera_index"`
	Error       string `json:"error,omitempty"`
}

func (e *CameraAckEvent) validate() error {
	if e.Success && e.CameraIndex == nil {
		return errors.New("camera ack reports success but carries no camera_index")
	}
	if !e.Success && e.Error == "" {
		e.Error = "backend reported failure without detail"
	}
	return nil
}

// CameraReleasedEvent 确认摄像头已为配置会话释放。
type CameraReleasedEvent struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ModelChangedEvent 确认模型切换结果。
type ModelChangedEvent struct {
	Success bool   `json:"success"`
	ModelID string `json:"model_id"`
	Error   string `json:"error,omitempty"`
}

func (e *ModelChangedEvent) validate() error {
	if e.Success && e.ModelID == "" {
		return errors.New("model_changed reports success but carries no model_id")
	}
	return nil
}

// ModelLabelsEvent 携带已加载的类别标签序列。
type ModelLabelsEvent struct {
	Loaded bool     `json:"loaded"`
	Labels []string `json:"labels"`
	Error  string   `json:"error,omitempty"`
}

// AvailableCamerasEvent 是设备清单查询的响应。
type AvailableCamerasEvent struct {
	Success bool         `json:"success"`
	Cameras []CameraInfo `json:"cameras"`
	Error   string       `json:"error,omitempty"`
}

// AvailableModelsEvent 是模型清单查询的响应。
type AvailableModelsEvent struct {
	Success bool        `json:"success"`
	Models  []ModelInfo `json:"models"`
	Error   string      `json:"error,omitempty"`
}

// PaymentCreatedEvent 确认网关已创建交易。
type PaymentCreatedEvent struct {
	Token         string `json:"snap_token"`
	OrderID       string `json:"order_id"`
	TransactionID string `json:"transaction_id"`
	// ExpiryUnix 是绝对过期时间（Unix 秒）
	ExpiryUnix  int64 `json:"expiry_time"`
	GrossAmount int64 `json:"gross_amount"`
}

func (e *PaymentCreatedEvent) validate() error {
	if e.Token == "" || e.OrderID == "" {
		return errors.New("payment_created missing snap_token or order_id")
	}
	if e.ExpiryUnix <= 0 {
		return errors.New("payment_created missing expiry_time")
	}
	return nil
}

// ExpiresAt 把过期时间换算成 time.Time。
func (e *PaymentCreatedEvent) ExpiresAt() time.Time {
	return time.Unix(e.ExpiryUnix, 0)
}

// PaymentErrorEvent 是网关的显式失败。
type PaymentErrorEvent struct {
	Message string `json:"message"`
}

func (e *PaymentErrorEvent) validate() error {
	if e.Message == "" {
		e.Message = "payment gateway reported an unspecified error"
	}
	return nil
}

// PaymentStatusEvent 覆盖网关带外推送的状态更新与状态查询响应。
// 状态映射沿用网关语义: settlement/capture → 成功,
// pending/challenge → 等待, cancel/deny/expire/failure → 失败。
type PaymentStatusEvent struct {
	OrderID           string `json:"order_id"`
	TransactionStatus string `json:"transaction_status"`
	Successful        bool   `json:"payment_successful"`
	Failed            bool   `json:"payment_failed"`
}

func (e *PaymentStatusEvent) validate() error {
	if e.OrderID == "" {
		return errors.New("payment status event missing order_id")
	}
	if e.Successful && e.Failed {
		return errors.New("payment status event is contradictory: both successful and failed")
	}
	return nil
}

// PaymentCompletedEvent 是网关的最终完成确认。
type PaymentCompletedEvent struct {
	OrderID string `json:"order_id"`
}

// CartUpdateEvent 携带检测后端购物车的全量内容。
type CartUpdateEvent struct {
	Items []CartItem `json:"items"`
	Total int64      `json:"total"`
}

// DecodeEvent 在边界处把原始帧数据解码并校验成类型化变体。
// 任何缺失必需字段的帧都在这里被拒绝，绝不进入状态机。
func DecodeEvent(event string, data json.RawMessage) (interface{}, error) {
	switch event {
	case EvtCameraInitialized, EvtCameraSwitched:
		var e CameraAckEvent
		if err := decodeInto(data, &e); err != nil {
			return nil, err
		}
		if err := e.validate(); err != nil {
			return nil, err
		}
		return &e, nil
	case EvtCameraReleased:
		var e CameraReleasedEvent
		if err := decodeInto(data, &e); err != nil {
			return nil, err
		}
		return &e, nil
	case EvtModelChanged:
		var e ModelChangedEvent
		if err := decodeInto(data, &e); err != nil {
			return nil, err
		}
		if err := e.validate(); err != nil {
			return nil, err
		}
		return &e, nil
	case EvtModelLabels:
		var e ModelLabelsEvent
		if err := decodeInto(data, &e); err != nil {
			return nil, err
		}
		return &e, nil
	case EvtAvailableCameras:
		var e AvailableCamerasEvent
		if err := decodeInto(data, &e); err != nil {
			return nil, err
		}
		return &e, nil
	case EvtAvailableModels:
		var e AvailableModelsEvent
		if err := decodeInto(data, &e); err != nil {
			return nil, err
		}
		return &e, nil
	case EvtPaymentCreated:
		var e PaymentCreatedEvent
		if err := decodeInto(data, &e); err != nil {
			return nil, err
		}
		if err := e.validate(); err != nil {
			return nil, err
		}
		return &e, nil
	case EvtPaymentError:
		var e PaymentErrorEvent
		if err := decodeInto(data, &e); err != nil {
			return nil, err
		}
		if err := e.validate(); err != nil {
			return nil, err
		}
		return &e, nil
	case EvtPaymentStatusUpdate, EvtPaymentStatus:
		var e PaymentStatusEvent
		if err := decodeInto(data, &e); err != nil {
			return nil, err
		}
		if err := e.validate(); err != nil {
			return nil, err
		}
		return &e, nil
	case EvtPaymentCompleted:
		var e PaymentCompletedEvent
		if err := decodeInto(data, &e); err != nil {
			return nil, err
		}
		return &e, nil
	case EvtCartUpdate:
		var e CartUpdateEvent
		if err := decodeInto(data, &e); err != nil {
			return nil, err
		}
		return &e, nil
	default:
		return nil, errors.Errorf("unknown event %q", event)
	}
}

func decodeInto(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return errors.New("event carries no payload")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrap(err, "failed to decode event payload")
	}
	return nil
}

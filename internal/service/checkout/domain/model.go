// internal/service/checkout/domain/model.go
package domain

import (
	"errors"
	"time"
)

// DetectionModel 是摄像头管线所用检测模型的就绪状态。
// 它与摄像头资源平行、互相独立，作为单独的资源类别被追踪。
type DetectionModel struct {
	Status ModelStatus
	// Labels 仅在 Status == READY 时有效
	Labels []string
	// ActiveModelID 在首次成功加载前为空
	ActiveModelID string

	UpdatedAt time.Time
}

func NewDetectionModel() *DetectionModel {
	return &DetectionModel{
		Status:    ModelUninitialized,
		UpdatedAt: time.Now(),
	}
}

// BeginLoad 进入加载阶段（change_model 或 get_model_labels 命令即将发出）。
func (m *DetectionModel) BeginLoad() error {
	if m.Status == ModelInitializing {
		return errors.New("a model operation is already in progress")
	}
	m.Status = ModelInitializing
	m.touch()
	return nil
}

// CompleteChange 记录成功的模型切换。标签在随后的刷新中到达。
func (m *DetectionModel) CompleteChange(modelID string) {
	m.ActiveModelID = modelID
	m.Status = ModelReady
	m.touch()
}

// CompleteLabels 记录成功加载的标签序列。
func (m *DetectionModel) CompleteLabels(labels []string) {
	m.Labels = append([]string(nil), labels...)
	m.Status = ModelReady
	m.touch()
}

// Fail 记录显式的加载失败。
func (m *DetectionModel) Fail() {
	m.Status = ModelError
	m.touch()
}

// ClearLoading 只清除加载状态，不标记错误。
// 标签加载超时走这里：超时仅仅意味着指示器该消失了。
func (m *DetectionModel) ClearLoading() {
	if m.Status != ModelInitializing {
		return
	}
	if m.ActiveModelID != "" {
		m.Status = ModelReady
	} else {
		m.Status = ModelUninitialized
	}
	m.touch()
}

func (m *DetectionModel) touch() {
	m.UpdatedAt = time.Now()
}

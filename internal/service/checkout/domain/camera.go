// internal/service/checkout/domain/camera.go
package domain

import (
	"errors"
	"time"
)

// CameraResource 是共享摄像头设备的所有权与就绪状态。
//
// SelectedDeviceID 与 CommittedDeviceID 的分叉是整个协调逻辑的核心：
// 前者是配置界面里暂存的选择，后者是硬件上实际生效的设备。
// 两者只在配置会话打开期间允许不一致，在保存或取消时收敛。
type CameraResource struct {
	Owner CameraOwner
	Phase CameraPhase

	SelectedDeviceID  int
	CommittedDeviceID int
	// RollbackDeviceID 记录进入配置会话时的已提交设备，作为取消时的恢复目标
	RollbackDeviceID int

	// Enabled 是扫描界面的本地开关；保存配置后摄像头保持关闭，等待人工重新开启
	Enabled bool

	UpdatedAt time.Time
}

func NewCameraResource() *CameraResource {
	return &CameraResource{
		Owner:     OwnerNone,
		Phase:     PhaseIdle,
		UpdatedAt: time.Now(),
	}
}

// BeginConfiguration 把所有权移交给配置界面并进入释放阶段。
func (c *CameraResource) BeginConfiguration() error {
	if c.Owner == OwnerConfiguration {
		return errors.New("configuration context already owns the camera")
	}
	c.Owner = OwnerConfiguration
	c.Phase = PhaseReleasing
	c.RollbackDeviceID = c.CommittedDeviceID
	c.SelectedDeviceID = c.CommittedDeviceID
	c.touch()
	return nil
}

// AbortConfiguration 在释放命令发送失败时回退所有权。
func (c *CameraResource) AbortConfiguration() {
	c.Owner = OwnerScanning
	c.Phase = PhaseIdle
	c.touch()
}

// ConfirmRelease 确认硬件已释放，设备选择可以开始。
func (c *CameraResource) ConfirmRelease() error {
	if c.Phase != PhaseReleasing {
		return errors.New("release confirmed while not in releasing phase")
	}
	c.Phase = PhaseIdle
	c.touch()
	return nil
}

// StageDevice 暂存配置界面里选中的设备。不发出任何命令——选择只是 staged。
func (c *CameraResource) StageDevice(deviceID int) error {
	if c.Owner != OwnerConfiguration {
		return errors.New("device can only be staged while configuration context owns the camera")
	}
	if c.Phase != PhaseIdle {
		return errors.New("device can only be staged while the camera is idle")
	}
	c.SelectedDeviceID = deviceID
	c.touch()
	return nil
}

// Diverged 判断暂存选择是否偏离了已提交设备。
// 只有分叉才触发硬件重新占用；相等时关闭/换页不发任何命令。
func (c *CameraResource) Diverged() bool {
	return c.SelectedDeviceID != c.CommittedDeviceID
}

// BeginAcquire 进入占用阶段（初始化/恢复命令即将发出）。
func (c *CameraResource) BeginAcquire() error {
	if c.Phase != PhaseIdle {
		return errors.New("camera can only be acquired from idle phase")
	}
	c.Phase = PhaseAcquiring
	c.touch()
	return nil
}

// BeginSwitch 进入占用阶段，允许从活跃画面直接切换设备。
func (c *CameraResource) BeginSwitch() error {
	if c.Phase != PhaseIdle && c.Phase != PhaseActive {
		return errors.New("camera can only be switched while idle or active")
	}
	c.Phase = PhaseAcquiring
	c.touch()
	return nil
}

// CompleteAcquire 是已解决 Operation 的终态效果：提交设备并把所有权还给扫描界面。
// CommittedDeviceID 只会在这里变化，绝不乐观更新。
func (c *CameraResource) CompleteAcquire(deviceID int) {
	c.CommittedDeviceID = deviceID
	c.SelectedDeviceID = deviceID
	c.Phase = PhaseActive
	c.Owner = OwnerScanning
	c.touch()
}

// FailAcquire 进入瞬态错误阶段。错误只用于通知展示，
// 协调器在通知发出后立即调用 ClearError 回落到 IDLE，保证 UI 始终可交互。
func (c *CameraResource) FailAcquire() {
	c.Phase = PhaseError
	c.touch()
}

// AbortAcquire 在命令未能发出或操作被取代时撤销占用阶段。
func (c *CameraResource) AbortAcquire() {
	if c.Phase == PhaseAcquiring {
		c.Phase = PhaseIdle
		c.touch()
	}
}

// ClearError 把瞬态错误清回 IDLE。
func (c *CameraResource) ClearError() {
	if c.Phase == PhaseError {
		c.Phase = PhaseIdle
		c.touch()
	}
}

// ReturnToScanning 在无分叉关闭配置时立即归还所有权，无需任何命令。
func (c *CameraResource) ReturnToScanning() {
	c.Owner = OwnerScanning
	c.SelectedDeviceID = c.CommittedDeviceID
	if c.Phase == PhaseReleasing || c.Phase == PhaseError {
		c.Phase = PhaseIdle
	}
	c.touch()
}

func (c *CameraResource) touch() {
	c.UpdatedAt = time.Now()
}

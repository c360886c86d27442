// internal/service/checkout/application/camera_coordinator.go
package application

import (
	"context"
	"sync"
	"time"

	"kiosk/internal/pkg/logger"
	"kiosk/internal/service/checkout/domain"
	"kiosk/internal/service/checkout/port"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TabDevices 是配置界面中的设备选择页
	TabDevices = "devices"

	// 模型切换成功后清单/标签刷新的固定安置延迟，
	// 用于吸收后端重载延迟。这是个常量，本身不作为 Operation 追踪。
	modelSettleDelay = 1500 * time.Millisecond
)

// CameraCoordinator 是共享摄像头设备与检测模型的资源协调器。
// 它在扫描上下文与配置上下文之间仲裁独占所有权，
// 所有硬件命令都经由 Operation Tracker 绑定截止时间与恰好一次的终态效果。
type CameraCoordinator struct {
	mu sync.Mutex

	tracker *domain.Tracker
	camera  *domain.CameraResource
	model   *domain.DetectionModel

	channel  port.Channel
	store    port.ConfigStore
	notifier port.Notifier
	recorder port.EventRecorder
	tracer   trace.Tracer

	acquireTimeout time.Duration
	modelTimeout   time.Duration
	settleDelay    time.Duration

	configOpen bool
	activeTab  string
	// pendingTab 是被挂起的目标页：换页触发硬件恢复时，
	// 页切换本身推迟到 Operation 解决后才执行
	pendingTab string

	availableCameras []domain.CameraInfo
	availableModels  []domain.ModelInfo
}

func NewCameraCoordinator(
	tracker *domain.Tracker,
	channel port.Channel,
	store port.ConfigStore,
	notifier port.Notifier,
	recorder port.EventRecorder,
	tracer trace.Tracer,
	acquireTimeout time.Duration,
	modelTimeout time.Duration,
) *CameraCoordinator {
	return &CameraCoordinator{
		tracker:        tracker,
		camera:         domain.NewCameraResource(),
		model:          domain.NewDetectionModel(),
		channel:        channel,
		store:          store,
		notifier:       notifier,
		recorder:       recorder,
		tracer:         tracer,
		acquireTimeout: acquireTimeout,
		modelTimeout:   modelTimeout,
		settleDelay:    modelSettleDelay,
		activeTab:      TabDevices,
	}
}

// Start 在会话开始时运行一次：读取持久化配置、请求设备/模型清单、
// 发起初始的摄像头占用。配置存储是已提交选择的事实来源，只在这里读取。
func (c *CameraCoordinator) Start(ctx context.Context) {
	ctx, span := c.tracer.Start(ctx, "camera.Start")
	defer span.End()

	cfg, err := c.store.Load(ctx)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("failed to load committed configuration, falling back to device 0")
		c.notifier.Notify(ctx, port.LevelError, "Saved configuration could not be loaded, using defaults.")
		cfg = &port.DeviceConfig{CameraIndex: 0}
	}
	if cfg == nil {
		// 存储里还没有配置（首次启动）：静默走默认设备
		logger.Ctx(ctx).Info().Msg("no committed configuration found, starting with device 0")
		cfg = &port.DeviceConfig{CameraIndex: 0}
	}

	c.mu.Lock()
	c.camera.CommittedDeviceID = cfg.CameraIndex
	c.camera.SelectedDeviceID = cfg.CameraIndex
	c.camera.Owner = domain.OwnerScanning
	c.camera.Enabled = true
	c.model.ActiveModelID = cfg.ModelID
	deviceID := cfg.CameraIndex
	c.mu.Unlock()

	// 清单查询不绑定 Operation：响应只是刷新本地列表，丢了也无妨
	if err := c.channel.RequestAvailableCameras(ctx); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("failed to request camera list")
	}
	if err := c.channel.RequestAvailableModels(ctx); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("failed to request model list")
	}

	if err := c.startAcquire(ctx, domain.OpCameraInitialize, deviceID, false); err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("initial camera acquisition failed to start")
	}
}

// OpenConfiguration 把摄像头所有权移交配置上下文并发出释放命令。
func (c *CameraCoordinator) OpenConfiguration(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "camera.OpenConfiguration")
	defer span.End()

	c.mu.Lock()
	if err := c.camera.BeginConfiguration(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.configOpen = true
	c.activeTab = TabDevices
	rollback := c.camera.RollbackDeviceID
	c.mu.Unlock()

	if err := c.channel.ReleaseCamera(ctx); err != nil {
		span.RecordError(err)
		c.mu.Lock()
		c.configOpen = false
		c.camera.AbortConfiguration()
		c.mu.Unlock()
		c.notifier.Notify(ctx, port.LevelError, "Could not reach the detection backend to open configuration.")
		return err
	}

	logger.Ctx(ctx).Info().Int("rollback_device", rollback).
		Msg("configuration session opened, camera release requested")
	c.pushState(ctx)
	return nil
}

// SelectDevice 暂存配置界面里的设备选择。不发出任何命令。
func (c *CameraCoordinator) SelectDevice(ctx context.Context, deviceID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.configOpen {
		return domain.ErrConfigurationClosed
	}
	if err := c.camera.StageDevice(deviceID); err != nil {
		return err
	}
	logger.Ctx(ctx).Info().Int("device", deviceID).Msg("device selection staged")
	return nil
}

// ChangeTab 处理配置界面内的页切换。
// 离开设备页且选择已偏离已提交设备时，先恢复已提交设备，
// 页切换被挂起到 Operation 解决；其余情况立即生效。
// 返回值表示切换是否被挂起。
func (c *CameraCoordinator) ChangeTab(ctx context.Context, tab string) (deferred bool, err error) {
	ctx, span := c.tracer.Start(ctx, "camera.ChangeTab")
	defer span.End()
	span.SetAttributes(attribute.String("tab", tab))

	c.mu.Lock()
	if !c.configOpen {
		c.mu.Unlock()
		return false, domain.ErrConfigurationClosed
	}
	leavingDevices := c.activeTab == TabDevices && tab != TabDevices
	needRestore := leavingDevices && c.camera.Diverged() && c.camera.Phase == domain.PhaseIdle
	if !needRestore {
		c.activeTab = tab
		c.mu.Unlock()
		return false, nil
	}
	c.pendingTab = tab
	restoreDevice := c.camera.CommittedDeviceID
	c.mu.Unlock()

	if err := c.startAcquire(ctx, domain.OpCameraRestoreOnTab, restoreDevice, false); err != nil {
		c.mu.Lock()
		c.pendingTab = ""
		c.activeTab = tab // 起不了恢复操作时不挡用户的路
		c.mu.Unlock()
		return false, err
	}
	logger.Ctx(ctx).Info().Str("tab", tab).Int("device", restoreDevice).
		Msg("tab switch deferred until committed device is restored")
	return true, nil
}

// SaveSettings 持久化暂存的选择并重新初始化硬件。
// 存储写入在任何硬件命令之前；写失败是本地错误，保存中止、硬件不动。
func (c *CameraCoordinator) SaveSettings(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "camera.SaveSettings")
	defer span.End()

	c.mu.Lock()
	if !c.configOpen {
		c.mu.Unlock()
		return domain.ErrConfigurationClosed
	}
	if c.camera.Phase != domain.PhaseIdle {
		c.mu.Unlock()
		return domain.ErrCameraBusy
	}
	cfg := &port.DeviceConfig{
		CameraIndex: c.camera.SelectedDeviceID,
		ModelID:     c.model.ActiveModelID,
	}
	selected := c.camera.SelectedDeviceID
	c.mu.Unlock()

	if err := c.store.Save(ctx, cfg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "config store write failed")
		logger.Ctx(ctx).Error().Err(err).Msg("failed to persist configuration, save aborted")
		c.notifier.Notify(ctx, port.LevelError, "Settings could not be saved, please try again.")
		return err
	}
	span.AddEvent("Configuration persisted to external store.")

	return c.startAcquire(ctx, domain.OpCameraInitialize, selected, true)
}

// CloseConfiguration 关闭配置界面。
// 无分叉时立即把所有权还给扫描上下文，不发任何命令；
// 有分叉时恢复已提交设备，关闭动作推迟到 Operation 解决——
// 但无论成功、失败还是超时，关闭最终都会完成，UI 绝不卡死。
// 保存仍在途时，其 Operation 被取消：UI 效果被抑制，已发出的硬件命令不撤回。
func (c *CameraCoordinator) CloseConfiguration(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "camera.CloseConfiguration")
	defer span.End()

	c.mu.Lock()
	if !c.configOpen {
		c.mu.Unlock()
		return domain.ErrConfigurationClosed
	}

	// 取代仍在途的保存/恢复操作
	if pending := c.tracker.Pending(domain.ResourceCamera); pending != nil {
		c.tracker.Cancel(pending)
		c.camera.ClearError()
		c.camera.AbortAcquire()
		span.AddEvent("Superseded a pending camera operation.")
		logger.Ctx(ctx).Warn().Str("kind", string(pending.Kind)).
			Msg("pending camera operation superseded by configuration close")
	}

	if !c.camera.Diverged() {
		c.camera.ReturnToScanning()
		c.configOpen = false
		c.pendingTab = ""
		c.mu.Unlock()
		logger.Ctx(ctx).Info().Msg("configuration closed without divergence, no command issued")
		c.pushState(ctx)
		return nil
	}

	restoreDevice := c.camera.CommittedDeviceID
	c.mu.Unlock()

	return c.startRestoreOnClose(ctx, restoreDevice)
}

// SwitchCamera 在扫描上下文中直接切换设备（不经配置界面）。
func (c *CameraCoordinator) SwitchCamera(ctx context.Context, deviceID int) error {
	ctx, span := c.tracer.Start(ctx, "camera.SwitchCamera")
	defer span.End()
	span.SetAttributes(attribute.Int("device", deviceID))

	c.mu.Lock()
	if c.camera.Owner != domain.OwnerScanning {
		c.mu.Unlock()
		return domain.ErrCameraBusy
	}
	if err := c.camera.BeginSwitch(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	op, err := c.tracker.Start(domain.OpCameraSwitch, c.acquireTimeout, c.acquireContinuation(domain.OpCameraSwitch, false))
	if err != nil {
		c.mu.Lock()
		c.camera.CompleteAcquire(c.camera.CommittedDeviceID)
		c.mu.Unlock()
		return err
	}
	if err := c.channel.SwitchCamera(ctx, deviceID); err != nil {
		c.tracker.Cancel(op)
		c.mu.Lock()
		c.camera.CompleteAcquire(c.camera.CommittedDeviceID)
		c.mu.Unlock()
		c.notifier.Notify(ctx, port.LevelError, "Could not reach the detection backend to switch camera.")
		return err
	}
	return nil
}

// SetCameraEnabled 翻转扫描界面的本地摄像头开关。
func (c *CameraCoordinator) SetCameraEnabled(ctx context.Context, enabled bool) {
	c.mu.Lock()
	c.camera.Enabled = enabled
	c.mu.Unlock()
	c.pushState(ctx)
}

// ChangeModel 切换检测模型。模型是与摄像头平行的独立资源类别。
func (c *CameraCoordinator) ChangeModel(ctx context.Context, modelID string) error {
	ctx, span := c.tracer.Start(ctx, "camera.ChangeModel")
	defer span.End()
	span.SetAttributes(attribute.String("model", modelID))

	c.mu.Lock()
	if err := c.model.BeginLoad(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	op, err := c.tracker.Start(domain.OpModelChange, c.modelTimeout, c.modelChangeContinuation())
	if err != nil {
		c.mu.Lock()
		c.model.ClearLoading()
		c.mu.Unlock()
		return err
	}
	if err := c.channel.ChangeModel(ctx, modelID); err != nil {
		c.tracker.Cancel(op)
		c.mu.Lock()
		c.model.ClearLoading()
		c.mu.Unlock()
		c.notifier.Notify(ctx, port.LevelError, "Could not reach the detection backend to change model.")
		return err
	}
	return nil
}

// LoadModelLabels 请求当前模型的类别标签。
// 截止时间是宽松的客户端兜底：超时只清掉加载指示，不算错误。
func (c *CameraCoordinator) LoadModelLabels(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "camera.LoadModelLabels")
	defer span.End()

	c.mu.Lock()
	if err := c.model.BeginLoad(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	op, err := c.tracker.Start(domain.OpModelLabels, c.modelTimeout, c.modelLabelsContinuation())
	if err != nil {
		c.mu.Lock()
		c.model.ClearLoading()
		c.mu.Unlock()
		return err
	}
	if err := c.channel.RequestModelLabels(ctx); err != nil {
		c.tracker.Cancel(op)
		c.mu.Lock()
		c.model.ClearLoading()
		c.mu.Unlock()
		return err
	}
	return nil
}

// ---- 入站事件 ----

// HandleCameraAck 处理 camera_initialized / camera_switched 硬件确认。
// 没有在途摄像头 Operation 时事件是迟到或重复的，静默丢弃。
func (c *CameraCoordinator) HandleCameraAck(ctx context.Context, evt *domain.CameraAckEvent) {
	op := c.tracker.Pending(domain.ResourceCamera)
	if op == nil {
		logger.Ctx(ctx).Debug().Bool("success", evt.Success).
			Msg("camera ack arrived with no pending operation, dropped")
		return
	}
	c.tracker.Resolve(op, domain.Outcome{
		OK:      evt.Success,
		Reason:  evt.Error,
		Payload: evt,
	})
}

// HandleCameraReleased 确认硬件已为配置会话释放，设备选择解锁。
// 释放确认只做阶段追踪，不是 Operation——没有对应的操作种类。
func (c *CameraCoordinator) HandleCameraReleased(ctx context.Context, evt *domain.CameraReleasedEvent) {
	c.mu.Lock()
	if err := c.camera.ConfirmRelease(); err != nil {
		c.mu.Unlock()
		logger.Ctx(ctx).Debug().Msg("release confirmation arrived outside releasing phase, dropped")
		return
	}
	c.mu.Unlock()

	if !evt.Success {
		// 后端声称释放失败，但把配置界面留在锁死状态更糟；
		// 继续解锁选择，硬件状态交给下一次占用去收敛
		c.notifier.Notify(ctx, port.LevelError, "Camera release reported an error: "+evt.Error)
	}
	logger.Ctx(ctx).Info().Msg("camera released, device selection enabled")
	c.pushState(ctx)
}

// HandleModelChanged 处理模型切换确认。
func (c *CameraCoordinator) HandleModelChanged(ctx context.Context, evt *domain.ModelChangedEvent) {
	op := c.tracker.Pending(domain.ResourceModel)
	if op == nil {
		logger.Ctx(ctx).Debug().Msg("model_changed arrived with no pending operation, dropped")
		return
	}
	c.tracker.Resolve(op, domain.Outcome{
		OK:      evt.Success,
		Reason:  evt.Error,
		Payload: evt,
	})
}

// HandleModelLabels 处理标签加载结果。
// 无在途操作时按主动刷新处理（模型切换后的安置刷新走这条路）。
func (c *CameraCoordinator) HandleModelLabels(ctx context.Context, evt *domain.ModelLabelsEvent) {
	op := c.tracker.Pending(domain.ResourceModel)
	if op != nil {
		c.tracker.Resolve(op, domain.Outcome{
			OK:      evt.Loaded,
			Reason:  evt.Error,
			Payload: evt,
		})
		return
	}
	if evt.Loaded {
		c.mu.Lock()
		c.model.CompleteLabels(evt.Labels)
		c.mu.Unlock()
		c.pushState(ctx)
	}
}

// HandleAvailableCameras 刷新设备清单。
func (c *CameraCoordinator) HandleAvailableCameras(ctx context.Context, evt *domain.AvailableCamerasEvent) {
	if !evt.Success {
		logger.Ctx(ctx).Warn().Str("error", evt.Error).Msg("camera list query failed")
		return
	}
	c.mu.Lock()
	c.availableCameras = evt.Cameras
	c.mu.Unlock()
	c.pushState(ctx)
}

// HandleAvailableModels 刷新模型清单。
func (c *CameraCoordinator) HandleAvailableModels(ctx context.Context, evt *domain.AvailableModelsEvent) {
	if !evt.Success {
		logger.Ctx(ctx).Warn().Str("error", evt.Error).Msg("model list query failed")
		return
	}
	c.mu.Lock()
	c.availableModels = evt.Models
	c.mu.Unlock()
	c.pushState(ctx)
}

// ---- 内部 ----

// startAcquire 登记一个硬件占用 Operation 并发出初始化命令。
// closeOnResolve 为 true 时（保存路径），Operation 解决后配置界面关闭。
func (c *CameraCoordinator) startAcquire(ctx context.Context, kind domain.OperationKind, deviceID int, closeOnResolve bool) error {
	c.mu.Lock()
	if err := c.camera.BeginAcquire(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	op, err := c.tracker.Start(kind, c.acquireTimeout, c.acquireContinuation(kind, closeOnResolve))
	if err != nil {
		c.mu.Lock()
		c.camera.AbortAcquire()
		c.mu.Unlock()
		return err
	}
	if err := c.channel.InitializeCamera(ctx, deviceID); err != nil {
		c.tracker.Cancel(op)
		c.mu.Lock()
		c.camera.AbortAcquire()
		c.mu.Unlock()
		c.notifier.Notify(ctx, port.LevelError, "Could not reach the detection backend to initialize camera.")
		return err
	}
	logger.Ctx(ctx).Info().Str("kind", string(kind)).Int("device", deviceID).
		Msg("camera acquisition started")
	return nil
}

// startRestoreOnClose 处理带分叉的配置关闭：恢复已提交设备，
// 无论结果如何最终都完成关闭。
func (c *CameraCoordinator) startRestoreOnClose(ctx context.Context, deviceID int) error {
	c.mu.Lock()
	if err := c.camera.BeginAcquire(); err != nil {
		// 起不了恢复时也不能把界面留在打开状态
		c.finishCloseLocked()
		c.mu.Unlock()
		c.pushState(ctx)
		return err
	}
	c.mu.Unlock()

	op, err := c.tracker.Start(domain.OpCameraRestoreOnClose, c.acquireTimeout, c.restoreOnCloseContinuation())
	if err != nil {
		c.mu.Lock()
		c.camera.AbortAcquire()
		c.finishCloseLocked()
		c.mu.Unlock()
		c.pushState(ctx)
		return err
	}
	if sendErr := c.channel.InitializeCamera(ctx, deviceID); sendErr != nil {
		c.tracker.Cancel(op)
		c.mu.Lock()
		c.camera.AbortAcquire()
		c.finishCloseLocked()
		c.mu.Unlock()
		c.notifier.Notify(ctx, port.LevelError, "Could not reach the detection backend, configuration closed anyway.")
		c.pushState(ctx)
		return sendErr
	}
	logger.Ctx(ctx).Info().Int("device", deviceID).
		Msg("configuration close deferred until committed device is restored")
	return nil
}

// acquireContinuation 构造初始化/恢复/切换 Operation 的终态逻辑。
// 它恰好执行一次：事件到达或截止触发，先到者生效。
func (c *CameraCoordinator) acquireContinuation(kind domain.OperationKind, closeOnResolve bool) domain.Continuation {
	return func(outcome domain.Outcome) {
		ctx := context.Background()
		c.recordOperation(ctx, kind, outcome)

		c.mu.Lock()
		if outcome.OK {
			device := c.camera.SelectedDeviceID
			if ack, ok := outcome.Payload.(*domain.CameraAckEvent); ok && ack.CameraIndex != nil {
				device = *ack.CameraIndex
			}
			c.camera.CompleteAcquire(device)
			if closeOnResolve {
				// 保存成功：关闭配置界面，扫描画面保持关闭等待人工开启
				c.camera.Enabled = false
				c.configOpen = false
				c.pendingTab = ""
			}
			c.applyPendingTabLocked()
			c.mu.Unlock()

			c.notifier.Notify(ctx, port.LevelInfo, "Camera is ready.")
			logger.Logger().Info().Str("kind", string(kind)).Msg("camera acquisition confirmed")
		} else {
			c.camera.FailAcquire()
			c.camera.ClearError()
			if closeOnResolve {
				// 超时/失败同样解锁 UI：配置界面照常关闭，已提交设备不变
				c.finishCloseLocked()
			}
			c.applyPendingTabLocked()
			c.mu.Unlock()

			reason := outcome.Reason
			if outcome.TimedOut {
				reason = "no response from the camera backend"
			}
			c.notifier.Notify(ctx, port.LevelError, "Camera could not be initialized: "+reason)
		}
		c.pushState(ctx)
	}
}

// restoreOnCloseContinuation 与 acquireContinuation 类似，
// 但无论结果如何都完成配置关闭——前进优先于确认的硬件状态。
func (c *CameraCoordinator) restoreOnCloseContinuation() domain.Continuation {
	return func(outcome domain.Outcome) {
		ctx := context.Background()
		c.recordOperation(ctx, domain.OpCameraRestoreOnClose, outcome)

		c.mu.Lock()
		if outcome.OK {
			device := c.camera.CommittedDeviceID
			if ack, ok := outcome.Payload.(*domain.CameraAckEvent); ok && ack.CameraIndex != nil {
				device = *ack.CameraIndex
			}
			c.camera.CompleteAcquire(device)
		} else {
			c.camera.FailAcquire()
			c.camera.ClearError()
		}
		c.finishCloseLocked()
		c.mu.Unlock()

		if !outcome.OK {
			reason := outcome.Reason
			if outcome.TimedOut {
				reason = "no response from the camera backend"
			}
			c.notifier.Notify(ctx, port.LevelError, "Camera restore failed, configuration closed anyway: "+reason)
		}
		c.pushState(ctx)
	}
}

func (c *CameraCoordinator) modelChangeContinuation() domain.Continuation {
	return func(outcome domain.Outcome) {
		ctx := context.Background()
		c.recordOperation(ctx, domain.OpModelChange, outcome)

		if outcome.OK {
			evt := outcome.Payload.(*domain.ModelChangedEvent)
			c.mu.Lock()
			c.model.CompleteChange(evt.ModelID)
			c.mu.Unlock()
			c.notifier.Notify(ctx, port.LevelInfo, "Detection model switched to "+evt.ModelID+".")

			// 安置延迟后刷新清单与标签，吸收后端重载时间
			time.AfterFunc(c.settleDelay, func() {
				bg := context.Background()
				if err := c.channel.RequestAvailableModels(bg); err != nil {
					logger.Logger().Warn().Err(err).Msg("post-switch model list refresh failed")
				}
				if err := c.channel.RequestModelLabels(bg); err != nil {
					logger.Logger().Warn().Err(err).Msg("post-switch label refresh failed")
				}
			})
		} else {
			c.mu.Lock()
			if outcome.TimedOut {
				c.model.ClearLoading()
			} else {
				c.model.Fail()
			}
			c.mu.Unlock()
			reason := outcome.Reason
			if outcome.TimedOut {
				reason = "no response from the detection backend"
			}
			c.notifier.Notify(ctx, port.LevelError, "Model switch failed: "+reason)
		}
		c.pushState(ctx)
	}
}

func (c *CameraCoordinator) modelLabelsContinuation() domain.Continuation {
	return func(outcome domain.Outcome) {
		ctx := context.Background()
		c.recordOperation(ctx, domain.OpModelLabels, outcome)

		c.mu.Lock()
		switch {
		case outcome.OK:
			evt := outcome.Payload.(*domain.ModelLabelsEvent)
			c.model.CompleteLabels(evt.Labels)
		case outcome.TimedOut:
			// 超时只意味着加载指示该消失了
			c.model.ClearLoading()
		default:
			c.model.Fail()
		}
		c.mu.Unlock()

		if !outcome.OK && !outcome.TimedOut {
			c.notifier.Notify(ctx, port.LevelError, "Model labels could not be loaded: "+outcome.Reason)
		}
		c.pushState(ctx)
	}
}

// applyPendingTabLocked 执行被挂起的页切换。调用方必须持有 c.mu。
func (c *CameraCoordinator) applyPendingTabLocked() {
	if c.pendingTab != "" {
		c.activeTab = c.pendingTab
		c.pendingTab = ""
	}
}

// finishCloseLocked 完成配置关闭的公共收尾。调用方必须持有 c.mu。
func (c *CameraCoordinator) finishCloseLocked() {
	c.camera.ReturnToScanning()
	c.configOpen = false
	c.pendingTab = ""
}

func (c *CameraCoordinator) recordOperation(ctx context.Context, kind domain.OperationKind, outcome domain.Outcome) {
	outcomeLabel := "success"
	if outcome.TimedOut {
		outcomeLabel = "timeout"
	} else if !outcome.OK {
		outcomeLabel = "failure"
	}
	operationsTotal.WithLabelValues(string(kind), outcomeLabel).Inc()
	c.recorder.Record(ctx, port.CheckoutEvent{
		Type:   "camera_operation",
		Kind:   string(kind),
		OK:     outcome.OK,
		Detail: outcome.Reason,
		At:     time.Now(),
	})
}

func (c *CameraCoordinator) pushState(ctx context.Context) {
	c.notifier.PushEvent(ctx, "camera_state", c.Snapshot())
}

// Snapshot 返回摄像头与模型状态的只读快照。
func (c *CameraCoordinator) Snapshot() CameraSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CameraSnapshot{
		Owner:             string(c.camera.Owner),
		Phase:             string(c.camera.Phase),
		SelectedDeviceID:  c.camera.SelectedDeviceID,
		CommittedDeviceID: c.camera.CommittedDeviceID,
		Enabled:           c.camera.Enabled,
		ConfigOpen:        c.configOpen,
		ActiveTab:         c.activeTab,
		AvailableCameras:  append([]domain.CameraInfo(nil), c.availableCameras...),
		Model: ModelSnapshot{
			Status:        string(c.model.Status),
			ActiveModelID: c.model.ActiveModelID,
			Labels:        append([]string(nil), c.model.Labels...),
		},
		AvailableModels: append([]domain.ModelInfo(nil), c.availableModels...),
	}
}

package application

import (
	"context"
	"testing"
	"time"

	"kiosk/internal/service/checkout/domain"
	"kiosk/internal/service/checkout/port"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

type cameraFixture struct {
	coordinator *CameraCoordinator
	tracker     *domain.Tracker
	channel     *fakeChannel
	store       *fakeStore
	notifier    *fakeNotifier
}

func newCameraFixture(acquireTimeout time.Duration) *cameraFixture {
	channel := newFakeChannel()
	store := &fakeStore{cfg: &port.DeviceConfig{CameraIndex: 1, ModelID: "yolov8n"}}
	notifier := &fakeNotifier{}
	tracker := domain.NewTracker()
	coordinator := NewCameraCoordinator(
		tracker, channel, store, notifier, &fakeRecorder{},
		noop.NewTracerProvider().Tracer("test"),
		acquireTimeout, time.Minute,
	)
	return &cameraFixture{
		coordinator: coordinator,
		tracker:     tracker,
		channel:     channel,
		store:       store,
		notifier:    notifier,
	}
}

func intPtr(v int) *int { return &v }

// startActive 完成会话初始化：读配置、发起占用、硬件确认到达。
func (f *cameraFixture) startActive(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	f.coordinator.Start(ctx)
	require.Equal(t, 1, f.channel.count("initialize_camera"))

	f.coordinator.HandleCameraAck(ctx, &domain.CameraAckEvent{Success: true, CameraIndex: intPtr(1)})
	snap := f.coordinator.Snapshot()
	require.Equal(t, string(domain.PhaseActive), snap.Phase)
	require.Equal(t, 1, snap.CommittedDeviceID)
}

// openReleased 打开配置界面并确认硬件释放。
func (f *cameraFixture) openReleased(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.coordinator.OpenConfiguration(ctx))
	f.coordinator.HandleCameraReleased(ctx, &domain.CameraReleasedEvent{Success: true})
}

func TestStartWithEmptyStoreFallsBackToDeviceZero(t *testing.T) {
	f := newCameraFixture(time.Minute)
	// 首次启动：存储里还没有任何配置
	f.store.cfg = nil
	ctx := context.Background()

	f.coordinator.Start(ctx)

	require.Equal(t, 1, f.channel.count("initialize_camera"))
	assert.Equal(t, 0, f.channel.lastArg("initialize_camera"))
	// 默认配置不弹错误通知
	assert.Equal(t, 0, f.notifier.messageCount())

	f.coordinator.HandleCameraAck(ctx, &domain.CameraAckEvent{Success: true, CameraIndex: intPtr(0)})
	snap := f.coordinator.Snapshot()
	assert.Equal(t, 0, snap.CommittedDeviceID)
	assert.Equal(t, string(domain.PhaseActive), snap.Phase)
	assert.Empty(t, snap.Model.ActiveModelID)
}

func TestStartLoadsCommittedConfigAndAcquires(t *testing.T) {
	f := newCameraFixture(time.Minute)
	f.startActive(t)

	assert.Equal(t, 1, f.channel.count("get_available_cameras"))
	assert.Equal(t, 1, f.channel.count("get_available_models"))
	assert.Equal(t, 1, f.channel.lastArg("initialize_camera"))
}

func TestCloseWithoutDivergenceSendsNoCommand(t *testing.T) {
	f := newCameraFixture(time.Minute)
	f.startActive(t)
	f.openReleased(t)
	initializesBefore := f.channel.count("initialize_camera")

	require.NoError(t, f.coordinator.CloseConfiguration(context.Background()))

	snap := f.coordinator.Snapshot()
	assert.False(t, snap.ConfigOpen)
	assert.Equal(t, string(domain.OwnerScanning), snap.Owner)
	// 选择未偏离已提交设备：关闭不发任何硬件命令
	assert.Equal(t, initializesBefore, f.channel.count("initialize_camera"))
}

func TestCloseWithDivergenceRestoresCommittedDevice(t *testing.T) {
	f := newCameraFixture(time.Minute)
	f.startActive(t)
	f.openReleased(t)
	ctx := context.Background()

	require.NoError(t, f.coordinator.SelectDevice(ctx, 3))
	initializesBefore := f.channel.count("initialize_camera")

	require.NoError(t, f.coordinator.CloseConfiguration(ctx))
	// 恰好一条恢复命令，目标是已提交设备而不是暂存选择
	require.Equal(t, initializesBefore+1, f.channel.count("initialize_camera"))
	assert.Equal(t, 1, f.channel.lastArg("initialize_camera"))
	// 关闭被挂起直到 Operation 解决
	assert.True(t, f.coordinator.Snapshot().ConfigOpen)

	f.coordinator.HandleCameraAck(ctx, &domain.CameraAckEvent{Success: true, CameraIndex: intPtr(1)})
	snap := f.coordinator.Snapshot()
	assert.False(t, snap.ConfigOpen)
	assert.Equal(t, 1, snap.CommittedDeviceID)
	assert.Equal(t, 1, snap.SelectedDeviceID)
}

func TestCloseTimeoutStillUnblocksUI(t *testing.T) {
	f := newCameraFixture(20 * time.Millisecond)
	f.startActive(t)
	f.openReleased(t)
	ctx := context.Background()

	require.NoError(t, f.coordinator.SelectDevice(ctx, 3))
	require.NoError(t, f.coordinator.CloseConfiguration(ctx))

	// 硬件永不应答：截止触发后关闭照样完成，已提交设备不变
	assert.Eventually(t, func() bool {
		return !f.coordinator.Snapshot().ConfigOpen
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, f.coordinator.Snapshot().CommittedDeviceID)
}

func TestSelectDeviceStagesWithoutCommands(t *testing.T) {
	f := newCameraFixture(time.Minute)
	f.startActive(t)
	f.openReleased(t)
	ctx := context.Background()
	before := len(f.channel.cmds)

	require.NoError(t, f.coordinator.SelectDevice(ctx, 3))

	snap := f.coordinator.Snapshot()
	assert.Equal(t, 3, snap.SelectedDeviceID)
	assert.Equal(t, 1, snap.CommittedDeviceID)
	assert.Equal(t, before, len(f.channel.cmds))
}

func TestSelectDeviceRejectedWhileClosed(t *testing.T) {
	f := newCameraFixture(time.Minute)
	f.startActive(t)
	err := f.coordinator.SelectDevice(context.Background(), 3)
	assert.True(t, errors.Is(err, domain.ErrConfigurationClosed))
}

func TestSaveSettingsPersistsBeforeHardware(t *testing.T) {
	f := newCameraFixture(time.Minute)
	f.startActive(t)
	f.openReleased(t)
	ctx := context.Background()

	require.NoError(t, f.coordinator.SelectDevice(ctx, 3))
	require.NoError(t, f.coordinator.SaveSettings(ctx))

	require.Equal(t, 1, f.store.saveCount())
	assert.Equal(t, 3, f.store.saves[0].CameraIndex)
	assert.Equal(t, 3, f.channel.lastArg("initialize_camera"))

	f.coordinator.HandleCameraAck(ctx, &domain.CameraAckEvent{Success: true, CameraIndex: intPtr(3)})
	snap := f.coordinator.Snapshot()
	assert.Equal(t, 3, snap.CommittedDeviceID)
	assert.False(t, snap.ConfigOpen)
	// 保存后扫描画面保持关闭，等待人工开启
	assert.False(t, snap.Enabled)
}

func TestSaveSettingsAbortsOnStoreFailure(t *testing.T) {
	f := newCameraFixture(time.Minute)
	f.startActive(t)
	f.openReleased(t)
	ctx := context.Background()
	f.store.saveErr = errors.New("store unavailable")

	require.NoError(t, f.coordinator.SelectDevice(ctx, 3))
	initializesBefore := f.channel.count("initialize_camera")

	require.Error(t, f.coordinator.SaveSettings(ctx))
	// 存储写失败：硬件一条命令都不发，界面保持打开
	assert.Equal(t, initializesBefore, f.channel.count("initialize_camera"))
	assert.True(t, f.coordinator.Snapshot().ConfigOpen)
}

func TestSaveTimeoutClosesWithCommittedUnchanged(t *testing.T) {
	f := newCameraFixture(20 * time.Millisecond)
	f.startActive(t)
	f.openReleased(t)
	ctx := context.Background()

	require.NoError(t, f.coordinator.SelectDevice(ctx, 3))
	require.NoError(t, f.coordinator.SaveSettings(ctx))

	assert.Eventually(t, func() bool {
		return !f.coordinator.Snapshot().ConfigOpen
	}, time.Second, 10*time.Millisecond)
	// 超时不是确认：已提交设备绝不因此变化
	assert.Equal(t, 1, f.coordinator.Snapshot().CommittedDeviceID)
}

func TestChangeTabDeferredWhileDiverged(t *testing.T) {
	f := newCameraFixture(time.Minute)
	f.startActive(t)
	f.openReleased(t)
	ctx := context.Background()

	require.NoError(t, f.coordinator.SelectDevice(ctx, 3))
	deferred, err := f.coordinator.ChangeTab(ctx, "detection")
	require.NoError(t, err)
	assert.True(t, deferred)
	assert.Equal(t, 1, f.channel.lastArg("initialize_camera"))
	assert.Equal(t, TabDevices, f.coordinator.Snapshot().ActiveTab)

	f.coordinator.HandleCameraAck(ctx, &domain.CameraAckEvent{Success: true, CameraIndex: intPtr(1)})
	assert.Equal(t, "detection", f.coordinator.Snapshot().ActiveTab)
}

func TestChangeTabImmediateWithoutDivergence(t *testing.T) {
	f := newCameraFixture(time.Minute)
	f.startActive(t)
	f.openReleased(t)

	deferred, err := f.coordinator.ChangeTab(context.Background(), "detection")
	require.NoError(t, err)
	assert.False(t, deferred)
	assert.Equal(t, "detection", f.coordinator.Snapshot().ActiveTab)
}

func TestLateCameraAckIsDropped(t *testing.T) {
	f := newCameraFixture(time.Minute)
	f.startActive(t)

	// 没有在途操作时的确认是迟到或重复的
	f.coordinator.HandleCameraAck(context.Background(), &domain.CameraAckEvent{Success: true, CameraIndex: intPtr(7)})
	assert.Equal(t, 1, f.coordinator.Snapshot().CommittedDeviceID)
}

func TestSwitchCameraFromScanning(t *testing.T) {
	f := newCameraFixture(time.Minute)
	f.startActive(t)
	ctx := context.Background()

	require.NoError(t, f.coordinator.SwitchCamera(ctx, 2))
	assert.Equal(t, 2, f.channel.lastArg("switch_camera"))

	f.coordinator.HandleCameraAck(ctx, &domain.CameraAckEvent{Success: true, CameraIndex: intPtr(2)})
	snap := f.coordinator.Snapshot()
	assert.Equal(t, 2, snap.CommittedDeviceID)
	assert.Equal(t, string(domain.PhaseActive), snap.Phase)
}

func TestSwitchCameraRejectedDuringConfiguration(t *testing.T) {
	f := newCameraFixture(time.Minute)
	f.startActive(t)
	f.openReleased(t)

	err := f.coordinator.SwitchCamera(context.Background(), 2)
	assert.True(t, errors.Is(err, domain.ErrCameraBusy))
}

func TestModelChangeLifecycle(t *testing.T) {
	f := newCameraFixture(time.Minute)
	f.startActive(t)
	ctx := context.Background()

	require.NoError(t, f.coordinator.ChangeModel(ctx, "yolov8s"))
	assert.Equal(t, "yolov8s", f.channel.lastArg("change_model"))
	assert.Equal(t, string(domain.ModelInitializing), f.coordinator.Snapshot().Model.Status)

	f.coordinator.HandleModelChanged(ctx, &domain.ModelChangedEvent{Success: true, ModelID: "yolov8s"})
	snap := f.coordinator.Snapshot()
	assert.Equal(t, string(domain.ModelReady), snap.Model.Status)
	assert.Equal(t, "yolov8s", snap.Model.ActiveModelID)
}

func TestModelLabelsTimeoutOnlyClearsLoading(t *testing.T) {
	f := newCameraFixture(time.Minute)
	f.coordinator.modelTimeout = 20 * time.Millisecond
	f.startActive(t)
	ctx := context.Background()

	require.NoError(t, f.coordinator.ChangeModel(ctx, "yolov8n"))
	f.coordinator.HandleModelChanged(ctx, &domain.ModelChangedEvent{Success: true, ModelID: "yolov8n"})
	require.NoError(t, f.coordinator.LoadModelLabels(ctx))
	messagesBefore := f.notifier.messageCount()

	assert.Eventually(t, func() bool {
		return f.coordinator.Snapshot().Model.Status == string(domain.ModelReady)
	}, time.Second, 10*time.Millisecond)
	// 标签超时不是错误，不弹任何通知
	assert.Equal(t, messagesBefore, f.notifier.messageCount())
}

func TestUnsolicitedLabelsTreatedAsRefresh(t *testing.T) {
	f := newCameraFixture(time.Minute)
	f.startActive(t)
	ctx := context.Background()

	f.coordinator.HandleModelLabels(ctx, &domain.ModelLabelsEvent{Loaded: true, Labels: []string{"apple"}})
	assert.Equal(t, []string{"apple"}, f.coordinator.Snapshot().Model.Labels)
}

func TestAvailableListsRefresh(t *testing.T) {
	f := newCameraFixture(time.Minute)
	f.startActive(t)
	ctx := context.Background()

	f.coordinator.HandleAvailableCameras(ctx, &domain.AvailableCamerasEvent{
		Success: true,
		Cameras: []domain.CameraInfo{{Index: 0, Name: "Front"}, {Index: 1, Name: "Top"}},
	})
	f.coordinator.HandleAvailableModels(ctx, &domain.AvailableModelsEvent{
		Success: true,
		Models:  []domain.ModelInfo{{ID: "yolov8n", Name: "YOLOv8 Nano"}},
	})

	snap := f.coordinator.Snapshot()
	assert.Len(t, snap.AvailableCameras, 2)
	assert.Len(t, snap.AvailableModels, 1)
}

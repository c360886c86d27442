package application

import (
	"context"
	"sync"

	"kiosk/internal/service/checkout/port"
)

// fakeChannel 记录发出的命令，可按命令名注入发送错误。
type fakeChannel struct {
	mu   sync.Mutex
	cmds []fakeCommand
	errs map[string]error
}

type fakeCommand struct {
	name string
	arg  interface{}
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{errs: make(map[string]error)}
}

func (f *fakeChannel) emit(name string, arg interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[name]; err != nil {
		return err
	}
	f.cmds = append(f.cmds, fakeCommand{name: name, arg: arg})
	return nil
}

func (f *fakeChannel) failWith(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[name] = err
}

func (f *fakeChannel) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, cmd := range f.cmds {
		if cmd.name == name {
			n++
		}
	}
	return n
}

func (f *fakeChannel) lastArg(name string) interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.cmds) - 1; i >= 0; i-- {
		if f.cmds[i].name == name {
			return f.cmds[i].arg
		}
	}
	return nil
}

func (f *fakeChannel) InitializeCamera(_ context.Context, deviceID int) error {
	return f.emit("initialize_camera", deviceID)
}
func (f *fakeChannel) ReleaseCamera(_ context.Context) error {
	return f.emit("kill_camera_for_config", nil)
}
func (f *fakeChannel) SwitchCamera(_ context.Context, deviceID int) error {
	return f.emit("switch_camera", deviceID)
}
func (f *fakeChannel) ChangeModel(_ context.Context, modelID string) error {
	return f.emit("change_model", modelID)
}
func (f *fakeChannel) RequestModelLabels(_ context.Context) error {
	return f.emit("get_model_labels", nil)
}
func (f *fakeChannel) RequestAvailableCameras(_ context.Context) error {
	return f.emit("get_available_cameras", nil)
}
func (f *fakeChannel) RequestAvailableModels(_ context.Context) error {
	return f.emit("get_available_models", nil)
}
func (f *fakeChannel) CreatePayment(_ context.Context, req port.CreatePaymentRequest) error {
	return f.emit("create_payment", req)
}
func (f *fakeChannel) CheckPaymentStatus(_ context.Context, orderID string) error {
	return f.emit("check_payment_status", orderID)
}
func (f *fakeChannel) CancelPayment(_ context.Context, orderID string) error {
	return f.emit("cancel_payment", orderID)
}
func (f *fakeChannel) ClearCart(_ context.Context) error {
	return f.emit("clear_cart", nil)
}
func (f *fakeChannel) RemoveItem(_ context.Context, productID string) error {
	return f.emit("remove_item", productID)
}

// fakeStore 是内存配置存储。
type fakeStore struct {
	mu      sync.Mutex
	cfg     *port.DeviceConfig
	loadErr error
	saveErr error
	saves   []port.DeviceConfig
}

func (f *fakeStore) Load(_ context.Context) (*port.DeviceConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.cfg, nil
}

func (f *fakeStore) Save(_ context.Context, cfg *port.DeviceConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves = append(f.saves, *cfg)
	f.cfg = cfg
	return nil
}

func (f *fakeStore) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

// fakeNotifier 收集推送给 UI 的通知与事件。
type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	events   []string
}

func (f *fakeNotifier) Notify(_ context.Context, level, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, level+": "+message)
}

func (f *fakeNotifier) PushEvent(_ context.Context, event string, _ interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeNotifier) messageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

// fakeRecorder 收集审计记录。
type fakeRecorder struct {
	mu     sync.Mutex
	events []port.CheckoutEvent
}

func (f *fakeRecorder) Record(_ context.Context, event port.CheckoutEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

// fakeWidget 模拟内嵌支付组件桥。
type fakeWidget struct {
	mu    sync.Mutex
	ready bool
	opens []port.WidgetOpenRequest
}

func (f *fakeWidget) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeWidget) Open(_ context.Context, req port.WidgetOpenRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens = append(f.opens, req)
	return nil
}

func (f *fakeWidget) setReady(ready bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ready = ready
}

func (f *fakeWidget) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.opens)
}

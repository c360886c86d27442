// internal/service/checkout/domain/operation.go
package domain

import (
	"sync"
	"time"

	"kiosk/internal/pkg/logger"

	"github.com/pkg/errors"
)

// ResourceClass 是被独占持有的外部资源类别。
// 同一类别下同一时刻最多允许一个在途 Operation。
type ResourceClass string

const (
	ResourceCamera  ResourceClass = "camera"
	ResourceModel   ResourceClass = "model"
	ResourcePayment ResourceClass = "payment"
)

// OperationKind 标识一个在途异步命令代表的含义
type OperationKind string

const (
	OpCameraInitialize     OperationKind = "camera_initialize"
	OpCameraRestoreOnClose OperationKind = "camera_restore_on_close"
	OpCameraRestoreOnTab   OperationKind = "camera_restore_on_tab_change"
	OpCameraSwitch         OperationKind = "camera_switch"
	OpModelChange          OperationKind = "model_change"
	OpModelLabels          OperationKind = "model_labels"
	OpPaymentCreate        OperationKind = "payment_create"
	OpPaymentPollExpiry    OperationKind = "payment_poll_expiry"
)

// Class 返回该操作种类所属的资源类别。
func (k OperationKind) Class() ResourceClass {
	switch k {
	case OpModelChange, OpModelLabels:
		return ResourceModel
	case OpPaymentCreate, OpPaymentPollExpiry:
		return ResourcePayment
	default:
		return ResourceCamera
	}
}

// Outcome 是一个 Operation 的唯一终态。
// 事件到达时由协调器构造；超时时由 Tracker 合成。
type Outcome struct {
	Kind     OperationKind
	OK       bool
	TimedOut bool
	Reason   string
	// Payload 携带触发终态的已解码事件，超时时为 nil
	Payload interface{}
}

// Continuation 是 Operation 解决时恰好执行一次的状态流转与副作用逻辑。
type Continuation func(Outcome)

// ErrOperationPending 表示同类资源已有在途操作，调用方须先 Cancel 旧操作。
var ErrOperationPending = errors.New("an operation of this resource class is already pending")

// Operation 是一个等待唯一完成事件（或超时）的在途异步命令。
type Operation struct {
	Kind     OperationKind
	Class    ResourceClass
	Deadline time.Time

	timer        *time.Timer
	continuation Continuation
	resolved     bool
}

// Tracker 负责 Operation 的登记、截止计时与幂等解决。
// 外部通道不提供任何请求/响应配对与投递保证，事件可能迟到、重复或永不到达；
// Tracker 把“发个命令、盼个事件”收敛成有界的、副作用恰好一次的操作。
type Tracker struct {
	mu      sync.Mutex
	pending map[ResourceClass]*Operation
}

func NewTracker() *Tracker {
	return &Tracker{pending: make(map[ResourceClass]*Operation)}
}

// Start 登记一个新的在途操作并武装截止计时器。
// 同类资源已有未解决操作时返回 ErrOperationPending（逻辑失败，不 panic）。
// deadline 为 0 时不武装计时器。
func (t *Tracker) Start(kind OperationKind, deadline time.Duration, cont Continuation) (*Operation, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	class := kind.Class()
	if existing, ok := t.pending[class]; ok && !existing.resolved {
		return nil, errors.Wrapf(ErrOperationPending, "class=%s pending=%s requested=%s", class, existing.Kind, kind)
	}

	op := &Operation{
		Kind:         kind,
		Class:        class,
		continuation: cont,
	}
	if deadline > 0 {
		op.Deadline = time.Now().Add(deadline)
		op.timer = time.AfterFunc(deadline, func() { t.expire(op) })
	}
	t.pending[class] = op
	return op, nil
}

// Resolve 在关联事件到达时由协调器调用。
// 若操作已解决（计时器已触发或已被取消），这是静默的 no-op：
// 迟到的事件绝不能再次触发 continuation。
func (t *Tracker) Resolve(op *Operation, outcome Outcome) bool {
	cont := t.settle(op)
	if cont == nil {
		return false
	}
	outcome.Kind = op.Kind
	cont(outcome)
	return true
}

// Cancel 标记操作已解决但不执行 continuation。
// 用于新操作必须立即取代旧操作的场景：被抑制的只是 UI 效果，
// 已经发出的硬件命令不会被撤回。
func (t *Tracker) Cancel(op *Operation) bool {
	return t.settle(op) != nil
}

// Pending 返回某类资源当前的在途操作，没有则返回 nil。
func (t *Tracker) Pending(class ResourceClass) *Operation {
	t.mu.Lock()
	defer t.mu.Unlock()
	if op, ok := t.pending[class]; ok && !op.resolved {
		return op
	}
	return nil
}

// expire 是截止计时器的回调：合成超时终态并执行 continuation。
func (t *Tracker) expire(op *Operation) {
	cont := t.settle(op)
	if cont == nil {
		return
	}
	logger.Logger().Warn().
		Str("kind", string(op.Kind)).
		Str("class", string(op.Class)).
		Msg("operation deadline elapsed without a correlated event")
	cont(Outcome{
		Kind:     op.Kind,
		OK:       false,
		TimedOut: true,
		Reason:   "no response from backend before deadline",
	})
}

// settle 原子地将操作标记为已解决，返回待执行的 continuation。
// continuation 在锁外执行，允许它重新进入 Tracker 启动后续操作。
func (t *Tracker) settle(op *Operation) Continuation {
	if op == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if op.resolved {
		return nil
	}
	op.resolved = true
	if op.timer != nil {
		op.timer.Stop()
	}
	if t.pending[op.Class] == op {
		delete(t.pending, op.Class)
	}
	return op.continuation
}

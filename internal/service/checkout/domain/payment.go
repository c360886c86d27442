// internal/service/checkout/domain/payment.go
package domain

import (
	"errors"
	"time"
)

// PaymentSession 是一次结账尝试。
// 生命周期: IDLE → CREATING → PENDING → {SUCCESS | FAILED | EXPIRED}，
// FAILED / EXPIRED 可重试回 IDLE。随所在会话销毁，不跨重启存续。
type PaymentSession struct {
	ID     string
	Status PaymentStatus

	TransactionID string
	OrderID       string
	WidgetToken   string
	ExpiresAt     time.Time

	// RemainingSeconds 由本地倒计时递减；归零无条件强制 EXPIRED，
	// 本地截止对 UI 是权威的，网关怎么说都不影响
	RemainingSeconds int

	// WidgetOpen 防止支付组件被并发打开两次
	WidgetOpen bool

	// Settled 保证清车等终态效果恰好执行一次，
	// 组件回调与网关带外事件以任意顺序到达都收敛于同一效果
	Settled bool

	// Items / Amount 是结账发起时冻结的购物车快照
	Items  []CartItem
	Amount int64

	UpdatedAt time.Time
}

func NewPaymentSession() *PaymentSession {
	return &PaymentSession{Status: PaymentIdle, UpdatedAt: time.Now()}
}

// BeginCreate 冻结购物车快照并进入创建阶段。
func (s *PaymentSession) BeginCreate(id string, items []CartItem, amount int64) error {
	if s.Status != PaymentIdle && s.Status != PaymentFailed && s.Status != PaymentExpired {
		return errors.New("a payment session is already in progress")
	}
	if s.WidgetOpen {
		return errors.New("payment widget is still open")
	}
	s.reset()
	s.ID = id
	s.Status = PaymentCreating
	s.Items = append([]CartItem(nil), items...)
	s.Amount = amount
	s.touch()
	return nil
}

// MarkPending 记录网关确认的交易并计算初始倒计时。
func (s *PaymentSession) MarkPending(token, orderID, transactionID string, expiresAt, now time.Time) error {
	if s.Status != PaymentCreating {
		return errors.New("transaction confirmed while session is not creating")
	}
	s.Status = PaymentPending
	s.WidgetToken = token
	s.OrderID = orderID
	s.TransactionID = transactionID
	s.ExpiresAt = expiresAt
	remaining := int(expiresAt.Sub(now).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	s.RemainingSeconds = remaining
	s.touch()
	return nil
}

// Tick 递减一秒倒计时，归零时强制过期并返回 true。
func (s *PaymentSession) Tick() (expired bool) {
	if s.Status != PaymentPending {
		return false
	}
	if s.RemainingSeconds > 0 {
		s.RemainingSeconds--
	}
	if s.RemainingSeconds <= 0 {
		s.Status = PaymentExpired
		s.touch()
		return true
	}
	s.touch()
	return false
}

// MarkSuccess 记录支付成功。
// 本地已过期时状态保持 EXPIRED（UI 已经向前走了），
// 但调用方仍须执行清车——钱可能已经划走。
func (s *PaymentSession) MarkSuccess() {
	if s.Status == PaymentPending || s.Status == PaymentCreating {
		s.Status = PaymentSuccess
	}
	s.touch()
}

// MarkFailed 记录失败终态，用户可从这里显式重试。
func (s *PaymentSession) MarkFailed() {
	if s.Status == PaymentSuccess {
		return
	}
	s.Status = PaymentFailed
	s.touch()
}

// MarkSettled 原子地声明终态效果的执行权，只有第一个调用方拿到 true。
func (s *PaymentSession) MarkSettled() bool {
	if s.Settled {
		return false
	}
	s.Settled = true
	s.touch()
	return true
}

// Reset 把会话销毁回 IDLE（所在视图关闭或新尝试开始时）。
func (s *PaymentSession) Reset() {
	s.reset()
	s.touch()
}

func (s *PaymentSession) reset() {
	s.ID = ""
	s.Status = PaymentIdle
	s.TransactionID = ""
	s.OrderID = ""
	s.WidgetToken = ""
	s.ExpiresAt = time.Time{}
	s.RemainingSeconds = 0
	s.WidgetOpen = false
	s.Settled = false
	s.Items = nil
	s.Amount = 0
}

func (s *PaymentSession) touch() {
	s.UpdatedAt = time.Now()
}

// internal/service/checkout/port/recorder.go
package port

import (
	"context"
	"time"
)

// CheckoutEvent 是一条发往门店后台审计流的记录。
type CheckoutEvent struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	OrderID   string    `json:"order_id,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	OK        bool      `json:"ok"`
	Detail    string    `json:"detail,omitempty"`
	Amount    int64     `json:"amount,omitempty"`
	At        time.Time `json:"at"`
}

// EventRecorder 把操作终态与支付生命周期流转记录到审计流。
// 记录失败只影响后台可见性，绝不反灌进协调器状态。
type EventRecorder interface {
	Record(ctx context.Context, event CheckoutEvent)
}

// internal/service/checkout/application/payment_controller.go
package application

import (
	"context"
	"sync"
	"time"

	"kiosk/internal/pkg/logger"
	"kiosk/internal/service/checkout/domain"
	"kiosk/internal/service/checkout/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// 支付组件打开的有界重试：吸收脚本加载竞态，不用于网关失败
	widgetOpenMaxAttempts = 3
	widgetOpenRetryDelay  = 1 * time.Second

	// 支付成功后让用户看见确认画面的宽限，随后清车并复位会话
	successGraceDelay = 3 * time.Second

	// 本地过期后对网关状态做最后一次对账的截止时间
	expiryPollTimeout = 10 * time.Second
)

// WidgetResult 是内嵌支付组件的四种回调结果。
type WidgetResult string

const (
	WidgetSuccess WidgetResult = "success"
	WidgetPending WidgetResult = "pending"
	WidgetError   WidgetResult = "error"
	WidgetClose   WidgetResult = "close"
)

// PaymentController 驱动单次结账尝试走到终态。
// 交易创建经 Operation Tracker 绑定截止时间；倒计时由本地计时器驱动，
// 归零无条件过期——对 UI 而言本地截止是权威，网关的迟到事件只影响清车。
type PaymentController struct {
	mu sync.Mutex

	tracker *domain.Tracker
	session *domain.PaymentSession
	cart    *domain.Cart

	channel  port.Channel
	notifier port.Notifier
	widget   port.Widget
	recorder port.EventRecorder
	tracer   trace.Tracer

	createTimeout time.Duration
	currency      string
	customerName  string
	customerEmail string

	// tickInterval / widgetRetryDelay / successGrace 仅测试时缩短
	tickInterval     time.Duration
	widgetRetryDelay time.Duration
	successGrace     time.Duration

	countdownStop chan struct{}
	graceTimer    *time.Timer
	retryTimer    *time.Timer
}

func NewPaymentController(
	tracker *domain.Tracker,
	channel port.Channel,
	notifier port.Notifier,
	widget port.Widget,
	recorder port.EventRecorder,
	tracer trace.Tracer,
	createTimeout time.Duration,
	currency, customerName, customerEmail string,
) *PaymentController {
	return &PaymentController{
		tracker:       tracker,
		session:       domain.NewPaymentSession(),
		cart:          domain.NewCart(),
		channel:       channel,
		notifier:      notifier,
		widget:        widget,
		recorder:      recorder,
		tracer:        tracer,
		createTimeout: createTimeout,
		currency:      currency,
		customerName:  customerName,
		customerEmail: customerEmail,

		tickInterval:     time.Second,
		widgetRetryDelay: widgetOpenRetryDelay,
		successGrace:     successGraceDelay,
	}
}

// InitiateCheckout 发起一次结账。
// 空购物车立即失败——这是本地前置检查，命令根本不会上通道。
func (p *PaymentController) InitiateCheckout(ctx context.Context) error {
	ctx, span := p.tracer.Start(ctx, "payment.InitiateCheckout")
	defer span.End()

	p.mu.Lock()
	if p.session.WidgetOpen {
		p.mu.Unlock()
		return domain.ErrWidgetOpen
	}
	if p.cart.Empty() {
		p.mu.Unlock()
		span.SetStatus(codes.Error, "cart is empty")
		p.notifier.Notify(ctx, port.LevelError, "Cart is empty, nothing to pay.")
		return domain.ErrCartEmpty
	}
	sessionID := uuid.New().String()
	items := p.cart.Snapshot()
	amount := p.cart.Total()
	if err := p.session.BeginCreate(sessionID, items, amount); err != nil {
		p.mu.Unlock()
		return err
	}
	p.mu.Unlock()

	span.SetAttributes(
		attribute.String("session.id", sessionID),
		attribute.Int64("amount", amount),
	)

	// 过期后的对账轮询可能仍在途：新的结账尝试取代它，
	// 迟到的对账结果只属于上一次会话
	if pending := p.tracker.Pending(domain.ResourcePayment); pending != nil && pending.Kind == domain.OpPaymentPollExpiry {
		p.tracker.Cancel(pending)
	}

	op, err := p.tracker.Start(domain.OpPaymentCreate, p.createTimeout, p.createContinuation(sessionID))
	if err != nil {
		p.mu.Lock()
		p.session.Reset()
		p.mu.Unlock()
		return err
	}

	req := port.CreatePaymentRequest{
		TransactionID: sessionID,
		Items:         items,
		GrossAmount:   amount,
		Currency:      p.currency,
		CustomerName:  p.customerName,
		CustomerEmail: p.customerEmail,
	}
	if err := p.channel.CreatePayment(ctx, req); err != nil {
		p.tracker.Cancel(op)
		p.mu.Lock()
		p.session.Reset()
		p.mu.Unlock()
		span.RecordError(err)
		p.notifier.Notify(ctx, port.LevelError, "Could not reach the payment gateway.")
		return err
	}

	logger.Ctx(ctx).Info().Str("session", sessionID).Int64("amount", amount).
		Msg("transaction creation requested")
	p.pushState(ctx)
	return nil
}

// CancelCheckout 放弃一次等待中的支付并通知网关取消。
func (p *PaymentController) CancelCheckout(ctx context.Context) error {
	ctx, span := p.tracer.Start(ctx, "payment.CancelCheckout")
	defer span.End()

	p.mu.Lock()
	if p.session.WidgetOpen {
		p.mu.Unlock()
		return domain.ErrWidgetOpen
	}
	if p.session.Status != domain.PaymentPending && p.session.Status != domain.PaymentCreating {
		p.mu.Unlock()
		return domain.ErrNoActivePayment
	}
	orderID := p.session.OrderID
	p.resetSessionLocked()
	p.mu.Unlock()

	if orderID != "" {
		if err := p.channel.CancelPayment(ctx, orderID); err != nil {
			// 取消命令丢了也无妨：本地会话已复位，网关侧交易自然过期
			logger.Ctx(ctx).Warn().Err(err).Str("order", orderID).Msg("cancel command not delivered")
		}
	}
	p.notifier.Notify(ctx, port.LevelInfo, "Payment cancelled.")
	p.pushState(ctx)
	return nil
}

// ReopenWidget 在用户关闭组件后按需重新打开。
func (p *PaymentController) ReopenWidget(ctx context.Context) error {
	p.mu.Lock()
	if p.session.Status != domain.PaymentPending {
		p.mu.Unlock()
		return domain.ErrNoActivePayment
	}
	if p.session.WidgetOpen {
		p.mu.Unlock()
		return domain.ErrWidgetOpen
	}
	p.mu.Unlock()

	p.openWidget(ctx, 1)
	return nil
}

// ResetSession 把会话销毁回 IDLE（所在视图关闭时调用）。
func (p *PaymentController) ResetSession(ctx context.Context) {
	p.mu.Lock()
	p.resetSessionLocked()
	p.mu.Unlock()
	p.pushState(ctx)
}

// ---- 入站事件 ----

// HandlePaymentCreated 处理网关的交易创建确认。
func (p *PaymentController) HandlePaymentCreated(ctx context.Context, evt *domain.PaymentCreatedEvent) {
	op := p.tracker.Pending(domain.ResourcePayment)
	if op == nil || op.Kind != domain.OpPaymentCreate {
		logger.Ctx(ctx).Debug().Str("order", evt.OrderID).
			Msg("payment_created arrived with no pending create operation, dropped")
		return
	}
	p.tracker.Resolve(op, domain.Outcome{OK: true, Payload: evt})
}

// HandlePaymentError 处理网关的显式失败。
func (p *PaymentController) HandlePaymentError(ctx context.Context, evt *domain.PaymentErrorEvent) {
	if op := p.tracker.Pending(domain.ResourcePayment); op != nil {
		p.tracker.Resolve(op, domain.Outcome{OK: false, Reason: evt.Message, Payload: evt})
		return
	}

	p.mu.Lock()
	if p.session.Status != domain.PaymentPending {
		p.mu.Unlock()
		return
	}
	p.session.MarkFailed()
	p.stopCountdownLocked()
	p.mu.Unlock()

	paymentSessionsTotal.WithLabelValues(string(domain.PaymentFailed)).Inc()
	p.notifier.Notify(ctx, port.LevelError, "Payment failed: "+evt.Message)
	p.pushState(ctx)
}

// HandlePaymentStatus 处理网关带外推送的状态更新与状态查询响应。
// 组件回调与带外事件以任意顺序（或都）到达时必须收敛于同一终态效果。
func (p *PaymentController) HandlePaymentStatus(ctx context.Context, evt *domain.PaymentStatusEvent) {
	ctx, span := p.tracer.Start(ctx, "payment.HandlePaymentStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", evt.OrderID),
		attribute.String("transaction.status", evt.TransactionStatus),
	)

	// 过期对账轮询也走这条事件路径，先把它解决掉
	if op := p.tracker.Pending(domain.ResourcePayment); op != nil && op.Kind == domain.OpPaymentPollExpiry {
		p.tracker.Resolve(op, domain.Outcome{OK: true, Payload: evt})
		return
	}

	p.mu.Lock()
	if p.session.OrderID == "" || p.session.OrderID != evt.OrderID {
		p.mu.Unlock()
		logger.Ctx(ctx).Debug().Str("order", evt.OrderID).Msg("status update for unknown order, dropped")
		return
	}
	p.mu.Unlock()

	switch {
	case evt.Successful:
		p.settle(ctx)
	case evt.Failed:
		p.mu.Lock()
		if p.session.Status == domain.PaymentPending {
			p.session.MarkFailed()
			p.stopCountdownLocked()
			p.mu.Unlock()
			paymentSessionsTotal.WithLabelValues(string(domain.PaymentFailed)).Inc()
			p.notifier.Notify(ctx, port.LevelError, "Payment was declined by the gateway.")
			p.pushState(ctx)
		} else {
			p.mu.Unlock()
		}
	}
}

// HandlePaymentCompleted 处理网关的最终完成确认。
func (p *PaymentController) HandlePaymentCompleted(ctx context.Context, evt *domain.PaymentCompletedEvent) {
	p.mu.Lock()
	known := p.session.OrderID != "" && p.session.OrderID == evt.OrderID
	p.mu.Unlock()
	if !known {
		return
	}
	p.settle(ctx)
}

// HandleCartUpdate 用检测后端的全量内容刷新购物车镜像。
func (p *PaymentController) HandleCartUpdate(ctx context.Context, evt *domain.CartUpdateEvent) {
	p.mu.Lock()
	p.cart.ReplaceAll(evt.Items)
	p.mu.Unlock()
	p.notifier.PushEvent(ctx, "cart_state", p.CartSnapshot())
}

// HandleWidgetResult 处理内嵌支付组件的回调结果。
func (p *PaymentController) HandleWidgetResult(ctx context.Context, result WidgetResult) {
	ctx, span := p.tracer.Start(ctx, "payment.HandleWidgetResult")
	defer span.End()
	span.SetAttributes(attribute.String("result", string(result)))

	switch result {
	case WidgetSuccess:
		p.mu.Lock()
		p.session.WidgetOpen = false
		p.mu.Unlock()
		p.settle(ctx)
	case WidgetPending:
		// 用户选了异步支付方式：留在 PENDING，重新亮出结账视图
		p.mu.Lock()
		p.session.WidgetOpen = false
		p.mu.Unlock()
		p.notifier.PushEvent(ctx, "checkout_view", p.Snapshot())
	case WidgetError:
		p.mu.Lock()
		p.session.WidgetOpen = false
		if p.session.Status == domain.PaymentPending {
			p.session.MarkFailed()
			p.stopCountdownLocked()
		}
		p.mu.Unlock()
		paymentSessionsTotal.WithLabelValues(string(domain.PaymentFailed)).Inc()
		p.notifier.Notify(ctx, port.LevelError, "Payment widget reported an error.")
		p.notifier.PushEvent(ctx, "checkout_view", p.Snapshot())
	case WidgetClose:
		// 用户没付完就关掉了组件：状态不变，只解除 widgetOpen，
		// 让后续的重新打开不被挡住
		p.mu.Lock()
		p.session.WidgetOpen = false
		p.mu.Unlock()
		p.notifier.PushEvent(ctx, "checkout_view", p.Snapshot())
	}
	p.pushState(ctx)
}

// ---- 内部 ----

// createContinuation 是交易创建 Operation 的终态逻辑。
func (p *PaymentController) createContinuation(sessionID string) domain.Continuation {
	return func(outcome domain.Outcome) {
		ctx := context.Background()
		p.recordOperation(ctx, domain.OpPaymentCreate, sessionID, outcome)

		if !outcome.OK {
			p.mu.Lock()
			p.session.MarkFailed()
			p.mu.Unlock()
			paymentSessionsTotal.WithLabelValues(string(domain.PaymentFailed)).Inc()
			reason := outcome.Reason
			if outcome.TimedOut {
				reason = "no response from the payment gateway"
			}
			p.notifier.Notify(ctx, port.LevelError, "Transaction could not be created: "+reason)
			p.pushState(ctx)
			return
		}

		evt := outcome.Payload.(*domain.PaymentCreatedEvent)
		p.mu.Lock()
		if err := p.session.MarkPending(evt.Token, evt.OrderID, evt.TransactionID, evt.ExpiresAt(), time.Now()); err != nil {
			p.mu.Unlock()
			logger.Logger().Warn().Err(err).Msg("transaction confirmed for a session no longer creating, ignored")
			return
		}
		p.startCountdownLocked()
		p.mu.Unlock()

		logger.Logger().Info().Str("order", evt.OrderID).Msg("transaction created, payment pending")
		p.pushState(ctx)
		p.openWidget(ctx, 1)
	}
}

// openWidget 尝试打开内嵌支付组件。
// 组件桥未就绪时以固定退避重试，最多 widgetOpenMaxAttempts 次——
// 有界重试只为吸收脚本加载竞态，不用于网关失败。
func (p *PaymentController) openWidget(ctx context.Context, attempt int) {
	p.mu.Lock()
	if p.session.Status != domain.PaymentPending || p.session.WidgetOpen {
		p.mu.Unlock()
		return
	}
	req := port.WidgetOpenRequest{
		Token:   p.session.WidgetToken,
		OrderID: p.session.OrderID,
		Amount:  p.session.Amount,
	}

	if !p.widget.Ready() {
		if attempt >= widgetOpenMaxAttempts {
			p.mu.Unlock()
			logger.Ctx(ctx).Error().Int("attempts", attempt).Msg("payment widget bridge never became ready")
			p.notifier.Notify(ctx, port.LevelError, "Payment window could not be opened, please retry.")
			return
		}
		widgetOpenRetriesTotal.Inc()
		p.retryTimer = time.AfterFunc(p.widgetRetryDelay, func() {
			p.openWidget(context.Background(), attempt+1)
		})
		p.mu.Unlock()
		return
	}

	p.session.WidgetOpen = true
	p.mu.Unlock()

	if err := p.widget.Open(ctx, req); err != nil {
		p.mu.Lock()
		p.session.WidgetOpen = false
		p.mu.Unlock()
		logger.Ctx(ctx).Error().Err(err).Msg("failed to open payment widget")
		p.notifier.Notify(ctx, port.LevelError, "Payment window could not be opened, please retry.")
		return
	}
	p.pushState(ctx)
}

// startCountdownLocked 启动一秒一跳的倒计时。调用方必须持有 p.mu。
func (p *PaymentController) startCountdownLocked() {
	p.stopCountdownLocked()
	stop := make(chan struct{})
	p.countdownStop = stop

	go func() {
		ticker := time.NewTicker(p.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if p.tickOnce() {
					return
				}
			case <-stop:
				return
			}
		}
	}()
}

// tickOnce 递减一秒，归零时强制过期。返回 true 表示倒计时结束。
func (p *PaymentController) tickOnce() bool {
	p.mu.Lock()
	expired := p.session.Tick()
	if p.session.Status != domain.PaymentPending && !expired {
		p.mu.Unlock()
		return true
	}
	var orderID string
	if expired {
		orderID = p.session.OrderID
		p.stopCountdownLocked()
	}
	p.mu.Unlock()

	ctx := context.Background()
	if expired {
		paymentSessionsTotal.WithLabelValues(string(domain.PaymentExpired)).Inc()
		logger.Logger().Warn().Str("order", orderID).
			Msg("local countdown reached zero, session expired regardless of gateway state")
		p.notifier.Notify(ctx, port.LevelError, "Payment time expired.")
		p.pushState(ctx)
		p.pollAfterExpiry(ctx, orderID)
		return true
	}
	p.pushState(ctx)
	return false
}

// pollAfterExpiry 在本地过期后对网关做最后一次状态对账。
// 迟到的成功仍然要清车——钱可能已经划走；但 UI 不等它。
func (p *PaymentController) pollAfterExpiry(ctx context.Context, orderID string) {
	if orderID == "" {
		return
	}
	op, err := p.tracker.Start(domain.OpPaymentPollExpiry, expiryPollTimeout, func(outcome domain.Outcome) {
		if !outcome.OK {
			return
		}
		status, ok := outcome.Payload.(*domain.PaymentStatusEvent)
		if !ok || !status.Successful {
			return
		}
		bg := context.Background()
		logger.Logger().Warn().Str("order", orderID).
			Msg("gateway reports success after local expiry, honouring it with a cart clear")
		p.settle(bg)
	})
	if err != nil {
		return
	}
	if err := p.channel.CheckPaymentStatus(ctx, orderID); err != nil {
		p.tracker.Cancel(op)
	}
}

// settle 执行支付成功的终态效果，恰好一次。
// 组件回调、带外状态更新、过期后对账——哪条路先到都落在这里。
func (p *PaymentController) settle(ctx context.Context) {
	p.mu.Lock()
	if !p.session.MarkSettled() {
		p.mu.Unlock()
		return
	}
	p.session.MarkSuccess()
	p.stopCountdownLocked()
	orderID := p.session.OrderID
	amount := p.session.Amount
	sessionID := p.session.ID
	p.mu.Unlock()

	paymentSessionsTotal.WithLabelValues(string(domain.PaymentSuccess)).Inc()
	p.recorder.Record(ctx, port.CheckoutEvent{
		Type:      "payment_settled",
		SessionID: sessionID,
		OrderID:   orderID,
		OK:        true,
		Amount:    amount,
		At:        time.Now(),
	})
	p.notifier.Notify(ctx, port.LevelInfo, "Payment successful, thank you!")
	p.pushState(ctx)

	// 宽限期让用户看见确认画面，随后清车并复位会话。
	// 清车命令同时发往后端，本地镜像立即清空。
	p.mu.Lock()
	p.graceTimer = time.AfterFunc(p.successGrace, func() {
		bg := context.Background()
		p.mu.Lock()
		p.cart.Clear()
		p.session.Reset()
		p.mu.Unlock()
		if err := p.channel.ClearCart(bg); err != nil {
			logger.Logger().Warn().Err(err).Msg("cart clear command not delivered")
		}
		p.notifier.PushEvent(bg, "cart_state", p.CartSnapshot())
		p.pushState(bg)
	})
	p.mu.Unlock()
}

// resetSessionLocked 复位会话并取消所有属于它的计时器与在途操作。
// 调用方必须持有 p.mu。
func (p *PaymentController) resetSessionLocked() {
	if op := p.tracker.Pending(domain.ResourcePayment); op != nil {
		p.tracker.Cancel(op)
	}
	p.stopCountdownLocked()
	if p.graceTimer != nil {
		p.graceTimer.Stop()
		p.graceTimer = nil
	}
	if p.retryTimer != nil {
		p.retryTimer.Stop()
		p.retryTimer = nil
	}
	p.session.Reset()
}

// stopCountdownLocked 停止倒计时。调用方必须持有 p.mu。
func (p *PaymentController) stopCountdownLocked() {
	if p.countdownStop != nil {
		close(p.countdownStop)
		p.countdownStop = nil
	}
}

func (p *PaymentController) recordOperation(ctx context.Context, kind domain.OperationKind, sessionID string, outcome domain.Outcome) {
	outcomeLabel := "success"
	if outcome.TimedOut {
		outcomeLabel = "timeout"
	} else if !outcome.OK {
		outcomeLabel = "failure"
	}
	operationsTotal.WithLabelValues(string(kind), outcomeLabel).Inc()
	p.recorder.Record(ctx, port.CheckoutEvent{
		Type:      "payment_operation",
		SessionID: sessionID,
		Kind:      string(kind),
		OK:        outcome.OK,
		Detail:    outcome.Reason,
		At:        time.Now(),
	})
}

func (p *PaymentController) pushState(ctx context.Context) {
	p.notifier.PushEvent(ctx, "payment_state", p.Snapshot())
}

// Snapshot 返回结账会话的只读快照。
func (p *PaymentController) Snapshot() PaymentSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PaymentSnapshot{
		Status:           string(p.session.Status),
		OrderID:          p.session.OrderID,
		TransactionID:    p.session.TransactionID,
		RemainingSeconds: p.session.RemainingSeconds,
		WidgetOpen:       p.session.WidgetOpen,
		Amount:           p.session.Amount,
		Items:            append([]domain.CartItem(nil), p.session.Items...),
	}
}

// CartSnapshot 返回购物车镜像的只读快照。
func (p *PaymentController) CartSnapshot() CartSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return CartSnapshot{
		Items: p.cart.Snapshot(),
		Total: p.cart.Total(),
	}
}

// RemoveItem 请求后端移除一条商品行。镜像等 cart_update 事件回来才变。
func (p *PaymentController) RemoveItem(ctx context.Context, productID string) error {
	return p.channel.RemoveItem(ctx, productID)
}

// ClearCart 请求后端清空购物车。
func (p *PaymentController) ClearCart(ctx context.Context) error {
	return p.channel.ClearCart(ctx)
}

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

type paymentFixture struct {
	controller *PaymentController
	tracker    *domain.Tracker
	channel    *fakeChannel
	notifier   *fakeNotifier
	widget     *fakeWidget
}

func newPaymentFixture() *paymentFixture {
	channel := newFakeChannel()
	notifier := &fakeNotifier{}
	widget := &fakeWidget{ready: true}
	tracker := domain.NewTracker()
	controller := NewPaymentController(
		tracker, channel, notifier, widget, &fakeRecorder{},
		noop.NewTracerProvider().Tracer("test"),
		time.Minute, "IDR", "Self Checkout Customer", "customer@selfcheckout.local",
	)
	controller.tickInterval = 5 * time.Millisecond
	controller.widgetRetryDelay = 10 * time.Millisecond
	controller.successGrace = 20 * time.Millisecond
	return &paymentFixture{
		controller: controller,
		tracker:    tracker,
		channel:    channel,
		notifier:   notifier,
		widget:     widget,
	}
}

func (f *paymentFixture) fillCart(t *testing.T) {
	t.Helper()
	f.controller.HandleCartUpdate(context.Background(), &domain.CartUpdateEvent{
		Items: []domain.CartItem{
			{ProductID: "p1", Name: "Instant Noodles", Price: 3500, Quantity: 2},
			{ProductID: "p2", Name: "Mineral Water", Price: 5000, Quantity: 1},
		},
		Total: 12000,
	})
}

// beginPending 发起结账并让网关确认交易，会话进入 PENDING。
func (f *paymentFixture) beginPending(t *testing.T, expiresIn time.Duration) {
	t.Helper()
	ctx := context.Background()
	f.fillCart(t)
	require.NoError(t, f.controller.InitiateCheckout(ctx))
	require.Equal(t, 1, f.channel.count("create_payment"))

	f.controller.HandlePaymentCreated(ctx, &domain.PaymentCreatedEvent{
		Token:         "snap-token",
		OrderID:       "order-1",
		TransactionID: "tx-1",
		ExpiryUnix:    time.Now().Add(expiresIn).Unix(),
		GrossAmount:   12000,
	})
	require.Equal(t, string(domain.PaymentPending), f.controller.Snapshot().Status)
}

func TestInitiateCheckoutFailsFastOnEmptyCart(t *testing.T) {
	f := newPaymentFixture()

	err := f.controller.InitiateCheckout(context.Background())
	assert.True(t, errors.Is(err, domain.ErrCartEmpty))
	// 空购物车是本地前置检查：命令根本不上通道
	assert.Equal(t, 0, f.channel.count("create_payment"))
	assert.Equal(t, string(domain.PaymentIdle), f.controller.Snapshot().Status)
}

func TestCheckoutHappyPathOpensWidget(t *testing.T) {
	f := newPaymentFixture()
	f.beginPending(t, 900*time.Second)

	req := f.channel.lastArg("create_payment").(port.CreatePaymentRequest)
	assert.Equal(t, int64(12000), req.GrossAmount)
	assert.Equal(t, "IDR", req.Currency)

	snap := f.controller.Snapshot()
	assert.Equal(t, "order-1", snap.OrderID)
	assert.True(t, snap.RemainingSeconds > 890)
	assert.True(t, snap.WidgetOpen)
	require.Equal(t, 1, f.widget.openCount())
	assert.Equal(t, "snap-token", f.widget.opens[0].Token)
}

func TestCreateTimeoutFailsSession(t *testing.T) {
	f := newPaymentFixture()
	f.controller.createTimeout = 20 * time.Millisecond
	f.fillCart(t)

	require.NoError(t, f.controller.InitiateCheckout(context.Background()))
	assert.Eventually(t, func() bool {
		return f.controller.Snapshot().Status == string(domain.PaymentFailed)
	}, time.Second, 10*time.Millisecond)

	// 失败是可重试终态
	require.NoError(t, f.controller.InitiateCheckout(context.Background()))
	assert.Equal(t, 2, f.channel.count("create_payment"))
}

func TestLocalCountdownIsAuthoritativeForExpiry(t *testing.T) {
	f := newPaymentFixture()
	f.beginPending(t, 2*time.Second)

	assert.Eventually(t, func() bool {
		return f.controller.Snapshot().Status == string(domain.PaymentExpired)
	}, time.Second, 10*time.Millisecond)

	// 过期后对网关做最后一次状态对账
	assert.Eventually(t, func() bool {
		return f.channel.count("check_payment_status") == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "order-1", f.channel.lastArg("check_payment_status"))
}

func TestLateSuccessAfterExpiryStillClearsCart(t *testing.T) {
	f := newPaymentFixture()
	f.beginPending(t, 1*time.Second)

	assert.Eventually(t, func() bool {
		return f.controller.Snapshot().Status == string(domain.PaymentExpired)
	}, time.Second, 10*time.Millisecond)

	// 对账轮询带回迟到的成功：UI 状态保持 EXPIRED，但清车仍须执行
	f.controller.HandlePaymentStatus(context.Background(), &domain.PaymentStatusEvent{
		OrderID:           "order-1",
		TransactionStatus: "settlement",
		Successful:        true,
	})
	assert.Equal(t, string(domain.PaymentExpired), f.controller.Snapshot().Status)

	assert.Eventually(t, func() bool {
		return f.channel.count("clear_cart") == 1 && len(f.controller.CartSnapshot().Items) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestRetryFromExpiredSupersedesReconcilePoll(t *testing.T) {
	f := newPaymentFixture()
	f.beginPending(t, 1*time.Second)

	assert.Eventually(t, func() bool {
		return f.controller.Snapshot().Status == string(domain.PaymentExpired)
	}, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return f.channel.count("check_payment_status") == 1
	}, time.Second, 10*time.Millisecond)

	// 对账轮询仍在途（10 秒截止远未到）：立即重试必须成功，轮询被取代
	require.NoError(t, f.controller.InitiateCheckout(context.Background()))
	assert.Equal(t, 2, f.channel.count("create_payment"))

	// 被取代的轮询带回迟到的成功：continuation 已被抑制，新会话不受影响
	f.controller.HandlePaymentStatus(context.Background(), &domain.PaymentStatusEvent{
		OrderID:           "order-1",
		TransactionStatus: "settlement",
		Successful:        true,
	})
	assert.Equal(t, string(domain.PaymentCreating), f.controller.Snapshot().Status)
	assert.Equal(t, 0, f.channel.count("clear_cart"))
}

func TestWidgetCloseKeepsSessionPending(t *testing.T) {
	f := newPaymentFixture()
	f.beginPending(t, 900*time.Second)
	ctx := context.Background()

	f.controller.HandleWidgetResult(ctx, WidgetClose)
	snap := f.controller.Snapshot()
	assert.Equal(t, string(domain.PaymentPending), snap.Status)
	assert.False(t, snap.WidgetOpen)

	// 组件可以按需重新打开
	require.NoError(t, f.controller.ReopenWidget(ctx))
	assert.Equal(t, 2, f.widget.openCount())
}

func TestWidgetSuccessSettlesExactlyOnce(t *testing.T) {
	f := newPaymentFixture()
	f.beginPending(t, 900*time.Second)
	ctx := context.Background()

	f.controller.HandleWidgetResult(ctx, WidgetSuccess)
	assert.Equal(t, string(domain.PaymentSuccess), f.controller.Snapshot().Status)

	// 带外事件随后也到达：终态效果不得重复
	f.controller.HandlePaymentStatus(ctx, &domain.PaymentStatusEvent{
		OrderID:    "order-1",
		Successful: true,
	})
	f.controller.HandlePaymentCompleted(ctx, &domain.PaymentCompletedEvent{OrderID: "order-1"})

	assert.Eventually(t, func() bool {
		return f.channel.count("clear_cart") == 1
	}, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, f.channel.count("clear_cart"))
}

func TestWidgetErrorFailsSession(t *testing.T) {
	f := newPaymentFixture()
	f.beginPending(t, 900*time.Second)

	f.controller.HandleWidgetResult(context.Background(), WidgetError)
	snap := f.controller.Snapshot()
	assert.Equal(t, string(domain.PaymentFailed), snap.Status)
	assert.False(t, snap.WidgetOpen)
}

func TestWidgetOpenRetryIsBounded(t *testing.T) {
	f := newPaymentFixture()
	f.widget.setReady(false)
	f.beginPending(t, 900*time.Second)

	// 桥永不就绪：有界重试耗尽后放弃，会话保持 PENDING
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, f.widget.openCount())
	assert.Equal(t, string(domain.PaymentPending), f.controller.Snapshot().Status)

	// 桥就绪后用户可以手动重开
	f.widget.setReady(true)
	require.NoError(t, f.controller.ReopenWidget(context.Background()))
	assert.Equal(t, 1, f.widget.openCount())
}

func TestOutOfBandFailureWhilePending(t *testing.T) {
	f := newPaymentFixture()
	f.beginPending(t, 900*time.Second)
	f.controller.HandleWidgetResult(context.Background(), WidgetClose)

	f.controller.HandlePaymentStatus(context.Background(), &domain.PaymentStatusEvent{
		OrderID:           "order-1",
		TransactionStatus: "deny",
		Failed:            true,
	})
	assert.Equal(t, string(domain.PaymentFailed), f.controller.Snapshot().Status)
}

func TestStatusUpdateForUnknownOrderIsDropped(t *testing.T) {
	f := newPaymentFixture()
	f.beginPending(t, 900*time.Second)

	f.controller.HandlePaymentStatus(context.Background(), &domain.PaymentStatusEvent{
		OrderID:    "someone-else",
		Successful: true,
	})
	assert.Equal(t, string(domain.PaymentPending), f.controller.Snapshot().Status)
	assert.Equal(t, 0, f.channel.count("clear_cart"))
}

func TestCancelCheckoutNotifiesGateway(t *testing.T) {
	f := newPaymentFixture()
	f.beginPending(t, 900*time.Second)
	f.controller.HandleWidgetResult(context.Background(), WidgetClose)

	require.NoError(t, f.controller.CancelCheckout(context.Background()))
	assert.Equal(t, "order-1", f.channel.lastArg("cancel_payment"))
	assert.Equal(t, string(domain.PaymentIdle), f.controller.Snapshot().Status)
}

func TestCancelDeniedWhileWidgetOpen(t *testing.T) {
	f := newPaymentFixture()
	f.beginPending(t, 900*time.Second)

	err := f.controller.CancelCheckout(context.Background())
	assert.True(t, errors.Is(err, domain.ErrWidgetOpen))
	assert.Equal(t, string(domain.PaymentPending), f.controller.Snapshot().Status)
}

func TestSecondCheckoutRejectedWhilePending(t *testing.T) {
	f := newPaymentFixture()
	f.beginPending(t, 900*time.Second)
	f.controller.HandleWidgetResult(context.Background(), WidgetClose)

	err := f.controller.InitiateCheckout(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, f.channel.count("create_payment"))
}

func TestCartEditsGoThroughBackend(t *testing.T) {
	f := newPaymentFixture()
	f.fillCart(t)
	ctx := context.Background()

	require.NoError(t, f.controller.RemoveItem(ctx, "p1"))
	assert.Equal(t, "p1", f.channel.lastArg("remove_item"))
	// 镜像绝不乐观更新，等 cart_update 事件回来才变
	assert.Len(t, f.controller.CartSnapshot().Items, 2)

	f.controller.HandleCartUpdate(ctx, &domain.CartUpdateEvent{
		Items: []domain.CartItem{{ProductID: "p2", Name: "Mineral Water", Price: 5000, Quantity: 1}},
		Total: 5000,
	})
	assert.Len(t, f.controller.CartSnapshot().Items, 1)
	assert.Equal(t, int64(5000), f.controller.CartSnapshot().Total)
}

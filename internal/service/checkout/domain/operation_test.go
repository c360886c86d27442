package domain

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerSinglePendingPerClass(t *testing.T) {
	tracker := NewTracker()

	op, err := tracker.Start(OpCameraInitialize, 0, func(Outcome) {})
	require.NoError(t, err)
	require.NotNil(t, op)

	// 同类资源的第二个操作必须被拒绝
	_, err = tracker.Start(OpCameraSwitch, 0, func(Outcome) {})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOperationPending))

	// 不同类资源互不干扰
	_, err = tracker.Start(OpModelChange, 0, func(Outcome) {})
	assert.NoError(t, err)
	_, err = tracker.Start(OpPaymentCreate, 0, func(Outcome) {})
	assert.NoError(t, err)
}

func TestTrackerResolveRunsContinuationExactlyOnce(t *testing.T) {
	tracker := NewTracker()

	var calls int32
	op, err := tracker.Start(OpCameraInitialize, 0, func(outcome Outcome) {
		atomic.AddInt32(&calls, 1)
		assert.True(t, outcome.OK)
		assert.Equal(t, OpCameraInitialize, outcome.Kind)
	})
	require.NoError(t, err)

	assert.True(t, tracker.Resolve(op, Outcome{OK: true}))
	// 迟到的重复事件必须被静默丢弃
	assert.False(t, tracker.Resolve(op, Outcome{OK: true}))
	assert.False(t, tracker.Resolve(op, Outcome{OK: false}))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// 解决后同类资源重新可用
	_, err = tracker.Start(OpCameraSwitch, 0, func(Outcome) {})
	assert.NoError(t, err)
}

func TestTrackerDeadlineSynthesizesTimeout(t *testing.T) {
	tracker := NewTracker()

	done := make(chan Outcome, 1)
	op, err := tracker.Start(OpCameraInitialize, 20*time.Millisecond, func(outcome Outcome) {
		done <- outcome
	})
	require.NoError(t, err)

	select {
	case outcome := <-done:
		assert.False(t, outcome.OK)
		assert.True(t, outcome.TimedOut)
		assert.Nil(t, outcome.Payload)
	case <-time.After(time.Second):
		t.Fatal("deadline never fired")
	}

	// 超时之后真正的事件终于到了——必须是 no-op
	assert.False(t, tracker.Resolve(op, Outcome{OK: true}))
	assert.Nil(t, tracker.Pending(ResourceCamera))
}

func TestTrackerCancelSuppressesContinuation(t *testing.T) {
	tracker := NewTracker()

	var calls int32
	op, err := tracker.Start(OpCameraRestoreOnClose, 50*time.Millisecond, func(Outcome) {
		atomic.AddInt32(&calls, 1)
	})
	require.NoError(t, err)

	assert.True(t, tracker.Cancel(op))
	assert.False(t, tracker.Cancel(op))

	// 取消后计时器与事件都不能再触发 continuation
	assert.False(t, tracker.Resolve(op, Outcome{OK: true}))
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))

	// 被取代的类别立即可以开始新操作
	_, err = tracker.Start(OpCameraInitialize, 0, func(Outcome) {})
	assert.NoError(t, err)
}

func TestTrackerPendingReflectsLiveOperation(t *testing.T) {
	tracker := NewTracker()

	assert.Nil(t, tracker.Pending(ResourcePayment))

	op, err := tracker.Start(OpPaymentCreate, 0, func(Outcome) {})
	require.NoError(t, err)
	assert.Equal(t, op, tracker.Pending(ResourcePayment))

	tracker.Resolve(op, Outcome{OK: true})
	assert.Nil(t, tracker.Pending(ResourcePayment))
}

func TestOperationKindClassMapping(t *testing.T) {
	assert.Equal(t, ResourceCamera, OpCameraInitialize.Class())
	assert.Equal(t, ResourceCamera, OpCameraRestoreOnClose.Class())
	assert.Equal(t, ResourceCamera, OpCameraRestoreOnTab.Class())
	assert.Equal(t, ResourceCamera, OpCameraSwitch.Class())
	assert.Equal(t, ResourceModel, OpModelChange.Class())
	assert.Equal(t, ResourceModel, OpModelLabels.Class())
	assert.Equal(t, ResourcePayment, OpPaymentCreate.Class())
	assert.Equal(t, ResourcePayment, OpPaymentPollExpiry.Class())
}

package sse_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"bitmarket/adapters/sse"
	"bitmarket/engine"
)

// fakeSource 以記憶體通道取代 Redis Stream 事件來源
type fakeSource struct {
	events chan engine.Event
	once   sync.Once
}

func newFakeSource() *fakeSource {
	return &fakeSource{events: make(chan engine.Event, 10)}
}

func (f *fakeSource) Start() {}

func (f *fakeSource) Subscribe() <-chan engine.Event {
	return f.events
}

func (f *fakeSource) Close() {
	f.once.Do(func() { close(f.events) })
}

func (f *fakeSource) emit(ev engine.Event) {
	f.events <- ev
}

func TestConnectionManager(t *testing.T) {
	defer goleak.VerifyNone(t)

	source := newFakeSource()
	cm := sse.NewConnectionManager(source, nil)
	cm.Start()
	defer cm.Done()

	// 測試訂閱
	ch, err := cm.Subscribe(1)
	assert.NoError(t, err)
	assert.NotNil(t, ch)

	// 來源事件應被廣播到對應拍賣的訂閱者
	ev := bidEvent(1, 500)
	source.emit(ev)

	select {
	case received := <-ch:
		assert.Equal(t, ev, received)
	case <-time.After(time.Second):
		t.Fatal("did not receive event in time")
	}

	// 測試取消訂閱
	cm.Unsubscribe(1, ch)
	_, ok := <-ch
	assert.False(t, ok, "channel should be closed")
}

func TestConnectionManager_EventRouting(t *testing.T) {
	defer goleak.VerifyNone(t)

	source := newFakeSource()
	cm := sse.NewConnectionManager(source, nil)
	cm.Start()
	defer cm.Done()

	ch1, err := cm.Subscribe(1)
	assert.NoError(t, err)
	ch2, err := cm.Subscribe(2)
	assert.NoError(t, err)

	// 只有對應拍賣的訂閱者會收到事件
	source.emit(bidEvent(2, 700))

	select {
	case received := <-ch2:
		assert.Equal(t, engine.AuctionID(2), received.AuctionID)
	case <-time.After(time.Second):
		t.Fatal("did not receive event in time")
	}

	select {
	case <-ch1:
		t.Fatal("subscriber of another auction should not receive the event")
	case <-time.After(100 * time.Millisecond):
		// Expected timeout
	}

	cm.Unsubscribe(1, ch1)
	cm.Unsubscribe(2, ch2)
}

func TestConnectionManager_Done(t *testing.T) {
	defer goleak.VerifyNone(t)

	source := newFakeSource()
	cm := sse.NewConnectionManager(source, nil)
	cm.Start()

	ch, err := cm.Subscribe(1)
	assert.NoError(t, err)

	cm.Done()

	// Done 之後通道應被關閉，且不能再訂閱
	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after Done")

	_, err = cm.Subscribe(1)
	assert.Error(t, err)

	// 重複呼叫 Done 不應出錯
	cm.Done()
}

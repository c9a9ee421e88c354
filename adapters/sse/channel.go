package sse

import (
	"sync"

	"bitmarket/engine"
)

// subscriberBuffer 是每個訂閱者通道的緩衝量，用於吸收事件突波。
// 緩衝寫滿代表訂閱者已停止消費，後續事件會被丟棄。
const subscriberBuffer = 16

// Channel 用於管理針對某個拍賣的所有訂閱者，
// 並將接收到的事件廣播給所有訂閱者。
type Channel struct {
	subscribers map[<-chan engine.Event]chan<- engine.Event
	mu          sync.RWMutex
}

// NewChannel creates a new SSE channel.
func NewChannel() *Channel {
	return &Channel{
		subscribers: make(map[<-chan engine.Event]chan<- engine.Event),
	}
}

// Subscribe 建立一個新的 chan engine.Event，將其加入 subscribers，並回傳唯讀通道給呼叫者。
func (c *Channel) Subscribe() <-chan engine.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan engine.Event, subscriberBuffer)
	c.subscribers[ch] = ch
	return ch
}

// Unsubscribe 從 subscribers 中移除指定的通道，並關閉該通道。
func (c *Channel) Unsubscribe(ch <-chan engine.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if writeCh, exists := c.subscribers[ch]; exists {
		delete(c.subscribers, ch)
		close(writeCh)
	}
}

// UnsubscribeAll 關閉所有訂閱者的通道並清空訂閱清單。
func (c *Channel) UnsubscribeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, writeCh := range c.subscribers {
		close(writeCh)
	}
	clear(c.subscribers)
}

// Broadcast 將事件廣播給所有仍在訂閱清單中的通道。
// 送出是非阻塞的：訂閱者的緩衝寫滿時丟棄該筆事件。
// Broadcast 在送出期間持有讀鎖，停止消費的訂閱者
// 不能阻塞廣播，否則其他訂閱者的退訂會跟著卡死。
func (c *Channel) Broadcast(ev engine.Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, writeCh := range c.subscribers {
		select {
		case writeCh <- ev:
		default:
		}
	}
}

// IsIdle 判斷 subscribers 是否為空。
func (c *Channel) IsIdle() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subscribers) == 0
}

//go:generate mockgen -package=sse -destination=mock.go -source=interfaces.go

package sse

import "bitmarket/engine"

// IChannel 定義了單一拍賣事件頻道的介面
type IChannel interface {
	// Subscribe 建立一個新的訂閱並返回接收事件的通道
	Subscribe() <-chan engine.Event
	// Unsubscribe 取消指定通道的訂閱
	Unsubscribe(ch <-chan engine.Event)
	// UnsubscribeAll 取消所有訂閱
	UnsubscribeAll()
	// Broadcast 將事件廣播給所有訂閱者
	Broadcast(ev engine.Event)
	// IsIdle 檢查是否沒有訂閱者
	IsIdle() bool
}

// EventSource 定義了事件來源的介面，
// 由 redis adapter 的 EventConsumer 實現，跨節點同步引擎事件
type EventSource interface {
	Start()
	Subscribe() <-chan engine.Event
	Close()
}

// IConnectionManager 定義了 SSE 連線管理員的介面
type IConnectionManager interface {
	// Start 啟動 ConnectionManager，開始處理事件的接收與廣播。
	// 應在呼叫其他方法前先呼叫此方法。
	Start()
	// Done 停止 ConnectionManager，釋放所有資源。
	Done()
	// Subscribe 註冊並訂閱指定拍賣的事件，返回一個新的接收通道。
	Subscribe(auctionID engine.AuctionID) (<-chan engine.Event, error)
	// Unsubscribe 取消訂閱指定拍賣的事件。
	Unsubscribe(auctionID engine.AuctionID, ch <-chan engine.Event)
}

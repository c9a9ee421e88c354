package sse

import (
	"context"
	"log/slog"
	"sync"

	"bitmarket/engine"
)

// connectionManager 管理各拍賣事件頻道的訂閱與廣播。
// 事件來源是 Redis Stream 上的引擎事件，
// 因此多個服務實例的 SSE 連線都能收到同一場拍賣的事件。
type connectionManager struct {
	logger *slog.Logger

	mu     sync.RWMutex   // 保護 active 和 channels 的讀寫
	wg     sync.WaitGroup // 用於等待廣播 goroutine 完成
	active bool           // 標記 manager 是否正在運作中

	source   EventSource                   // 跨節點的引擎事件來源
	channels map[engine.AuctionID]*Channel // 儲存所有活躍的頻道
}

// NewConnectionManager 建立一個新的連線管理器。
// source: 引擎事件來源，通常是 redis adapter 的 EventConsumer
func NewConnectionManager(source EventSource, logger *slog.Logger) IConnectionManager {
	if logger == nil {
		logger = slog.Default()
	}

	return &connectionManager{
		logger:   logger.With(slog.String("caller", "ConnectionManager")),
		channels: make(map[engine.AuctionID]*Channel),
		source:   source,
		active:   true,
	}
}

// Start 啟動連線管理器，開始處理事件的接收與廣播。
// 應在呼叫其他方法前先呼叫此方法。
func (cm *connectionManager) Start() {
	cm.source.Start()

	// 啟動事件分發的 goroutine
	cm.wg.Add(1)
	go func() {
		defer cm.wg.Done()
		for ev := range cm.source.Subscribe() {
			cm.mu.RLock()
			if channel, ok := cm.channels[ev.AuctionID]; ok {
				channel.Broadcast(ev)
			}
			cm.mu.RUnlock()
		}
	}()
}

// Done 停止連線管理器的運作。
func (cm *connectionManager) Done() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if !cm.active {
		return
	}

	cm.active = false
	cm.source.Close()
	cm.wg.Wait()
	for _, channel := range cm.channels {
		channel.UnsubscribeAll()
	}
	clear(cm.channels)
}

// Subscribe 訂閱指定拍賣的事件。
// 返回: 用於接收事件的唯讀通道，以及可能的錯誤
func (cm *connectionManager) Subscribe(auctionID engine.AuctionID) (<-chan engine.Event, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if !cm.active {
		return nil, context.Canceled
	}

	c, ok := cm.channels[auctionID]
	if !ok {
		c = NewChannel()
		cm.channels[auctionID] = c
	}
	return c.Subscribe(), nil
}

// Unsubscribe 取消訂閱指定拍賣的事件。
func (cm *connectionManager) Unsubscribe(auctionID engine.AuctionID, ch <-chan engine.Event) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	c, ok := cm.channels[auctionID]
	if !ok {
		return
	}

	c.Unsubscribe(ch)
	if c.IsIdle() {
		delete(cm.channels, auctionID)
	}
}

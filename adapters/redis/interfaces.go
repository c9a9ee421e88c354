//go:generate mockgen -package=redis -destination=mock.go -source=interfaces.go

package redis

import (
	"context"

	"bitmarket/engine"
)

// IEventProducer 定義了事件發布端的操作介面
type IEventProducer interface {
	Start()
	Publish(ev engine.Event) error
	Close()
}

// IEventConsumer 定義了事件訂閱端的操作介面
type IEventConsumer interface {
	Start()
	Subscribe() <-chan engine.Event
	Close()
}

// IGroupConsumer 定義了消費者群組訂閱端的操作介面，
// 訊息需明確 Done/Fail 以達成至少一次的處理保證
type IGroupConsumer interface {
	Start() error
	Subscribe() <-chan *Message
	Close() error
}

// ILeaderLock 定義了領導者選舉的操作介面，
// 確保同一時間只有一個服務實例在執行某項工作
type ILeaderLock interface {
	// Campaign 反覆競選直到ctx結束。當選後以任期context呼叫lead，
	// 租約遺失時該context會被取消；回傳值是ctx的結束原因。
	Campaign(ctx context.Context, lead func(ctx context.Context)) error
}

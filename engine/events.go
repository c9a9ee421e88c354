package engine

// EventType 列舉引擎的可觀察狀態轉移。
// 一個狀態轉移對應一個事件；結算期間的失敗只會以事件呈現，
// 因為 Tick 沒有可以回報錯誤的呼叫者。
type EventType string

const (
	EventAuctionCreated          EventType = "auction.created"
	EventBidPlaced               EventType = "auction.bid_placed"
	EventAuctionExpiredUnsold    EventType = "auction.expired_unsold"
	EventAuctionFinalized        EventType = "auction.finalized"
	EventAuctionSettlementFailed EventType = "auction.settlement_failed"
	EventItemTransferFailed      EventType = "auction.item_transfer_failed"
	EventAuctionCancelled        EventType = "auction.cancelled"
)

// Event 是引擎發出的事件。依事件類型，Actor 代表賣家、出價者、
// 得標者或取消者；Amount 代表起標價、出價金額或成交金額。
type Event struct {
	Type      EventType `json:"type" msgpack:"type"`
	AuctionID AuctionID `json:"auctionId" msgpack:"auctionId"`
	Actor     AccountID `json:"actor,omitempty" msgpack:"actor,omitempty"`
	Amount    Balance   `json:"amount,omitempty" msgpack:"amount,omitempty"`
	ItemKey   string    `json:"itemKey,omitempty" msgpack:"itemKey,omitempty"`
	At        Tick      `json:"at" msgpack:"at"`
	Reason    string    `json:"reason,omitempty" msgpack:"reason,omitempty"`
}

// EventSink 接收引擎事件，於狀態轉移完成後同步呼叫
type EventSink func(Event)

package engine

import "log/slog"

// Payout 是結算時的一筆撥款
type Payout struct {
	To     AccountID
	Amount Balance
}

// CurrencyEscrow 是引擎消費的貨幣託管能力。
// 引擎假設實作者會序列化同一帳戶的所有餘額異動；
// 引擎本身是單執行緒的，不會並發呼叫這些方法。
type CurrencyEscrow interface {
	// FreeBalance 回傳帳戶可動用的餘額
	FreeBalance(who AccountID) Balance
	// Reserve 自可動用餘額保留指定金額，餘額不足時回傳錯誤
	Reserve(who AccountID, amount Balance) error
	// Unreserve 釋放保留的金額，回傳實際釋放的數量
	Unreserve(who AccountID, amount Balance) Balance
	// Transfer 在兩帳戶的可動用餘額間轉帳
	Transfer(from, to AccountID, amount Balance) error
	// SettleReserved 將保留金額一次性分撥給多個收款人，
	// 全有或全無：任何一筆失敗時不得留下部分轉帳。
	SettleReserved(from AccountID, payouts []Payout) error
}

// ItemRegistry 是引擎消費的物品所有權能力。
// 上架期間物品必須被鎖定，避免賣家在拍賣進行中將其轉走。
type ItemRegistry interface {
	// OwnerOf 回傳物品目前的擁有者
	OwnerOf(item ItemRef) (AccountID, error)
	// TransferItem 將物品所有權自 from 移轉給 to
	TransferItem(from, to AccountID, item ItemRef) error
	// LockItem 鎖定物品，已鎖定時回傳錯誤
	LockItem(item ItemRef) error
	// UnlockItem 解除物品鎖定
	UnlockItem(item ItemRef)
}

// BidDecision 是出價策略掛鉤的回覆。
// NewEnd 非 nil 時引擎會將拍賣結束時間改到指定刻度。
type BidDecision struct {
	Accept bool
	NewEnd *Tick
}

// BidHandler 允許協作者以領域邏輯攔截出價（例如黑名單、自我出價），
// 並在拍賣結束時收到通知。
type BidHandler interface {
	OnNewBid(now Tick, id AuctionID, newBid Bid, lastBid *Bid) BidDecision
	OnAuctionEnded(id AuctionID, winner *Bid)
}

// acceptAllHandler 是預設的出價策略，接受所有出價且不改變結束時間
type acceptAllHandler struct{}

func (acceptAllHandler) OnNewBid(Tick, AuctionID, Bid, *Bid) BidDecision {
	return BidDecision{Accept: true}
}

func (acceptAllHandler) OnAuctionEnded(AuctionID, *Bid) {}

// Config 是引擎的組態
type Config struct {
	// AuctionTimeToClose 反狙擊寬限窗：出價落在結束前這段窗內時，
	// 結束時間會被延後到 now + AuctionTimeToClose
	AuctionTimeToClose Tick
	// MinimumAuctionDuration 拍賣的最短持續刻度
	MinimumAuctionDuration Tick
	// MaxRoyaltyFee 允許的最高版稅率
	MaxRoyaltyFee Ratio
	// NetworkFeeScale 全域刊登收取的網路費率
	NetworkFeeScale Ratio
	// AllowBuyNow 是否允許建立直購刊登
	AllowBuyNow bool
	// SettlementRetryDelay 結算失敗後延後重試的刻度數
	SettlementRetryDelay Tick
	// NetworkTreasury 網路費的入帳帳戶
	NetworkTreasury AccountID
	// Administrator 唯一允許執行管理性取消的帳戶
	Administrator AccountID
}

// DefaultConfig 回傳與鏈上預設一致的引擎組態
func DefaultConfig() Config {
	return Config{
		AuctionTimeToClose:     10,
		MinimumAuctionDuration: 1,
		MaxRoyaltyFee:          RatioFromPercent(20),
		NetworkFeeScale:        RatioFromPercent(1),
		AllowBuyNow:            true,
		SettlementRetryDelay:   10,
		NetworkTreasury:        "treasury",
		Administrator:          "root",
	}
}

// Engine 是拍賣與託管引擎的核心。
// 所有操作都是同步且確定性的：每個外部呼叫處理完畢前不會觀察到下一個，
// Tick 必須以遞增順序驅動。Engine 不是 goroutine-safe 的，
// 呼叫端（例如 API 層）必須自行序列化所有呼叫。
type Engine struct {
	cfg     Config
	escrow  CurrencyEscrow
	items   ItemRegistry
	handler BidHandler
	sink    EventSink
	logger  *slog.Logger

	reg    *registry
	expiry *expiryIndex
}

type engineOptions struct {
	handler BidHandler
	sink    EventSink
	logger  *slog.Logger
}

type Option func(*engineOptions)

// WithBidHandler 設置出價策略掛鉤
func WithBidHandler(handler BidHandler) Option {
	return func(o *engineOptions) {
		o.handler = handler
	}
}

// WithEventSink 設置事件接收器
func WithEventSink(sink EventSink) Option {
	return func(o *engineOptions) {
		o.sink = sink
	}
}

// WithLogger 設置日誌記錄器
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// New 建立一個拍賣引擎
func New(cfg Config, escrow CurrencyEscrow, items ItemRegistry, opts ...Option) *Engine {
	// 默認選項
	options := engineOptions{
		handler: acceptAllHandler{},
		sink:    func(Event) {},
		logger:  slog.Default(),
	}

	// 應用自定義選項
	for _, opt := range opts {
		opt(&options)
	}

	return &Engine{
		cfg:     cfg,
		escrow:  escrow,
		items:   items,
		handler: options.handler,
		sink:    options.sink,
		logger:  options.logger.With(slog.String("caller", "Engine")),
		reg:     newRegistry(),
		expiry:  newExpiryIndex(),
	}
}

// Config 回傳引擎目前的組態
func (e *Engine) Config() Config {
	return e.cfg
}

func (e *Engine) emit(ev Event) {
	e.sink(ev)
}

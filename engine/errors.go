package engine

import "errors"

// 引擎對外的錯誤分類。
// 同步操作 (建立、出價、直購、取消) 直接回傳這些錯誤且不留下任何部分狀態；
// 結算階段的資源類錯誤不會回傳給呼叫者，而是以事件呈現並延後重試。
var (
	// not-found 類
	ErrAuctionNotFound = errors.New("auction not found")
	ErrItemNotFound    = errors.New("item not found")

	// 時間類
	ErrAuctionNotStarted = errors.New("auction not started")
	ErrAuctionExpired    = errors.New("auction expired")

	// 驗證類
	ErrInvalidBidPrice    = errors.New("invalid bid price")
	ErrInvalidDuration    = errors.New("invalid auction duration")
	ErrItemAlreadyListed  = errors.New("item already listed in a live auction")
	ErrBiddingNotEnabled  = errors.New("bidding not enabled for this listing")
	ErrBuyNowDisabled     = errors.New("buy now not enabled for this listing")
	ErrRoyaltyRateTooHigh = errors.New("royalty rate exceeds configured maximum")

	// 策略類
	ErrBidNotAccepted    = errors.New("bid not accepted")
	ErrNoPermission      = errors.New("no permission")
	ErrAlreadyLeadingBid = errors.New("account already holds a leading bid in this scope")
	ErrAuctionHasBids    = errors.New("auction already has bids")

	// 資源類
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrTransferFailed    = errors.New("transfer failed")
)

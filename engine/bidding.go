package engine

import "log/slog"

// PlaceBid 驗證並套用一筆新出價。
// 驗證順序固定：存在性 → 時間窗 → 價格 → 範圍索引 → 策略掛鉤 → 償付能力。
// 通過後，保留新出價者的託管款並退還前一位出價者，兩者在同一步驟內完成，
// 外部觀察者不可能看到不一致的中間狀態。
func (e *Engine) PlaceBid(id AuctionID, bidder AccountID, amount Balance, now Tick) error {
	a, item, ok := e.reg.get(id)
	if !ok {
		return ErrAuctionNotFound
	}
	if item.ListingType == ListingTypeBuyNow {
		return ErrBiddingNotEnabled
	}
	if now < a.Start {
		return ErrAuctionNotStarted
	}
	// 未排程結束時間的刊登不接受出價
	if a.End == nil {
		return ErrBiddingNotEnabled
	}
	if now >= *a.End {
		return ErrAuctionExpired
	}

	if a.Bid != nil {
		if amount <= a.Bid.Amount {
			return ErrInvalidBidPrice
		}
	} else {
		// 首次出價不得為零，且不得低於起標價（現價即價格下限）
		if amount == 0 || amount < item.Amount {
			return ErrInvalidBidPrice
		}
	}

	// 範圍索引：同一個 (元宇宙, 帳戶) 只允許一個插槽拍賣領先出價
	if e.reg.holdsLeading(item, bidder, id) {
		return ErrAlreadyLeadingBid
	}

	// 策略掛鉤可以基於領域理由拒絕出價
	decision := e.handler.OnNewBid(now, id, Bid{Bidder: bidder, Amount: amount}, a.Bid)
	if !decision.Accept {
		return ErrBidNotAccepted
	}

	// 粗粒度的償付能力預檢，避免在保留呼叫前就註定失敗
	if e.escrow.FreeBalance(bidder) < amount {
		return ErrInsufficientFunds
	}

	// 先保留新出價者的款項；失敗時不留下任何狀態變化。
	// 之後才釋放前一位出價者的託管款。
	if err := e.escrow.Reserve(bidder, amount); err != nil {
		return ErrInsufficientFunds
	}
	var lastBidder *AccountID
	if a.Bid != nil {
		released := e.escrow.Unreserve(a.Bid.Bidder, a.Bid.Amount)
		if released != a.Bid.Amount {
			e.logger.Warn("partial escrow release on outbid",
				slog.Uint64("auctionID", uint64(id)),
				slog.String("bidder", string(a.Bid.Bidder)),
				slog.Uint64("expected", uint64(a.Bid.Amount)),
				slog.Uint64("released", uint64(released)))
		}
		b := a.Bid.Bidder
		lastBidder = &b
	}
	e.reg.swapLeading(id, item, bidder, lastBidder)

	a.Bid = &Bid{Bidder: bidder, Amount: amount}
	item.Amount = amount
	item.Recipient = bidder

	// 結束時間調整：策略掛鉤優先，其次是反狙擊寬限窗
	newEnd := decision.NewEnd
	if newEnd == nil && e.cfg.AuctionTimeToClose > 0 && *a.End-now < e.cfg.AuctionTimeToClose {
		extended := now + e.cfg.AuctionTimeToClose
		newEnd = &extended
	}
	if newEnd != nil && *newEnd != *a.End {
		e.expiry.reschedule(id, *a.End, *newEnd)
		a.End = newEnd
	}

	e.logger.Info("bid placed",
		slog.Uint64("auctionID", uint64(id)),
		slog.String("bidder", string(bidder)),
		slog.Uint64("amount", uint64(amount)))
	e.emit(Event{
		Type:      EventBidPlaced,
		AuctionID: id,
		Actor:     bidder,
		Amount:    amount,
		ItemKey:   item.Item.Key(),
		At:        now,
	})
	return nil
}

// BuyNow 以固定價格直接買斷刊登，繞過競價流程並立即結算：
// 保留買家款項、拆分費用、移轉物品所有權都在同一個呼叫內完成，
// 之後拍賣即從註冊表與到期索引中消失。
func (e *Engine) BuyNow(id AuctionID, buyer AccountID, offered Balance, now Tick) error {
	a, item, ok := e.reg.get(id)
	if !ok {
		return ErrAuctionNotFound
	}
	if item.ListingType != ListingTypeBuyNow || !e.cfg.AllowBuyNow {
		return ErrBuyNowDisabled
	}
	if now < a.Start {
		return ErrAuctionNotStarted
	}
	if a.End != nil && now >= *a.End {
		return ErrAuctionExpired
	}
	if offered < item.Amount {
		return ErrInvalidBidPrice
	}

	// 直購走與到期結算相同的路徑：先保留再一次性分撥，
	// 分撥是全有或全無，失敗時退還保留款且不留下部分狀態。
	price := item.Amount
	if err := e.escrow.Reserve(buyer, price); err != nil {
		return ErrInsufficientFunds
	}
	split := e.splitFor(item, price)
	if err := e.escrow.SettleReserved(buyer, e.payouts(item, split)); err != nil {
		released := e.escrow.Unreserve(buyer, price)
		if released != price {
			e.logger.Warn("partial escrow release on failed buy now",
				slog.Uint64("auctionID", uint64(id)),
				slog.String("buyer", string(buyer)),
				slog.Uint64("expected", uint64(price)),
				slog.Uint64("released", uint64(released)))
		}
		return ErrTransferFailed
	}

	e.settleItem(id, a, item, buyer, price, now)
	return nil
}

// splitFor 依刊登設定拆分成交金額；沒有版稅受益人時版稅併回賣家
func (e *Engine) splitFor(item *AuctionItem, amount Balance) FeeSplit {
	rate := item.RoyaltyRate
	if item.RoyaltyRecipient == "" {
		rate = 0
	}
	return SplitFees(amount, rate, e.cfg.NetworkFeeScale, item.Level)
}

// payouts 將費用拆分結果轉成撥款清單，略過零額撥款
func (e *Engine) payouts(item *AuctionItem, split FeeSplit) []Payout {
	payouts := make([]Payout, 0, 3)
	if split.Net > 0 {
		payouts = append(payouts, Payout{To: item.Seller, Amount: split.Net})
	}
	if split.Royalty > 0 {
		payouts = append(payouts, Payout{To: item.RoyaltyRecipient, Amount: split.Royalty})
	}
	if split.NetworkFee > 0 {
		payouts = append(payouts, Payout{To: e.cfg.NetworkTreasury, Amount: split.NetworkFee})
	}
	return payouts
}

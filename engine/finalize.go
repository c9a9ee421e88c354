package engine

import "log/slog"

// Tick 驅動一次結算：取出所有到期時間 <= now 的拍賣並逐場結算。
// Tick 必須以遞增順序呼叫；對相同的 now 重複呼叫是冪等的，
// 因為結算會在同一步驟內將拍賣從註冊表與到期索引中移除。
// 每場拍賣的結算彼此獨立，單場失敗不會阻斷整批。
func (e *Engine) Tick(now Tick) {
	for _, id := range e.expiry.drain(now) {
		a, item, ok := e.reg.get(id)
		if !ok {
			// 已被結算或取消，冪等性守門
			continue
		}
		if a.Bid == nil {
			e.expireUnsold(id, a, item, now)
			continue
		}
		e.settle(id, a, item, now)
	}
}

// expireUnsold 處理無人出價的到期拍賣：釋放物品認領，不動任何資金
func (e *Engine) expireUnsold(id AuctionID, a *Auction, item *AuctionItem, now Tick) {
	e.reg.remove(id)
	e.items.UnlockItem(item.Item)
	e.handler.OnAuctionEnded(id, nil)

	e.logger.Info("auction expired unsold", slog.Uint64("auctionID", uint64(id)))
	e.emit(Event{
		Type:      EventAuctionExpiredUnsold,
		AuctionID: id,
		Actor:     item.Seller,
		ItemKey:   item.Item.Key(),
		At:        now,
	})
}

// settle 結算有領先出價的到期拍賣。
// 資金分撥是全有或全無：失敗時拍賣保持原狀並延後重試，
// 絕不因暫時性的協作者失敗（例如入帳帳戶低於存在性下限）而丟失資金。
func (e *Engine) settle(id AuctionID, a *Auction, item *AuctionItem, now Tick) {
	winner := *a.Bid
	split := e.splitFor(item, winner.Amount)

	if err := e.escrow.SettleReserved(winner.Bidder, e.payouts(item, split)); err != nil {
		// 延後重試：拍賣留在註冊表，重新排入到期索引
		retryAt := now + e.cfg.SettlementRetryDelay
		if e.cfg.SettlementRetryDelay == 0 {
			retryAt = now + 1
		}
		e.expiry.insert(retryAt, id)
		a.End = &retryAt

		e.logger.Error("auction settlement failed, will retry",
			slog.Uint64("auctionID", uint64(id)),
			slog.Uint64("retryAt", uint64(retryAt)),
			slog.Any("error", err))
		e.emit(Event{
			Type:      EventAuctionSettlementFailed,
			AuctionID: id,
			Actor:     winner.Bidder,
			Amount:    winner.Amount,
			At:        now,
			Reason:    err.Error(),
		})
		return
	}

	e.settleItem(id, a, item, winner.Bidder, winner.Amount, now)
}

// settleItem 是資金移動成功後的共同收尾：移轉物品所有權並移除拍賣。
// 資金移動是不可逆的副作用；所有權移轉在其後盡力而為，
// 失敗時只記錄事件留待人工調節，絕不重試已完成的資金移動。
func (e *Engine) settleItem(id AuctionID, a *Auction, item *AuctionItem, winner AccountID, amount Balance, now Tick) {
	e.items.UnlockItem(item.Item)
	if err := e.items.TransferItem(item.Seller, winner, item.Item); err != nil {
		e.logger.Error("item transfer failed after funds moved, manual reconciliation required",
			slog.Uint64("auctionID", uint64(id)),
			slog.String("item", item.Item.Key()),
			slog.String("winner", string(winner)),
			slog.Any("error", err))
		e.emit(Event{
			Type:      EventItemTransferFailed,
			AuctionID: id,
			Actor:     winner,
			Amount:    amount,
			ItemKey:   item.Item.Key(),
			At:        now,
			Reason:    err.Error(),
		})
	}

	if a.End != nil {
		e.expiry.remove(*a.End, id)
	}
	e.reg.remove(id)
	e.handler.OnAuctionEnded(id, &Bid{Bidder: winner, Amount: amount})

	e.logger.Info("auction finalized",
		slog.Uint64("auctionID", uint64(id)),
		slog.String("winner", string(winner)),
		slog.Uint64("amount", uint64(amount)))
	e.emit(Event{
		Type:      EventAuctionFinalized,
		AuctionID: id,
		Actor:     winner,
		Amount:    amount,
		ItemKey:   item.Item.Key(),
		At:        now,
	})
}

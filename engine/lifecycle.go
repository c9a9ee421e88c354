package engine

import "log/slog"

// CreateParams 是建立刊登的參數
type CreateParams struct {
	Seller           AccountID
	Item             ItemRef
	AskPrice         Balance
	Start            Tick
	End              *Tick // 英式拍賣必填；直購刊登可為 nil（不排程到期）
	ListingType      ListingType
	Level            ListingLevel
	RoyaltyRate      Ratio
	RoyaltyRecipient AccountID // 空字串代表無版稅
}

// CreateAuction 原子性地建立拍賣與拍賣物品。
// 物品必須由賣家持有且未被其他進行中的拍賣認領；
// 成功後物品會被鎖定直到結算或取消。
func (e *Engine) CreateAuction(p CreateParams) (AuctionID, error) {
	if p.AskPrice == 0 {
		return 0, ErrInvalidBidPrice
	}
	if p.RoyaltyRate > e.cfg.MaxRoyaltyFee {
		return 0, ErrRoyaltyRateTooHigh
	}
	if p.ListingType == ListingTypeBuyNow && !e.cfg.AllowBuyNow {
		return 0, ErrBuyNowDisabled
	}

	// 英式拍賣必須有具體的結束時間；直購刊登允許不排程，
	// 此時拍賣會持續到成交或取消為止。
	if p.End == nil && p.ListingType == ListingTypeAuction {
		return 0, ErrInvalidDuration
	}
	if p.End != nil {
		if *p.End <= p.Start {
			return 0, ErrInvalidDuration
		}
		if *p.End-p.Start < e.cfg.MinimumAuctionDuration {
			return 0, ErrInvalidDuration
		}
	}

	// 檢查所有權與重複上架
	owner, err := e.items.OwnerOf(p.Item)
	if err != nil {
		return 0, ErrItemNotFound
	}
	if owner != p.Seller {
		return 0, ErrNoPermission
	}
	if e.reg.isListed(p.Item) {
		return 0, ErrItemAlreadyListed
	}
	if err := e.items.LockItem(p.Item); err != nil {
		return 0, ErrItemAlreadyListed
	}

	auction := &Auction{Start: p.Start, End: p.End}
	item := &AuctionItem{
		Item:             p.Item,
		Seller:           p.Seller,
		Recipient:        p.Seller,
		InitialAmount:    p.AskPrice,
		Amount:           p.AskPrice,
		ListingType:      p.ListingType,
		Level:            p.Level,
		RoyaltyRate:      p.RoyaltyRate,
		RoyaltyRecipient: p.RoyaltyRecipient,
	}
	id := e.reg.insert(auction, item)
	if p.End != nil {
		e.expiry.insert(*p.End, id)
	}

	e.logger.Info("auction created",
		slog.Uint64("auctionID", uint64(id)),
		slog.String("seller", string(p.Seller)),
		slog.String("item", p.Item.Key()),
		slog.String("type", p.ListingType.String()),
		slog.Uint64("askPrice", uint64(p.AskPrice)))
	e.emit(Event{
		Type:      EventAuctionCreated,
		AuctionID: id,
		Actor:     p.Seller,
		Amount:    p.AskPrice,
		ItemKey:   p.Item.Key(),
		At:        p.Start,
	})
	return id, nil
}

// CancelAuction 取消刊登。一般取消只允許賣家在尚無出價時執行；
// force 為管理性取消，只允許組態中的管理者帳戶執行，
// 會退還領先出價者的託管款項。
func (e *Engine) CancelAuction(id AuctionID, caller AccountID, force bool, now Tick) error {
	a, item, ok := e.reg.get(id)
	if !ok {
		return ErrAuctionNotFound
	}
	if force {
		if caller != e.cfg.Administrator {
			return ErrNoPermission
		}
	} else if caller != item.Seller {
		return ErrNoPermission
	}
	if a.Bid != nil {
		if !force {
			return ErrAuctionHasBids
		}
		// 管理性取消：退還領先出價者
		released := e.escrow.Unreserve(a.Bid.Bidder, a.Bid.Amount)
		if released != a.Bid.Amount {
			e.logger.Warn("partial escrow release on cancel",
				slog.Uint64("auctionID", uint64(id)),
				slog.Uint64("expected", uint64(a.Bid.Amount)),
				slog.Uint64("released", uint64(released)))
		}
	}

	if a.End != nil {
		e.expiry.remove(*a.End, id)
	}
	e.reg.remove(id)
	e.items.UnlockItem(item.Item)

	e.logger.Info("auction cancelled",
		slog.Uint64("auctionID", uint64(id)),
		slog.String("caller", string(caller)),
		slog.Bool("force", force))
	e.emit(Event{
		Type:      EventAuctionCancelled,
		AuctionID: id,
		Actor:     caller,
		ItemKey:   item.Item.Key(),
		At:        now,
	})
	return nil
}

// GetAuction 回傳拍賣的唯讀副本
func (e *Engine) GetAuction(id AuctionID) (Auction, bool) {
	a, _, ok := e.reg.get(id)
	if !ok {
		return Auction{}, false
	}
	out := *a
	if a.Bid != nil {
		bid := *a.Bid
		out.Bid = &bid
	}
	if a.End != nil {
		end := *a.End
		out.End = &end
	}
	return out, true
}

// GetAuctionItem 回傳拍賣物品的唯讀副本
func (e *Engine) GetAuctionItem(id AuctionID) (AuctionItem, bool) {
	_, item, ok := e.reg.get(id)
	if !ok {
		return AuctionItem{}, false
	}
	return *item, true
}

// IsItemListed 檢查物品是否已被進行中的拍賣認領
func (e *Engine) IsItemListed(item ItemRef) bool {
	return e.reg.isListed(item)
}

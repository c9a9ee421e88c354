package engine

// scopeKey 是領先出價索引的鍵：同一個 (元宇宙, 帳戶) 在同一時刻
// 只允許持有一個插槽拍賣的領先出價，避免同一筆餘額被多場拍賣重複佔用。
type scopeKey struct {
	Metaverse MetaverseID
	Who       AccountID
}

// registry 擁有所有進行中的拍賣、單調遞增的編號產生器、
// 物品認領表與本地市場的領先出價索引。
// 已結束的拍賣會被移除，編號永不重用。
type registry struct {
	nextID   AuctionID
	auctions map[AuctionID]*Auction
	items    map[AuctionID]*AuctionItem
	listed   map[string]AuctionID // 物品認領鍵 → 進行中的拍賣
	leading  map[scopeKey]AuctionID
}

func newRegistry() *registry {
	return &registry{
		auctions: make(map[AuctionID]*Auction),
		items:    make(map[AuctionID]*AuctionItem),
		listed:   make(map[string]AuctionID),
		leading:  make(map[scopeKey]AuctionID),
	}
}

// insert 原子性地配置下一個編號並寫入拍賣與物品。
// 編號配置與寫入在同一步驟內完成，不存在全域的環境狀態。
func (r *registry) insert(a *Auction, item *AuctionItem) AuctionID {
	id := r.nextID
	r.nextID++
	r.auctions[id] = a
	r.items[id] = item
	r.listed[item.Item.Key()] = id
	return id
}

// remove 移除拍賣及其所有索引項。回傳 false 表示拍賣不存在，
// 這是結算冪等性的守門條件。
func (r *registry) remove(id AuctionID) bool {
	a, ok := r.auctions[id]
	if !ok {
		return false
	}
	item := r.items[id]
	delete(r.auctions, id)
	delete(r.items, id)
	delete(r.listed, item.Item.Key())
	if a.Bid != nil {
		delete(r.leading, leadingKey(item, a.Bid.Bidder))
	}
	return true
}

// get 回傳拍賣與物品，兩者同生共死
func (r *registry) get(id AuctionID) (*Auction, *AuctionItem, bool) {
	a, ok := r.auctions[id]
	if !ok {
		return nil, nil, false
	}
	return a, r.items[id], true
}

// isListed 檢查物品是否已被進行中的拍賣認領
func (r *registry) isListed(item ItemRef) bool {
	_, ok := r.listed[item.Key()]
	return ok
}

// leadingKey 回傳拍賣在領先出價索引中的鍵。
// 索引只約束本地刊登的插槽拍賣（對應每個元宇宙一次的插槽購買嘗試）。
func leadingKey(item *AuctionItem, who AccountID) scopeKey {
	return scopeKey{Metaverse: item.Level.Metaverse, Who: who}
}

// scoped 判斷拍賣是否受領先出價索引約束
func scoped(item *AuctionItem) bool {
	return item.Item.Kind == ItemSpot && item.Level.Kind == ListingLocal
}

// holdsLeading 檢查帳戶是否已在同範圍持有其他拍賣的領先出價
func (r *registry) holdsLeading(item *AuctionItem, who AccountID, self AuctionID) bool {
	if !scoped(item) {
		return false
	}
	held, ok := r.leading[leadingKey(item, who)]
	return ok && held != self
}

// swapLeading 將領先出價索引從前一位出價者換到新出價者
func (r *registry) swapLeading(id AuctionID, item *AuctionItem, newBidder AccountID, lastBidder *AccountID) {
	if !scoped(item) {
		return
	}
	if lastBidder != nil {
		delete(r.leading, leadingKey(item, *lastBidder))
	}
	r.leading[leadingKey(item, newBidder)] = id
}

package engine

import "fmt"

// 引擎內部使用的基本型別。
// 引擎不讀取真實時鐘，所有時間以單調遞增的刻度 (Tick) 表示，
// 由外部依遞增順序驅動，確保在相同輸入序列下產生完全相同的輸出。
type (
	AccountID   string
	Balance     uint64
	AuctionID   uint64
	MetaverseID uint64
	ClassID     uint64
	TokenID     uint64
	Tick        uint64
)

// ItemKind 列舉所有可以被拍賣的物品類型
type ItemKind uint8

const (
	ItemNFT ItemKind = iota
	ItemStackableNFT
	ItemSpot
	ItemMetaverse
	ItemBlock
	ItemEstate
	ItemLandUnit
	ItemBundle
)

func (k ItemKind) String() string {
	switch k {
	case ItemNFT:
		return "nft"
	case ItemStackableNFT:
		return "stackable-nft"
	case ItemSpot:
		return "spot"
	case ItemMetaverse:
		return "metaverse"
	case ItemBlock:
		return "block"
	case ItemEstate:
		return "estate"
	case ItemLandUnit:
		return "land-unit"
	case ItemBundle:
		return "bundle"
	default:
		return "unknown"
	}
}

// ItemRef 代表一個可轉讓物品的參照，依 Kind 決定哪些欄位有效。
// 引擎只持有物品的認領權 (claim)，實際的所有權異動由 ItemRegistry 處理。
type ItemRef struct {
	Kind ItemKind

	Class  ClassID // ItemNFT / ItemStackableNFT
	Token  TokenID // ItemNFT / ItemStackableNFT
	Amount Balance // ItemStackableNFT 的可堆疊數量

	SpotID    uint64      // ItemSpot
	Metaverse MetaverseID // ItemSpot / ItemMetaverse / ItemLandUnit
	BlockID   uint64      // ItemBlock
	EstateID  uint64      // ItemEstate
	X, Y      int32       // ItemLandUnit 的座標

	Bundle []ItemRef // ItemBundle 包含的子物品（僅允許 NFT）
}

// NFTItem 建立一個 NFT 物品參照
func NFTItem(class ClassID, token TokenID) ItemRef {
	return ItemRef{Kind: ItemNFT, Class: class, Token: token}
}

// StackableNFTItem 建立一個可堆疊 NFT 物品參照
func StackableNFTItem(class ClassID, token TokenID, amount Balance) ItemRef {
	return ItemRef{Kind: ItemStackableNFT, Class: class, Token: token, Amount: amount}
}

// SpotItem 建立一個地圖插槽物品參照
func SpotItem(spotID uint64, metaverse MetaverseID) ItemRef {
	return ItemRef{Kind: ItemSpot, SpotID: spotID, Metaverse: metaverse}
}

// MetaverseItem 建立一個元宇宙物品參照
func MetaverseItem(metaverse MetaverseID) ItemRef {
	return ItemRef{Kind: ItemMetaverse, Metaverse: metaverse}
}

// BlockItem 建立一個未部署土地區塊的物品參照
func BlockItem(blockID uint64) ItemRef {
	return ItemRef{Kind: ItemBlock, BlockID: blockID}
}

// EstateItem 建立一個莊園物品參照
func EstateItem(estateID uint64) ItemRef {
	return ItemRef{Kind: ItemEstate, EstateID: estateID}
}

// LandUnitItem 建立一個土地單位物品參照
func LandUnitItem(x, y int32, metaverse MetaverseID) ItemRef {
	return ItemRef{Kind: ItemLandUnit, X: x, Y: y, Metaverse: metaverse}
}

// BundleItem 建立一個打包出售的物品參照
func BundleItem(items ...ItemRef) ItemRef {
	return ItemRef{Kind: ItemBundle, Bundle: items}
}

// Key 回傳物品的唯一認領鍵，用於防止同一物品被重複上架。
// Bundle 的鍵由所有子物品的鍵組成，因此任何子物品重疊都會衝突。
func (i ItemRef) Key() string {
	switch i.Kind {
	case ItemNFT, ItemStackableNFT:
		return fmt.Sprintf("nft:%d:%d", i.Class, i.Token)
	case ItemSpot:
		return fmt.Sprintf("spot:%d:%d", i.Metaverse, i.SpotID)
	case ItemMetaverse:
		return fmt.Sprintf("metaverse:%d", i.Metaverse)
	case ItemBlock:
		return fmt.Sprintf("block:%d", i.BlockID)
	case ItemEstate:
		return fmt.Sprintf("estate:%d", i.EstateID)
	case ItemLandUnit:
		return fmt.Sprintf("land:%d:%d:%d", i.Metaverse, i.X, i.Y)
	case ItemBundle:
		key := "bundle"
		for _, sub := range i.Bundle {
			key += "|" + sub.Key()
		}
		return key
	default:
		return fmt.Sprintf("unknown:%d", i.Kind)
	}
}

// ListingLevelKind 區分全域市場與元宇宙內的本地市場
type ListingLevelKind uint8

const (
	ListingGlobal ListingLevelKind = iota
	ListingLocal
)

// ListingLevel 表示刊登範圍，本地刊登會記錄所屬的元宇宙。
// 刊登範圍影響費用路由：只有全域刊登會被收取網路費。
type ListingLevel struct {
	Kind      ListingLevelKind
	Metaverse MetaverseID // 僅 ListingLocal 有效
}

// GlobalListing 建立全域刊登範圍
func GlobalListing() ListingLevel {
	return ListingLevel{Kind: ListingGlobal}
}

// LocalListing 建立元宇宙內的本地刊登範圍
func LocalListing(metaverse MetaverseID) ListingLevel {
	return ListingLevel{Kind: ListingLocal, Metaverse: metaverse}
}

// ListingType 區分英式拍賣與直購刊登
type ListingType uint8

const (
	ListingTypeAuction ListingType = iota
	ListingTypeBuyNow
)

func (t ListingType) String() string {
	if t == ListingTypeBuyNow {
		return "buy-now"
	}
	return "auction"
}

// Bid 代表一筆出價
type Bid struct {
	Bidder AccountID
	Amount Balance
}

// Auction 紀錄一場拍賣的時間窗與目前的領先出價。
// End 為 nil 表示尚未排程結束時間，只有直購刊登允許這種狀態：
// 這類刊登不會進入到期佇列，在售出或取消之前會一直掛在架上。
type Auction struct {
	Bid   *Bid
	Start Tick
	End   *Tick
}

// AuctionItem 紀錄拍賣物品與金流資訊。
// Seller 是收款人，不會改變；Recipient 是物品的認領人，
// 初始為賣家，之後隨著領先出價者更新。
type AuctionItem struct {
	Item             ItemRef
	Seller           AccountID
	Recipient        AccountID
	InitialAmount    Balance
	Amount           Balance // 現價：領先出價金額，尚無出價時為起標價
	ListingType      ListingType
	Level            ListingLevel
	RoyaltyRate      Ratio
	RoyaltyRecipient AccountID // 空字串代表無版稅受益人，版稅併回賣家
}

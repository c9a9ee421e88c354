package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"bitmarket/adapters/assets"
	"bitmarket/adapters/ledger"
	redisAdapter "bitmarket/adapters/redis"
	"bitmarket/adapters/sse"
	"bitmarket/engine"
	"bitmarket/models"
)

type ServerImpl struct {
	// engine不是goroutine-safe的，所有進入引擎的呼叫都必須持有engineMu
	engineMu sync.Mutex
	engine   *engine.Engine
	ledger   *ledger.Ledger
	items    *assets.Registry
	clock    atomic.Uint64

	htmlChecker   *bluemonday.Policy
	redisClient   *redis.Client
	producer      redisAdapter.IEventProducer
	sseManager    sse.IConnectionManager
	groupConsumer redisAdapter.IGroupConsumer
	tickLeader    redisAdapter.ILeaderLock
	wg            sync.WaitGroup
	cancelFunc    context.CancelFunc
	db            *gorm.DB

	config ServerConfig
}

func NewServer(config ServerConfig) (*ServerImpl, error) {
	const op = "NewServer"

	// 初始化資料庫連線
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s", config.DB.User, config.DB.Password, config.DB.Host, config.DB.Port, config.DB.Database, config.DB.Schema)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		NamingStrategy: schema.NamingStrategy{
			TablePrefix: config.DB.Schema + ".",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to connect to database, err=%w", op, err)
	}
	if err := db.AutoMigrate(&models.Listing{}, &models.BidRecord{}, &models.Settlement{}); err != nil {
		return nil, fmt.Errorf("[%s] Fail to migrate database, err=%w", op, err)
	}

	// 初始化Redis連線
	redisClient := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})

	// 初始化事件發布者，引擎事件經由Redis Stream同步到所有實例
	producer, err := redisAdapter.NewEventProducer(redisClient, config.Redis.StreamKeys.Events)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create event producer, err=%w", op, err)
	}

	// 初始化SSE管理器，事件來源是同一條Stream
	consumer, err := redisAdapter.NewEventConsumer(redisClient, config.Redis.StreamKeys.Events)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create event consumer, err=%w", op, err)
	}
	sseManager := sse.NewConnectionManager(consumer, slog.Default())

	// 初始化group consumer，用於將事件封存到資料庫
	groupConsumer, err := redisAdapter.NewGroupConsumer(
		redisClient,
		config.Redis.StreamKeys.Events,
		config.Redis.ConsumerGroup,
		config.ID,
		redisAdapter.WithGroupConsumerLogger(slog.Default()),
		redisAdapter.WithGroupConsumerStrictOrdering(true),
	)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create group consumer, err=%w", op, err)
	}

	// 初始化引擎與記憶體內的資金託管、物品登記
	accountLedger := ledger.New()
	itemRegistry := assets.New()
	engineCfg := engine.Config{
		AuctionTimeToClose:     engine.Tick(config.Engine.AuctionTimeToClose),
		MinimumAuctionDuration: engine.Tick(config.Engine.MinimumAuctionDuration),
		MaxRoyaltyFee:          engine.RatioFromPercent(config.Engine.MaxRoyaltyFeePercent),
		NetworkFeeScale:        engine.RatioFromPercent(config.Engine.NetworkFeePercent),
		AllowBuyNow:            config.Engine.AllowBuyNow,
		SettlementRetryDelay:   engine.Tick(config.Engine.SettlementRetryDelay),
		NetworkTreasury:        engine.AccountID(config.Engine.NetworkTreasury),
		Administrator:          engine.AccountID(config.Engine.Administrator),
	}
	auctionEngine := engine.New(
		engineCfg,
		accountLedger,
		itemRegistry,
		engine.WithLogger(slog.Default()),
		engine.WithEventSink(func(ev engine.Event) {
			if err := producer.Publish(ev); err != nil {
				slog.Error("Fail to publish engine event", slog.Any("error", err))
			}
		}),
	)

	// 只有當選tick leader的實例推進引擎時脈
	tickLeader, err := redisAdapter.NewLeaderLock(
		redisClient,
		fmt.Sprintf("lock:%s:tick", config.Redis.StreamKeys.Events),
	)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create tick leader lock, err=%w", op, err)
	}

	return &ServerImpl{
		engine:        auctionEngine,
		ledger:        accountLedger,
		items:         itemRegistry,
		htmlChecker:   bluemonday.UGCPolicy(),
		redisClient:   redisClient,
		producer:      producer,
		sseManager:    sseManager,
		groupConsumer: groupConsumer,
		tickLeader:    tickLeader,
		db:            db,
		config:        config,
	}, nil
}

func (impl *ServerImpl) Start() error {
	const op = "Start"
	// 啟動事件發布者
	impl.producer.Start()
	// 啟動sse connection manager
	impl.sseManager.Start()
	// 啟動group consumer
	if err := impl.groupConsumer.Start(); err != nil {
		return fmt.Errorf("[%s] Fail to start group consumer, err=%w", op, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	impl.cancelFunc = cancel

	// 啟動一個worker用於將引擎事件封存到資料庫
	slog.Info("Start event archive worker")
	impl.wg.Add(1)
	go impl.runArchiver(ctx)

	// 啟動引擎時脈，持有分散式鎖的實例才推進拍賣結算
	slog.Info("Start engine ticker")
	impl.wg.Add(1)
	go impl.runTicker(ctx)

	return nil
}

func (impl *ServerImpl) Close() {
	// 關閉group consumer
	impl.groupConsumer.Close()
	// 關閉worker
	impl.cancelFunc()
	impl.wg.Wait()
	// 關閉sse connection manager
	impl.sseManager.Done()
	// 關閉事件發布者
	impl.producer.Close()
}

// runTicker 以固定間隔推進引擎時脈。
// 透過領導者選舉保證同一時間只有一個實例在驅動結算；
// 任期結束（租約遺失或服務關閉）時時脈停止，重新競選後繼續。
func (impl *ServerImpl) runTicker(ctx context.Context) {
	logger := slog.Default().With(slog.String("caller", "EngineTicker"))
	defer impl.wg.Done()
	defer logger.Info("Engine ticker stopped")

	impl.tickLeader.Campaign(ctx, func(term context.Context) {
		ticker := time.NewTicker(impl.config.Engine.TickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-term.Done():
				if ctx.Err() == nil {
					logger.Warn("Tick leadership lost, re-campaigning")
				}
				return
			case <-ticker.C:
				now := engine.Tick(impl.clock.Add(1))
				impl.engineMu.Lock()
				impl.engine.Tick(now)
				impl.engineMu.Unlock()
			}
		}
	})
}

// runArchiver 消費引擎事件並寫入資料庫，作為拍賣的歷史紀錄。
// 訊息處理失敗時會移動到dead-letter stream，避免阻塞後續事件。
func (impl *ServerImpl) runArchiver(ctx context.Context) {
	logger := slog.Default().With(slog.String("caller", "EventArchiver"))
	defer impl.wg.Done()
	defer logger.Info("Event archive worker stopped")
	defer impl.groupConsumer.Close()

	ch := impl.groupConsumer.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			logger.Debug("Receive event", slog.String("type", string(msg.Data.Type)))
			handleErr := impl.archiveEvent(msg.Data)
			if handleErr != nil {
				logger.Error("Fail to archive event", slog.Any("error", handleErr))
				if err := msg.Fail(ctx, handleErr); err != nil {
					logger.Error("Fail to fail message", slog.Any("error", err))
				}
				continue
			}
			if err := msg.Done(ctx); err != nil {
				logger.Error("Archive success but fail to done message", slog.Any("error", err))
				if err := msg.Fail(ctx, err); err != nil {
					logger.Error("Archive success but fail to fail message", slog.Any("error", err))
				}
				continue
			}
			logger.Debug("Archive success")
		}
	}
}

// archiveEvent 將單一引擎事件轉換為資料庫紀錄
func (impl *ServerImpl) archiveEvent(ev engine.Event) error {
	switch ev.Type {
	case engine.EventBidPlaced:
		var listing models.Listing
		if result := impl.db.Where("engine_id = ?", uint64(ev.AuctionID)).First(&listing); result.Error != nil {
			return fmt.Errorf("fail to find listing, err=%w", result.Error)
		}
		record := models.BidRecord{
			ListingID: listing.ID,
			Bidder:    string(ev.Actor),
			Amount:    uint64(ev.Amount),
			PlacedAt:  uint64(ev.At),
		}
		if result := impl.db.Create(&record); result.Error != nil {
			return fmt.Errorf("fail to create bid record, err=%w", result.Error)
		}
		return nil
	case engine.EventAuctionFinalized:
		return impl.archiveOutcome(ev, "sold", "finalized")
	case engine.EventAuctionExpiredUnsold:
		return impl.archiveOutcome(ev, "closed", "expired_unsold")
	case engine.EventAuctionCancelled:
		return impl.archiveOutcome(ev, "cancelled", "cancelled")
	default:
		// 暫態事件(reschedule、結算重試等)不需要封存
		return nil
	}
}

func (impl *ServerImpl) archiveOutcome(ev engine.Event, status, outcome string) error {
	var listing models.Listing
	if result := impl.db.Where("engine_id = ?", uint64(ev.AuctionID)).First(&listing); result.Error != nil {
		return fmt.Errorf("fail to find listing, err=%w", result.Error)
	}
	settlement := models.Settlement{
		ListingID: listing.ID,
		Outcome:   outcome,
		Amount:    uint64(ev.Amount),
		ClosedAt:  uint64(ev.At),
		Reason:    ev.Reason,
	}
	if ev.Actor != "" {
		settlement.Winner = lo.ToPtr(string(ev.Actor))
	}
	// 同一場拍賣只會有一筆結果，結算重試後的成功事件直接覆蓋
	if result := impl.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "listing_id"}},
		UpdateAll: true,
	}).Create(&settlement); result.Error != nil {
		return fmt.Errorf("fail to create settlement, err=%w", result.Error)
	}
	if result := impl.db.Model(&listing).Update("status", status); result.Error != nil {
		return fmt.Errorf("fail to update listing status, err=%w", result.Error)
	}
	return nil
}

// now 回傳目前的引擎刻度
func (impl *ServerImpl) now() engine.Tick {
	return engine.Tick(impl.clock.Load())
}

// RegisterRoutes 註冊所有HTTP路由
func (impl *ServerImpl) RegisterRoutes(router *gin.Engine) {
	router.POST("/auction/listings", impl.PostListing)
	router.GET("/auction/listings", impl.GetListings)
	router.GET("/auction/listings/:listingID", impl.GetListing)
	router.DELETE("/auction/listings/:listingID", impl.DeleteListing)
	router.POST("/auction/listings/:listingID/bids", impl.PostBid)
	router.POST("/auction/listings/:listingID/buy", impl.PostBuyNow)
	router.GET("/auction/listings/:listingID/events", impl.GetListingEvents)

	router.POST("/accounts/:account/deposit", impl.PostDeposit)
	router.GET("/accounts/:account", impl.GetAccount)
	router.POST("/items", impl.PostItem)
}

// ItemPayload 是HTTP層的物品描述，依kind決定哪些欄位有效
type ItemPayload struct {
	Kind      string        `json:"kind" binding:"required"`
	Class     uint64        `json:"class,omitempty"`
	Token     uint64        `json:"token,omitempty"`
	Amount    uint64        `json:"amount,omitempty"`
	SpotID    uint64        `json:"spotId,omitempty"`
	Metaverse uint64        `json:"metaverse,omitempty"`
	BlockID   uint64        `json:"blockId,omitempty"`
	EstateID  uint64        `json:"estateId,omitempty"`
	X         int32         `json:"x,omitempty"`
	Y         int32         `json:"y,omitempty"`
	Bundle    []ItemPayload `json:"bundle,omitempty"`
}

func (p ItemPayload) toRef() (engine.ItemRef, error) {
	switch p.Kind {
	case "nft":
		return engine.NFTItem(engine.ClassID(p.Class), engine.TokenID(p.Token)), nil
	case "stackable-nft":
		return engine.StackableNFTItem(engine.ClassID(p.Class), engine.TokenID(p.Token), engine.Balance(p.Amount)), nil
	case "spot":
		return engine.SpotItem(p.SpotID, engine.MetaverseID(p.Metaverse)), nil
	case "metaverse":
		return engine.MetaverseItem(engine.MetaverseID(p.Metaverse)), nil
	case "block":
		return engine.BlockItem(p.BlockID), nil
	case "estate":
		return engine.EstateItem(p.EstateID), nil
	case "land-unit":
		return engine.LandUnitItem(p.X, p.Y, engine.MetaverseID(p.Metaverse)), nil
	case "bundle":
		children := make([]engine.ItemRef, 0, len(p.Bundle))
		for _, sub := range p.Bundle {
			ref, err := sub.toRef()
			if err != nil {
				return engine.ItemRef{}, err
			}
			children = append(children, ref)
		}
		return engine.BundleItem(children...), nil
	default:
		return engine.ItemRef{}, fmt.Errorf("unknown item kind: %s", p.Kind)
	}
}

type PostListingRequest struct {
	Seller             string      `json:"seller" binding:"required"`
	Item               ItemPayload `json:"item" binding:"required"`
	AskPrice           uint64      `json:"askPrice" binding:"required"`
	Start              *uint64     `json:"start,omitempty"`
	End                *uint64     `json:"end,omitempty"`
	ListingType        string      `json:"listingType"`
	Metaverse          *uint64     `json:"metaverse,omitempty"`
	RoyaltyRatePercent uint32      `json:"royaltyRatePercent"`
	RoyaltyRecipient   string      `json:"royaltyRecipient,omitempty"`
	Memo               string      `json:"memo,omitempty"`
}

// Add a new auction listing
// (POST /auction/listings)
func (impl *ServerImpl) PostListing(c *gin.Context) {
	const op = "PostListing"
	var request PostListingRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	item, err := request.Item.toRef()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	listingType := engine.ListingTypeAuction
	if request.ListingType == "buy-now" {
		listingType = engine.ListingTypeBuyNow
	}
	level := engine.GlobalListing()
	if request.Metaverse != nil {
		level = engine.LocalListing(engine.MetaverseID(*request.Metaverse))
	}

	now := impl.now()
	start := now
	if request.Start != nil {
		start = engine.Tick(*request.Start)
	}
	var end *engine.Tick
	if request.End != nil {
		end = lo.ToPtr(engine.Tick(*request.End))
	}

	params := engine.CreateParams{
		Seller:           engine.AccountID(request.Seller),
		Item:             item,
		AskPrice:         engine.Balance(request.AskPrice),
		Start:            start,
		End:              end,
		ListingType:      listingType,
		Level:            level,
		RoyaltyRate:      engine.RatioFromPercent(request.RoyaltyRatePercent),
		RoyaltyRecipient: engine.AccountID(request.RoyaltyRecipient),
	}

	impl.engineMu.Lock()
	id, err := impl.engine.CreateAuction(params)
	impl.engineMu.Unlock()
	if err != nil {
		c.JSON(engineErrorStatus(err), gin.H{"message": err.Error()})
		return
	}

	// 將刊登寫入封存，memo會先過一次HTML過濾
	listing := models.Listing{
		EngineID:      uint64(id),
		Seller:        request.Seller,
		ItemKey:       item.Key(),
		ListingType:   listingType.String(),
		InitialAmount: request.AskPrice,
		Memo:          impl.htmlChecker.Sanitize(request.Memo),
	}
	if request.Metaverse != nil {
		listing.Metaverse = request.Metaverse
	}
	if result := impl.db.Create(&listing); result.Error != nil {
		slog.Error("Fail to archive listing", slog.String("op", op), slog.Any("error", result.Error))
	}

	c.Header("Location", fmt.Sprintf("/auction/listings/%d", id))
	c.JSON(http.StatusCreated, gin.H{"id": uint64(id)})
}

// Get auction listing details
// (GET /auction/listings/{listingID})
func (impl *ServerImpl) GetListing(c *gin.Context) {
	const op = "GetListing"
	id, ok := parseListingID(c)
	if !ok {
		return
	}

	impl.engineMu.Lock()
	a, live := impl.engine.GetAuction(id)
	item, _ := impl.engine.GetAuctionItem(id)
	now := impl.now()
	impl.engineMu.Unlock()

	var listing models.Listing
	archived := true
	if result := impl.db.Where("engine_id = ?", uint64(id)).
		Preload("BidRecords", func(db *gorm.DB) *gorm.DB {
			return db.Order(clause.OrderByColumn{Column: clause.Column{Name: "placed_at"}, Desc: true})
		}).
		Preload("Settlement").
		First(&listing); result.Error != nil {
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
			slog.Error("Fail to load listing archive", slog.String("op", op), slog.Any("error", result.Error))
			return
		}
		archived = false
	}

	if !live && !archived {
		c.Status(http.StatusNotFound)
		return
	}

	response := gin.H{"id": uint64(id)}
	if archived {
		response["seller"] = listing.Seller
		response["itemKey"] = listing.ItemKey
		response["listingType"] = listing.ListingType
		response["askPrice"] = listing.InitialAmount
		response["status"] = listing.Status
		response["memo"] = listing.Memo
		if listing.Metaverse != nil {
			response["metaverse"] = *listing.Metaverse
		}
		response["bidRecords"] = lo.Map(listing.BidRecords, func(r models.BidRecord, _ int) gin.H {
			return gin.H{"bidder": r.Bidder, "amount": r.Amount, "placedAt": r.PlacedAt}
		})
		if listing.Settlement != nil {
			settlement := gin.H{
				"outcome":  listing.Settlement.Outcome,
				"amount":   listing.Settlement.Amount,
				"closedAt": listing.Settlement.ClosedAt,
			}
			if listing.Settlement.Winner != nil {
				settlement["winner"] = *listing.Settlement.Winner
			}
			response["settlement"] = settlement
		}
	}
	if live {
		response["seller"] = string(item.Seller)
		response["itemKey"] = item.Item.Key()
		response["listingType"] = item.ListingType.String()
		response["askPrice"] = uint64(item.InitialAmount)
		response["currentAmount"] = uint64(item.Amount)
		response["recipient"] = string(item.Recipient)
		response["start"] = uint64(a.Start)
		response["isStarted"] = now >= a.Start
		if a.End != nil {
			response["end"] = uint64(*a.End)
			response["isEnded"] = now >= *a.End
		}
		if a.Bid != nil {
			response["leadingBid"] = gin.H{
				"bidder": string(a.Bid.Bidder),
				"amount": uint64(a.Bid.Amount),
			}
		}
	}

	c.JSON(http.StatusOK, response)
}

// List auction listings from the archive
// (GET /auction/listings)
func (impl *ServerImpl) GetListings(c *gin.Context) {
	const op = "GetListings"
	query := impl.db.Model(&models.Listing{})

	if seller := c.Query("seller"); seller != "" {
		query = query.Where("seller = ?", seller)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if metaverse := c.Query("metaverse"); metaverse != "" {
		id, err := strconv.ParseUint(metaverse, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid metaverse id"})
			return
		}
		query = query.Where("metaverse = ?", id)
	}

	size := 20
	if raw := c.Query("size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid page size"})
			return
		}
		size = parsed
	}
	query = query.Order(clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: "engine_id"}, Desc: true},
	}}).Limit(size)

	var listings []models.Listing
	if result := query.Find(&listings); result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
		slog.Error("Fail to list listings", slog.String("op", op), slog.Any("error", result.Error))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count": len(listings),
		"items": lo.Map(listings, func(l models.Listing, _ int) gin.H {
			item := gin.H{
				"id":          l.EngineID,
				"seller":      l.Seller,
				"itemKey":     l.ItemKey,
				"listingType": l.ListingType,
				"askPrice":    l.InitialAmount,
				"status":      l.Status,
			}
			if l.Metaverse != nil {
				item["metaverse"] = *l.Metaverse
			}
			return item
		}),
	})
}

type PostBidRequest struct {
	Bidder string `json:"bidder" binding:"required"`
	Amount uint64 `json:"amount" binding:"required"`
}

// Place a bid on an auction listing
// (POST /auction/listings/{listingID}/bids)
func (impl *ServerImpl) PostBid(c *gin.Context) {
	id, ok := parseListingID(c)
	if !ok {
		return
	}
	var request PostBidRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	impl.engineMu.Lock()
	err := impl.engine.PlaceBid(id, engine.AccountID(request.Bidder), engine.Balance(request.Amount), impl.now())
	impl.engineMu.Unlock()
	if err != nil {
		c.JSON(engineErrorStatus(err), gin.H{"message": err.Error()})
		return
	}

	slog.Info("Higher bid occurs",
		slog.String("bidder", request.Bidder),
		slog.Uint64("amount", request.Amount),
		slog.Uint64("listingID", uint64(id)))
	c.Status(http.StatusOK)
}

type PostBuyNowRequest struct {
	Buyer  string `json:"buyer" binding:"required"`
	Amount uint64 `json:"amount" binding:"required"`
}

// Buy a listing outright
// (POST /auction/listings/{listingID}/buy)
func (impl *ServerImpl) PostBuyNow(c *gin.Context) {
	id, ok := parseListingID(c)
	if !ok {
		return
	}
	var request PostBuyNowRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	impl.engineMu.Lock()
	err := impl.engine.BuyNow(id, engine.AccountID(request.Buyer), engine.Balance(request.Amount), impl.now())
	impl.engineMu.Unlock()
	if err != nil {
		c.JSON(engineErrorStatus(err), gin.H{"message": err.Error()})
		return
	}

	c.Status(http.StatusOK)
}

// Cancel an auction listing
// (DELETE /auction/listings/{listingID})
func (impl *ServerImpl) DeleteListing(c *gin.Context) {
	id, ok := parseListingID(c)
	if !ok {
		return
	}
	caller := c.Query("caller")
	if caller == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "caller is required"})
		return
	}
	force := c.Query("force") == "true"

	impl.engineMu.Lock()
	err := impl.engine.CancelAuction(id, engine.AccountID(caller), force, impl.now())
	impl.engineMu.Unlock()
	if err != nil {
		c.JSON(engineErrorStatus(err), gin.H{"message": err.Error()})
		return
	}

	c.Status(http.StatusOK)
}

// Track auction listing events
// (GET /auction/listings/{listingID}/events)
func (impl *ServerImpl) GetListingEvents(c *gin.Context) {
	const op = "GetListingEvents"
	id, ok := parseListingID(c)
	if !ok {
		return
	}

	// 只有進行中的拍賣會有事件串流
	impl.engineMu.Lock()
	_, live := impl.engine.GetAuction(id)
	impl.engineMu.Unlock()
	if !live {
		c.Status(http.StatusNotFound)
		return
	}

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Transfer-Encoding", "chunked")
	ch, err := impl.sseManager.Subscribe(id)
	if err != nil {
		slog.Error("Fail to subscribe to listing events", slog.String("op", op), slog.Any("error", err))
		c.Status(http.StatusInternalServerError)
		return
	}
LOOP:
	for {
		select {
		case <-w.CloseNotify():
			impl.sseManager.Unsubscribe(id, ch)
			break LOOP
		case event := <-ch:
			c.SSEvent(string(event.Type), event)
			w.Flush()
			// 結束性事件發出後即可關閉串流
			switch event.Type {
			case engine.EventAuctionFinalized, engine.EventAuctionExpiredUnsold, engine.EventAuctionCancelled:
				impl.sseManager.Unsubscribe(id, ch)
				break LOOP
			}
		// 30秒沒有事件就發送一個空行，確保瀏覽器和Cloudflare不會斷開連線
		case <-time.After(30 * time.Second):
			w.WriteString("\n\n")
			w.Flush()
		}
	}
}

type PostDepositRequest struct {
	Amount uint64 `json:"amount" binding:"required"`
}

// Deposit funds into an account
// (POST /accounts/{account}/deposit)
func (impl *ServerImpl) PostDeposit(c *gin.Context) {
	account := c.Param("account")
	var request PostDepositRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	impl.ledger.Deposit(engine.AccountID(account), engine.Balance(request.Amount))
	c.Status(http.StatusOK)
}

// Get account balances
// (GET /accounts/{account})
func (impl *ServerImpl) GetAccount(c *gin.Context) {
	account := engine.AccountID(c.Param("account"))
	c.JSON(http.StatusOK, gin.H{
		"free":     uint64(impl.ledger.FreeBalance(account)),
		"reserved": uint64(impl.ledger.ReservedBalance(account)),
	})
}

type PostItemRequest struct {
	Owner string      `json:"owner" binding:"required"`
	Item  ItemPayload `json:"item" binding:"required"`
}

// Register an item to an owner
// (POST /items)
func (impl *ServerImpl) PostItem(c *gin.Context) {
	var request PostItemRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	item, err := request.Item.toRef()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	impl.items.Mint(engine.AccountID(request.Owner), item)
	c.JSON(http.StatusCreated, gin.H{"itemKey": item.Key()})
}

func parseListingID(c *gin.Context) (engine.AuctionID, bool) {
	raw := c.Param("listingID")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid listing id"})
		return 0, false
	}
	return engine.AuctionID(id), true
}

// engineErrorStatus 將引擎的sentinel error轉換為HTTP狀態碼
func engineErrorStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrAuctionNotFound), errors.Is(err, engine.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrNoPermission):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrItemAlreadyListed):
		return http.StatusConflict
	case errors.Is(err, engine.ErrAuctionNotStarted):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrAuctionExpired):
		return http.StatusGone
	case errors.Is(err, engine.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, engine.ErrTransferFailed):
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitmarket/engine"
)

func TestCreateAuction_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*engine.CreateParams)
		wantErr error
	}{
		{
			name:    "zero ask price",
			mutate:  func(p *engine.CreateParams) { p.AskPrice = 0 },
			wantErr: engine.ErrInvalidBidPrice,
		},
		{
			name:    "royalty rate above maximum",
			mutate:  func(p *engine.CreateParams) { p.RoyaltyRate = engine.RatioFromPercent(21) },
			wantErr: engine.ErrRoyaltyRateTooHigh,
		},
		{
			name:    "auction without end",
			mutate:  func(p *engine.CreateParams) { p.End = nil },
			wantErr: engine.ErrInvalidDuration,
		},
		{
			name: "end before start",
			mutate: func(p *engine.CreateParams) {
				p.Start = 50
				p.End = tick(40)
			},
			wantErr: engine.ErrInvalidDuration,
		},
		{
			name: "end equals start",
			mutate: func(p *engine.CreateParams) {
				p.Start = 50
				p.End = tick(50)
			},
			wantErr: engine.ErrInvalidDuration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			p := auctionParams("alice", engine.NFTItem(1, 7), 100, 100)
			tt.mutate(&p)
			f.items.Mint(p.Seller, p.Item)

			_, err := f.engine.CreateAuction(p)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.events)
		})
	}
}

func TestCreateAuction_MinimumDuration(t *testing.T) {
	f := newFixture(t, func(fc *fixtureConfig) { fc.cfg.MinimumAuctionDuration = 10 })
	item := engine.NFTItem(1, 7)
	f.items.Mint("alice", item)

	p := auctionParams("alice", item, 100, 5)
	_, err := f.engine.CreateAuction(p)
	assert.ErrorIs(t, err, engine.ErrInvalidDuration)

	p.End = tick(10)
	_, err = f.engine.CreateAuction(p)
	assert.NoError(t, err)
}

func TestCreateAuction_Ownership(t *testing.T) {
	f := newFixture(t)
	item := engine.NFTItem(1, 7)

	_, err := f.engine.CreateAuction(auctionParams("alice", item, 100, 100))
	assert.ErrorIs(t, err, engine.ErrItemNotFound)

	f.items.Mint("bob", item)
	_, err = f.engine.CreateAuction(auctionParams("alice", item, 100, 100))
	assert.ErrorIs(t, err, engine.ErrNoPermission)
}

func TestCreateAuction_RejectsDoubleListing(t *testing.T) {
	f := newFixture(t)
	item := engine.NFTItem(1, 7)
	f.list(t, auctionParams("alice", item, 100, 100))

	_, err := f.engine.CreateAuction(auctionParams("alice", item, 100, 100))
	assert.ErrorIs(t, err, engine.ErrItemAlreadyListed)
}

func TestCreateAuction_LocksItem(t *testing.T) {
	f := newFixture(t)
	item := engine.NFTItem(1, 7)
	id := f.list(t, auctionParams("alice", item, 100, 100))

	assert.True(t, f.engine.IsItemListed(item))
	assert.True(t, f.items.IsLocked(item))

	got, ok := f.engine.GetAuctionItem(id)
	require.True(t, ok)
	assert.Equal(t, engine.AccountID("alice"), got.Seller)
	assert.Equal(t, engine.AccountID("alice"), got.Recipient)
	assert.Equal(t, engine.Balance(100), got.Amount)

	created := f.eventsOfType(engine.EventAuctionCreated)
	require.Len(t, created, 1)
	assert.Equal(t, id, created[0].AuctionID)
	assert.Equal(t, engine.AccountID("alice"), created[0].Actor)
	assert.Equal(t, engine.Balance(100), created[0].Amount)
	assert.Equal(t, item.Key(), created[0].ItemKey)
}

func TestCreateAuction_BuyNowMayOmitEnd(t *testing.T) {
	f := newFixture(t)
	item := engine.NFTItem(1, 7)
	f.items.Mint("alice", item)

	id, err := f.engine.CreateAuction(engine.CreateParams{
		Seller:      "alice",
		Item:        item,
		AskPrice:    100,
		ListingType: engine.ListingTypeBuyNow,
		Level:       engine.GlobalListing(),
	})
	require.NoError(t, err)

	a, ok := f.engine.GetAuction(id)
	require.True(t, ok)
	assert.Nil(t, a.End)
}

func TestCreateAuction_BuyNowDisabled(t *testing.T) {
	f := newFixture(t, func(fc *fixtureConfig) { fc.cfg.AllowBuyNow = false })
	item := engine.NFTItem(1, 7)
	f.items.Mint("alice", item)

	p := auctionParams("alice", item, 100, 100)
	p.ListingType = engine.ListingTypeBuyNow
	_, err := f.engine.CreateAuction(p)
	assert.ErrorIs(t, err, engine.ErrBuyNowDisabled)
}

func TestCancelAuction(t *testing.T) {
	t.Run("unknown auction", func(t *testing.T) {
		f := newFixture(t)
		err := f.engine.CancelAuction(42, "alice", false, 0)
		assert.ErrorIs(t, err, engine.ErrAuctionNotFound)
	})

	t.Run("only the seller may cancel", func(t *testing.T) {
		f := newFixture(t)
		id := f.list(t, auctionParams("alice", engine.NFTItem(1, 7), 100, 100))

		err := f.engine.CancelAuction(id, "mallory", false, 10)
		assert.ErrorIs(t, err, engine.ErrNoPermission)
	})

	t.Run("seller cancels an unbid listing", func(t *testing.T) {
		f := newFixture(t)
		item := engine.NFTItem(1, 7)
		id := f.list(t, auctionParams("alice", item, 100, 100))

		require.NoError(t, f.engine.CancelAuction(id, "alice", false, 10))
		assert.False(t, f.engine.IsItemListed(item))
		assert.False(t, f.items.IsLocked(item))

		cancelled := f.eventsOfType(engine.EventAuctionCancelled)
		require.Len(t, cancelled, 1)
		assert.Equal(t, engine.Tick(10), cancelled[0].At)
	})

	t.Run("cancel with bids needs force", func(t *testing.T) {
		f := newFixture(t)
		id := f.list(t, auctionParams("alice", engine.NFTItem(1, 7), 100, 100))
		f.funds.Deposit("bob", 500)
		require.NoError(t, f.engine.PlaceBid(id, "bob", 150, 10))

		err := f.engine.CancelAuction(id, "alice", false, 20)
		assert.ErrorIs(t, err, engine.ErrAuctionHasBids)
	})

	t.Run("force cancel requires the administrator", func(t *testing.T) {
		f := newFixture(t, func(fc *fixtureConfig) { fc.cfg.Administrator = "admin" })
		id := f.list(t, auctionParams("alice", engine.NFTItem(1, 7), 100, 100))
		f.funds.Deposit("bob", 500)
		require.NoError(t, f.engine.PlaceBid(id, "bob", 150, 10))

		// 賣家自己也不能藉force繞過有出價的限制
		assert.ErrorIs(t, f.engine.CancelAuction(id, "alice", true, 20), engine.ErrNoPermission)
		assert.ErrorIs(t, f.engine.CancelAuction(id, "mallory", true, 20), engine.ErrNoPermission)
		assert.Equal(t, engine.Balance(150), f.funds.ReservedBalance("bob"))

		_, ok := f.engine.GetAuction(id)
		assert.True(t, ok)
	})

	t.Run("force cancel refunds the leading bidder", func(t *testing.T) {
		f := newFixture(t, func(fc *fixtureConfig) { fc.cfg.Administrator = "admin" })
		item := engine.NFTItem(1, 7)
		id := f.list(t, auctionParams("alice", item, 100, 100))
		f.funds.Deposit("bob", 500)
		require.NoError(t, f.engine.PlaceBid(id, "bob", 150, 10))
		require.Equal(t, engine.Balance(150), f.funds.ReservedBalance("bob"))

		require.NoError(t, f.engine.CancelAuction(id, "admin", true, 20))
		assert.Equal(t, engine.Balance(500), f.funds.FreeBalance("bob"))
		assert.Equal(t, engine.Balance(0), f.funds.ReservedBalance("bob"))
		assert.False(t, f.items.IsLocked(item))

		// 取消後的拍賣不再被 Tick 觸及
		f.engine.Tick(100)
		assert.Empty(t, f.eventsOfType(engine.EventAuctionExpiredUnsold))
	})
}

func TestGetAuction_ReturnsCopies(t *testing.T) {
	f := newFixture(t)
	id := f.list(t, auctionParams("alice", engine.NFTItem(1, 7), 100, 100))
	f.funds.Deposit("bob", 500)
	require.NoError(t, f.engine.PlaceBid(id, "bob", 150, 10))

	a, ok := f.engine.GetAuction(id)
	require.True(t, ok)
	require.NotNil(t, a.Bid)
	a.Bid.Amount = 1
	*a.End = 1

	fresh, ok := f.engine.GetAuction(id)
	require.True(t, ok)
	assert.Equal(t, engine.Balance(150), fresh.Bid.Amount)
	assert.NotEqual(t, engine.Tick(1), *fresh.End)
}

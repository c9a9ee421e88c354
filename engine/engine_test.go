package engine_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"bitmarket/adapters/assets"
	"bitmarket/adapters/ledger"
	"bitmarket/engine"
)

// fixture 將引擎接上記憶體帳本與登記簿，並攔截所有事件
type fixture struct {
	engine *engine.Engine
	funds  *ledger.Ledger
	items  *assets.Registry
	events []engine.Event
}

type fixtureConfig struct {
	cfg        engine.Config
	ledgerOpts []ledger.Option
	engineOpts []engine.Option
	items      engine.ItemRegistry
}

func newFixture(t *testing.T, tweaks ...func(*fixtureConfig)) *fixture {
	t.Helper()

	fc := fixtureConfig{cfg: engine.DefaultConfig()}
	for _, tweak := range tweaks {
		tweak(&fc)
	}

	f := &fixture{
		funds: ledger.New(fc.ledgerOpts...),
		items: assets.New(),
	}
	items := fc.items
	if items == nil {
		items = f.items
	}

	opts := append([]engine.Option{
		engine.WithEventSink(func(ev engine.Event) { f.events = append(f.events, ev) }),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, fc.engineOpts...)
	f.engine = engine.New(fc.cfg, f.funds, items, opts...)
	return f
}

func (f *fixture) eventsOfType(typ engine.EventType) []engine.Event {
	var out []engine.Event
	for _, ev := range f.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// list 鑄造物品給賣家並建立刊登，失敗即中止測試
func (f *fixture) list(t *testing.T, p engine.CreateParams) engine.AuctionID {
	t.Helper()
	f.items.Mint(p.Seller, p.Item)
	id, err := f.engine.CreateAuction(p)
	require.NoError(t, err)
	return id
}

func tick(v uint64) *engine.Tick {
	tk := engine.Tick(v)
	return &tk
}

func auctionParams(seller engine.AccountID, item engine.ItemRef, ask engine.Balance, end uint64) engine.CreateParams {
	return engine.CreateParams{
		Seller:      seller,
		Item:        item,
		AskPrice:    ask,
		Start:       0,
		End:         tick(end),
		ListingType: engine.ListingTypeAuction,
		Level:       engine.GlobalListing(),
	}
}

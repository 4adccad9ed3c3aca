package reconcile

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/openpredict/termfeed/internal/config"
	"github.com/openpredict/termfeed/internal/feed"
	"github.com/openpredict/termfeed/internal/model"
	"github.com/openpredict/termfeed/internal/protocol"
)

func pushPrice(f *feed.MarketFeed, yes, no string) {
	f.Handle(protocol.PriceUpdate{
		Platform:  f.Platform(),
		MarketID:  f.MarketID(),
		YesPrice:  dec(yes),
		NoPrice:   dec(no),
		Timestamp: time.Now().UTC(),
	})
}

func pushBook(f *feed.MarketFeed, bidPrice, bidQty string) {
	f.Handle(protocol.OrderBookUpdate{
		Platform:   f.Platform(),
		MarketID:   f.MarketID(),
		UpdateType: protocol.BookSnapshot,
		YesBids:    []model.BookLevel{{Price: dec(bidPrice), Quantity: dec(bidQty)}},
		Timestamp:  time.Now().UTC(),
	})
}

func pushTrade(f *feed.MarketFeed, id string) {
	f.Handle(protocol.TradeUpdate{
		Platform: f.Platform(),
		MarketID: f.MarketID(),
		Trade:    trade(id),
	})
}

func refreshedFetcher(t *testing.T, api *fakeAPI) *Fetcher {
	t.Helper()
	f := NewFetcher(api, config.ReconcileConfig{}, nil)
	if _, err := f.Refresh(context.Background(), model.PlatformKalshi, "FED-25DEC"); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	return f
}

func TestMarketView_PushWinsOverPull(t *testing.T) {
	mf := feed.NewMarketFeed(model.PlatformKalshi, "FED-25DEC", 50, 50)
	pushPrice(mf, "0.42", "0.58")
	pushBook(mf, "0.42", "100")

	fetcher := refreshedFetcher(t, &fakeAPI{
		book:    &model.OrderBook{Platform: model.PlatformKalshi, MarketID: "FED-25DEC", YesBids: []model.BookLevel{{Price: dec("0.40"), Quantity: dec("50")}}},
		candles: []model.Candle{{Close: dec("0.40"), Timestamp: time.Now().UTC()}},
	})
	view := NewMarketView(mf, fetcher, 50)

	price, src := view.Price()
	if src != SourcePush || price.YesPrice.String() != "0.42" {
		t.Errorf("Price() = %s/%s, want push/0.42", price.YesPrice, src)
	}

	book, src := view.Book()
	if src != SourcePush || book.YesBids[0].Price.String() != "0.42" {
		t.Errorf("Book() = %s/%s, want push/0.42", book.YesBids[0].Price, src)
	}
}

func TestMarketView_PullFillsGapBeforeFirstPush(t *testing.T) {
	mf := feed.NewMarketFeed(model.PlatformKalshi, "FED-25DEC", 50, 50)

	fetcher := refreshedFetcher(t, &fakeAPI{
		book:    &model.OrderBook{Platform: model.PlatformKalshi, MarketID: "FED-25DEC", YesBids: []model.BookLevel{{Price: dec("0.40"), Quantity: dec("50")}}},
		candles: []model.Candle{{Close: dec("0.40"), Timestamp: time.Now().UTC()}},
	})
	view := NewMarketView(mf, fetcher, 50)

	price, src := view.Price()
	if src != SourcePull || price.YesPrice.String() != "0.40" {
		t.Errorf("Price() = %s/%s, want pull/0.40", price.YesPrice, src)
	}
	if price.NoPrice.String() != "0.60" {
		t.Errorf("NoPrice = %s, want complement 0.60", price.NoPrice)
	}

	book, src := view.Book()
	if src != SourcePull || book.YesBids[0].Price.String() != "0.40" {
		t.Errorf("Book() = %s/%s, want pull/0.40", book.YesBids[0].Price, src)
	}

	if got := len(view.Candles()); got != 1 {
		t.Errorf("Candles() = %d entries, want 1", got)
	}

	// Push arrives; the same view now prefers it.
	pushPrice(mf, "0.42", "0.58")
	price, src = view.Price()
	if src != SourcePush || price.YesPrice.String() != "0.42" {
		t.Errorf("Price() after push = %s/%s, want push/0.42", price.YesPrice, src)
	}
}

func TestMarketView_NoData(t *testing.T) {
	mf := feed.NewMarketFeed(model.PlatformKalshi, "FED-25DEC", 50, 50)
	view := NewMarketView(mf, NewFetcher(&fakeAPI{}, config.ReconcileConfig{}, nil), 50)

	if _, src := view.Price(); src != SourceNone {
		t.Errorf("Price() source = %s, want %s", src, SourceNone)
	}
	if _, src := view.Book(); src != SourceNone {
		t.Errorf("Book() source = %s, want %s", src, SourceNone)
	}
	if got := view.Trades(); len(got) != 0 {
		t.Errorf("Trades() = %v, want empty", got)
	}
	if view.Candles() != nil {
		t.Error("Candles() non-nil before any refresh")
	}
}

func TestMarketView_TradesMergeAcrossSources(t *testing.T) {
	mf := feed.NewMarketFeed(model.PlatformKalshi, "FED-25DEC", 50, 50)
	pushTrade(mf, "t1")
	pushTrade(mf, "t2")

	fetcher := refreshedFetcher(t, &fakeAPI{
		trades: []model.Trade{trade("t2"), trade("t3")},
	})
	view := NewMarketView(mf, fetcher, 50)

	got := tradeIDs(view.Trades())
	want := []string{"t2", "t1", "t3"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Trades() ids = %v, want %v (push newest-first, then pulled-only)", got, want)
	}
}

func TestMarketView_TradeCap(t *testing.T) {
	mf := feed.NewMarketFeed(model.PlatformKalshi, "FED-25DEC", 50, 50)
	pushTrade(mf, "t1")
	pushTrade(mf, "t2")

	fetcher := refreshedFetcher(t, &fakeAPI{
		trades: []model.Trade{trade("t3"), trade("t4")},
	})
	view := NewMarketView(mf, fetcher, 3)

	got := view.Trades()
	if len(got) != 3 {
		t.Errorf("Trades() = %d entries, want cap 3", len(got))
	}
}

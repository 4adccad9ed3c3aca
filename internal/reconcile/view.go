package reconcile

import (
	"github.com/openpredict/termfeed/internal/config"
	"github.com/openpredict/termfeed/internal/feed"
	"github.com/openpredict/termfeed/internal/metrics"
	"github.com/openpredict/termfeed/internal/model"
)

// MarketView is the authoritative read surface for one market: every read
// merges the push reducer's current state with the latest pulled snapshot
// under the fixed precedence rules.
type MarketView struct {
	feed    *feed.MarketFeed
	fetcher *Fetcher
	limit   int
}

// NewMarketView pairs a market's push feed with the pull path. tradeLimit
// caps the merged trade log; values below 1 fall back to the default.
func NewMarketView(f *feed.MarketFeed, fetcher *Fetcher, tradeLimit int) *MarketView {
	if tradeLimit <= 0 {
		tradeLimit = config.DefaultReconcileTradeLimit
	}
	return &MarketView{feed: f, fetcher: fetcher, limit: tradeLimit}
}

// Feed returns the underlying push feed.
func (v *MarketView) Feed() *feed.MarketFeed { return v.feed }

// Price returns the merged price pair and where it came from.
func (v *MarketView) Price() (model.PricePoint, Source) {
	var push *model.PricePoint
	if p, ok := v.feed.Price(); ok {
		push = &p
	}
	var pulled *model.PricePoint
	if snap, ok := v.latest(); ok {
		if p, ok := snap.PricePoint(); ok {
			pulled = &p
		}
	}
	merged, src := MergePrice(push, pulled)
	metrics.Reconciled("price")
	return merged, src
}

// Book returns the merged order book and where it came from.
func (v *MarketView) Book() (model.OrderBook, Source) {
	var push *model.OrderBook
	if b, ok := v.feed.Book(); ok {
		push = &b
	}
	var pulled *model.OrderBook
	if snap, ok := v.latest(); ok {
		pulled = snap.Book
	}
	merged, src := MergeBook(push, pulled)
	metrics.Reconciled("book")
	return merged, src
}

// Trades returns the merged trade log, push entries first, no duplicate
// ids, truncated to the view's cap.
func (v *MarketView) Trades() []model.Trade {
	push := v.feed.Trades()
	var pulled []model.Trade
	if snap, ok := v.latest(); ok {
		pulled = snap.Trades
	}
	merged, deduped := MergeTrades(push, pulled, v.limit)
	metrics.Reconciled("trades")
	if deduped > 0 {
		metrics.TradesDeduped(deduped)
	}
	return merged
}

// Candles returns pulled price history, oldest first. Candles have no push
// channel, so this is nil until the first refresh completes.
func (v *MarketView) Candles() []model.Candle {
	snap, ok := v.latest()
	if !ok {
		return nil
	}
	return snap.Candles
}

// News returns the push-side market news log, most recent first.
func (v *MarketView) News() []model.NewsItem {
	return v.feed.News()
}

func (v *MarketView) latest() (*Snapshot, bool) {
	return v.fetcher.Latest(v.feed.Platform(), v.feed.MarketID())
}

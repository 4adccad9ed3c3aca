package feed

import (
	"sync"

	"github.com/google/uuid"

	"github.com/openpredict/termfeed/internal/model"
	"github.com/openpredict/termfeed/internal/protocol"
)

// Revisions counts applied updates per channel. A counter bumps only when an
// update actually changed state, so equal revisions imply an identical view.
type Revisions struct {
	Price  uint64
	Book   uint64
	Trades uint64
	News   uint64
}

// MarketFeed reduces the push stream for one (platform, market) pair. All
// mutation happens through Handle on the dispatch goroutine; getters return
// copies, so consumers never alias reducer state.
type MarketFeed struct {
	platform model.Platform
	marketID string

	mu     sync.RWMutex
	price  *model.PricePoint
	book   *model.OrderBook
	trades *history[model.Trade]
	news   *history[model.NewsItem]
	revs   Revisions
}

// NewMarketFeed returns an empty feed for the given market. maxTrades and
// maxNews bound the retained logs; values below 1 keep a single entry.
func NewMarketFeed(platform model.Platform, marketID string, maxTrades, maxNews int) *MarketFeed {
	return &MarketFeed{
		platform: platform,
		marketID: marketID,
		trades:   newHistory[model.Trade](maxTrades),
		news:     newHistory[model.NewsItem](maxNews),
	}
}

// Platform returns the venue this feed tracks.
func (f *MarketFeed) Platform() model.Platform { return f.platform }

// MarketID returns the market this feed tracks.
func (f *MarketFeed) MarketID() string { return f.marketID }

// Handle applies one decoded frame. It is the function Watch registers on
// the dispatch bus; frames for other markets return before any lock is
// taken.
func (f *MarketFeed) Handle(msg protocol.Inbound) {
	switch v := msg.(type) {
	case protocol.PriceUpdate:
		if v.Platform != f.platform || v.MarketID != f.marketID {
			return
		}
		f.applyPrice(v)

	case protocol.OrderBookUpdate:
		if v.Platform != f.platform || v.MarketID != f.marketID {
			return
		}
		f.applyBook(v)

	case protocol.TradeUpdate:
		if v.Platform != f.platform || v.MarketID != f.marketID {
			return
		}
		f.applyTrade(v.Trade)

	case protocol.NewsUpdate:
		ctx := v.MarketContext
		if ctx == nil || ctx.Platform != f.platform || ctx.MarketID != f.marketID {
			return
		}
		f.applyNews(v.Item)
	}
}

// applyPrice overwrites the held pair. Last write wins; the push stream is
// FIFO within a connection, so the latest frame is the latest price.
func (f *MarketFeed) applyPrice(v protocol.PriceUpdate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.price = &model.PricePoint{
		YesPrice:  v.YesPrice,
		NoPrice:   v.NoPrice,
		Timestamp: v.Timestamp,
	}
	f.revs.Price++
}

// applyBook replaces all four sides. Snapshots and deltas are treated alike:
// the upstream sends full sides either way, and a full replace after a
// reconnect discards anything stale from the previous connection.
func (f *MarketFeed) applyBook(v protocol.OrderBookUpdate) {
	book := v.Book()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.book = &book
	f.revs.Book++
}

// applyTrade prepends unless the trade id is already in the log.
func (f *MarketFeed) applyTrade(trade model.Trade) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if trade.ID != "" && f.trades.contains(func(t model.Trade) bool { return t.ID == trade.ID }) {
		return
	}
	f.trades.push(trade)
	f.revs.Trades++
}

// applyNews prepends unless the item id is already in the log. Items arriving
// without an id get a generated one so dedupe stays total.
func (f *MarketFeed) applyNews(item model.NewsItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if item.ID == "" {
		item.ID = uuid.NewString()
	} else if f.news.contains(func(n model.NewsItem) bool { return n.ID == item.ID }) {
		return
	}
	f.news.push(item)
	f.revs.News++
}

// Price returns the latest pair, or false when no price update has arrived.
func (f *MarketFeed) Price() (model.PricePoint, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.price == nil {
		return model.PricePoint{}, false
	}
	return *f.price, true
}

// Book returns a deep copy of the current book, or false when no book update
// has arrived.
func (f *MarketFeed) Book() (model.OrderBook, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.book == nil {
		return model.OrderBook{}, false
	}
	return f.book.Clone(), true
}

// Trades returns the retained trade log, most recent first.
func (f *MarketFeed) Trades() []model.Trade {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.trades.items()
}

// News returns the retained market news, most recent first.
func (f *MarketFeed) News() []model.NewsItem {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.news.items()
}

// Revisions returns the per-channel update counters.
func (f *MarketFeed) Revisions() Revisions {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.revs
}

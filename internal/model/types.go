package model

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Platforms and Channels
// -----------------------------------------------------------------------------

// Platform identifies the upstream prediction-market venue.
type Platform string

const (
	PlatformKalshi     Platform = "kalshi"
	PlatformPolymarket Platform = "polymarket"
)

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	return p == PlatformKalshi || p == PlatformPolymarket
}

// ShortName returns a one-letter display identifier.
func (p Platform) ShortName() string {
	switch p {
	case PlatformKalshi:
		return "K"
	case PlatformPolymarket:
		return "P"
	}
	return "?"
}

// SubscriptionKind identifies one stream of updates a consumer can request.
type SubscriptionKind string

const (
	KindPrice      SubscriptionKind = "price"
	KindOrderBook  SubscriptionKind = "order_book"
	KindTrades     SubscriptionKind = "trades"
	KindGlobalNews SubscriptionKind = "global_news"
	KindMarketNews SubscriptionKind = "market_news"
)

// Global reports whether the kind carries no platform/market identity.
func (k SubscriptionKind) Global() bool {
	return k == KindGlobalNews
}

// globalNewsMarketID is the placeholder market identity for the global news
// channel, so every subscription key stays a full (kind, platform, market)
// triple.
const globalNewsMarketID = "__global_news__"

// Subscription is one desired channel: a (kind, platform, market) triple.
// Global channels leave Platform and MarketID empty.
type Subscription struct {
	Kind     SubscriptionKind
	Platform Platform
	MarketID string
}

// Key returns the derived identity string used for registry deduplication.
// Two subscriptions with equal keys are the same logical channel.
func (s Subscription) Key() string {
	if s.Kind.Global() {
		return string(s.Kind) + ":" + globalNewsMarketID
	}
	return string(s.Kind) + ":" + string(s.Platform) + ":" + s.MarketID
}

// -----------------------------------------------------------------------------
// Connection State
// -----------------------------------------------------------------------------

// ConnState is the client-side connection lifecycle state. It is owned by the
// session state machine; transitions are the only mutation path.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

// String returns the lowercase state name.
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	}
	return "unknown"
}

// -----------------------------------------------------------------------------
// Prices and Order Books
// -----------------------------------------------------------------------------

// PricePoint is the latest yes/no probability pair for a market.
type PricePoint struct {
	YesPrice  decimal.Decimal
	NoPrice   decimal.Decimal
	Timestamp time.Time
}

// BookLevel is a single price level of an order book side.
type BookLevel struct {
	Price      decimal.Decimal `json:"price"`
	Quantity   decimal.Decimal `json:"quantity"`
	OrderCount *int            `json:"order_count,omitempty"` // nil when the platform does not report it
}

// OrderBook is a full four-sided book for one market.
//
// Ordering invariant: bids sorted by price descending (best first), asks
// ascending (best first). Normalize re-establishes the invariant and must be
// called after any update before the book is read by reconciliation or
// analytics.
type OrderBook struct {
	MarketID  string      `json:"market_id"`
	Platform  Platform    `json:"platform"`
	Timestamp time.Time   `json:"timestamp"`
	YesBids   []BookLevel `json:"yes_bids"`
	YesAsks   []BookLevel `json:"yes_asks"`
	NoBids    []BookLevel `json:"no_bids"`
	NoAsks    []BookLevel `json:"no_asks"`
	Sequence  uint64      `json:"sequence,omitempty"` // 0 when the platform does not sequence updates
}

// NewOrderBook returns an empty book for a market.
func NewOrderBook(platform Platform, marketID string) OrderBook {
	return OrderBook{
		MarketID:  marketID,
		Platform:  platform,
		Timestamp: time.Now().UTC(),
	}
}

// Empty reports whether no side holds any level.
func (b OrderBook) Empty() bool {
	return len(b.YesBids) == 0 && len(b.YesAsks) == 0 &&
		len(b.NoBids) == 0 && len(b.NoAsks) == 0
}

// Normalize sorts all four sides into the ordering invariant.
func (b *OrderBook) Normalize() {
	sortLevels(b.YesBids, true)
	sortLevels(b.NoBids, true)
	sortLevels(b.YesAsks, false)
	sortLevels(b.NoAsks, false)
}

// BestYesBid returns the highest yes bid, or false when the side is empty.
func (b OrderBook) BestYesBid() (BookLevel, bool) {
	if len(b.YesBids) == 0 {
		return BookLevel{}, false
	}
	return b.YesBids[0], true
}

// BestYesAsk returns the lowest yes ask, or false when the side is empty.
func (b OrderBook) BestYesAsk() (BookLevel, bool) {
	if len(b.YesAsks) == 0 {
		return BookLevel{}, false
	}
	return b.YesAsks[0], true
}

// Clone returns a deep copy. Views hand clones to callers so reducer state is
// never aliased outside the dispatch goroutine.
func (b OrderBook) Clone() OrderBook {
	out := b
	out.YesBids = cloneLevels(b.YesBids)
	out.YesAsks = cloneLevels(b.YesAsks)
	out.NoBids = cloneLevels(b.NoBids)
	out.NoAsks = cloneLevels(b.NoAsks)
	return out
}

func cloneLevels(levels []BookLevel) []BookLevel {
	if levels == nil {
		return nil
	}
	out := make([]BookLevel, len(levels))
	copy(out, levels)
	return out
}

// sortLevels orders one book side in place. Bids sort best-first descending,
// asks best-first ascending.
func sortLevels(levels []BookLevel, descending bool) {
	sort.SliceStable(levels, func(i, j int) bool {
		if descending {
			return levels[i].Price.GreaterThan(levels[j].Price)
		}
		return levels[i].Price.LessThan(levels[j].Price)
	})
}

// -----------------------------------------------------------------------------
// Trades
// -----------------------------------------------------------------------------

// TradeOutcome is the side of the binary market a trade touched.
type TradeOutcome string

const (
	OutcomeYes TradeOutcome = "yes"
	OutcomeNo  TradeOutcome = "no"
)

// TradeSide is the taker's direction, when the platform reports it.
type TradeSide string

const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// Trade is one executed trade. Identity is ID; reconciliation guarantees no
// two trades with the same ID survive a merge.
type Trade struct {
	ID              string          `json:"id"`
	MarketID        string          `json:"market_id"`
	Platform        Platform        `json:"platform"`
	Timestamp       time.Time       `json:"timestamp"`
	Price           decimal.Decimal `json:"price"`
	Quantity        decimal.Decimal `json:"quantity"`
	Outcome         TradeOutcome    `json:"outcome"`
	Side            TradeSide       `json:"side,omitempty"` // empty when the platform omits taker direction
	TransactionHash string          `json:"transaction_hash,omitempty"`
}

// -----------------------------------------------------------------------------
// News
// -----------------------------------------------------------------------------

// NewsSource describes where an article came from.
type NewsSource struct {
	Name   string `json:"name"`
	Domain string `json:"domain,omitempty"`
}

// NewsItem is one news article relevant to one or more markets.
type NewsItem struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	URL              string     `json:"url"`
	PublishedAt      time.Time  `json:"published_at"`
	Source           NewsSource `json:"source"`
	Summary          string     `json:"summary"`
	ImageURL         string     `json:"image_url,omitempty"`
	RelevanceScore   float64    `json:"relevance_score"`
	RelatedMarketIDs []string   `json:"related_market_ids,omitempty"`
}

// MarketNewsContext ties a news item to a specific market.
type MarketNewsContext struct {
	Platform Platform `json:"platform"`
	MarketID string   `json:"market_id"`
}

// -----------------------------------------------------------------------------
// Price History
// -----------------------------------------------------------------------------

// CandleInterval is the bucket width of a price-history candle.
type CandleInterval string

const (
	Interval1m  CandleInterval = "1m"
	Interval5m  CandleInterval = "5m"
	Interval15m CandleInterval = "15m"
	Interval1h  CandleInterval = "1h"
	Interval4h  CandleInterval = "4h"
	Interval1d  CandleInterval = "1d"
)

// Candle is one OHLCV bucket of a market's price history.
type Candle struct {
	Timestamp time.Time       `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}

// Bullish reports whether the candle closed above its open.
func (c Candle) Bullish() bool {
	return c.Close.GreaterThan(c.Open)
}

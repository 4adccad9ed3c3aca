package rest

import (
	"github.com/openpredict/termfeed/internal/model"
)

// TradeHistory is the trades endpoint response. Trades are ordered most
// recent first.
type TradeHistory struct {
	MarketID   string         `json:"market_id"`
	Platform   model.Platform `json:"platform"`
	Trades     []model.Trade  `json:"trades"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// PriceHistory is the history endpoint response. Candles are ordered oldest
// first.
type PriceHistory struct {
	MarketID string               `json:"market_id"`
	Platform model.Platform       `json:"platform"`
	Interval model.CandleInterval `json:"interval"`
	Candles  []model.Candle       `json:"candles"`
}

// NewsFeed is the news endpoint response.
type NewsFeed struct {
	Items      []model.NewsItem `json:"items"`
	TotalCount int              `json:"total_count"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

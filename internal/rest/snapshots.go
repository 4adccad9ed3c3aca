package rest

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/openpredict/termfeed/internal/model"
)

// GetOrderBook fetches the current order book snapshot for a market.
func (c *Client) GetOrderBook(ctx context.Context, platform model.Platform, marketID string) (*model.OrderBook, error) {
	var book model.OrderBook
	path := "/markets/" + string(platform) + "/" + marketID + "/orderbook"
	if err := c.get(ctx, "orderbook", path, nil, &book); err != nil {
		return nil, fmt.Errorf("get orderbook %s/%s: %w", platform, marketID, err)
	}

	book.Normalize()
	return &book, nil
}

// GetRecentTrades fetches recent trades for a market, most recent first.
func (c *Client) GetRecentTrades(ctx context.Context, platform model.Platform, marketID string, limit int) (*TradeHistory, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var history TradeHistory
	path := "/markets/" + string(platform) + "/" + marketID + "/trades"
	if err := c.get(ctx, "trades", path, query, &history); err != nil {
		return nil, fmt.Errorf("get trades %s/%s: %w", platform, marketID, err)
	}

	return &history, nil
}

// GetPriceHistory fetches OHLCV candles for a market, oldest first.
func (c *Client) GetPriceHistory(ctx context.Context, platform model.Platform, marketID string, interval model.CandleInterval) (*PriceHistory, error) {
	query := url.Values{}
	if interval != "" {
		query.Set("interval", string(interval))
	}

	var history PriceHistory
	path := "/markets/" + string(platform) + "/" + marketID + "/history"
	if err := c.get(ctx, "history", path, query, &history); err != nil {
		return nil, fmt.Errorf("get price history %s/%s: %w", platform, marketID, err)
	}

	return &history, nil
}

// GetMarketNews fetches news articles tied to a market.
func (c *Client) GetMarketNews(ctx context.Context, platform model.Platform, marketID string, limit int) (*NewsFeed, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var feed NewsFeed
	path := "/markets/" + string(platform) + "/" + marketID + "/news"
	if err := c.get(ctx, "news", path, query, &feed); err != nil {
		return nil, fmt.Errorf("get market news %s/%s: %w", platform, marketID, err)
	}

	return &feed, nil
}

// GetGlobalNews fetches the global news feed.
func (c *Client) GetGlobalNews(ctx context.Context, limit int) (*NewsFeed, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var feed NewsFeed
	if err := c.get(ctx, "news", "/news", query, &feed); err != nil {
		return nil, fmt.Errorf("get global news: %w", err)
	}

	return &feed, nil
}

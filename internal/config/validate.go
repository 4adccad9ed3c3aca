package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Feed.URL == "" {
		return errors.New("feed.url is required")
	}
	if c.Feed.MaxReconnectAttempts < 0 {
		return errors.New("feed.max_reconnect_attempts must be >= 0")
	}
	if c.Feed.ReconnectBaseDelay <= 0 {
		return errors.New("feed.reconnect_base_delay must be > 0")
	}
	if c.Feed.ReconnectMaxDelay < c.Feed.ReconnectBaseDelay {
		return fmt.Errorf("feed.reconnect_max_delay (%v) cannot be less than reconnect_base_delay (%v)",
			c.Feed.ReconnectMaxDelay, c.Feed.ReconnectBaseDelay)
	}
	if c.Feed.PingInterval <= 0 {
		return errors.New("feed.ping_interval must be > 0")
	}
	if c.Feed.ReadTimeout <= c.Feed.PingInterval {
		return fmt.Errorf("feed.read_timeout (%v) must exceed ping_interval (%v)",
			c.Feed.ReadTimeout, c.Feed.PingInterval)
	}

	if c.Rest.BaseURL == "" {
		return errors.New("rest.base_url is required")
	}
	if c.Rest.MaxRetries < 0 {
		return errors.New("rest.max_retries must be >= 0")
	}
	if c.Rest.RateLimit <= 0 {
		return errors.New("rest.rate_limit must be > 0")
	}
	if c.Rest.RateBurst < 1 {
		return errors.New("rest.rate_burst must be >= 1")
	}

	if c.Reducers.MaxTrades < 1 {
		return errors.New("reducers.max_trades must be >= 1")
	}
	if c.Reducers.MaxNewsItems < 1 {
		return errors.New("reducers.max_news_items must be >= 1")
	}

	if c.Analytics.TradeWindow <= 0 {
		return errors.New("analytics.trade_window must be > 0")
	}
	if c.Analytics.WhaleThresholdMultiplier <= 0 {
		return errors.New("analytics.whale_threshold_multiplier must be > 0")
	}
	if c.Analytics.WallThresholdMultiplier <= 0 {
		return errors.New("analytics.wall_threshold_multiplier must be > 0")
	}
	if c.Analytics.HeatmapPriceBand <= 0 || c.Analytics.HeatmapPriceBand > 1 {
		return fmt.Errorf("analytics.heatmap_price_band must be in (0, 1], got %g", c.Analytics.HeatmapPriceBand)
	}

	if c.Reconcile.Concurrency < 1 {
		return errors.New("reconcile.concurrency must be >= 1")
	}
	if c.Reconcile.TradeLimit < 1 {
		return errors.New("reconcile.trade_limit must be >= 1")
	}

	if c.Poller.Interval <= 0 {
		return errors.New("poller.interval must be > 0")
	}
	if c.Poller.Concurrency < 1 {
		return errors.New("poller.concurrency must be >= 1")
	}
	if c.Poller.Timeout <= 0 {
		return errors.New("poller.timeout must be > 0")
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

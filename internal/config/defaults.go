package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultMaxReconnectAttempts = 5
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultReconnectMaxDelay    = 60 * time.Second
	DefaultPingInterval         = 30 * time.Second
	DefaultReadTimeout          = 60 * time.Second
	DefaultHandshakeTimeout     = 10 * time.Second
	DefaultRestTimeout          = 30 * time.Second
	DefaultMaxRetries           = 3
	DefaultRateLimit            = 10.0
	DefaultRateBurst            = 20
	DefaultMaxTrades            = 50
	DefaultMaxNewsItems         = 50
	DefaultTradeWindow          = 60 * time.Second
	DefaultWhaleMultiplier      = 2.0
	DefaultWallMultiplier       = 2.0
	DefaultHeatmapPriceBand     = 0.10
	DefaultReconcileConcurrency = 4
	DefaultReconcileTradeLimit  = 50
	DefaultPollInterval         = 30 * time.Second
	DefaultPollConcurrency      = 4
	DefaultPollTimeout          = 10 * time.Second
	DefaultMetricsPort          = 9090
	DefaultMetricsPath          = "/metrics"
)

func (c *Config) applyDefaults() {
	// Feed defaults. AutoConnect and AutoReconnect stay nil when unset;
	// their accessors treat nil as enabled.
	if c.Feed.MaxReconnectAttempts == 0 {
		c.Feed.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Feed.ReconnectBaseDelay == 0 {
		c.Feed.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Feed.ReconnectMaxDelay == 0 {
		c.Feed.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Feed.PingInterval == 0 {
		c.Feed.PingInterval = DefaultPingInterval
	}
	if c.Feed.ReadTimeout == 0 {
		c.Feed.ReadTimeout = DefaultReadTimeout
	}
	if c.Feed.HandshakeTimeout == 0 {
		c.Feed.HandshakeTimeout = DefaultHandshakeTimeout
	}

	// REST defaults
	if c.Rest.Timeout == 0 {
		c.Rest.Timeout = DefaultRestTimeout
	}
	if c.Rest.MaxRetries == 0 {
		c.Rest.MaxRetries = DefaultMaxRetries
	}
	if c.Rest.RateLimit == 0 {
		c.Rest.RateLimit = DefaultRateLimit
	}
	if c.Rest.RateBurst == 0 {
		c.Rest.RateBurst = DefaultRateBurst
	}

	// Reducer defaults
	if c.Reducers.MaxTrades == 0 {
		c.Reducers.MaxTrades = DefaultMaxTrades
	}
	if c.Reducers.MaxNewsItems == 0 {
		c.Reducers.MaxNewsItems = DefaultMaxNewsItems
	}

	// Analytics defaults
	if c.Analytics.TradeWindow == 0 {
		c.Analytics.TradeWindow = DefaultTradeWindow
	}
	if c.Analytics.WhaleThresholdMultiplier == 0 {
		c.Analytics.WhaleThresholdMultiplier = DefaultWhaleMultiplier
	}
	if c.Analytics.WallThresholdMultiplier == 0 {
		c.Analytics.WallThresholdMultiplier = DefaultWallMultiplier
	}
	if c.Analytics.HeatmapPriceBand == 0 {
		c.Analytics.HeatmapPriceBand = DefaultHeatmapPriceBand
	}

	// Reconcile defaults
	if c.Reconcile.Concurrency == 0 {
		c.Reconcile.Concurrency = DefaultReconcileConcurrency
	}
	if c.Reconcile.TradeLimit == 0 {
		c.Reconcile.TradeLimit = DefaultReconcileTradeLimit
	}

	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}
	if c.Poller.Concurrency == 0 {
		c.Poller.Concurrency = DefaultPollConcurrency
	}
	if c.Poller.Timeout == 0 {
		c.Poller.Timeout = DefaultPollTimeout
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

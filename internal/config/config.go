package config

import "time"

// Config is the root configuration for a termfeed instance.
type Config struct {
	Instance  InstanceConfig  `yaml:"instance"`
	Feed      FeedConfig      `yaml:"feed"`
	Rest      RestConfig      `yaml:"rest"`
	Reducers  ReducersConfig  `yaml:"reducers"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Poller    PollerConfig    `yaml:"poller"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// InstanceConfig identifies this client instance in logs and metrics.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// FeedConfig holds WebSocket session settings.
type FeedConfig struct {
	URL                  string        `yaml:"url"`
	AutoConnect          *bool         `yaml:"auto_connect"`   // unset means true
	AutoReconnect        *bool         `yaml:"auto_reconnect"` // unset means true
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay"`
	PingInterval         time.Duration `yaml:"ping_interval"`
	ReadTimeout          time.Duration `yaml:"read_timeout"`
	HandshakeTimeout     time.Duration `yaml:"handshake_timeout"`
}

// AutoConnectEnabled reports whether the client should dial on Start.
func (f FeedConfig) AutoConnectEnabled() bool {
	return f.AutoConnect == nil || *f.AutoConnect
}

// AutoReconnectEnabled reports whether dropped sessions should be redialed
// with backoff.
func (f FeedConfig) AutoReconnectEnabled() bool {
	return f.AutoReconnect == nil || *f.AutoReconnect
}

// RestConfig holds REST snapshot API settings.
type RestConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	RateLimit  float64       `yaml:"rate_limit"` // requests per second
	RateBurst  int           `yaml:"rate_burst"`
}

// ReducersConfig holds per-channel state retention limits.
type ReducersConfig struct {
	MaxTrades    int `yaml:"max_trades"`
	MaxNewsItems int `yaml:"max_news_items"`
}

// AnalyticsConfig holds derived-metric tuning parameters.
type AnalyticsConfig struct {
	TradeWindow              time.Duration `yaml:"trade_window"`
	WhaleThresholdMultiplier float64       `yaml:"whale_threshold_multiplier"`
	WallThresholdMultiplier  float64       `yaml:"wall_threshold_multiplier"`
	HeatmapPriceBand         float64       `yaml:"heatmap_price_band"`
}

// ReconcileConfig holds push-vs-pull reconciliation settings.
type ReconcileConfig struct {
	Concurrency int `yaml:"concurrency"`
	TradeLimit  int `yaml:"trade_limit"`
}

// PollerConfig holds periodic REST snapshot poller settings.
type PollerConfig struct {
	Interval    time.Duration `yaml:"interval"`
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"` // applies to one market's refresh
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

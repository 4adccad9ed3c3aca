package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/openpredict/termfeed/internal/config"
	"github.com/openpredict/termfeed/internal/dispatch"
	"github.com/openpredict/termfeed/internal/model"
	"github.com/openpredict/termfeed/internal/protocol"
	"github.com/openpredict/termfeed/internal/session"
	"github.com/openpredict/termfeed/internal/subscription"
)

// feedKey identifies one watched market.
type feedKey struct {
	platform model.Platform
	marketID string
}

// watched pairs a feed with its bus registration and the wire subscriptions
// Watch opened for it.
type watched struct {
	feed       *MarketFeed
	unregister func()
	subs       []model.Subscription
}

// Client is the single entry point consumers hold. It bundles the session,
// the subscription registry, the dispatch bus, and the per-market feeds.
type Client struct {
	cfg    *config.Config
	logger *slog.Logger

	registry subscription.Registry
	bus      dispatch.Bus
	session  session.Manager

	mu     sync.Mutex
	feeds  map[feedKey]*watched
	global *globalState
}

// NewClient wires a client from configuration. The session does not dial
// until Connect.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	registry := subscription.NewRegistry(logger)
	bus := dispatch.NewBus(logger)
	sess := session.NewManager(cfg.Feed, registry, bus, logger)
	registry.SetSender(sess)

	maxNews := cfg.Reducers.MaxNewsItems
	if maxNews == 0 {
		maxNews = config.DefaultMaxNewsItems
	}

	c := &Client{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		bus:      bus,
		session:  sess,
		feeds:    make(map[feedKey]*watched),
		global:   newGlobalState(maxNews),
	}
	bus.Register(c.global.handle)
	return c
}

// Start brings the client up for a configured instance: it dials the
// upstream unless auto connect is disabled, in which case the session
// stays disconnected until an explicit Connect.
func (c *Client) Start(ctx context.Context) error {
	if !c.cfg.Feed.AutoConnectEnabled() {
		c.logger.Info("auto connect disabled, session stays disconnected")
		return nil
	}
	c.logger.Info("connecting to feed", "url", c.cfg.Feed.URL)
	return c.Connect(ctx)
}

// Connect dials the upstream and replays any subscriptions already recorded.
func (c *Client) Connect(ctx context.Context) error {
	return c.session.Connect(ctx)
}

// Disconnect closes the session. Watched feeds keep their reduced state.
func (c *Client) Disconnect() {
	c.session.Disconnect()
}

// Session exposes the underlying session for state and latency inspection.
func (c *Client) Session() session.Manager {
	return c.session
}

// Registry exposes the subscription registry.
func (c *Client) Registry() subscription.Registry {
	return c.registry
}

// Bus exposes the dispatch bus for consumers that want raw frames.
func (c *Client) Bus() dispatch.Bus {
	return c.bus
}

// Watch starts reducing the price, book, trade, and news channels for one
// market and returns its feed. Watching an already watched market returns
// the existing feed.
func (c *Client) Watch(platform model.Platform, marketID string) (*MarketFeed, error) {
	if marketID == "" {
		return nil, fmt.Errorf("watch: empty market id")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := feedKey{platform: platform, marketID: marketID}
	if w, ok := c.feeds[key]; ok {
		return w.feed, nil
	}

	maxTrades := c.cfg.Reducers.MaxTrades
	if maxTrades == 0 {
		maxTrades = config.DefaultMaxTrades
	}
	maxNews := c.cfg.Reducers.MaxNewsItems
	if maxNews == 0 {
		maxNews = config.DefaultMaxNewsItems
	}

	f := NewMarketFeed(platform, marketID, maxTrades, maxNews)
	w := &watched{
		feed:       f,
		unregister: c.bus.Register(f.Handle),
		subs: []model.Subscription{
			{Kind: model.KindPrice, Platform: platform, MarketID: marketID},
			{Kind: model.KindOrderBook, Platform: platform, MarketID: marketID},
			{Kind: model.KindTrades, Platform: platform, MarketID: marketID},
			{Kind: model.KindMarketNews, Platform: platform, MarketID: marketID},
		},
	}

	for _, sub := range w.subs {
		if err := c.registry.Subscribe(sub); err != nil {
			w.unregister()
			return nil, fmt.Errorf("watch %s/%s: %w", platform, marketID, err)
		}
	}

	c.feeds[key] = w
	c.logger.Info("watching market", "platform", platform, "market_id", marketID)
	return f, nil
}

// Unwatch drops a market: its bus handler is removed, its wire channels are
// unsubscribed, and its feed is forgotten. Unwatching an unknown market is a
// no-op.
func (c *Client) Unwatch(platform model.Platform, marketID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := feedKey{platform: platform, marketID: marketID}
	w, ok := c.feeds[key]
	if !ok {
		return
	}

	w.unregister()
	for _, sub := range w.subs {
		if err := c.registry.Unsubscribe(sub); err != nil {
			c.logger.Warn("unsubscribe on unwatch failed",
				"key", sub.Key(), "error", err)
		}
	}
	delete(c.feeds, key)
	c.logger.Info("unwatched market", "platform", platform, "market_id", marketID)
}

// Feed returns the feed for a watched market, or false when not watched.
func (c *Client) Feed(platform model.Platform, marketID string) (*MarketFeed, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.feeds[feedKey{platform: platform, marketID: marketID}]
	if !ok {
		return nil, false
	}
	return w.feed, true
}

// Feeds returns all watched feeds in no particular order.
func (c *Client) Feeds() []*MarketFeed {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*MarketFeed, 0, len(c.feeds))
	for _, w := range c.feeds {
		out = append(out, w.feed)
	}
	return out
}

// SubscribeGlobalNews opens the platform-wide news channel.
func (c *Client) SubscribeGlobalNews() error {
	return c.registry.Subscribe(model.Subscription{Kind: model.KindGlobalNews})
}

// UnsubscribeGlobalNews closes the platform-wide news channel. Retained
// items stay readable.
func (c *Client) UnsubscribeGlobalNews() error {
	return c.registry.Unsubscribe(model.Subscription{Kind: model.KindGlobalNews})
}

// GlobalNews returns retained global news items, most recent first.
func (c *Client) GlobalNews() []model.NewsItem {
	return c.global.newsItems()
}

// PlatformStatus returns the upstream's last reported connectivity per venue.
func (c *Client) PlatformStatus() map[model.Platform]protocol.PlatformStatus {
	return c.global.statuses()
}

// globalState reduces frames that are not tied to a single market: global
// news and upstream venue connectivity.
type globalState struct {
	mu       sync.RWMutex
	news     *history[model.NewsItem]
	platform map[model.Platform]protocol.PlatformStatus
}

func newGlobalState(maxNews int) *globalState {
	return &globalState{
		news:     newHistory[model.NewsItem](maxNews),
		platform: make(map[model.Platform]protocol.PlatformStatus),
	}
}

func (g *globalState) handle(msg protocol.Inbound) {
	switch v := msg.(type) {
	case protocol.NewsUpdate:
		if v.MarketContext != nil {
			return
		}
		g.mu.Lock()
		item := v.Item
		if item.ID == "" {
			item.ID = uuid.NewString()
		} else if g.news.contains(func(n model.NewsItem) bool { return n.ID == item.ID }) {
			g.mu.Unlock()
			return
		}
		g.news.push(item)
		g.mu.Unlock()

	case protocol.ConnectionStatus:
		g.mu.Lock()
		g.platform[v.Platform] = v.Status
		g.mu.Unlock()
	}
}

func (g *globalState) newsItems() []model.NewsItem {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.news.items()
}

func (g *globalState) statuses() map[model.Platform]protocol.PlatformStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[model.Platform]protocol.PlatformStatus, len(g.platform))
	for k, v := range g.platform {
		out[k] = v
	}
	return out
}

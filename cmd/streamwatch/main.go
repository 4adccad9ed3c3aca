// streamwatch connects to the feed, watches one market, and streams parsed
// updates plus derived analytics to the console.
//
// Usage: streamwatch --config configs/termfeed.example.yaml --market kalshi/FED-25DEC
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/openpredict/termfeed/internal/analytics"
	"github.com/openpredict/termfeed/internal/config"
	"github.com/openpredict/termfeed/internal/dispatch"
	"github.com/openpredict/termfeed/internal/feed"
	"github.com/openpredict/termfeed/internal/model"
	"github.com/openpredict/termfeed/internal/protocol"
	"github.com/openpredict/termfeed/internal/reconcile"
	"github.com/openpredict/termfeed/internal/rest"
)

func main() {
	configPath := flag.String("config", "configs/termfeed.example.yaml", "path to config file")
	market := flag.String("market", "kalshi/FED-25DEC", "platform/market pair to watch")
	verbose := flag.Bool("verbose", false, "print full message JSON")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Load config
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	platformStr, marketID, ok := strings.Cut(*market, "/")
	platform := model.Platform(platformStr)
	if !ok || marketID == "" || !platform.Valid() {
		logger.Error("invalid -market value, want platform/market_id", "market", *market)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	// REST client for the pull side
	restClient := rest.NewClient(cfg.Rest.BaseURL,
		rest.WithLogger(logger),
		rest.WithTimeout(cfg.Rest.Timeout),
		rest.WithRateLimit(cfg.Rest.RateLimit, cfg.Rest.RateBurst),
	)
	fetcher := reconcile.NewFetcher(restClient, cfg.Reconcile, logger)

	client := feed.NewClient(cfg, logger)

	// Console printer sees every inbound frame
	unregister := client.Bus().Register(printMessages(*verbose))
	defer unregister()

	if err := client.Start(ctx); err != nil {
		logger.Error("failed to connect to feed", "error", err)
		os.Exit(1)
	}

	marketFeed, err := client.Watch(platform, marketID)
	if err != nil {
		logger.Error("failed to watch market", "error", err)
		os.Exit(1)
	}
	if err := client.SubscribeGlobalNews(); err != nil {
		logger.Warn("failed to subscribe to global news", "error", err)
	}

	// Pull one snapshot up front so the view has data before the first frame
	warmCtx, warmCancel := context.WithTimeout(ctx, 30*time.Second)
	if _, err := fetcher.Refresh(warmCtx, platform, marketID); err != nil {
		logger.Warn("initial snapshot pull failed", "error", err)
	}
	warmCancel()

	view := reconcile.NewMarketView(marketFeed, fetcher, cfg.Reconcile.TradeLimit)
	cache := analytics.NewCache(
		analytics.BookParams{
			WallMultiplier: cfg.Analytics.WallThresholdMultiplier,
			HeatmapBand:    cfg.Analytics.HeatmapPriceBand,
		},
		analytics.MomentumParams{
			Window:          cfg.Analytics.TradeWindow,
			WhaleMultiplier: cfg.Analytics.WhaleThresholdMultiplier,
		},
	)

	go printAnalytics(ctx, view, cache, fetcher)

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sessStats := client.Session().Stats()
				busStats := client.Bus().Stats()
				logger.Info("stats",
					"state", sessStats.State,
					"messages_received", sessStats.MessagesReceived,
					"decode_errors", sessStats.DecodeErrors,
					"reconnects", sessStats.Reconnects,
					"dispatched", busStats.Dispatched,
					"revisions", marketFeed.Revisions(),
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop",
		"platform", platform,
		"market_id", marketID,
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")
	client.Disconnect()
	logger.Info("shutdown complete")
}

// printMessages returns a bus handler that renders frames to the console.
func printMessages(verbose bool) dispatch.Handler {
	return func(msg protocol.Inbound) {
		if verbose {
			data, _ := json.MarshalIndent(msg, "", "  ")
			fmt.Printf("[%s] %s\n", strings.ToUpper(string(msg.MessageType())), data)
			return
		}

		switch v := msg.(type) {
		case protocol.PriceUpdate:
			fmt.Printf("[PRICE] market=%s yes=%s no=%s\n",
				v.MarketID, v.YesPrice, v.NoPrice)
		case protocol.OrderBookUpdate:
			fmt.Printf("[BOOK %s] market=%s yes_bids=%d yes_asks=%d no_bids=%d no_asks=%d\n",
				strings.ToUpper(string(v.UpdateType)), v.MarketID,
				len(v.YesBids), len(v.YesAsks), len(v.NoBids), len(v.NoAsks))
		case protocol.TradeUpdate:
			fmt.Printf("[TRADE] market=%s id=%s price=%s qty=%s outcome=%s side=%s\n",
				v.MarketID, v.Trade.ID, v.Trade.Price, v.Trade.Quantity,
				v.Trade.Outcome, v.Trade.Side)
		case protocol.NewsUpdate:
			scope := "global"
			if v.MarketContext != nil {
				scope = v.MarketContext.MarketID
			}
			fmt.Printf("[NEWS] scope=%s title=%q source=%s\n",
				scope, v.Item.Title, v.Item.Source.Name)
		case protocol.ConnectionStatus:
			fmt.Printf("[STATUS] platform=%s status=%s\n", v.Platform, v.Status)
		case protocol.ServerError:
			fmt.Printf("[ERROR] code=%s message=%q\n", v.Code, v.Message)
		}
	}
}

// printAnalytics periodically renders derived metrics for the watched market.
func printAnalytics(ctx context.Context, view *reconcile.MarketView, cache *analytics.Cache, fetcher *reconcile.Fetcher) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			renderAnalytics(view, cache, fetcher)
		}
	}
}

func renderAnalytics(view *reconcile.MarketView, cache *analytics.Cache, fetcher *reconcile.Fetcher) {
	f := view.Feed()

	book, src := view.Book()
	if src == reconcile.SourceNone {
		fmt.Println("[ANALYTICS] no book data yet")
		return
	}

	m := cache.BookMetrics(bookKey(f, fetcher, src), book.YesBids, book.YesAsks)

	walls := 0
	for _, lvl := range m.Bids {
		if lvl.Wall {
			walls++
		}
	}
	for _, lvl := range m.Asks {
		if lvl.Wall {
			walls++
		}
	}

	fmt.Printf("[BOOK METRICS] source=%s mid=%.3f spread=%.3f imbalance=%+.2f bid_qty=%.0f ask_qty=%.0f walls=%d\n",
		src, m.MidPrice, m.Spread, m.ImbalanceRatio, m.TotalBidQty, m.TotalAskQty, walls)

	mom := cache.Momentum(view.Trades(), time.Now())
	fmt.Printf("[MOMENTUM] ratio=%+.2f direction=%s buys=%d sells=%d whales=%d accelerating=%t\n",
		mom.Ratio, mom.Direction, mom.BuyCount, mom.SellCount, len(mom.Whales), mom.Accelerating)

	candles := view.Candles()
	trendPct, hasTrend := analytics.PriceTrendPct(candles)
	volRatio, hasVol := analytics.VolumeRatio(candles)

	sent := analytics.ComputeSentiment(analytics.SentimentInputs{
		Imbalance:      m.ImbalanceRatio,
		HasImbalance:   m.HasBid || m.HasAsk,
		MomentumRatio:  mom.Ratio,
		HasMomentum:    mom.BuyCount+mom.SellCount > 0,
		PriceChangePct: trendPct,
		HasPriceTrend:  hasTrend,
		VolumeRatio:    volRatio,
		HasVolume:      hasVol,
	})
	fmt.Printf("[SENTIMENT] score=%+.1f label=%q confidence=%.2f signals=%v\n",
		sent.Score, sent.Label, sent.Confidence, sent.Signals)
}

// bookKey identifies the merged book state for memoization: feed revision
// for push-sourced books, snapshot generation for pull-sourced ones.
func bookKey(f *feed.MarketFeed, fetcher *reconcile.Fetcher, src reconcile.Source) analytics.BookKey {
	switch src {
	case reconcile.SourcePush:
		return analytics.BookKey{Source: string(src), Revision: f.Revisions().Book}
	case reconcile.SourcePull:
		if snap, ok := fetcher.Latest(f.Platform(), f.MarketID()); ok {
			return analytics.BookKey{Source: string(src), Revision: snap.Generation}
		}
	}
	return analytics.BookKey{Source: string(src)}
}

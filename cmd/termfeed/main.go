// termfeed runs the live market-data sync daemon: it keeps a WebSocket
// session to the feed, watches the given markets, polls REST snapshots to
// backfill gaps, and exposes Prometheus metrics plus a health endpoint.
//
// Usage: termfeed --config configs/termfeed.yaml --markets kalshi/FED-25DEC
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/openpredict/termfeed/internal/config"
	"github.com/openpredict/termfeed/internal/feed"
	"github.com/openpredict/termfeed/internal/metrics"
	"github.com/openpredict/termfeed/internal/model"
	"github.com/openpredict/termfeed/internal/poller"
	"github.com/openpredict/termfeed/internal/reconcile"
	"github.com/openpredict/termfeed/internal/rest"
	"github.com/openpredict/termfeed/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/termfeed.example.yaml", "path to config file")
	markets := flag.String("markets", "", "comma-separated platform/market pairs (e.g. kalshi/FED-25DEC,polymarket/0xabc)")
	flag.Parse()

	// Environment overrides from .env when present.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting termfeed",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"feed_url", cfg.Feed.URL,
		"rest_url", cfg.Rest.BaseURL,
	)

	watchList, err := parseMarkets(*markets)
	if err != nil {
		logger.Error("invalid -markets value", "error", err)
		os.Exit(1)
	}
	if len(watchList) == 0 {
		logger.Warn("no markets given, nothing will be watched")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// REST snapshot client and the pull-side fetcher
	restClient := rest.NewClient(cfg.Rest.BaseURL,
		rest.WithLogger(logger),
		rest.WithTimeout(cfg.Rest.Timeout),
		rest.WithRetries(cfg.Rest.MaxRetries, time.Second),
		rest.WithRateLimit(cfg.Rest.RateLimit, cfg.Rest.RateBurst),
	)
	fetcher := reconcile.NewFetcher(restClient, cfg.Reconcile, logger)

	// Push-side feed client
	client := feed.NewClient(cfg, logger)

	// Metrics and health on the one operational port
	metricsServer := metrics.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, logger)
	metricsServer.Handle("/health", healthHandler(client))
	metricsServer.Handle("/debug/markets", debugMarketsHandler(client))
	if err := metricsServer.Start(ctx); err != nil {
		logger.Error("failed to start metrics server", "error", err)
		os.Exit(1)
	}

	if err := client.Start(ctx); err != nil {
		logger.Error("failed to connect to feed", "error", err)
		os.Exit(1)
	}

	for _, ref := range watchList {
		if _, err := client.Watch(ref.Platform, ref.MarketID); err != nil {
			logger.Error("failed to watch market",
				"platform", ref.Platform,
				"market_id", ref.MarketID,
				"error", err,
			)
			os.Exit(1)
		}
	}
	if err := client.SubscribeGlobalNews(); err != nil {
		logger.Warn("failed to subscribe to global news", "error", err)
	}

	// Warm the pull side once before the poller takes over
	if refs := trackedRefs(client); len(refs) > 0 {
		warmCtx, warmCancel := context.WithTimeout(ctx, 30*time.Second)
		if err := fetcher.RefreshAll(warmCtx, refs); err != nil {
			logger.Warn("initial snapshot warm-up aborted", "error", err)
		}
		warmCancel()
	}

	// Periodic snapshot poller
	snapPoller := poller.New(cfg.Poller, poller.MarketSourceFunc(func() []reconcile.MarketRef {
		return trackedRefs(client)
	}), fetcher, logger)
	if err := snapPoller.Start(ctx); err != nil {
		logger.Error("failed to start poller", "error", err)
		os.Exit(1)
	}

	// Stats printer
	go func() {
		ticker := time.NewTicker(30 * time.Second)
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
					"latency_ms", sessStats.LatencyMillis,
					"subscriptions", client.Registry().Len(),
					"dispatched", busStats.Dispatched,
					"handler_panics", busStats.HandlerPanics,
				)
			}
		}
	}()

	logger.Info("termfeed running",
		"instance_id", cfg.Instance.ID,
		"watched_markets", len(watchList),
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	snapPoller.Stop(shutdownCtx)
	client.Disconnect()
	metricsServer.Stop(shutdownCtx)

	logger.Info("termfeed stopped")
}

type marketArg struct {
	Platform model.Platform
	MarketID string
}

// parseMarkets splits a comma-separated list of platform/market pairs.
func parseMarkets(s string) ([]marketArg, error) {
	if s == "" {
		return nil, nil
	}

	var out []marketArg
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		platform, marketID, ok := strings.Cut(part, "/")
		if !ok || marketID == "" {
			return nil, fmt.Errorf("market %q must be platform/market_id", part)
		}
		p := model.Platform(platform)
		if !p.Valid() {
			return nil, fmt.Errorf("unknown platform %q", platform)
		}
		out = append(out, marketArg{Platform: p, MarketID: marketID})
	}
	return out, nil
}

// trackedRefs lists the currently watched markets for the pull side.
func trackedRefs(client *feed.Client) []reconcile.MarketRef {
	feeds := client.Feeds()
	refs := make([]reconcile.MarketRef, 0, len(feeds))
	for _, f := range feeds {
		refs = append(refs, reconcile.MarketRef{Platform: f.Platform(), MarketID: f.MarketID()})
	}
	return refs
}

// healthHandler reports session health and watch counts.
func healthHandler(client *feed.Client) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stats := client.Session().Stats()

		health := struct {
			Status        string `json:"status"`
			State         string `json:"state"`
			Subscriptions int    `json:"subscriptions"`
			Markets       int    `json:"markets"`
			LatencyMillis int64  `json:"latency_ms,omitempty"`
			Reconnects    int64  `json:"reconnects"`
		}{
			Status:        "healthy",
			State:         stats.State.String(),
			Subscriptions: client.Registry().Len(),
			Markets:       len(client.Feeds()),
			Reconnects:    stats.Reconnects,
		}
		if stats.HasLatency {
			health.LatencyMillis = stats.LatencyMillis
		}
		if stats.State != model.StateConnected {
			health.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})
}

// debugMarketsHandler lists watched markets and their reducer revisions.
func debugMarketsHandler(client *feed.Client) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		type marketInfo struct {
			Platform  string         `json:"platform"`
			MarketID  string         `json:"market_id"`
			Revisions feed.Revisions `json:"revisions"`
		}

		feeds := client.Feeds()
		out := make([]marketInfo, 0, len(feeds))
		for _, f := range feeds {
			out = append(out, marketInfo{
				Platform:  string(f.Platform()),
				MarketID:  f.MarketID(),
				Revisions: f.Revisions(),
			})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"count":   len(out),
			"markets": out,
		})
	})
}

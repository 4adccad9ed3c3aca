package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/openpredict/termfeed/internal/config"
	"github.com/openpredict/termfeed/internal/metrics"
	"github.com/openpredict/termfeed/internal/model"
	"github.com/openpredict/termfeed/internal/rest"
)

// ErrStaleSnapshot marks a refresh whose result was discarded because a
// newer refresh for the same market started while it was in flight.
var ErrStaleSnapshot = errors.New("snapshot superseded by newer refresh")

// SnapshotAPI is the pulled-snapshot surface the fetcher needs. rest.Client
// implements it.
type SnapshotAPI interface {
	GetOrderBook(ctx context.Context, platform model.Platform, marketID string) (*model.OrderBook, error)
	GetRecentTrades(ctx context.Context, platform model.Platform, marketID string, limit int) (*rest.TradeHistory, error)
	GetPriceHistory(ctx context.Context, platform model.Platform, marketID string, interval model.CandleInterval) (*rest.PriceHistory, error)
}

// MarketRef names one market to pull.
type MarketRef struct {
	Platform model.Platform
	MarketID string
}

// Snapshot is one coherent pulled view of a market: book, recent trades,
// and price history fetched together. Snapshots are immutable once stored;
// callers must not modify them.
type Snapshot struct {
	Platform   model.Platform
	MarketID   string
	Generation uint64
	Book       *model.OrderBook
	Trades     []model.Trade
	Candles    []model.Candle
	FetchedAt  time.Time
}

// PricePoint derives a price pair from the newest candle. The no side is
// the complement of the close, which holds for binary markets.
func (s *Snapshot) PricePoint() (model.PricePoint, bool) {
	if s == nil || len(s.Candles) == 0 {
		return model.PricePoint{}, false
	}
	last := s.Candles[len(s.Candles)-1]
	return model.PricePoint{
		YesPrice:  last.Close,
		NoPrice:   decimal.NewFromInt(1).Sub(last.Close),
		Timestamp: last.Timestamp,
	}, true
}

// Fetcher is the pull path. Each market carries a generation counter; only
// the snapshot from the latest started refresh is ever stored.
type Fetcher struct {
	api        SnapshotAPI
	logger     *slog.Logger
	tradeLimit int
	bulkLimit  int
	interval   model.CandleInterval

	mu    sync.Mutex
	pulls map[MarketRef]*marketPull
}

type marketPull struct {
	gen  uint64
	snap *Snapshot
}

// NewFetcher creates a fetcher over the given snapshot API.
func NewFetcher(api SnapshotAPI, cfg config.ReconcileConfig, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	tradeLimit := cfg.TradeLimit
	if tradeLimit <= 0 {
		tradeLimit = config.DefaultReconcileTradeLimit
	}
	bulkLimit := cfg.Concurrency
	if bulkLimit <= 0 {
		bulkLimit = config.DefaultReconcileConcurrency
	}
	return &Fetcher{
		api:        api,
		logger:     logger,
		tradeLimit: tradeLimit,
		bulkLimit:  bulkLimit,
		interval:   model.Interval1h,
		pulls:      make(map[MarketRef]*marketPull),
	}
}

// Refresh pulls book, trades, and price history for one market in parallel
// and stores the result. A failed call fails the whole refresh and leaves
// the stored snapshot untouched. Returns ErrStaleSnapshot when a newer
// refresh started for the same market while this one was in flight.
func (f *Fetcher) Refresh(ctx context.Context, platform model.Platform, marketID string) (*Snapshot, error) {
	ref := MarketRef{Platform: platform, MarketID: marketID}
	gen := f.beginPull(ref)

	snap := &Snapshot{
		Platform:   platform,
		MarketID:   marketID,
		Generation: gen,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		book, err := f.api.GetOrderBook(gctx, platform, marketID)
		if err != nil {
			return fmt.Errorf("order book: %w", err)
		}
		snap.Book = book
		return nil
	})
	g.Go(func() error {
		hist, err := f.api.GetRecentTrades(gctx, platform, marketID, f.tradeLimit)
		if err != nil {
			return fmt.Errorf("recent trades: %w", err)
		}
		snap.Trades = hist.Trades
		return nil
	})
	g.Go(func() error {
		hist, err := f.api.GetPriceHistory(gctx, platform, marketID, f.interval)
		if err != nil {
			return fmt.Errorf("price history: %w", err)
		}
		snap.Candles = hist.Candles
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("refresh %s/%s: %w", platform, marketID, err)
	}
	snap.FetchedAt = time.Now().UTC()

	f.mu.Lock()
	pull := f.pulls[ref]
	if gen != pull.gen {
		latest := pull.gen
		f.mu.Unlock()
		metrics.StaleSnapshot()
		f.logger.Debug("discarding stale snapshot",
			"platform", platform,
			"market_id", marketID,
			"generation", gen,
			"latest", latest,
		)
		return nil, ErrStaleSnapshot
	}
	pull.snap = snap
	f.mu.Unlock()

	return snap, nil
}

// RefreshAll pulls every listed market with bounded parallelism. Per-market
// failures are logged and skipped so one dead market cannot starve the
// rest; the error return is reserved for context cancellation.
func (f *Fetcher) RefreshAll(ctx context.Context, refs []MarketRef) error {
	if len(refs) == 0 {
		return nil
	}
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(f.bulkLimit)

	var mu sync.Mutex
	refreshed, failed := 0, 0

	for _, ref := range refs {
		ref := ref
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			_, err := f.Refresh(ctx, ref.Platform, ref.MarketID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				refreshed++
			case errors.Is(err, ErrStaleSnapshot):
				// Superseded, not failed.
			default:
				failed++
				f.logger.Warn("market refresh failed",
					"platform", ref.Platform,
					"market_id", ref.MarketID,
					"error", err,
				)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	f.logger.Info("refresh cycle complete",
		"markets", len(refs),
		"refreshed", refreshed,
		"failed", failed,
		"duration", time.Since(start),
	)
	return nil
}

// Latest returns the stored snapshot for a market, or false when no
// refresh has completed yet.
func (f *Fetcher) Latest(platform model.Platform, marketID string) (*Snapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pull, ok := f.pulls[MarketRef{Platform: platform, MarketID: marketID}]
	if !ok || pull.snap == nil {
		return nil, false
	}
	return pull.snap, true
}

// beginPull hands out the next generation for a market.
func (f *Fetcher) beginPull(ref MarketRef) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	pull, ok := f.pulls[ref]
	if !ok {
		pull = &marketPull{}
		f.pulls[ref] = pull
	}
	pull.gen++
	return pull.gen
}

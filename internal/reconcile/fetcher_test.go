package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/openpredict/termfeed/internal/config"
	"github.com/openpredict/termfeed/internal/model"
	"github.com/openpredict/termfeed/internal/rest"
)

// fakeAPI serves canned snapshot data, with per-endpoint error injection.
type fakeAPI struct {
	mu        sync.Mutex
	book      *model.OrderBook
	trades    []model.Trade
	candles   []model.Candle
	bookErr   error
	tradesErr error
	histErr   error

	lastTradeLimit int
	bookCalls      int

	// When set, GetOrderBook blocks on the gate for the given call number.
	gate     chan struct{}
	gateCall int
}

func (f *fakeAPI) GetOrderBook(ctx context.Context, platform model.Platform, marketID string) (*model.OrderBook, error) {
	f.mu.Lock()
	f.bookCalls++
	call := f.bookCalls
	gate := f.gate
	book, err := f.book, f.bookErr
	f.mu.Unlock()

	if gate != nil && call == f.gateCall {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if book == nil {
		book = &model.OrderBook{Platform: platform, MarketID: marketID}
	}
	return book, nil
}

func (f *fakeAPI) GetRecentTrades(ctx context.Context, platform model.Platform, marketID string, limit int) (*rest.TradeHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastTradeLimit = limit
	if f.tradesErr != nil {
		return nil, f.tradesErr
	}
	return &rest.TradeHistory{Platform: platform, MarketID: marketID, Trades: f.trades}, nil
}

func (f *fakeAPI) GetPriceHistory(ctx context.Context, platform model.Platform, marketID string, interval model.CandleInterval) (*rest.PriceHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.histErr != nil {
		return nil, f.histErr
	}
	return &rest.PriceHistory{Platform: platform, MarketID: marketID, Interval: interval, Candles: f.candles}, nil
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestFetcher_RefreshStoresSnapshot(t *testing.T) {
	api := &fakeAPI{
		book:    &model.OrderBook{Platform: model.PlatformKalshi, MarketID: "FED-25DEC", YesBids: []model.BookLevel{{Price: dec("0.42"), Quantity: dec("100")}}},
		trades:  []model.Trade{trade("t1")},
		candles: []model.Candle{{Close: dec("0.42")}},
	}
	f := NewFetcher(api, config.ReconcileConfig{}, nil)

	snap, err := f.Refresh(context.Background(), model.PlatformKalshi, "FED-25DEC")
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if snap.Book == nil || len(snap.Trades) != 1 || len(snap.Candles) != 1 {
		t.Errorf("snapshot incomplete: book=%v trades=%d candles=%d",
			snap.Book != nil, len(snap.Trades), len(snap.Candles))
	}
	if snap.Generation != 1 {
		t.Errorf("Generation = %d, want 1", snap.Generation)
	}
	if snap.FetchedAt.IsZero() {
		t.Error("FetchedAt not set")
	}

	stored, ok := f.Latest(model.PlatformKalshi, "FED-25DEC")
	if !ok {
		t.Fatal("Latest() reported no snapshot after a successful refresh")
	}
	if stored != snap {
		t.Error("Latest() returned a different snapshot than Refresh")
	}
}

func TestFetcher_FailureLeavesStoredSnapshot(t *testing.T) {
	api := &fakeAPI{trades: []model.Trade{trade("t1")}}
	f := NewFetcher(api, config.ReconcileConfig{}, nil)

	if _, err := f.Refresh(context.Background(), model.PlatformKalshi, "FED-25DEC"); err != nil {
		t.Fatalf("first Refresh failed: %v", err)
	}

	api.mu.Lock()
	api.tradesErr = errors.New("boom")
	api.mu.Unlock()

	_, err := f.Refresh(context.Background(), model.PlatformKalshi, "FED-25DEC")
	if err == nil {
		t.Fatal("second Refresh succeeded, want error")
	}

	stored, ok := f.Latest(model.PlatformKalshi, "FED-25DEC")
	if !ok {
		t.Fatal("stored snapshot lost after failed refresh")
	}
	if stored.Generation != 1 {
		t.Errorf("stored Generation = %d, want the first refresh's 1", stored.Generation)
	}
	if len(stored.Trades) != 1 {
		t.Errorf("stored trades = %d, want 1", len(stored.Trades))
	}
}

func TestFetcher_StaleGenerationDiscarded(t *testing.T) {
	api := &fakeAPI{
		candles:  []model.Candle{{Close: dec("0.42")}},
		gate:     make(chan struct{}),
		gateCall: 1,
	}
	f := NewFetcher(api, config.ReconcileConfig{}, nil)

	firstErr := make(chan error, 1)
	go func() {
		_, err := f.Refresh(context.Background(), model.PlatformKalshi, "FED-25DEC")
		firstErr <- err
	}()

	waitFor(t, time.Second, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return api.bookCalls == 1
	}, "first refresh to reach the book call")

	// A second refresh starts and completes while the first is blocked.
	snap, err := f.Refresh(context.Background(), model.PlatformKalshi, "FED-25DEC")
	if err != nil {
		t.Fatalf("second Refresh failed: %v", err)
	}
	if snap.Generation != 2 {
		t.Fatalf("second snapshot Generation = %d, want 2", snap.Generation)
	}

	close(api.gate)
	if err := <-firstErr; !errors.Is(err, ErrStaleSnapshot) {
		t.Fatalf("first Refresh error = %v, want ErrStaleSnapshot", err)
	}

	stored, _ := f.Latest(model.PlatformKalshi, "FED-25DEC")
	if stored.Generation != 2 {
		t.Errorf("stored Generation = %d, want the newer refresh's 2", stored.Generation)
	}
}

func TestFetcher_RefreshAllContinuesPastFailures(t *testing.T) {
	bad := &fakeAPI{bookErr: errors.New("market gone")}
	good := &fakeAPI{candles: []model.Candle{{Close: dec("0.42")}}}

	// One API, failing for a single market.
	api := &routingAPI{def: good, perMarket: map[string]*fakeAPI{"DEAD": bad}}
	f := NewFetcher(api, config.ReconcileConfig{Concurrency: 2}, nil)

	refs := []MarketRef{
		{Platform: model.PlatformKalshi, MarketID: "A"},
		{Platform: model.PlatformKalshi, MarketID: "DEAD"},
		{Platform: model.PlatformKalshi, MarketID: "B"},
	}
	if err := f.RefreshAll(context.Background(), refs); err != nil {
		t.Fatalf("RefreshAll failed: %v", err)
	}

	for _, id := range []string{"A", "B"} {
		if _, ok := f.Latest(model.PlatformKalshi, id); !ok {
			t.Errorf("market %s has no snapshot after RefreshAll", id)
		}
	}
	if _, ok := f.Latest(model.PlatformKalshi, "DEAD"); ok {
		t.Error("failed market stored a snapshot")
	}
}

// routingAPI fans requests out to per-market fakes.
type routingAPI struct {
	def       *fakeAPI
	perMarket map[string]*fakeAPI
}

func (r *routingAPI) pick(marketID string) *fakeAPI {
	if api, ok := r.perMarket[marketID]; ok {
		return api
	}
	return r.def
}

func (r *routingAPI) GetOrderBook(ctx context.Context, platform model.Platform, marketID string) (*model.OrderBook, error) {
	return r.pick(marketID).GetOrderBook(ctx, platform, marketID)
}

func (r *routingAPI) GetRecentTrades(ctx context.Context, platform model.Platform, marketID string, limit int) (*rest.TradeHistory, error) {
	return r.pick(marketID).GetRecentTrades(ctx, platform, marketID, limit)
}

func (r *routingAPI) GetPriceHistory(ctx context.Context, platform model.Platform, marketID string, interval model.CandleInterval) (*rest.PriceHistory, error) {
	return r.pick(marketID).GetPriceHistory(ctx, platform, marketID, interval)
}

func TestFetcher_TradeLimitConfig(t *testing.T) {
	api := &fakeAPI{}
	f := NewFetcher(api, config.ReconcileConfig{TradeLimit: 25}, nil)
	if _, err := f.Refresh(context.Background(), model.PlatformKalshi, "FED-25DEC"); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	api.mu.Lock()
	got := api.lastTradeLimit
	api.mu.Unlock()
	if got != 25 {
		t.Errorf("trade limit = %d, want configured 25", got)
	}

	f = NewFetcher(&fakeAPI{}, config.ReconcileConfig{}, nil)
	if f.tradeLimit != config.DefaultReconcileTradeLimit {
		t.Errorf("default trade limit = %d, want %d", f.tradeLimit, config.DefaultReconcileTradeLimit)
	}
}

func TestFetcher_LatestUnknownMarket(t *testing.T) {
	f := NewFetcher(&fakeAPI{}, config.ReconcileConfig{}, nil)
	if _, ok := f.Latest(model.PlatformKalshi, "NEVER"); ok {
		t.Error("Latest() reported a snapshot for a never-refreshed market")
	}
}

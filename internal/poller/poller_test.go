package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openpredict/termfeed/internal/config"
	"github.com/openpredict/termfeed/internal/model"
	"github.com/openpredict/termfeed/internal/reconcile"
)

// fakeRefresher records refresh calls and can fail or delay per market.
type fakeRefresher struct {
	mu    sync.Mutex
	calls []reconcile.MarketRef
	errs  map[string]error
	delay time.Duration

	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (r *fakeRefresher) Refresh(ctx context.Context, platform model.Platform, marketID string) (*reconcile.Snapshot, error) {
	cur := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)

	for {
		old := r.maxSeen.Load()
		if cur <= old || r.maxSeen.CompareAndSwap(old, cur) {
			break
		}
	}

	if r.delay > 0 {
		time.Sleep(r.delay)
	}

	r.mu.Lock()
	r.calls = append(r.calls, reconcile.MarketRef{Platform: platform, MarketID: marketID})
	r.mu.Unlock()

	if err := r.errs[marketID]; err != nil {
		return nil, err
	}
	return &reconcile.Snapshot{Platform: platform, MarketID: marketID}, nil
}

func (r *fakeRefresher) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *fakeRefresher) called(marketID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ref := range r.calls {
		if ref.MarketID == marketID {
			return true
		}
	}
	return false
}

func refs(ids ...string) []reconcile.MarketRef {
	out := make([]reconcile.MarketRef, 0, len(ids))
	for _, id := range ids {
		out = append(out, reconcile.MarketRef{Platform: model.PlatformKalshi, MarketID: id})
	}
	return out
}

func testPollerConfig() config.PollerConfig {
	return config.PollerConfig{
		Interval:    time.Hour, // long interval, cycles triggered manually
		Concurrency: 10,
		Timeout:     5 * time.Second,
	}
}

func TestPoller_PollAll(t *testing.T) {
	refresher := &fakeRefresher{}
	source := MarketSourceFunc(func() []reconcile.MarketRef {
		return refs("MKT-1", "MKT-2", "MKT-3")
	})

	p := New(testPollerConfig(), source, refresher, nil)
	defer p.Stop(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p.ctx = ctx

	p.pollAll()

	if got := refresher.callCount(); got != 3 {
		t.Errorf("refresh calls = %d, want 3", got)
	}
}

func TestPoller_ContinuesPastFailures(t *testing.T) {
	refresher := &fakeRefresher{
		errs: map[string]error{
			"DEAD":  errors.New("boom"),
			"STALE": reconcile.ErrStaleSnapshot,
		},
	}
	source := MarketSourceFunc(func() []reconcile.MarketRef {
		return refs("MKT-A", "DEAD", "STALE", "MKT-B")
	})

	p := New(testPollerConfig(), source, refresher, nil)
	defer p.Stop(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p.ctx = ctx

	p.pollAll()

	if got := refresher.callCount(); got != 4 {
		t.Errorf("refresh calls = %d, want 4", got)
	}
	for _, id := range []string{"MKT-A", "DEAD", "STALE", "MKT-B"} {
		if !refresher.called(id) {
			t.Errorf("market %s was never refreshed", id)
		}
	}
}

func TestPoller_EmptySource(t *testing.T) {
	refresher := &fakeRefresher{}
	source := MarketSourceFunc(func() []reconcile.MarketRef { return nil })

	p := New(testPollerConfig(), source, refresher, nil)
	defer p.Stop(context.Background())

	p.ctx = context.Background()
	p.pollAll()

	if got := refresher.callCount(); got != 0 {
		t.Errorf("refresh calls = %d, want 0", got)
	}
}

func TestPoller_StartStop(t *testing.T) {
	refresher := &fakeRefresher{}
	source := MarketSourceFunc(func() []reconcile.MarketRef {
		return refs("MKT-1")
	})

	cfg := config.PollerConfig{
		Interval:    25 * time.Millisecond,
		Concurrency: 10,
		Timeout:     5 * time.Second,
	}

	p := New(cfg, source, refresher, nil)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Immediate poll on start plus at least one ticker cycle.
	time.Sleep(90 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if got := refresher.callCount(); got < 2 {
		t.Errorf("refresh calls = %d, want >= 2", got)
	}
}

func TestPoller_Concurrency(t *testing.T) {
	refresher := &fakeRefresher{delay: 30 * time.Millisecond}

	ids := make([]string, 20)
	for i := range ids {
		ids[i] = "MKT-" + string(rune('A'+i))
	}
	source := MarketSourceFunc(func() []reconcile.MarketRef {
		return refs(ids...)
	})

	cfg := config.PollerConfig{
		Interval:    time.Hour,
		Concurrency: 5,
		Timeout:     5 * time.Second,
	}

	p := New(cfg, source, refresher, nil)
	defer p.Stop(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	p.ctx = ctx

	p.pollAll()

	if got := refresher.callCount(); got != 20 {
		t.Errorf("refresh calls = %d, want 20", got)
	}
	if got := refresher.maxSeen.Load(); got > 5 {
		t.Errorf("max in-flight refreshes = %d, want <= 5", got)
	}
}

func TestPoller_DefaultsApplied(t *testing.T) {
	p := New(config.PollerConfig{}, MarketSourceFunc(func() []reconcile.MarketRef { return nil }), &fakeRefresher{}, nil)
	defer p.Stop(context.Background())

	if p.cfg.Interval != config.DefaultPollInterval {
		t.Errorf("Interval = %v, want %v", p.cfg.Interval, config.DefaultPollInterval)
	}
	if p.cfg.Concurrency != config.DefaultPollConcurrency {
		t.Errorf("Concurrency = %d, want %d", p.cfg.Concurrency, config.DefaultPollConcurrency)
	}
	if p.cfg.Timeout != config.DefaultPollTimeout {
		t.Errorf("Timeout = %v, want %v", p.cfg.Timeout, config.DefaultPollTimeout)
	}
}

package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alitto/pond"

	"github.com/openpredict/termfeed/internal/config"
	"github.com/openpredict/termfeed/internal/model"
	"github.com/openpredict/termfeed/internal/reconcile"
)

// queueCapacity bounds tasks waiting for a pool worker; submits block past it.
const queueCapacity = 100

// MarketSource provides the markets to keep fresh.
type MarketSource interface {
	TrackedMarkets() []reconcile.MarketRef
}

// MarketSourceFunc is a function adapter for MarketSource.
type MarketSourceFunc func() []reconcile.MarketRef

func (f MarketSourceFunc) TrackedMarkets() []reconcile.MarketRef {
	return f()
}

// Refresher pulls a fresh snapshot for one market.
type Refresher interface {
	Refresh(ctx context.Context, platform model.Platform, marketID string) (*reconcile.Snapshot, error)
}

// Poller periodically refreshes every tracked market through a Refresher.
type Poller struct {
	cfg       config.PollerConfig
	source    MarketSource
	refresher Refresher
	logger    *slog.Logger

	pool   *pond.WorkerPool
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller. Zero config fields fall back to defaults.
func New(cfg config.PollerConfig, source MarketSource, refresher Refresher, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = config.DefaultPollInterval
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = config.DefaultPollConcurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.DefaultPollTimeout
	}

	pool := pond.New(cfg.Concurrency, queueCapacity,
		pond.MinWorkers(1),
		pond.PanicHandler(func(v interface{}) {
			logger.Error("poll task panicked", "panic", v)
		}),
	)

	return &Poller{
		cfg:       cfg,
		source:    source,
		refresher: refresher,
		logger:    logger,
		pool:      pool,
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("snapshot poller started",
		"interval", p.cfg.Interval,
		"concurrency", p.cfg.Concurrency,
	)

	return nil
}

// Stop gracefully shuts down the poller and its worker pool.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		p.pool.StopAndWait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("snapshot poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.pollAll()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.pollAll()
		}
	}
}

// pollAll refreshes all tracked markets concurrently on the worker pool.
func (p *Poller) pollAll() {
	start := time.Now()

	refs := p.source.TrackedMarkets()
	if len(refs) == 0 {
		p.logger.Debug("no tracked markets to poll")
		return
	}

	group := p.pool.Group()
	var refreshed, stale, failed atomic.Int64

	for _, ref := range refs {
		ref := ref
		group.Submit(func() {
			if p.ctx.Err() != nil {
				return
			}

			if err := p.pollMarket(ref); err != nil {
				if errors.Is(err, reconcile.ErrStaleSnapshot) {
					stale.Add(1)
					return
				}
				p.logger.Warn("failed to poll market",
					"platform", ref.Platform,
					"market_id", ref.MarketID,
					"err", err,
				)
				failed.Add(1)
				return
			}

			refreshed.Add(1)
		})
	}

	group.Wait()

	p.logger.Info("poll cycle complete",
		"markets", len(refs),
		"refreshed", refreshed.Load(),
		"stale", stale.Load(),
		"failed", failed.Load(),
		"duration", time.Since(start),
	)
}

// pollMarket refreshes a single market with a per-request timeout.
func (p *Poller) pollMarket(ref reconcile.MarketRef) error {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	_, err := p.refresher.Refresh(ctx, ref.Platform, ref.MarketID)
	return err
}

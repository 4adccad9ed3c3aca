package analytics

import (
	"github.com/openpredict/termfeed/internal/config"
	"github.com/openpredict/termfeed/internal/model"
)

// BookParams tunes order-book metric computation.
type BookParams struct {
	// WallMultiplier flags any level holding more than this multiple of
	// the mean level quantity.
	WallMultiplier float64
	// HeatmapBand is the price distance from mid, in absolute price units,
	// beyond which the proximity term of the heat score reaches zero.
	HeatmapBand float64
}

// DefaultBookParams returns the standard tuning.
func DefaultBookParams() BookParams {
	return BookParams{
		WallMultiplier: config.DefaultWallMultiplier,
		HeatmapBand:    config.DefaultHeatmapPriceBand,
	}
}

// LevelMetric is one book level with its derived flags.
type LevelMetric struct {
	Price    float64
	Quantity float64
	Wall     bool
	// Heat combines relative size and proximity to mid, in [0,1].
	Heat float64
}

// BookMetrics is the derived view of one two-sided book.
type BookMetrics struct {
	BestBid   float64
	BestAsk   float64
	HasBid    bool
	HasAsk    bool
	MidPrice  float64
	Spread    float64
	SpreadPct float64

	TotalBidQty float64
	TotalAskQty float64

	// ImbalanceRatio is (bid-ask)/(bid+ask) total quantity, in [-1,1].
	// Zero when the book holds no liquidity at all.
	ImbalanceRatio float64
	// BidAskRatio is total bid over total ask quantity, 0 when no asks.
	BidAskRatio float64

	// WallThreshold is WallMultiplier times the mean level quantity
	// across both sides.
	WallThreshold float64

	Bids []LevelMetric
	Asks []LevelMetric
}

// ComputeBookMetrics derives metrics from one two-sided book. Both slices
// must already be sorted best-first. The zero-params value is replaced by
// defaults.
func ComputeBookMetrics(bids, asks []model.BookLevel, p BookParams) BookMetrics {
	if p.WallMultiplier == 0 {
		p.WallMultiplier = config.DefaultWallMultiplier
	}
	if p.HeatmapBand == 0 {
		p.HeatmapBand = config.DefaultHeatmapPriceBand
	}

	m := BookMetrics{}

	if len(bids) > 0 {
		m.BestBid = bids[0].Price.InexactFloat64()
		m.HasBid = true
	}
	if len(asks) > 0 {
		m.BestAsk = asks[0].Price.InexactFloat64()
		m.HasAsk = true
	}
	if m.HasBid && m.HasAsk {
		m.MidPrice = (m.BestBid + m.BestAsk) / 2
		m.Spread = m.BestAsk - m.BestBid
		if m.MidPrice != 0 {
			m.SpreadPct = m.Spread / m.MidPrice * 100
		}
	}

	var totalQty, maxQty float64
	levels := 0
	sum := func(side []model.BookLevel) float64 {
		total := 0.0
		for _, lvl := range side {
			qty := lvl.Quantity.InexactFloat64()
			total += qty
			totalQty += qty
			if qty > maxQty {
				maxQty = qty
			}
			levels++
		}
		return total
	}
	m.TotalBidQty = sum(bids)
	m.TotalAskQty = sum(asks)

	if total := m.TotalBidQty + m.TotalAskQty; total > 0 {
		m.ImbalanceRatio = clamp((m.TotalBidQty-m.TotalAskQty)/total, -1, 1)
	}
	if m.TotalAskQty > 0 {
		m.BidAskRatio = m.TotalBidQty / m.TotalAskQty
	}
	if levels > 0 {
		m.WallThreshold = p.WallMultiplier * (totalQty / float64(levels))
	}

	grade := func(side []model.BookLevel) []LevelMetric {
		if len(side) == 0 {
			return nil
		}
		out := make([]LevelMetric, len(side))
		for i, lvl := range side {
			price := lvl.Price.InexactFloat64()
			qty := lvl.Quantity.InexactFloat64()
			out[i] = LevelMetric{
				Price:    price,
				Quantity: qty,
				Wall:     m.WallThreshold > 0 && qty > m.WallThreshold,
				Heat:     heat(price, qty, m, maxQty, p.HeatmapBand),
			}
		}
		return out
	}
	m.Bids = grade(bids)
	m.Asks = grade(asks)

	return m
}

// heat scores one level: 0.6 weight on relative size, 0.4 on proximity to
// mid. The proximity term is zero when the book has no mid.
func heat(price, qty float64, m BookMetrics, maxQty, band float64) float64 {
	var size float64
	if maxQty > 0 {
		size = qty / maxQty
	}
	var proximity float64
	if m.HasBid && m.HasAsk {
		dist := price - m.MidPrice
		if dist < 0 {
			dist = -dist
		}
		proximity = max(0, 1-dist/band)
	}
	return clamp(0.6*size+0.4*proximity, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

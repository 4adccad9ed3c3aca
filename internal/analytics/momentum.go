package analytics

import (
	"time"

	"github.com/openpredict/termfeed/internal/config"
	"github.com/openpredict/termfeed/internal/model"
)

// Direction is the dominant side of recent trade flow.
type Direction string

const (
	DirectionBuy     Direction = "buy"
	DirectionSell    Direction = "sell"
	DirectionNeutral Direction = "neutral"
)

// directionThreshold is the momentum ratio beyond which flow counts as
// directional.
const directionThreshold = 0.2

// MomentumParams tunes momentum computation.
type MomentumParams struct {
	// Window is the sliding window over trade timestamps.
	Window time.Duration
	// WhaleMultiplier flags trades larger than this multiple of the
	// window's mean trade quantity.
	WhaleMultiplier float64
}

// DefaultMomentumParams returns the standard tuning.
func DefaultMomentumParams() MomentumParams {
	return MomentumParams{
		Window:          config.DefaultTradeWindow,
		WhaleMultiplier: config.DefaultWhaleMultiplier,
	}
}

// Momentum is derived trade-flow state over one window.
type Momentum struct {
	Window time.Duration

	BuyVolume  float64
	SellVolume float64
	BuyCount   int
	SellCount  int

	// Ratio is (buy-sell)/(buy+sell) volume, in [-1,1].
	Ratio     float64
	Direction Direction

	// Whales are window trades whose quantity exceeds WhaleMultiplier
	// times the window mean, newest order preserved from the input.
	Whales []model.Trade

	// Accelerating reports whether |Ratio| grew against the previous
	// sample.
	Accelerating bool
}

// ComputeMomentum derives trade-flow momentum from the trades inside the
// window ending at now. prev is the previous sample, or nil. Trades
// reporting no taker side classify by outcome: yes-side takers count as
// buys, no-side as sells.
func ComputeMomentum(trades []model.Trade, now time.Time, prev *Momentum, p MomentumParams) Momentum {
	if p.Window <= 0 {
		p.Window = config.DefaultTradeWindow
	}
	if p.WhaleMultiplier == 0 {
		p.WhaleMultiplier = config.DefaultWhaleMultiplier
	}

	m := Momentum{Window: p.Window, Direction: DirectionNeutral}
	cutoff := now.Add(-p.Window)

	var windowed []model.Trade
	var totalQty float64
	for _, t := range trades {
		if t.Timestamp.Before(cutoff) || t.Timestamp.After(now) {
			continue
		}
		qty := t.Quantity.InexactFloat64()
		windowed = append(windowed, t)
		totalQty += qty

		if isBuy(t) {
			m.BuyVolume += qty
			m.BuyCount++
		} else {
			m.SellVolume += qty
			m.SellCount++
		}
	}

	if total := m.BuyVolume + m.SellVolume; total > 0 {
		m.Ratio = clamp((m.BuyVolume-m.SellVolume)/total, -1, 1)
	}
	switch {
	case m.Ratio > directionThreshold:
		m.Direction = DirectionBuy
	case m.Ratio < -directionThreshold:
		m.Direction = DirectionSell
	}

	if len(windowed) > 0 {
		threshold := p.WhaleMultiplier * (totalQty / float64(len(windowed)))
		for _, t := range windowed {
			if t.Quantity.InexactFloat64() > threshold {
				m.Whales = append(m.Whales, t)
			}
		}
	}

	if prev != nil {
		m.Accelerating = abs(m.Ratio) > abs(prev.Ratio)
	}
	return m
}

func isBuy(t model.Trade) bool {
	switch t.Side {
	case model.SideBuy:
		return true
	case model.SideSell:
		return false
	}
	return t.Outcome == model.OutcomeYes
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

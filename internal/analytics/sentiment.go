package analytics

import "github.com/openpredict/termfeed/internal/model"

// Component weights of the composite score.
const (
	weightImbalance  = 0.30
	weightMomentum   = 0.35
	weightPriceTrend = 0.20
	weightVolume     = 0.15
)

// SentimentInputs carries the four component readings. Each Has flag marks
// whether the reading is available; unavailable components contribute
// nothing to the score and lower the confidence.
type SentimentInputs struct {
	// Imbalance is the order-book imbalance ratio in [-1,1].
	Imbalance    float64
	HasImbalance bool

	// MomentumRatio is the trade-flow ratio in [-1,1].
	MomentumRatio float64
	HasMomentum   bool

	// PriceChangePct is the percent price change over the history span.
	PriceChangePct float64
	HasPriceTrend  bool

	// VolumeRatio is current volume over the average, 1.0 meaning average.
	VolumeRatio float64
	HasVolume   bool
}

// SentimentComponents are the normalized per-component scores, each in
// [-100,100], zero when unavailable.
type SentimentComponents struct {
	Imbalance  float64
	Momentum   float64
	PriceTrend float64
	Volume     float64
}

// Sentiment is the composite reading.
type Sentiment struct {
	// Score is the weighted component sum, clamped to [-100,100].
	Score float64
	Label string
	// Confidence in [0,1]: 0.6 weight on input availability, 0.4 on
	// directional agreement.
	Confidence float64
	Components SentimentComponents
	// Signals are human-readable observations that fired.
	Signals []string
}

// ComputeSentiment folds the four components into one composite score.
func ComputeSentiment(in SentimentInputs) Sentiment {
	var s Sentiment
	available := 0

	if in.HasImbalance {
		s.Components.Imbalance = clamp(in.Imbalance*100, -100, 100)
		available++
	}
	if in.HasMomentum {
		s.Components.Momentum = clamp(in.MomentumRatio*100, -100, 100)
		available++
	}
	if in.HasPriceTrend {
		s.Components.PriceTrend = clamp(in.PriceChangePct*10, -100, 100)
		available++
	}
	if in.HasVolume {
		s.Components.Volume = clamp((in.VolumeRatio-1)*50, -100, 100)
		available++
	}

	s.Score = clamp(
		weightImbalance*s.Components.Imbalance+
			weightMomentum*s.Components.Momentum+
			weightPriceTrend*s.Components.PriceTrend+
			weightVolume*s.Components.Volume,
		-100, 100)
	s.Label = label(s.Score)
	s.Confidence = confidence(available, s.Components)
	s.Signals = signals(in)
	return s
}

func label(score float64) string {
	switch {
	case score >= 60:
		return "Extremely Bullish"
	case score >= 30:
		return "Bullish"
	case score >= 10:
		return "Slightly Bullish"
	case score <= -60:
		return "Extremely Bearish"
	case score <= -30:
		return "Bearish"
	case score <= -10:
		return "Slightly Bearish"
	}
	return "Neutral"
}

// confidence is 0.6 on the fraction of available inputs plus 0.4 on how
// much the directional components agree. With no directional component the
// agreement term defaults to 0.5.
func confidence(available int, c SentimentComponents) float64 {
	availability := float64(available) / 4

	pos, neg := 0, 0
	for _, v := range []float64{c.Imbalance, c.Momentum, c.PriceTrend, c.Volume} {
		switch {
		case v > 0:
			pos++
		case v < 0:
			neg++
		}
	}
	agreement := 0.5
	if total := pos + neg; total > 0 {
		agreement = float64(max(pos, neg)) / float64(total)
	}
	return 0.6*availability + 0.4*agreement
}

func signals(in SentimentInputs) []string {
	var out []string
	if in.HasImbalance {
		switch {
		case in.Imbalance > 0.3:
			out = append(out, "Strong bid-side liquidity")
		case in.Imbalance < -0.3:
			out = append(out, "Strong ask-side liquidity")
		}
	}
	if in.HasMomentum {
		switch {
		case in.MomentumRatio > directionThreshold:
			out = append(out, "Aggressive buy-side flow")
		case in.MomentumRatio < -directionThreshold:
			out = append(out, "Aggressive sell-side flow")
		}
	}
	if in.HasPriceTrend {
		switch {
		case in.PriceChangePct > 2:
			out = append(out, "Upward price trend")
		case in.PriceChangePct < -2:
			out = append(out, "Downward price trend")
		}
	}
	if in.HasVolume && in.VolumeRatio > 1.5 {
		out = append(out, "Elevated volume")
	}
	return out
}

// PriceTrendPct returns the percent close-to-close change across the candle
// span, oldest first. Needs at least two candles and a nonzero first close.
func PriceTrendPct(candles []model.Candle) (float64, bool) {
	if len(candles) < 2 {
		return 0, false
	}
	first := candles[0].Close.InexactFloat64()
	last := candles[len(candles)-1].Close.InexactFloat64()
	if first == 0 {
		return 0, false
	}
	return (last - first) / first * 100, true
}

// VolumeRatio returns the newest candle's volume relative to the span mean,
// oldest first. Needs a nonzero mean.
func VolumeRatio(candles []model.Candle) (float64, bool) {
	if len(candles) == 0 {
		return 0, false
	}
	var total float64
	for _, c := range candles {
		total += c.Volume.InexactFloat64()
	}
	mean := total / float64(len(candles))
	if mean == 0 {
		return 0, false
	}
	return candles[len(candles)-1].Volume.InexactFloat64() / mean, true
}

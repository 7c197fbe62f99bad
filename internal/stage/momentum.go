package stage

import (
	"fmt"

	"StageScreener/internal/calculator"
	"StageScreener/internal/model"
)

const (
	momentumWindow  = 50
	momentumMinBars = 26
	fastSMA         = 3
	slowSMA         = 12
	rsiPeriod       = 14
)

// Momentum scores SMA(3)/SMA(12) crossovers and the MACD histogram.
type Momentum struct {
	Window int
}

func NewMomentum() *Momentum { return &Momentum{Window: momentumWindow} }

func (s *Momentum) Name() model.StageName { return model.StageMomentum }
func (s *Momentum) Policy() Policy        { return DefaultNeutral }

func (s *Momentum) Evaluate(env Env, in model.VolatilityResult) (model.MomentumResult, error) {
	bars := env.Window(in.Symbol, max(s.Window, momentumMinBars))
	if len(bars) < momentumMinBars {
		return model.MomentumResult{}, fmt.Errorf("%w: %d bars", ErrInsufficientData, len(bars))
	}
	closes := model.Closes(bars)
	n := len(closes)

	fast, err := calculator.SMASeries(closes, fastSMA)
	if err != nil {
		return model.MomentumResult{}, indicatorErr("sma3", err)
	}
	slow, err := calculator.SMASeries(closes, slowSMA)
	if err != nil {
		return model.MomentumResult{}, indicatorErr("sma12", err)
	}
	macd, err := calculator.CalculateMACD(closes, 12, 26, 9)
	if err != nil {
		return model.MomentumResult{}, indicatorErr("macd", err)
	}
	rsi, err := calculator.CalculateRSI(closes, rsiPeriod)
	if err != nil {
		return model.MomentumResult{}, indicatorErr("rsi", err)
	}

	sma3, sma12 := fast[n-1], slow[n-1]
	price := closes[n-1]
	if sma12 <= 0 || price <= 0 {
		return model.MomentumResult{}, fmt.Errorf("%w: non-positive average", ErrComputation)
	}
	ratio := sma3 / sma12
	histPct := macd.Histogram / price * 100
	if err := finite(ratio, histPct, rsi); err != nil {
		return model.MomentumResult{}, err
	}

	cross := Crossover(fast[n-2], slow[n-2], sma3, sma12)
	return model.MomentumResult{
		StageBase:     env.base(in.StageBase, bars),
		SMA3:          sma3,
		SMA12:         sma12,
		SMARatio:      ratio,
		MACD:          macd.Line,
		MACDSignal:    macd.Signal,
		MACDHistogram: macd.Histogram,
		RSI:           rsi,
		CrossoverType: cross,
		Score:         MomentumScore(cross, ratio, histPct),
	}, nil
}

func (s *Momentum) Fallback(env Env, in model.VolatilityResult) model.MomentumResult {
	return model.MomentumResult{
		StageBase:     env.base(in.StageBase, nil),
		SMARatio:      1,
		RSI:           50,
		CrossoverType: model.CrossoverNeutral,
		Score:         50,
		Fallback:      true,
	}
}

// Crossover classifies the move from the previous fast/slow pair to the latest one.
func Crossover(prevFast, prevSlow, fast, slow float64) model.CrossoverType {
	switch {
	case prevFast <= prevSlow && fast > slow:
		return model.CrossoverBullish
	case prevFast >= prevSlow && fast < slow:
		return model.CrossoverBearish
	default:
		return model.CrossoverNeutral
	}
}

// MomentumScore starts at 50 and adds the crossover, SMA ratio and histogram
// adjustments. histPct is the MACD histogram as a percent of price.
func MomentumScore(cross model.CrossoverType, ratio, histPct float64) int {
	score := 50.0
	switch cross {
	case model.CrossoverBullish:
		score += 30
	case model.CrossoverBearish:
		score -= 30
	}

	switch {
	case ratio > 1.05:
		score += 20
	case ratio > 1.02:
		score += 10
	case ratio < 0.95:
		score -= 20
	case ratio < 0.98:
		score -= 10
	}

	switch {
	case histPct > 0.5:
		score += 15
	case histPct > 0:
		score += 10
	case histPct < -0.5:
		score -= 15
	case histPct < 0:
		score -= 10
	}
	return clampScore(score, 0, 100)
}

package stage

import (
	"fmt"

	"StageScreener/internal/calculator"
	"StageScreener/internal/model"
)

const (
	trendWindow  = 30
	trendMinBars = 20
	adxPeriod    = 14
)

// Trend classifies trend strength from Wilder's ADX.
type Trend struct {
	Window int
}

func NewTrend() *Trend { return &Trend{Window: trendWindow} }

func (s *Trend) Name() model.StageName { return model.StageTrend }
func (s *Trend) Policy() Policy        { return DefaultNeutral }

func (s *Trend) Evaluate(env Env, in model.MomentumResult) (model.TrendResult, error) {
	bars := env.Window(in.Symbol, max(s.Window, trendMinBars))
	if len(bars) < trendMinBars {
		return model.TrendResult{}, fmt.Errorf("%w: %d bars", ErrInsufficientData, len(bars))
	}
	di, err := calculator.CalculateADX(bars, adxPeriod)
	if err != nil {
		return model.TrendResult{}, indicatorErr("adx", err)
	}
	if err := finite(di.ADX, di.PlusDI, di.MinusDI); err != nil {
		return model.TrendResult{}, err
	}

	label, score := ClassifyTrend(di.ADX)
	return model.TrendResult{
		StageBase: env.base(in.StageBase, bars),
		ADX:       di.ADX,
		PlusDI:    di.PlusDI,
		MinusDI:   di.MinusDI,
		Direction: direction(di.PlusDI, di.MinusDI),
		Trend:     label,
		Score:     score,
	}, nil
}

func (s *Trend) Fallback(env Env, in model.MomentumResult) model.TrendResult {
	return model.TrendResult{
		StageBase: env.base(in.StageBase, nil),
		Direction: "Flat",
		Trend:     model.TrendNone,
		Score:     25,
		Fallback:  true,
	}
}

// ClassifyTrend maps ADX to a label and score. Extreme readings score below
// Very Strong.
func ClassifyTrend(adx float64) (model.TrendStrength, int) {
	switch {
	case adx < 20:
		return model.TrendNone, clampScore(25+adx, 0, 100)
	case adx <= 50:
		return model.TrendStrong, clampScore(60+(adx-20)/30*25, 0, 100)
	case adx <= 75:
		return model.TrendVeryStrong, 95
	default:
		return model.TrendExtreme, 75
	}
}

func direction(plusDI, minusDI float64) string {
	switch {
	case plusDI > minusDI:
		return "Up"
	case minusDI > plusDI:
		return "Down"
	default:
		return "Flat"
	}
}

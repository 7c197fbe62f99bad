package stage

import (
	"errors"
	"fmt"

	"StageScreener/internal/calculator"
	"StageScreener/internal/model"
)

const (
	volatilityWindow  = 30
	volatilityMinBars = 20
	atrPeriod         = 14
	bandPeriod        = 20
	bandWidthK        = 2.0
)

// Volatility scores ATR and Bollinger Band placement.
type Volatility struct {
	Window int
}

func NewVolatility() *Volatility { return &Volatility{Window: volatilityWindow} }

func (s *Volatility) Name() model.StageName { return model.StageVolatility }
func (s *Volatility) Policy() Policy        { return DefaultNeutral }

func (s *Volatility) Evaluate(env Env, in model.RelativeStrengthResult) (model.VolatilityResult, error) {
	bars := env.Window(in.Symbol, max(s.Window, volatilityMinBars))
	if len(bars) < volatilityMinBars {
		return model.VolatilityResult{}, fmt.Errorf("%w: %d bars", ErrInsufficientData, len(bars))
	}

	atr, err := calculator.CalculateATR(bars, atrPeriod)
	if err != nil {
		return model.VolatilityResult{}, indicatorErr("atr", err)
	}
	bands, err := calculator.CalculateBollinger(model.Closes(bars), bandPeriod, bandWidthK)
	if err != nil {
		return model.VolatilityResult{}, indicatorErr("bollinger", err)
	}

	price := bars[len(bars)-1].Close
	if price <= 0 {
		return model.VolatilityResult{}, fmt.Errorf("%w: non-positive close", ErrComputation)
	}
	atrRatio := atr / price * 100
	if err := finite(atrRatio, bands.Width, bands.Position); err != nil {
		return model.VolatilityResult{}, err
	}

	return model.VolatilityResult{
		StageBase:  env.base(in.StageBase, bars),
		ATR:        atr,
		ATRRatio:   atrRatio,
		BBUpper:    bands.Upper,
		BBMiddle:   bands.Middle,
		BBLower:    bands.Lower,
		BBWidth:    bands.Width,
		BBPosition: bands.Position,
		Score:      VolatilityScore(atrRatio, bands.Width, bands.Position),
	}, nil
}

func (s *Volatility) Fallback(env Env, in model.RelativeStrengthResult) model.VolatilityResult {
	return model.VolatilityResult{
		StageBase: env.base(in.StageBase, nil),
		Score:     50,
		Fallback:  true,
	}
}

// VolatilityScore blends the ATR-ratio, band-width and band-position tiers 40/30/30.
func VolatilityScore(atrRatio, bbWidth, bbPosition float64) int {
	v := 0.4*atrRatioTier(atrRatio) + 0.3*bandWidthTier(bbWidth) + 0.3*bandPositionTier(bbPosition)
	return clampScore(v, 1, 100)
}

// moderate daily ranges are tradeable; very quiet or very wild ones are not
func atrRatioTier(r float64) float64 {
	switch {
	case r < 1:
		return 50
	case r < 2:
		return 80
	case r < 3.5:
		return 100
	case r < 5:
		return 70
	case r < 7:
		return 40
	default:
		return 20
	}
}

func bandWidthTier(w float64) float64 {
	switch {
	case w < 4:
		return 90
	case w < 8:
		return 80
	case w < 12:
		return 65
	case w < 20:
		return 45
	default:
		return 25
	}
}

// long-only bias: best just above the lower band, worst above the upper band
func bandPositionTier(p float64) float64 {
	switch {
	case p < 0:
		return 60
	case p < 20:
		return 85
	case p < 40:
		return 100
	case p < 60:
		return 70
	case p < 80:
		return 45
	case p <= 100:
		return 25
	default:
		return 10
	}
}

// indicatorErr maps a calculator failure onto the stage taxonomy.
func indicatorErr(what string, err error) error {
	if errors.Is(err, calculator.ErrInsufficientData) {
		return fmt.Errorf("%w: %s: %v", ErrInsufficientData, what, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrComputation, what, err)
}

package strategy

import "StageScreener/internal/model"

// MissingDefaults is the score used for a stage that produced no result for a symbol.
var MissingDefaults = map[model.StageName]float64{
	model.StageRelativeStrength: 50,
	model.StageVolatility:       50,
	model.StageMomentum:         50,
	model.StageTrend:            50,
	model.StagePattern:          0,
	model.StageStructure:        50,
}

// factorSources lists the scored stages in report order.
var factorSources = []struct {
	stage model.StageName
	score func(*model.CompositeResult) (float64, bool)
}{
	{model.StageRelativeStrength, scoreRelativeStrength},
	{model.StageVolatility, scoreVolatility},
	{model.StageMomentum, scoreMomentum},
	{model.StageTrend, scoreTrend},
	{model.StagePattern, scorePattern},
	{model.StageStructure, scoreStructure},
}

// scoreRelativeStrength uses the long-side score.
func scoreRelativeStrength(c *model.CompositeResult) (float64, bool) {
	if c.RelativeStrength == nil {
		return 0, false
	}
	return float64(c.RelativeStrength.LongScore), true
}

func scoreVolatility(c *model.CompositeResult) (float64, bool) {
	if c.Volatility == nil {
		return 0, false
	}
	return float64(c.Volatility.Score), true
}

func scoreMomentum(c *model.CompositeResult) (float64, bool) {
	if c.Momentum == nil {
		return 0, false
	}
	return float64(c.Momentum.Score), true
}

func scoreTrend(c *model.CompositeResult) (float64, bool) {
	if c.Trend == nil {
		return 0, false
	}
	return float64(c.Trend.Score), true
}

func scorePattern(c *model.CompositeResult) (float64, bool) {
	if c.Pattern == nil {
		return 0, false
	}
	return float64(c.Pattern.Score), true
}

func scoreStructure(c *model.CompositeResult) (float64, bool) {
	if c.Structure == nil {
		return 0, false
	}
	return float64(c.Structure.Score), true
}

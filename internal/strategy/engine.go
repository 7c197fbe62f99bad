package strategy

import (
	"fmt"
	"math"

	"StageScreener/internal/model"
)

// Signals defines the final-score to signal mapping, highest first.
var Signals = []struct {
	MinScore int
	Signal   model.FinalSignal
}{
	{80, model.SignalStrongBuy},
	{60, model.SignalBuy},
	{40, model.SignalHold},
	{20, model.SignalWeakSell},
}

// DefaultSignal is the signal for scores below every threshold.
var DefaultSignal = model.SignalStrongSell

// MapSignal maps a final score to a FinalSignal.
func MapSignal(score int) model.FinalSignal {
	for _, s := range Signals {
		if score >= s.MinScore {
			return s.Signal
		}
	}
	return DefaultSignal
}

// Weights is each stage's share of the final score.
type Weights map[model.StageName]float64

// DefaultWeights favours trend and momentum over pattern confirmation.
var DefaultWeights = Weights{
	model.StageRelativeStrength: 0.18,
	model.StageVolatility:       0.18,
	model.StageMomentum:         0.22,
	model.StagePattern:          0.05,
	model.StageTrend:            0.27,
	model.StageStructure:        0.10,
}

// Validate checks that every scored stage has a non-negative weight and that
// the weights sum to 1.
func (w Weights) Validate() error {
	sum := 0.0
	for _, src := range factorSources {
		v, ok := w[src.stage]
		if !ok {
			return fmt.Errorf("weight for %s is missing", src.stage)
		}
		if v < 0 {
			return fmt.Errorf("weight for %s must not be negative", src.stage)
		}
		sum += v
	}
	if len(w) != len(factorSources) {
		return fmt.Errorf("expected %d weights, got %d", len(factorSources), len(w))
	}
	if math.Abs(sum-1) > 0.001 {
		return fmt.Errorf("weights sum to %.4f, want 1", sum)
	}
	return nil
}

// Evaluate computes the factors, final score and signal of a joined composite.
// Stages without a result contribute their documented default.
func Evaluate(c *model.CompositeResult, w Weights) {
	factors := make([]model.FactorScore, 0, len(factorSources))
	total := 0.0
	for _, src := range factorSources {
		raw, ok := src.score(c)
		if !ok {
			raw = MissingDefaults[src.stage]
		}
		weight := w[src.stage]
		f := model.FactorScore{
			Stage:    src.stage,
			RawScore: raw,
			Weight:   weight,
			Weighted: raw * weight,
			Missing:  !ok,
		}
		factors = append(factors, f)
		total += f.Weighted
	}

	c.Factors = factors
	c.FinalScore = min(max(int(math.Round(total)), 0), 100)
	c.FinalSignal = MapSignal(c.FinalScore)
}

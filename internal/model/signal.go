package model

// TriggerType indicates what started a pipeline run.
type TriggerType string

const (
	TriggerScheduled TriggerType = "SCHEDULED"
	TriggerManual    TriggerType = "MANUAL"
	TriggerCommand   TriggerType = "COMMAND"
)

// FinalSignal is the categorical outcome of the composite score.
type FinalSignal string

const (
	SignalStrongBuy  FinalSignal = "Strong Buy"
	SignalBuy        FinalSignal = "Buy"
	SignalHold       FinalSignal = "Hold"
	SignalWeakSell   FinalSignal = "Weak Sell"
	SignalStrongSell FinalSignal = "Strong Sell"
)

// FactorScore represents a single stage's contribution to the final score.
type FactorScore struct {
	Stage    StageName `json:"stage"`
	RawScore float64   `json:"rawScore"`
	Weight   float64   `json:"weight"`
	Weighted float64   `json:"weighted"`
	Missing  bool      `json:"missing,omitempty"`
}

// CompositeResult aggregates one result per stage for a symbol.
type CompositeResult struct {
	StageBase
	RunID            string                  `json:"runId"`
	RelativeStrength *RelativeStrengthResult `json:"relativeStrength,omitempty"`
	Volatility       *VolatilityResult       `json:"volatility,omitempty"`
	Momentum         *MomentumResult         `json:"momentum,omitempty"`
	Trend            *TrendResult            `json:"trend,omitempty"`
	Pattern          *PatternResult          `json:"pattern,omitempty"`
	Structure        *StructureResult        `json:"structure,omitempty"`
	Factors          []FactorScore           `json:"factors"`
	FinalScore       int                     `json:"finalScore"`
	FinalSignal      FinalSignal             `json:"finalSignal"`
	Lookahead        []OHLCV                 `json:"lookahead,omitempty"`
	ForwardReturn    *float64                `json:"forwardReturn,omitempty"`
}

// Factor returns the factor for stage, if present.
func (c CompositeResult) Factor(stage StageName) (FactorScore, bool) {
	for _, f := range c.Factors {
		if f.Stage == stage {
			return f, true
		}
	}
	return FactorScore{}, false
}

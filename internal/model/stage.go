package model

// StageName identifies a pipeline stage; it is also the persistence step key.
type StageName string

const (
	StageRelativeStrength StageName = "relative_strength"
	StageVolatility       StageName = "volatility"
	StageMomentum         StageName = "momentum"
	StageTrend            StageName = "trend"
	StagePattern          StageName = "pattern"
	StageStructure        StageName = "structure"
	StageComposite        StageName = "composite"
)

// StageBase carries the identifying fields shared by every stage result.
type StageBase struct {
	Symbol          string  `json:"symbol"`
	Name            string  `json:"name"`
	CurrentPrice    float64 `json:"currentPrice"`
	AnalysisDate    string  `json:"analysisDate"`
	CalculationDate string  `json:"calculationDate"`
}

// Key returns the symbol used for symbol-keyed joins.
func (b StageBase) Key() string { return b.Symbol }

// Identity returns the base fields, used to seed the next stage.
func (b StageBase) Identity() StageBase { return b }

// RelativeStrengthResult is the output of the relative strength stage.
type RelativeStrengthResult struct {
	StageBase
	PreviousClose       float64 `json:"previousClose"`
	StockReturn         float64 `json:"stockReturn"`
	BenchmarkReturn     float64 `json:"benchmarkReturn"`
	RelativePerformance float64 `json:"relativePerformance"`
	RelativeStrength    float64 `json:"relativeStrength"`
	LongScore           int     `json:"longScore"`
	ShortScore          int     `json:"shortScore"`
}

// VolatilityResult is the output of the volatility stage.
type VolatilityResult struct {
	StageBase
	ATR        float64 `json:"atr"`
	ATRRatio   float64 `json:"atrRatio"`
	BBUpper    float64 `json:"bbUpper"`
	BBMiddle   float64 `json:"bbMiddle"`
	BBLower    float64 `json:"bbLower"`
	BBWidth    float64 `json:"bbWidth"`
	BBPosition float64 `json:"bbPosition"`
	Score      int     `json:"score"`
	Fallback   bool    `json:"fallback,omitempty"`
}

// CrossoverType classifies the fast/slow moving average relationship.
type CrossoverType string

const (
	CrossoverBullish CrossoverType = "Bullish"
	CrossoverBearish CrossoverType = "Bearish"
	CrossoverNeutral CrossoverType = "Neutral"
)

// MomentumResult is the output of the momentum stage.
type MomentumResult struct {
	StageBase
	SMA3          float64       `json:"sma3"`
	SMA12         float64       `json:"sma12"`
	SMARatio      float64       `json:"smaRatio"`
	MACD          float64       `json:"macd"`
	MACDSignal    float64       `json:"macdSignal"`
	MACDHistogram float64       `json:"macdHistogram"`
	RSI           float64       `json:"rsi"`
	CrossoverType CrossoverType `json:"crossoverType"`
	Score         int           `json:"score"`
	Fallback      bool          `json:"fallback,omitempty"`
}

// TrendStrength is the ADX-derived trend label.
type TrendStrength string

const (
	TrendNone       TrendStrength = "No Trend"
	TrendStrong     TrendStrength = "Strong"
	TrendVeryStrong TrendStrength = "Very Strong"
	TrendExtreme    TrendStrength = "Extreme"
)

// TrendResult is the output of the trend stage.
type TrendResult struct {
	StageBase
	ADX       float64       `json:"adx"`
	PlusDI    float64       `json:"plusDI"`
	MinusDI   float64       `json:"minusDI"`
	Direction string        `json:"direction"`
	Trend     TrendStrength `json:"trend"`
	Score     int           `json:"score"`
	Fallback  bool          `json:"fallback,omitempty"`
}

// PatternName names a recognised candlestick pattern.
type PatternName string

const (
	PatternHammer             PatternName = "Hammer"
	PatternInvertedHammer     PatternName = "Inverted Hammer"
	PatternBullishEngulfing   PatternName = "Bullish Engulfing"
	PatternPiercingLine       PatternName = "Piercing Line"
	PatternMorningStar        PatternName = "Morning Star"
	PatternThreeWhiteSoldiers PatternName = "Three White Soldiers"
)

// PatternResult is the output of the pattern stage.
type PatternResult struct {
	StageBase
	Detected      []PatternName `json:"detected"`
	Counted       []PatternName `json:"counted"`
	CrossoverType CrossoverType `json:"crossoverType"`
	MomentumScore int           `json:"momentumScore"`
	Score         int           `json:"score"`
	Fallback      bool          `json:"fallback,omitempty"`
}

// LevelType is the origin of a support or resistance level.
type LevelType string

const (
	LevelSwingHigh     LevelType = "SwingHigh"
	LevelSwingLow      LevelType = "SwingLow"
	LevelMovingAverage LevelType = "MovingAverage"
	LevelVolume        LevelType = "Volume"
	LevelPivot         LevelType = "Pivot"
	LevelRoundNumber   LevelType = "RoundNumber"
)

// SupportResistanceLevel is a derived price level; it exists only inside a StructureResult.
type SupportResistanceLevel struct {
	Price         float64   `json:"price"`
	Strength      int       `json:"strength"`
	Type          LevelType `json:"type"`
	Confidence    float64   `json:"confidence"`
	Touches       int       `json:"touches"`
	LastTouchDate string    `json:"lastTouchDate,omitempty"`
	Synthetic     bool      `json:"synthetic,omitempty"`
}

// StructureTrend summarises the moving average alignment.
type StructureTrend string

const (
	StructureBullish  StructureTrend = "Bullish"
	StructureBearish  StructureTrend = "Bearish"
	StructureSideways StructureTrend = "Sideways"
	StructureUnknown  StructureTrend = "Unknown"
)

// StructureResult is the output of the structure stage.
type StructureResult struct {
	StageBase
	PrimarySupport      SupportResistanceLevel `json:"primarySupport"`
	SecondarySupport    SupportResistanceLevel `json:"secondarySupport"`
	TertiarySupport     SupportResistanceLevel `json:"tertiarySupport"`
	PrimaryResistance   SupportResistanceLevel `json:"primaryResistance"`
	SecondaryResistance SupportResistanceLevel `json:"secondaryResistance"`
	TertiaryResistance  SupportResistanceLevel `json:"tertiaryResistance"`
	SMA20               float64                `json:"sma20"`
	SMA50               float64                `json:"sma50"`
	SMA200              float64                `json:"sma200"`
	Trend               StructureTrend         `json:"trend"`
	Strength            float64                `json:"strength"`
	Confidence          float64                `json:"confidence"`
	RangePosition       float64                `json:"rangePosition"`
	LevelCount          int                    `json:"levelCount"`
	Score               int                    `json:"score"`
	Fallback            bool                   `json:"fallback,omitempty"`
}

// Supports returns the three support slots, nearest first.
func (r StructureResult) Supports() []SupportResistanceLevel {
	return []SupportResistanceLevel{r.PrimarySupport, r.SecondarySupport, r.TertiarySupport}
}

// Resistances returns the three resistance slots, nearest first.
func (r StructureResult) Resistances() []SupportResistanceLevel {
	return []SupportResistanceLevel{r.PrimaryResistance, r.SecondaryResistance, r.TertiaryResistance}
}

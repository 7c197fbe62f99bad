package stage

import (
	"fmt"

	"StageScreener/internal/model"
)

const (
	patternWindow  = 10
	patternMinBars = 3
	maxPatternSum  = 100
)

// PatternWeights are the points each counted pattern contributes.
var PatternWeights = map[model.PatternName]int{
	model.PatternHammer:             25,
	model.PatternInvertedHammer:     25,
	model.PatternBullishEngulfing:   20,
	model.PatternPiercingLine:       15,
	model.PatternMorningStar:        10,
	model.PatternThreeWhiteSoldiers: 5,
}

// detection order; also the order patterns are reported in
var patternOrder = []model.PatternName{
	model.PatternHammer,
	model.PatternInvertedHammer,
	model.PatternBullishEngulfing,
	model.PatternPiercingLine,
	model.PatternMorningStar,
	model.PatternThreeWhiteSoldiers,
}

// Pattern scores candlestick patterns on the latest candles, gated by momentum.
type Pattern struct {
	Window int
}

func NewPattern() *Pattern { return &Pattern{Window: patternWindow} }

func (s *Pattern) Name() model.StageName { return model.StagePattern }
func (s *Pattern) Policy() Policy        { return DefaultNeutral }

func (s *Pattern) Evaluate(env Env, in model.MomentumResult) (model.PatternResult, error) {
	bars := env.Window(in.Symbol, max(s.Window, patternMinBars))
	if len(bars) < patternMinBars {
		return model.PatternResult{}, fmt.Errorf("%w: %d bars", ErrInsufficientData, len(bars))
	}

	detected := DetectPatterns(bars)
	counted := make([]model.PatternName, 0, len(detected))
	total := 0
	for _, p := range detected {
		if !PatternCompatible(p, in.CrossoverType, in.Score) {
			continue
		}
		counted = append(counted, p)
		total += PatternWeights[p]
	}

	return model.PatternResult{
		StageBase:     env.base(in.StageBase, bars),
		Detected:      detected,
		Counted:       counted,
		CrossoverType: in.CrossoverType,
		MomentumScore: in.Score,
		Score:         clampInt(total, 0, maxPatternSum),
	}, nil
}

func (s *Pattern) Fallback(env Env, in model.MomentumResult) model.PatternResult {
	return model.PatternResult{
		StageBase:     env.base(in.StageBase, nil),
		Detected:      []model.PatternName{},
		Counted:       []model.PatternName{},
		CrossoverType: in.CrossoverType,
		MomentumScore: in.Score,
		Fallback:      true,
	}
}

// PatternCompatible reports whether a pattern counts under the current momentum.
// Reversal patterns need bearish or weak momentum; continuation patterns need
// bullish or strong momentum.
func PatternCompatible(p model.PatternName, cross model.CrossoverType, momentumScore int) bool {
	switch p {
	case model.PatternHammer, model.PatternInvertedHammer, model.PatternPiercingLine, model.PatternMorningStar:
		return cross == model.CrossoverBearish || momentumScore < 50
	case model.PatternBullishEngulfing, model.PatternThreeWhiteSoldiers:
		return cross == model.CrossoverBullish || momentumScore > 50
	default:
		return false
	}
}

// DetectPatterns returns every pattern present on the last one to three bars.
func DetectPatterns(bars []model.OHLCV) []model.PatternName {
	found := make([]model.PatternName, 0, 2)
	for _, p := range patternOrder {
		if detectors[p](bars) {
			found = append(found, p)
		}
	}
	return found
}

var detectors = map[model.PatternName]func([]model.OHLCV) bool{
	model.PatternHammer:           func(b []model.OHLCV) bool { return len(b) >= 1 && IsHammer(b[len(b)-1]) },
	model.PatternInvertedHammer:   func(b []model.OHLCV) bool { return len(b) >= 1 && IsInvertedHammer(b[len(b)-1]) },
	model.PatternBullishEngulfing: func(b []model.OHLCV) bool { return len(b) >= 2 && IsBullishEngulfing(b[len(b)-2], b[len(b)-1]) },
	model.PatternPiercingLine:     func(b []model.OHLCV) bool { return len(b) >= 2 && IsPiercingLine(b[len(b)-2], b[len(b)-1]) },
	model.PatternMorningStar:      func(b []model.OHLCV) bool { return len(b) >= 3 && IsMorningStar(b[len(b)-3], b[len(b)-2], b[len(b)-1]) },
	model.PatternThreeWhiteSoldiers: func(b []model.OHLCV) bool {
		return len(b) >= 3 && IsThreeWhiteSoldiers(b[len(b)-3], b[len(b)-2], b[len(b)-1])
	},
}

// IsHammer: small body near the high, lower shadow at least twice the body and
// most of the range, almost no upper shadow.
func IsHammer(c model.OHLCV) bool {
	r := c.Range()
	if r <= 0 {
		return false
	}
	body, lower, upper := c.Body(), c.LowerShadow(), c.UpperShadow()
	return body/r <= 0.3 &&
		lower >= 2*body &&
		lower >= 0.6*r &&
		upper <= 0.15*r
}

// IsInvertedHammer mirrors IsHammer: the long shadow is above the body.
func IsInvertedHammer(c model.OHLCV) bool {
	r := c.Range()
	if r <= 0 {
		return false
	}
	body, lower, upper := c.Body(), c.LowerShadow(), c.UpperShadow()
	return body/r <= 0.3 &&
		upper >= 2*body &&
		upper >= 0.6*r &&
		lower <= 0.15*r
}

// IsBullishEngulfing: a green body that fully contains the previous red body.
func IsBullishEngulfing(prev, cur model.OHLCV) bool {
	return prev.Bearish() && cur.Bullish() &&
		cur.Open <= prev.Close &&
		cur.Close >= prev.Open &&
		cur.Body() > prev.Body()
}

// IsPiercingLine: after a red candle, a green candle opens below the prior
// close and closes above the prior body's midpoint without engulfing it.
func IsPiercingLine(prev, cur model.OHLCV) bool {
	if !prev.Bearish() || !cur.Bullish() {
		return false
	}
	mid := (prev.Open + prev.Close) / 2
	return cur.Open < prev.Close &&
		cur.Close > mid &&
		cur.Close < prev.Open
}

// IsMorningStar: long red, small indecisive body, long green closing above the
// first candle's midpoint.
func IsMorningStar(first, star, last model.OHLCV) bool {
	if first.Range() <= 0 || star.Range() <= 0 || last.Range() <= 0 {
		return false
	}
	longRed := first.Bearish() && first.Body()/first.Range() >= 0.5
	small := star.Body()/star.Range() <= 0.3 && star.Body() <= 0.5*first.Body()
	longGreen := last.Bullish() && last.Body()/last.Range() >= 0.5
	return longRed && small && longGreen &&
		last.Close > (first.Open+first.Close)/2
}

// IsThreeWhiteSoldiers: three rising green candles with growing bodies, each
// opening inside the previous body.
func IsThreeWhiteSoldiers(a, b, c model.OHLCV) bool {
	if !a.Bullish() || !b.Bullish() || !c.Bullish() {
		return false
	}
	return b.Close > a.Close && c.Close > b.Close &&
		b.Body() > a.Body() && c.Body() > b.Body() &&
		b.Open > a.Open && b.Open <= a.Close &&
		c.Open > b.Open && c.Open <= b.Close
}

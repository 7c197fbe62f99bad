package stage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StageScreener/internal/model"
)

func candle(o, h, l, c float64) model.OHLCV {
	return model.OHLCV{Open: o, High: h, Low: l, Close: c, Volume: 1000}
}

// candles dates the given candles as consecutive trading days ending at testEnd.
func candles(symbol string, cs ...model.OHLCV) []model.OHLCV {
	days := tradingDays(testEnd, len(cs))
	out := make([]model.OHLCV, len(cs))
	for i, c := range cs {
		c.Symbol = symbol
		c.Date = days[i]
		out[i] = c
	}
	return out
}

func TestIsHammer(t *testing.T) {
	hammer := candle(10.00, 10.05, 9.50, 9.98)
	assert.True(t, IsHammer(hammer))
	assert.False(t, IsInvertedHammer(hammer))

	assert.False(t, IsHammer(candle(10, 10.5, 9.98, 10.02)), "long upper shadow")
	assert.False(t, IsHammer(candle(10, 10.4, 9.0, 10.1)), "upper shadow too long relative to range")
	assert.False(t, IsHammer(candle(10, 10, 10, 10)), "zero range")
}

func TestIsInvertedHammer(t *testing.T) {
	assert.True(t, IsInvertedHammer(candle(10, 10.5, 9.98, 10.02)))
	assert.False(t, IsInvertedHammer(candle(10, 11, 9, 10.8)))
}

func TestTwoAndThreeCandlePatterns(t *testing.T) {
	red := candle(10, 10.1, 8.9, 9)

	assert.True(t, IsBullishEngulfing(red, candle(8.9, 10.3, 8.8, 10.2)))
	assert.False(t, IsBullishEngulfing(red, candle(9.2, 9.9, 9.1, 9.8)), "does not engulf")

	piercing := candle(8.8, 9.75, 8.7, 9.7)
	assert.True(t, IsPiercingLine(red, piercing))
	assert.False(t, IsBullishEngulfing(red, piercing))
	assert.False(t, IsPiercingLine(red, candle(9.1, 9.8, 9.0, 9.7)), "no gap below prior close")

	star := candle(8.8, 8.95, 8.7, 8.85)
	assert.True(t, IsMorningStar(red, star, candle(8.9, 9.85, 8.85, 9.8)))
	assert.False(t, IsMorningStar(red, star, candle(8.9, 9.3, 8.85, 9.2)), "closes below first midpoint")

	a := candle(10, 10.55, 9.95, 10.5)
	b := candle(10.3, 11.05, 10.25, 11.0)
	c := candle(10.8, 11.75, 10.75, 11.7)
	assert.True(t, IsThreeWhiteSoldiers(a, b, c))
	assert.False(t, IsThreeWhiteSoldiers(a, c, b))
}

func TestPatternCompatible(t *testing.T) {
	tests := []struct {
		pattern model.PatternName
		cross   model.CrossoverType
		score   int
		want    bool
	}{
		{model.PatternHammer, model.CrossoverBearish, 70, true},
		{model.PatternHammer, model.CrossoverNeutral, 40, true},
		{model.PatternHammer, model.CrossoverBullish, 80, false},
		{model.PatternMorningStar, model.CrossoverNeutral, 50, false},
		{model.PatternBullishEngulfing, model.CrossoverBullish, 30, true},
		{model.PatternBullishEngulfing, model.CrossoverNeutral, 60, true},
		{model.PatternThreeWhiteSoldiers, model.CrossoverBearish, 40, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PatternCompatible(tt.pattern, tt.cross, tt.score), "%s/%s/%d", tt.pattern, tt.cross, tt.score)
	}
}

func hammerSeries() []model.OHLCV {
	return candles("HAM",
		candle(10.5, 10.6, 10.1, 10.2),
		candle(10.5, 10.6, 10.1, 10.2),
		candle(10.00, 10.05, 9.50, 9.98),
	)
}

func TestPattern_GatedByMomentum(t *testing.T) {
	env := envOf(hammerSeries())

	bearish, err := NewPattern().Evaluate(env, momInput("HAM", model.CrossoverBearish, 20))
	require.NoError(t, err)
	assert.Equal(t, []model.PatternName{model.PatternHammer}, bearish.Detected)
	assert.Equal(t, []model.PatternName{model.PatternHammer}, bearish.Counted)
	assert.Equal(t, 25, bearish.Score)
	assert.Equal(t, 20, bearish.MomentumScore)

	bullish, err := NewPattern().Evaluate(env, momInput("HAM", model.CrossoverBullish, 80))
	require.NoError(t, err)
	assert.Equal(t, []model.PatternName{model.PatternHammer}, bullish.Detected)
	assert.Empty(t, bullish.Counted)
	assert.Equal(t, 0, bullish.Score)
}

func TestPattern_ShortHistoryDefaults(t *testing.T) {
	env := envOf(candles("NEW", candle(10, 10.2, 9.9, 10.1), candle(10.1, 10.3, 10, 10.2)))
	out, err := Run(context.Background(), Runner{}, NewPattern(), env,
		[]model.MomentumResult{momInput("NEW", model.CrossoverBearish, 20)})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].Fallback)
	assert.Equal(t, 0, out[0].Score)
}

func TestPatternWeightsSumToCap(t *testing.T) {
	total := 0
	for _, w := range PatternWeights {
		total += w
	}
	assert.Equal(t, maxPatternSum, total)
	assert.Len(t, PatternWeights, len(patternOrder))
}

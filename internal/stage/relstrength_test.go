package stage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StageScreener/internal/model"
)

func TestRelativeStrength_OutperformsBenchmark(t *testing.T) {
	stock := barsFor("AAA", []float64{100, 105})
	bench := barsFor("SPY", []float64{200, 202})
	env := envOf(stock, bench)

	benchReturn, err := BenchmarkReturn(env.Index, "SPY", env.Date)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, benchReturn, 1e-9)

	res, err := NewRelativeStrength(benchReturn).Evaluate(env, model.Security{Symbol: "AAA", Name: "Triple A"})
	require.NoError(t, err)

	assert.InDelta(t, 5.0, res.StockReturn, 1e-9)
	assert.InDelta(t, 4.0, res.RelativePerformance, 1e-9)
	assert.Equal(t, 58, res.LongScore)
	assert.Equal(t, 42, res.ShortScore)
	assert.InDelta(t, 1.05/1.01, res.RelativeStrength, 1e-9)
	assert.Equal(t, 100.0, res.PreviousClose)
	assert.Equal(t, 105.0, res.CurrentPrice)
	assert.Equal(t, "Triple A", res.Name)
	assert.Equal(t, "2024-03-15", res.CalculationDate)
}

func TestRelativeStrength_SkipsMissingPreviousClose(t *testing.T) {
	full := barsFor("AAA", []float64{100, 101})
	lonely := barsFor("BBB", []float64{50})
	env := envOf(full, lonely)

	_, err := NewRelativeStrength(0).Evaluate(env, model.Security{Symbol: "BBB"})
	assert.ErrorIs(t, err, ErrInsufficientData)

	out, err := Run(context.Background(), Runner{Workers: 2}, NewRelativeStrength(0), env,
		[]model.Security{{Symbol: "AAA"}, {Symbol: "BBB"}, {Symbol: "CCC"}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "AAA", out[0].Symbol)
}

func TestRelativeStrength_Deterministic(t *testing.T) {
	env := envOf(barsFor("AAA", []float64{80, 78.4}))
	s := NewRelativeStrength(-0.5)
	a, err := s.Evaluate(env, model.Security{Symbol: "AAA"})
	require.NoError(t, err)
	b, err := s.Evaluate(env, model.Security{Symbol: "AAA"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.InDelta(t, -2.0, a.StockReturn, 1e-9)
}

func TestRelativeStrengthRatio(t *testing.T) {
	tests := []struct {
		name         string
		stock, bench float64
		want         float64
	}{
		{"flat bench, stock up", 1.5, 0, 2},
		{"flat bench, stock down", -1.5, 0.0005, 0.5},
		{"flat bench, stock flat", 0, -0.0009, 1},
		{"normal", 5, 1, 1.05 / 1.01},
		{"both down", -2, -1, 0.98 / 0.99},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, RelativeStrengthRatio(tt.stock, tt.bench), 1e-12)
		})
	}
}

func TestRelativeScores_Clamped(t *testing.T) {
	long, short := RelativeScores(40, 0)
	assert.Equal(t, 100, long)
	assert.Equal(t, 0, short)

	long, short = RelativeScores(-30, 0)
	assert.Equal(t, 0, long)
	assert.Equal(t, 100, short)
}

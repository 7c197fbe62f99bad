package stage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StageScreener/internal/model"
)

func volInput(symbol string) model.VolatilityResult {
	return model.VolatilityResult{StageBase: baseOf(symbol), Score: 50}
}

func TestCrossover(t *testing.T) {
	tests := []struct {
		name                         string
		prevFast, prevSlow, fast, sl float64
		want                         model.CrossoverType
	}{
		{"crosses above", 1, 2, 3, 2, model.CrossoverBullish},
		{"from equal to above", 2, 2, 3, 2, model.CrossoverBullish},
		{"crosses below", 3, 2, 1, 2, model.CrossoverBearish},
		{"stays above", 3, 2, 4, 2, model.CrossoverNeutral},
		{"stays below", 1, 2, 1.5, 2, model.CrossoverNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Crossover(tt.prevFast, tt.prevSlow, tt.fast, tt.sl))
		})
	}
}

func TestMomentumScore(t *testing.T) {
	tests := []struct {
		name    string
		cross   model.CrossoverType
		ratio   float64
		histPct float64
		want    int
	}{
		{"everything bullish clamps", model.CrossoverBullish, 1.06, 0.6, 100},
		{"everything bearish clamps", model.CrossoverBearish, 0.9, -1, 0},
		{"neutral", model.CrossoverNeutral, 1.0, 0, 50},
		{"mild up", model.CrossoverNeutral, 1.03, 0.2, 70},
		{"mild down", model.CrossoverBearish, 0.97, -0.1, 0},
		{"bullish cross, weak ratio", model.CrossoverBullish, 0.97, -0.1, 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MomentumScore(tt.cross, tt.ratio, tt.histPct)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMomentum_RisingSeries(t *testing.T) {
	env := envOf(barsFor("UP", linear(60, 100, 1)))
	res, err := NewMomentum().Evaluate(env, volInput("UP"))
	require.NoError(t, err)

	assert.Equal(t, model.CrossoverNeutral, res.CrossoverType)
	assert.Greater(t, res.SMA3, res.SMA12)
	assert.Greater(t, res.MACD, 0.0)
	assert.Equal(t, 100.0, res.RSI)
	assert.Greater(t, res.Score, 50)
	assert.LessOrEqual(t, res.Score, 100)
}

func TestMomentum_BullishCrossover(t *testing.T) {
	closes := linear(39, 100, -0.5)
	closes = append(closes, closes[len(closes)-1]+10)
	env := envOf(barsFor("JUMP", closes))

	res, err := NewMomentum().Evaluate(env, volInput("JUMP"))
	require.NoError(t, err)
	assert.Equal(t, model.CrossoverBullish, res.CrossoverType)
	assert.GreaterOrEqual(t, res.Score, 65)
}

func TestMomentum_ShortHistoryDefaults(t *testing.T) {
	env := envOf(barsFor("NEW", linear(20, 10, 0.1)))
	out, err := Run(context.Background(), Runner{}, NewMomentum(), env, []model.VolatilityResult{volInput("NEW")})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].Fallback)
	assert.Equal(t, 50, out[0].Score)
	assert.Equal(t, model.CrossoverNeutral, out[0].CrossoverType)
}

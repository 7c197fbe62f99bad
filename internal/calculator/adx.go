package calculator

import (
	"errors"
	"math"

	"StageScreener/internal/model"
)

// DirectionalIndex is the result of a Wilder ADX computation.
type DirectionalIndex struct {
	ADX     float64
	PlusDI  float64
	MinusDI float64
	// Series holds ADX from the first smoothed value to the last bar.
	Series []float64
}

// CalculateADX computes Wilder's Average Directional Index.
//
// True range, +DM and -DM are computed for every bar after the first and
// smoothed with WilderSum. DX is zero until the first smoothed value exists and
// is then smoothed the same way, so ADX = smoothed DX / period warms up from
// zero across the window. The bar count therefore caps ADX: with period 14 a
// perfectly one-directional 30-bar window peaks near 69.5, 35 bars pass 75.
func CalculateADX(bars []model.OHLCV, period int) (DirectionalIndex, error) {
	if period <= 1 {
		return DirectionalIndex{}, errors.New("period must be greater than one")
	}
	m := len(bars) - 1
	if m < period {
		return DirectionalIndex{}, ErrInsufficientData
	}

	tr := make([]float64, m)
	plusDM := make([]float64, m)
	minusDM := make([]float64, m)
	for i := 1; i <= m; i++ {
		cur, prev := bars[i], bars[i-1]
		tr[i-1] = trueRange(cur, prev.Close)

		up := cur.High - prev.High
		down := prev.Low - cur.Low
		if up > down && up > 0 {
			plusDM[i-1] = up
		}
		if down > up && down > 0 {
			minusDM[i-1] = down
		}
	}

	sTR := WilderSum(tr, period)
	sPlus := WilderSum(plusDM, period)
	sMinus := WilderSum(minusDM, period)

	dx := make([]float64, m)
	plusDI := make([]float64, m)
	minusDI := make([]float64, m)
	for i := period - 1; i < m; i++ {
		if sTR[i] <= 0 {
			continue
		}
		plusDI[i] = sPlus[i] / sTR[i] * 100
		minusDI[i] = sMinus[i] / sTR[i] * 100
		if sum := plusDI[i] + minusDI[i]; sum > 0 {
			dx[i] = math.Abs(plusDI[i]-minusDI[i]) / sum * 100
		}
	}

	sDX := WilderSum(dx, period)
	series := make([]float64, 0, m-period+1)
	for i := period - 1; i < m; i++ {
		series = append(series, sDX[i]/float64(period))
	}

	return DirectionalIndex{
		ADX:     series[len(series)-1],
		PlusDI:  plusDI[m-1],
		MinusDI: minusDI[m-1],
		Series:  series,
	}, nil
}

// WilderSum applies Wilder's running-sum smoothing: the value at period-1 is the
// simple sum of the first period inputs, each later value is prev - prev/period + v.
// Entries before period-1 are zero.
func WilderSum(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) < period {
		return out
	}
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	out[period-1] = sum
	for i := period; i < len(values); i++ {
		out[i] = out[i-1] - out[i-1]/float64(period) + values[i]
	}
	return out
}

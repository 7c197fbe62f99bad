package calculator

import (
	"errors"
	"math"

	"StageScreener/internal/model"
)

// TrueRanges returns the true range of every bar after the first:
// max(high-low, |high-prevClose|, |low-prevClose|).
func TrueRanges(bars []model.OHLCV) []float64 {
	if len(bars) < 2 {
		return nil
	}
	out := make([]float64, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		out[i-1] = trueRange(bars[i], bars[i-1].Close)
	}
	return out
}

func trueRange(bar model.OHLCV, prevClose float64) float64 {
	return math.Max(bar.High-bar.Low, math.Max(math.Abs(bar.High-prevClose), math.Abs(bar.Low-prevClose)))
}

// CalculateATR is the simple mean of the most recent period true ranges.
func CalculateATR(bars []model.OHLCV, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	trs := TrueRanges(bars)
	if len(trs) < period {
		return 0, ErrInsufficientData
	}
	sum := 0.0
	for _, tr := range trs[len(trs)-period:] {
		sum += tr
	}
	return sum / float64(period), nil
}

// Bands holds Bollinger Band values for the latest close.
type Bands struct {
	Upper    float64
	Middle   float64
	Lower    float64
	StdDev   float64
	Width    float64 // (upper-lower)/middle*100
	Position float64 // (close-lower)/(upper-lower)*100, 50 when the bands collapse
}

// CalculateBollinger computes SMA ± k·σ over the last period closes using the
// population standard deviation.
func CalculateBollinger(closes []float64, period int, k float64) (Bands, error) {
	mid, err := CalculateSMA(closes, period)
	if err != nil {
		return Bands{}, err
	}
	window := closes[len(closes)-period:]
	variance := 0.0
	for _, c := range window {
		d := c - mid
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(period))

	b := Bands{
		Upper:    mid + k*sd,
		Middle:   mid,
		Lower:    mid - k*sd,
		StdDev:   sd,
		Position: 50,
	}
	if mid != 0 {
		b.Width = (b.Upper - b.Lower) / mid * 100
	}
	if spread := b.Upper - b.Lower; spread > 0 {
		b.Position = (closes[len(closes)-1] - b.Lower) / spread * 100
	}
	return b, nil
}

package calculator

import (
	"errors"
)

// ErrInsufficientData is returned when a series is shorter than an indicator needs.
var ErrInsufficientData = errors.New("not enough data")

// CalculateSMA computes the simple moving average of the last period prices.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, ErrInsufficientData
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), nil
}

// SMASeries returns the rolling SMA aligned to prices; entries before period-1 are zero.
func SMASeries(prices []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.New("period must be positive")
	}
	if len(prices) < period {
		return nil, ErrInsufficientData
	}
	out := make([]float64, len(prices))
	sum := 0.0
	for i, p := range prices {
		sum += p
		if i >= period {
			sum -= prices[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out, nil
}

// CalculateEMA returns the EMA series of data seeded with the SMA of the first
// period values. The result starts at index period-1 of data.
func CalculateEMA(data []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.New("period must be positive")
	}
	if len(data) < period {
		return nil, ErrInsufficientData
	}
	k := 2.0 / (float64(period) + 1.0)

	out := make([]float64, 0, len(data)-period+1)
	seed := 0.0
	for i := 0; i < period; i++ {
		seed += data[i]
	}
	prev := seed / float64(period)
	out = append(out, prev)
	for i := period; i < len(data); i++ {
		prev = data[i]*k + prev*(1-k)
		out = append(out, prev)
	}
	return out, nil
}

// MACD is the latest MACD line, signal line and histogram.
type MACD struct {
	Line      float64
	Signal    float64
	Histogram float64
}

// CalculateMACD computes MACD(fast, slow, signal) from three EMA passes.
// When there are fewer MACD values than the signal period the signal equals
// the line and the histogram is zero.
func CalculateMACD(closes []float64, fast, slow, signal int) (MACD, error) {
	if fast >= slow {
		return MACD{}, errors.New("fast period must be shorter than slow period")
	}
	slowEMA, err := CalculateEMA(closes, slow)
	if err != nil {
		return MACD{}, err
	}
	fastEMA, err := CalculateEMA(closes, fast)
	if err != nil {
		return MACD{}, err
	}

	// align fast EMA to the slow EMA's first index
	offset := slow - fast
	line := make([]float64, len(slowEMA))
	for i := range slowEMA {
		line[i] = fastEMA[i+offset] - slowEMA[i]
	}

	last := line[len(line)-1]
	signalEMA, err := CalculateEMA(line, signal)
	if err != nil {
		return MACD{Line: last, Signal: last}, nil
	}
	sig := signalEMA[len(signalEMA)-1]
	return MACD{Line: last, Signal: sig, Histogram: last - sig}, nil
}

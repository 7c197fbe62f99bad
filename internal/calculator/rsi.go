package calculator

import "errors"

// CalculateRSI returns Wilder's relative strength index of the last close.
// The first average is a plain mean of period changes; later ones use
// Wilder's recurrence. Fewer than period+1 closes, or a flat series, yield 50.
func CalculateRSI(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(closes) <= period {
		return 50, nil
	}

	gains := make([]float64, len(closes)-1)
	losses := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		gains[i-1] = max(d, 0)
		losses[i-1] = max(-d, 0)
	}

	up, down := wilderAverage(gains, period), wilderAverage(losses, period)
	switch {
	case up == 0 && down == 0:
		return 50, nil
	case down == 0:
		return 100, nil
	}
	return 100 * up / (up + down), nil
}

// wilderAverage seeds with the mean of the first period values and then
// applies avg = (avg*(period-1) + v) / period to the rest.
func wilderAverage(values []float64, period int) float64 {
	n := float64(period)
	avg := 0.0
	for _, v := range values[:period] {
		avg += v
	}
	avg /= n
	for _, v := range values[period:] {
		avg = (avg*(n-1) + v) / n
	}
	return avg
}

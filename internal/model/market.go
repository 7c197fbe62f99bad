package model

import "time"

// DateLayout is the canonical analysis date format.
const DateLayout = "2006-01-02"

// OHLCV represents a single daily candlestick bar for one symbol.
type OHLCV struct {
	Date   time.Time `json:"date"`
	Symbol string    `json:"symbol"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// DateKey returns the bar's date formatted as YYYY-MM-DD.
func (b OHLCV) DateKey() string { return b.Date.Format(DateLayout) }

// Range is the full high-low span of the bar.
func (b OHLCV) Range() float64 { return b.High - b.Low }

// Body is the absolute open-close distance.
func (b OHLCV) Body() float64 {
	if b.Close > b.Open {
		return b.Close - b.Open
	}
	return b.Open - b.Close
}

// UpperShadow is the distance from the top of the body to the high.
func (b OHLCV) UpperShadow() float64 {
	top := b.Open
	if b.Close > top {
		top = b.Close
	}
	return b.High - top
}

// LowerShadow is the distance from the bottom of the body to the low.
func (b OHLCV) LowerShadow() float64 {
	bottom := b.Open
	if b.Close < bottom {
		bottom = b.Close
	}
	return bottom - b.Low
}

// Bullish reports a green candle.
func (b OHLCV) Bullish() bool { return b.Close > b.Open }

// Bearish reports a red candle.
func (b OHLCV) Bearish() bool { return b.Close < b.Open }

// Security is one entry of the screened universe.
type Security struct {
	Symbol string `yaml:"symbol" json:"symbol"`
	Name   string `yaml:"name" json:"name"`
}

// Key returns the symbol used for symbol-keyed joins.
func (s Security) Key() string { return s.Symbol }

// ParseDate parses a YYYY-MM-DD string into a UTC midnight time.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// Midnight truncates t to UTC midnight of its calendar date.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Closes extracts the close series from bars.
func Closes(bars []OHLCV) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

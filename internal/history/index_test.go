package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StageScreener/internal/model"
)

func day(s string) time.Time {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// weekdayBars returns n bars on consecutive weekdays ending at end.
func weekdayBars(symbol string, end time.Time, n int) []model.OHLCV {
	bars := make([]model.OHLCV, 0, n)
	d := end
	for len(bars) < n {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			p := 100 + float64(n-len(bars))
			bars = append(bars, model.OHLCV{Date: d, Symbol: symbol, Open: p, High: p + 1, Low: p - 1, Close: p, Volume: 1000})
		}
		d = d.AddDate(0, 0, -1)
	}
	return bars
}

func TestBuild_Lookup(t *testing.T) {
	idx := Build(weekdayBars("AAPL", day("2024-03-15"), 10))

	bar, ok := idx.Lookup("AAPL", day("2024-03-15"))
	require.True(t, ok)
	assert.Equal(t, "AAPL", bar.Symbol)
	assert.Equal(t, "2024-03-15", bar.DateKey())

	_, ok = idx.Lookup("AAPL", day("2024-03-16")) // Saturday
	assert.False(t, ok)

	_, ok = idx.Lookup("MSFT", day("2024-03-15"))
	assert.False(t, ok)

	assert.Equal(t, 1, idx.Symbols())
	assert.True(t, idx.Has("AAPL"))
	assert.False(t, idx.Has("MSFT"))
}

func TestBuild_NormalisesTimeOfDay(t *testing.T) {
	idx := Build([]model.OHLCV{{
		Date:   time.Date(2024, 3, 15, 21, 0, 0, 0, time.UTC),
		Symbol: "AAPL",
		Close:  10,
	}})
	bar, ok := idx.Lookup("AAPL", day("2024-03-15"))
	require.True(t, ok)
	assert.Equal(t, 10.0, bar.Close)
}

func TestWindow_OrderAndLength(t *testing.T) {
	idx := Build(weekdayBars("AAPL", day("2024-03-15"), 60))

	tests := []struct {
		name string
		days int
		want int
	}{
		{"exact", 20, 20},
		{"one", 1, 1},
		{"all", 60, 60},
		{"more_than_history", 100, 60},
		{"zero", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := idx.Window("AAPL", day("2024-03-15"), tt.days)
			assert.Len(t, w, tt.want)
			assert.LessOrEqual(t, len(w), tt.days)
			for i := 1; i < len(w); i++ {
				assert.True(t, w[i].Date.After(w[i-1].Date), "dates must strictly increase")
			}
			if len(w) > 0 {
				assert.Equal(t, "2024-03-15", w[len(w)-1].DateKey())
			}
		})
	}
}

func TestWindow_EndsOnNonTradingDay(t *testing.T) {
	idx := Build(weekdayBars("AAPL", day("2024-03-15"), 30))
	w := idx.Window("AAPL", day("2024-03-17"), 5) // Sunday
	require.Len(t, w, 5)
	assert.Equal(t, "2024-03-15", w[4].DateKey())
	assert.Equal(t, "2024-03-11", w[0].DateKey())
}

func TestWindow_UnknownSymbol(t *testing.T) {
	idx := Build(weekdayBars("AAPL", day("2024-03-15"), 5))
	assert.Empty(t, idx.Window("MSFT", day("2024-03-15"), 5))
}

func TestForward(t *testing.T) {
	idx := Build(weekdayBars("AAPL", day("2024-03-29"), 30))

	fwd := idx.Forward("AAPL", day("2024-03-22"), 5)
	require.Len(t, fwd, 5)
	assert.Equal(t, "2024-03-25", fwd[0].DateKey())
	assert.Equal(t, "2024-03-29", fwd[4].DateKey())

	assert.Empty(t, idx.Forward("AAPL", day("2024-03-29"), 5))
	assert.Len(t, idx.Forward("AAPL", day("2024-03-27"), 5), 2)
}

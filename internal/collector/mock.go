package collector

import (
	"context"
	"hash/fnv"
	"math"
	"time"

	"StageScreener/internal/history"
	"StageScreener/internal/model"
)

// MockFetcher returns deterministic synthetic bars for development and testing.
// Each symbol gets its own drift and cycle phase derived from its name.
type MockFetcher struct {
	Price float64
	End   time.Time // last session; zero means the latest trading day

	// Bars, when set for a symbol, is returned instead of generated data.
	Bars map[string][]model.OHLCV
	// Fail lists symbols that return an error.
	Fail map[string]error
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchDailyBars(ctx context.Context, symbol string, days int) ([]model.OHLCV, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := m.Fail[symbol]; ok {
		return nil, err
	}
	if bars, ok := m.Bars[symbol]; ok {
		if len(bars) > days {
			bars = bars[len(bars)-days:]
		}
		return bars, nil
	}

	end := m.End
	if end.IsZero() {
		end = time.Now()
	}
	price := m.Price
	if price <= 0 {
		price = 100
	}
	return generateMockBars(symbol, price, history.LatestTradingDay(end), days), nil
}

func generateMockBars(symbol string, basePrice float64, end time.Time, count int) []model.OHLCV {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	seed := h.Sum32()
	drift := (float64(seed%21) - 10) / 10000
	phase := float64(seed%628) / 100

	dates := make([]time.Time, count)
	d := end
	for i := count - 1; i >= 0; i-- {
		dates[i] = d
		d = history.PreviousTradingDay(d)
	}

	bars := make([]model.OHLCV, count)
	prev := basePrice
	for i := 0; i < count; i++ {
		p := basePrice * (1 + drift*float64(i)) * (1 + 0.03*math.Sin(float64(i)/7+phase))
		if p <= 0 {
			p = 0.01
		}
		bars[i] = model.OHLCV{
			Date:   dates[i],
			Symbol: symbol,
			Open:   prev,
			High:   math.Max(prev, p) * 1.005,
			Low:    math.Min(prev, p) * 0.995,
			Close:  p,
			Volume: 1_000_000 + float64((seed+uint32(i)*7919)%500_000),
		}
		prev = p
	}
	return bars
}

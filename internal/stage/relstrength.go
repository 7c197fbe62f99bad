package stage

import (
	"fmt"
	"math"
	"time"

	"StageScreener/internal/history"
	"StageScreener/internal/model"
)

// flatBenchmark is the benchmark return (in percent) below which the ratio is not meaningful.
const flatBenchmark = 0.001

// RelativeStrength compares each symbol's one-day return with the benchmark's.
type RelativeStrength struct {
	BenchmarkReturn float64
}

// NewRelativeStrength returns the stage for a benchmark return in percent.
func NewRelativeStrength(benchmarkReturn float64) *RelativeStrength {
	return &RelativeStrength{BenchmarkReturn: benchmarkReturn}
}

func (s *RelativeStrength) Name() model.StageName { return model.StageRelativeStrength }

// Policy is Skip: a symbol without both closes is left out of the run.
func (s *RelativeStrength) Policy() Policy { return Skip }

func (s *RelativeStrength) Evaluate(env Env, sec model.Security) (model.RelativeStrengthResult, error) {
	prev, cur, err := closePair(env.Index, sec.Symbol, env.Date)
	if err != nil {
		return model.RelativeStrengthResult{}, err
	}

	stockReturn := DailyReturn(prev.Close, cur.Close)
	if err := finite(stockReturn); err != nil {
		return model.RelativeStrengthResult{}, err
	}
	long, short := RelativeScores(stockReturn, s.BenchmarkReturn)

	return model.RelativeStrengthResult{
		StageBase:           env.base(model.StageBase{Symbol: sec.Symbol, Name: sec.Name}, []model.OHLCV{cur}),
		PreviousClose:       prev.Close,
		StockReturn:         stockReturn,
		BenchmarkReturn:     s.BenchmarkReturn,
		RelativePerformance: stockReturn - s.BenchmarkReturn,
		RelativeStrength:    RelativeStrengthRatio(stockReturn, s.BenchmarkReturn),
		LongScore:           long,
		ShortScore:          short,
	}, nil
}

// Fallback is never used under Skip; it returns the bare identity.
func (s *RelativeStrength) Fallback(env Env, sec model.Security) model.RelativeStrengthResult {
	return model.RelativeStrengthResult{
		StageBase: env.base(model.StageBase{Symbol: sec.Symbol, Name: sec.Name}, nil),
		LongScore: 50, ShortScore: 50,
	}
}

// BenchmarkReturn returns the one-day percent return of symbol on date.
// A missing close on either day yields ErrInsufficientData.
func BenchmarkReturn(idx *history.Index, symbol string, date time.Time) (float64, error) {
	prev, cur, err := closePair(idx, symbol, date)
	if err != nil {
		return 0, err
	}
	return DailyReturn(prev.Close, cur.Close), nil
}

func closePair(idx *history.Index, symbol string, date time.Time) (prev, cur model.OHLCV, err error) {
	cur, ok := idx.Lookup(symbol, date)
	if !ok {
		return prev, cur, fmt.Errorf("%w: no close for %s on %s", ErrInsufficientData, symbol, date.Format(model.DateLayout))
	}
	prevDate := history.PreviousTradingDay(date)
	prev, ok = idx.Lookup(symbol, prevDate)
	if !ok {
		return prev, cur, fmt.Errorf("%w: no close for %s on %s", ErrInsufficientData, symbol, prevDate.Format(model.DateLayout))
	}
	if prev.Close <= 0 {
		return prev, cur, fmt.Errorf("%w: non-positive previous close for %s", ErrComputation, symbol)
	}
	return prev, cur, nil
}

// DailyReturn is (cur-prev)/prev in percent.
func DailyReturn(prev, cur float64) float64 {
	return (cur - prev) / prev * 100
}

// RelativeStrengthRatio is (1+stock)/(1+bench) on percent returns. When the
// benchmark is flat it degrades to 2 (up), 1 (flat) or 0.5 (down).
func RelativeStrengthRatio(stockReturn, benchmarkReturn float64) float64 {
	if math.Abs(benchmarkReturn) < flatBenchmark {
		switch {
		case stockReturn > 0:
			return 2
		case stockReturn < 0:
			return 0.5
		default:
			return 1
		}
	}
	return (1 + stockReturn/100) / (1 + benchmarkReturn/100)
}

// RelativeScores maps the return spread to long and short scores centred at 50.
func RelativeScores(stockReturn, benchmarkReturn float64) (long, short int) {
	diff := stockReturn - benchmarkReturn
	return clampScore(50+2*diff, 0, 100), clampScore(50-2*diff, 0, 100)
}

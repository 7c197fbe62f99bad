// Package stage implements the per-symbol screening stages and the runner
// that applies each stage across a universe.
package stage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"StageScreener/internal/history"
	"StageScreener/internal/metrics"
	"StageScreener/internal/model"
)

var (
	// ErrInsufficientData means the symbol's history is too short for the stage.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrComputation wraps unexpected failures inside a per-symbol calculation.
	ErrComputation = errors.New("computation error")
)

// Policy decides what a stage does with a symbol it cannot evaluate.
type Policy int

const (
	// Skip drops the symbol from the stage output.
	Skip Policy = iota
	// DefaultNeutral emits the stage's neutral fallback result.
	DefaultNeutral
)

func (p Policy) String() string {
	switch p {
	case Skip:
		return "skip"
	case DefaultNeutral:
		return "default_neutral"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Keyed is anything joinable by symbol.
type Keyed interface {
	Key() string
}

// Env is the read-only input shared by every symbol of a stage run.
type Env struct {
	Index *history.Index
	Date  time.Time
}

// NewEnv normalises date to midnight UTC.
func NewEnv(idx *history.Index, date time.Time) Env {
	return Env{Index: idx, Date: model.Midnight(date)}
}

// AnalysisDate is the run date as YYYY-MM-DD.
func (e Env) AnalysisDate() string { return e.Date.Format(model.DateLayout) }

// Window returns up to days trading records for symbol ending at the run date.
func (e Env) Window(symbol string, days int) []model.OHLCV {
	return e.Index.Window(symbol, e.Date, days)
}

// base stamps the identity for a result computed from bars. The calculation
// date is the last bar used so reruns produce identical results.
func (e Env) base(from model.StageBase, bars []model.OHLCV) model.StageBase {
	b := from
	b.AnalysisDate = e.AnalysisDate()
	if len(bars) > 0 {
		last := bars[len(bars)-1]
		b.CurrentPrice = last.Close
		b.CalculationDate = last.DateKey()
	} else {
		b.CalculationDate = b.AnalysisDate
	}
	return b
}

// Stage is one screening step over symbols of type In producing Out.
type Stage[In, Out Keyed] interface {
	Name() model.StageName
	Policy() Policy
	// Evaluate returns ErrInsufficientData when the window is too short.
	Evaluate(env Env, in In) (Out, error)
	// Fallback is the neutral result used under DefaultNeutral.
	Fallback(env Env, in In) Out
}

// Runner applies a stage across all symbols with a bounded worker pool.
type Runner struct {
	Workers int
	Metrics *metrics.Registry
}

func (r Runner) workers() int {
	if r.Workers > 0 {
		return r.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Run evaluates s for every input and returns the outputs in input order.
// Per-symbol failures never escape: they are logged and resolved through the
// stage's policy. Only context cancellation is returned as an error.
func Run[In, Out Keyed](ctx context.Context, r Runner, s Stage[In, Out], env Env, inputs []In) ([]Out, error) {
	start := time.Now()
	name := string(s.Name())

	results := make([]Out, len(inputs))
	keep := make([]bool, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers())
	for i, in := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := evaluate(s, env, in)
			if err == nil {
				results[i], keep[i] = out, true
				r.Metrics.Outcome(name, metrics.OutcomeEmitted)
				return nil
			}

			ev := log.Warn()
			if errors.Is(err, ErrInsufficientData) {
				ev = log.Debug()
			}
			ev.Err(err).Str("stage", name).Str("symbol", in.Key()).
				Str("policy", s.Policy().String()).Msg("symbol not evaluated")

			if s.Policy() == DefaultNeutral {
				results[i], keep[i] = s.Fallback(env, in), true
				r.Metrics.Outcome(name, metrics.OutcomeDefaulted)
			} else {
				r.Metrics.Outcome(name, metrics.OutcomeSkipped)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("stage %s: %w", name, err)
	}

	out := make([]Out, 0, len(inputs))
	for i := range results {
		if keep[i] {
			out = append(out, results[i])
		}
	}

	elapsed := time.Since(start)
	r.Metrics.ObserveStage(name, elapsed)
	log.Debug().Str("stage", name).Int("in", len(inputs)).Int("out", len(out)).
		Dur("elapsed", elapsed).Msg("stage complete")
	return out, nil
}

func evaluate[In, Out Keyed](s Stage[In, Out], env Env, in In) (out Out, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrComputation, rec)
		}
	}()
	out, err = s.Evaluate(env, in)
	if err != nil && !errors.Is(err, ErrInsufficientData) && !errors.Is(err, ErrComputation) {
		err = fmt.Errorf("%w: %w", ErrComputation, err)
	}
	return out, err
}

// ByKey builds a symbol lookup over a stage output.
func ByKey[T Keyed](items []T) map[string]T {
	m := make(map[string]T, len(items))
	for _, it := range items {
		m[it.Key()] = it
	}
	return m
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampScore(v float64, lo, hi int) int {
	if math.IsNaN(v) {
		return lo
	}
	return clampInt(int(math.Round(v)), lo, hi)
}

func finite(vs ...float64) error {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value", ErrComputation)
		}
	}
	return nil
}

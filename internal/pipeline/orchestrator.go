package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"StageScreener/internal/history"
	"StageScreener/internal/metrics"
	"StageScreener/internal/model"
	"StageScreener/internal/recorder"
	"StageScreener/internal/stage"
	"StageScreener/internal/strategy"
)

var (
	// ErrUpstream aborts a run before any stage executes: the universe is
	// empty or the benchmark has no return for the analysis date.
	ErrUpstream = errors.New("upstream failure")
	// ErrPersist marks a failed write to the recorder.
	ErrPersist = errors.New("persist failure")
)

// DefaultLookahead is the number of forward sessions attached to composites.
const DefaultLookahead = 5

// Orchestrator sequences the stages over one record batch and combines the
// per-stage scores into composites.
type Orchestrator struct {
	Runner    stage.Runner
	Recorder  recorder.Recorder
	Weights   strategy.Weights
	Benchmark string
	Frequency string
	Lookahead int
	Metrics   *metrics.Registry
}

// NewOrchestrator wires an orchestrator; a nil recorder disables persistence.
func NewOrchestrator(rec recorder.Recorder, weights strategy.Weights, benchmark, frequency string, workers int, m *metrics.Registry) *Orchestrator {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	if weights == nil {
		weights = strategy.DefaultWeights
	}
	return &Orchestrator{
		Runner:    stage.Runner{Workers: workers, Metrics: m},
		Recorder:  rec,
		Weights:   weights,
		Benchmark: benchmark,
		Frequency: frequency,
		Lookahead: DefaultLookahead,
		Metrics:   m,
	}
}

// Report is the full output of one run.
type Report struct {
	RunID           string
	Date            string
	Trigger         model.TriggerType
	BenchmarkReturn float64
	StartedAt       time.Time
	Duration        time.Duration

	RelativeStrength []model.RelativeStrengthResult
	Volatility       []model.VolatilityResult
	Momentum         []model.MomentumResult
	Trend            []model.TrendResult
	Pattern          []model.PatternResult
	Structure        []model.StructureResult
	Composites       []model.CompositeResult
}

// Top returns up to n composites ordered by final score, best first.
func (r *Report) Top(n int) []model.CompositeResult {
	out := append([]model.CompositeResult(nil), r.Composites...)
	SortComposites(out)
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// SortComposites orders by final score descending, then symbol.
func SortComposites(cs []model.CompositeResult) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].FinalScore != cs[j].FinalScore {
			return cs[i].FinalScore > cs[j].FinalScore
		}
		return cs[i].Symbol < cs[j].Symbol
	})
}

// Run executes the pipeline for date over records. On a persistence failure
// the report holds everything computed so far and the error wraps ErrPersist.
func (o *Orchestrator) Run(ctx context.Context, date time.Time, universe []model.Security, records []model.OHLCV) (rep *Report, err error) {
	date = model.Midnight(date)
	rep = &Report{
		RunID:     uuid.NewString(),
		Date:      date.Format(model.DateLayout),
		Trigger:   model.TriggerManual,
		StartedAt: time.Now(),
	}
	logger := log.With().Str("run_id", rep.RunID).Str("date", rep.Date).Logger()
	defer func() {
		rep.Duration = time.Since(rep.StartedAt)
		o.Metrics.RunFinished(err, time.Now())
		if err != nil {
			logger.Error().Err(err).Dur("took", rep.Duration).Msg("pipeline run failed")
			return
		}
		logger.Info().Int("composites", len(rep.Composites)).Dur("took", rep.Duration).Msg("pipeline run complete")
	}()

	if len(universe) == 0 {
		return rep, fmt.Errorf("%w: universe is empty", ErrUpstream)
	}
	idx := history.Build(records)
	if !idx.Has(o.Benchmark) {
		return rep, fmt.Errorf("%w: no data for benchmark %s", ErrUpstream, o.Benchmark)
	}
	benchRet, err := stage.BenchmarkReturn(idx, o.Benchmark, date)
	if err != nil {
		return rep, fmt.Errorf("%w: benchmark %s: %v", ErrUpstream, o.Benchmark, err)
	}
	rep.BenchmarkReturn = benchRet

	env := stage.NewEnv(idx, date)
	logger.Info().Int("symbols", len(universe)).Float64("benchmark_return", benchRet).Msg("pipeline run started")

	if rep.RelativeStrength, err = runStage(ctx, o, rep, stage.NewRelativeStrength(benchRet), env, universe); err != nil {
		return rep, err
	}
	if rep.Volatility, err = runStage(ctx, o, rep, stage.NewVolatility(), env, rep.RelativeStrength); err != nil {
		return rep, err
	}
	if rep.Momentum, err = runStage(ctx, o, rep, stage.NewMomentum(), env, rep.Volatility); err != nil {
		return rep, err
	}
	if rep.Pattern, err = runStage(ctx, o, rep, stage.NewPattern(), env, rep.Momentum); err != nil {
		return rep, err
	}
	if rep.Trend, err = runStage(ctx, o, rep, stage.NewTrend(), env, rep.Momentum); err != nil {
		return rep, err
	}
	if rep.Structure, err = runStage(ctx, o, rep, stage.NewStructure(), env, rep.Trend); err != nil {
		return rep, err
	}

	rep.Composites = o.combine(idx, date, rep)
	key := recorder.CompositeKey(rep.Date, o.Frequency)
	if err := o.Recorder.RecordComposite(ctx, key, rep.RunID, rep.Composites); err != nil {
		return rep, fmt.Errorf("%w: %s: %w", ErrPersist, key.ID(), err)
	}
	return rep, nil
}

// runStage runs s and persists its result list under the run's key.
func runStage[In, Out stage.Keyed](ctx context.Context, o *Orchestrator, rep *Report, s stage.Stage[In, Out], env stage.Env, inputs []In) ([]Out, error) {
	out, err := stage.Run(ctx, o.Runner, s, env, inputs)
	if err != nil {
		return nil, err
	}
	key := recorder.StageKey{Date: rep.Date, Stage: s.Name(), Frequency: o.Frequency}
	if err := o.Recorder.RecordStage(ctx, key, rep.RunID, out); err != nil {
		return out, fmt.Errorf("%w: %s: %w", ErrPersist, key.ID(), err)
	}
	return out, nil
}

// combine joins every stage by symbol onto the first stage's output.
func (o *Orchestrator) combine(idx *history.Index, date time.Time, rep *Report) []model.CompositeResult {
	vol := stage.ByKey(rep.Volatility)
	mom := stage.ByKey(rep.Momentum)
	trend := stage.ByKey(rep.Trend)
	pat := stage.ByKey(rep.Pattern)
	str := stage.ByKey(rep.Structure)

	composites := make([]model.CompositeResult, 0, len(rep.RelativeStrength))
	for _, rs := range rep.RelativeStrength {
		c := model.CompositeResult{
			StageBase:        rs.StageBase,
			RunID:            rep.RunID,
			RelativeStrength: &rs,
		}
		if v, ok := vol[rs.Symbol]; ok {
			c.Volatility = &v
		}
		if v, ok := mom[rs.Symbol]; ok {
			c.Momentum = &v
		}
		if v, ok := trend[rs.Symbol]; ok {
			c.Trend = &v
		}
		if v, ok := pat[rs.Symbol]; ok {
			c.Pattern = &v
		}
		if v, ok := str[rs.Symbol]; ok {
			c.Structure = &v
		}
		strategy.Evaluate(&c, o.Weights)
		o.attachLookahead(idx, date, &c)
		composites = append(composites, c)
	}
	return composites
}

// attachLookahead adds the sessions following date when the run is historical.
func (o *Orchestrator) attachLookahead(idx *history.Index, date time.Time, c *model.CompositeResult) {
	if o.Lookahead <= 0 {
		return
	}
	fwd := idx.Forward(c.Symbol, date, o.Lookahead)
	if len(fwd) == 0 {
		return
	}
	c.Lookahead = fwd
	if c.CurrentPrice > 0 {
		ret := (fwd[len(fwd)-1].Close - c.CurrentPrice) / c.CurrentPrice * 100
		c.ForwardReturn = &ret
	}
}

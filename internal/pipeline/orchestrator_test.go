package pipeline

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StageScreener/internal/history"
	"StageScreener/internal/metrics"
	"StageScreener/internal/model"
	"StageScreener/internal/recorder"
	"StageScreener/internal/strategy"
)

var testEnd = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

// series builds n trading-day bars ending at end from a close function.
func series(symbol string, end time.Time, n int, closeAt func(i int) float64) []model.OHLCV {
	days := make([]time.Time, n)
	d := history.LatestTradingDay(end)
	for i := n - 1; i >= 0; i-- {
		days[i] = d
		d = history.PreviousTradingDay(d)
	}
	bars := make([]model.OHLCV, n)
	prev := closeAt(0)
	for i := range bars {
		c := closeAt(i)
		bars[i] = model.OHLCV{
			Date:   days[i],
			Symbol: symbol,
			Open:   prev,
			High:   math.Max(prev, c) + 0.4,
			Low:    math.Min(prev, c) - 0.4,
			Close:  c,
			Volume: 1_000_000 + float64(i%7)*10_000,
		}
		prev = c
	}
	return bars
}

func rising(i int) float64  { return 50 + 0.3*float64(i) }
func falling(i int) float64 { return 120 - 0.25*float64(i) }
func cyclic(i int) float64  { return 80 + 4*math.Sin(float64(i)/6) }
func bench(i int) float64   { return 400 + 0.1*float64(i) + math.Sin(float64(i)/3) }

func batch(end time.Time) []model.OHLCV {
	var all []model.OHLCV
	all = append(all, series("SPY", end, 250, bench)...)
	all = append(all, series("UP", end, 250, rising)...)
	all = append(all, series("DOWN", end, 250, falling)...)
	all = append(all, series("CYC", end, 250, cyclic)...)
	return all
}

var universe = []model.Security{
	{Symbol: "UP", Name: "Up Corp"},
	{Symbol: "DOWN", Name: "Down Inc"},
	{Symbol: "CYC", Name: "Cycle Ltd"},
}

// memRecorder keeps documents in memory and can fail one stage.
type memRecorder struct {
	mu      sync.Mutex
	docs    map[string]any
	runs    map[string]string
	failOn  model.StageName
	failErr error
}

func newMemRecorder() *memRecorder {
	return &memRecorder{docs: map[string]any{}, runs: map[string]string{}}
}

func (m *memRecorder) RecordStage(_ context.Context, key recorder.StageKey, runID string, results any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if key.Stage == m.failOn {
		return m.failErr
	}
	m.docs[key.ID()] = results
	m.runs[key.ID()] = runID
	return nil
}

func (m *memRecorder) RecordComposite(ctx context.Context, key recorder.StageKey, runID string, results []model.CompositeResult) error {
	return m.RecordStage(ctx, key, runID, results)
}

func (m *memRecorder) LoadStage(context.Context, recorder.StageKey, any) error {
	return recorder.ErrNotFound
}

func (m *memRecorder) LoadComposite(_ context.Context, key recorder.StageKey) ([]model.CompositeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.docs[key.ID()].([]model.CompositeResult); ok {
		return v, nil
	}
	return nil, recorder.ErrNotFound
}

func (m *memRecorder) Latest(context.Context, model.StageName, string) (recorder.StageKey, error) {
	return recorder.StageKey{}, recorder.ErrNotFound
}

func (m *memRecorder) Close() error { return nil }

func newTestOrchestrator(rec recorder.Recorder, reg *metrics.Registry) *Orchestrator {
	return NewOrchestrator(rec, strategy.DefaultWeights, "SPY", "daily", 3, reg)
}

func TestRun_EndToEnd(t *testing.T) {
	rec := newMemRecorder()
	reg := metrics.New()
	o := newTestOrchestrator(rec, reg)

	rep, err := o.Run(context.Background(), testEnd, universe, batch(testEnd))
	require.NoError(t, err)

	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, "2024-03-15", rep.Date)
	require.Len(t, rep.Composites, 3)
	for i, c := range rep.Composites {
		assert.Equal(t, universe[i].Symbol, c.Symbol)
		assert.Equal(t, universe[i].Name, c.Name)
		assert.Equal(t, rep.RunID, c.RunID)
		assert.NotNil(t, c.RelativeStrength)
		assert.NotNil(t, c.Volatility)
		assert.NotNil(t, c.Momentum)
		assert.NotNil(t, c.Trend)
		assert.NotNil(t, c.Pattern)
		assert.NotNil(t, c.Structure)
		assert.Len(t, c.Factors, 6)
		assert.GreaterOrEqual(t, c.FinalScore, 0)
		assert.LessOrEqual(t, c.FinalScore, 100)
		assert.Equal(t, strategy.MapSignal(c.FinalScore), c.FinalSignal)
		assert.Empty(t, c.Lookahead, "no sessions after the analysis date")
		assert.Nil(t, c.ForwardReturn)
	}

	for _, stage := range []model.StageName{
		model.StageRelativeStrength, model.StageVolatility, model.StageMomentum,
		model.StagePattern, model.StageTrend, model.StageStructure, model.StageComposite,
	} {
		id := recorder.StageKey{Date: "2024-03-15", Stage: stage, Frequency: "daily"}.ID()
		assert.Contains(t, rec.docs, id)
		assert.Equal(t, rep.RunID, rec.runs[id])
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.Runs.WithLabelValues("success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(reg.StageSymbols.WithLabelValues("relative_strength", metrics.OutcomeEmitted)))

	up, down := rep.Composites[0], rep.Composites[1]
	assert.Greater(t, up.Trend.PlusDI, up.Trend.MinusDI)
	assert.Greater(t, down.Trend.MinusDI, down.Trend.PlusDI)
	assert.Equal(t, model.StructureBullish, up.Structure.Trend)
	assert.Equal(t, model.StructureBearish, down.Structure.Trend)
}

func TestRun_Idempotent(t *testing.T) {
	o := newTestOrchestrator(nil, nil)
	records := batch(testEnd)

	first, err := o.Run(context.Background(), testEnd, universe, records)
	require.NoError(t, err)
	second, err := o.Run(context.Background(), testEnd, universe, records)
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	require.Len(t, second.Composites, len(first.Composites))
	for i := range first.Composites {
		a, b := first.Composites[i], second.Composites[i]
		assert.Equal(t, a.FinalScore, b.FinalScore)
		assert.Equal(t, a.Factors, b.Factors)
		assert.Equal(t, *a.Structure, *b.Structure)
	}
}

func TestRun_SkippedSymbolHasNoComposite(t *testing.T) {
	records := batch(testEnd)
	// GAP stops trading two sessions before the analysis date.
	records = append(records, series("GAP", testEnd.AddDate(0, 0, -4), 100, rising)...)
	// NEW listed a week ago: short history, neutral defaults downstream.
	records = append(records, series("NEW", testEnd, 5, rising)...)

	u := append(append([]model.Security(nil), universe...), model.Security{Symbol: "GAP"}, model.Security{Symbol: "NEW"})
	rep, err := newTestOrchestrator(nil, nil).Run(context.Background(), testEnd, u, records)
	require.NoError(t, err)

	bySymbol := map[string]model.CompositeResult{}
	for _, c := range rep.Composites {
		bySymbol[c.Symbol] = c
	}
	assert.NotContains(t, bySymbol, "GAP")
	require.Contains(t, bySymbol, "NEW")

	fresh := bySymbol["NEW"]
	assert.True(t, fresh.Volatility.Fallback)
	assert.Equal(t, 50, fresh.Volatility.Score)
	assert.Equal(t, model.CrossoverNeutral, fresh.Momentum.CrossoverType)
	assert.Equal(t, model.TrendNone, fresh.Trend.Trend)
	assert.True(t, fresh.Structure.Fallback)
	assert.Len(t, rep.Composites, 4)
}

func TestCombine_MissingStageUsesDefault(t *testing.T) {
	o := newTestOrchestrator(nil, nil)
	idx := history.Build(series("AAA", testEnd, 10, rising))
	rep := &Report{
		RunID: "r",
		RelativeStrength: []model.RelativeStrengthResult{
			{StageBase: model.StageBase{Symbol: "AAA"}, LongScore: 58},
		},
		Trend: []model.TrendResult{{StageBase: model.StageBase{Symbol: "ZZZ"}, Score: 90}},
	}

	cs := o.combine(idx, testEnd, rep)
	require.Len(t, cs, 1)
	assert.Nil(t, cs[0].Trend)
	assert.Nil(t, cs[0].Volatility)
	f, ok := cs[0].Factor(model.StageTrend)
	require.True(t, ok)
	assert.True(t, f.Missing)
	assert.Equal(t, 50.0, f.RawScore)
	assert.Equal(t, 49, cs[0].FinalScore)
}

func TestRun_UpstreamFailures(t *testing.T) {
	reg := metrics.New()
	rec := newMemRecorder()
	o := newTestOrchestrator(rec, reg)

	_, err := o.Run(context.Background(), testEnd, nil, batch(testEnd))
	assert.ErrorIs(t, err, ErrUpstream)

	noBench := series("UP", testEnd, 250, rising)
	_, err = o.Run(context.Background(), testEnd, universe, noBench)
	assert.ErrorIs(t, err, ErrUpstream)

	stale := series("SPY", testEnd.AddDate(0, 0, -7), 250, bench)
	_, err = o.Run(context.Background(), testEnd, universe, append(stale, noBench...))
	assert.ErrorIs(t, err, ErrUpstream)

	assert.Empty(t, rec.docs, "no stage may run after a precondition failure")
	assert.Equal(t, 3.0, testutil.ToFloat64(reg.Runs.WithLabelValues("error")))
}

func TestRun_PersistFailureKeepsComputedResults(t *testing.T) {
	rec := newMemRecorder()
	rec.failOn = model.StageMomentum
	rec.failErr = errors.New("disk full")

	rep, err := newTestOrchestrator(rec, nil).Run(context.Background(), testEnd, universe, batch(testEnd))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersist)
	assert.ErrorIs(t, err, rec.failErr)

	require.NotNil(t, rep)
	assert.Len(t, rep.RelativeStrength, 3)
	assert.Len(t, rep.Volatility, 3)
	assert.Len(t, rep.Momentum, 3)
	assert.Empty(t, rep.Trend)
	assert.Empty(t, rep.Composites)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestOrchestrator(nil, nil).Run(ctx, testEnd, universe, batch(testEnd))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_HistoricalDateGetsLookahead(t *testing.T) {
	records := batch(testEnd)
	date := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)

	rep, err := newTestOrchestrator(nil, nil).Run(context.Background(), date, universe, records)
	require.NoError(t, err)

	up := rep.Composites[0]
	require.Len(t, up.Lookahead, 5)
	assert.Equal(t, "2024-03-11", up.Lookahead[0].DateKey())
	assert.Equal(t, "2024-03-15", up.Lookahead[4].DateKey())
	assert.Equal(t, "2024-03-08", up.CalculationDate)

	require.NotNil(t, up.ForwardReturn)
	want := (up.Lookahead[4].Close - up.CurrentPrice) / up.CurrentPrice * 100
	assert.InDelta(t, want, *up.ForwardReturn, 1e-9)
	assert.Greater(t, *up.ForwardReturn, 0.0)
}

func TestReportTop(t *testing.T) {
	rep := &Report{Composites: []model.CompositeResult{
		{StageBase: model.StageBase{Symbol: "B"}, FinalScore: 70},
		{StageBase: model.StageBase{Symbol: "A"}, FinalScore: 70},
		{StageBase: model.StageBase{Symbol: "C"}, FinalScore: 90},
		{StageBase: model.StageBase{Symbol: "D"}, FinalScore: 10},
	}}
	top := rep.Top(3)
	require.Len(t, top, 3)
	assert.Equal(t, []string{"C", "A", "B"}, []string{top[0].Symbol, top[1].Symbol, top[2].Symbol})
	assert.Equal(t, "B", rep.Composites[0].Symbol, "Top must not reorder the report")
	assert.Len(t, rep.Top(0), 4)
}

package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StageScreener/internal/model"
	"StageScreener/internal/pipeline"
	"StageScreener/internal/recorder"
)

type fakeRunner struct {
	rep      *pipeline.Report
	err      error
	last     *pipeline.Report
	triggers []model.TriggerType
	dates    []time.Time
}

func (f *fakeRunner) RunFor(_ context.Context, date time.Time, trigger model.TriggerType) (*pipeline.Report, error) {
	f.triggers = append(f.triggers, trigger)
	f.dates = append(f.dates, date)
	if f.err == nil || errors.Is(f.err, pipeline.ErrPersist) {
		f.last = f.rep
	}
	return f.rep, f.err
}

func (f *fakeRunner) Last() *pipeline.Report { return f.last }

type fakeSender struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeSender) SendWithRetry(_ context.Context, text string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

var fixedNow = time.Date(2024, 3, 15, 22, 30, 0, 0, time.UTC)

func report() *pipeline.Report {
	return &pipeline.Report{
		RunID:   "run-1",
		Date:    "2024-03-15",
		Trigger: model.TriggerCommand,
		Composites: []model.CompositeResult{
			{StageBase: model.StageBase{Symbol: "AAA"}, FinalScore: 55, FinalSignal: model.SignalHold},
			{StageBase: model.StageBase{Symbol: "BBB"}, FinalScore: 81, FinalSignal: model.SignalStrongBuy},
		},
	}
}

func newTestScheduler(runner Runner, rec recorder.Recorder) (*Scheduler, *fakeSender) {
	sender := &fakeSender{}
	s := NewScheduler(context.Background(), runner, sender, rec, "daily", 5)
	s.Now = func() time.Time { return fixedNow }
	return s, sender
}

func TestRegisterAll(t *testing.T) {
	s, _ := newTestScheduler(&fakeRunner{}, recorder.NewNoopRecorder())
	require.NoError(t, s.RegisterAll("0 30 22 * * 1-5"))
	assert.Len(t, s.Cron.Entries(), 1)
	assert.Error(t, s.RegisterAll("not a cron"))
}

func TestRun_SendsReport(t *testing.T) {
	runner := &fakeRunner{rep: report()}
	s, sender := newTestScheduler(runner, recorder.NewNoopRecorder())

	s.dailyTask()
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0], "BBB")
	assert.Equal(t, []model.TriggerType{model.TriggerScheduled}, runner.triggers)
	assert.Equal(t, fixedNow, runner.dates[0])
}

func TestRun_FailureNotifies(t *testing.T) {
	runner := &fakeRunner{err: errors.New("upstream failure: benchmark SPY")}
	s, sender := newTestScheduler(runner, recorder.NewNoopRecorder())

	s.RunNow()
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0], "run failed")
	assert.Contains(t, sender.sent[0], "benchmark SPY")
}

func TestRun_PersistFailureStillReports(t *testing.T) {
	runner := &fakeRunner{rep: report(), err: pipeline.ErrPersist}
	s, sender := newTestScheduler(runner, recorder.NewNoopRecorder())

	s.RunNow()
	require.Len(t, sender.sent, 2)
	assert.Contains(t, sender.sent[0], "run failed")
	assert.Contains(t, sender.sent[1], "AAA")
}

func TestRun_BusyIsSilent(t *testing.T) {
	s, sender := newTestScheduler(&fakeRunner{err: pipeline.ErrBusy}, recorder.NewNoopRecorder())
	s.RunNow()
	assert.Empty(t, sender.sent)
}

func TestHandleCommand(t *testing.T) {
	runner := &fakeRunner{rep: report()}
	s, sender := newTestScheduler(runner, recorder.NewNoopRecorder())

	assert.Contains(t, s.HandleCommand("/top"), "No results yet")
	assert.Equal(t, "No run since start.", s.HandleCommand("/status"))
	assert.Contains(t, s.HandleCommand("hello"), "/run")

	assert.Empty(t, s.HandleCommand("/run"))
	assert.Equal(t, []model.TriggerType{model.TriggerCommand}, runner.triggers)
	require.Len(t, sender.sent, 1)

	top := s.HandleCommand("/top")
	assert.Contains(t, top, "Top 2")
	assert.Less(t, strings.Index(top, "BBB"), strings.Index(top, "AAA"))

	assert.Contains(t, s.HandleCommand("/symbol bbb"), "Score: 81")
	assert.Contains(t, s.HandleCommand("/symbol ZZZ"), "not in the latest run")
	assert.Contains(t, s.HandleCommand("/symbol"), "Usage")
	assert.Contains(t, s.HandleCommand("/status"), "run-1")
}

func TestHandleCommand_TopFallsBackToRecorder(t *testing.T) {
	rec, err := recorder.NewSQLiteRecorder(filepath.Join(t.TempDir(), "s.db"))
	require.NoError(t, err)
	defer rec.Close()

	key := recorder.CompositeKey("2024-03-14", "daily")
	require.NoError(t, rec.RecordComposite(context.Background(), key, "old", report().Composites))

	s, _ := newTestScheduler(&fakeRunner{}, rec)
	top := s.HandleCommand("/top")
	assert.Contains(t, top, "2024-03-14")
	assert.Contains(t, top, "BBB")
}

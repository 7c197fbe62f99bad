package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"StageScreener/internal/model"
	"StageScreener/internal/notifier"
	"StageScreener/internal/pipeline"
	"StageScreener/internal/recorder"
)

// Sender delivers chat messages.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Runner executes one pipeline run.
type Runner interface {
	RunFor(ctx context.Context, date time.Time, trigger model.TriggerType) (*pipeline.Report, error)
	Last() *pipeline.Report
}

// Scheduler manages the cron task and chat commands.
type Scheduler struct {
	Cron      *cron.Cron
	Runner    Runner
	Notifier  Sender
	Recorder  recorder.Recorder
	Frequency string
	TopN      int
	Ctx       context.Context

	// Now is the clock used for run dates.
	Now func() time.Time
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, runner Runner, sender Sender, rec recorder.Recorder, frequency string, topN int) *Scheduler {
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds()),
		Runner:    runner,
		Notifier:  sender,
		Recorder:  rec,
		Frequency: frequency,
		TopN:      topN,
		Ctx:       ctx,
		Now:       time.Now,
	}
}

// RegisterAll registers the daily screening task.
func (s *Scheduler) RegisterAll(dailyCron string) error {
	if _, err := s.Cron.AddFunc(dailyCron, s.dailyTask); err != nil {
		return fmt.Errorf("register daily task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Int("tasks", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running task to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

// RunNow executes the daily task immediately (for manual trigger / RUN_ON_START).
func (s *Scheduler) RunNow() {
	s.run(model.TriggerManual)
}

func (s *Scheduler) dailyTask() {
	s.run(model.TriggerScheduled)
}

func (s *Scheduler) run(trigger model.TriggerType) {
	now := s.Now()
	log.Info().Str("trigger", string(trigger)).Msg("running screener")

	rep, err := s.Runner.RunFor(s.Ctx, now, trigger)
	switch {
	case errors.Is(err, pipeline.ErrBusy):
		log.Warn().Str("trigger", string(trigger)).Msg("skipped: run already in progress")
		return
	case err != nil && (rep == nil || !errors.Is(err, pipeline.ErrPersist)):
		log.Error().Err(err).Msg("screener run failed")
		s.trySend(notifier.FormatFailure(now.Format(model.DateLayout), err))
		return
	case err != nil:
		log.Error().Err(err).Msg("screener results not persisted")
		s.trySend(notifier.FormatFailure(rep.Date, err))
	}
	if len(rep.Composites) > 0 {
		s.trySend(notifier.FormatRunReport(rep, s.TopN))
	}
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(command), " ")
	switch strings.ToLower(cmd) {
	case "/run":
		s.run(model.TriggerCommand)
		return ""
	case "/top":
		cs, date, err := s.latestComposites()
		if err != nil {
			return replyError(err)
		}
		return notifier.FormatTop(date, cs, s.TopN)
	case "/symbol":
		symbol := strings.ToUpper(strings.TrimSpace(arg))
		if symbol == "" {
			return "Usage: /symbol TICKER"
		}
		cs, _, err := s.latestComposites()
		if err != nil {
			return replyError(err)
		}
		for _, c := range cs {
			if c.Symbol == symbol {
				return notifier.FormatComposite(c)
			}
		}
		return fmt.Sprintf("%s is not in the latest run.", symbol)
	case "/status":
		rep := s.Runner.Last()
		if rep == nil {
			return "No run since start."
		}
		return fmt.Sprintf("Last run %s (%s) on %s: %d composites in %s.",
			rep.RunID, rep.Trigger, rep.Date, len(rep.Composites), rep.Duration.Round(time.Millisecond))
	default:
		return notifier.HelpText
	}
}

// latestComposites prefers the in-memory report and falls back to the recorder.
func (s *Scheduler) latestComposites() ([]model.CompositeResult, string, error) {
	if rep := s.Runner.Last(); rep != nil {
		return rep.Composites, rep.Date, nil
	}
	key, err := s.Recorder.Latest(s.Ctx, model.StageComposite, s.Frequency)
	if err != nil {
		return nil, "", err
	}
	cs, err := s.Recorder.LoadComposite(s.Ctx, key)
	if err != nil {
		return nil, "", err
	}
	return cs, key.Date, nil
}

func replyError(err error) string {
	if errors.Is(err, recorder.ErrNotFound) {
		return "No results yet. Send /run to screen now."
	}
	return "Lookup failed: " + err.Error()
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		log.Error().Err(err).Msg("send notification")
	}
}

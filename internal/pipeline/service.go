package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"StageScreener/internal/history"
	"StageScreener/internal/model"
)

// ErrBusy is returned when a run is requested while another is in progress.
var ErrBusy = errors.New("a pipeline run is already in progress")

// Source delivers the record batch for a universe and benchmark.
type Source interface {
	Collect(ctx context.Context, universe []model.Security, benchmark string) ([]model.OHLCV, error)
}

// Service collects market data and runs the orchestrator, one run at a time.
type Service struct {
	Source       Source
	Orchestrator *Orchestrator
	Universe     []model.Security

	mu      sync.Mutex
	running bool
	last    *Report
}

// NewService creates a Service for universe.
func NewService(src Source, o *Orchestrator, universe []model.Security) *Service {
	return &Service{Source: src, Orchestrator: o, Universe: universe}
}

// RunFor collects fresh data and runs the pipeline for the latest trading day
// on or before date.
func (s *Service) RunFor(ctx context.Context, date time.Time, trigger model.TriggerType) (*Report, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if len(s.Universe) == 0 {
		return nil, fmt.Errorf("%w: universe is empty", ErrUpstream)
	}
	records, err := s.Source.Collect(ctx, s.Universe, s.Orchestrator.Benchmark)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	rep, err := s.Orchestrator.Run(ctx, history.LatestTradingDay(date), s.Universe, records)
	if rep != nil {
		rep.Trigger = trigger
	}
	if err == nil || errors.Is(err, ErrPersist) {
		s.mu.Lock()
		s.last = rep
		s.mu.Unlock()
	}
	return rep, err
}

// Last returns the most recent report produced by this service, if any.
func (s *Service) Last() *Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

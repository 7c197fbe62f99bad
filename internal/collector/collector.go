package collector

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"StageScreener/internal/metrics"
	"StageScreener/internal/model"
)

// ErrBenchmark is returned when the benchmark series cannot be fetched.
var ErrBenchmark = errors.New("benchmark data unavailable")

// Collector fetches the daily history of a universe into one record batch.
type Collector struct {
	Fetcher Fetcher
	Days    int
	Workers int
	Metrics *metrics.Registry
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher, days, workers int, m *metrics.Registry) *Collector {
	return &Collector{Fetcher: fetcher, Days: days, Workers: workers, Metrics: m}
}

// Collect fetches the benchmark and every universe symbol. A failed symbol is
// logged and left out of the batch; a failed benchmark aborts with ErrBenchmark.
func (c *Collector) Collect(ctx context.Context, universe []model.Security, benchmark string) ([]model.OHLCV, error) {
	benchBars, err := c.Fetcher.FetchDailyBars(ctx, benchmark, c.Days)
	if err == nil && len(benchBars) == 0 {
		err = errors.New("no bars returned")
	}
	if err != nil {
		c.Metrics.FetchFailed(c.Fetcher.Name())
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrBenchmark, benchmark, err)
	}

	workers := c.Workers
	if workers <= 0 {
		workers = 4
	}

	perSymbol := make([][]model.OHLCV, len(universe))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, sec := range universe {
		if sec.Symbol == benchmark {
			continue
		}
		g.Go(func() error {
			bars, err := c.Fetcher.FetchDailyBars(gctx, sec.Symbol, c.Days)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				c.Metrics.FetchFailed(c.Fetcher.Name())
				log.Warn().Err(err).Str("symbol", sec.Symbol).Str("source", c.Fetcher.Name()).
					Msg("fetch failed, symbol left out")
				return nil
			}
			perSymbol[i] = bars
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	records := append([]model.OHLCV(nil), benchBars...)
	for _, bars := range perSymbol {
		records = append(records, bars...)
	}
	log.Info().Int("symbols", len(universe)).Int("records", len(records)).
		Str("source", c.Fetcher.Name()).Msg("collection complete")
	return records, nil
}

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"StageScreener/internal/collector"
	"StageScreener/internal/config"
	"StageScreener/internal/metrics"
	"StageScreener/internal/model"
	"StageScreener/internal/pipeline"
	"StageScreener/internal/recorder"
)

// app carries what every subcommand needs after the config is loaded.
type app struct {
	cfgPath string
	logJSON bool
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "screener",
		Short:         "Multi-stage technical equity screener",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	defaultCfg := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultCfg = v
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", defaultCfg, "path to the YAML config")
	root.PersistentFlags().BoolVar(&a.logJSON, "log-json", false, "emit JSON logs instead of console output")

	root.AddCommand(runCmd(a), serveCmd(a), showCmd(a))
	return root
}

func (a *app) load() error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	a.cfg = cfg
	setupLogging(cfg.Logging.Level, a.logJSON)
	log.Debug().Str("config", a.cfgPath).Int("universe", len(cfg.Universe)).Msg("config loaded")
	return nil
}

func setupLogging(level string, asJSON bool) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339
	if !asJSON {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func (a *app) newFetcher() collector.Fetcher {
	ds := a.cfg.DataSource
	switch ds.Provider {
	case "rest":
		return collector.NewRESTFetcher(ds.BaseURL, ds.APIKey, a.cfg.Proxy)
	case "mock":
		return &collector.MockFetcher{}
	default:
		f := collector.NewYahooFetcher(a.cfg.Proxy, ds.RequestsPerSecond, ds.Burst)
		if ds.BaseURL != "" {
			f.BaseURL = ds.BaseURL
		}
		return f
	}
}

func (a *app) openRecorder() (recorder.Recorder, error) {
	rec, err := recorder.Open(a.cfg.Database.Driver, a.cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open recorder: %w", err)
	}
	return rec, nil
}

// newService wires collector, orchestrator and recorder for one process.
func (a *app) newService(rec recorder.Recorder, reg *metrics.Registry) *pipeline.Service {
	fetcher := a.newFetcher()
	log.Info().Str("source", fetcher.Name()).Str("database", a.cfg.Database.Driver).Msg("pipeline wired")

	col := collector.NewCollector(fetcher, a.cfg.DataSource.HistoryDays, a.cfg.Pipeline.Workers, reg)
	orch := pipeline.NewOrchestrator(rec, a.cfg.StageWeights(), a.cfg.Benchmark,
		a.cfg.Pipeline.Frequency, a.cfg.Pipeline.Workers, reg)
	return pipeline.NewService(col, orch, a.cfg.Universe)
}

// parseDateFlag returns today for an empty flag.
func parseDateFlag(v string) (time.Time, error) {
	if v == "" {
		return time.Now(), nil
	}
	d, err := model.ParseDate(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q, want YYYY-MM-DD: %w", v, err)
	}
	return d, nil
}

package main

import (
	"errors"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"StageScreener/internal/model"
	"StageScreener/internal/pipeline"
	"StageScreener/internal/recorder"
)

func runCmd(a *app) *cobra.Command {
	var (
		date   string
		top    int
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Collect data, run the pipeline once and print the ranking",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDateFlag(date)
			if err != nil {
				return err
			}

			var rec recorder.Recorder = recorder.NewNoopRecorder()
			if !dryRun {
				if rec, err = a.openRecorder(); err != nil {
					return err
				}
			}
			defer rec.Close()

			svc := a.newService(rec, nil)
			rep, err := svc.RunFor(cmd.Context(), d, model.TriggerManual)
			if err != nil && !errors.Is(err, pipeline.ErrPersist) {
				return err
			}
			if err != nil {
				log.Error().Err(err).Msg("results computed but not persisted")
			}
			if top <= 0 {
				top = a.cfg.Pipeline.TopN
			}
			printComposites(os.Stdout, rep.Date, rep.Top(top))
			return err
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "analysis date YYYY-MM-DD (default: latest trading day)")
	cmd.Flags().IntVar(&top, "top", 0, "rows to print (default: pipeline.top_n)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "do not persist results")
	return cmd
}

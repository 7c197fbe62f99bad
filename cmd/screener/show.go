package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"StageScreener/internal/model"
	"StageScreener/internal/recorder"
)

func showCmd(a *app) *cobra.Command {
	var (
		date   string
		stage  string
		top    int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print persisted results for a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rec, err := a.openRecorder()
			if err != nil {
				return err
			}
			defer rec.Close()

			name := model.StageName(stage)
			freq := a.cfg.Pipeline.Frequency
			key := recorder.StageKey{Date: date, Stage: name, Frequency: freq}
			if date == "" {
				if key, err = rec.Latest(ctx, name, freq); err != nil {
					return notFound(err, name, "latest")
				}
			} else if _, err := model.ParseDate(date); err != nil {
				return fmt.Errorf("invalid --date %q: %w", date, err)
			}

			if name != model.StageComposite || asJSON {
				var raw json.RawMessage
				if err := rec.LoadStage(ctx, key, &raw); err != nil {
					return notFound(err, name, key.Date)
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(raw)
			}

			cs, err := rec.LoadComposite(ctx, key)
			if err != nil {
				return notFound(err, name, key.Date)
			}
			printComposites(os.Stdout, key.Date, sortedTop(cs, top))
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "analysis date YYYY-MM-DD (default: latest stored)")
	cmd.Flags().StringVar(&stage, "stage", string(model.StageComposite), "stage to show")
	cmd.Flags().IntVar(&top, "top", 0, "rows to print for composites (0: all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw stored document")
	return cmd
}

func notFound(err error, stage model.StageName, date string) error {
	if errors.Is(err, recorder.ErrNotFound) {
		return fmt.Errorf("no %s results stored for %s", stage, date)
	}
	return err
}

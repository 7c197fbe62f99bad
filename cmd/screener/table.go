package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"StageScreener/internal/model"
	"StageScreener/internal/pipeline"
)

var tableStages = []model.StageName{
	model.StageRelativeStrength, model.StageVolatility, model.StageMomentum,
	model.StageTrend, model.StagePattern, model.StageStructure,
}

func sortedTop(cs []model.CompositeResult, n int) []model.CompositeResult {
	out := append([]model.CompositeResult(nil), cs...)
	pipeline.SortComposites(out)
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// printComposites writes one ranking row per composite.
func printComposites(w io.Writer, date string, cs []model.CompositeResult) {
	fmt.Fprintf(w, "Screener results for %s\n\n", date)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tSYMBOL\tPRICE\tRS\tVOL\tMOM\tTREND\tPAT\tSTR\tSCORE\tSIGNAL\tFWD%\t")
	for i, c := range cs {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t", i+1, c.Symbol, c.CurrentPrice)
		for _, stage := range tableStages {
			f, ok := c.Factor(stage)
			switch {
			case !ok || f.Missing:
				fmt.Fprint(tw, "-\t")
			default:
				fmt.Fprintf(tw, "%.0f\t", f.RawScore)
			}
		}
		fwd := "-"
		if c.ForwardReturn != nil {
			fwd = fmt.Sprintf("%+.2f", *c.ForwardReturn)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t\n", c.FinalScore, c.FinalSignal, fwd)
	}
	tw.Flush()
}

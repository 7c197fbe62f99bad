package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"StageScreener/internal/model"
	"StageScreener/internal/pipeline"
)

// HelpText lists the bot commands.
const HelpText = "Available commands:\n" +
	"• /run - run the screener now\n" +
	"• /top - latest top composites\n" +
	"• /symbol TICKER - stage breakdown of one symbol\n" +
	"• /status - last run summary"

var signalIcons = map[model.FinalSignal]string{
	model.SignalStrongBuy:  "🟢",
	model.SignalBuy:        "🟩",
	model.SignalHold:       "⚪",
	model.SignalWeakSell:   "🟧",
	model.SignalStrongSell: "🔴",
}

var signalOrder = []model.FinalSignal{
	model.SignalStrongBuy, model.SignalBuy, model.SignalHold, model.SignalWeakSell, model.SignalStrongSell,
}

var factorLabels = map[model.StageName]string{
	model.StageRelativeStrength: "RS",
	model.StageVolatility:       "Vol",
	model.StageMomentum:         "Mom",
	model.StageTrend:            "Trend",
	model.StagePattern:          "Pat",
	model.StageStructure:        "Str",
}

// FormatRunReport formats a finished run with its top n composites.
func FormatRunReport(rep *pipeline.Report, n int) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 <b>Stage Screener</b> | %s\n", rep.Date))
	b.WriteString(fmt.Sprintf("Benchmark: %+.2f%% | Symbols: %d | Took: %s\n",
		rep.BenchmarkReturn, len(rep.Composites), rep.Duration.Round(time.Millisecond)))
	b.WriteString(fmt.Sprintf("Run: <code>%s</code>\n\n", shortID(rep.RunID)))
	b.WriteString(formatRanking(rep.Top(n)))
	b.WriteString("\n")
	b.WriteString(formatSignalCounts(rep.Composites))
	return b.String()
}

// FormatTop formats the n best composites of a stored run.
func FormatTop(date string, composites []model.CompositeResult, n int) string {
	cs := append([]model.CompositeResult(nil), composites...)
	pipeline.SortComposites(cs)
	if n > 0 && len(cs) > n {
		cs = cs[:n]
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🏆 <b>Top %d</b> | %s\n\n", len(cs), date))
	b.WriteString(formatRanking(cs))
	return b.String()
}

func formatRanking(cs []model.CompositeResult) string {
	if len(cs) == 0 {
		return "No composites.\n"
	}
	var b strings.Builder
	for i, c := range cs {
		name := ""
		if c.Name != "" {
			name = " (" + html.EscapeString(c.Name) + ")"
		}
		b.WriteString(fmt.Sprintf("%d. %s <b>%s</b>%s %d %s\n",
			i+1, signalIcons[c.FinalSignal], html.EscapeString(c.Symbol), name, c.FinalScore, c.FinalSignal))
		b.WriteString("   " + formatFactors(c.Factors) + "\n")
	}
	return b.String()
}

func formatFactors(fs []model.FactorScore) string {
	parts := make([]string, 0, len(fs))
	for _, f := range fs {
		label := factorLabels[f.Stage]
		if f.Missing {
			parts = append(parts, fmt.Sprintf("%s -", label))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %.0f", label, f.RawScore))
	}
	return strings.Join(parts, " · ")
}

func formatSignalCounts(cs []model.CompositeResult) string {
	counts := make(map[model.FinalSignal]int, len(signalOrder))
	for _, c := range cs {
		counts[c.FinalSignal]++
	}
	parts := make([]string, 0, len(signalOrder))
	for _, s := range signalOrder {
		parts = append(parts, fmt.Sprintf("%s %d", s, counts[s]))
	}
	return "Signals: " + strings.Join(parts, " · ") + "\n"
}

// FormatComposite formats the full stage breakdown of one symbol.
func FormatComposite(c model.CompositeResult) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s <b>%s</b> | %s\n", signalIcons[c.FinalSignal], html.EscapeString(c.Symbol), c.AnalysisDate))
	b.WriteString(fmt.Sprintf("Price: %.2f | Score: %d (%s)\n\n", c.CurrentPrice, c.FinalScore, c.FinalSignal))

	for _, f := range c.Factors {
		note := ""
		if f.Missing {
			note = " (default)"
		}
		b.WriteString(fmt.Sprintf("  %s: %.0f ×%.2f = %.1f%s\n", factorLabels[f.Stage], f.RawScore, f.Weight, f.Weighted, note))
	}
	b.WriteString("\n")

	if rs := c.RelativeStrength; rs != nil {
		b.WriteString(fmt.Sprintf("Return: %+.2f%% vs benchmark %+.2f%%\n", rs.StockReturn, rs.BenchmarkReturn))
	}
	if m := c.Momentum; m != nil {
		b.WriteString(fmt.Sprintf("Crossover: %s | RSI: %.0f\n", m.CrossoverType, m.RSI))
	}
	if t := c.Trend; t != nil {
		b.WriteString(fmt.Sprintf("ADX: %.1f (%s, %s)\n", t.ADX, t.Trend, t.Direction))
	}
	if p := c.Pattern; p != nil && len(p.Counted) > 0 {
		names := make([]string, len(p.Counted))
		for i, n := range p.Counted {
			names[i] = string(n)
		}
		b.WriteString("Patterns: " + strings.Join(names, ", ") + "\n")
	}
	if s := c.Structure; s != nil {
		b.WriteString(fmt.Sprintf("Structure: %s | S %.2f | R %.2f\n", s.Trend, s.PrimarySupport.Price, s.PrimaryResistance.Price))
	}
	if c.ForwardReturn != nil {
		b.WriteString(fmt.Sprintf("Forward %d sessions: %+.2f%%\n", len(c.Lookahead), *c.ForwardReturn))
	}
	return b.String()
}

// FormatFailure formats a failed run for the chat.
func FormatFailure(date string, err error) string {
	return fmt.Sprintf("❌ <b>Screener run failed</b> | %s\n\n%s", date, html.EscapeString(err.Error()))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

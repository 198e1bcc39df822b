// Package report renders backtest results as Markdown and HTML.
package report

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"demandcast/domain/backtest"
	"demandcast/domain/core"
)

// Markdown renders a summary, the comparison against baselines and the per-fold metrics.
func Markdown(r *backtest.BacktestResult) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# Backtest %s\n\n", r.Main.ModelType)
	fmt.Fprintf(&b, "- Run: `%s`\n", r.RunID)
	fmt.Fprintf(&b, "- Range: %s (%d days)\n", r.DateRange, r.DateRange.Days())
	fmt.Fprintf(&b, "- Entities: %d\n", len(r.EntityIDs))
	fmt.Fprintf(&b, "- Split: %s, %d folds, min train %d, gap %d, horizon %d\n",
		r.Split.Strategy, r.Split.NSplits, r.Split.MinTrainSize, r.Split.Gap, r.Split.Horizon)
	fmt.Fprintf(&b, "- Config hash: `%s`\n", r.ConfigHash.Short())
	if r.LeakageCheckPassed {
		b.WriteString("- Leakage check: passed\n\n")
	} else {
		b.WriteString("- Leakage check: **FAILED**\n\n")
	}

	b.WriteString("## Models\n\n")
	b.WriteString("| model | MAE | sMAPE | WAPE | bias | MAE CV% |\n|---|---|---|---|---|---|\n")
	for _, m := range append([]backtest.AggregatedModelResult{r.Main}, r.Baselines...) {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n", m.ModelType,
			num(m.Mean.MAE), num(m.Mean.SMAPE), num(m.Mean.WAPE), num(m.Mean.Bias), num(m.Stability.MAE))
	}

	if r.Comparison != nil && len(r.Comparison.Comparisons) > 0 {
		b.WriteString("\n## Against baselines\n\n")
		b.WriteString("| baseline | metric | main | baseline value | delta | improvement % |\n|---|---|---|---|---|---|\n")
		for _, c := range r.Comparison.Comparisons {
			for _, m := range c.Metrics {
				fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
					c.Baseline, m.Metric, num(m.Main), num(m.Baseline), num(m.AbsoluteDelta), num(m.ImprovementPct))
			}
		}
	}

	b.WriteString("\n## Folds\n\n")
	b.WriteString("| fold | train | test | points | MAE | sMAPE | WAPE | bias |\n|---|---|---|---|---|---|---|---|\n")
	for _, f := range r.Main.FoldResults {
		fmt.Fprintf(&b, "| %d | %s | %s | %d | %s | %s | %s | %s |\n", f.FoldIndex,
			f.Fold.TrainRange(), f.Fold.TestRange(), len(f.Actuals),
			num(f.Metrics.MAE), num(f.Metrics.SMAPE), num(f.Metrics.WAPE), num(f.Metrics.Bias))
	}
	return b.Bytes()
}

// HTML renders Markdown as a standalone page.
func HTML(r *backtest.BacktestResult) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	renderer := html.NewRenderer(html.RendererOptions{
		Title: fmt.Sprintf("Backtest %s %s", r.Main.ModelType, core.FormatDate(r.CreatedAt.Time())),
		Flags: html.CommonFlags | html.CompletePage,
	})
	return markdown.ToHTML(Markdown(r), p, renderer)
}

// WriteHTML writes the HTML report to path.
func WriteHTML(path string, r *backtest.BacktestResult) error {
	if err := os.WriteFile(path, HTML(r), 0o644); err != nil { //nolint:gosec // reports are meant to be shared
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func num(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", v)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"demandcast/app"
	"demandcast/domain/backtest"
	"demandcast/internal/config"
	"demandcast/internal/report"
)

func newBacktestCmd(e *env) *cobra.Command {
	var output string
	var reportPath string

	cmd := &cobra.Command{
		Use:   "backtest [experiment.yaml]",
		Short: "Run a rolling-origin backtest against baselines",
		Long: `Evaluate the experiment's model on rolling-origin folds, score the baselines on the
same folds and audit every fold for leakage.

The process exits with status 3 when the leakage audit fails; the result is still written.

Example: demandcast backtest experiment.yaml --output result.json --report report.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.runBacktest(cmd.Context(), args[0], output, reportPath)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the full result as JSON to this file")
	cmd.Flags().StringVar(&reportPath, "report", "", "Write an HTML report to this file (overrides the experiment)")
	return cmd
}

func (e *env) runBacktest(ctx context.Context, path, output, reportPath string) error {
	exp, err := config.LoadExperiment(path)
	if err != nil {
		return err
	}
	featCfg, err := exp.FeatureConfig()
	if err != nil {
		return err
	}
	query, err := exp.Query()
	if err != nil {
		return err
	}

	loader, err := e.c.SeriesLoader(ctx, exp.Source)
	if err != nil {
		return err
	}

	result, runErr := e.c.BacktestService(loader).Run(ctx, app.BacktestRequest{
		Query:        query,
		TargetColumn: exp.Target,
		Split:        exp.Split,
		Model:        exp.Model,
		Features:     featCfg,
		Baselines:    exp.Baselines,
	})
	if result == nil {
		return runErr
	}

	if err := printSummary(os.Stdout, exp.Name, result); err != nil {
		return err
	}
	if output != "" {
		if err := writeJSON(output, result); err != nil {
			return err
		}
	}
	if reportPath == "" {
		reportPath = exp.Report
	}
	if reportPath != "" {
		if err := report.WriteHTML(reportPath, result); err != nil {
			return err
		}
	}
	return runErr
}

func printSummary(out io.Writer, name string, r *backtest.BacktestResult) error {
	fmt.Fprintf(out, "%s: run %s over %s, %d entities, %d folds, leakage check passed: %t\n\n",
		name, r.RunID, r.DateRange, len(r.EntityIDs), len(r.Main.FoldResults), r.LeakageCheckPassed)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tMAE\tSMAPE\tWAPE\tBIAS\tMAE CV%")
	rows := append([]backtest.AggregatedModelResult{r.Main}, r.Baselines...)
	for _, m := range rows {
		fmt.Fprintf(w, "%s\t%.3f\t%.2f\t%.3f\t%.3f\t%.1f\n",
			m.ModelType, m.Mean.MAE, m.Mean.SMAPE, m.Mean.WAPE, m.Mean.Bias, m.Stability.MAE)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if r.Comparison != nil {
		fmt.Fprintln(out)
		for _, c := range r.Comparison.Comparisons {
			for _, m := range c.Metrics {
				if m.Metric == backtest.MetricMAE {
					fmt.Fprintf(out, "%s vs %s: MAE improvement %.1f%%\n", r.Comparison.MainModel, c.Baseline, m.ImprovementPct)
				}
			}
		}
	}
	return nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // report output is not sensitive
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"demandcast/adapters/excel"
	"demandcast/adapters/forecast"
	"demandcast/domain/backtest"
	domainfeatures "demandcast/domain/features"
	internalbacktest "demandcast/internal/backtest"
	"demandcast/internal/config"
	"demandcast/internal/testkit"
)

func newDemoCmd(e *env) *cobra.Command {
	gen := testkit.DefaultRetailConfig()
	var dir string
	var format string
	var run bool

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Generate synthetic retail sales and a ready-to-run experiment",
		Long: `Write a synthetic daily sales file (trend, weekly seasonality, promotions, price
response and stockouts) together with an experiment that backtests a ridge model on it.

Example: demandcast demo --dir ./demo --stores 2 --skus 5 --days 180 --run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // demo output directory
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}
			dataPath := filepath.Join(dir, "sales."+format)
			g := testkit.NewRetailGenerator(gen)
			if err := excel.WriteFrame(excel.DefaultFileConfig(dataPath), g.Generate(), g.Columns()); err != nil {
				return err
			}

			expPath := filepath.Join(dir, "experiment.yaml")
			data, err := yaml.Marshal(demoExperiment(dataPath, filepath.Join(dir, "report.html")))
			if err != nil {
				return err
			}
			if err := os.WriteFile(expPath, data, 0o644); err != nil { //nolint:gosec // demo output
				return fmt.Errorf("failed to write %s: %w", expPath, err)
			}
			fmt.Printf("Wrote %d stores x %d SKUs x %d days to %s\nExperiment: %s\n",
				gen.StoreCount, gen.SKUCount, gen.Days, dataPath, expPath)

			if !run {
				return nil
			}
			return e.runBacktest(cmd.Context(), expPath, filepath.Join(dir, "result.json"), "")
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "demo", "Output directory")
	cmd.Flags().StringVar(&format, "format", "csv", "Sales file format: csv|xlsx")
	cmd.Flags().BoolVar(&run, "run", false, "Run the backtest right away")
	cmd.Flags().IntVar(&gen.StoreCount, "stores", gen.StoreCount, "Number of stores")
	cmd.Flags().IntVar(&gen.SKUCount, "skus", gen.SKUCount, "SKUs per store")
	cmd.Flags().IntVar(&gen.Days, "days", gen.Days, "Days of history")
	cmd.Flags().Float64Var(&gen.MissingRate, "missing-rate", gen.MissingRate, "Share of unrecorded quantities")
	cmd.Flags().Uint64Var(&gen.Seed, "seed", gen.Seed, "Random seed")
	return cmd
}

func demoExperiment(dataPath, reportPath string) config.Experiment {
	return config.Experiment{
		Name: "demo-ridge",
		Source: config.SourceConfig{
			Kind:          config.SourceFile,
			Path:          dataPath,
			EntityColumns: []string{"store_id", "sku"},
			DateColumn:    "date",
		},
		Target: domainfeatures.DefaultTargetColumn,
		Features: &domainfeatures.FeatureSpec{
			Name:     "demo",
			Version:  domainfeatures.DefaultVersion,
			Lag:      &domainfeatures.LagSpec{Lags: []int{1, 7, 14}},
			Rolling:  &domainfeatures.RollingSpec{Windows: []int{7, 28}, Aggregations: []domainfeatures.Aggregation{domainfeatures.AggMean}},
			Calendar: &domainfeatures.CalendarSpec{DayOfWeek: true, IsWeekend: true, IsHoliday: true, Cyclical: true},
			Exogenous: &domainfeatures.ExogenousSpec{
				PriceLags: true,
				Promotion: true,
				Stockout:  true,
			},
			Imputation: &domainfeatures.ImputationSpec{Strategies: map[string]domainfeatures.ImputationStrategy{
				domainfeatures.DefaultTargetColumn: domainfeatures.ImputeForwardFill,
			}},
		},
		Split: backtest.SplitConfig{
			Strategy:     backtest.StrategyExpanding,
			NSplits:      4,
			MinTrainSize: 42,
			Horizon:      14,
		},
		Model:     backtest.ModelConfig{Type: forecast.ModelRidge, Params: map[string]interface{}{"alpha": 1.0}},
		Baselines: internalbacktest.DefaultBaselines(),
		Report:    reportPath,
	}
}

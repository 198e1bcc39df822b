package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"demandcast/adapters/excel"
	"demandcast/app"
	"demandcast/domain/core"
	"demandcast/internal/config"
	"demandcast/internal/container"
	apperrors "demandcast/internal/errors"
)

func newFeaturesCmd(e *env) *cobra.Command {
	var cutoff string
	var output string

	cmd := &cobra.Command{
		Use:   "features [experiment.yaml]",
		Short: "Compute the feature table of an experiment",
		Long: `Load the experiment's source, compute its feature set and write the table.

When --cutoff is given, rows dated after it are dropped before any feature is computed,
so the output only reflects information available on that day.

Example: demandcast features experiment.yaml --cutoff 2024-03-31 --output features.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var at *time.Time
			if cutoff != "" {
				d, err := core.ParseDate(cutoff)
				if err != nil {
					return apperrors.ConfigInvalid(fmt.Sprintf("invalid --cutoff: %v", err))
				}
				at = &d
			}
			return e.runFeatures(cmd.Context(), args[0], at, output)
		},
	}

	cmd.Flags().StringVar(&cutoff, "cutoff", "", "Last date (YYYY-MM-DD) admitted into the computation")
	cmd.Flags().StringVarP(&output, "output", "o", "features.csv", "Output file (.csv or .xlsx)")
	return cmd
}

func (e *env) runFeatures(ctx context.Context, path string, cutoff *time.Time, output string) error {
	exp, err := config.LoadExperiment(path)
	if err != nil {
		return err
	}
	featCfg, err := exp.FeatureConfig()
	if err != nil {
		return err
	}
	if featCfg == nil {
		return apperrors.ConfigInvalid(fmt.Sprintf("experiment %s has no features section", exp.Name))
	}
	query, err := exp.Query()
	if err != nil {
		return err
	}

	loader, err := e.c.SeriesLoader(ctx, exp.Source)
	if err != nil {
		return err
	}
	if err := e.c.InitCache(ctx); err != nil {
		return err
	}

	res, err := e.c.FeatureService(loader).Compute(ctx, app.FeatureRequest{Source: exp.Source.Identity(), Query: query, Config: featCfg, Cutoff: cutoff})
	if err != nil {
		return err
	}

	out := container.FileConfig(exp.Source)
	out.Path = output
	out.ValueColumns = nil
	columns := append([]string{featCfg.TargetColumn()}, res.FeatureColumns...)
	if err := excel.WriteFrame(out, res.Frame, columns); err != nil {
		return err
	}

	fmt.Printf("Wrote %d rows x %d features to %s (config %s)\n",
		res.Stats.OutputRows, len(res.FeatureColumns), output, res.ConfigHash.Short())
	for _, w := range res.Warnings {
		fmt.Printf("warning: %s: %s\n", w.Column, w.Message)
	}
	return nil
}

package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"demandcast/domain/backtest"
	"demandcast/domain/core"
	internalbacktest "demandcast/internal/backtest"
	apperrors "demandcast/internal/errors"
)

func newSplitCmd(_ *env) *cobra.Command {
	var split backtest.SplitConfig
	var strategy string

	cmd := &cobra.Command{
		Use:   "split [start] [end]",
		Short: "Print the rolling-origin folds of a date range",
		Long: `Print the train, gap and test windows the backtest would evaluate.

Test windows are anchored at the end of the range; the last fold ends on [end].

Example: demandcast split 2024-01-01 2024-06-30 --strategy sliding --n-splits 4 --horizon 14 --gap 2`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := core.ParseDate(args[0])
			if err != nil {
				return apperrors.ConfigInvalid(fmt.Sprintf("invalid start: %v", err))
			}
			end, err := core.ParseDate(args[1])
			if err != nil {
				return apperrors.ConfigInvalid(fmt.Sprintf("invalid end: %v", err))
			}
			split.Strategy = backtest.Strategy(strategy)

			folds, err := internalbacktest.Splitter{}.Split(core.DateRange{Start: start, End: end}, split)
			if err != nil {
				return err
			}
			return printFolds(os.Stdout, folds)
		},
	}

	cmd.Flags().StringVar(&strategy, "strategy", string(backtest.StrategyExpanding), "Training window strategy: expanding|sliding")
	cmd.Flags().IntVar(&split.NSplits, "n-splits", 5, "Number of folds")
	cmd.Flags().IntVar(&split.MinTrainSize, "min-train", 30, "Minimum (expanding) or fixed (sliding) training days")
	cmd.Flags().IntVar(&split.Gap, "gap", 0, "Days between training end and test start")
	cmd.Flags().IntVar(&split.Horizon, "horizon", 14, "Test days per fold")
	return cmd
}

func printFolds(out io.Writer, folds []backtest.Fold) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FOLD\tTRAIN\tDAYS\tTEST\tDAYS")
	for i, f := range folds {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%d\n", i, f.TrainRange(), f.TrainSize, f.TestRange(), f.TestSize)
	}
	return w.Flush()
}

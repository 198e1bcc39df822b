package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"demandcast/internal"
	"demandcast/internal/config"
	"demandcast/internal/container"
	apperrors "demandcast/internal/errors"
)

// env is the process state shared by every command.
type env struct {
	c *container.Container
}

func main() {
	e := &env{}
	var envFile string

	rootCmd := &cobra.Command{
		Use:           "demandcast",
		Short:         "Time-safe feature engineering and backtesting for retail demand forecasts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.init(envFile)
		},
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file loaded before reading configuration")

	rootCmd.AddCommand(
		newFeaturesCmd(e),
		newSplitCmd(e),
		newBacktestCmd(e),
		newDemoCmd(e),
	)

	err := rootCmd.Execute()
	if e.c != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = e.c.Shutdown(ctx)
		cancel()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func (e *env) init(envFile string) error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := internal.NewLogger(internal.ParseLogLevel(cfg.Logging.Level), cfg.Logging.Format, os.Stderr)

	c, err := container.New(cfg, log)
	if err != nil {
		return err
	}
	c.StartMetricsServer()
	e.c = c
	return nil
}

// exitCode maps bad input to 2 and a failed leakage audit to 3; anything else is 1.
func exitCode(err error) int {
	switch {
	case apperrors.GetCode(apperrors.FromDomain(err)) == apperrors.CodeLeakageDetected:
		return 3
	case apperrors.IsClientError(err):
		return 2
	}
	return 1
}

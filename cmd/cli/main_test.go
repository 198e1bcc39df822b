package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"demandcast/adapters/forecast"
	"demandcast/domain/backtest"
	"demandcast/domain/core"
	internalbacktest "demandcast/internal/backtest"
	"demandcast/internal/config"
	apperrors "demandcast/internal/errors"
)

func TestDemoExperiment_ParsesBack(t *testing.T) {
	data, err := yaml.Marshal(demoExperiment("demo/sales.csv", "demo/report.html"))
	require.NoError(t, err)

	exp, err := config.ParseExperiment(data)
	require.NoError(t, err)
	assert.Equal(t, forecast.ModelRidge, exp.Model.Type)
	assert.Equal(t, "daily_sales", exp.Source.Table)
	assert.Len(t, exp.Baselines, 2)

	feat, err := exp.FeatureConfig()
	require.NoError(t, err)
	assert.Equal(t, "us", feat.Calendar().HolidayCalendar())
	assert.Equal(t, "price", feat.Exogenous().PriceColumn())
}

func TestPrintFolds(t *testing.T) {
	start, _ := core.ParseDate("2024-01-01")
	end, _ := core.ParseDate("2024-01-20")
	folds, err := internalbacktest.Splitter{}.Split(core.DateRange{Start: start, End: end},
		backtest.SplitConfig{Strategy: backtest.StrategySliding, NSplits: 2, MinTrainSize: 10, Horizon: 5})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printFolds(&buf, folds))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "2024-01-01..2024-01-10")
	assert.Contains(t, lines[2], "2024-01-16..2024-01-20")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 2, exitCode(core.NewValidationError("split", "bad")))
	assert.Equal(t, 3, exitCode(core.NewLeakageError(0, "cutoff after train end")))
	assert.Equal(t, 2, exitCode(apperrors.ConfigInvalid("DATABASE_URL is required")))
	assert.Equal(t, 1, exitCode(assert.AnError))
}

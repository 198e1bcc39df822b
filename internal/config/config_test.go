package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"demandcast/domain/backtest"
	"demandcast/domain/core"
	domainfeatures "demandcast/domain/features"
	"demandcast/domain/series"
	"demandcast/internal/errors"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"DATABASE_URL", "DATABASE_DRIVER", "REDIS_URL", "FEATURE_CACHE_TTL", "LOG_LEVEL", "LOG_FORMAT", "FOLD_PARALLELISM", "METRICS_ADDR"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Redis.CacheTTL)
	assert.Equal(t, 1, cfg.Backtest.FoldParallelism)
	assert.Equal(t, "INFO", cfg.Logging.Level)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("FEATURE_CACHE_TTL", "90m")
	t.Setenv("FOLD_PARALLELISM", "4")
	t.Setenv("DATABASE_DRIVER", "sqlite")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, cfg.Redis.CacheTTL)
	assert.Equal(t, 4, cfg.Backtest.FoldParallelism)
	assert.Equal(t, "sqlite", cfg.Database.Driver)

	t.Setenv("FOLD_PARALLELISM", "0")
	_, err = Load()
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

const weeklyExperiment = `
name: weekly-ridge
source:
  kind: file
  path: sales.csv
  entity_columns: [store_id, sku]
  date_column: date
features:
  lag:
    lags: [7, 1]
  rolling:
    windows: [7]
    aggregations: [mean, std]
  calendar:
    day_of_week: true
    is_holiday: true
split:
  n_splits: 3
  horizon: 7
model:
  type: ridge
  params:
    alpha: 0.5
`

func TestParseExperiment(t *testing.T) {
	exp, err := ParseExperiment([]byte(weeklyExperiment))
	require.NoError(t, err)

	assert.Equal(t, "weekly-ridge", exp.Name)
	assert.Equal(t, "quantity", exp.Target)
	assert.Equal(t, backtest.StrategyExpanding, exp.Split.Strategy)
	assert.Equal(t, 3, exp.Split.NSplits)
	assert.Equal(t, 30, exp.Split.MinTrainSize)
	assert.Equal(t, 7, exp.Split.Horizon)
	assert.Equal(t, "ridge", exp.Model.Type)
	assert.Equal(t, 0.5, exp.Model.Params["alpha"])
	require.Len(t, exp.Baselines, 2, "omitted baselines default to naive and seasonal naive")

	cfg, err := exp.FeatureConfig()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 7}, cfg.Lag().Lags())
	assert.Equal(t, domainfeatures.DefaultTargetColumn, cfg.Lag().TargetColumn())
	assert.Equal(t, domainfeatures.HolidayCalendarUS, cfg.Calendar().HolidayCalendar())

	start, end, err := exp.DateRange()
	require.NoError(t, err)
	assert.Nil(t, start)
	assert.Nil(t, end)
}

func TestParseExperiment_ExplicitEmptyBaselines(t *testing.T) {
	exp, err := ParseExperiment([]byte("source: {path: a.csv}\nmodel: {type: naive}\nbaselines: []\n"))
	require.NoError(t, err)
	assert.Empty(t, exp.Baselines)
	assert.Nil(t, exp.Features)
}

func TestParseExperiment_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad lag":      "source: {path: a.csv}\nmodel: {type: naive}\nfeatures: {lag: {lags: [0]}}\n",
		"no model":     "source: {path: a.csv}\n",
		"bad strategy": "source: {path: a.csv}\nmodel: {type: naive}\nsplit: {strategy: blocked}\n",
		"bad range":    "source: {path: a.csv}\nmodel: {type: naive}\nstart: \"2024-02-01\"\nend: \"2024-01-01\"\n",
		"bad source":   "source: {kind: s3}\nmodel: {type: naive}\n",
		"bad yaml":     "model: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseExperiment([]byte(doc))
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}
}

func TestLoadExperiment_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(weeklyExperiment), 0o644))
	exp, err := LoadExperiment(path)
	require.NoError(t, err)
	assert.Equal(t, "sales.csv", exp.Source.Path)

	_, err = LoadExperiment(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestExperiment_Query(t *testing.T) {
	exp := &Experiment{Entities: []string{"s1|A", "s2|B"}, Start: "2024-01-01"}
	q, err := exp.Query()
	require.NoError(t, err)
	assert.Equal(t, []series.EntityKey{"s1|A", "s2|B"}, q.EntityIDs)
	require.NotNil(t, q.Start)
	assert.Equal(t, "2024-01-01", core.FormatDate(*q.Start))
	assert.Nil(t, q.End)

	_, err = (&Experiment{Start: "2024-02-01", End: "2024-01-01"}).Query()
	assert.True(t, core.IsConfigError(err))
}

func TestSourceConfig_Identity(t *testing.T) {
	a := SourceConfig{Kind: SourceFile, Path: "a.csv", Sheet: "Sheet1"}
	b := SourceConfig{Kind: SourceFile, Path: "b.csv", Sheet: "Sheet1"}
	assert.NotEqual(t, a.Identity(), b.Identity())

	abs, err := filepath.Abs("a.csv")
	require.NoError(t, err)
	assert.Equal(t, a.Identity(), SourceConfig{Kind: SourceFile, Path: abs, Sheet: "Sheet1"}.Identity())

	sales := SourceConfig{Kind: SourceSQL, Table: "daily_sales"}
	assert.Equal(t, "sql:daily_sales", sales.Identity())
	assert.NotEqual(t, sales.Identity(), SourceConfig{Kind: SourceSQL, Table: "sales_2023"}.Identity())
}

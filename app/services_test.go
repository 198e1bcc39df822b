package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"demandcast/adapters/forecast"
	"demandcast/adapters/redis"
	"demandcast/domain/backtest"
	"demandcast/domain/core"
	domainfeatures "demandcast/domain/features"
	"demandcast/domain/series"
	internalbacktest "demandcast/internal/backtest"
	"demandcast/internal/features"
	"demandcast/internal/testkit"
	"demandcast/ports"
)

type mockLoader struct {
	mock.Mock
}

func (m *mockLoader) LoadSeries(ctx context.Context, q ports.SeriesQuery) (*series.Frame, error) {
	args := m.Called(ctx, q)
	f, _ := args.Get(0).(*series.Frame)
	return f, args.Error(1)
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, key string) (*domainfeatures.Result, error) {
	args := m.Called(ctx, key)
	r, _ := args.Get(0).(*domainfeatures.Result)
	return r, args.Error(1)
}

func (m *mockCache) Put(ctx context.Context, key string, result *domainfeatures.Result, ttl time.Duration) error {
	return m.Called(ctx, key, result, ttl).Error(0)
}

func salesFrame(days int) *series.Frame {
	cfg := testkit.DefaultRetailConfig()
	cfg.StoreCount = 2
	cfg.SKUCount = 2
	cfg.Days = days
	return testkit.NewRetailGenerator(cfg).Generate()
}

func weeklyConfig(t *testing.T) *domainfeatures.FeatureConfig {
	t.Helper()
	cfg, err := domainfeatures.FeatureSpec{
		Name:     "weekly",
		Lag:      &domainfeatures.LagSpec{Lags: []int{1, 7}},
		Rolling:  &domainfeatures.RollingSpec{Windows: []int{7}},
		Calendar: &domainfeatures.CalendarSpec{DayOfWeek: true},
	}.Build()
	require.NoError(t, err)
	return cfg
}

func TestFeatureService_CachesByKey(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	engine := features.NewEngine(logger, nil)
	cfg := weeklyConfig(t)
	frame := salesFrame(40)
	cutoff := core.AddDays(testkit.DefaultRetailConfig().StartDate, 30)
	req := FeatureRequest{Source: "file:/data/sales.csv:Sheet1", Config: cfg, Cutoff: &cutoff}
	key := CacheKey(cfg, req.Source, req.Query, req.Cutoff)

	loader := &mockLoader{}
	loader.On("LoadSeries", mock.Anything, req.Query).Return(frame, nil).Once()
	cache := &mockCache{}
	cache.On("Get", mock.Anything, key).Return(nil, nil).Once()
	cache.On("Put", mock.Anything, key, mock.AnythingOfType("*features.Result"), time.Hour).Return(nil).Once()

	svc := NewFeatureService(loader, engine, cache, time.Hour, logger)
	res, err := svc.Compute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, cfg.Hash(), res.ConfigHash)
	maxDate, ok := res.MaxDate()
	require.True(t, ok)
	assert.False(t, maxDate.After(cutoff))

	cache.On("Get", mock.Anything, key).Return(res, nil).Once()
	again, err := svc.Compute(context.Background(), req)
	require.NoError(t, err)
	assert.Same(t, res, again)

	loader.AssertExpectations(t)
	cache.AssertExpectations(t)
}

type versionedLoader struct {
	mockLoader
	version string
}

func (l *versionedLoader) SourceVersion(ctx context.Context) (string, error) {
	if l.version == "" {
		return "", errors.New("stat failed")
	}
	return l.version, nil
}

func newRedisCache(t *testing.T) *redis.FeatureCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redis.NewFeatureCache(client, nil, nil)
}

func TestFeatureService_SourcesDoNotShareCache(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	engine := features.NewEngine(logger, nil)
	cache := newRedisCache(t)
	cfg := weeklyConfig(t)
	ctx := context.Background()

	small := &mockLoader{}
	small.On("LoadSeries", mock.Anything, mock.Anything).Return(salesFrame(40), nil).Once()
	large := &mockLoader{}
	large.On("LoadSeries", mock.Anything, mock.Anything).Return(salesFrame(60), nil).Once()

	a, err := NewFeatureService(small, engine, cache, time.Hour, logger).
		Compute(ctx, FeatureRequest{Source: "file:/data/a.csv:Sheet1", Config: cfg})
	require.NoError(t, err)
	assert.Equal(t, 160, a.Stats.OutputRows)

	b, err := NewFeatureService(large, engine, cache, time.Hour, logger).
		Compute(ctx, FeatureRequest{Source: "file:/data/b.csv:Sheet1", Config: cfg})
	require.NoError(t, err)
	assert.Equal(t, 240, b.Stats.OutputRows)
	assert.Equal(t, 240, b.Frame.Len())

	small.AssertExpectations(t)
	large.AssertExpectations(t)
}

func TestFeatureService_SourceVersionInvalidatesCache(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	cache := newRedisCache(t)
	cfg := weeklyConfig(t)
	ctx := context.Background()
	req := FeatureRequest{Source: "file:/data/sales.csv:Sheet1", Config: cfg}

	loader := &versionedLoader{version: "v1"}
	loader.On("LoadSeries", mock.Anything, mock.Anything).Return(salesFrame(40), nil).Once()
	svc := NewFeatureService(loader, features.NewEngine(logger, nil), cache, time.Hour, logger)

	first, err := svc.Compute(ctx, req)
	require.NoError(t, err)
	cached, err := svc.Compute(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.Stats, cached.Stats)
	loader.AssertNumberOfCalls(t, "LoadSeries", 1)

	loader.version = "v2"
	loader.On("LoadSeries", mock.Anything, mock.Anything).Return(salesFrame(60), nil).Once()
	rewritten, err := svc.Compute(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 240, rewritten.Stats.OutputRows)

	loader.version = ""
	loader.On("LoadSeries", mock.Anything, mock.Anything).Return(salesFrame(20), nil).Once()
	uncached, err := svc.Compute(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 80, uncached.Stats.OutputRows)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "Cannot version feature source, skipping cache", hook.LastEntry().Message)
	loader.AssertExpectations(t)
}

func TestFeatureService_CacheFailuresAreNotFatal(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	loader := &mockLoader{}
	loader.On("LoadSeries", mock.Anything, mock.Anything).Return(salesFrame(20), nil)
	cache := &mockCache{}
	cache.On("Get", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))
	cache.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	svc := NewFeatureService(loader, features.NewEngine(logger, nil), cache, 0, logger)
	res, err := svc.Compute(context.Background(), FeatureRequest{Config: weeklyConfig(t)})
	require.NoError(t, err)
	assert.Equal(t, 80, res.Stats.OutputRows)
	assert.Len(t, hook.AllEntries(), 2)
}

func TestFeatureService_Errors(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	loader := &mockLoader{}
	loader.On("LoadSeries", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))
	svc := NewFeatureService(loader, features.NewEngine(logger, nil), nil, 0, logger)

	_, err := svc.Compute(context.Background(), FeatureRequest{})
	assert.True(t, core.IsConfigError(err))

	_, err = svc.Compute(context.Background(), FeatureRequest{Config: weeklyConfig(t)})
	assert.ErrorContains(t, err, "db down")
}

func TestCacheKey(t *testing.T) {
	cfg := weeklyConfig(t)
	day := testkit.DefaultRetailConfig().StartDate
	q := ports.SeriesQuery{EntityIDs: []series.EntityKey{"a", "b"}}
	a := CacheKey(cfg, "sql:daily_sales", ports.SeriesQuery{EntityIDs: []series.EntityKey{"b", "a"}}, &day)
	b := CacheKey(cfg, "sql:daily_sales", q, &day)
	assert.Equal(t, a, b, "entity order does not matter")

	later := core.AddDays(day, 1)
	assert.NotEqual(t, a, CacheKey(cfg, "sql:daily_sales", q, &later))
	assert.NotEqual(t, a, CacheKey(cfg, "sql:daily_sales", q, nil))
	assert.NotEqual(t, a, CacheKey(cfg, "sql:sales_2023", q, &day))
	assert.NotEqual(t, CacheKey(cfg, "file:/data/a.csv:Sheet1", ports.SeriesQuery{}, nil),
		CacheKey(cfg, "file:/data/b.csv:Sheet1", ports.SeriesQuery{}, nil))
}

func newBacktestService(loader ports.SeriesLoader) *BacktestService {
	logger, _ := logtest.NewNullLogger()
	engine := features.NewEngine(logger, nil)
	evaluator := internalbacktest.NewEvaluator(forecast.NewFactory(engine), engine, logger, nil, internalbacktest.Config{Parallelism: 2})
	return NewBacktestService(loader, evaluator, logger)
}

func TestBacktestService_RidgeAgainstBaselines(t *testing.T) {
	loader := &mockLoader{}
	loader.On("LoadSeries", mock.Anything, mock.Anything).Return(salesFrame(100), nil)

	split, err := backtest.NewSplitConfig(backtest.StrategyExpanding, 3, 30, 0, 7)
	require.NoError(t, err)
	result, err := newBacktestService(loader).Run(context.Background(), BacktestRequest{
		Split:     split,
		Model:     backtest.ModelConfig{Type: forecast.ModelRidge, Params: map[string]interface{}{"alpha": 1.0}},
		Features:  weeklyConfig(t),
		Baselines: internalbacktest.DefaultBaselines(),
	})
	require.NoError(t, err)

	assert.True(t, result.LeakageCheckPassed)
	assert.Len(t, result.EntityIDs, 4)
	require.Len(t, result.Main.FoldResults, 3)
	for _, f := range result.Main.FoldResults {
		assert.Len(t, f.Actuals, 4*7)
		require.NotNil(t, f.FeatureCutoff)
		assert.True(t, f.FeatureCutoff.Equal(f.Fold.TrainEnd))
	}
	require.Len(t, result.Baselines, 2)
	require.NotNil(t, result.Comparison)
	assert.Len(t, result.Comparison.Comparisons, 2)
}

func TestBacktestService_NoData(t *testing.T) {
	loader := &mockLoader{}
	loader.On("LoadSeries", mock.Anything, mock.Anything).Return(series.NewFrame("quantity"), nil)

	split, _ := backtest.NewSplitConfig(backtest.StrategyExpanding, 1, 5, 0, 1)
	_, err := newBacktestService(loader).Run(context.Background(), BacktestRequest{
		Split: split,
		Model: backtest.ModelConfig{Type: forecast.ModelNaive},
	})
	assert.ErrorIs(t, err, core.ErrNoData)
	assert.NotErrorIs(t, err, core.ErrInsufficientData)
}

func TestBacktestService_QueryBoundsDefineRange(t *testing.T) {
	frame := salesFrame(60)
	loader := &mockLoader{}
	loader.On("LoadSeries", mock.Anything, mock.Anything).Return(frame, nil)

	start := testkit.DefaultRetailConfig().StartDate
	end := core.AddDays(start, 69) // ten days beyond the data
	split, _ := backtest.NewSplitConfig(backtest.StrategySliding, 2, 30, 1, 7)
	result, err := newBacktestService(loader).Run(context.Background(), BacktestRequest{
		Query: ports.SeriesQuery{Start: &start, End: &end},
		Split: split,
		Model: backtest.ModelConfig{Type: forecast.ModelNaive},
	})
	require.NoError(t, err)
	assert.Equal(t, core.DateRange{Start: start, End: end}, result.DateRange)
	last := result.Main.FoldResults[len(result.Main.FoldResults)-1]
	assert.Equal(t, end, last.Fold.TestEnd)
	assert.Empty(t, last.Actuals, "no actuals exist past the data")
}

func TestCacheKey_PrefixedByConfigHash(t *testing.T) {
	cfg := weeklyConfig(t)
	key := CacheKey(cfg, "", ports.SeriesQuery{}, nil)
	assert.True(t, strings.HasPrefix(key, cfg.Hash().String()+":"))
}

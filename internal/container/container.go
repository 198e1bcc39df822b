package container

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"demandcast/adapters/excel"
	"demandcast/adapters/forecast"
	"demandcast/adapters/postgres"
	"demandcast/adapters/redis"
	"demandcast/app"
	internalbacktest "demandcast/internal/backtest"
	"demandcast/internal/config"
	apperrors "demandcast/internal/errors"
	"demandcast/internal/features"
	"demandcast/internal/observability"
	"demandcast/ports"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Log    *logrus.Logger

	// Observability
	Registry *prometheus.Registry
	Metrics  *observability.Metrics

	// Core components
	Engine    *features.Engine
	Factory   ports.ModelFactory
	Evaluator *internalbacktest.Evaluator

	// Infrastructure, opened on demand
	DB    *sqlx.DB
	Cache ports.FeatureCache

	redisClient   *goredis.Client
	metricsServer *http.Server
}

// New creates the container and the components that need no external connection
func New(cfg *config.Config, log *logrus.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	c := &Container{
		Config:   cfg,
		Log:      log,
		Registry: prometheus.NewRegistry(),
	}
	c.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	c.Metrics = observability.NewMetrics(c.Registry)

	c.Engine = features.NewEngine(log, c.Metrics)
	c.Factory = forecast.NewFactory(c.Engine)
	c.Evaluator = internalbacktest.NewEvaluator(c.Factory, c.Engine, log, c.Metrics, internalbacktest.Config{
		Parallelism: cfg.Backtest.FoldParallelism,
	})
	return c, nil
}

// StartMetricsServer serves the registry when METRICS_ADDR is set.
func (c *Container) StartMetricsServer() {
	if c.Config.Metrics.Addr == "" || c.metricsServer != nil {
		return
	}
	c.metricsServer = observability.StartMetricsServer(c.Config.Metrics.Addr, c.Registry, c.Log)
}

// InitWithDatabase opens the configured database once.
func (c *Container) InitWithDatabase(ctx context.Context) error {
	if c.DB != nil {
		return nil
	}
	if c.Config.Database.URL == "" {
		return apperrors.ConfigInvalid("DATABASE_URL is required for sql sources")
	}
	db, err := postgres.Open(ctx, c.Config.Database.Driver, c.Config.Database.URL)
	if err != nil {
		return apperrors.DatabaseError("failed to open database", err)
	}
	c.DB = db
	c.Log.WithField("driver", c.Config.Database.Driver).Debug("Database connection established")
	return nil
}

// InitCache connects the feature cache when REDIS_URL is set. An unreachable server leaves the
// cache disabled.
func (c *Container) InitCache(ctx context.Context) error {
	if c.Config.Redis.URL == "" || c.Cache != nil {
		return nil
	}
	opts, err := goredis.ParseURL(c.Config.Redis.URL)
	if err != nil {
		return apperrors.ConfigInvalid(fmt.Sprintf("invalid REDIS_URL: %v", err))
	}
	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		c.Log.WithError(err).Warn("Redis unavailable, feature cache disabled")
		_ = client.Close()
		return nil
	}
	c.redisClient = client
	c.Cache = redis.NewFeatureCache(client, c.Metrics, c.Log)
	return nil
}

// SeriesLoader builds the loader for an experiment source.
func (c *Container) SeriesLoader(ctx context.Context, src config.SourceConfig) (ports.SeriesLoader, error) {
	switch src.Kind {
	case config.SourceFile:
		reader, err := excel.NewDataReader(FileConfig(src), c.Log)
		if err != nil {
			return nil, err
		}
		return reader, nil
	case config.SourceSQL:
		if err := c.InitWithDatabase(ctx); err != nil {
			return nil, err
		}
		return postgres.NewSeriesLoader(c.DB, SeriesTable(src), c.Log)
	}
	return nil, apperrors.ConfigInvalid(fmt.Sprintf("unknown source kind %q", src.Kind))
}

func (c *Container) FeatureService(loader ports.SeriesLoader) *app.FeatureService {
	return app.NewFeatureService(loader, c.Engine, c.Cache, c.Config.Redis.CacheTTL, c.Log)
}

func (c *Container) BacktestService(loader ports.SeriesLoader) *app.BacktestService {
	return app.NewBacktestService(loader, c.Evaluator, c.Log)
}

// FileConfig maps a file source onto the spreadsheet reader's layout.
func FileConfig(src config.SourceConfig) excel.FileConfig {
	cfg := excel.DefaultFileConfig(src.Path)
	if src.Sheet != "" {
		cfg.Sheet = src.Sheet
	}
	if len(src.EntityColumns) > 0 {
		cfg.EntityColumns = src.EntityColumns
	}
	if src.DateColumn != "" {
		cfg.DateColumn = src.DateColumn
	}
	cfg.ValueColumns = src.ValueColumns
	return cfg
}

// SeriesTable maps a sql source onto a table layout.
func SeriesTable(src config.SourceConfig) postgres.SeriesTable {
	t := postgres.DefaultSeriesTable()
	if src.Table != "" {
		t.Name = src.Table
	}
	if len(src.EntityColumns) > 0 {
		t.EntityColumns = src.EntityColumns
	}
	if src.DateColumn != "" {
		t.DateColumn = src.DateColumn
	}
	if len(src.ValueColumns) > 0 {
		t.ValueColumns = src.ValueColumns
	}
	return t
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			c.Log.WithError(err).Warn("Metrics server shutdown failed")
		}
	}
	if c.redisClient != nil {
		_ = c.redisClient.Close()
	}
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

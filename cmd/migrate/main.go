package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"demandcast/adapters/db/postgres/migrations"
	"demandcast/adapters/excel"
	"demandcast/adapters/postgres"
	"demandcast/adapters/redis"
	"demandcast/internal"
	"demandcast/internal/config"
	"demandcast/ports"
)

const usage = `Usage:
  migrate up                 apply pending schema migrations
  migrate status             list migrations and whether they are applied
  migrate import <file>      load a .csv/.xlsx sales file (store_id, sku, date, ...) into daily_sales`

func main() {
	_ = godotenv.Load()
	log := internal.NewDefaultLogger()

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err := run(context.Background(), log, os.Args[1], os.Args[2:]); err != nil {
		log.WithError(err).Fatal("Migration failed")
	}
}

func run(ctx context.Context, log *logrus.Logger, command string, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	db, err := postgres.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	migrator := migrations.NewMigrator(db, log)
	switch command {
	case "up":
		applied, err := migrator.Up(ctx)
		if err != nil {
			return err
		}
		log.WithField("applied", applied).Infof("Applied %d migrations", len(applied))
		return nil

	case "status":
		statuses, err := migrator.Status(ctx)
		if err != nil {
			return err
		}
		for _, s := range statuses {
			state := "pending"
			if s.Applied {
				state = "applied"
			}
			fmt.Printf("%s  %-30s %s\n", s.Version, s.Name, state)
		}
		return nil

	case "import":
		if len(args) != 1 {
			return fmt.Errorf("import takes exactly one file")
		}
		if _, err := migrator.Up(ctx); err != nil {
			return err
		}
		reader, err := excel.NewDataReader(excel.DefaultFileConfig(args[0]), log)
		if err != nil {
			return err
		}
		frame, err := reader.LoadSeries(ctx, ports.SeriesQuery{})
		if err != nil {
			return err
		}
		writer, err := postgres.NewSeriesWriter(db, postgres.DefaultSeriesTable(), log)
		if err != nil {
			return err
		}
		n, err := writer.SaveSeries(ctx, frame)
		if err != nil {
			return err
		}
		log.WithField("entity_count", len(frame.EntityKeys())).Infof("Imported %d rows from %s", n, args[0])
		return purgeFeatureCache(ctx, cfg, log)
	}
	return fmt.Errorf("unknown command %q\n%s", command, usage)
}

// purgeFeatureCache drops cached feature tables, which may have been computed from the rows just
// replaced. Without REDIS_URL there is nothing to purge.
func purgeFeatureCache(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	if cfg.Redis.URL == "" {
		return nil
	}
	opts, err := goredis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := goredis.NewClient(opts)
	defer client.Close()

	removed, err := redis.NewFeatureCache(client, nil, log).Purge(ctx)
	if err != nil {
		log.WithError(err).Warn("Feature cache not purged; cached tables may predate this import")
		return nil
	}
	log.WithField("removed", removed).Info("Purged feature cache")
	return nil
}

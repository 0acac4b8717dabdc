package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/sqlassist/sqlassist/internal/config"
	"github.com/sqlassist/sqlassist/internal/observability"
	"github.com/sqlassist/sqlassist/internal/seed"
	"github.com/sqlassist/sqlassist/internal/sqlstore"
	"github.com/sqlassist/sqlassist/internal/storage"
	s3store "github.com/sqlassist/sqlassist/internal/storage/s3"
)

const dataset = "customers"

func main() {
	cfg, err := config.LoadFromEnv("sqlassist-seed")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	driver := flag.String("driver", cfg.Store.Driver, "store driver: sqlite3|duckdb")
	path := flag.String("path", cfg.Store.Path, "store file to create or update")
	replace := flag.Bool("replace", false, "remove an existing store file first")
	extra := flag.Int("extra", 0, "generated customers to add after the sample rows")
	randSeed := flag.Int64("seed", 1, "seed for generated customers")
	publish := flag.Bool("publish", false, "upload the store file to the object store")
	flag.Parse()

	logger := observability.NewLogger(cfg, os.Stdout)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	summary, err := seed.Write(ctx, seed.Config{
		Driver:         *driver,
		Path:           *path,
		Replace:        *replace,
		ExtraCustomers: *extra,
		Seed:           *randSeed,
	})
	if err != nil {
		logger.Error("seed failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("store seeded",
		slog.String("driver", summary.Driver),
		slog.String("path", summary.Path),
		slog.Int("customers", summary.Customers),
		slog.Int("orders", summary.Orders),
	)

	if !*publish {
		return
	}
	if err := publishStore(ctx, cfg, summary, logger); err != nil {
		logger.Error("publish failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// publishStore uploads the store under an immutable snapshot key and then
// repoints the latest key API replicas fetch on start.
func publishStore(ctx context.Context, cfg config.Config, summary seed.Summary, logger *slog.Logger) error {
	objectStore, err := s3store.New(ctx, s3store.ConfigFrom(cfg.ObjectStore))
	if err != nil {
		return err
	}

	snapshotKey, err := storage.BuildSnapshotKey(dataset, summary.Driver, time.Now())
	if err != nil {
		return err
	}
	latestKey, err := storage.BuildLatestKey(dataset, summary.Driver)
	if err != nil {
		return err
	}
	snapshot, latest, err := sqlstore.Publish(ctx, objectStore, summary.Path, snapshotKey, latestKey, map[string]string{
		"driver":    summary.Driver,
		"customers": strconv.Itoa(summary.Customers),
		"orders":    strconv.Itoa(summary.Orders),
	})
	if err != nil {
		return err
	}
	logger.Info("store published",
		slog.String("snapshot", snapshot.Key),
		slog.String("latest", latest.Key),
		slog.Int64("bytes", snapshot.Size),
	)
	return nil
}

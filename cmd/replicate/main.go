// Command replicate copies every stored content record from MongoDB into
// Postgres.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"content-ingest/pkg/config"
	"content-ingest/pkg/db"
	"content-ingest/pkg/logger"
	"content-ingest/pkg/replication"
)

func main() {
	var (
		envFile   = flag.String("env", ".env", "Optional .env file")
		batchSize = flag.Int("batch-size", 100, "Records per upsert batch")
		workers   = flag.Int("workers", 5, "Concurrent batch writers")
	)
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		logger.New("replicate", "info").Error("load config", slog.Any("err", err))
		os.Exit(1)
	}
	log := logger.New("replicate", cfg.LogLevel)

	if cfg.PostgresDSN == "" {
		log.Error("POSTGRES_DSN is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	mongo, err := db.NewClient(ctx, cfg.MongoURI, cfg.MongoDB, cfg.MongoCollection)
	if err != nil {
		log.Error("create mongo client", slog.Any("err", err))
		os.Exit(1)
	}
	defer mongo.Close(context.Background())
	if err := mongo.Connect(ctx); err != nil {
		log.Error("connect mongo", slog.Any("err", err))
		os.Exit(1)
	}

	pg := db.NewPostgresClient(db.PostgresConfig{
		DSN:          cfg.PostgresDSN,
		MaxOpenConns: *workers,
		MaxIdleConns: *workers,
		ConnMaxIdle:  5 * time.Minute,
	})
	if err := pg.Connect(ctx); err != nil {
		log.Error("connect postgres", slog.Any("err", err))
		os.Exit(1)
	}
	defer pg.Close()

	replicator, err := replication.NewReplicator(replication.Config{
		Source:    mongo,
		Target:    pg,
		BatchSize: *batchSize,
		Workers:   *workers,
		Log:       log,
	})
	if err != nil {
		log.Error("create replicator", slog.Any("err", err))
		os.Exit(1)
	}

	res, err := replicator.Replicate(ctx)
	if err != nil {
		log.Error("replicate", slog.Any("err", err))
		os.Exit(1)
	}
	if res.FailedBatches > 0 {
		os.Exit(1)
	}
}

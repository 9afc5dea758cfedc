// Package replication copies stored content records from the document store
// into Postgres.
package replication

import (
	"context"
	"fmt"
	"log/slog"

	"content-ingest/pkg/domain"
	"content-ingest/pkg/logger"
	"content-ingest/pkg/worker"
)

// RecordReader streams stored records in batches.
type RecordReader interface {
	ForEachBatch(ctx context.Context, size int, fn func([]domain.ContentRecord) error) error
}

// RecordWriter upserts batches of records.
type RecordWriter interface {
	EnsureSchema(ctx context.Context) error
	UpsertRecords(ctx context.Context, records []domain.ContentRecord) (int, error)
}

// Config wires the replication dependencies.
type Config struct {
	Source    RecordReader
	Target    RecordWriter
	BatchSize int
	Workers   int
	Log       *slog.Logger
}

// Replicator copies every record from Source to Target.
type Replicator struct {
	source    RecordReader
	target    RecordWriter
	batchSize int
	workers   int
	log       *slog.Logger
}

// Result summarizes a replication run.
type Result struct {
	Batches       int
	FailedBatches int
	Read          int
	Written       int
}

func NewReplicator(cfg Config) (*Replicator, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("record source is required")
	}
	if cfg.Target == nil {
		return nil, fmt.Errorf("record target is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	return &Replicator{
		source:    cfg.Source,
		target:    cfg.Target,
		batchSize: cfg.BatchSize,
		workers:   cfg.Workers,
		log:       logger.OrDiscard(cfg.Log),
	}, nil
}

// Replicate upserts every stored record into the target. A failed batch is
// logged and counted; the run goes on with the remaining batches.
func (r *Replicator) Replicate(ctx context.Context) (Result, error) {
	if err := r.target.EnsureSchema(ctx); err != nil {
		return Result{}, err
	}

	var batches [][]domain.ContentRecord
	err := r.source.ForEachBatch(ctx, r.batchSize, func(batch []domain.ContentRecord) error {
		batches = append(batches, batch)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("read records: %w", err)
	}

	var res Result
	res.Batches = len(batches)
	for _, b := range batches {
		res.Read += len(b)
	}
	r.log.Info("loaded records", slog.Int("records", res.Read), slog.Int("batches", res.Batches))

	written := make(chan int, len(batches))
	summary := worker.NewManager[[]domain.ContentRecord](r.workers).
		OnOutcome(func(o worker.Outcome[[]domain.ContentRecord]) {
			if o.Err != nil {
				r.log.Error("replicate batch", slog.Int("size", len(o.Item)), slog.Any("err", o.Err))
			}
		}).
		Process(ctx, batches, func(ctx context.Context, batch []domain.ContentRecord) error {
			n, err := r.target.UpsertRecords(ctx, batch)
			if err != nil {
				return err
			}
			written <- n
			return nil
		})
	close(written)

	for n := range written {
		res.Written += n
	}
	res.FailedBatches = summary.Failed

	r.log.Info("replication complete",
		slog.Int("read", res.Read),
		slog.Int("written", res.Written),
		slog.Int("failed_batches", res.FailedBatches),
	)
	return res, nil
}

package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"content-ingest/pkg/config"
	"content-ingest/pkg/db"
	"content-ingest/pkg/dedupe"
	"content-ingest/pkg/logger"
	"content-ingest/pkg/sources"
)

// CloseFunc releases what Build opened.
type CloseFunc func(ctx context.Context) error

// Build connects every sink named in cfg.Sinks and returns them behind a
// Dedupe wrapper. On error, sinks opened so far are closed.
func Build(ctx context.Context, cfg *config.Config, log *slog.Logger) (sources.Sink, CloseFunc, error) {
	log = logger.OrDiscard(log)

	var (
		sinks   Multi
		closers []CloseFunc
	)
	closeAll := func(ctx context.Context) error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	fail := func(err error) (sources.Sink, CloseFunc, error) {
		_ = closeAll(ctx)
		return nil, nil, err
	}

	for _, name := range cfg.Sinks {
		switch name {
		case config.SinkLog:
			sinks = append(sinks, NewLog(log))

		case config.SinkJSON:
			f, err := OpenJSONFile(cfg.JSONOutput)
			if err != nil {
				return fail(err)
			}
			sinks = append(sinks, f)
			closers = append(closers, func(context.Context) error { return f.Close() })

		case config.SinkMongo:
			client, err := db.NewClient(ctx, cfg.MongoURI, cfg.MongoDB, cfg.MongoCollection)
			if err != nil {
				return fail(err)
			}
			closers = append(closers, client.Close)
			if err := client.Connect(ctx); err != nil {
				return fail(err)
			}
			sinks = append(sinks, NewMongo(client))

		case config.SinkPostgres:
			client := db.NewPostgresClient(db.PostgresConfig{DSN: cfg.PostgresDSN, MaxOpenConns: cfg.EnrichWorkers})
			if err := client.Connect(ctx); err != nil {
				return fail(err)
			}
			closers = append(closers, func(context.Context) error { return client.Close() })
			if err := client.EnsureSchema(ctx); err != nil {
				return fail(err)
			}
			sinks = append(sinks, NewPostgres(client))

		case config.SinkSupabase:
			client := db.NewSupabaseClient(db.SupabaseConfig{
				SupabaseURL: cfg.SupabaseURL,
				SupabaseKey: cfg.SupabaseKey,
				Table:       cfg.SupabaseTable,
			})
			if err := client.Connect(ctx); err != nil {
				return fail(err)
			}
			sinks = append(sinks, NewSupabase(client))

		case config.SinkKafka:
			writer := NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
			closers = append(closers, func(context.Context) error { return writer.Close() })
			sinks = append(sinks, NewKafka(writer))

		case config.SinkElasticsearch:
			es, err := NewElasticsearch(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex)
			if err != nil {
				return fail(err)
			}
			if err := es.Ping(ctx); err != nil {
				return fail(err)
			}
			sinks = append(sinks, es)

		default:
			return fail(fmt.Errorf("unknown sink %q", name))
		}
		log.Info("sink ready", slog.String("sink", name))
	}

	if len(sinks) == 0 {
		sinks = append(sinks, NewLog(log))
	}

	cache := dedupe.NewCache(cfg.DedupeCapacity, cfg.DedupeTTL)
	return NewDedupe(sinks, cache, log), closeAll, nil
}

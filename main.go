package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"content-ingest/pkg/config"
	"content-ingest/pkg/domain"
	"content-ingest/pkg/ingest"
	"content-ingest/pkg/logger"
	"content-ingest/pkg/schedule"
	"content-ingest/pkg/sink"
)

func main() {
	var (
		envFile  = flag.String("env", ".env", "Optional .env file")
		source   = flag.String("source", "", "Source to run: article-host, podcast-host, video-host or podcast-feed")
		term     = flag.String("term", "", "Search term")
		kind     = flag.String("kind", "init", "Job kind: init or daily")
		jobsFile = flag.String("jobs", "", "YAML job file; overrides -source/-term/-kind")
	)
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		logger.New("ingest", "info").Error("load config", slog.Any("err", err))
		os.Exit(1)
	}
	log := logger.New("ingest", cfg.LogLevel)

	triggers, err := triggersFromFlags(*jobsFile, *source, *term, *kind)
	if err != nil {
		log.Error("invalid job", slog.Any("err", err))
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	out, closeSinks, err := sink.Build(ctx, cfg, log)
	if err != nil {
		log.Error("build sinks", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := closeSinks(context.Background()); err != nil {
			log.Error("close sinks", slog.Any("err", err))
		}
	}()

	runner := ingest.NewRunner(ingest.NewDefaultRegistry(cfg, out, log), cfg.DailyWindow, log)
	total, err := runner.RunAll(ctx, triggers)
	if err != nil {
		log.Error("run jobs", slog.Any("err", err))
		os.Exit(1)
	}
	log.Info("all jobs finished",
		slog.Int("jobs", len(triggers)),
		slog.Int("discovered", total.Discovered),
		slog.Int("emitted", total.Emitted),
		slog.Int("dropped", total.Dropped),
	)
}

func triggersFromFlags(jobsFile, source, term, kind string) ([]ingest.Trigger, error) {
	if jobsFile != "" {
		return schedule.Load(jobsFile)
	}
	k, err := ingest.ParseJobKind(kind)
	if err != nil {
		return nil, err
	}
	t := ingest.Trigger{Source: domain.Source(source), Term: term, Kind: k}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return []ingest.Trigger{t}, nil
}

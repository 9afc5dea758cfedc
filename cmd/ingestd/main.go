// Command ingestd accepts ingestion jobs over HTTP and runs them in the
// background.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"content-ingest/pkg/config"
	"content-ingest/pkg/ingest"
	"content-ingest/pkg/logger"
	"content-ingest/pkg/sink"
)

func main() {
	envFile := flag.String("env", ".env", "Optional .env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		logger.New("ingestd", "info").Error("load config", slog.Any("err", err))
		os.Exit(1)
	}
	log := logger.New("ingestd", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	out, closeSinks, err := sink.Build(ctx, cfg, log)
	if err != nil {
		log.Error("build sinks", slog.Any("err", err))
		os.Exit(1)
	}

	registry := ingest.NewDefaultRegistry(cfg, out, log)
	srv := newServer(ctx, ingest.NewRunner(registry, cfg.DailyWindow, log), registry.Names(), log)

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("listening", slog.String("addr", cfg.BindAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", slog.Any("err", err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", slog.Any("err", err))
	}
	srv.wait()
	if err := closeSinks(shutdownCtx); err != nil {
		log.Error("close sinks", slog.Any("err", err))
	}
}

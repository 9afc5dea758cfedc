package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"content-ingest/pkg/domain"
	"content-ingest/pkg/ingest"
	"content-ingest/pkg/sources"
)

type jobRunner interface {
	Run(ctx context.Context, t ingest.Trigger) (sources.Stats, error)
}

type server struct {
	runner  jobRunner
	sources []domain.Source
	log     *slog.Logger

	// jobs outlive the request that accepted them.
	baseCtx context.Context
	jobs    sync.WaitGroup
}

type errorResponse struct {
	Error string `json:"error"`
}

type jobAccepted struct {
	Status string         `json:"status"`
	Job    ingest.Trigger `json:"job"`
}

func newServer(ctx context.Context, runner jobRunner, names []domain.Source, log *slog.Logger) *server {
	return &server{runner: runner, sources: names, log: log, baseCtx: ctx}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/sources", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.sources)
	})
	r.Post("/jobs", s.handleTrigger)
	return r
}

func (s *server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var t ingest.Trigger
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	kind, err := ingest.ParseJobKind(string(t.Kind))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	t.Kind = kind
	if err := t.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if !s.known(t.Source) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: ingest.ErrUnknownSource.Error() + ": " + string(t.Source)})
		return
	}

	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		if _, err := s.runner.Run(s.baseCtx, t); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error("job failed", slog.String("source", string(t.Source)), slog.String("term", t.Term), slog.Any("err", err))
		}
	}()

	writeJSON(w, http.StatusAccepted, jobAccepted{Status: "accepted", Job: t})
}

func (s *server) known(name domain.Source) bool {
	for _, n := range s.sources {
		if n == name {
			return true
		}
	}
	return false
}

// wait blocks until every accepted job returned.
func (s *server) wait() {
	s.jobs.Wait()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

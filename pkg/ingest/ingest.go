// Package ingest resolves source adapters by name and runs init or daily
// jobs against them.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"content-ingest/pkg/domain"
	"content-ingest/pkg/logger"
	"content-ingest/pkg/sources"
)

var (
	ErrUnknownSource  = errors.New("unknown source")
	ErrUnknownJobKind = errors.New("unknown job kind")
	ErrEmptyTerm      = errors.New("search term is empty")
)

// JobKind selects between a full backfill and an incremental run.
type JobKind string

const (
	KindInit  JobKind = "init"
	KindDaily JobKind = "daily"
)

// ParseJobKind validates raw.
func ParseJobKind(raw string) (JobKind, error) {
	switch kind := JobKind(strings.ToLower(strings.TrimSpace(raw))); kind {
	case KindInit, KindDaily:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownJobKind, raw)
	}
}

// Trigger asks for one job.
type Trigger struct {
	Source domain.Source `json:"source" yaml:"source"`
	Term   string        `json:"term" yaml:"term"`
	Kind   JobKind       `json:"kind" yaml:"kind"`
}

// Validate checks the trigger without resolving the source.
func (t Trigger) Validate() error {
	if strings.TrimSpace(t.Term) == "" {
		return ErrEmptyTerm
	}
	if _, err := ParseJobKind(string(t.Kind)); err != nil {
		return err
	}
	return nil
}

type entry struct {
	source sources.Source
	once   sync.Once
}

// Registry maps source names to adapters. Init runs once per adapter, on
// first use.
type Registry struct {
	mu      sync.RWMutex
	entries map[domain.Source]*entry
}

func NewRegistry(srcs ...sources.Source) *Registry {
	r := &Registry{entries: make(map[domain.Source]*entry, len(srcs))}
	for _, s := range srcs {
		r.Register(s)
	}
	return r
}

// Register adds or replaces the adapter for s.Name().
func (r *Registry) Register(s sources.Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[s.Name()] = &entry{source: s}
}

// Resolve returns the initialized adapter registered under name.
func (r *Registry) Resolve(ctx context.Context, name domain.Source) (sources.Source, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
	e.once.Do(func() { e.source.Init(ctx) })
	return e.source, nil
}

// Names lists the registered sources, sorted.
func (r *Registry) Names() []domain.Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Source, 0, len(r.entries))
	for name := range r.entries {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Runner executes triggers.
type Runner struct {
	registry *Registry
	window   time.Duration
	now      func() time.Time
	log      *slog.Logger
}

// NewRunner creates a runner whose daily jobs look back window from now.
func NewRunner(registry *Registry, window time.Duration, log *slog.Logger) *Runner {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Runner{registry: registry, window: window, now: time.Now, log: logger.OrDiscard(log)}
}

// Watermark is the lower publish bound of a daily job started now.
func (r *Runner) Watermark() time.Time {
	return r.now().UTC().Add(-r.window)
}

// Run executes t. Errors only report an invalid trigger; failures inside the
// job surface in the returned Stats.
func (r *Runner) Run(ctx context.Context, t Trigger) (sources.Stats, error) {
	kind, err := ParseJobKind(string(t.Kind))
	if err != nil {
		return sources.Stats{}, err
	}
	if strings.TrimSpace(t.Term) == "" {
		return sources.Stats{}, ErrEmptyTerm
	}

	src, err := r.registry.Resolve(ctx, t.Source)
	if err != nil {
		return sources.Stats{}, err
	}

	log := r.log.With(slog.String("source", string(t.Source)), slog.String("term", t.Term), slog.String("kind", string(kind)))
	log.Info("job started")
	start := time.Now()

	var stats sources.Stats
	switch kind {
	case KindInit:
		stats = src.CreateInitJobs(ctx, t.Term)
	case KindDaily:
		watermark := r.Watermark()
		log = log.With(slog.Time("watermark", watermark))
		stats = src.CreateDailyJobs(ctx, t.Term, watermark)
	}

	log.Info("job finished",
		slog.Int("discovered", stats.Discovered),
		slog.Int("emitted", stats.Emitted),
		slog.Int("dropped", stats.Dropped),
		slog.Duration("took", time.Since(start)),
	)
	return stats, nil
}

// RunAll executes triggers in order and stops at the first invalid one.
func (r *Runner) RunAll(ctx context.Context, triggers []Trigger) (sources.Stats, error) {
	var total sources.Stats
	for _, t := range triggers {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		stats, err := r.Run(ctx, t)
		if err != nil {
			return total, fmt.Errorf("job %s/%s: %w", t.Source, t.Term, err)
		}
		total.Discovered += stats.Discovered
		total.Emitted += stats.Emitted
		total.Dropped += stats.Dropped
	}
	return total, nil
}

// Package sink provides the destinations completed content records are
// handed to.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"

	"content-ingest/pkg/dedupe"
	"content-ingest/pkg/domain"
	"content-ingest/pkg/logger"
	"content-ingest/pkg/sources"
)

// Log writes a one-line summary of every record.
type Log struct {
	log *slog.Logger
}

func NewLog(log *slog.Logger) *Log {
	return &Log{log: logger.OrDiscard(log)}
}

func (l *Log) Submit(_ context.Context, record domain.ContentRecord) error {
	l.log.Info("content record",
		slog.String("uuid", record.UUID),
		slog.String("source", string(record.Source)),
		slog.String("source_uuid", record.SourceUUID),
		slog.String("title", record.Title),
		slog.Int("tags", len(record.Tags)),
		slog.Int("transcript_len", len(record.Transcript)),
	)
	return nil
}

// JSONFile appends records as JSON lines.
type JSONFile struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// OpenJSONFile opens path for appending, creating it when missing.
func OpenJSONFile(path string) (*JSONFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &JSONFile{file: f, enc: json.NewEncoder(f)}, nil
}

func (j *JSONFile) Submit(_ context.Context, record domain.ContentRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.enc.Encode(record); err != nil {
		return fmt.Errorf("write %s: %w", record.Key(), err)
	}
	return nil
}

func (j *JSONFile) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}

// Multi submits every record to all sinks, in order. A failing sink does
// not stop the others; their errors are joined.
type Multi []sources.Sink

func (m Multi) Submit(ctx context.Context, record domain.ContentRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.Submit(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// recordNamespace scopes record UUIDs derived from natural keys.
var recordNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("content-ingest/record"))

// RecordUUID derives the stable UUID of a record from its natural key.
func RecordUUID(record domain.ContentRecord) string {
	return uuid.NewSHA1(recordNamespace, []byte(record.Key())).String()
}

// Dedupe assigns record UUIDs and skips records already stored within the
// cache's ttl window.
type Dedupe struct {
	next  sources.Sink
	cache *dedupe.Cache
	log   *slog.Logger
}

func NewDedupe(next sources.Sink, cache *dedupe.Cache, log *slog.Logger) *Dedupe {
	return &Dedupe{next: next, cache: cache, log: logger.OrDiscard(log)}
}

func (d *Dedupe) Submit(ctx context.Context, record domain.ContentRecord) error {
	if record.UUID == "" {
		record.UUID = RecordUUID(record)
	}

	key := record.Key()
	if !d.cache.Claim(key) {
		d.log.Debug("duplicate record", slog.String("key", key))
		return nil
	}
	if err := d.next.Submit(ctx, record); err != nil {
		// Let a later run store it.
		d.cache.Forget(key)
		return err
	}
	return nil
}

// Package sourcestest provides test doubles for source adapters.
package sourcestest

import (
	"context"
	"sort"
	"sync"

	"content-ingest/pkg/domain"
)

// Recorder is a concurrency-safe sink that keeps every submitted record.
type Recorder struct {
	mu      sync.Mutex
	records []domain.ContentRecord
	Err     error
}

// Submit records the content and returns r.Err.
func (r *Recorder) Submit(_ context.Context, record domain.ContentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return r.Err
}

// Records returns a copy of the submitted records in submission order.
func (r *Recorder) Records() []domain.ContentRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ContentRecord, len(r.records))
	copy(out, r.records)
	return out
}

// BySourceUUID indexes the submitted records by SourceUUID.
func (r *Recorder) BySourceUUID() map[string]domain.ContentRecord {
	out := make(map[string]domain.ContentRecord)
	for _, rec := range r.Records() {
		out[rec.SourceUUID] = rec
	}
	return out
}

// SourceUUIDs returns the sorted SourceUUIDs of every submitted record.
func (r *Recorder) SourceUUIDs() []string {
	records := r.Records()
	out := make([]string, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.SourceUUID)
	}
	sort.Strings(out)
	return out
}

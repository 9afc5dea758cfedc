package replication

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"content-ingest/pkg/domain"
)

type fakeStore struct {
	records []domain.ContentRecord
}

func (f *fakeStore) ForEachBatch(_ context.Context, size int, fn func([]domain.ContentRecord) error) error {
	for start := 0; start < len(f.records); start += size {
		end := start + size
		if end > len(f.records) {
			end = len(f.records)
		}
		if err := fn(f.records[start:end]); err != nil {
			return err
		}
	}
	return nil
}

type fakeTarget struct {
	mu        sync.Mutex
	schemaErr error
	failOn    string
	written   map[string]bool
}

func (f *fakeTarget) EnsureSchema(context.Context) error { return f.schemaErr }

func (f *fakeTarget) UpsertRecords(_ context.Context, records []domain.ContentRecord) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range records {
		if r.SourceUUID == f.failOn {
			return 0, errors.New("constraint violation")
		}
	}
	for _, r := range records {
		f.written[r.Key()] = true
	}
	return len(records), nil
}

func records(n int) []domain.ContentRecord {
	out := make([]domain.ContentRecord, n)
	for i := range out {
		out[i] = domain.NewStub(domain.SourceVideoHost, domain.TypeVideo, fmt.Sprintf("v%d", i))
	}
	return out
}

func TestReplicateCopiesEverything(t *testing.T) {
	target := &fakeTarget{written: map[string]bool{}}
	r, err := NewReplicator(Config{Source: &fakeStore{records: records(25)}, Target: target, BatchSize: 10, Workers: 3})
	require.NoError(t, err)

	res, err := r.Replicate(context.Background())
	require.NoError(t, err)
	require.Equal(t, Result{Batches: 3, Read: 25, Written: 25}, res)
	require.Len(t, target.written, 25)
}

func TestReplicateContinuesPastFailedBatch(t *testing.T) {
	target := &fakeTarget{written: map[string]bool{}, failOn: "v12"}
	r, err := NewReplicator(Config{Source: &fakeStore{records: records(25)}, Target: target, BatchSize: 10})
	require.NoError(t, err)

	res, err := r.Replicate(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, res.FailedBatches)
	require.Equal(t, 15, res.Written)
}

func TestReplicateSchemaFailure(t *testing.T) {
	target := &fakeTarget{schemaErr: errors.New("no permission")}
	r, err := NewReplicator(Config{Source: &fakeStore{}, Target: target})
	require.NoError(t, err)

	_, err = r.Replicate(context.Background())
	require.Error(t, err)
}

func TestNewReplicatorRequiresEnds(t *testing.T) {
	_, err := NewReplicator(Config{Target: &fakeTarget{}})
	require.Error(t, err)
	_, err = NewReplicator(Config{Source: &fakeStore{}})
	require.Error(t, err)
}

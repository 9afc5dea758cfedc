// Package schedule reads job lists from YAML files.
package schedule

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"content-ingest/pkg/ingest"
)

// File is the on-disk job list:
//
//	jobs:
//	  - source: video-host
//	    term: lo-fi
//	    kind: daily
type File struct {
	Jobs []ingest.Trigger `yaml:"jobs"`
}

// Load reads and validates the job file at path.
func Load(path string) ([]ingest.Trigger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a job list. Unknown keys are rejected.
func Parse(data []byte) ([]ingest.Trigger, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	if len(f.Jobs) == 0 {
		return nil, errors.New("schedule has no jobs")
	}

	for i, job := range f.Jobs {
		kind, err := ingest.ParseJobKind(string(job.Kind))
		if err != nil {
			return nil, fmt.Errorf("job %d: %w", i, err)
		}
		f.Jobs[i].Kind = kind
		if err := f.Jobs[i].Validate(); err != nil {
			return nil, fmt.Errorf("job %d: %w", i, err)
		}
		if job.Source == "" {
			return nil, fmt.Errorf("job %d: source is required", i)
		}
	}
	return f.Jobs, nil
}

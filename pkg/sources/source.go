// Package sources defines the contract every content source adapter implements
// and the helpers they share.
package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"content-ingest/pkg/domain"
	"content-ingest/pkg/errhandler"
	"content-ingest/pkg/keywords"
	"content-ingest/pkg/logger"
)

// Sink durably records a completed ContentRecord. Implementations must be safe
// for concurrent use.
type Sink interface {
	Submit(ctx context.Context, record domain.ContentRecord) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, record domain.ContentRecord) error

func (f SinkFunc) Submit(ctx context.Context, record domain.ContentRecord) error {
	return f(ctx, record)
}

// Source is a searchable content platform.
//
// None of the methods fail: errors are logged and surface only as dropped or
// degraded records.
type Source interface {
	Name() domain.Source
	// Init performs one-time setup, such as acquiring an access token.
	Init(ctx context.Context)
	// CreateInitJobs backfills everything the platform returns for term.
	CreateInitJobs(ctx context.Context, term string) Stats
	// CreateDailyJobs ingests items for term published after watermark.
	CreateDailyJobs(ctx context.Context, term string, watermark time.Time) Stats
}

// Stats reports what a job did.
type Stats struct {
	Discovered int `json:"discovered"`
	Emitted    int `json:"emitted"`
	Dropped    int `json:"dropped"`
}

// Emit hands record to sink. A sink failure is logged and does not count
// against the record: the core does not depend on what the sink does with it.
func Emit(ctx context.Context, log *slog.Logger, sink Sink, record domain.ContentRecord) {
	if sink == nil {
		return
	}
	if err := sink.Submit(ctx, record); err != nil {
		logger.OrDiscard(log).Error("sink rejected record",
			slog.String("source", string(record.Source)),
			slog.String("source_uuid", record.SourceUUID),
			slog.Any("err", err),
		)
	}
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006-01",
	"2006",
	time.RFC1123Z,
	time.RFC1123,
}

// Epoch seconds stay within ten digits until the year 2286.
const epochSecondsDigits = 10

// ErrEmptyDate is returned by ParseDate for blank input.
var ErrEmptyDate = errors.New("empty date")

// ParseDate normalizes a platform date string to an absolute instant.
// Strings without a zone are read as UTC. All-digit strings of up to four
// digits are years, up to ten are epoch seconds and longer ones epoch
// milliseconds.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrEmptyDate
	}

	if isDigits(raw) && len(raw) > 4 {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse epoch %q: %w", raw, err)
		}
		if len(raw) <= epochSecondsDigits {
			return time.Unix(n, 0).UTC(), nil
		}
		return time.UnixMilli(n).UTC(), nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

// DateOrZero parses raw and logs failures, returning the zero time.
func DateOrZero(log *slog.Logger, raw string) time.Time {
	t, err := ParseDate(raw)
	return errhandler.Handle(log, err, t, "parse published date")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

const (
	derivedTagLimit  = 8
	derivedTagMinLen = 4
)

// DeriveTags returns the record's own tags, normalized and de-duplicated in
// order, followed by keywords extracted from its title and description.
func DeriveTags(record domain.ContentRecord) []string {
	seen := make(map[string]struct{}, len(record.Tags)+derivedTagLimit)
	out := make([]string, 0, len(record.Tags)+derivedTagLimit)

	add := func(tag string) {
		tag = domain.NormalizeTag(tag)
		if tag == "" {
			return
		}
		if _, ok := seen[tag]; ok {
			return
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}

	for _, tag := range record.Tags {
		add(tag)
	}
	for _, kw := range keywords.Extract(record.Title+" "+record.Description, derivedTagLimit, derivedTagMinLen) {
		add(kw)
	}
	return out
}

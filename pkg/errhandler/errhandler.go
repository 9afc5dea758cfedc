// Package errhandler turns failures at network boundaries into logged,
// caller-chosen fallback values so one failing call never aborts a batch.
package errhandler

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/url"

	"content-ingest/pkg/httpclient"
	"content-ingest/pkg/logger"
)

// Kind classifies an error for diagnostics.
type Kind string

const (
	KindTransport Kind = "transport"
	KindUnknown   Kind = "unknown"
)

// Classify reports whether err came from the transport layer.
func Classify(err error) Kind {
	var (
		statusErr *httpclient.StatusError
		urlErr    *url.Error
		netErr    net.Error
	)
	switch {
	case errors.As(err, &statusErr),
		errors.As(err, &urlErr),
		errors.As(err, &netErr),
		errors.Is(err, context.DeadlineExceeded):
		return KindTransport
	default:
		return KindUnknown
	}
}

// Handle logs err with note and returns fallback. A nil err is not logged.
func Handle[T any](log *slog.Logger, err error, fallback T, note string) T {
	if err == nil {
		return fallback
	}

	log = logger.OrDiscard(log)
	switch kind := Classify(err); kind {
	case KindTransport:
		log.Warn(note, slog.String("error_kind", string(kind)), slog.String("err", err.Error()))
	default:
		log.Error(note, slog.String("error_kind", string(kind)), slog.Any("err", err))
	}
	return fallback
}

// Result is either a value or the reason it could not be produced.
type Result[T any] struct {
	Value T
	Err   error
}

// Of builds a Result from a conventional (value, error) pair.
func Of[T any](v T, err error) Result[T] {
	return Result[T]{Value: v, Err: err}
}

// Fail builds a failed Result.
func Fail[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

// OK reports whether the result carries a value.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Or collapses the result: the value on success, otherwise fallback after logging.
func (r Result[T]) Or(log *slog.Logger, note string, fallback T) T {
	if r.Err != nil {
		return Handle(log, r.Err, fallback, note)
	}
	return r.Value
}

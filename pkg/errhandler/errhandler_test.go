package errhandler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"content-ingest/pkg/httpclient"
)

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "status error", err: &httpclient.StatusError{StatusCode: 500, URL: "http://x"}, want: KindTransport},
		{name: "wrapped status error", err: fmt.Errorf("search: %w", &httpclient.StatusError{StatusCode: 404}), want: KindTransport},
		{name: "url error", err: &url.Error{Op: "Get", URL: "http://x", Err: errors.New("refused")}, want: KindTransport},
		{name: "deadline", err: context.DeadlineExceeded, want: KindTransport},
		{name: "plain error", err: errors.New("missing field"), want: KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestHandleReturnsFallbackAndLogs(t *testing.T) {
	log, buf := bufferLogger()

	got := Handle(log, &httpclient.StatusError{StatusCode: 503, URL: "http://x"}, []string{}, "search videos")
	require.NotNil(t, got)
	require.Empty(t, got)
	require.Contains(t, buf.String(), "search videos")
	require.Contains(t, buf.String(), "error_kind=transport")

	buf.Reset()
	require.Equal(t, 7, Handle(log, errors.New("boom"), 7, "parse stats"))
	require.Contains(t, buf.String(), "error_kind=unknown")
}

func TestHandleNilErrorIsSilent(t *testing.T) {
	log, buf := bufferLogger()
	require.Equal(t, "x", Handle(log, nil, "x", "never"))
	require.Empty(t, buf.String())
}

func TestHandleNilLogger(t *testing.T) {
	require.Equal(t, "", Handle(nil, errors.New("boom"), "", "no logger"))
}

func TestResultOr(t *testing.T) {
	log, _ := bufferLogger()

	ok := Of(42, nil)
	require.True(t, ok.OK())
	require.Equal(t, 42, ok.Or(log, "unused", 0))

	failed := Fail[int](errors.New("boom"))
	require.False(t, failed.OK())
	require.Equal(t, 0, failed.Or(log, "count", 0))
}

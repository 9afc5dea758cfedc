package video

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"content-ingest/pkg/httpclient"
	"content-ingest/pkg/sources/sourcestest"
)

const transcriptXML = `<?xml version="1.0" encoding="utf-8" ?><transcript>` +
	`<text start="0" dur="1.5">hello
world</text><text start="1.5" dur="2">it&amp;#39;s  fine</text></transcript>`

type fakePlatform struct {
	ids        []string
	title      string
	nextToken  string
	failStats  map[string]bool
	failTags   map[string]bool
	failScript map[string]bool

	mu       sync.Mutex
	searches []url.Values
}

func (f *fakePlatform) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.searches = append(f.searches, r.URL.Query())
		page := len(f.searches)
		f.mu.Unlock()

		title := f.title
		if title == "" {
			title = "lo-fi mix"
		}
		items := make([]map[string]any, 0, len(f.ids))
		for _, id := range f.ids {
			items = append(items, map[string]any{
				"id": map[string]any{"videoId": id},
				"snippet": map[string]any{
					"title":        title,
					"channelTitle": "beats",
					"publishedAt":  "2024-03-01T10:00:00Z",
					"thumbnails": map[string]any{
						"default": map[string]any{"url": "https://img/" + id + "/default.jpg"},
						"high":    map[string]any{"url": "https://img/" + id + "/high.jpg"},
					},
				},
			})
		}
		resp := map[string]any{"items": items}
		if f.nextToken != "" {
			resp["nextPageToken"] = fmt.Sprintf("%s-%d", f.nextToken, page)
		}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/videos", func(w http.ResponseWriter, r *http.Request) {
		if f.failStats[r.URL.Query().Get("id")] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"items":[{"statistics":{"viewCount":"100","likeCount":"10","commentCount":"1"}}]}`))
	})
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		if f.failTags[r.URL.Query().Get("v")] {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`<html><head>
			<meta property="og:video:tag" content="Lo-Fi">
			<meta property="og:video:tag" content="Chill_Hop">
			<meta property="og:title" content="ignored">
		</head><body></body></html>`))
	})
	mux.HandleFunc("/timedtext", func(w http.ResponseWriter, r *http.Request) {
		if f.failScript[r.URL.Query().Get("v")] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(transcriptXML))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestSource(server *httptest.Server, sink *sourcestest.Recorder, maxPages int) *Source {
	return New(Config{
		APIKey:        "key",
		SearchURL:     server.URL + "/search",
		VideosURL:     server.URL + "/videos",
		WatchURL:      server.URL + "/watch",
		TranscriptURL: server.URL + "/timedtext",
		MaxPages:      maxPages,
		Workers:       3,
	}, httpclient.NewClient(httpclient.APIClient), httpclient.NewClient(httpclient.BrowserClient), sink, nil)
}

func TestEnrichmentFailuresDegradeIndependently(t *testing.T) {
	platform := &fakePlatform{
		ids:        []string{"A", "B", "C"},
		failStats:  map[string]bool{"B": true},
		failTags:   map[string]bool{"A": true},
		failScript: map[string]bool{"C": true},
	}
	server := platform.server(t)
	sink := &sourcestest.Recorder{}

	stats := newTestSource(server, sink, 1).CreateInitJobs(context.Background(), "lo-fi")

	require.Equal(t, 3, stats.Discovered)
	require.Equal(t, 3, stats.Emitted)
	require.Zero(t, stats.Dropped)
	require.Equal(t, []string{"A", "B", "C"}, sink.SourceUUIDs())

	byID := sink.BySourceUUID()

	a := byID["A"]
	require.NotNil(t, a.Tags)
	require.Empty(t, a.Tags)
	require.Equal(t, int64(10), a.LikeCount)
	require.Equal(t, int64(100), a.ViewCount)
	require.Equal(t, int64(1), a.CommentCount)
	require.Equal(t, "hello world it's fine", a.Transcript)

	b := byID["B"]
	require.Zero(t, b.LikeCount)
	require.Zero(t, b.ViewCount)
	require.Zero(t, b.CommentCount)
	require.Equal(t, []string{"lo fi", "chill hop"}, b.Tags)
	require.Equal(t, "hello world it's fine", b.Transcript)
	require.NotNil(t, b.OriginalTranscript)

	c := byID["C"]
	require.Empty(t, c.Transcript)
	require.Nil(t, c.OriginalTranscript)
	require.Equal(t, int64(100), c.ViewCount)
	require.Equal(t, []string{"lo fi", "chill hop"}, c.Tags)
}

func TestFailedTagScrapeLeavesTagsEmpty(t *testing.T) {
	platform := &fakePlatform{
		ids:        []string{"A"},
		title:      "Rainy night jazz",
		failStats:  map[string]bool{"A": true},
		failTags:   map[string]bool{"A": true},
		failScript: map[string]bool{"A": true},
	}
	server := platform.server(t)
	sink := &sourcestest.Recorder{}

	stats := newTestSource(server, sink, 1).CreateInitJobs(context.Background(), "jazz")
	require.Equal(t, 1, stats.Emitted)

	rec := sink.BySourceUUID()["A"]
	require.Equal(t, "Rainy night jazz", rec.Title)
	require.NotNil(t, rec.Tags)
	require.Empty(t, rec.Tags)
	require.Zero(t, rec.ViewCount)
	require.Empty(t, rec.Transcript)
}

func TestStubFieldsArePreserved(t *testing.T) {
	platform := &fakePlatform{ids: []string{"A"}}
	server := platform.server(t)
	sink := &sourcestest.Recorder{}

	newTestSource(server, sink, 1).CreateInitJobs(context.Background(), "lo-fi")

	records := sink.Records()
	require.Len(t, records, 1)
	rec := records[0]
	require.Equal(t, "lo-fi mix", rec.Title)
	require.Equal(t, "beats", rec.Channel)
	require.Equal(t, server.URL+"/watch?v=A", rec.URL)
	require.Equal(t, "https://img/A/default.jpg", rec.ThumbnailSmall)
	require.Equal(t, "https://img/A/high.jpg", rec.ThumbnailLarge)
	require.True(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC).Equal(rec.PublishedAt))
}

func TestCreateInitJobsStopsAtPageCap(t *testing.T) {
	platform := &fakePlatform{ids: []string{"A"}, nextToken: "more"}
	server := platform.server(t)
	sink := &sourcestest.Recorder{}

	stats := newTestSource(server, sink, 3).CreateInitJobs(context.Background(), "lo-fi")

	require.Len(t, platform.searches, 3)
	require.Empty(t, platform.searches[0].Get("pageToken"))
	require.Equal(t, "more-1", platform.searches[1].Get("pageToken"))
	require.Equal(t, "more-2", platform.searches[2].Get("pageToken"))
	require.Equal(t, 3, stats.Emitted)
}

func TestCreateInitJobsStopsWhenTokenExhausted(t *testing.T) {
	platform := &fakePlatform{ids: []string{"A", "B"}}
	server := platform.server(t)

	stats := newTestSource(server, &sourcestest.Recorder{}, 10).CreateInitJobs(context.Background(), "lo-fi")

	require.Len(t, platform.searches, 1)
	require.Equal(t, 2, stats.Emitted)
}

func TestCreateDailyJobsSinglePageAfterWatermark(t *testing.T) {
	platform := &fakePlatform{ids: []string{"A"}, nextToken: "more"}
	server := platform.server(t)

	watermark := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	newTestSource(server, &sourcestest.Recorder{}, 10).CreateDailyJobs(context.Background(), "lo-fi", watermark)

	require.Len(t, platform.searches, 1)
	q := platform.searches[0]
	require.Equal(t, "2024-03-01T00:00:00Z", q.Get("publishedAfter"))
	require.Equal(t, "video", q.Get("type"))
	require.Equal(t, "viewCount", q.Get("order"))
	require.Equal(t, "lo-fi", q.Get("q"))
}

func TestSearchFailureEmitsNothing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()
	sink := &sourcestest.Recorder{}

	stats := newTestSource(server, sink, 5).CreateInitJobs(context.Background(), "lo-fi")
	require.Zero(t, stats)
	require.Empty(t, sink.Records())
}

func TestDerivedTagsFollowScrapedTags(t *testing.T) {
	platform := &fakePlatform{ids: []string{"A"}}
	server := platform.server(t)
	src := newTestSource(server, &sourcestest.Recorder{}, 1)

	stub := NewStub(SearchItem{}, server.URL+"/watch", nil)
	stub.SourceUUID = "A"
	stub.URL = server.URL + "/watch?v=A"
	stub.Title = "Rainy night jazz"

	rec := src.Enrich(context.Background(), stub)
	require.Equal(t, []string{"lo fi", "chill hop", "jazz", "night", "rainy"}, rec.Tags)
}

func TestFlatten(t *testing.T) {
	tests := []struct {
		name string
		cues []Cue
		want string
	}{
		{name: "empty", cues: nil, want: ""},
		{name: "line breaks", cues: []Cue{{Text: "a\nb"}, {Text: "c\r\nd"}}, want: "a b c d"},
		{name: "blank cues", cues: []Cue{{Text: " "}, {Text: "x"}, {Text: "\n"}}, want: "x"},
		{name: "inner spacing", cues: []Cue{{Text: "one   two"}}, want: "one two"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Flatten(tt.cues)
			require.Equal(t, tt.want, got)
			require.NotContains(t, got, "\n")
		})
	}
}

func TestParseTranscript(t *testing.T) {
	cues, err := ParseTranscript([]byte(transcriptXML))
	require.NoError(t, err)
	require.Len(t, cues, 2)
	require.Equal(t, 1.5, cues[1].Start)
	require.Equal(t, "it's  fine", cues[1].Text)

	cues, err = ParseTranscript([]byte("  "))
	require.NoError(t, err)
	require.Empty(t, cues)

	_, err = ParseTranscript([]byte("<transcript><text>"))
	require.Error(t, err)
}

func TestExtractTags(t *testing.T) {
	tags, err := ExtractTags([]byte(`<meta property="og:video:tag" content="Deep-House">`))
	require.NoError(t, err)
	require.Equal(t, []string{"deep house"}, tags)

	tags, err = ExtractTags([]byte(`<html></html>`))
	require.NoError(t, err)
	require.Empty(t, tags)
}

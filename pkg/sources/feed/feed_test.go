package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/require"

	"content-ingest/pkg/domain"
	"content-ingest/pkg/httpclient"
	"content-ingest/pkg/sources/sourcestest"
)

const rssTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Night Shift Radio</title>
  <link>%[1]s</link>
  <image><url>%[1]s/cover.jpg</url><title>cover</title><link>%[1]s</link></image>
  <item>
    <title>Lo-fi beats for coding</title>
    <guid>g1</guid>
    <link>%[1]s/ep/1</link>
    <description>&lt;p&gt;Two hours of &lt;b&gt;mellow&lt;/b&gt; loops.&lt;/p&gt;</description>
    <category>Study_Music</category>
    <enclosure url="%[1]s/audio/1.mp3" length="1" type="audio/mpeg"/>
    <pubDate>Mon, 04 Mar 2024 10:00:00 +0000</pubDate>
  </item>
  <item>
    <title>Jazz after dark</title>
    <guid>g-jazz</guid>
    <link>%[1]s/ep/jazz</link>
    <pubDate>Tue, 05 Mar 2024 10:00:00 +0000</pubDate>
  </item>
  <item>
    <title>Streaming joins, lo-fi edition</title>
    <link>%[1]s/ep/2</link>
    <pubDate>Wed, 06 Mar 2024 10:00:00 +0000</pubDate>
  </item>
</channel>
</rss>`

const episodeTwoPage = `<html><head><title>Streaming joins</title></head><body>
<article>
<h1>Streaming joins, lo-fi edition</h1>
<p>In this episode we talk about windowed joins over unbounded streams, how
watermarks decide when a window may close, and what happens to records that
arrive late. Our guest has built stream processors for a decade and shares
the mistakes that cost the most in production.</p>
<p>We also cover exactly-once delivery, idempotent sinks and the cost of
checkpointing state to durable storage in large clusters, with a few stories
about recovering from corrupted checkpoints at three in the morning.</p>
<p><a href="/files/ep2.txt">Read the transcript</a></p>
</article>
</body></html>`

const showPage = `<html><head>
<link rel="stylesheet" href="/style.css">
<link rel="alternate" type="application/rss+xml" title="Episodes" href="/feed.xml">
<link rel="alternate" type="application/atom+xml" href="https://mirror.example/atom">
</head><body><h1>Night Shift Radio</h1></body></html>`

func newFeedServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, rssTemplate, server.URL)
	})
	mux.HandleFunc("/show", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(showPage))
	})
	mux.HandleFunc("/broken.xml", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	mux.HandleFunc("/ep/1", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/ep/2", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(episodeTwoPage))
	})
	mux.HandleFunc("/files/ep2.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("HOST: hello\nGUEST:  there\n\nworld\n"))
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestSource(server *httptest.Server, sink *sourcestest.Recorder) *Source {
	return New(Config{
		FeedURLs: []string{server.URL + "/broken.xml", server.URL + "/feed.xml"},
		Workers:  2,
	}, httpclient.NewClient(httpclient.BrowserClient), sink, nil)
}

func TestCreateInitJobsFiltersByTermAndDegrades(t *testing.T) {
	server := newFeedServer(t)
	sink := &sourcestest.Recorder{}

	stats := newTestSource(server, sink).CreateInitJobs(context.Background(), "LO-FI")

	require.Equal(t, 2, stats.Discovered)
	require.Equal(t, 2, stats.Emitted)
	require.Zero(t, stats.Dropped)

	byID := sink.BySourceUUID()
	require.Len(t, byID, 2)

	ep1 := byID["g1"]
	require.Equal(t, domain.SourcePodcastFeed, ep1.Source)
	require.Equal(t, domain.TypePodcast, ep1.Type)
	require.Equal(t, "Night Shift Radio", ep1.Channel)
	require.Equal(t, "Two hours of mellow loops.", ep1.Description)
	require.Equal(t, server.URL+"/audio/1.mp3", ep1.FileURL)
	require.Equal(t, server.URL+"/cover.jpg", ep1.ThumbnailLarge)
	require.Equal(t, "study music", ep1.Tags[0])
	require.Empty(t, ep1.Transcript)
	require.True(t, time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC).Equal(ep1.PublishedAt))

	ep2 := byID[server.URL+"/ep/2"]
	require.Equal(t, "HOST: hello GUEST: there world", ep2.Transcript)
	require.NotNil(t, ep2.OriginalTranscript)
	require.Contains(t, ep2.Description, "windowed joins")
}

func TestCreateDailyJobsAfterWatermark(t *testing.T) {
	server := newFeedServer(t)
	sink := &sourcestest.Recorder{}

	watermark := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	stats := newTestSource(server, sink).CreateDailyJobs(context.Background(), "lo-fi", watermark)

	require.Equal(t, []string{server.URL + "/ep/2"}, sink.SourceUUIDs())
	require.Equal(t, 1, stats.Dropped)
}

func TestShowPageResolvesAdvertisedFeed(t *testing.T) {
	server := newFeedServer(t)
	sink := &sourcestest.Recorder{}

	src := New(Config{FeedURLs: []string{server.URL + "/show"}, Workers: 2}, httpclient.NewClient(httpclient.BrowserClient), sink, nil)
	stats := src.CreateInitJobs(context.Background(), "lo-fi")

	require.Equal(t, 2, stats.Emitted)
	require.ElementsMatch(t, []string{"g1", server.URL + "/ep/2"}, sink.SourceUUIDs())
}

func TestDiscoverFeedURLs(t *testing.T) {
	links, err := DiscoverFeedURLs(showPage, "https://radio.example/show")
	require.NoError(t, err)
	require.Equal(t, []string{"https://radio.example/feed.xml", "https://mirror.example/atom"}, links)

	links, err = DiscoverFeedURLs("<html><body>nothing</body></html>", "https://radio.example/")
	require.NoError(t, err)
	require.Empty(t, links)
}

func TestMatches(t *testing.T) {
	item := &gofeed.Item{Title: "Deep House Mix", Description: "late night grooves"}
	require.True(t, Matches(item, "house"))
	require.True(t, Matches(item, "NIGHT"))
	require.True(t, Matches(item, ""))
	require.False(t, Matches(item, "techno"))
}

func TestNewStubIsDeterministic(t *testing.T) {
	feed := &gofeed.Feed{Title: "Show"}
	item := &gofeed.Item{GUID: "x", Title: "T", Categories: []string{"A-B"}}

	a := NewStub(feed, item, nil)
	b := NewStub(feed, item, nil)
	require.Equal(t, a, b)
	require.Equal(t, []string{"a b"}, a.Tags)
}

// Package video ingests videos from the platform's data API. Every search hit
// is enriched with statistics, page tags and a transcript; a failing step
// leaves its fields at their defaults and the record is emitted regardless.
package video

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"content-ingest/pkg/domain"
	"content-ingest/pkg/errhandler"
	"content-ingest/pkg/httpclient"
	"content-ingest/pkg/logger"
	"content-ingest/pkg/sources"
	"content-ingest/pkg/worker"
)

const (
	DefaultSearchURL     = "https://www.googleapis.com/youtube/v3/search"
	DefaultVideosURL     = "https://www.googleapis.com/youtube/v3/videos"
	DefaultWatchURL      = "https://www.youtube.com/watch"
	DefaultTranscriptURL = "https://www.youtube.com/api/timedtext"
	DefaultMaxPages      = 40
	DefaultPageSize      = 50
	DefaultLang          = "en"

	tagSelector = `meta[property="og:video:tag"]`
)

type Config struct {
	APIKey        string
	SearchURL     string
	VideosURL     string
	WatchURL      string
	TranscriptURL string
	// MaxPages caps the backfill; it is a safety limit, not an end-of-results signal.
	MaxPages int
	PageSize int
	Lang     string
	Workers  int
}

func (c Config) withDefaults() Config {
	if c.SearchURL == "" {
		c.SearchURL = DefaultSearchURL
	}
	if c.VideosURL == "" {
		c.VideosURL = DefaultVideosURL
	}
	if c.WatchURL == "" {
		c.WatchURL = DefaultWatchURL
	}
	if c.TranscriptURL == "" {
		c.TranscriptURL = DefaultTranscriptURL
	}
	if c.MaxPages <= 0 {
		c.MaxPages = DefaultMaxPages
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.Lang == "" {
		c.Lang = DefaultLang
	}
	return c
}

// Source is the video-host adapter.
type Source struct {
	cfg     Config
	api     *httpclient.HTTPClient
	browser *httpclient.HTTPClient
	sink    sources.Sink
	log     *slog.Logger
}

// New creates the video source. api talks to the data API and transcript
// service, browser fetches public watch pages.
func New(cfg Config, api, browser *httpclient.HTTPClient, sink sources.Sink, log *slog.Logger) *Source {
	return &Source{
		cfg:     cfg.withDefaults(),
		api:     api,
		browser: browser,
		sink:    sink,
		log:     logger.OrDiscard(log).With("source", string(domain.SourceVideoHost)),
	}
}

func (s *Source) Name() domain.Source { return domain.SourceVideoHost }

// Init is a no-op: the API key is static.
func (s *Source) Init(context.Context) {}

// CreateInitJobs pages through the search results until the continuation
// token runs out or MaxPages pages have been fetched.
func (s *Source) CreateInitJobs(ctx context.Context, term string) sources.Stats {
	var (
		stats sources.Stats
		token string
	)
	for page := 0; page < s.cfg.MaxPages; page++ {
		if ctx.Err() != nil {
			break
		}
		result := s.search(ctx, SearchParams{Term: term, PageToken: token}).Or(s.log, "search videos", Page{})
		s.processPage(ctx, result.Stubs, &stats)

		token = result.NextPageToken
		if token == "" {
			break
		}
	}

	s.logFinished(term, stats)
	return stats
}

// CreateDailyJobs fetches a single page of videos published after watermark.
func (s *Source) CreateDailyJobs(ctx context.Context, term string, watermark time.Time) sources.Stats {
	var stats sources.Stats
	result := s.search(ctx, SearchParams{Term: term, PublishedAfter: watermark}).Or(s.log, "search videos", Page{})
	s.processPage(ctx, result.Stubs, &stats)

	s.logFinished(term, stats)
	return stats
}

func (s *Source) processPage(ctx context.Context, stubs []domain.ContentRecord, stats *sources.Stats) {
	stats.Discovered += len(stubs)
	summary := worker.Fan(ctx, s.cfg.Workers, stubs, func(ctx context.Context, stub domain.ContentRecord) error {
		sources.Emit(ctx, s.log, s.sink, s.Enrich(ctx, stub))
		return nil
	})
	stats.Emitted += summary.Succeeded
	stats.Dropped += summary.Failed
}

func (s *Source) logFinished(term string, stats sources.Stats) {
	s.log.Info("video job finished",
		slog.String("term", term),
		slog.Int("discovered", stats.Discovered),
		slog.Int("emitted", stats.Emitted),
		slog.Int("dropped", stats.Dropped),
	)
}

// SearchParams are the optional knobs of one search call.
type SearchParams struct {
	Term           string
	PageToken      string
	PublishedAfter time.Time
	MaxResults     int
}

// Page is one page of search results.
type Page struct {
	Stubs         []domain.ContentRecord
	NextPageToken string
}

type searchResponse struct {
	NextPageToken string       `json:"nextPageToken"`
	Items         []SearchItem `json:"items"`
}

// SearchItem is one raw search hit.
type SearchItem struct {
	ID struct {
		VideoID string `json:"videoId"`
	} `json:"id"`
	Snippet struct {
		Title        string `json:"title"`
		Description  string `json:"description"`
		ChannelTitle string `json:"channelTitle"`
		PublishedAt  string `json:"publishedAt"`
		Thumbnails   struct {
			Default thumbnail `json:"default"`
			High    thumbnail `json:"high"`
		} `json:"thumbnails"`
	} `json:"snippet"`
}

type thumbnail struct {
	URL string `json:"url"`
}

func (s *Source) search(ctx context.Context, p SearchParams) errhandler.Result[Page] {
	if p.MaxResults <= 0 {
		p.MaxResults = s.cfg.PageSize
	}
	query := url.Values{
		"key":             {s.cfg.APIKey},
		"q":               {p.Term},
		"part":            {"snippet"},
		"type":            {"video"},
		"order":           {"viewCount"},
		"videoEmbeddable": {"true"},
		"maxResults":      {strconv.Itoa(p.MaxResults)},
	}
	if p.PageToken != "" {
		query.Set("pageToken", p.PageToken)
	}
	if !p.PublishedAfter.IsZero() {
		query.Set("publishedAfter", p.PublishedAfter.UTC().Format(time.RFC3339))
	}

	var resp searchResponse
	if err := s.api.GetJSON(ctx, s.cfg.SearchURL, query, nil, &resp); err != nil {
		return errhandler.Fail[Page](fmt.Errorf("search %q: %w", p.Term, err))
	}

	page := Page{NextPageToken: resp.NextPageToken, Stubs: make([]domain.ContentRecord, 0, len(resp.Items))}
	for _, item := range resp.Items {
		if item.ID.VideoID == "" {
			continue
		}
		page.Stubs = append(page.Stubs, NewStub(item, s.cfg.WatchURL, s.log))
	}
	return errhandler.Of(page, nil)
}

// NewStub maps a search hit to its record. No network calls are made.
func NewStub(item SearchItem, watchURL string, log *slog.Logger) domain.ContentRecord {
	if watchURL == "" {
		watchURL = DefaultWatchURL
	}
	record := domain.NewStub(domain.SourceVideoHost, domain.TypeVideo, item.ID.VideoID)
	record.Title = item.Snippet.Title
	record.Description = item.Snippet.Description
	record.Channel = item.Snippet.ChannelTitle
	record.URL = watchURL + "?" + url.Values{"v": {item.ID.VideoID}}.Encode()
	record.ThumbnailSmall = item.Snippet.Thumbnails.Default.URL
	record.ThumbnailLarge = item.Snippet.Thumbnails.High.URL
	record.PublishedAt = sources.DateOrZero(log, item.Snippet.PublishedAt)
	return record
}

// Enrich runs the three enrichment steps on stub. Each step falls back to
// its empty value on failure. Title keywords are appended to the scraped
// tags only when the scrape succeeded.
func (s *Source) Enrich(ctx context.Context, stub domain.ContentRecord) domain.ContentRecord {
	id := stub.SourceUUID
	record := stub

	stats := s.fetchStatistics(ctx, id).Or(s.log, "fetch statistics for "+id, Statistics{})
	record.LikeCount = stats.Likes
	record.ViewCount = stats.Views
	record.CommentCount = stats.Comments

	tags := s.fetchTags(ctx, stub.URL)
	record.Tags = tags.Or(s.log, "fetch tags for "+id, []string{})

	cues := s.fetchTranscript(ctx, id).Or(s.log, "fetch transcript for "+id, []Cue{})
	if len(cues) > 0 {
		record.OriginalTranscript = cues
	}
	record.Transcript = Flatten(cues)

	// Keywords only extend scraped tags; a failed scrape leaves tags empty.
	if tags.OK() {
		record.Tags = sources.DeriveTags(record)
	}
	return record
}

// Statistics are the engagement counts of one video.
type Statistics struct {
	Views    int64
	Likes    int64
	Comments int64
}

type videosResponse struct {
	Items []struct {
		Statistics struct {
			ViewCount    string `json:"viewCount"`
			LikeCount    string `json:"likeCount"`
			CommentCount string `json:"commentCount"`
		} `json:"statistics"`
	} `json:"items"`
}

func (s *Source) fetchStatistics(ctx context.Context, id string) errhandler.Result[Statistics] {
	query := url.Values{
		"key":  {s.cfg.APIKey},
		"id":   {id},
		"part": {"statistics"},
	}
	var resp videosResponse
	if err := s.api.GetJSON(ctx, s.cfg.VideosURL, query, nil, &resp); err != nil {
		return errhandler.Fail[Statistics](err)
	}
	// Hidden or removed videos come back without items.
	if len(resp.Items) == 0 {
		return errhandler.Of(Statistics{}, nil)
	}
	raw := resp.Items[0].Statistics
	return errhandler.Of(Statistics{
		Views:    parseCount(raw.ViewCount),
		Likes:    parseCount(raw.LikeCount),
		Comments: parseCount(raw.CommentCount),
	}, nil)
}

func parseCount(raw string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (s *Source) fetchTags(ctx context.Context, pageURL string) errhandler.Result[[]string] {
	body, err := s.browser.Fetch(ctx, http.MethodGet, pageURL, nil, nil, nil)
	if err != nil {
		return errhandler.Fail[[]string](err)
	}
	return errhandler.Of[[]string](ExtractTags(body))
}

// ExtractTags reads the video tag meta elements of a watch page.
func ExtractTags(page []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse watch page: %w", err)
	}
	var tags []string
	doc.Find(tagSelector).Each(func(_ int, sel *goquery.Selection) {
		if content, ok := sel.Attr("content"); ok {
			tags = append(tags, content)
		}
	})
	return domain.NormalizeTags(tags), nil
}

// Cue is one timed transcript segment.
type Cue struct {
	Start    float64 `xml:"start,attr" json:"start"`
	Duration float64 `xml:"dur,attr" json:"dur"`
	Text     string  `xml:",chardata" json:"text"`
}

type timedText struct {
	Cues []Cue `xml:"text"`
}

func (s *Source) fetchTranscript(ctx context.Context, id string) errhandler.Result[[]Cue] {
	query := url.Values{"v": {id}, "lang": {s.cfg.Lang}}
	body, err := s.api.Fetch(ctx, http.MethodGet, s.cfg.TranscriptURL, query, nil, nil)
	if err != nil {
		return errhandler.Fail[[]Cue](err)
	}
	return errhandler.Of[[]Cue](ParseTranscript(body))
}

// ParseTranscript decodes a timed-text document. An empty body means the
// video has no transcript.
func ParseTranscript(body []byte) ([]Cue, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return []Cue{}, nil
	}
	var doc timedText
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	// Cue text arrives entity-encoded a second time inside the XML.
	for i := range doc.Cues {
		doc.Cues[i].Text = html.UnescapeString(doc.Cues[i].Text)
	}
	return doc.Cues, nil
}

// Flatten joins the cue texts with single spaces, dropping line breaks.
func Flatten(cues []Cue) string {
	parts := make([]string, 0, len(cues))
	for _, c := range cues {
		if text := strings.Join(strings.Fields(c.Text), " "); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

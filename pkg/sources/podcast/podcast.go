// Package podcast ingests podcast episodes from the catalog's episode search.
package podcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"content-ingest/pkg/domain"
	"content-ingest/pkg/errhandler"
	"content-ingest/pkg/httpclient"
	"content-ingest/pkg/logger"
	"content-ingest/pkg/sources"
)

const (
	DefaultTokenURL  = "https://accounts.spotify.com/api/token"
	DefaultSearchURL = "https://api.spotify.com/v1/search"
	DefaultMarket    = "us"
	DefaultPageSize  = 50

	smallImageIndex = 2
	largeImageIndex = 0
)

var errNotAuthorized = errors.New("podcast source has no access token")

// Config wires the podcast source.
type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	SearchURL    string
	Market       string
	PageSize     int
}

func (c Config) withDefaults() Config {
	if c.TokenURL == "" {
		c.TokenURL = DefaultTokenURL
	}
	if c.SearchURL == "" {
		c.SearchURL = DefaultSearchURL
	}
	if c.Market == "" {
		c.Market = DefaultMarket
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	return c
}

// Source is the podcast-host adapter.
type Source struct {
	cfg  Config
	api  *httpclient.HTTPClient
	sink sources.Sink
	log  *slog.Logger

	mu     sync.RWMutex
	tokens oauth2.TokenSource
}

// New creates the podcast source. Call Init before any job.
func New(cfg Config, api *httpclient.HTTPClient, sink sources.Sink, log *slog.Logger) *Source {
	return &Source{
		cfg:  cfg.withDefaults(),
		api:  api,
		sink: sink,
		log:  logger.OrDiscard(log).With("source", string(domain.SourcePodcastHost)),
	}
}

func (s *Source) Name() domain.Source { return domain.SourcePodcastHost }

// Init exchanges the client credentials for a bearer token. The token source
// refreshes itself on expiry. On failure the source stays unauthorized and
// every job returns without searching.
func (s *Source) Init(ctx context.Context) {
	if s.cfg.ClientID == "" || s.cfg.ClientSecret == "" {
		s.log.Warn("podcast credentials missing, source disabled")
		return
	}

	cc := &clientcredentials.Config{
		ClientID:     s.cfg.ClientID,
		ClientSecret: s.cfg.ClientSecret,
		TokenURL:     s.cfg.TokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	// Refreshes happen long after Init returns.
	ts := cc.TokenSource(context.WithoutCancel(ctx))

	if _, err := ts.Token(); err != nil {
		errhandler.Handle(s.log, err, "", "acquire podcast access token")
		return
	}

	s.mu.Lock()
	s.tokens = ts
	s.mu.Unlock()
}

func (s *Source) tokenSource() oauth2.TokenSource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens
}

// CreateInitJobs emits one record per episode of the first result page.
func (s *Source) CreateInitJobs(ctx context.Context, term string) sources.Stats {
	return s.run(ctx, term, time.Time{})
}

// CreateDailyJobs emits episodes released on or after the watermark's day.
// Release dates only carry day precision.
func (s *Source) CreateDailyJobs(ctx context.Context, term string, watermark time.Time) sources.Stats {
	return s.run(ctx, term, watermark)
}

func (s *Source) run(ctx context.Context, term string, watermark time.Time) sources.Stats {
	if s.tokenSource() == nil {
		s.log.Warn("skipping podcast job", slog.String("term", term), slog.Any("err", errNotAuthorized))
		return sources.Stats{}
	}

	episodes := s.search(ctx, term).Or(s.log, "search podcast episodes", []Episode{})
	stats := sources.Stats{Discovered: len(episodes)}

	cutoff := startOfDay(watermark)
	for _, ep := range episodes {
		record := NewStub(ep, s.log)
		if !watermark.IsZero() && record.PublishedAt.Before(cutoff) {
			stats.Dropped++
			continue
		}
		sources.Emit(ctx, s.log, s.sink, record)
		stats.Emitted++
	}

	s.log.Info("podcast job finished",
		slog.String("term", term),
		slog.Int("discovered", stats.Discovered),
		slog.Int("emitted", stats.Emitted),
		slog.Int("dropped", stats.Dropped),
	)
	return stats
}

// Episode is one item of the episode search.
type Episode struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
	AudioPreviewURL string  `json:"audio_preview_url"`
	Href            string  `json:"href"`
	Images          []Image `json:"images"`
	ReleaseDate     string  `json:"release_date"`
}

// Image is one artwork variant, largest first.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type searchResponse struct {
	Episodes struct {
		Items []*Episode `json:"items"`
	} `json:"episodes"`
}

func (s *Source) search(ctx context.Context, term string) errhandler.Result[[]Episode] {
	token, err := s.tokenSource().Token()
	if err != nil {
		return errhandler.Fail[[]Episode](fmt.Errorf("refresh access token: %w", err))
	}

	query := url.Values{
		"q":      {term},
		"type":   {"episode"},
		"limit":  {strconv.Itoa(s.cfg.PageSize)},
		"market": {s.cfg.Market},
	}
	headers := map[string]string{"Authorization": "Bearer " + token.AccessToken}

	var resp searchResponse
	if err := s.api.GetJSON(ctx, s.cfg.SearchURL, query, headers, &resp); err != nil {
		return errhandler.Fail[[]Episode](fmt.Errorf("search %q: %w", term, err))
	}

	// The catalog returns null entries for episodes unavailable in the market.
	episodes := make([]Episode, 0, len(resp.Episodes.Items))
	for _, item := range resp.Episodes.Items {
		if item != nil && item.ID != "" {
			episodes = append(episodes, *item)
		}
	}
	return errhandler.Of(episodes, nil)
}

// NewStub maps an episode to its record. No network calls are made.
func NewStub(ep Episode, log *slog.Logger) domain.ContentRecord {
	record := domain.NewStub(domain.SourcePodcastHost, domain.TypePodcast, ep.ID)
	record.Title = ep.Name
	record.Description = ep.Description
	record.URL = ep.ExternalURLs.Spotify
	record.PreviewURL = ep.AudioPreviewURL
	record.FileURL = ep.Href
	record.ThumbnailSmall = PickImage(ep.Images, smallImageIndex)
	record.ThumbnailLarge = PickImage(ep.Images, largeImageIndex)
	record.PublishedAt = sources.DateOrZero(log, ep.ReleaseDate)
	record.Tags = sources.DeriveTags(record)
	return record
}

// PickImage returns the URL at index, clamped to the last available image.
// An empty list yields "".
func PickImage(images []Image, index int) string {
	if len(images) == 0 {
		return ""
	}
	if index < 0 {
		index = 0
	}
	if index >= len(images) {
		index = len(images) - 1
	}
	return images[index].URL
}

func startOfDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

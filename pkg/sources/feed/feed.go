// Package feed ingests podcast episodes from RSS and Atom feeds. Episodes are
// enriched from their web page: a linked plain-text transcript and, when the
// feed carries no description, the page's readable text.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"content-ingest/pkg/content"
	"content-ingest/pkg/domain"
	"content-ingest/pkg/errhandler"
	"content-ingest/pkg/httpclient"
	"content-ingest/pkg/logger"
	"content-ingest/pkg/sources"
	"content-ingest/pkg/worker"
)

type Config struct {
	FeedURLs []string
	Workers  int
}

// Source is the podcast-feed adapter.
type Source struct {
	cfg    Config
	client *httpclient.HTTPClient
	parser *gofeed.Parser
	sink   sources.Sink
	log    *slog.Logger
}

// New creates the feed source. client fetches feeds, episode pages and transcripts.
func New(cfg Config, client *httpclient.HTTPClient, sink sources.Sink, log *slog.Logger) *Source {
	return &Source{
		cfg:    cfg,
		client: client,
		parser: gofeed.NewParser(),
		sink:   sink,
		log:    logger.OrDiscard(log).With("source", string(domain.SourcePodcastFeed)),
	}
}

func (s *Source) Name() domain.Source { return domain.SourcePodcastFeed }

// Init is a no-op: feeds are public.
func (s *Source) Init(context.Context) {}

// CreateInitJobs emits every matching episode of every configured feed.
func (s *Source) CreateInitJobs(ctx context.Context, term string) sources.Stats {
	return s.run(ctx, term, time.Time{})
}

// CreateDailyJobs emits matching episodes published after watermark.
func (s *Source) CreateDailyJobs(ctx context.Context, term string, watermark time.Time) sources.Stats {
	return s.run(ctx, term, watermark)
}

func (s *Source) run(ctx context.Context, term string, watermark time.Time) sources.Stats {
	var (
		stats sources.Stats
		stubs []domain.ContentRecord
	)

	for _, feedURL := range s.cfg.FeedURLs {
		feed := s.fetchFeed(ctx, feedURL).Or(s.log, "fetch feed "+feedURL, nil)
		if feed == nil {
			continue
		}
		for _, item := range feed.Items {
			if item == nil || !Matches(item, term) {
				continue
			}
			stats.Discovered++
			stub := NewStub(feed, item, s.log)
			if stub.SourceUUID == "" || (!watermark.IsZero() && !stub.PublishedAt.After(watermark)) {
				stats.Dropped++
				continue
			}
			stubs = append(stubs, stub)
		}
	}

	summary := worker.Fan(ctx, s.cfg.Workers, stubs, func(ctx context.Context, stub domain.ContentRecord) error {
		sources.Emit(ctx, s.log, s.sink, s.Enrich(ctx, stub))
		return nil
	})
	stats.Emitted = summary.Succeeded
	stats.Dropped += summary.Failed

	s.log.Info("feed job finished",
		slog.String("term", term),
		slog.Int("feeds", len(s.cfg.FeedURLs)),
		slog.Int("discovered", stats.Discovered),
		slog.Int("emitted", stats.Emitted),
		slog.Int("dropped", stats.Dropped),
	)
	return stats
}

// fetchFeed loads feedURL. When the URL serves a web page instead of a feed,
// the first feed the page advertises is loaded instead.
func (s *Source) fetchFeed(ctx context.Context, feedURL string) errhandler.Result[*gofeed.Feed] {
	body, err := s.client.Fetch(ctx, http.MethodGet, feedURL, nil, nil, nil)
	if err != nil {
		return errhandler.Fail[*gofeed.Feed](err)
	}
	feed, err := s.parser.ParseString(string(body))
	if err == nil {
		return errhandler.Of(feed, nil)
	}
	if !errors.Is(err, gofeed.ErrFeedTypeNotDetected) {
		return errhandler.Fail[*gofeed.Feed](fmt.Errorf("failed to parse feed: %w", err))
	}

	links, derr := DiscoverFeedURLs(string(body), feedURL)
	if derr != nil || len(links) == 0 {
		return errhandler.Fail[*gofeed.Feed](fmt.Errorf("%s is neither a feed nor links one: %w", feedURL, err))
	}
	s.log.Debug("discovered feed", slog.String("page", feedURL), slog.String("feed", links[0]))

	body, err = s.client.Fetch(ctx, http.MethodGet, links[0], nil, nil, nil)
	if err != nil {
		return errhandler.Fail[*gofeed.Feed](err)
	}
	feed, err = s.parser.ParseString(string(body))
	if err != nil {
		return errhandler.Fail[*gofeed.Feed](fmt.Errorf("failed to parse feed %s: %w", links[0], err))
	}
	return errhandler.Of(feed, nil)
}

// Matches reports whether item's title or description contains term,
// ignoring case. An empty term matches everything.
func Matches(item *gofeed.Item, term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(item.Title), term) ||
		strings.Contains(strings.ToLower(item.Description), term)
}

// NewStub maps a feed item to its record. No network calls are made.
func NewStub(feed *gofeed.Feed, item *gofeed.Item, log *slog.Logger) domain.ContentRecord {
	id := strings.TrimSpace(item.GUID)
	if id == "" {
		id = strings.TrimSpace(item.Link)
	}

	record := domain.NewStub(domain.SourcePodcastFeed, domain.TypePodcast, id)
	record.Title = strings.TrimSpace(item.Title)
	record.Description = plainText(item.Description)
	record.Channel = feed.Title
	record.URL = item.Link
	for _, enc := range item.Enclosures {
		if enc != nil && enc.URL != "" {
			record.FileURL = enc.URL
			break
		}
	}

	image := imageOf(feed, item)
	record.ThumbnailSmall = image
	record.ThumbnailLarge = image

	record.Tags = domain.NormalizeTags(item.Categories)

	switch {
	case item.PublishedParsed != nil:
		record.PublishedAt = item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		record.PublishedAt = item.UpdatedParsed.UTC()
	default:
		record.PublishedAt = sources.DateOrZero(log, item.Published)
	}
	return record
}

func imageOf(feed *gofeed.Feed, item *gofeed.Item) string {
	switch {
	case item.Image != nil && item.Image.URL != "":
		return item.Image.URL
	case item.ITunesExt != nil && item.ITunesExt.Image != "":
		return item.ITunesExt.Image
	case feed.Image != nil:
		return feed.Image.URL
	default:
		return ""
	}
}

// plainText strips markup from feed descriptions, which are often HTML.
func plainText(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.Contains(raw, "<") {
		return strings.Join(strings.Fields(raw), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return strings.Join(strings.Fields(raw), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// Enrich fetches the episode page and its transcript. Failures leave the
// affected fields empty.
func (s *Source) Enrich(ctx context.Context, stub domain.ContentRecord) domain.ContentRecord {
	record := stub
	if record.URL != "" {
		page := s.fetchPage(ctx, record.URL).Or(s.log, "fetch episode page "+record.URL, content.Page{})
		if record.Description == "" {
			record.Description = page.Text
		}
		if page.TranscriptURL != "" {
			raw := s.fetchText(ctx, page.TranscriptURL).Or(s.log, "fetch transcript "+page.TranscriptURL, "")
			if strings.TrimSpace(raw) != "" {
				record.OriginalTranscript = raw
				record.Transcript = strings.Join(strings.Fields(raw), " ")
			}
		}
	}
	record.Tags = sources.DeriveTags(record)
	return record
}

func (s *Source) fetchPage(ctx context.Context, pageURL string) errhandler.Result[content.Page] {
	body, err := s.client.Fetch(ctx, http.MethodGet, pageURL, nil, nil, nil)
	if err != nil {
		return errhandler.Fail[content.Page](err)
	}
	return errhandler.Of[content.Page](content.ParsePage(string(body), pageURL))
}

func (s *Source) fetchText(ctx context.Context, textURL string) errhandler.Result[string] {
	body, err := s.client.Fetch(ctx, http.MethodGet, textURL, nil, nil, nil)
	if err != nil {
		return errhandler.Fail[string](err)
	}
	return errhandler.Of(string(body), nil)
}

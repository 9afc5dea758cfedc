// Package article ingests long-form articles: a keyword search returns post
// identifiers, and each post is enriched through the host's GraphQL endpoint.
package article

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"content-ingest/pkg/domain"
	"content-ingest/pkg/errhandler"
	"content-ingest/pkg/httpclient"
	"content-ingest/pkg/logger"
	"content-ingest/pkg/sources"
	"content-ingest/pkg/worker"
)

//go:embed queries/post_page.graphql
var postPageQuery string

const (
	DefaultSearchURL   = "https://medium2.p.rapidapi.com/search/articles"
	DefaultSearchHost  = "medium2.p.rapidapi.com"
	DefaultGraphQLURL  = "https://medium.com/_/graphql"
	DefaultPostURL     = "https://medium.com/p/"
	DefaultImageFormat = "https://miro.medium.com/v2/resize:fit:%d/%s"

	thumbnailSmallWidth = 300
	thumbnailLargeWidth = 800

	paragraphType = "P"
)

var errNoPost = errors.New("payload has no post result")

// Config wires the article source.
type Config struct {
	APIKey      string
	SearchURL   string
	SearchHost  string
	GraphQLURL  string
	PostURL     string
	ImageFormat string
	Workers     int
}

func (c Config) withDefaults() Config {
	if c.SearchURL == "" {
		c.SearchURL = DefaultSearchURL
	}
	if c.SearchHost == "" {
		c.SearchHost = DefaultSearchHost
	}
	if c.GraphQLURL == "" {
		c.GraphQLURL = DefaultGraphQLURL
	}
	if c.PostURL == "" {
		c.PostURL = DefaultPostURL
	}
	if c.ImageFormat == "" {
		c.ImageFormat = DefaultImageFormat
	}
	return c
}

// Source is the article-host adapter.
type Source struct {
	cfg     Config
	api     *httpclient.HTTPClient
	browser *httpclient.HTTPClient
	sink    sources.Sink
	log     *slog.Logger
}

// New creates the article source. api carries the search key, browser
// performs the GraphQL fetches.
func New(cfg Config, api, browser *httpclient.HTTPClient, sink sources.Sink, log *slog.Logger) *Source {
	return &Source{
		cfg:     cfg.withDefaults(),
		api:     api,
		browser: browser,
		sink:    sink,
		log:     logger.OrDiscard(log).With("source", string(domain.SourceArticleHost)),
	}
}

func (s *Source) Name() domain.Source { return domain.SourceArticleHost }

// Init is a no-op: the search key is static.
func (s *Source) Init(context.Context) {}

// CreateInitJobs searches term and emits every article whose enrichment succeeds.
func (s *Source) CreateInitJobs(ctx context.Context, term string) sources.Stats {
	return s.run(ctx, term, time.Time{})
}

// CreateDailyJobs is CreateInitJobs restricted to articles first published after watermark.
// The search endpoint cannot filter by date, so the cut happens after enrichment.
func (s *Source) CreateDailyJobs(ctx context.Context, term string, watermark time.Time) sources.Stats {
	return s.run(ctx, term, watermark)
}

func (s *Source) run(ctx context.Context, term string, watermark time.Time) sources.Stats {
	ids := s.search(ctx, term).Or(s.log, "search articles", []string{})
	stats := sources.Stats{Discovered: len(ids)}

	summary := worker.Fan(ctx, s.cfg.Workers, ids, func(ctx context.Context, id string) error {
		record, err := s.scrapeContent(ctx, NewStub(id, s.cfg.PostURL))
		if err != nil {
			errhandler.Handle(s.log, err, domain.ContentRecord{}, "scrape article "+id)
			return err
		}
		if !watermark.IsZero() && !record.PublishedAt.After(watermark) {
			return errBeforeWatermark
		}
		sources.Emit(ctx, s.log, s.sink, record)
		return nil
	})

	stats.Emitted = summary.Succeeded
	stats.Dropped = summary.Failed
	s.log.Info("article job finished",
		slog.String("term", term),
		slog.Int("discovered", stats.Discovered),
		slog.Int("emitted", stats.Emitted),
		slog.Int("dropped", stats.Dropped),
	)
	return stats
}

var errBeforeWatermark = errors.New("published before watermark")

type searchResponse struct {
	Articles []string `json:"articles"`
}

func (s *Source) search(ctx context.Context, term string) errhandler.Result[[]string] {
	headers := map[string]string{
		"X-RapidAPI-Key":  s.cfg.APIKey,
		"X-RapidAPI-Host": s.cfg.SearchHost,
	}
	var resp searchResponse
	if err := s.api.GetJSON(ctx, s.cfg.SearchURL, url.Values{"query": {term}}, headers, &resp); err != nil {
		return errhandler.Fail[[]string](fmt.Errorf("search %q: %w", term, err))
	}

	ids := make([]string, 0, len(resp.Articles))
	for _, id := range resp.Articles {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return errhandler.Of(ids, nil)
}

// NewStub builds the pre-enrichment record for a post identifier.
func NewStub(id, postURL string) domain.ContentRecord {
	if postURL == "" {
		postURL = DefaultPostURL
	}
	stub := domain.NewStub(domain.SourceArticleHost, domain.TypeArticle, id)
	stub.URL = postURL + id
	return stub
}

type graphQLRequest struct {
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
	Query         string         `json:"query"`
}

type graphQLResponse struct {
	Data struct {
		PostResult *post `json:"postResult"`
	} `json:"data"`
}

type post struct {
	ID               string      `json:"id"`
	Title            string      `json:"title"`
	MediumURL        string      `json:"mediumUrl"`
	FirstPublishedAt json.Number `json:"firstPublishedAt"`
	VoterCount       int64       `json:"voterCount"`
	Creator          *struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"creator"`
	PreviewContent *struct {
		Subtitle string `json:"subtitle"`
	} `json:"previewContent"`
	PreviewImage *struct {
		ID string `json:"id"`
	} `json:"previewImage"`
	PostResponses *struct {
		Count int64 `json:"count"`
	} `json:"postResponses"`
	Tags []struct {
		ID string `json:"id"`
	} `json:"tags"`
	Content *struct {
		BodyModel json.RawMessage `json:"bodyModel"`
	} `json:"content"`
}

// BodyModel is the structured article body.
type BodyModel struct {
	Paragraphs []Paragraph `json:"paragraphs"`
}

// Paragraph is one structural node of the body.
type Paragraph struct {
	Name string `json:"name,omitempty"`
	Type string `json:"type"`
	Text string `json:"text"`
}

// Transcript joins the text of plain paragraphs with single spaces, collapsing
// line breaks inside a paragraph. Headings, images, code blocks and other
// nodes are skipped.
func Transcript(body BodyModel) string {
	parts := make([]string, 0, len(body.Paragraphs))
	for _, p := range body.Paragraphs {
		if p.Type != paragraphType {
			continue
		}
		if text := strings.Join(strings.Fields(p.Text), " "); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

func (s *Source) fetchPost(ctx context.Context, id string) (*post, error) {
	payload := []graphQLRequest{{
		OperationName: "PostPageQuery",
		Variables: map[string]any{
			"postId": id,
			"postMeteringOptions": map[string]any{
				"forceTruncation": false,
			},
		},
		Query: postPageQuery,
	}}

	origin := originOf(s.cfg.GraphQLURL)
	headers := map[string]string{
		"Accept":                    "*/*",
		"Origin":                    origin,
		"Referer":                   origin + "/",
		"apollographql-client-name": "lite",
		"graphql-operation":         "PostPageQuery",
		"medium-frontend-route":     "post",
		"Sec-Fetch-Dest":            "empty",
		"Sec-Fetch-Mode":            "cors",
		"Sec-Fetch-Site":            "same-origin",
	}

	var resp []graphQLResponse
	if err := s.browser.PostJSON(ctx, s.cfg.GraphQLURL, payload, headers, &resp); err != nil {
		return nil, fmt.Errorf("fetch post %s: %w", id, err)
	}
	if len(resp) == 0 || resp[0].Data.PostResult == nil {
		return nil, fmt.Errorf("post %s: %w", id, errNoPost)
	}
	return resp[0].Data.PostResult, nil
}

// scrapeContent enriches stub with the post payload. Any transport or shape
// error fails the whole item.
func (s *Source) scrapeContent(ctx context.Context, stub domain.ContentRecord) (domain.ContentRecord, error) {
	p, err := s.fetchPost(ctx, stub.SourceUUID)
	if err != nil {
		return domain.ContentRecord{}, err
	}
	return s.merge(stub, p)
}

func (s *Source) merge(stub domain.ContentRecord, p *post) (domain.ContentRecord, error) {
	if p.Creator == nil || p.Content == nil || len(p.Content.BodyModel) == 0 {
		return domain.ContentRecord{}, fmt.Errorf("post %s: missing creator or body", stub.SourceUUID)
	}

	var body BodyModel
	if err := json.Unmarshal(p.Content.BodyModel, &body); err != nil {
		return domain.ContentRecord{}, fmt.Errorf("post %s: decode body: %w", stub.SourceUUID, err)
	}

	published, err := sources.ParseDate(p.FirstPublishedAt.String())
	if err != nil {
		return domain.ContentRecord{}, fmt.Errorf("post %s: %w", stub.SourceUUID, err)
	}

	record := stub
	record.Title = p.Title
	if p.PreviewContent != nil {
		record.Description = p.PreviewContent.Subtitle
	}
	record.Channel = p.Creator.Username
	if record.Channel == "" {
		record.Channel = p.Creator.ID
	}
	if p.MediumURL != "" {
		record.URL = p.MediumURL
	}
	if p.PreviewImage != nil && p.PreviewImage.ID != "" {
		record.ThumbnailSmall = fmt.Sprintf(s.cfg.ImageFormat, thumbnailSmallWidth, p.PreviewImage.ID)
		record.ThumbnailLarge = fmt.Sprintf(s.cfg.ImageFormat, thumbnailLargeWidth, p.PreviewImage.ID)
	}
	record.LikeCount = p.VoterCount
	if p.PostResponses != nil {
		record.CommentCount = p.PostResponses.Count
	}

	tags := make([]string, 0, len(p.Tags))
	for _, t := range p.Tags {
		tags = append(tags, t.ID)
	}
	record.Tags = domain.NormalizeTags(tags)

	var original any
	if err := json.Unmarshal(p.Content.BodyModel, &original); err != nil {
		return domain.ContentRecord{}, fmt.Errorf("post %s: decode body: %w", stub.SourceUUID, err)
	}
	record.OriginalTranscript = original
	record.Transcript = Transcript(body)
	record.PublishedAt = published
	return record, nil
}

func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

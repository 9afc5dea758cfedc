package ingest

import (
	"log/slog"

	"golang.org/x/time/rate"

	"content-ingest/pkg/config"
	"content-ingest/pkg/httpclient"
	"content-ingest/pkg/sources"
	"content-ingest/pkg/sources/article"
	"content-ingest/pkg/sources/feed"
	"content-ingest/pkg/sources/podcast"
	"content-ingest/pkg/sources/video"
)

// NewDefaultRegistry wires every source adapter from cfg. All outbound
// clients share one rate limiter.
func NewDefaultRegistry(cfg *config.Config, sink sources.Sink, log *slog.Logger) *Registry {
	opts := []httpclient.Option{httpclient.WithTimeout(cfg.Timeout)}
	if cfg.RPS > 0 {
		burst := int(cfg.RPS)
		if burst < 1 {
			burst = 1
		}
		opts = append(opts, httpclient.WithLimiter(rate.NewLimiter(rate.Limit(cfg.RPS), burst)))
	}
	api := httpclient.NewClient(httpclient.APIClient, opts...)
	browser := httpclient.NewClient(httpclient.BrowserClient, opts...)

	return NewRegistry(
		article.New(article.Config{
			APIKey:  cfg.RapidAPIKey,
			Workers: cfg.EnrichWorkers,
		}, api, browser, sink, log),
		podcast.New(podcast.Config{
			ClientID:     cfg.SpotifyClientID,
			ClientSecret: cfg.SpotifyClientSecret,
		}, api, sink, log),
		video.New(video.Config{
			APIKey:   cfg.YouTubeAPIKey,
			MaxPages: cfg.VideoMaxPages,
			Workers:  cfg.EnrichWorkers,
		}, api, browser, sink, log),
		feed.New(feed.Config{
			FeedURLs: cfg.PodcastFeeds,
			Workers:  cfg.EnrichWorkers,
		}, browser, sink, log),
	)
}

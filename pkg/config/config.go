// Package config loads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

// Sink names accepted in SINKS.
const (
	SinkLog           = "log"
	SinkJSON          = "json"
	SinkMongo         = "mongo"
	SinkPostgres      = "postgres"
	SinkSupabase      = "supabase"
	SinkKafka         = "kafka"
	SinkElasticsearch = "elasticsearch"
)

var knownSinks = map[string]struct{}{
	SinkLog: {}, SinkJSON: {}, SinkMongo: {}, SinkPostgres: {},
	SinkSupabase: {}, SinkKafka: {}, SinkElasticsearch: {},
}

// Sources holds credentials and knobs of the content sources.
type Sources struct {
	RapidAPIKey         string   `env:"RAPID_API_KEY"`
	SpotifyClientID     string   `env:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret string   `env:"SPOTIFY_CLIENT_SECRET"`
	YouTubeAPIKey       string   `env:"YOUTUBE_API_KEY"`
	PodcastFeeds        []string `env:"PODCAST_FEEDS" envSeparator:","`
	EnrichWorkers       int      `env:"ENRICH_WORKERS" envDefault:"16"`
	VideoMaxPages       int      `env:"VIDEO_MAX_PAGES" envDefault:"40"`
}

// HTTP configures the outbound clients.
type HTTP struct {
	RPS     float64       `env:"HTTP_RPS" envDefault:"10"`
	Timeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
}

// Storage configures the record sinks.
type Storage struct {
	Sinks              []string      `env:"SINKS" envSeparator:"," envDefault:"log"`
	MongoURI           string        `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDB            string        `env:"MONGO_DB" envDefault:"content_ingest"`
	MongoCollection    string        `env:"MONGO_COLLECTION" envDefault:"content"`
	PostgresDSN        string        `env:"POSTGRES_DSN"`
	SupabaseURL        string        `env:"SUPABASE_URL"`
	SupabaseKey        string        `env:"SUPABASE_KEY"`
	SupabaseTable      string        `env:"SUPABASE_TABLE" envDefault:"content"`
	KafkaBrokers       []string      `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	KafkaTopic         string        `env:"KAFKA_TOPIC" envDefault:"content_records"`
	ElasticsearchAddr  string        `env:"ELASTICSEARCH_ADDR" envDefault:"http://localhost:9200"`
	ElasticsearchIndex string        `env:"ELASTICSEARCH_INDEX" envDefault:"content"`
	JSONOutput         string        `env:"JSON_OUTPUT" envDefault:"content.jsonl"`
	DedupeCapacity     int           `env:"DEDUPE_CAPACITY" envDefault:"20000"`
	DedupeTTL          time.Duration `env:"DEDUPE_TTL" envDefault:"24h"`
}

// Config is the complete runtime configuration.
type Config struct {
	Sources
	HTTP
	Storage

	DailyWindow time.Duration `env:"DAILY_WINDOW" envDefault:"24h"`
	BindAddr    string        `env:"BIND_ADDR" envDefault:":8080"`
	LogLevel    string        `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads envFile when it exists, then the process environment.
// Variables already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.Sinks = normalizeList(cfg.Sinks, true)
	cfg.PodcastFeeds = normalizeList(cfg.PodcastFeeds, false)
	cfg.KafkaBrokers = normalizeList(cfg.KafkaBrokers, false)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	if c.EnrichWorkers <= 0 {
		return fmt.Errorf("ENRICH_WORKERS must be positive")
	}
	if c.VideoMaxPages <= 0 {
		return fmt.Errorf("VIDEO_MAX_PAGES must be positive")
	}
	if c.DailyWindow <= 0 {
		return fmt.Errorf("DAILY_WINDOW must be positive")
	}
	if c.RPS < 0 {
		return fmt.Errorf("HTTP_RPS cannot be negative")
	}
	if c.DedupeCapacity <= 0 {
		return fmt.Errorf("DEDUPE_CAPACITY must be positive")
	}

	for _, name := range c.Sinks {
		if _, ok := knownSinks[name]; !ok {
			return fmt.Errorf("SINKS: unknown sink %q", name)
		}
		switch {
		case name == SinkPostgres && c.PostgresDSN == "":
			return fmt.Errorf("SINKS: postgres requires POSTGRES_DSN")
		case name == SinkSupabase && (c.SupabaseURL == "" || c.SupabaseKey == ""):
			return fmt.Errorf("SINKS: supabase requires SUPABASE_URL and SUPABASE_KEY")
		case name == SinkKafka && len(c.KafkaBrokers) == 0:
			return fmt.Errorf("SINKS: kafka requires KAFKA_BROKERS")
		}
	}
	return nil
}

func normalizeList(in []string, lower bool) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if lower {
			v = strings.ToLower(v)
		}
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

package db

import (
	"context"
	"fmt"

	supabase "github.com/supabase-community/supabase-go"

	"content-ingest/pkg/domain"
)

// SupabaseConfig holds what the REST API needs.
type SupabaseConfig struct {
	// SupabaseURL example: "https://[project-ref].supabase.co"
	SupabaseURL string

	// SupabaseKey is the service_role key; the anon key cannot upsert.
	SupabaseKey string

	// Table defaults to content_record.
	Table string
}

// SupabaseClient stores records through the Supabase REST API.
type SupabaseClient struct {
	supabaseSDK *supabase.Client
	cfg         SupabaseConfig
}

// NewSupabaseClient constructs a Supabase client.
func NewSupabaseClient(cfg SupabaseConfig) *SupabaseClient {
	if cfg.Table == "" {
		cfg.Table = "content_record"
	}
	return &SupabaseClient{cfg: cfg}
}

// Connect initializes the SDK client.
func (c *SupabaseClient) Connect(context.Context) error {
	if c.cfg.SupabaseURL == "" || c.cfg.SupabaseKey == "" {
		return fmt.Errorf("supabase URL and key are required")
	}
	sdkClient, err := supabase.NewClient(c.cfg.SupabaseURL, c.cfg.SupabaseKey, nil)
	if err != nil {
		return fmt.Errorf("initialize supabase SDK: %w", err)
	}
	c.supabaseSDK = sdkClient
	return nil
}

// SDK returns the Supabase SDK client. Returns nil before Connect.
func (c *SupabaseClient) SDK() *supabase.Client {
	return c.supabaseSDK
}

// UpsertRecord writes record, resolving conflicts on the natural key.
// The table must match the content_record schema of the Postgres client.
func (c *SupabaseClient) UpsertRecord(_ context.Context, record domain.ContentRecord) error {
	if c.supabaseSDK == nil {
		return fmt.Errorf("supabase client not connected")
	}
	row, err := NewRow(record)
	if err != nil {
		return err
	}
	if _, _, err := c.supabaseSDK.From(c.cfg.Table).Upsert(row, "source,source_uuid", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("supabase upsert %s: %w", record.Key(), err)
	}
	return nil
}

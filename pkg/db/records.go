package db

import (
	"encoding/json"
	"fmt"
	"time"

	"content-ingest/pkg/domain"
)

// Row is the relational shape of a ContentRecord, shared by the Postgres
// table and the Supabase REST API.
type Row struct {
	Source             string          `json:"source"`
	SourceUUID         string          `json:"source_uuid"`
	UUID               string          `json:"uuid"`
	Type               string          `json:"type"`
	Title              string          `json:"title"`
	Description        string          `json:"description"`
	Channel            string          `json:"channel"`
	URL                string          `json:"url"`
	PreviewURL         string          `json:"preview_url"`
	FileURL            string          `json:"file_url"`
	ThumbnailSmall     string          `json:"thumbnail_small"`
	ThumbnailLarge     string          `json:"thumbnail_large"`
	LikeCount          int64           `json:"like_count"`
	ViewCount          int64           `json:"view_count"`
	CommentCount       int64           `json:"comment_count"`
	Tags               []string        `json:"tags"`
	Places             []string        `json:"places"`
	OriginalTranscript json.RawMessage `json:"original_transcript"`
	Transcript         string          `json:"transcript"`
	Summary            string          `json:"summary"`
	PublishedAt        *time.Time      `json:"published_at"`
}

// NewRow converts record. Nil collections become empty arrays and a zero
// publish time becomes NULL.
func NewRow(record domain.ContentRecord) (Row, error) {
	row := Row{
		Source:         string(record.Source),
		SourceUUID:     record.SourceUUID,
		UUID:           record.UUID,
		Type:           string(record.Type),
		Title:          record.Title,
		Description:    record.Description,
		Channel:        record.Channel,
		URL:            record.URL,
		PreviewURL:     record.PreviewURL,
		FileURL:        record.FileURL,
		ThumbnailSmall: record.ThumbnailSmall,
		ThumbnailLarge: record.ThumbnailLarge,
		LikeCount:      record.LikeCount,
		ViewCount:      record.ViewCount,
		CommentCount:   record.CommentCount,
		Tags:           nonNil(record.Tags),
		Places:         nonNil(record.Places),
		Transcript:     record.Transcript,
		Summary:        record.Summary,
	}

	if record.OriginalTranscript != nil {
		raw, err := json.Marshal(record.OriginalTranscript)
		if err != nil {
			return Row{}, fmt.Errorf("encode original transcript of %s: %w", record.Key(), err)
		}
		row.OriginalTranscript = raw
	}
	if !record.PublishedAt.IsZero() {
		published := record.PublishedAt.UTC()
		row.PublishedAt = &published
	}
	return row, nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

package domain

import (
	"strings"
	"time"
)

// Source identifies the platform a record was ingested from.
type Source string

const (
	SourceArticleHost Source = "article-host"
	SourcePodcastHost Source = "podcast-host"
	SourceVideoHost   Source = "video-host"
	SourcePodcastFeed Source = "podcast-feed"
)

// ContentType is the kind of content a record describes.
type ContentType string

const (
	TypeArticle ContentType = "article"
	TypePodcast ContentType = "podcast"
	TypeVideo   ContentType = "video"
)

// ContentRecord is the unified shape every source adapter produces.
//
// Source and Type are fixed when the stub is built. (Source, SourceUUID) is the
// natural external key; UUID is assigned by the sink layer.
type ContentRecord struct {
	UUID       string      `bson:"uuid" json:"uuid"`
	SourceUUID string      `bson:"source_uuid" json:"sourceUuid"`
	Source     Source      `bson:"source" json:"source"`
	Type       ContentType `bson:"type" json:"type"`

	Title       string `bson:"title" json:"title"`
	Description string `bson:"description" json:"description"`
	Channel     string `bson:"channel" json:"channel"`

	URL            string `bson:"url" json:"url"`
	PreviewURL     string `bson:"preview_url" json:"previewUrl"`
	FileURL        string `bson:"file_url" json:"fileUrl"`
	ThumbnailSmall string `bson:"thumbnail_small" json:"thumbnailSmall"`
	ThumbnailLarge string `bson:"thumbnail_large" json:"thumbnailLarge"`

	LikeCount    int64 `bson:"like_count" json:"likeCount"`
	ViewCount    int64 `bson:"view_count" json:"viewCount"`
	CommentCount int64 `bson:"comment_count" json:"commentCount"`

	Tags   []string `bson:"tags" json:"tags"`
	Places []string `bson:"places" json:"places"`

	// OriginalTranscript keeps the raw source structure for reprocessing.
	// Transcript is always the flattened text of it.
	OriginalTranscript any    `bson:"original_transcript,omitempty" json:"originalTranscript,omitempty"`
	Transcript         string `bson:"transcript" json:"transcript"`
	Summary            string `bson:"summary,omitempty" json:"summary,omitempty"`

	PublishedAt time.Time `bson:"published_at" json:"publishedAt"`
}

// NewStub returns a record with every collection initialized, so no field is
// ever nil when it reaches a sink.
func NewStub(source Source, contentType ContentType, sourceUUID string) ContentRecord {
	return ContentRecord{
		SourceUUID: sourceUUID,
		Source:     source,
		Type:       contentType,
		Tags:       []string{},
		Places:     []string{},
	}
}

// Key returns the natural external key of the record.
func (c ContentRecord) Key() string {
	return string(c.Source) + ":" + c.SourceUUID
}

// Text is the searchable body of the record.
func (c ContentRecord) Text() string {
	return strings.Join([]string{c.Title, c.Description, c.Transcript}, ". ")
}

// NormalizeTag lowercases a tag and turns separators into single spaces.
// It is idempotent.
func NormalizeTag(tag string) string {
	tag = strings.ToLower(tag)
	tag = strings.NewReplacer("-", " ", "_", " ").Replace(tag)
	return strings.Join(strings.Fields(tag), " ")
}

// NormalizeTags normalizes every tag and drops empty ones. Order is kept.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if t := NormalizeTag(tag); t != "" {
			out = append(out, t)
		}
	}
	return out
}

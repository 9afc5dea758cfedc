package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/segmentio/kafka-go"

	"content-ingest/pkg/db"
	"content-ingest/pkg/domain"
)

// Mongo upserts records into the content collection.
type Mongo struct {
	client *db.Client
}

func NewMongo(client *db.Client) *Mongo { return &Mongo{client: client} }

func (m *Mongo) Submit(ctx context.Context, record domain.ContentRecord) error {
	return m.client.SaveRecord(ctx, record)
}

// Postgres upserts records into the content_record table.
type Postgres struct {
	client *db.PostgresClient
}

func NewPostgres(client *db.PostgresClient) *Postgres { return &Postgres{client: client} }

func (p *Postgres) Submit(ctx context.Context, record domain.ContentRecord) error {
	_, err := p.client.UpsertRecords(ctx, []domain.ContentRecord{record})
	return err
}

// Supabase upserts records through the REST API.
type Supabase struct {
	client *db.SupabaseClient
}

func NewSupabase(client *db.SupabaseClient) *Supabase { return &Supabase{client: client} }

func (s *Supabase) Submit(ctx context.Context, record domain.ContentRecord) error {
	return s.client.UpsertRecord(ctx, record)
}

// MessageWriter is the part of kafka.Writer the Kafka sink needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Kafka publishes records as JSON keyed by their natural key, so every
// version of a record lands on the same partition.
type Kafka struct {
	writer MessageWriter
}

// NewKafkaWriter creates a hash-balanced writer for topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		MaxAttempts:            3,
		AllowAutoTopicCreation: true,
	}
}

func NewKafka(writer MessageWriter) *Kafka { return &Kafka{writer: writer} }

func (k *Kafka) Submit(ctx context.Context, record domain.ContentRecord) error {
	msg, err := KafkaMessage(record)
	if err != nil {
		return err
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", record.Key(), err)
	}
	return nil
}

// KafkaMessage encodes record for publishing.
func KafkaMessage(record domain.ContentRecord) (kafka.Message, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal %s: %w", record.Key(), err)
	}
	return kafka.Message{
		Key:   []byte(record.Key()),
		Value: data,
		Headers: []kafka.Header{
			{Key: "source", Value: []byte(record.Source)},
			{Key: "type", Value: []byte(record.Type)},
		},
	}, nil
}

// Elasticsearch indexes records by UUID. Records without one get an
// id derived from their natural key.
type Elasticsearch struct {
	es    *elasticsearch.Client
	index string
}

// NewElasticsearch instantiates the client for addr.
func NewElasticsearch(addr, index string) (*Elasticsearch, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &Elasticsearch{es: es, index: index}, nil
}

// Ping checks if Elasticsearch is available.
func (e *Elasticsearch) Ping(ctx context.Context) error {
	res, err := e.es.Ping(e.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping failed: %s", res.Status())
	}
	return nil
}

func (e *Elasticsearch) Submit(ctx context.Context, record domain.ContentRecord) error {
	if record.UUID == "" {
		record.UUID = RecordUUID(record)
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", record.Key(), err)
	}

	req := esapi.IndexRequest{
		Index:      e.index,
		DocumentID: record.UUID,
		Body:       bytes.NewReader(payload),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, e.es)
	if err != nil {
		return fmt.Errorf("index %s: %w", record.Key(), err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index %s failed: %s", record.Key(), strings.TrimSpace(string(body)))
	}
	return nil
}

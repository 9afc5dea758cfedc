package db

import (
	"context"
	"fmt"
	"reflect"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"content-ingest/pkg/domain"
)

// Client wraps the MongoDB client and the content collection.
type Client struct {
	mongoClient *mongo.Client
	database    *mongo.Database
	collection  *mongo.Collection
}

// NewClient creates a new database client. Connectivity is checked by Connect.
func NewClient(ctx context.Context, connectionString, databaseName, collectionName string) (*Client, error) {
	// Nested documents decode to maps so raw transcripts stay JSON friendly.
	registry := bson.NewRegistry()
	registry.RegisterTypeMapEntry(bsontype.EmbeddedDocument, reflect.TypeOf(bson.M{}))

	clientOptions := options.Client().ApplyURI(connectionString).SetRegistry(registry)
	mongoClient, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	database := mongoClient.Database(databaseName)
	return &Client{
		mongoClient: mongoClient,
		database:    database,
		collection:  database.Collection(collectionName),
	}, nil
}

// Connect verifies the connection and ensures the natural-key index.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.mongoClient.Ping(ctx, nil); err != nil {
		return fmt.Errorf("ping mongo: %w", err)
	}

	index := mongo.IndexModel{
		Keys:    bson.D{{Key: "source", Value: 1}, {Key: "source_uuid", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("source_key"),
	}
	if _, err := c.collection.Indexes().CreateOne(ctx, index); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// Close closes the MongoDB connection
func (c *Client) Close(ctx context.Context) error {
	if c.mongoClient == nil {
		return nil
	}
	return c.mongoClient.Disconnect(ctx)
}

// SaveRecord upserts record by its natural key.
func (c *Client) SaveRecord(ctx context.Context, record domain.ContentRecord) error {
	filter := bson.M{"source": record.Source, "source_uuid": record.SourceUUID}
	update := bson.M{"$set": record}
	opts := options.Update().SetUpsert(true)

	if _, err := c.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("upsert %s: %w", record.Key(), err)
	}
	return nil
}

// CountRecords returns the number of stored records.
func (c *Client) CountRecords(ctx context.Context) (int64, error) {
	return c.collection.CountDocuments(ctx, bson.M{})
}

// ForEachBatch streams every stored record to fn in batches of size.
// Documents that fail to decode are skipped.
func (c *Client) ForEachBatch(ctx context.Context, size int, fn func([]domain.ContentRecord) error) error {
	if size <= 0 {
		size = 100
	}

	cursor, err := c.collection.Find(ctx, bson.M{}, options.Find().SetBatchSize(int32(size)))
	if err != nil {
		return fmt.Errorf("failed to query records: %w", err)
	}
	defer cursor.Close(ctx)

	batch := make([]domain.ContentRecord, 0, size)
	for cursor.Next(ctx) {
		var record domain.ContentRecord
		if err := cursor.Decode(&record); err != nil {
			continue
		}
		batch = append(batch, record)
		if len(batch) == size {
			if err := fn(batch); err != nil {
				return err
			}
			batch = make([]domain.ContentRecord, 0, size)
		}
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("cursor error: %w", err)
	}

	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}

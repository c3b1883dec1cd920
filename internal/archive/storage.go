package archive

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/fleetwatch/fleetwatch/pkg/models"
)

// Store archives admitted telemetry entries in MongoDB. The visible window
// drops old entries from view only; the archive keeps them durably.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *zap.Logger
	ttlDays    int
}

// entryDoc is the archived form of an admitted entry.
type entryDoc struct {
	ObservedAt time.Time `bson:"observed_at"`
	Timestamp  string    `bson:"ts"`
	Host       string    `bson:"host"`
	Level      string    `bson:"level"`
	CPU        float64   `bson:"cpu"`
	Mem        float64   `bson:"mem"`
	Disk       float64   `bson:"disk"`
	TempF      float64   `bson:"temp_f"`
	Code       string    `bson:"code,omitempty"`
	Message    string    `bson:"msg"`
	Raw        string    `bson:"raw"`
}

// Connect creates an archive store and verifies the connection.
func Connect(ctx context.Context, uri, database, collection string, ttlDays int, logger *zap.Logger) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	s := &Store{
		client:     client,
		collection: client.Database(database).Collection(collection),
		logger:     logger,
		ttlDays:    ttlDays,
	}

	if err := s.ensureIndexes(ctx); err != nil {
		logger.Error("failed to ensure archive indexes", zap.Error(err))
		// Archiving still works without indexes.
	}

	logger.Info("connected to archive",
		zap.String("database", database),
		zap.String("collection", collection))

	return s, nil
}

// Store inserts a batch of admitted entries.
func (s *Store) Store(ctx context.Context, entries []models.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	docs := make([]interface{}, len(entries))
	for i, e := range entries {
		docs[i] = entryDoc{
			ObservedAt: e.ObservedAt,
			Timestamp:  e.Record.Timestamp,
			Host:       e.Record.Host,
			Level:      e.Record.Level,
			CPU:        e.Record.CPU,
			Mem:        e.Record.Mem,
			Disk:       e.Record.Disk,
			TempF:      e.Record.TempF,
			Code:       e.Record.Code,
			Message:    e.Record.Message,
			Raw:        e.Raw,
		}
	}

	result, err := s.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("failed to archive entries: %w", err)
	}

	s.logger.Debug("entries archived", zap.Int("inserted", len(result.InsertedIDs)))
	return nil
}

// ensureIndexes creates the archive indexes (idempotent).
func (s *Store) ensureIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "observed_at", Value: -1}},
			Options: options.Index().SetName("observed_at_desc"),
		},
		{
			Keys: bson.D{
				{Key: "host", Value: 1},
				{Key: "observed_at", Value: -1},
			},
			Options: options.Index().SetName("host_observed_at"),
		},
	}

	if s.ttlDays > 0 {
		ttlSeconds := int32(s.ttlDays * 24 * 60 * 60)
		indexModels = append(indexModels, mongo.IndexModel{
			Keys: bson.D{{Key: "observed_at", Value: 1}},
			Options: options.Index().
				SetName("ttl_index").
				SetExpireAfterSeconds(ttlSeconds),
		})
	}

	if _, err := s.collection.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// Close disconnects from MongoDB.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

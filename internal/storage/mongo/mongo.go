// Package mongo stores contacts, cards and merge history as documents in
// MongoDB. Contacts and cards are separate collections and no transaction
// spans them.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	contactsCollection = "contacts"
	cardsCollection    = "cards"
	eventsCollection   = "merge_events"
)

// Config holds MongoDB connection settings
type Config struct {
	URI            string        `yaml:"uri"`
	Database       string        `yaml:"database"`
	MaxPoolSize    uint64        `yaml:"max_pool_size"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// DefaultConfig returns a config pointing at a local server
func DefaultConfig() *Config {
	return &Config{
		URI:            "mongodb://localhost:27017",
		Database:       "crm",
		MaxPoolSize:    20,
		ConnectTimeout: 10 * time.Second,
	}
}

// Validate checks the connection settings
func (c *Config) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("mongo uri is required")
	}
	if c.Database == "" {
		return fmt.Errorf("mongo database is required")
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("mongo connect_timeout must be positive (got %v)", c.ConnectTimeout)
	}
	return nil
}

// MongoStorage implements the document store on MongoDB
type MongoStorage struct {
	client   *mongo.Client
	db       *mongo.Database
	contacts *mongo.Collection
	cards    *mongo.Collection
	events   *mongo.Collection
}

// New connects, pings and ensures indexes exist
func New(ctx context.Context, cfg *Config) (*MongoStorage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(cfg.Database)
	s := &MongoStorage{
		client:   client,
		db:       db,
		contacts: db.Collection(contactsCollection),
		cards:    db.Collection(cardsCollection),
		events:   db.Collection(eventsCollection),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *MongoStorage) ensureIndexes(ctx context.Context) error {
	indexes := map[*mongo.Collection][]mongo.IndexModel{
		s.contacts: {
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "phone", Value: 1}}},
		},
		s.cards: {
			{Keys: bson.D{{Key: "contact_id", Value: 1}}},
			{Keys: bson.D{{Key: "contact_number", Value: 1}}},
		},
		s.events: {
			{Keys: bson.D{{Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "contact_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		},
	}
	for coll, models := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

// Close disconnects the client
func (s *MongoStorage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// drop removes every collection; used by tests
func (s *MongoStorage) drop(ctx context.Context) error {
	for _, coll := range []*mongo.Collection{s.contacts, s.cards, s.events} {
		if err := coll.Drop(ctx); err != nil {
			return err
		}
	}
	return s.ensureIndexes(ctx)
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

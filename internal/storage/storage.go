package storage

import (
	"context"
	"fmt"

	"github.com/steveyegge/crm/internal/events"
	"github.com/steveyegge/crm/internal/merge"
	"github.com/steveyegge/crm/internal/storage/mongo"
	"github.com/steveyegge/crm/internal/storage/postgres"
	"github.com/steveyegge/crm/internal/storage/sqlite"
	"github.com/steveyegge/crm/internal/types"
)

// Storage is the full document store: what the merge engine needs plus
// the seeding, lookup and history operations the CLI uses.
type Storage interface {
	merge.Store
	events.EventStore

	CreateContact(ctx context.Context, c *types.Contact) error
	CreateCard(ctx context.Context, card *types.ConversationCard) error
	GetCard(ctx context.Context, id string) (*types.ConversationCard, error)

	// Lifecycle
	Close() error
}

var (
	_ Storage = (*sqlite.SQLiteStorage)(nil)
	_ Storage = (*postgres.PostgresStorage)(nil)
	_ Storage = (*mongo.MongoStorage)(nil)
)

// Backend names a storage implementation
type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
	BackendMongo    Backend = "mongo"
)

// DefaultPath is where the SQLite database lives relative to the project root
const DefaultPath = ".crm/crm.db"

// Config holds database configuration
type Config struct {
	// Backend selects the implementation. Default: sqlite
	Backend Backend `yaml:"backend"`

	// Path is the SQLite database file path
	// Special value ":memory:" creates an in-memory database (useful for tests)
	Path string `yaml:"path"`

	Postgres *postgres.Config `yaml:"postgres"`
	Mongo    *mongo.Config    `yaml:"mongo"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Backend:  BackendSQLite,
		Path:     DefaultPath,
		Postgres: postgres.DefaultConfig(),
		Mongo:    mongo.DefaultConfig(),
	}
}

// Validate checks the settings of the selected backend only
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSQLite, "":
		if c.Path == "" {
			return fmt.Errorf("storage path is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.Postgres == nil {
			return fmt.Errorf("storage.postgres section is required for the postgres backend")
		}
		return c.Postgres.Validate()
	case BackendMongo:
		if c.Mongo == nil {
			return fmt.Errorf("storage.mongo section is required for the mongo backend")
		}
		return c.Mongo.Validate()
	default:
		return fmt.Errorf("unknown storage backend %q (want sqlite, postgres or mongo)", c.Backend)
	}
	return nil
}

// NewStorage opens the configured backend
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid storage config: %w", err)
	}

	switch cfg.Backend {
	case BackendPostgres:
		return postgres.New(ctx, cfg.Postgres)
	case BackendMongo:
		return mongo.New(ctx, cfg.Mongo)
	default:
		return sqlite.New(ctx, cfg.Path)
	}
}

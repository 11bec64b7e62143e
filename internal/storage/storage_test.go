package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/crm/internal/types"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "empty backend means sqlite", mutate: func(c *Config) { c.Backend = "" }},
		{name: "sqlite without path", mutate: func(c *Config) { c.Path = "" }, wantErr: "path is required"},
		{name: "unknown backend", mutate: func(c *Config) { c.Backend = "redis" }, wantErr: "unknown storage backend"},
		{name: "postgres missing section", mutate: func(c *Config) {
			c.Backend = BackendPostgres
			c.Postgres = nil
		}, wantErr: "storage.postgres"},
		{name: "postgres bad port", mutate: func(c *Config) {
			c.Backend = BackendPostgres
			c.Postgres.Port = 70000
		}, wantErr: "port"},
		{name: "mongo without uri", mutate: func(c *Config) {
			c.Backend = BackendMongo
			c.Mongo.URI = ""
		}, wantErr: "uri"},
		{name: "bad postgres ignored when sqlite selected", mutate: func(c *Config) { c.Postgres.Port = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewStorageSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), ProjectDir, "crm.db")

	store, err := NewStorage(ctx, cfg)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.CreateContact(ctx, &types.Contact{ID: "a", Phone: "2125550100"}))
	contacts, err := store.ListContacts(ctx)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "a", contacts[0].ID)
}

func TestNewStorageInMemory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Path = ":memory:"

	store, err := NewStorage(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestNewStorageRejectsInvalidConfig(t *testing.T) {
	_, err := NewStorage(context.Background(), &Config{Backend: "dynamo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid storage config")
}

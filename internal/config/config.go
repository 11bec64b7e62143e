// Package config loads crm settings. Values are layered: built-in defaults,
// then .crm/config.yaml, then a .env file, then CRM_* environment variables.
// A .env file never overrides a variable already set in the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/steveyegge/crm/internal/deduplication"
	"github.com/steveyegge/crm/internal/logger"
	"github.com/steveyegge/crm/internal/storage"
)

// DefaultPath is the project config file, relative to the working directory
var DefaultPath = filepath.Join(storage.ProjectDir, "config.yaml")

// Config is the complete crm configuration
type Config struct {
	Storage *storage.Config      `yaml:"storage"`
	Dedup   deduplication.Config `yaml:"dedup"`
	Log     LogConfig            `yaml:"log"`
	History HistoryConfig        `yaml:"history"`
}

// LogConfig selects the slog handler
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Validate checks the level and format names
func (c LogConfig) Validate() error {
	if _, err := logger.ParseLevel(c.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Format) {
	case "", "text", "json":
		return nil
	}
	return fmt.Errorf("unknown log format %q (want text or json)", c.Format)
}

// Options converts the config for logger.Setup
func (c LogConfig) Options() logger.Options {
	return logger.Options{Level: c.Level, Format: c.Format}
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Storage: storage.DefaultConfig(),
		Dedup:   deduplication.DefaultConfig(),
		Log:     LogConfig{Level: "info", Format: "text"},
		History: DefaultHistoryConfig(),
	}
}

// Validate checks every section
func (c *Config) Validate() error {
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Dedup.Validate(); err != nil {
		return fmt.Errorf("dedup: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := c.History.Validate(); err != nil {
		return fmt.Errorf("history: %w", err)
	}
	return nil
}

// Load builds the configuration. An empty path reads .crm/config.yaml if it
// exists; an explicit path must exist. .env is read from the working directory.
func Load(path string) (*Config, error) {
	required := path != ""
	if path == "" {
		path = DefaultPath
	}
	return load(path, ".env", required)
}

func load(path, envPath string, required bool) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if cfg.Storage == nil {
			cfg.Storage = storage.DefaultConfig()
		}
	case errors.Is(err, os.ErrNotExist) && !required:
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from CRM_* environment variables
//
// Environment variables:
//   - CRM_STORAGE_BACKEND: sqlite, postgres or mongo
//   - CRM_DB_PATH: SQLite database path
//   - CRM_PG_HOST, CRM_PG_PORT, CRM_PG_DATABASE, CRM_PG_USER, CRM_PG_PASSWORD, CRM_PG_SSLMODE, CRM_PG_MAX_CONNS
//   - CRM_MONGO_URI, CRM_MONGO_DATABASE
//   - CRM_LOG_LEVEL, CRM_LOG_FORMAT
//   - CRM_DEDUP_* and CRM_HISTORY_* (see those sections)
func (c *Config) ApplyEnv() error {
	var backend string
	parseEnvString("CRM_STORAGE_BACKEND", &backend)
	if backend != "" {
		c.Storage.Backend = storage.Backend(strings.ToLower(backend))
	}
	parseEnvString("CRM_DB_PATH", &c.Storage.Path)

	if c.Storage.Postgres != nil {
		pg := c.Storage.Postgres
		parseEnvString("CRM_PG_HOST", &pg.Host)
		if err := parseEnvInt("CRM_PG_PORT", &pg.Port); err != nil {
			return err
		}
		parseEnvString("CRM_PG_DATABASE", &pg.Database)
		parseEnvString("CRM_PG_USER", &pg.User)
		parseEnvString("CRM_PG_PASSWORD", &pg.Password)
		parseEnvString("CRM_PG_SSLMODE", &pg.SSLMode)
		if err := parseEnvInt32("CRM_PG_MAX_CONNS", &pg.MaxConns); err != nil {
			return err
		}
	}
	if c.Storage.Mongo != nil {
		parseEnvString("CRM_MONGO_URI", &c.Storage.Mongo.URI)
		parseEnvString("CRM_MONGO_DATABASE", &c.Storage.Mongo.Database)
	}

	parseEnvString("CRM_LOG_LEVEL", &c.Log.Level)
	parseEnvString("CRM_LOG_FORMAT", &c.Log.Format)

	if err := c.Dedup.ApplyEnv(); err != nil {
		return err
	}
	return c.History.ApplyEnv()
}

// String renders the config as YAML with secrets masked
func (c *Config) String() string {
	masked := *c
	if c.Storage != nil && c.Storage.Postgres != nil && c.Storage.Postgres.Password != "" {
		st := *c.Storage
		pg := *c.Storage.Postgres
		pg.Password = "********"
		st.Postgres = &pg
		masked.Storage = &st
	}
	out, err := yaml.Marshal(&masked)
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(out)
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/steveyegge/crm/internal/events"
)

// HistoryConfig holds retention settings for the merge event log
type HistoryConfig struct {
	// RetentionDays is how long info and warning events are kept
	// Default: 90, Range: 1-3650
	RetentionDays int `yaml:"retention_days"`

	// RetentionErrorDays is how long failed-merge events are kept
	// Must be >= RetentionDays
	// Default: 365, Range: 1-3650
	RetentionErrorDays int `yaml:"retention_error_days"`

	// PruneAfterSync runs a prune at the end of every sync
	// Default: false
	PruneAfterSync bool `yaml:"prune_after_sync"`
}

// DefaultHistoryConfig returns the default retention configuration
func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		RetentionDays:      90,
		RetentionErrorDays: 365,
		PruneAfterSync:     false,
	}
}

// Validate checks if the configuration has valid values
func (c HistoryConfig) Validate() error {
	if c.RetentionDays < 1 || c.RetentionDays > 3650 {
		return fmt.Errorf("retention_days must be between 1 and 3650 (got %d)", c.RetentionDays)
	}
	if c.RetentionErrorDays < 1 || c.RetentionErrorDays > 3650 {
		return fmt.Errorf("retention_error_days must be between 1 and 3650 (got %d)", c.RetentionErrorDays)
	}
	if c.RetentionErrorDays < c.RetentionDays {
		return fmt.Errorf("retention_error_days (%d) must be >= retention_days (%d)",
			c.RetentionErrorDays, c.RetentionDays)
	}
	return nil
}

// String returns a human-readable representation of the config
func (c HistoryConfig) String() string {
	return fmt.Sprintf("HistoryConfig{RetentionDays: %d, RetentionErrorDays: %d, PruneAfterSync: %t}",
		c.RetentionDays, c.RetentionErrorDays, c.PruneAfterSync)
}

// PrunePass is one PruneMergeEvents call: events of Severities older than Before
type PrunePass struct {
	Before     time.Time
	Severities []events.EventSeverity
}

// PrunePasses returns the prune calls that enforce the retention policy as of now
func (c HistoryConfig) PrunePasses(now time.Time) []PrunePass {
	passes := []PrunePass{{
		Before:     now.AddDate(0, 0, -c.RetentionDays),
		Severities: []events.EventSeverity{events.SeverityInfo, events.SeverityWarning},
	}}
	passes = append(passes, PrunePass{
		Before:     now.AddDate(0, 0, -c.RetentionErrorDays),
		Severities: []events.EventSeverity{events.SeverityError},
	})
	return passes
}

// ApplyEnv overrides fields from CRM_HISTORY_* environment variables
//
// Environment variables:
//   - CRM_HISTORY_RETENTION_DAYS: retention for info/warning events in days
//   - CRM_HISTORY_RETENTION_ERROR_DAYS: retention for error events in days
//   - CRM_HISTORY_PRUNE_AFTER_SYNC: prune at the end of each sync
func (c *HistoryConfig) ApplyEnv() error {
	if err := parseEnvInt("CRM_HISTORY_RETENTION_DAYS", &c.RetentionDays); err != nil {
		return err
	}
	if err := parseEnvInt("CRM_HISTORY_RETENTION_ERROR_DAYS", &c.RetentionErrorDays); err != nil {
		return err
	}
	return parseEnvBool("CRM_HISTORY_PRUNE_AFTER_SYNC", &c.PruneAfterSync)
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvInt32 parses an int32 from an environment variable
func parseEnvInt32(key string, dest *int32) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseInt(value, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = int32(parsed)
	return nil
}

// parseEnvBool parses a bool from an environment variable
func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvString parses a string from an environment variable
func parseEnvString(key string, dest *string) {
	if value := os.Getenv(key); value != "" {
		*dest = value
	}
}

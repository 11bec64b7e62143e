package deduplication

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/steveyegge/crm/internal/types"
)

// Card survivor policy names. The merge package maps these to policies.
const (
	SurvivorMostMessages    = "most-messages"
	SurvivorLinkedToPrimary = "linked-to-primary"
	SurvivorMostRecent      = "most-recent"
)

// Config holds configuration for detection and merging
type Config struct {
	// Strategies are the match passes run after the id-collision pass, in
	// order. The id-collision pass always runs first and cannot be disabled.
	// Default: phone-match only
	Strategies []types.MatchStrategy `yaml:"strategies"`

	// CardSurvivor selects which conversation card survives a merge
	// Default: most-messages (ties go to the first card in input order)
	CardSurvivor string `yaml:"card_survivor"`

	// WritesPerSecond throttles store writes during merge execution.
	// Zero disables throttling.
	// Default: 0
	WritesPerSecond float64 `yaml:"writes_per_second"`

	// MergeTimeout bounds a single merge or sync run. A merge that times out
	// has an unknown outcome and detection must be re-run.
	// Default: 2 minutes
	MergeTimeout time.Duration `yaml:"merge_timeout"`
}

// DefaultConfig returns the default detection configuration
func DefaultConfig() Config {
	return Config{
		Strategies:      []types.MatchStrategy{types.MatchPhone},
		CardSurvivor:    SurvivorMostMessages,
		WritesPerSecond: 0,
		MergeTimeout:    2 * time.Minute,
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if len(c.Strategies) == 0 {
		return fmt.Errorf("strategies must name at least one match strategy")
	}
	seen := make(map[types.MatchStrategy]bool, len(c.Strategies))
	for _, s := range c.Strategies {
		if !s.IsValid() {
			return fmt.Errorf("unknown match strategy %q", s)
		}
		if s == types.MatchIDCollision {
			return fmt.Errorf("strategies cannot list %s (it always runs first)", s)
		}
		if seen[s] {
			return fmt.Errorf("strategy %s listed more than once", s)
		}
		seen[s] = true
	}
	switch c.CardSurvivor {
	case SurvivorMostMessages, SurvivorLinkedToPrimary, SurvivorMostRecent:
	default:
		return fmt.Errorf("card_survivor must be one of %s, %s, %s (got %q)",
			SurvivorMostMessages, SurvivorLinkedToPrimary, SurvivorMostRecent, c.CardSurvivor)
	}
	if c.WritesPerSecond < 0 {
		return fmt.Errorf("writes_per_second cannot be negative (got %.2f)", c.WritesPerSecond)
	}
	if c.WritesPerSecond > 10000 {
		return fmt.Errorf("writes_per_second too large (got %.2f, max 10000)", c.WritesPerSecond)
	}
	if c.MergeTimeout <= 0 {
		return fmt.Errorf("merge_timeout must be positive (got %v)", c.MergeTimeout)
	}
	if c.MergeTimeout > time.Hour {
		return fmt.Errorf("merge_timeout too large (got %v, max 1 hour)", c.MergeTimeout)
	}
	return nil
}

// String returns a human-readable representation of the config
func (c Config) String() string {
	names := make([]string, len(c.Strategies))
	for i, s := range c.Strategies {
		names[i] = string(s)
	}
	return fmt.Sprintf(
		"Config{Strategies: [%s], CardSurvivor: %s, WritesPerSecond: %.2f, MergeTimeout: %v}",
		strings.Join(names, ","), c.CardSurvivor, c.WritesPerSecond, c.MergeTimeout,
	)
}

// ConfigFromEnv creates a Config from environment variables, falling back to defaults
//
// Environment variables:
//   - CRM_DEDUP_STRATEGIES: comma-separated match strategies (default: phone-match)
//   - CRM_DEDUP_CARD_SURVIVOR: card survivor policy (default: most-messages)
//   - CRM_DEDUP_WRITES_PER_SECOND: executor write throttle, 0 = off (default: 0)
//   - CRM_DEDUP_MERGE_TIMEOUT_SECS: merge timeout in seconds (default: 120)
//
// Returns an error if any environment variable has an invalid value.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration from environment: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from CRM_DEDUP_* environment variables.
// It does not validate the result.
func (c *Config) ApplyEnv() error {
	if err := parseEnvStrategies("CRM_DEDUP_STRATEGIES", &c.Strategies); err != nil {
		return err
	}
	if v := os.Getenv("CRM_DEDUP_CARD_SURVIVOR"); v != "" {
		c.CardSurvivor = v
	}
	if err := parseEnvFloat("CRM_DEDUP_WRITES_PER_SECOND", &c.WritesPerSecond); err != nil {
		return err
	}
	if err := parseEnvDuration("CRM_DEDUP_MERGE_TIMEOUT_SECS", &c.MergeTimeout, time.Second); err != nil {
		return err
	}
	return nil
}

func parseEnvStrategies(key string, dest *[]types.MatchStrategy) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	var out []types.MatchStrategy
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		s := types.MatchStrategy(part)
		if !s.IsValid() {
			return fmt.Errorf("invalid value for %s: unknown strategy %q", key, part)
		}
		out = append(out, s)
	}
	*dest = out
	return nil
}

// parseEnvFloat parses a float64 from an environment variable
func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvDuration parses a duration from an environment variable
// The multiplier converts the numeric value (e.g. seconds) to a duration
func parseEnvDuration(key string, dest *time.Duration, multiplier time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = time.Duration(parsed) * multiplier
	return nil
}

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/bsouthga/gop-primary-twitter-fun/src/helpers"
	"github.com/bsouthga/gop-primary-twitter-fun/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}

	// 3. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, &helpers.ConfigurationError{TrackerError: helpers.TrackerError{
			Message: "config validation failed",
			Cause:   err,
		}}
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// GranularityList returns the configured granularities as parsed values.
// Validate has already rejected unknown names.
func (c *Config) GranularityList() []models.MGranularity {
	out := make([]models.MGranularity, 0, len(c.Granularities))
	for _, name := range c.Granularities {
		g, err := models.ParseGranularity(name)
		if err != nil {
			continue
		}
		out = append(out, g)
	}
	return out
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	// Validate App configuration (Flattened)
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Validate Server configuration (Flattened)
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}

	// Validate Storage configuration
	if c.Storage.DBType == "" {
		return fmt.Errorf("database type cannot be empty")
	}
	if c.Storage.DBType == "sqlite" && c.Storage.DBPath == "" {
		return fmt.Errorf("database path cannot be empty for sqlite")
	}
	if c.Storage.DBType == "postgres" && c.Storage.DBConnectionString == "" {
		return fmt.Errorf("connection string cannot be empty for postgres")
	}

	// Validate Network configuration
	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	// Validate Stream configuration
	if c.Stream.URL == "" {
		return fmt.Errorf("stream url cannot be empty")
	}
	if c.Stream.ReconnectAttempts <= 0 {
		return fmt.Errorf("stream reconnect attempts must be greater than 0")
	}
	if c.Stream.ReconnectDelaySec <= 0 {
		return fmt.Errorf("stream reconnect delay must be greater than 0")
	}

	// Validate Candidates
	if len(c.Candidates) == 0 {
		return fmt.Errorf("at least one candidate must be configured")
	}
	for i, cand := range c.Candidates {
		if cand.Name == "" {
			return fmt.Errorf("candidate %d must have a name", i)
		}
	}

	// Validate Granularities
	if len(c.Granularities) == 0 {
		return fmt.Errorf("at least one granularity must be configured")
	}
	maxLookback := time.Duration(0)
	for _, name := range c.Granularities {
		g, err := models.ParseGranularity(name)
		if err != nil {
			return err
		}
		if g.Lookback() > maxLookback {
			maxLookback = g.Lookback()
		}
	}

	// Bucket retention must cover the largest lookback window, otherwise the
	// widest series silently loses its tail.
	if c.BucketRetentionHours <= 0 {
		return fmt.Errorf("bucket retention hours must be greater than 0")
	}
	if retention := time.Duration(c.BucketRetentionHours) * time.Hour; retention < maxLookback {
		return fmt.Errorf("bucket retention (%v) is shorter than the largest granularity lookback (%v)", retention, maxLookback)
	}

	// Validate timers
	if c.Cache.RefreshSeconds <= 0 {
		return fmt.Errorf("cache refresh seconds must be greater than 0")
	}
	if c.Broadcast.IntervalMs <= 0 {
		return fmt.Errorf("broadcast interval must be greater than 0")
	}

	// Validate External sources
	if c.External.RefreshMinutes <= 0 {
		return fmt.Errorf("external refresh minutes must be greater than 0")
	}
	if c.External.RetentionHours <= 0 {
		return fmt.Errorf("external retention hours must be greater than 0")
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}

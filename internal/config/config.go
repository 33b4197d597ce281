// Alsobought - Frequently-Bought-Together Product Recommendations
// Copyright 2026 J. Mehring (jmehring)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jmehring/alsobought

// Package config defines the Alsobought configuration tree and its loader.
//
// Configuration is merged from three layers, later layers overriding
// earlier ones: compiled-in defaults, a YAML config file, and environment
// variables prefixed with ALSOBOUGHT_ (e.g. ALSOBOUGHT_SERVER_PORT).
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the service.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Database  DatabaseConfig  `koanf:"database"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Mining    MiningConfig    `koanf:"mining"`
	Relations RelationsConfig `koanf:"relations"`
	Jobs      JobsConfig      `koanf:"jobs"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`

	// AdminRateLimit is the max admin requests per minute per client IP.
	AdminRateLimit int `koanf:"admin_rate_limit"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// DatabaseConfig holds order-history (DuckDB) settings.
type DatabaseConfig struct {
	// Path is the DuckDB database file path.
	Path string `koanf:"path"`

	// OrderBatchSize bounds how many orders are fetched per page while
	// building transactions. Order history can be large; it is never
	// loaded in one query.
	OrderBatchSize int `koanf:"order_batch_size"`
}

// CatalogConfig holds relation-list store (Badger) settings.
type CatalogConfig struct {
	// Path is the Badger data directory.
	Path string `koanf:"path"`

	// PreserveManual keeps operator-pinned relation entries across
	// recomputation runs instead of replacing lists wholesale.
	PreserveManual bool `koanf:"preserve_manual"`
}

// MiningConfig holds frequent-itemset mining settings.
type MiningConfig struct {
	// SupportThreshold is the minimum support for mined itemsets.
	// Values in (0,1) are a fraction of the transaction count; values
	// >= 1 are an absolute transaction count.
	SupportThreshold float64 `koanf:"support_threshold"`

	// ChannelSupport overrides SupportThreshold per channel token.
	ChannelSupport map[string]float64 `koanf:"channel_support"`

	// MaxItemSets aborts a mining run that produces more itemsets than
	// this ceiling. Guards against combinatorial blowup at low thresholds.
	MaxItemSets int `koanf:"max_item_sets"`

	// Budget is the wall-clock budget for a single mining run.
	Budget time.Duration `koanf:"budget"`

	// PreviewK is how many best/worst itemsets a threshold preview returns.
	PreviewK int `koanf:"preview_k"`
}

// RelationsConfig holds ranking and serving settings.
type RelationsConfig struct {
	// MaxRelated caps the related-products list per product.
	MaxRelated int `koanf:"max_related"`

	// Lookback is how far back order history is read.
	Lookback time.Duration `koanf:"lookback"`
}

// JobsConfig holds recomputation job-queue settings.
type JobsConfig struct {
	RetryCount           int           `koanf:"retry_count"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	RetryMaxInterval     time.Duration `koanf:"retry_max_interval"`
	PoisonTopic          string        `koanf:"poison_topic"`
	CloseTimeout         time.Duration `koanf:"close_timeout"`
}

// Default returns a Config with production defaults applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8710,
			Timeout:        30 * time.Second,
			AdminRateLimit: 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Database: DatabaseConfig{
			Path:           "/data/alsobought.duckdb",
			OrderBatchSize: 1000,
		},
		Catalog: CatalogConfig{
			Path:           "/data/catalog",
			PreserveManual: true,
		},
		Mining: MiningConfig{
			SupportThreshold: 0.01,
			MaxItemSets:      100000,
			Budget:           2 * time.Minute,
			PreviewK:         5,
		},
		Relations: RelationsConfig{
			MaxRelated: 5,
			Lookback:   6 * 30 * 24 * time.Hour,
		},
		Jobs: JobsConfig{
			RetryCount:           3,
			RetryInitialInterval: time.Second,
			RetryMaxInterval:     time.Minute,
			PoisonTopic:          "recompute.poison",
			CloseTimeout:         30 * time.Second,
		},
	}
}

// Validate checks the configuration for errors that must be rejected
// before any work is enqueued.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.Database.OrderBatchSize < 1 {
		return fmt.Errorf("database.order_batch_size must be positive, got %d", c.Database.OrderBatchSize)
	}
	if c.Relations.MaxRelated <= 0 {
		return fmt.Errorf("relations.max_related must be positive, got %d", c.Relations.MaxRelated)
	}
	if c.Relations.Lookback <= 0 {
		return fmt.Errorf("relations.lookback must be positive, got %s", c.Relations.Lookback)
	}
	if err := ValidateSupport(c.Mining.SupportThreshold); err != nil {
		return fmt.Errorf("mining.support_threshold: %w", err)
	}
	for channel, support := range c.Mining.ChannelSupport {
		if err := ValidateSupport(support); err != nil {
			return fmt.Errorf("mining.channel_support[%s]: %w", channel, err)
		}
	}
	if c.Mining.MaxItemSets < 1 {
		return fmt.Errorf("mining.max_item_sets must be positive, got %d", c.Mining.MaxItemSets)
	}
	if c.Mining.Budget <= 0 {
		return fmt.Errorf("mining.budget must be positive, got %s", c.Mining.Budget)
	}
	if c.Mining.PreviewK < 1 {
		return fmt.Errorf("mining.preview_k must be positive, got %d", c.Mining.PreviewK)
	}
	if c.Jobs.RetryCount < 0 {
		return fmt.Errorf("jobs.retry_count must not be negative, got %d", c.Jobs.RetryCount)
	}
	return nil
}

// ValidateSupport checks a support threshold value. Fractions must lie in
// (0,1); absolute counts must be whole numbers >= 1.
func ValidateSupport(support float64) error {
	if support <= 0 {
		return fmt.Errorf("support must be positive, got %v", support)
	}
	if support >= 1 && support != float64(int(support)) {
		return fmt.Errorf("absolute support must be a whole number, got %v", support)
	}
	return nil
}

// SupportFor returns the support threshold for a channel, falling back to
// the global threshold when no per-channel override exists.
func (m *MiningConfig) SupportFor(channel string) float64 {
	if s, ok := m.ChannelSupport[channel]; ok {
		return s
	}
	return m.SupportThreshold
}

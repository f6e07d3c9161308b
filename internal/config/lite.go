// Package config loads service configuration.
// This file contains the lightweight configuration for standalone operation.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/coaching-health-scorer/internal/domain"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external databases and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for the SQLite database and exports

	// Cache settings
	CacheMaxItems int           // Maximum items in memory cache
	CacheTTL      time.Duration // Default cache TTL

	// HTTP settings
	Host      string
	HTTPPort  int
	RateLimit float64 // requests per second per client IP, 0 disables
	RateBurst int

	// Rule tables; empty selects the embedded defaults
	NAQRulesPath           string
	MicronutrientRulesPath string

	// Scoring
	Parallelism           int
	UnmatchedAnswerPolicy domain.UnmatchedAnswerPolicy

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".health-scorer")

	return &LiteConfig{
		DataDir:               dataDir,
		CacheMaxItems:         1000,
		CacheTTL:              time.Hour,
		Host:                  "127.0.0.1",
		HTTPPort:              8080,
		RateLimit:             20,
		RateBurst:             40,
		Parallelism:           4,
		UnmatchedAnswerPolicy: domain.UNMATCHED_WARN,
		LogLevel:              "info",
		LogFormat:             "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	// Data directory
	if v := os.Getenv("HEALTH_SCORER_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// Cache settings
	if v := os.Getenv("HEALTH_SCORER_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("HEALTH_SCORER_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}

	// HTTP
	if v := os.Getenv("HEALTH_SCORER_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("HEALTH_SCORER_HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPPort = n
		}
	}
	if v := os.Getenv("HEALTH_SCORER_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.RateLimit = f
		}
	}

	// Rules
	cfg.NAQRulesPath = os.Getenv("HEALTH_SCORER_NAQ_RULES")
	cfg.MicronutrientRulesPath = os.Getenv("HEALTH_SCORER_MICRONUTRIENT_RULES")

	// Scoring
	if v := os.Getenv("HEALTH_SCORER_PARALLELISM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Parallelism = n
		}
	}
	if v := domain.UnmatchedAnswerPolicy(os.Getenv("HEALTH_SCORER_UNMATCHED_POLICY")); v.IsValid() {
		cfg.UnmatchedAnswerPolicy = v
	}

	// Logging
	if v := os.Getenv("HEALTH_SCORER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("HEALTH_SCORER_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// DBPath returns the path to the SQLite results database.
func (c *LiteConfig) DBPath() string {
	return filepath.Join(c.DataDir, "scores.db")
}

// ExportDir returns the directory for JSON exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}

// ServerConfig maps the lite settings onto the shared server configuration.
func (c *LiteConfig) ServerConfig() domain.ServerConfig {
	return domain.ServerConfig{
		Host:           c.Host,
		Port:           c.HTTPPort,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		RequestTimeout: 15 * time.Second,
		RateLimit:      c.RateLimit,
		RateBurst:      c.RateBurst,
	}
}

// CacheConfig returns a memory-only cache configuration.
func (c *LiteConfig) CacheConfig() domain.CacheConfig {
	return domain.CacheConfig{Enabled: true, DefaultTTL: c.CacheTTL, MemoryItems: c.CacheMaxItems}
}

// RulesConfig returns the rule table locations.
func (c *LiteConfig) RulesConfig() domain.RulesConfig {
	return domain.RulesConfig{NAQPath: c.NAQRulesPath, MicronutrientPath: c.MicronutrientRulesPath}
}

// ScoringConfig returns the engine settings.
func (c *LiteConfig) ScoringConfig() domain.ScoringConfig {
	return domain.ScoringConfig{Parallelism: c.Parallelism, UnmatchedAnswerPolicy: c.UnmatchedAnswerPolicy}
}

// LoggingConfig returns the logger settings.
func (c *LiteConfig) LoggingConfig() domain.LoggingConfig {
	return domain.LoggingConfig{Level: c.LogLevel, Format: c.LogFormat, Output: "stdout"}
}

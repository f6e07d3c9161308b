package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Environment string         `mapstructure:"environment"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Cache       CacheConfig    `mapstructure:"cache"`
	Logging     LoggingConfig  `mapstructure:"logging"`
	Rules       RulesConfig    `mapstructure:"rules"`
	Scoring     ScoringConfig  `mapstructure:"scoring"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"` // requests per second per client IP
	RateBurst      int           `mapstructure:"rate_burst"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// CacheConfig represents result cache configuration
type CacheConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	RedisURL    string        `mapstructure:"redis_url"` // empty keeps the cache in memory only
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	MemoryItems int           `mapstructure:"memory_items"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// RulesConfig points at rule-table files. Empty paths select the embedded reference tables.
type RulesConfig struct {
	NAQPath           string `mapstructure:"naq_path"`
	MicronutrientPath string `mapstructure:"micronutrient_path"`
}

// UnmatchedAnswerPolicy decides what happens when an answer label has no entry in its table.
type UnmatchedAnswerPolicy string

const (
	UNMATCHED_IGNORE UnmatchedAnswerPolicy = "ignore"
	UNMATCHED_WARN   UnmatchedAnswerPolicy = "warn"
	UNMATCHED_ERROR  UnmatchedAnswerPolicy = "error"
)

// IsValid reports whether p is a known policy.
func (p UnmatchedAnswerPolicy) IsValid() bool {
	switch p {
	case UNMATCHED_IGNORE, UNMATCHED_WARN, UNMATCHED_ERROR:
		return true
	default:
		return false
	}
}

// ScoringConfig controls engine execution.
type ScoringConfig struct {
	Parallelism           int                   `mapstructure:"parallelism"`
	UnmatchedAnswerPolicy UnmatchedAnswerPolicy `mapstructure:"unmatched_answer_policy"`
}

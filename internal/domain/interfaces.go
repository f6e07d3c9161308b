package domain

import (
	"context"
)

// SubmissionStore supplies the input side of a scoring run.
type SubmissionStore interface {
	// GetSubmission returns ErrNotFound when id does not resolve.
	GetSubmission(ctx context.Context, id string) (*Submission, error)
	// GetAnswers returns the answers joined with question code and type, or ErrNoData when empty.
	GetAnswers(ctx context.Context, submissionID string) ([]Answer, error)
}

// ResultStore persists scoring output. Saves are bulk inserts; nothing is updated in place.
type ResultStore interface {
	SaveSectionScores(ctx context.Context, records []SectionScoreRecord) error
	SaveNutrientResults(ctx context.Context, records []NutrientResultRecord) error
	// LatestSectionScores returns the records of the most recent NAQ run, or ErrNotFound.
	LatestSectionScores(ctx context.Context, submissionID string) ([]SectionScoreRecord, error)
	// LatestNutrientResults returns the records of the most recent micronutrient run, or ErrNotFound.
	LatestNutrientResults(ctx context.Context, submissionID string) ([]NutrientResultRecord, error)
}

// AssessmentStore is the full storage surface used by the scoring service.
type AssessmentStore interface {
	SubmissionStore
	ResultStore
	Health(ctx context.Context) error
}

// ResultCache holds the latest scoring run per submission. Misses and backend failures both
// report ok=false; the store stays authoritative.
type ResultCache interface {
	GetSectionScores(ctx context.Context, submissionID string) ([]SectionScoreRecord, bool)
	SetSectionScores(ctx context.Context, submissionID string, records []SectionScoreRecord)
	GetNutrientResults(ctx context.Context, submissionID string) ([]NutrientResultRecord, bool)
	SetNutrientResults(ctx context.Context, submissionID string, records []NutrientResultRecord)
	Close() error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	GetCacheConfig() *CacheConfig
	GetRulesConfig() *RulesConfig
	GetScoringConfig() *ScoringConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetDatabaseURL() string
	IsProduction() bool
	IsDevelopment() bool
}

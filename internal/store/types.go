// Package store provides database/sql implementations of the assessment store: an embedded SQLite
// store for single-node deployments and a PostgreSQL store over lib/pq. Both also export and
// import scoring runs as JSON so results can move between deployments.
package store

import (
	"context"
	"io"
	"time"

	"github.com/coaching-health-scorer/internal/domain"
)

// Store is the storage surface of the portable stores.
type Store interface {
	domain.AssessmentStore

	// CreateSubmission stores a submission with its answers. Questions are created on first use.
	CreateSubmission(ctx context.Context, s *domain.Submission, answers []domain.Answer) error

	// ExportJSON writes every stored scoring run to writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON reads runs written by ExportJSON. Records whose id already exists are skipped.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// ResultsExport represents the JSON export format.
type ResultsExport struct {
	Version         string                        `json:"version"`
	ExportedAt      time.Time                     `json:"exported_at"`
	Submissions     []domain.Submission           `json:"submissions"`
	SectionScores   []domain.SectionScoreRecord   `json:"section_scores"`
	NutrientResults []domain.NutrientResultRecord `json:"nutrient_results"`
}

const exportVersion = "1.0"

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

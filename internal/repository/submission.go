package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/coaching-health-scorer/internal/domain"
)

// AssessmentRepository reads submissions and answers and stores scoring results in PostgreSQL.
type AssessmentRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewAssessmentRepository creates a new assessment repository
func NewAssessmentRepository(db *pgxpool.Pool, logger *logrus.Logger) *AssessmentRepository {
	return &AssessmentRepository{
		db:  db,
		log: logger,
	}
}

// GetSubmission retrieves a submission by its ID
func (r *AssessmentRepository) GetSubmission(ctx context.Context, id string) (*domain.Submission, error) {
	query := `
		SELECT id, client_id, questionnaire_id, submitted_at
		FROM submissions
		WHERE id = $1`

	var s domain.Submission
	err := r.db.QueryRow(ctx, query, id).Scan(&s.ID, &s.ClientID, &s.QuestionnaireID, &s.SubmittedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("submission %s: %w", id, domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"submission_id": id,
			"error":         err,
		}).Error("Failed to get submission")
		return nil, domain.NewStorageError("get_submission", err)
	}

	return &s, nil
}

// GetAnswers returns a submission's answers joined with question code and type, in answer order.
// Values that cannot be decoded for their question type are skipped with a warning.
func (r *AssessmentRepository) GetAnswers(ctx context.Context, submissionID string) ([]domain.Answer, error) {
	query := `
		SELECT q.code, q.question_type, a.value
		FROM answers a
		JOIN questions q ON q.id = a.question_id
		WHERE a.submission_id = $1
		ORDER BY a.id`

	rows, err := r.db.Query(ctx, query, submissionID)
	if err != nil {
		return nil, domain.NewStorageError("get_answers", err)
	}
	defer rows.Close()

	var answers []domain.Answer
	for rows.Next() {
		var code, qt string
		var raw []byte
		if err := rows.Scan(&code, &qt, &raw); err != nil {
			return nil, domain.NewStorageError("scan_answer", err)
		}

		value, err := domain.DecodeAnswerValue(domain.QuestionType(qt), json.RawMessage(raw))
		if err != nil {
			r.log.WithFields(logrus.Fields{
				"submission_id": submissionID,
				"question_code": code,
				"error":         err,
			}).Warn("Skipping undecodable answer")
			continue
		}
		answers = append(answers, domain.Answer{
			QuestionCode: code,
			QuestionType: domain.QuestionType(qt),
			Value:        value,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("iterate_answers", err)
	}
	if len(answers) == 0 {
		return nil, domain.ErrNoData
	}

	return answers, nil
}

// CreateSubmission stores a submission with its answers in one transaction. Questions are created
// on first use, keyed by code.
func (r *AssessmentRepository) CreateSubmission(ctx context.Context, s *domain.Submission, answers []domain.Answer) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.NewStorageError("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	submittedAt := s.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = time.Now().UTC()
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO submissions (id, client_id, questionnaire_id, submitted_at)
		VALUES ($1, $2, $3, $4)`,
		s.ID, s.ClientID, s.QuestionnaireID, submittedAt,
	)
	if err != nil {
		return domain.NewStorageError("create_submission", err)
	}

	for _, a := range answers {
		raw, err := domain.EncodeAnswerValue(a.Value)
		if err != nil {
			return fmt.Errorf("answer %s: %w", a.QuestionCode, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO questions (id, code, question_type)
			VALUES ($1, $1, $2)
			ON CONFLICT (code) DO NOTHING`,
			a.QuestionCode, string(a.QuestionType),
		)
		if err != nil {
			return domain.NewStorageError("create_question", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO answers (submission_id, question_id, value)
			VALUES ($1, (SELECT id FROM questions WHERE code = $2), $3)`,
			s.ID, a.QuestionCode, []byte(raw),
		)
		if err != nil {
			return domain.NewStorageError("create_answer", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.NewStorageError("commit", err)
	}

	r.log.WithFields(logrus.Fields{
		"submission_id": s.ID,
		"client_id":     s.ClientID,
		"answers":       len(answers),
	}).Info("Submission created successfully")

	return nil
}

// Health checks the database connection
func (r *AssessmentRepository) Health(ctx context.Context) error {
	return r.db.Ping(ctx)
}

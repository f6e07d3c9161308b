package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/coaching-health-scorer/internal/domain"
)

// placeholder styles of the supported drivers
type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// sqlStore holds the queries shared by the SQLite and PostgreSQL stores. Queries are written with
// '?' placeholders and rebound for PostgreSQL.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
	log     *logrus.Logger
}

func (s *sqlStore) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// GetSubmission retrieves a submission by its ID
func (s *sqlStore) GetSubmission(ctx context.Context, id string) (*domain.Submission, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, client_id, questionnaire_id, submitted_at
		FROM submissions
		WHERE id = ?
	`), id)

	var sub domain.Submission
	err := row.Scan(&sub.ID, &sub.ClientID, &sub.QuestionnaireID, &sub.SubmittedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("submission %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, domain.NewStorageError("get_submission", err)
	}
	return &sub, nil
}

// GetAnswers returns a submission's answers joined with question code and type, in answer order.
// Values that do not decode for their question type are dropped with a warning.
func (s *sqlStore) GetAnswers(ctx context.Context, submissionID string) ([]domain.Answer, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT q.code, q.question_type, a.value
		FROM answers a
		JOIN questions q ON q.id = a.question_id
		WHERE a.submission_id = ?
		ORDER BY a.id
	`), submissionID)
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
		value, err := domain.DecodeAnswerValue(domain.QuestionType(qt), raw)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"submission_id": submissionID,
				"question_code": code,
				"error":         err,
			}).Warn("Skipping undecodable answer")
			continue
		}
		answers = append(answers, domain.Answer{QuestionCode: code, QuestionType: domain.QuestionType(qt), Value: value})
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("iterate_answers", err)
	}
	if len(answers) == 0 {
		return nil, domain.ErrNoData
	}
	return answers, nil
}

// CreateSubmission stores a submission and its answers in one transaction.
func (s *sqlStore) CreateSubmission(ctx context.Context, sub *domain.Submission, answers []domain.Answer) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewStorageError("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.insertSubmission(ctx, tx, sub); err != nil {
		return err
	}

	for _, a := range answers {
		raw, err := domain.EncodeAnswerValue(a.Value)
		if err != nil {
			return fmt.Errorf("answer %s: %w", a.QuestionCode, err)
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO questions (id, code, question_type) VALUES (?, ?, ?)
			ON CONFLICT (code) DO NOTHING
		`), a.QuestionCode, a.QuestionCode, string(a.QuestionType)); err != nil {
			return domain.NewStorageError("create_question", err)
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO answers (submission_id, question_id, value)
			VALUES (?, (SELECT id FROM questions WHERE code = ?), ?)
		`), sub.ID, a.QuestionCode, string(raw)); err != nil {
			return domain.NewStorageError("create_answer", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.NewStorageError("commit", err)
	}
	return nil
}

func (s *sqlStore) insertSubmission(ctx context.Context, tx *sql.Tx, sub *domain.Submission) error {
	submittedAt := sub.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = time.Now().UTC()
	}
	_, err := tx.ExecContext(ctx, s.rebind(`
		INSERT INTO submissions (id, client_id, questionnaire_id, submitted_at)
		VALUES (?, ?, ?, ?)
	`), sub.ID, sub.ClientID, sub.QuestionnaireID, submittedAt)
	if err != nil {
		return domain.NewStorageError("create_submission", err)
	}
	return nil
}

// SaveSectionScores inserts one NAQ run in a single transaction.
func (s *sqlStore) SaveSectionScores(ctx context.Context, records []domain.SectionScoreRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewStorageError("save_section_scores", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.insertSectionScores(ctx, tx, records); err != nil {
		return domain.NewStorageError("save_section_scores", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.NewStorageError("save_section_scores", err)
	}
	return nil
}

func (s *sqlStore) insertSectionScores(ctx context.Context, tx *sql.Tx, records []domain.SectionScoreRecord) error {
	stmt, err := tx.PrepareContext(ctx, s.rebind(`
		INSERT INTO naq_section_scores (
			id, run_id, submission_id, client_id, position, section_name, category,
			total_score, max_possible_score, question_count, symptom_burden, priority_level, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.RunID, r.SubmissionID, r.ClientID, i, r.SectionName, r.Category,
			r.TotalScore, r.MaxPossibleScore, r.QuestionCount, r.SymptomBurden,
			string(r.PriorityLevel), r.CreatedAt,
		); err != nil {
			return err
		}
	}
	return nil
}

// SaveNutrientResults inserts one micronutrient run in a single transaction.
func (s *sqlStore) SaveNutrientResults(ctx context.Context, records []domain.NutrientResultRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewStorageError("save_nutrient_results", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.insertNutrientResults(ctx, tx, records); err != nil {
		return domain.NewStorageError("save_nutrient_results", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.NewStorageError("save_nutrient_results", err)
	}
	return nil
}

func (s *sqlStore) insertNutrientResults(ctx context.Context, tx *sql.Tx, records []domain.NutrientResultRecord) error {
	stmt, err := tx.PrepareContext(ctx, s.rebind(`
		INSERT INTO nutrient_risk_results (
			id, run_id, submission_id, client_id, position, nutrient_code, nutrient_name,
			intake_score_pct, symptom_score_pct, risk_score_pct, final_weighted_score_pct,
			risk_category, contributing_factors, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range records {
		factors := r.ContributingFactors
		if factors == nil {
			factors = []string{}
		}
		encoded, err := json.Marshal(factors)
		if err != nil {
			return fmt.Errorf("encoding contributing factors: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.RunID, r.SubmissionID, r.ClientID, i, r.NutrientCode, r.NutrientName,
			r.IntakeScorePct, r.SymptomScorePct, r.RiskScorePct, r.FinalWeightedScorePct,
			string(r.RiskCategory), string(encoded), r.CreatedAt,
		); err != nil {
			return err
		}
	}
	return nil
}

const sectionColumns = `id, run_id, submission_id, client_id, section_name, category, total_score,
	max_possible_score, question_count, symptom_burden, priority_level, created_at`

const nutrientColumns = `id, run_id, submission_id, client_id, nutrient_code, nutrient_name,
	intake_score_pct, symptom_score_pct, risk_score_pct, final_weighted_score_pct,
	risk_category, contributing_factors, created_at`

func scanSectionScore(sc scanner) (domain.SectionScoreRecord, error) {
	var r domain.SectionScoreRecord
	var priority string
	err := sc.Scan(
		&r.ID, &r.RunID, &r.SubmissionID, &r.ClientID, &r.SectionName, &r.Category,
		&r.TotalScore, &r.MaxPossibleScore, &r.QuestionCount, &r.SymptomBurden, &priority, &r.CreatedAt,
	)
	r.PriorityLevel = domain.PriorityLevel(priority)
	return r, err
}

func scanNutrientResult(sc scanner) (domain.NutrientResultRecord, error) {
	var r domain.NutrientResultRecord
	var category string
	var factors []byte
	err := sc.Scan(
		&r.ID, &r.RunID, &r.SubmissionID, &r.ClientID, &r.NutrientCode, &r.NutrientName,
		&r.IntakeScorePct, &r.SymptomScorePct, &r.RiskScorePct, &r.FinalWeightedScorePct,
		&category, &factors, &r.CreatedAt,
	)
	if err != nil {
		return r, err
	}
	r.RiskCategory = domain.RiskCategory(category)
	if err := json.Unmarshal(factors, &r.ContributingFactors); err != nil {
		return r, fmt.Errorf("decoding contributing factors: %w", err)
	}
	return r, nil
}

// LatestSectionScores returns the newest NAQ run of a submission in section order.
func (s *sqlStore) LatestSectionScores(ctx context.Context, submissionID string) ([]domain.SectionScoreRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+sectionColumns+`
		FROM naq_section_scores
		WHERE run_id = (
			SELECT run_id FROM naq_section_scores
			WHERE submission_id = ?
			ORDER BY created_at DESC
			LIMIT 1
		)
		ORDER BY position
	`), submissionID)
	if err != nil {
		return nil, domain.NewStorageError("latest_section_scores", err)
	}
	defer rows.Close()

	var records []domain.SectionScoreRecord
	for rows.Next() {
		r, err := scanSectionScore(rows)
		if err != nil {
			return nil, domain.NewStorageError("scan_section_score", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("iterate_section_scores", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("NAQ results for submission %s: %w", submissionID, domain.ErrNotFound)
	}
	return records, nil
}

// LatestNutrientResults returns the newest micronutrient run of a submission in nutrient order.
func (s *sqlStore) LatestNutrientResults(ctx context.Context, submissionID string) ([]domain.NutrientResultRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+nutrientColumns+`
		FROM nutrient_risk_results
		WHERE run_id = (
			SELECT run_id FROM nutrient_risk_results
			WHERE submission_id = ?
			ORDER BY created_at DESC
			LIMIT 1
		)
		ORDER BY position
	`), submissionID)
	if err != nil {
		return nil, domain.NewStorageError("latest_nutrient_results", err)
	}
	defer rows.Close()

	var records []domain.NutrientResultRecord
	for rows.Next() {
		r, err := scanNutrientResult(rows)
		if err != nil {
			return nil, domain.NewStorageError("scan_nutrient_result", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("iterate_nutrient_results", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("micronutrient results for submission %s: %w", submissionID, domain.ErrNotFound)
	}
	return records, nil
}

// Health pings the database.
func (s *sqlStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ExportJSON exports every submission that has results, and all result runs, to a JSON writer.
func (s *sqlStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	export := &ResultsExport{
		Version:         exportVersion,
		ExportedAt:      time.Now().UTC(),
		Submissions:     []domain.Submission{},
		SectionScores:   []domain.SectionScoreRecord{},
		NutrientResults: []domain.NutrientResultRecord{},
	}

	subs, err := s.db.QueryContext(ctx, `
		SELECT id, client_id, questionnaire_id, submitted_at FROM submissions
		WHERE id IN (SELECT submission_id FROM naq_section_scores)
		   OR id IN (SELECT submission_id FROM nutrient_risk_results)
		ORDER BY id`)
	if err != nil {
		return fmt.Errorf("failed to list submissions: %w", err)
	}
	for subs.Next() {
		var sub domain.Submission
		if err := subs.Scan(&sub.ID, &sub.ClientID, &sub.QuestionnaireID, &sub.SubmittedAt); err != nil {
			subs.Close()
			return fmt.Errorf("failed to scan submission: %w", err)
		}
		export.Submissions = append(export.Submissions, sub)
	}
	subs.Close()
	if err := subs.Err(); err != nil {
		return fmt.Errorf("failed to list submissions: %w", err)
	}

	sections, err := s.db.QueryContext(ctx, `SELECT `+sectionColumns+` FROM naq_section_scores ORDER BY created_at, run_id, position`)
	if err != nil {
		return fmt.Errorf("failed to list section scores: %w", err)
	}
	for sections.Next() {
		r, err := scanSectionScore(sections)
		if err != nil {
			sections.Close()
			return fmt.Errorf("failed to scan section score: %w", err)
		}
		export.SectionScores = append(export.SectionScores, r)
	}
	sections.Close()
	if err := sections.Err(); err != nil {
		return fmt.Errorf("failed to list section scores: %w", err)
	}

	nutrients, err := s.db.QueryContext(ctx, `SELECT `+nutrientColumns+` FROM nutrient_risk_results ORDER BY created_at, run_id, position`)
	if err != nil {
		return fmt.Errorf("failed to list nutrient results: %w", err)
	}
	for nutrients.Next() {
		r, err := scanNutrientResult(nutrients)
		if err != nil {
			nutrients.Close()
			return fmt.Errorf("failed to scan nutrient result: %w", err)
		}
		export.NutrientResults = append(export.NutrientResults, r)
	}
	nutrients.Close()
	if err := nutrients.Err(); err != nil {
		return fmt.Errorf("failed to list nutrient results: %w", err)
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// ImportJSON imports runs from a JSON reader. Missing submissions are created without answers;
// result records whose id already exists are skipped. Runs keep their record order.
func (s *sqlStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	var export ResultsExport
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, domain.NewStorageError("import", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range export.Submissions {
		exists, err := s.exists(ctx, tx, "submissions", export.Submissions[i].ID)
		if err != nil {
			return 0, 0, err
		}
		if !exists {
			if err := s.insertSubmission(ctx, tx, &export.Submissions[i]); err != nil {
				return 0, 0, err
			}
		}
	}

	var sections []domain.SectionScoreRecord
	for _, r := range export.SectionScores {
		exists, err := s.exists(ctx, tx, "naq_section_scores", r.ID)
		if err != nil {
			return 0, 0, err
		}
		if exists {
			skipped++
			continue
		}
		sections = append(sections, r)
	}
	if err := s.insertSectionScores(ctx, tx, sections); err != nil {
		return 0, 0, domain.NewStorageError("import_section_scores", err)
	}

	var nutrients []domain.NutrientResultRecord
	for _, r := range export.NutrientResults {
		exists, err := s.exists(ctx, tx, "nutrient_risk_results", r.ID)
		if err != nil {
			return 0, 0, err
		}
		if exists {
			skipped++
			continue
		}
		nutrients = append(nutrients, r)
	}
	if err := s.insertNutrientResults(ctx, tx, nutrients); err != nil {
		return 0, 0, domain.NewStorageError("import_nutrient_results", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, domain.NewStorageError("import", err)
	}
	return len(sections) + len(nutrients), skipped, nil
}

func (s *sqlStore) exists(ctx context.Context, tx *sql.Tx, table, id string) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM `+table+` WHERE id = ?`), id).Scan(&n)
	if err != nil {
		return false, domain.NewStorageError("check_"+table, err)
	}
	return n > 0, nil
}

// Close closes the store and releases resources.
func (s *sqlStore) Close() error {
	return s.db.Close()
}

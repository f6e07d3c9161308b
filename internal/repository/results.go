package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/coaching-health-scorer/internal/domain"
)

// SaveSectionScores inserts one NAQ run. Records are always new rows; earlier runs are kept.
func (r *AssessmentRepository) SaveSectionScores(ctx context.Context, records []domain.SectionScoreRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT INTO naq_section_scores (
			id, run_id, submission_id, client_id, position, section_name, category,
			total_score, max_possible_score, question_count, symptom_burden, priority_level, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)`

	batch := &pgx.Batch{}
	for i, rec := range records {
		batch.Queue(query,
			rec.ID, rec.RunID, rec.SubmissionID, rec.ClientID, i,
			rec.SectionName, rec.Category, rec.TotalScore, rec.MaxPossibleScore,
			rec.QuestionCount, rec.SymptomBurden, string(rec.PriorityLevel), rec.CreatedAt,
		)
	}

	if err := r.sendBatch(ctx, batch); err != nil {
		r.log.WithFields(logrus.Fields{
			"submission_id": records[0].SubmissionID,
			"run_id":        records[0].RunID,
			"error":         err,
		}).Error("Failed to save section scores")
		return domain.NewStorageError("save_section_scores", err)
	}

	r.log.WithFields(logrus.Fields{
		"submission_id": records[0].SubmissionID,
		"run_id":        records[0].RunID,
		"count":         len(records),
	}).Debug("Section scores saved")

	return nil
}

// SaveNutrientResults inserts one micronutrient run.
func (r *AssessmentRepository) SaveNutrientResults(ctx context.Context, records []domain.NutrientResultRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT INTO nutrient_risk_results (
			id, run_id, submission_id, client_id, position, nutrient_code, nutrient_name,
			intake_score_pct, symptom_score_pct, risk_score_pct, final_weighted_score_pct,
			risk_category, contributing_factors, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)`

	batch := &pgx.Batch{}
	for i, rec := range records {
		factors, err := json.Marshal(nonNil(rec.ContributingFactors))
		if err != nil {
			return fmt.Errorf("encoding contributing factors: %w", err)
		}
		batch.Queue(query,
			rec.ID, rec.RunID, rec.SubmissionID, rec.ClientID, i,
			rec.NutrientCode, rec.NutrientName,
			rec.IntakeScorePct, rec.SymptomScorePct, rec.RiskScorePct, rec.FinalWeightedScorePct,
			string(rec.RiskCategory), factors, rec.CreatedAt,
		)
	}

	if err := r.sendBatch(ctx, batch); err != nil {
		r.log.WithFields(logrus.Fields{
			"submission_id": records[0].SubmissionID,
			"run_id":        records[0].RunID,
			"error":         err,
		}).Error("Failed to save nutrient results")
		return domain.NewStorageError("save_nutrient_results", err)
	}

	r.log.WithFields(logrus.Fields{
		"submission_id": records[0].SubmissionID,
		"run_id":        records[0].RunID,
		"count":         len(records),
	}).Debug("Nutrient results saved")

	return nil
}

// LatestSectionScores returns the records of the newest NAQ run of a submission, in section order.
func (r *AssessmentRepository) LatestSectionScores(ctx context.Context, submissionID string) ([]domain.SectionScoreRecord, error) {
	query := `
		SELECT id, run_id, submission_id, client_id, section_name, category, total_score,
			   max_possible_score, question_count, symptom_burden, priority_level, created_at
		FROM naq_section_scores
		WHERE run_id = (
			SELECT run_id FROM naq_section_scores
			WHERE submission_id = $1
			ORDER BY created_at DESC
			LIMIT 1
		)
		ORDER BY position`

	rows, err := r.db.Query(ctx, query, submissionID)
	if err != nil {
		return nil, domain.NewStorageError("latest_section_scores", err)
	}
	defer rows.Close()

	var records []domain.SectionScoreRecord
	for rows.Next() {
		var rec domain.SectionScoreRecord
		var priority string
		err := rows.Scan(
			&rec.ID, &rec.RunID, &rec.SubmissionID, &rec.ClientID,
			&rec.SectionName, &rec.Category, &rec.TotalScore, &rec.MaxPossibleScore,
			&rec.QuestionCount, &rec.SymptomBurden, &priority, &rec.CreatedAt,
		)
		if err != nil {
			return nil, domain.NewStorageError("scan_section_score", err)
		}
		rec.PriorityLevel = domain.PriorityLevel(priority)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("iterate_section_scores", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("NAQ results for submission %s: %w", submissionID, domain.ErrNotFound)
	}

	return records, nil
}

// LatestNutrientResults returns the records of the newest micronutrient run of a submission.
func (r *AssessmentRepository) LatestNutrientResults(ctx context.Context, submissionID string) ([]domain.NutrientResultRecord, error) {
	query := `
		SELECT id, run_id, submission_id, client_id, nutrient_code, nutrient_name,
			   intake_score_pct, symptom_score_pct, risk_score_pct, final_weighted_score_pct,
			   risk_category, contributing_factors, created_at
		FROM nutrient_risk_results
		WHERE run_id = (
			SELECT run_id FROM nutrient_risk_results
			WHERE submission_id = $1
			ORDER BY created_at DESC
			LIMIT 1
		)
		ORDER BY position`

	rows, err := r.db.Query(ctx, query, submissionID)
	if err != nil {
		return nil, domain.NewStorageError("latest_nutrient_results", err)
	}
	defer rows.Close()

	var records []domain.NutrientResultRecord
	for rows.Next() {
		var rec domain.NutrientResultRecord
		var category string
		var factors []byte
		err := rows.Scan(
			&rec.ID, &rec.RunID, &rec.SubmissionID, &rec.ClientID,
			&rec.NutrientCode, &rec.NutrientName,
			&rec.IntakeScorePct, &rec.SymptomScorePct, &rec.RiskScorePct, &rec.FinalWeightedScorePct,
			&category, &factors, &rec.CreatedAt,
		)
		if err != nil {
			return nil, domain.NewStorageError("scan_nutrient_result", err)
		}
		rec.RiskCategory = domain.RiskCategory(category)
		if err := json.Unmarshal(factors, &rec.ContributingFactors); err != nil {
			return nil, domain.NewStorageError("decode_contributing_factors", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("iterate_nutrient_results", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("micronutrient results for submission %s: %w", submissionID, domain.ErrNotFound)
	}

	return records, nil
}

// sendBatch runs a batch inside a transaction so a run is stored completely or not at all.
func (r *AssessmentRepository) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

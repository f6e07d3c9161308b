package domain

import (
	"time"
)

// Submission is one completed questionnaire by one client.
type Submission struct {
	ID              string    `json:"id"`
	ClientID        string    `json:"client_id"`
	QuestionnaireID string    `json:"questionnaire_id"`
	SubmittedAt     time.Time `json:"submitted_at,omitempty"`
}

// Core result types

// SectionScore is the scored state of one NAQ body-system section.
type SectionScore struct {
	SectionName      string        `json:"section_name"`
	Category         string        `json:"category"`
	TotalScore       int           `json:"total_score"`
	MaxPossibleScore int           `json:"max_possible_score"`
	QuestionCount    int           `json:"question_count"`
	SymptomBurden    float64       `json:"symptom_burden"`
	PriorityLevel    PriorityLevel `json:"priority_level"`
}

// NAQResult is the full NAQ assessment of one submission.
type NAQResult struct {
	Scores                   []SectionScore `json:"scores"`
	OverallBurden            float64        `json:"overall_burden"`
	PrimaryConcerns          []SectionScore `json:"primary_concerns"`
	HierarchyRecommendations []string       `json:"hierarchy_recommendations"`
	Warnings                 []string       `json:"warnings,omitempty"`
}

// NutrientRiskResult is the five-step risk score of one nutrient for one submission.
type NutrientRiskResult struct {
	NutrientCode          string       `json:"nutrient_code"`
	NutrientName          string       `json:"nutrient_name"`
	IntakeScorePct        float64      `json:"intake_score_pct"`
	SymptomScorePct       float64      `json:"symptom_score_pct"`
	RiskScorePct          float64      `json:"risk_score_pct"`
	FinalWeightedScorePct float64      `json:"final_weighted_score_pct"`
	RiskCategory          RiskCategory `json:"risk_category"`
	ContributingFactors   []string     `json:"contributing_factors"`
	Warnings              []string     `json:"warnings,omitempty"`
}

// NutrientFailure records a nutrient that could not be scored. Other nutrients are unaffected.
type NutrientFailure struct {
	NutrientCode string `json:"nutrient_code"`
	Error        string `json:"error"`
}

// MicronutrientResult is the full micronutrient assessment of one submission.
type MicronutrientResult struct {
	Results  []NutrientRiskResult `json:"results"`
	Failures []NutrientFailure    `json:"failures,omitempty"`
	Warnings []string             `json:"warnings,omitempty"`
}

// Persisted records

// SectionScoreRecord is a stored NAQ section score. Every scoring run inserts new records under a
// fresh RunID; earlier runs stay for trend analysis.
type SectionScoreRecord struct {
	ID           string `json:"id"`
	RunID        string `json:"run_id"`
	SubmissionID string `json:"submission_id"`
	ClientID     string `json:"client_id"`
	SectionScore
	CreatedAt time.Time `json:"created_at"`
}

// NutrientResultRecord is a stored nutrient risk result.
type NutrientResultRecord struct {
	ID           string `json:"id"`
	RunID        string `json:"run_id"`
	SubmissionID string `json:"submission_id"`
	ClientID     string `json:"client_id"`
	NutrientRiskResult
	CreatedAt time.Time `json:"created_at"`
}

// ScoringRun summarises one completed fetch-score-persist cycle.
type ScoringRun struct {
	RunID        string         `json:"run_id"`
	SubmissionID string         `json:"submission_id"`
	ClientID     string         `json:"client_id"`
	Kind         AssessmentKind `json:"kind"`
	ResultsCount int            `json:"results_count"`
	Duration     time.Duration  `json:"duration"`
}

// ScoreRequest is the body accepted by the scoring endpoints.
type ScoreRequest struct {
	SubmissionID string `json:"submission_id" binding:"required"`
}

// ScoreResponse is the success body returned by the scoring endpoints.
type ScoreResponse struct {
	Success      bool   `json:"success"`
	ResultsCount int    `json:"results_count"`
	Message      string `json:"message"`
	RunID        string `json:"run_id,omitempty"`
}

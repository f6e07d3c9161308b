// Package domain contains the core entities for questionnaire-based health assessment scoring:
// the NAQ section-burden assessment and the per-nutrient micronutrient risk assessment.
//
// Every result type in this package is a value derived from a submission's answers and the
// loaded rule tables. Results are never edited after they are produced; a new run yields new rows.
package domain

import (
	"errors"
	"math"
)

// PriorityLevel is the classification of a NAQ section against its absolute point cutoffs.
type PriorityLevel string

const (
	PRIORITY_LOW    PriorityLevel = "low"
	PRIORITY_MEDIUM PriorityLevel = "medium"
	PRIORITY_HIGH   PriorityLevel = "high"
)

// RiskCategory is the classification of a nutrient's final weighted score.
// A higher score means better status, so RISK_NONE sits at the top of the scale.
type RiskCategory string

const (
	RISK_NONE     RiskCategory = "none"
	RISK_LOW      RiskCategory = "low"
	RISK_MODERATE RiskCategory = "moderate"
	RISK_HIGH     RiskCategory = "high"
)

// QuestionType is the declared answer shape of a catalog question.
type QuestionType string

const (
	QUESTION_SCALE_0_3    QuestionType = "scale_0_3"
	QUESTION_YES_NO       QuestionType = "yes_no"
	QUESTION_FREQUENCY    QuestionType = "frequency"
	QUESTION_PORTION      QuestionType = "portion"
	QUESTION_SELECT_ONE   QuestionType = "select_one"
	QUESTION_MULTI_SELECT QuestionType = "multi_select"
	QUESTION_TEXT         QuestionType = "text"
)

// AssessmentKind identifies which engine produced a result set.
type AssessmentKind string

const (
	ASSESSMENT_NAQ           AssessmentKind = "naq"
	ASSESSMENT_MICRONUTRIENT AssessmentKind = "micronutrient"
)

// Labels used by yes/no questions in the questionnaire.
const (
	AnswerYes = "Da"
	AnswerNo  = "Ne"
)

// Validation errors for enum values read from storage or rule files
var (
	ErrInvalidPriority     = errors.New("invalid priority level")
	ErrInvalidRiskCategory = errors.New("invalid risk category")
	ErrInvalidQuestionType = errors.New("invalid question type")
)

// IsValid reports whether p is one of the three priority levels.
func (p PriorityLevel) IsValid() bool {
	switch p {
	case PRIORITY_LOW, PRIORITY_MEDIUM, PRIORITY_HIGH:
		return true
	default:
		return false
	}
}

// String returns the string representation of the priority level.
func (p PriorityLevel) String() string {
	return string(p)
}

// Rank orders priority levels so that low < medium < high. Unknown levels rank below low.
func (p PriorityLevel) Rank() int {
	switch p {
	case PRIORITY_LOW:
		return 1
	case PRIORITY_MEDIUM:
		return 2
	case PRIORITY_HIGH:
		return 3
	default:
		return 0
	}
}

// IsValid reports whether c is one of the four risk categories.
func (c RiskCategory) IsValid() bool {
	switch c {
	case RISK_NONE, RISK_LOW, RISK_MODERATE, RISK_HIGH:
		return true
	default:
		return false
	}
}

// String returns the string representation of the risk category.
func (c RiskCategory) String() string {
	return string(c)
}

// Description returns a human-readable summary used in reports and CLI output.
func (c RiskCategory) Description() string {
	switch c {
	case RISK_NONE:
		return "No deficiency risk indicated"
	case RISK_LOW:
		return "Low deficiency risk"
	case RISK_MODERATE:
		return "Moderate deficiency risk"
	case RISK_HIGH:
		return "High deficiency risk"
	default:
		return "Unknown risk category"
	}
}

// IsValid reports whether t is a supported question type.
func (t QuestionType) IsValid() bool {
	switch t {
	case QUESTION_SCALE_0_3, QUESTION_YES_NO, QUESTION_FREQUENCY, QUESTION_PORTION,
		QUESTION_SELECT_ONE, QUESTION_MULTI_SELECT, QUESTION_TEXT:
		return true
	default:
		return false
	}
}

// String returns the string representation of the question type.
func (t QuestionType) String() string {
	return string(t)
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

package service

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/coaching-health-scorer/internal/domain"
	"github.com/coaching-health-scorer/internal/rules"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress logs during testing
	return logger
}

// testNAQRules has two 10-question sections with medium=10/high=15, a 5-question section and a
// non-symptomatic lifestyle section.
func testNAQRules(t *testing.T) *rules.NAQRules {
	t.Helper()
	r := &rules.NAQRules{
		Version: "test",
		Sections: []rules.SectionConfig{
			{Name: "Upper GI", Category: "upper_gi", QuestionCount: 10, LowPriorityCutoff: 0, MediumPriorityCutoff: 10, HighPriorityCutoff: 15, Symptomatic: true},
			{Name: "Adrenal", Category: "adrenal", QuestionCount: 10, LowPriorityCutoff: 0, MediumPriorityCutoff: 10, HighPriorityCutoff: 15, Symptomatic: true},
			{Name: "Thyroid", Category: "thyroid", QuestionCount: 5, LowPriorityCutoff: 0, MediumPriorityCutoff: 5, HighPriorityCutoff: 10, Symptomatic: true},
			{Name: "Lifestyle", Category: "lifestyle", QuestionCount: 4, LowPriorityCutoff: 0, MediumPriorityCutoff: 4, HighPriorityCutoff: 8, Symptomatic: false},
		},
		Hierarchy: []rules.HierarchyEntry{
			{Category: "upper_gi", Rationale: "digestion gates absorption"},
			{Category: "adrenal", Rationale: "stress response"},
			{Category: "thyroid", Rationale: "metabolic rate"},
		},
		Override: rules.HierarchyOverride{Name: "digestion_first", Category: "upper_gi", Recommendation: "Digestion first"},
	}
	require.NoError(t, r.Index())
	return r
}

// ordinals answers the first len(values) questions of a category.
func ordinals(category string, values ...int) []domain.Answer {
	answers := make([]domain.Answer, 0, len(values))
	for i, v := range values {
		answers = append(answers, domain.Answer{
			QuestionCode: rules.QuestionCode(category, i+1),
			QuestionType: domain.QUESTION_SCALE_0_3,
			Value:        domain.Ordinal(v),
		})
	}
	return answers
}

func choice(code string, qt domain.QuestionType, label string) domain.Answer {
	return domain.Answer{QuestionCode: code, QuestionType: qt, Value: domain.Choice(label)}
}

func yes(code string) domain.Answer {
	return choice(code, domain.QUESTION_YES_NO, domain.AnswerYes)
}

func no(code string) domain.Answer {
	return choice(code, domain.QUESTION_YES_NO, domain.AnswerNo)
}

func testMicronutrientRules(t *testing.T, nutrients ...rules.NutrientConfig) *rules.MicronutrientRules {
	t.Helper()
	r := &rules.MicronutrientRules{
		Version: "test",
		LabelTables: map[string][]rules.LabelPoints{
			rules.TableFrequency: {
				{Label: "Nikad", Points: 0},
				{Label: "Rijetko", Points: 3},
				{Label: "1-2 puta tjedno", Points: 6},
				{Label: "3-5 puta tjedno", Points: 8},
				{Label: "Svakodnevno", Points: 10},
			},
			rules.TablePortion: {
				{Label: "1 jaje", Points: 4},
				{Label: "1 žlica", Points: 5},
				{Label: "2 jaja", Points: 7},
			},
		},
		Questions: []rules.Question{
			{Code: "freq_fish", Type: domain.QUESTION_FREQUENCY},
			{Code: "portion_eggs", Type: domain.QUESTION_PORTION},
			{Code: "sym_a", Type: domain.QUESTION_YES_NO},
			{Code: "sym_b", Type: domain.QUESTION_YES_NO},
			{Code: "sym_c", Type: domain.QUESTION_YES_NO},
			{Code: "risk_x", Type: domain.QUESTION_YES_NO},
			{Code: "risk_y", Type: domain.QUESTION_YES_NO},
			{Code: "stress_level", Type: domain.QUESTION_SELECT_ONE, Options: []string{"Niska", "Umjerena", "Visoka", "Vrlo visoka"}},
			{Code: "medications", Type: domain.QUESTION_MULTI_SELECT, Options: []string{"Metformin", "Statini"}},
		},
		Nutrients: nutrients,
	}
	require.NoError(t, r.Index())
	return r
}

// testNutrient is a nutrient over the test catalog without cluster rules.
func testNutrient() rules.NutrientConfig {
	return rules.NutrientConfig{
		Name: "Test nutrient",
		Code: "test",
		Intake: []rules.WeightedQuestion{
			{Code: "freq_fish", Weight: 2},
			{Code: "portion_eggs", Weight: 1},
		},
		Symptoms: []rules.SymptomQuestion{
			{Code: "sym_a", Points: 3},
			{Code: "sym_b", Points: 2},
			{Code: "sym_c", Points: 1},
		},
		RiskModifiers: []rules.RiskModifier{
			{Code: "risk_x", Name: "Factor X", Multiplier: 0.8},
			{Code: "risk_y", Name: "Factor Y", Multiplier: 0.7},
			{Code: "stress_level", Name: "High stress", Multiplier: 0.9, PresentWhen: []string{"Visoka", "Vrlo visoka"}},
			{Code: "medications", Name: "Metformin", Multiplier: 0.5, Option: "Metformin"},
		},
		PrevalenceFactor: 1.0,
	}
}

package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coaching-health-scorer/internal/domain"
	"github.com/coaching-health-scorer/internal/rules"
)

func TestAnswerSet_LastAnswerWins(t *testing.T) {
	set := NewAnswerSet([]domain.Answer{
		{QuestionCode: "upper_gi_01", QuestionType: domain.QUESTION_SCALE_0_3, Value: domain.Ordinal(1)},
		{QuestionCode: "upper_gi_02", QuestionType: domain.QUESTION_SCALE_0_3, Value: domain.Ordinal(2)},
		{QuestionCode: "upper_gi_01", QuestionType: domain.QUESTION_SCALE_0_3, Value: domain.Ordinal(3)},
		{QuestionCode: "upper_gi_03", QuestionType: domain.QUESTION_SCALE_0_3, Value: nil},
	})

	assert.Equal(t, 2, set.Len())
	assert.Equal(t, []string{"upper_gi_01", "upper_gi_02"}, set.Codes())
	v, ok := set.Get("upper_gi_01")
	require.True(t, ok)
	assert.Equal(t, domain.Ordinal(3), v)
}

func TestPresence(t *testing.T) {
	tests := []struct {
		name       string
		value      domain.AnswerValue
		present    bool
		recognised bool
	}{
		{"Da", domain.Choice("Da"), true, true},
		{"Ne", domain.Choice("Ne"), false, true},
		{"Bool true", domain.Presence(true), true, true},
		{"Bool false", domain.Presence(false), false, true},
		{"Other label", domain.Choice("Možda"), false, false},
		{"Ordinal", domain.Ordinal(1), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			present, recognised := Presence(tt.value)
			assert.Equal(t, tt.present, present)
			assert.Equal(t, tt.recognised, recognised)
		})
	}
}

func decodeOrdinalValue(t *testing.T, raw string) domain.AnswerValue {
	t.Helper()
	v, err := domain.DecodeAnswerValue(domain.QUESTION_SCALE_0_3, json.RawMessage(raw))
	require.NoError(t, err)
	return v
}

func TestOrdinalPoints(t *testing.T) {
	tests := []struct {
		name    string
		value   domain.AnswerValue
		points  int
		inRange bool
		ok      bool
	}{
		{"Zero", domain.Ordinal(0), 0, true, true},
		{"Three", domain.Ordinal(3), 3, true, true},
		{"Above scale", domain.Ordinal(5), 3, false, true},
		{"Below scale", domain.Ordinal(-1), 0, false, true},
		{"Huge value clamps high", decodeOrdinalValue(t, `1e19`), 3, false, true},
		{"Huge negative clamps low", decodeOrdinalValue(t, `-1e19`), 0, false, true},
		{"Not ordinal", domain.Choice("2"), 0, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points, inRange, ok := OrdinalPoints(tt.value)
			assert.Equal(t, tt.points, points)
			assert.Equal(t, tt.inRange, inRange)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestModifierPresent(t *testing.T) {
	yesNo := rules.RiskModifier{Code: "risk_x", Multiplier: 0.8}
	stress := rules.RiskModifier{Code: "stress_level", Multiplier: 0.9, PresentWhen: []string{"Visoka", "Vrlo visoka"}}
	meds := rules.RiskModifier{Code: "medications", Multiplier: 0.8, Option: "Metformin"}

	tests := []struct {
		name     string
		modifier rules.RiskModifier
		value    domain.AnswerValue
		expected bool
	}{
		{"Yes/no Da", yesNo, domain.Choice("Da"), true},
		{"Yes/no Ne", yesNo, domain.Choice("Ne"), false},
		{"Yes/no bool", yesNo, domain.Presence(true), true},
		{"Stress Visoka", stress, domain.Choice("Visoka"), true},
		{"Stress Vrlo visoka", stress, domain.Choice("Vrlo visoka"), true},
		{"Stress Umjerena", stress, domain.Choice("Umjerena"), false},
		{"Stress as bool", stress, domain.Presence(true), false},
		{"Medication selected", meds, domain.MultiChoice{"Statini", "Metformin"}, true},
		{"Medication not selected", meds, domain.MultiChoice{"Statini"}, false},
		{"Medication single choice", meds, domain.Choice("Metformin"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ModifierPresent(tt.modifier, tt.value))
		})
	}
}

func TestAnswerMapper_Points(t *testing.T) {
	r := testMicronutrientRules(t, testNutrient())
	mapper := NewAnswerMapper(r)

	freq, ok := r.Question("freq_fish")
	require.True(t, ok)
	portion, ok := r.Question("portion_eggs")
	require.True(t, ok)

	tests := []struct {
		name    string
		q       rules.Question
		value   domain.AnswerValue
		points  float64
		matched bool
	}{
		{"Frequency daily", freq, domain.Choice("Svakodnevno"), 10, true},
		{"Frequency rarely", freq, domain.Choice("Rijetko"), 3, true},
		{"Frequency unknown label", freq, domain.Choice("Ponekad"), 0, false},
		{"Portion", portion, domain.Choice("2 jaja"), 7, true},
		{"Wrong shape", portion, domain.Ordinal(2), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points, matched := mapper.Points(tt.q, tt.value)
			assert.Equal(t, tt.points, points)
			assert.Equal(t, tt.matched, matched)
		})
	}
}

func TestUnmatchedTracker(t *testing.T) {
	t.Run("Ignore", func(t *testing.T) {
		tr := newUnmatchedTracker(domain.UNMATCHED_IGNORE, "answer")
		assert.NoError(t, tr.report("freq_fish", "bad label"))
		assert.Empty(t, tr.warnings)
	})

	t.Run("Warn", func(t *testing.T) {
		tr := newUnmatchedTracker(domain.UNMATCHED_WARN, "answer")
		assert.NoError(t, tr.report("freq_fish", "bad label %q", "Ponekad"))
		assert.Equal(t, []string{`freq_fish: bad label "Ponekad"`}, tr.warnings)
	})

	t.Run("Error", func(t *testing.T) {
		tr := newUnmatchedTracker(domain.UNMATCHED_ERROR, "answer")
		err := tr.report("freq_fish", "bad label")
		var cfgErr *domain.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "freq_fish", cfgErr.Code)
	})

	t.Run("Invalid policy falls back to warn", func(t *testing.T) {
		tr := newUnmatchedTracker("", "answer")
		assert.NoError(t, tr.report("freq_fish", "bad label"))
		assert.Len(t, tr.warnings, 1)
	})
}

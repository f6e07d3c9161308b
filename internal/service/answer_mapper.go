package service

import (
	"fmt"

	"github.com/coaching-health-scorer/internal/domain"
	"github.com/coaching-health-scorer/internal/rules"
)

// AnswerSet indexes a submission's answers by question code. When a code is answered more than
// once the last answer wins.
type AnswerSet struct {
	byCode map[string]domain.AnswerValue
	order  []string
}

// NewAnswerSet builds an AnswerSet from fetched answers.
func NewAnswerSet(answers []domain.Answer) AnswerSet {
	set := AnswerSet{byCode: make(map[string]domain.AnswerValue, len(answers))}
	for _, a := range answers {
		if a.Value == nil {
			continue
		}
		if _, seen := set.byCode[a.QuestionCode]; !seen {
			set.order = append(set.order, a.QuestionCode)
		}
		set.byCode[a.QuestionCode] = a.Value
	}
	return set
}

// Get returns the answer for a question code.
func (s AnswerSet) Get(code string) (domain.AnswerValue, bool) {
	v, ok := s.byCode[code]
	return v, ok
}

// Codes returns the answered question codes in first-seen order.
func (s AnswerSet) Codes() []string {
	return s.order
}

// Len is the number of distinct answered questions.
func (s AnswerSet) Len() int {
	return len(s.byCode)
}

// AnswerMapper converts answer values into points or presence flags using the label tables of
// the micronutrient rules.
type AnswerMapper struct {
	rules *rules.MicronutrientRules
}

// NewAnswerMapper creates a mapper over loaded rules
func NewAnswerMapper(r *rules.MicronutrientRules) *AnswerMapper {
	return &AnswerMapper{rules: r}
}

// Points maps an intake answer to 0-10 points. matched is false when the value is not a label of
// the question's table; the points are then 0.
func (m *AnswerMapper) Points(q rules.Question, v domain.AnswerValue) (points float64, matched bool) {
	choice, ok := v.(domain.Choice)
	if !ok {
		return 0, false
	}
	return m.rules.Points(q, string(choice))
}

// Presence reports whether a yes/no answer says yes. recognised is false for labels other than
// "Da" and "Ne" and for values of another shape.
func Presence(v domain.AnswerValue) (present bool, recognised bool) {
	switch val := v.(type) {
	case domain.Presence:
		return bool(val), true
	case domain.Choice:
		switch string(val) {
		case domain.AnswerYes:
			return true, true
		case domain.AnswerNo:
			return false, true
		}
	}
	return false, false
}

// OrdinalPoints reads a 0-3 scale answer. Values outside the scale are clamped and reported as
// not in range.
func OrdinalPoints(v domain.AnswerValue) (points int, inRange bool, ok bool) {
	o, isOrdinal := v.(domain.Ordinal)
	if !isOrdinal {
		return 0, false, false
	}
	switch {
	case o < 0:
		return 0, false, true
	case o > 3:
		return 3, false, true
	default:
		return int(o), true, true
	}
}

// ModifierPresent evaluates a risk modifier against its answer.
func ModifierPresent(m rules.RiskModifier, v domain.AnswerValue) bool {
	switch val := v.(type) {
	case domain.MultiChoice:
		return m.Option != "" && val.Contains(m.Option)
	case domain.Choice:
		if len(m.PresentWhen) > 0 {
			for _, label := range m.PresentWhen {
				if string(val) == label {
					return true
				}
			}
			return false
		}
		if m.Option != "" {
			return string(val) == m.Option
		}
		return string(val) == domain.AnswerYes
	case domain.Presence:
		return len(m.PresentWhen) == 0 && m.Option == "" && bool(val)
	}
	return false
}

// unmatchedTracker applies the unmatched-answer policy: ignore silently, collect a warning, or
// fail with a ConfigError.
type unmatchedTracker struct {
	policy   domain.UnmatchedAnswerPolicy
	unit     string
	warnings []string
}

func newUnmatchedTracker(policy domain.UnmatchedAnswerPolicy, unit string) *unmatchedTracker {
	if !policy.IsValid() {
		policy = domain.UNMATCHED_WARN
	}
	return &unmatchedTracker{policy: policy, unit: unit}
}

func (t *unmatchedTracker) report(code, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	switch t.policy {
	case domain.UNMATCHED_IGNORE:
		return nil
	case domain.UNMATCHED_ERROR:
		return domain.NewConfigError(t.unit, code, msg)
	default:
		t.warnings = append(t.warnings, fmt.Sprintf("%s: %s", code, msg))
		return nil
	}
}

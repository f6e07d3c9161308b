package service

import (
	"github.com/coaching-health-scorer/internal/domain"
	"github.com/coaching-health-scorer/internal/rules"
)

// SectionScorer computes one NAQ section's total, burden and priority.
type SectionScorer struct {
	rules *rules.NAQRules
}

// NewSectionScorer creates a scorer over loaded NAQ rules
func NewSectionScorer(r *rules.NAQRules) *SectionScorer {
	return &SectionScorer{rules: r}
}

// Score sums the ordinal points of every catalog question of the category. points holds the
// clamped 0-3 value of each answered NAQ question across all sections.
func (s *SectionScorer) Score(category string, points map[string]int) (domain.SectionScore, error) {
	section, ok := s.rules.Section(category)
	if !ok {
		return domain.SectionScore{}, domain.NewConfigError("section", category, "section not found in rule table")
	}

	total := 0
	for code, p := range points {
		if c, ok := s.rules.CategoryOf(code); ok && c == category {
			total += p
		}
	}

	return domain.SectionScore{
		SectionName:      section.Name,
		Category:         section.Category,
		TotalScore:       total,
		MaxPossibleScore: section.MaxPossibleScore(),
		QuestionCount:    section.QuestionCount,
		SymptomBurden:    domain.Round2(float64(total) / float64(section.QuestionCount)),
		PriorityLevel:    Classify(section, total),
	}, nil
}

// Classify applies the section's absolute cutoffs. Both boundaries are inclusive.
func Classify(section rules.SectionConfig, total int) domain.PriorityLevel {
	switch {
	case total >= section.HighPriorityCutoff:
		return domain.PRIORITY_HIGH
	case total >= section.MediumPriorityCutoff:
		return domain.PRIORITY_MEDIUM
	default:
		return domain.PRIORITY_LOW
	}
}

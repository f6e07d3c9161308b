package service

import (
	"fmt"
	"sort"

	"github.com/coaching-health-scorer/internal/domain"
	"github.com/coaching-health-scorer/internal/rules"
)

// maxPriorityRecommendations is how many hierarchy lines are emitted.
const maxPriorityRecommendations = 2

// AssessmentAggregator folds section scores into the overall NAQ assessment.
type AssessmentAggregator struct {
	rules *rules.NAQRules
}

// NewAssessmentAggregator creates an aggregator over loaded NAQ rules
func NewAssessmentAggregator(r *rules.NAQRules) *AssessmentAggregator {
	return &AssessmentAggregator{rules: r}
}

// Aggregate builds the NAQResult. scores must be in rule-table order.
func (a *AssessmentAggregator) Aggregate(scores []domain.SectionScore) domain.NAQResult {
	result := domain.NAQResult{
		Scores:                   scores,
		OverallBurden:            a.overallBurden(scores),
		PrimaryConcerns:          []domain.SectionScore{},
		HierarchyRecommendations: []string{},
	}

	for _, s := range scores {
		if s.PriorityLevel == domain.PRIORITY_HIGH {
			result.PrimaryConcerns = append(result.PrimaryConcerns, s)
		}
	}

	result.HierarchyRecommendations = append(result.HierarchyRecommendations, a.hierarchy(scores)...)
	if line, ok := a.digestionFirst(scores); ok {
		result.HierarchyRecommendations = append(result.HierarchyRecommendations, line)
	}

	return result
}

// overallBurden averages points per question over symptomatic sections only.
func (a *AssessmentAggregator) overallBurden(scores []domain.SectionScore) float64 {
	total, questions := 0, 0
	for _, s := range scores {
		if !a.symptomatic(s.Category) {
			continue
		}
		total += s.TotalScore
		questions += s.QuestionCount
	}
	if questions == 0 {
		return 0
	}
	return domain.Round2(float64(total) / float64(questions))
}

// hierarchy orders non-low symptomatic sections by treatment rank, then descending burden, then
// name, and renders the first two.
func (a *AssessmentAggregator) hierarchy(scores []domain.SectionScore) []string {
	candidates := make([]domain.SectionScore, 0, len(scores))
	for _, s := range scores {
		if s.PriorityLevel != domain.PRIORITY_LOW && a.symptomatic(s.Category) {
			candidates = append(candidates, s)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ri, rj := a.rules.Rank(candidates[i].Category), a.rules.Rank(candidates[j].Category)
		if ri != rj {
			return ri < rj
		}
		if candidates[i].SymptomBurden != candidates[j].SymptomBurden {
			return candidates[i].SymptomBurden > candidates[j].SymptomBurden
		}
		return candidates[i].SectionName < candidates[j].SectionName
	})

	lines := make([]string, 0, maxPriorityRecommendations)
	for i, s := range candidates {
		if i == maxPriorityRecommendations {
			break
		}
		lines = append(lines, fmt.Sprintf("Priority %d: %s (%s priority, burden %.2f)%s",
			i+1, s.SectionName, s.PriorityLevel, s.SymptomBurden, a.rationale(s.Category)))
	}
	return lines
}

// digestionFirst is the upper-GI short-circuit. It is independent of the sort above.
func (a *AssessmentAggregator) digestionFirst(scores []domain.SectionScore) (string, bool) {
	override := a.rules.Override
	for _, s := range scores {
		if s.Category == override.Category && s.PriorityLevel == domain.PRIORITY_HIGH {
			return override.Recommendation, true
		}
	}
	return "", false
}

func (a *AssessmentAggregator) rationale(category string) string {
	for _, h := range a.rules.Hierarchy {
		if h.Category == category {
			return " - " + h.Rationale
		}
	}
	return ""
}

func (a *AssessmentAggregator) symptomatic(category string) bool {
	section, ok := a.rules.Section(category)
	return ok && section.Symptomatic
}

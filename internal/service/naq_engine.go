package service

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/coaching-health-scorer/internal/domain"
	"github.com/coaching-health-scorer/internal/rules"
)

// NAQEngine scores a submission's NAQ answers into section scores and the overall assessment.
// Sections are scored sequentially; any ConfigError aborts the run.
type NAQEngine struct {
	logger     *logrus.Logger
	rules      *rules.NAQRules
	scorer     *SectionScorer
	aggregator *AssessmentAggregator
	policy     domain.UnmatchedAnswerPolicy
}

// NewNAQEngine creates a new NAQ engine
func NewNAQEngine(logger *logrus.Logger, r *rules.NAQRules, policy domain.UnmatchedAnswerPolicy) *NAQEngine {
	return &NAQEngine{
		logger:     logger,
		rules:      r,
		scorer:     NewSectionScorer(r),
		aggregator: NewAssessmentAggregator(r),
		policy:     policy,
	}
}

// Score runs the NAQ pipeline over one submission's answers.
func (e *NAQEngine) Score(answers []domain.Answer) (*domain.NAQResult, error) {
	set := NewAnswerSet(answers)
	tracker := newUnmatchedTracker(e.policy, "question")

	points := make(map[string]int, set.Len())
	for _, code := range set.Codes() {
		if _, ok := e.rules.CategoryOf(code); !ok {
			if err := tracker.report(code, "question is not in the NAQ catalog"); err != nil {
				return nil, err
			}
			continue
		}
		v, _ := set.Get(code)
		p, inRange, ok := OrdinalPoints(v)
		if !ok {
			if err := tracker.report(code, "answer %v is not a 0-3 ordinal", v); err != nil {
				return nil, err
			}
			continue
		}
		if !inRange {
			if err := tracker.report(code, "answer %v clamped to %d", v, p); err != nil {
				return nil, err
			}
		}
		points[code] = p
	}

	scores := make([]domain.SectionScore, 0, len(e.rules.Sections))
	for _, section := range e.rules.Sections {
		score, err := e.scorer.Score(section.Category, points)
		if err != nil {
			return nil, fmt.Errorf("scoring section %s: %w", section.Category, err)
		}
		scores = append(scores, score)
	}

	result := e.aggregator.Aggregate(scores)
	result.Warnings = tracker.warnings

	e.logger.WithFields(logrus.Fields{
		"answers":          set.Len(),
		"sections":         len(scores),
		"primary_concerns": len(result.PrimaryConcerns),
		"overall_burden":   result.OverallBurden,
		"warnings":         len(result.Warnings),
	}).Debug("NAQ scoring completed")

	return &result, nil
}

package service

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/coaching-health-scorer/internal/domain"
	"github.com/coaching-health-scorer/internal/rules"
)

// MicronutrientEngine scores every configured nutrient for one submission. Nutrients are
// independent: they run in parallel, each writing its own slot, and a failing nutrient is
// reported in Failures without affecting the others.
type MicronutrientEngine struct {
	logger      *logrus.Logger
	rules       *rules.MicronutrientRules
	calculator  *NutrientScoreCalculator
	policy      domain.UnmatchedAnswerPolicy
	parallelism int
}

// NewMicronutrientEngine creates a new micronutrient engine. parallelism <= 0 uses GOMAXPROCS.
func NewMicronutrientEngine(logger *logrus.Logger, r *rules.MicronutrientRules, policy domain.UnmatchedAnswerPolicy, parallelism int) *MicronutrientEngine {
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}
	return &MicronutrientEngine{
		logger:      logger,
		rules:       r,
		calculator:  NewNutrientScoreCalculator(r, policy),
		policy:      policy,
		parallelism: parallelism,
	}
}

// Score runs the five-step pipeline for every nutrient. An error is returned when answers
// reference questions outside the catalog under the error policy, or when no nutrient could be
// scored at all.
func (e *MicronutrientEngine) Score(answers []domain.Answer) (*domain.MicronutrientResult, error) {
	set := NewAnswerSet(answers)

	tracker := newUnmatchedTracker(e.policy, "question")
	for _, code := range set.Codes() {
		if _, ok := e.rules.Question(code); !ok {
			if err := tracker.report(code, "question is not in the micronutrient catalog"); err != nil {
				return nil, err
			}
		}
	}

	nutrients := e.rules.Nutrients
	results := make([]domain.NutrientRiskResult, len(nutrients))
	failures := make([]error, len(nutrients))

	var g errgroup.Group
	g.SetLimit(e.parallelism)
	for i := range nutrients {
		i := i
		g.Go(func() error {
			res, err := e.calculator.Calculate(nutrients[i], set)
			if err != nil {
				failures[i] = err
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	out := &domain.MicronutrientResult{
		Results:  make([]domain.NutrientRiskResult, 0, len(nutrients)),
		Warnings: tracker.warnings,
	}
	var errs []error
	for i, n := range nutrients {
		if failures[i] != nil {
			out.Failures = append(out.Failures, domain.NutrientFailure{NutrientCode: n.Code, Error: failures[i].Error()})
			errs = append(errs, failures[i])
			e.logger.WithError(failures[i]).WithField("nutrient", n.Code).Warn("Nutrient scoring failed")
			continue
		}
		out.Results = append(out.Results, results[i])
	}

	e.logger.WithFields(logrus.Fields{
		"answers":   set.Len(),
		"nutrients": len(out.Results),
		"failures":  len(out.Failures),
		"high_risk": strings.Join(highRiskCodes(out.Results), ","),
	}).Debug("Micronutrient scoring completed")

	if len(out.Results) == 0 && len(errs) > 0 {
		return out, fmt.Errorf("no nutrient could be scored: %w", errors.Join(errs...))
	}
	return out, nil
}

func highRiskCodes(results []domain.NutrientRiskResult) []string {
	var codes []string
	for _, r := range results {
		if r.RiskCategory == domain.RISK_HIGH {
			codes = append(codes, r.NutrientCode)
		}
	}
	return codes
}

package service

import (
	"math"

	"github.com/coaching-health-scorer/internal/domain"
	"github.com/coaching-health-scorer/internal/rules"
)

// Weights of the risk-adjusted score.
const (
	intakeWeight  = 0.6
	symptomWeight = 0.4
	maxLabelScore = 10.0
)

// Category thresholds on the final weighted score. Each is an exclusive lower bound.
const (
	thresholdNone     = 85.0
	thresholdLow      = 60.0
	thresholdModerate = 35.0
)

// NutrientScoreCalculator runs the five-step pipeline for one nutrient.
type NutrientScoreCalculator struct {
	rules  *rules.MicronutrientRules
	mapper *AnswerMapper
	policy domain.UnmatchedAnswerPolicy
}

// NewNutrientScoreCalculator creates a calculator over loaded micronutrient rules
func NewNutrientScoreCalculator(r *rules.MicronutrientRules, policy domain.UnmatchedAnswerPolicy) *NutrientScoreCalculator {
	return &NutrientScoreCalculator{
		rules:  r,
		mapper: NewAnswerMapper(r),
		policy: policy,
	}
}

// Calculate scores one nutrient. It only reads its inputs and is safe for concurrent use.
func (c *NutrientScoreCalculator) Calculate(n rules.NutrientConfig, answers AnswerSet) (domain.NutrientRiskResult, error) {
	tracker := newUnmatchedTracker(c.policy, "answer")

	sun, err := c.intakeScore(n, answers, tracker)
	if err != nil {
		return domain.NutrientRiskResult{}, err
	}
	ssn, err := c.symptomScore(n, answers, tracker)
	if err != nil {
		return domain.NutrientRiskResult{}, err
	}
	ssn = clamp(ssn-clusterAdjustment(n, answers), 0, 100)

	ksr, factors := c.riskAdjusted(n, answers, intakeWeight*sun+symptomWeight*ssn)
	fps := math.Min(100, ksr*n.PrevalenceFactor)

	return domain.NutrientRiskResult{
		NutrientCode:          n.Code,
		NutrientName:          n.Name,
		IntakeScorePct:        domain.Round2(sun),
		SymptomScorePct:       domain.Round2(ssn),
		RiskScorePct:          domain.Round2(ksr),
		FinalWeightedScorePct: domain.Round2(fps),
		RiskCategory:          Categorize(fps),
		ContributingFactors:   factors,
		Warnings:              tracker.warnings,
	}, nil
}

// intakeScore is SUN%: weighted points over the weighted maximum of the answered intake questions.
func (c *NutrientScoreCalculator) intakeScore(n rules.NutrientConfig, answers AnswerSet, tracker *unmatchedTracker) (float64, error) {
	weighted, maximum := 0.0, 0.0
	for _, w := range n.Intake {
		q, ok := c.rules.Question(w.Code)
		if !ok {
			return 0, domain.NewConfigError("nutrient", n.Code, "intake question "+w.Code+" not in catalog")
		}
		v, answered := answers.Get(w.Code)
		if !answered {
			continue
		}
		points, matched := c.mapper.Points(q, v)
		if !matched {
			if err := tracker.report(w.Code, "answer %v has no entry in label table %q", v, q.Table); err != nil {
				return 0, err
			}
		}
		weighted += points * w.Weight
		maximum += w.Weight * maxLabelScore
	}
	if maximum == 0 {
		return 0, nil
	}
	return 100 * weighted / maximum, nil
}

// symptomScore is SSN%: points of symptoms answered absent over points of symptoms answered at all.
// With nothing to measure the score is 100.
func (c *NutrientScoreCalculator) symptomScore(n rules.NutrientConfig, answers AnswerSet, tracker *unmatchedTracker) (float64, error) {
	absent, maximum := 0.0, 0.0
	for _, s := range n.Symptoms {
		v, answered := answers.Get(s.Code)
		if !answered {
			continue
		}
		maximum += s.Points
		present, recognised := Presence(v)
		if !recognised {
			if err := tracker.report(s.Code, "answer %v is neither %q nor %q", v, domain.AnswerYes, domain.AnswerNo); err != nil {
				return 0, err
			}
			continue
		}
		if !present {
			absent += s.Points
		}
	}
	if maximum == 0 {
		return 100, nil
	}
	return 100 * absent / maximum, nil
}

// clusterAdjustment totals the magnitudes of every rule whose conditions are all answered yes.
// Override and subtract rules lower the score the same way.
func clusterAdjustment(n rules.NutrientConfig, answers AnswerSet) float64 {
	total := 0.0
	for _, rule := range n.ClusterRules {
		if clusterMatches(rule, answers) {
			total += rule.Magnitude
		}
	}
	return total
}

func clusterMatches(rule rules.ClusterRule, answers AnswerSet) bool {
	if len(rule.Conditions) == 0 {
		return false
	}
	for _, code := range rule.Conditions {
		v, ok := answers.Get(code)
		if !ok {
			return false
		}
		if present, _ := Presence(v); !present {
			return false
		}
	}
	return true
}

// riskAdjusted compounds every present modifier onto the base score in configured order.
func (c *NutrientScoreCalculator) riskAdjusted(n rules.NutrientConfig, answers AnswerSet, base float64) (float64, []string) {
	ksr := base
	factors := []string{}
	for _, m := range n.RiskModifiers {
		v, ok := answers.Get(m.Code)
		if !ok || !ModifierPresent(m, v) {
			continue
		}
		ksr *= m.Multiplier
		factors = append(factors, m.Name)
	}
	return ksr, factors
}

// Categorize maps an unrounded final weighted score to its risk category.
func Categorize(fps float64) domain.RiskCategory {
	switch {
	case fps > thresholdNone:
		return domain.RISK_NONE
	case fps > thresholdLow:
		return domain.RISK_LOW
	case fps > thresholdModerate:
		return domain.RISK_MODERATE
	default:
		return domain.RISK_HIGH
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/coaching-health-scorer/internal/domain"
	"github.com/coaching-health-scorer/internal/rules"
)

// AssessmentService runs the fetch, score and persist workflow for both engines.
type AssessmentService struct {
	logger *logrus.Logger
	store  domain.AssessmentStore
	cache  domain.ResultCache
	rules  *rules.RuleSet
	naq    *NAQEngine
	micro  *MicronutrientEngine
	now    func() time.Time
}

// NewAssessmentService creates a new assessment service. cache may be nil.
func NewAssessmentService(
	logger *logrus.Logger,
	store domain.AssessmentStore,
	cache domain.ResultCache,
	ruleSet *rules.RuleSet,
	scoring domain.ScoringConfig,
) *AssessmentService {
	return &AssessmentService{
		logger: logger,
		store:  store,
		cache:  cache,
		rules:  ruleSet,
		naq:    NewNAQEngine(logger, ruleSet.NAQ, scoring.UnmatchedAnswerPolicy),
		micro:  NewMicronutrientEngine(logger, ruleSet.Micronutrient, scoring.UnmatchedAnswerPolicy, scoring.Parallelism),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Rules returns the loaded rule set.
func (s *AssessmentService) Rules() *rules.RuleSet {
	return s.rules
}

// ScoreNAQ scores a stored submission's NAQ answers and persists one row per section under a new run id.
func (s *AssessmentService) ScoreNAQ(ctx context.Context, submissionID string) (*domain.ScoringRun, *domain.NAQResult, error) {
	startTime := time.Now()

	submission, answers, err := s.load(ctx, submissionID)
	if err != nil {
		return nil, nil, err
	}

	result, err := s.naq.Score(answers)
	if err != nil {
		return nil, nil, fmt.Errorf("NAQ scoring of submission %s: %w", submissionID, err)
	}

	run := s.newRun(submission, domain.ASSESSMENT_NAQ)
	createdAt := s.now()
	records := make([]domain.SectionScoreRecord, 0, len(result.Scores))
	for _, score := range result.Scores {
		records = append(records, domain.SectionScoreRecord{
			ID:           uuid.NewString(),
			RunID:        run.RunID,
			SubmissionID: submission.ID,
			ClientID:     submission.ClientID,
			SectionScore: score,
			CreatedAt:    createdAt,
		})
	}

	if err := s.store.SaveSectionScores(ctx, records); err != nil {
		return nil, nil, fmt.Errorf("persisting NAQ results for submission %s: %w", submissionID, err)
	}
	if s.cache != nil {
		s.cache.SetSectionScores(ctx, submission.ID, records)
	}

	run.ResultsCount = len(records)
	run.Duration = time.Since(startTime)
	s.logger.WithFields(logrus.Fields{
		"submission_id":  submission.ID,
		"client_id":      submission.ClientID,
		"run_id":         run.RunID,
		"results_count":  run.ResultsCount,
		"overall_burden": result.OverallBurden,
		"warnings":       len(result.Warnings),
		"duration":       run.Duration,
	}).Info("NAQ assessment completed")

	return run, result, nil
}

// ScoreMicronutrients scores a stored submission's micronutrient answers and persists one row per
// scored nutrient under a new run id.
func (s *AssessmentService) ScoreMicronutrients(ctx context.Context, submissionID string) (*domain.ScoringRun, *domain.MicronutrientResult, error) {
	startTime := time.Now()

	submission, answers, err := s.load(ctx, submissionID)
	if err != nil {
		return nil, nil, err
	}

	result, err := s.micro.Score(answers)
	if err != nil {
		return nil, nil, fmt.Errorf("micronutrient scoring of submission %s: %w", submissionID, err)
	}

	run := s.newRun(submission, domain.ASSESSMENT_MICRONUTRIENT)
	createdAt := s.now()
	records := make([]domain.NutrientResultRecord, 0, len(result.Results))
	for _, r := range result.Results {
		records = append(records, domain.NutrientResultRecord{
			ID:                 uuid.NewString(),
			RunID:              run.RunID,
			SubmissionID:       submission.ID,
			ClientID:           submission.ClientID,
			NutrientRiskResult: r,
			CreatedAt:          createdAt,
		})
	}

	if err := s.store.SaveNutrientResults(ctx, records); err != nil {
		return nil, nil, fmt.Errorf("persisting micronutrient results for submission %s: %w", submissionID, err)
	}
	if s.cache != nil {
		s.cache.SetNutrientResults(ctx, submission.ID, records)
	}

	run.ResultsCount = len(records)
	run.Duration = time.Since(startTime)
	s.logger.WithFields(logrus.Fields{
		"submission_id": submission.ID,
		"client_id":     submission.ClientID,
		"run_id":        run.RunID,
		"results_count": run.ResultsCount,
		"failures":      len(result.Failures),
		"duration":      run.Duration,
	}).Info("Micronutrient assessment completed")

	return run, result, nil
}

// LatestNAQ returns the most recent NAQ run of a submission, from cache when possible.
func (s *AssessmentService) LatestNAQ(ctx context.Context, submissionID string) ([]domain.SectionScoreRecord, error) {
	if s.cache != nil {
		if records, ok := s.cache.GetSectionScores(ctx, submissionID); ok {
			return records, nil
		}
	}
	records, err := s.store.LatestSectionScores(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetSectionScores(ctx, submissionID, records)
	}
	return records, nil
}

// LatestMicronutrients returns the most recent micronutrient run of a submission, from cache when possible.
func (s *AssessmentService) LatestMicronutrients(ctx context.Context, submissionID string) ([]domain.NutrientResultRecord, error) {
	if s.cache != nil {
		if records, ok := s.cache.GetNutrientResults(ctx, submissionID); ok {
			return records, nil
		}
	}
	records, err := s.store.LatestNutrientResults(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetNutrientResults(ctx, submissionID, records)
	}
	return records, nil
}

// Health checks the backing store.
func (s *AssessmentService) Health(ctx context.Context) error {
	return s.store.Health(ctx)
}

// StoreCircuitState reports the store's circuit breaker state, or "" when the store has none.
func (s *AssessmentService) StoreCircuitState() string {
	if b, ok := s.store.(interface{ State() string }); ok {
		return b.State()
	}
	return ""
}

func (s *AssessmentService) load(ctx context.Context, submissionID string) (*domain.Submission, []domain.Answer, error) {
	submission, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching submission %s: %w", submissionID, err)
	}
	answers, err := s.store.GetAnswers(ctx, submission.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching answers for submission %s: %w", submissionID, err)
	}
	if len(answers) == 0 {
		return nil, nil, fmt.Errorf("submission %s: %w", submissionID, domain.ErrNoData)
	}
	return submission, answers, nil
}

func (s *AssessmentService) newRun(submission *domain.Submission, kind domain.AssessmentKind) *domain.ScoringRun {
	return &domain.ScoringRun{
		RunID:        uuid.NewString(),
		SubmissionID: submission.ID,
		ClientID:     submission.ClientID,
		Kind:         kind,
	}
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/coaching-health-scorer/internal/domain"
)

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultCircuitBreakerConfig returns the settings used by the servers.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
	}
}

// ResilientStore wraps an AssessmentStore with a circuit breaker. Not-found and no-data outcomes
// are answers, not failures, and never trip the breaker.
type ResilientStore struct {
	next    domain.AssessmentStore
	breaker *gobreaker.CircuitBreaker
}

// NewResilientStore creates a new resilient store
func NewResilientStore(next domain.AssessmentStore, config CircuitBreakerConfig, logger *logrus.Logger) *ResilientStore {
	settings := gobreaker.Settings{
		Name:        "AssessmentStore",
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from_state":      from,
				"to_state":        to,
			}).Warn("Circuit breaker state changed")
		},
		IsSuccessful: isHealthyOutcome,
	}

	return &ResilientStore{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// isHealthyOutcome reports whether err says nothing about backend health. A cancelled request was
// abandoned by its caller; an exceeded deadline means the backend was too slow and does count.
func isHealthyOutcome(err error) bool {
	return err == nil ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrNoData) ||
		errors.Is(err, context.Canceled)
}

// State reports the breaker state for health endpoints.
func (s *ResilientStore) State() string {
	return s.breaker.State().String()
}

func (s *ResilientStore) execute(op string, fn func() (interface{}, error)) (interface{}, error) {
	result, err := s.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, domain.NewStorageError(op, err)
	}
	return result, err
}

func (s *ResilientStore) GetSubmission(ctx context.Context, id string) (*domain.Submission, error) {
	result, err := s.execute("get_submission", func() (interface{}, error) {
		return s.next.GetSubmission(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.Submission), nil
}

func (s *ResilientStore) GetAnswers(ctx context.Context, submissionID string) ([]domain.Answer, error) {
	result, err := s.execute("get_answers", func() (interface{}, error) {
		return s.next.GetAnswers(ctx, submissionID)
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Answer), nil
}

func (s *ResilientStore) SaveSectionScores(ctx context.Context, records []domain.SectionScoreRecord) error {
	_, err := s.execute("save_section_scores", func() (interface{}, error) {
		return nil, s.next.SaveSectionScores(ctx, records)
	})
	return err
}

func (s *ResilientStore) SaveNutrientResults(ctx context.Context, records []domain.NutrientResultRecord) error {
	_, err := s.execute("save_nutrient_results", func() (interface{}, error) {
		return nil, s.next.SaveNutrientResults(ctx, records)
	})
	return err
}

func (s *ResilientStore) LatestSectionScores(ctx context.Context, submissionID string) ([]domain.SectionScoreRecord, error) {
	result, err := s.execute("latest_section_scores", func() (interface{}, error) {
		return s.next.LatestSectionScores(ctx, submissionID)
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.SectionScoreRecord), nil
}

func (s *ResilientStore) LatestNutrientResults(ctx context.Context, submissionID string) ([]domain.NutrientResultRecord, error) {
	result, err := s.execute("latest_nutrient_results", func() (interface{}, error) {
		return s.next.LatestNutrientResults(ctx, submissionID)
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.NutrientResultRecord), nil
}

// Health bypasses the breaker so health checks see the real backend state.
func (s *ResilientStore) Health(ctx context.Context) error {
	return s.next.Health(ctx)
}

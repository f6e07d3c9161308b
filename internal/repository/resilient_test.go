package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/coaching-health-scorer/internal/domain"
)

// MockStore is a mock implementation of the AssessmentStore interface
type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetSubmission(ctx context.Context, id string) (*domain.Submission, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Submission), args.Error(1)
}

func (m *MockStore) GetAnswers(ctx context.Context, submissionID string) ([]domain.Answer, error) {
	args := m.Called(ctx, submissionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Answer), args.Error(1)
}

func (m *MockStore) SaveSectionScores(ctx context.Context, records []domain.SectionScoreRecord) error {
	return m.Called(ctx, records).Error(0)
}

func (m *MockStore) SaveNutrientResults(ctx context.Context, records []domain.NutrientResultRecord) error {
	return m.Called(ctx, records).Error(0)
}

func (m *MockStore) LatestSectionScores(ctx context.Context, submissionID string) ([]domain.SectionScoreRecord, error) {
	args := m.Called(ctx, submissionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SectionScoreRecord), args.Error(1)
}

func (m *MockStore) LatestNutrientResults(ctx context.Context, submissionID string) ([]domain.NutrientResultRecord, error) {
	args := m.Called(ctx, submissionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.NutrientResultRecord), args.Error(1)
}

func (m *MockStore) Health(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func TestResilientStore(t *testing.T) {
	ctx := context.Background()
	config := CircuitBreakerConfig{MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, FailureThreshold: 2}

	t.Run("Passes results through", func(t *testing.T) {
		next := new(MockStore)
		sub := &domain.Submission{ID: "sub-1", ClientID: "c"}
		next.On("GetSubmission", ctx, "sub-1").Return(sub, nil)
		next.On("GetAnswers", ctx, "sub-1").Return([]domain.Answer{{QuestionCode: "q", Value: domain.Ordinal(1)}}, nil)

		store := NewResilientStore(next, config, quietLogger())
		got, err := store.GetSubmission(ctx, "sub-1")
		require.NoError(t, err)
		assert.Equal(t, sub, got)

		answers, err := store.GetAnswers(ctx, "sub-1")
		require.NoError(t, err)
		assert.Len(t, answers, 1)
		assert.Equal(t, "closed", store.State())
	})

	t.Run("Not found does not trip", func(t *testing.T) {
		next := new(MockStore)
		next.On("GetSubmission", ctx, "missing").Return(nil, domain.ErrNotFound)

		store := NewResilientStore(next, config, quietLogger())
		for i := 0; i < 5; i++ {
			_, err := store.GetSubmission(ctx, "missing")
			assert.ErrorIs(t, err, domain.ErrNotFound)
		}
		assert.Equal(t, "closed", store.State())
		next.AssertNumberOfCalls(t, "GetSubmission", 5)
	})

	t.Run("Consecutive failures open the breaker", func(t *testing.T) {
		next := new(MockStore)
		driverErr := domain.NewStorageError("save_section_scores", errors.New("connection refused"))
		next.On("SaveSectionScores", ctx, mock.Anything).Return(driverErr)

		store := NewResilientStore(next, config, quietLogger())
		for i := 0; i < 2; i++ {
			err := store.SaveSectionScores(ctx, nil)
			assert.ErrorIs(t, err, driverErr)
		}
		assert.Equal(t, "open", store.State())

		err := store.SaveSectionScores(ctx, nil)
		var storageErr *domain.StorageError
		require.ErrorAs(t, err, &storageErr)
		assert.ErrorIs(t, err, gobreaker.ErrOpenState)
		next.AssertNumberOfCalls(t, "SaveSectionScores", 2)
	})

	t.Run("Cancelled callers do not trip", func(t *testing.T) {
		next := new(MockStore)
		sub := &domain.Submission{ID: "sub-1", ClientID: "c"}
		next.On("GetSubmission", ctx, "gone").Return(nil, fmt.Errorf("query submission: %w", context.Canceled))
		next.On("GetSubmission", ctx, "sub-1").Return(sub, nil)

		store := NewResilientStore(next, config, quietLogger())
		for i := 0; i < 5; i++ {
			_, err := store.GetSubmission(ctx, "gone")
			assert.ErrorIs(t, err, context.Canceled)
		}
		assert.Equal(t, "closed", store.State())

		got, err := store.GetSubmission(ctx, "sub-1")
		require.NoError(t, err)
		assert.Equal(t, sub, got)
	})

	t.Run("Deadlines count as failures", func(t *testing.T) {
		next := new(MockStore)
		next.On("GetAnswers", ctx, "slow").Return(nil, context.DeadlineExceeded)

		store := NewResilientStore(next, config, quietLogger())
		for i := 0; i < 2; i++ {
			_, err := store.GetAnswers(ctx, "slow")
			assert.ErrorIs(t, err, context.DeadlineExceeded)
		}
		assert.Equal(t, "open", store.State())
	})

	t.Run("Health bypasses the breaker", func(t *testing.T) {
		next := new(MockStore)
		next.On("Health", ctx).Return(nil)
		store := NewResilientStore(next, config, quietLogger())
		assert.NoError(t, store.Health(ctx))
	})
}

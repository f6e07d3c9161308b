package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/coaching-health-scorer/internal/domain"
	"github.com/coaching-health-scorer/internal/rules"
)

// MockAssessmentStore is a mock implementation of the AssessmentStore interface
type MockAssessmentStore struct {
	mock.Mock
}

func (m *MockAssessmentStore) GetSubmission(ctx context.Context, id string) (*domain.Submission, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Submission), args.Error(1)
}

func (m *MockAssessmentStore) GetAnswers(ctx context.Context, submissionID string) ([]domain.Answer, error) {
	args := m.Called(ctx, submissionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Answer), args.Error(1)
}

func (m *MockAssessmentStore) SaveSectionScores(ctx context.Context, records []domain.SectionScoreRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *MockAssessmentStore) SaveNutrientResults(ctx context.Context, records []domain.NutrientResultRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *MockAssessmentStore) LatestSectionScores(ctx context.Context, submissionID string) ([]domain.SectionScoreRecord, error) {
	args := m.Called(ctx, submissionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SectionScoreRecord), args.Error(1)
}

func (m *MockAssessmentStore) LatestNutrientResults(ctx context.Context, submissionID string) ([]domain.NutrientResultRecord, error) {
	args := m.Called(ctx, submissionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.NutrientResultRecord), args.Error(1)
}

func (m *MockAssessmentStore) Health(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// mapCache is an in-process ResultCache that counts lookups.
type mapCache struct {
	mu        sync.Mutex
	sections  map[string][]domain.SectionScoreRecord
	nutrients map[string][]domain.NutrientResultRecord
	hits      int
}

func newMapCache() *mapCache {
	return &mapCache{
		sections:  make(map[string][]domain.SectionScoreRecord),
		nutrients: make(map[string][]domain.NutrientResultRecord),
	}
}

func (c *mapCache) GetSectionScores(_ context.Context, id string) ([]domain.SectionScoreRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.sections[id]
	if ok {
		c.hits++
	}
	return r, ok
}

func (c *mapCache) SetSectionScores(_ context.Context, id string, records []domain.SectionScoreRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sections[id] = records
}

func (c *mapCache) GetNutrientResults(_ context.Context, id string) ([]domain.NutrientResultRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.nutrients[id]
	if ok {
		c.hits++
	}
	return r, ok
}

func (c *mapCache) SetNutrientResults(_ context.Context, id string, records []domain.NutrientResultRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nutrients[id] = records
}

func (c *mapCache) Close() error { return nil }

var testSubmission = &domain.Submission{ID: "sub-1", ClientID: "client-1", QuestionnaireID: "naq"}

func newTestService(store domain.AssessmentStore, cache domain.ResultCache) *AssessmentService {
	return NewAssessmentService(testLogger(), store, cache, rules.Default(), domain.ScoringConfig{
		Parallelism:           4,
		UnmatchedAnswerPolicy: domain.UNMATCHED_WARN,
	})
}

func TestAssessmentService_ScoreNAQ(t *testing.T) {
	ctx := context.Background()

	t.Run("Persists one record per section under one run", func(t *testing.T) {
		store := new(MockAssessmentStore)
		cache := newMapCache()
		store.On("GetSubmission", ctx, "sub-1").Return(testSubmission, nil)
		store.On("GetAnswers", ctx, "sub-1").Return(ordinals("upper_gi", 3, 3, 3, 3, 3, 3, 3, 3), nil)
		store.On("SaveSectionScores", ctx, mock.AnythingOfType("[]domain.SectionScoreRecord")).Return(nil)

		svc := newTestService(store, cache)
		run, result, err := svc.ScoreNAQ(ctx, "sub-1")
		require.NoError(t, err)

		assert.Equal(t, domain.ASSESSMENT_NAQ, run.Kind)
		assert.Equal(t, 16, run.ResultsCount)
		assert.Len(t, result.Scores, 16)

		saved := store.Calls[2].Arguments.Get(1).([]domain.SectionScoreRecord)
		require.Len(t, saved, 16)
		ids := make(map[string]bool)
		for _, r := range saved {
			assert.Equal(t, run.RunID, r.RunID)
			assert.Equal(t, "sub-1", r.SubmissionID)
			assert.Equal(t, "client-1", r.ClientID)
			assert.False(t, r.CreatedAt.IsZero())
			ids[r.ID] = true
		}
		assert.Len(t, ids, 16, "record ids are unique")
		assert.Equal(t, saved, cache.sections["sub-1"])
		store.AssertExpectations(t)
	})

	t.Run("Re-scoring creates a new run", func(t *testing.T) {
		store := new(MockAssessmentStore)
		store.On("GetSubmission", ctx, "sub-1").Return(testSubmission, nil)
		store.On("GetAnswers", ctx, "sub-1").Return(ordinals("adrenal", 1), nil)
		store.On("SaveSectionScores", ctx, mock.Anything).Return(nil)

		svc := newTestService(store, nil)
		first, _, err := svc.ScoreNAQ(ctx, "sub-1")
		require.NoError(t, err)
		second, _, err := svc.ScoreNAQ(ctx, "sub-1")
		require.NoError(t, err)
		assert.NotEqual(t, first.RunID, second.RunID)
		store.AssertNumberOfCalls(t, "SaveSectionScores", 2)
	})

	t.Run("Unknown submission", func(t *testing.T) {
		store := new(MockAssessmentStore)
		store.On("GetSubmission", ctx, "missing").Return(nil, domain.ErrNotFound)

		_, _, err := newTestService(store, nil).ScoreNAQ(ctx, "missing")
		require.ErrorIs(t, err, domain.ErrNotFound)
		store.AssertNotCalled(t, "SaveSectionScores", mock.Anything, mock.Anything)
	})

	t.Run("Submission without answers", func(t *testing.T) {
		store := new(MockAssessmentStore)
		store.On("GetSubmission", ctx, "sub-1").Return(testSubmission, nil)
		store.On("GetAnswers", ctx, "sub-1").Return([]domain.Answer{}, nil)

		_, _, err := newTestService(store, nil).ScoreNAQ(ctx, "sub-1")
		require.ErrorIs(t, err, domain.ErrNoData)
		store.AssertNotCalled(t, "SaveSectionScores", mock.Anything, mock.Anything)
	})

	t.Run("Storage failure is surfaced", func(t *testing.T) {
		store := new(MockAssessmentStore)
		cache := newMapCache()
		store.On("GetSubmission", ctx, "sub-1").Return(testSubmission, nil)
		store.On("GetAnswers", ctx, "sub-1").Return(ordinals("upper_gi", 1), nil)
		store.On("SaveSectionScores", ctx, mock.Anything).
			Return(domain.NewStorageError("save_section_scores", errors.New("connection reset")))

		_, _, err := newTestService(store, cache).ScoreNAQ(ctx, "sub-1")
		var storageErr *domain.StorageError
		require.ErrorAs(t, err, &storageErr)
		assert.Equal(t, domain.ErrCodeStorage, domain.ErrorCode(err))
		assert.Empty(t, cache.sections, "failed runs are not cached")
	})

	t.Run("Rule errors abort under error policy", func(t *testing.T) {
		store := new(MockAssessmentStore)
		store.On("GetSubmission", ctx, "sub-1").Return(testSubmission, nil)
		store.On("GetAnswers", ctx, "sub-1").Return(ordinals("unknown_section", 1), nil)

		svc := NewAssessmentService(testLogger(), store, nil, rules.Default(), domain.ScoringConfig{
			UnmatchedAnswerPolicy: domain.UNMATCHED_ERROR,
		})
		_, _, err := svc.ScoreNAQ(ctx, "sub-1")
		assert.Equal(t, domain.ErrCodeConfig, domain.ErrorCode(err))
		store.AssertNotCalled(t, "SaveSectionScores", mock.Anything, mock.Anything)
	})
}

func TestAssessmentService_ScoreMicronutrients(t *testing.T) {
	ctx := context.Background()

	store := new(MockAssessmentStore)
	cache := newMapCache()
	store.On("GetSubmission", ctx, "sub-1").Return(testSubmission, nil)
	store.On("GetAnswers", ctx, "sub-1").Return([]domain.Answer{
		choice("freq_fatty_fish", domain.QUESTION_FREQUENCY, "Svakodnevno"),
		yes("sym_fatigue"),
	}, nil)
	store.On("SaveNutrientResults", ctx, mock.AnythingOfType("[]domain.NutrientResultRecord")).Return(nil)

	run, result, err := newTestService(store, cache).ScoreMicronutrients(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ASSESSMENT_MICRONUTRIENT, run.Kind)
	assert.Equal(t, 27, run.ResultsCount)
	assert.Len(t, result.Results, 27)
	assert.Empty(t, result.Failures)

	records := cache.nutrients["sub-1"]
	require.Len(t, records, 27)
	for _, r := range records {
		assert.Equal(t, run.RunID, r.RunID)
		assert.True(t, r.RiskCategory.IsValid())
	}
	store.AssertExpectations(t)
}

func TestAssessmentService_Latest(t *testing.T) {
	ctx := context.Background()
	stored := []domain.SectionScoreRecord{{ID: "r1", RunID: "run-1", SubmissionID: "sub-1"}}

	t.Run("Miss reads the store and fills the cache", func(t *testing.T) {
		store := new(MockAssessmentStore)
		cache := newMapCache()
		store.On("LatestSectionScores", ctx, "sub-1").Return(stored, nil).Once()

		svc := newTestService(store, cache)
		got, err := svc.LatestNAQ(ctx, "sub-1")
		require.NoError(t, err)
		assert.Equal(t, stored, got)

		got, err = svc.LatestNAQ(ctx, "sub-1")
		require.NoError(t, err)
		assert.Equal(t, stored, got)
		assert.Equal(t, 1, cache.hits)
		store.AssertNumberOfCalls(t, "LatestSectionScores", 1)
	})

	t.Run("Not found without cache", func(t *testing.T) {
		store := new(MockAssessmentStore)
		store.On("LatestNutrientResults", ctx, "sub-2").Return(nil, domain.ErrNotFound)

		_, err := newTestService(store, nil).LatestMicronutrients(ctx, "sub-2")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Health delegates to the store", func(t *testing.T) {
		store := new(MockAssessmentStore)
		store.On("Health", ctx).Return(errors.New("down"))
		assert.EqualError(t, newTestService(store, nil).Health(ctx), "down")
	})
}

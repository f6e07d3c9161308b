package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/coaching-health-scorer/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress logs during testing
	return logger
}

func sectionRun(submissionID string) []domain.SectionScoreRecord {
	return []domain.SectionScoreRecord{
		{
			ID: "r1", RunID: "run-1", SubmissionID: submissionID, ClientID: "client-1",
			SectionScore: domain.SectionScore{
				SectionName: "Upper Gastrointestinal System", Category: "upper_gi",
				TotalScore: 20, MaxPossibleScore: 30, QuestionCount: 10, SymptomBurden: 2, PriorityLevel: domain.PRIORITY_HIGH,
			},
			CreatedAt: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
		},
	}
}

func nutrientRun(submissionID string) []domain.NutrientResultRecord {
	return []domain.NutrientResultRecord{
		{
			ID: "n1", RunID: "run-2", SubmissionID: submissionID, ClientID: "client-1",
			NutrientRiskResult: domain.NutrientRiskResult{
				NutrientCode: "vit_d", NutrientName: "Vitamin D", RiskScorePct: 40, FinalWeightedScorePct: 40,
				SymptomScorePct: 100, RiskCategory: domain.RISK_MODERATE, ContributingFactors: []string{"Tamna koža"},
			},
			CreatedAt: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
		},
	}
}

func TestResultCache_Memory(t *testing.T) {
	ctx := context.Background()

	t.Run("Miss then hit", func(t *testing.T) {
		c, err := New(domain.CacheConfig{MemoryItems: 10, DefaultTTL: time.Minute}, testLogger())
		require.NoError(t, err)
		defer c.Close()

		_, ok := c.GetSectionScores(ctx, "sub-1")
		assert.False(t, ok)

		c.SetSectionScores(ctx, "sub-1", sectionRun("sub-1"))
		got, ok := c.GetSectionScores(ctx, "sub-1")
		require.True(t, ok)
		assert.Equal(t, sectionRun("sub-1"), got)

		stats := c.Stats()
		assert.Equal(t, int64(1), stats.MemoryHits)
		assert.Equal(t, int64(1), stats.MemoryMisses)
	})

	t.Run("Kinds do not collide", func(t *testing.T) {
		c, err := New(domain.CacheConfig{}, testLogger())
		require.NoError(t, err)

		c.SetSectionScores(ctx, "sub-1", sectionRun("sub-1"))
		_, ok := c.GetNutrientResults(ctx, "sub-1")
		assert.False(t, ok)

		c.SetNutrientResults(ctx, "sub-1", nutrientRun("sub-1"))
		got, ok := c.GetNutrientResults(ctx, "sub-1")
		require.True(t, ok)
		assert.Equal(t, "vit_d", got[0].NutrientCode)
	})

	t.Run("Entries expire", func(t *testing.T) {
		c, err := New(domain.CacheConfig{DefaultTTL: time.Minute}, testLogger())
		require.NoError(t, err)
		now := time.Now()
		c.now = func() time.Time { return now }

		c.SetSectionScores(ctx, "sub-1", sectionRun("sub-1"))
		now = now.Add(2 * time.Minute)
		_, ok := c.GetSectionScores(ctx, "sub-1")
		assert.False(t, ok)
	})

	t.Run("Least recently used entry is evicted", func(t *testing.T) {
		c, err := New(domain.CacheConfig{MemoryItems: 2}, testLogger())
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			id := fmt.Sprintf("sub-%d", i)
			c.SetSectionScores(ctx, id, sectionRun(id))
		}
		_, ok := c.GetSectionScores(ctx, "sub-0")
		assert.False(t, ok)
		_, ok = c.GetSectionScores(ctx, "sub-2")
		assert.True(t, ok)
	})

	t.Run("Invalid Redis URL", func(t *testing.T) {
		_, err := New(domain.CacheConfig{RedisURL: "://nope"}, testLogger())
		assert.Error(t, err)
	})
}

func TestResultCache_RedisUnavailable(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})

	writer, err := NewWithClient(client, domain.CacheConfig{}, testLogger())
	require.NoError(t, err)
	writer.SetSectionScores(ctx, "sub-1", sectionRun("sub-1"))

	// The memory tier stands in while Redis is down.
	_, ok := writer.GetSectionScores(ctx, "sub-1")
	assert.True(t, ok)
	assert.Equal(t, int64(1), writer.Stats().MemoryHits)

	reader, err := NewWithClient(client, domain.CacheConfig{}, testLogger())
	require.NoError(t, err)
	_, ok = reader.GetSectionScores(ctx, "sub-1")
	assert.False(t, ok)
	assert.Equal(t, int64(2), writer.Stats().ErrorCount)
	assert.Equal(t, int64(1), reader.Stats().ErrorCount)
}

func TestResultCache_Redis(t *testing.T) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	}()

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	config := domain.CacheConfig{RedisURL: "redis://" + endpoint, DefaultTTL: time.Minute}

	first, err := New(config, testLogger())
	require.NoError(t, err)
	defer first.Close()
	first.SetNutrientResults(ctx, "sub-1", nutrientRun("sub-1"))

	// A second process shares the Redis tier.
	second, err := New(config, testLogger())
	require.NoError(t, err)
	defer second.Close()

	got, ok := second.GetNutrientResults(ctx, "sub-1")
	require.True(t, ok)
	assert.Equal(t, nutrientRun("sub-1"), got)
	assert.Equal(t, int64(1), second.Stats().RedisHits)

	_, ok = second.GetSectionScores(ctx, "sub-1")
	assert.False(t, ok)
	assert.Equal(t, int64(1), second.Stats().RedisMisses)

	t.Run("Replicas see the newest run", func(t *testing.T) {
		older := sectionRun("sub-2")
		first.SetSectionScores(ctx, "sub-2", older)

		got, ok := second.GetSectionScores(ctx, "sub-2")
		require.True(t, ok)
		assert.Equal(t, "run-1", got[0].RunID)

		newer := sectionRun("sub-2")
		newer[0].RunID = "run-2"
		newer[0].CreatedAt = newer[0].CreatedAt.Add(time.Hour)
		first.SetSectionScores(ctx, "sub-2", newer)

		got, ok = second.GetSectionScores(ctx, "sub-2")
		require.True(t, ok)
		assert.Equal(t, "run-2", got[0].RunID)
		assert.Equal(t, int64(0), second.Stats().MemoryHits)
	})
}

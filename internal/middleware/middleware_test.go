package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coaching-health-scorer/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

// syncBuffer guards a buffer written by the logger's pipe goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSecurityHeaders(t *testing.T) {
	router := gin.New()
	router.Use(SecurityHeaders())
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"), "HSTS only in release mode")
}

func TestCorrelationID(t *testing.T) {
	router := gin.New()
	router.Use(CorrelationID())
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(CorrelationIDKey))
	})

	t.Run("Generated when absent", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

		id := w.Header().Get("X-Correlation-ID")
		assert.Len(t, id, 36)
		assert.Equal(t, id, w.Body.String())
	})

	t.Run("Propagated when present", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-Correlation-ID", "abc-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "abc-123", w.Header().Get("X-Correlation-ID"))
		assert.Equal(t, "abc-123", w.Body.String())
	})

	for name, header := range map[string]string{
		"Quote":     `abc"def`,
		"Spaces":    "abc def",
		"Newline":   "abc\ndef",
		"Too long":  strings.Repeat("a", 65),
		"Braces":    "{}",
		"Non-ASCII": "id-ž",
	} {
		t.Run("Replaced when malformed: "+name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			req.Header.Set("X-Correlation-ID", header)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			id := w.Header().Get("X-Correlation-ID")
			assert.NotEqual(t, header, id)
			_, err := uuid.Parse(id)
			assert.NoError(t, err)
		})
	}
}

func TestRequestTimeout(t *testing.T) {
	router := gin.New()
	router.Use(RequestTimeout(50 * time.Millisecond))
	router.GET("/slow", func(c *gin.Context) {
		deadline, ok := c.Request.Context().Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 50*time.Millisecond)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/slow", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuditLogger(t *testing.T) {
	out := &syncBuffer{}
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	router := gin.New()
	router.Use(CorrelationID(), AuditLogger(logger))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/api/v1/rules/naq", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rules/naq", nil)
	req.Header.Set("X-Correlation-ID", "audit-1")
	router.ServeHTTP(httptest.NewRecorder(), req)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("audit-1"))
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), "/api/v1/rules/naq")
	assert.NotContains(t, out.String(), "/health")
}

func TestAuditLogger_MalformedCorrelationID(t *testing.T) {
	out := &syncBuffer{}
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.JSONFormatter{})

	router := gin.New()
	router.Use(CorrelationID(), AuditLogger(logger))
	router.GET("/api/v1/rules/naq", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rules/naq", nil)
	req.Header.Set("X-Correlation-ID", `x","status":999,"y":"`)
	req.Header.Set("User-Agent", `agent "quoted"`)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var line struct {
		Msg string `json:"msg"`
	}
	assert.Eventually(t, func() bool { return out.String() != "" }, time.Second, 10*time.Millisecond)
	require.NoError(t, json.Unmarshal([]byte(out.String()), &line))

	var audit map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line.Msg), &audit), line.Msg)
	assert.Equal(t, w.Header().Get("X-Correlation-ID"), audit["correlation_id"])
	assert.Equal(t, float64(http.StatusOK), audit["status"])
	assert.Equal(t, `agent "quoted"`, audit["user_agent"])
}

func TestIPRateLimiter(t *testing.T) {
	t.Run("Burst then deny", func(t *testing.T) {
		rl := NewIPRateLimiter(1, 2, quietLogger())
		now := time.Now()
		rl.now = func() time.Time { return now }

		assert.True(t, rl.Allow("10.0.0.1"))
		assert.True(t, rl.Allow("10.0.0.1"))
		assert.False(t, rl.Allow("10.0.0.1"))
		assert.True(t, rl.Allow("10.0.0.2"), "limits are per IP")

		now = now.Add(time.Second)
		assert.True(t, rl.Allow("10.0.0.1"), "tokens refill over time")
	})

	t.Run("Cleanup removes idle visitors", func(t *testing.T) {
		rl := NewIPRateLimiter(1, 1, quietLogger())
		now := time.Now()
		rl.now = func() time.Time { return now }

		rl.Allow("10.0.0.1")
		now = now.Add(5 * time.Minute)
		rl.Allow("10.0.0.2")
		now = now.Add(6 * time.Minute)

		assert.Equal(t, 1, rl.Cleanup())
		assert.Len(t, rl.visitors, 1)
	})

	t.Run("Run stops", func(t *testing.T) {
		rl := NewIPRateLimiter(1, 1, quietLogger())
		stop := make(chan struct{})
		done := make(chan struct{})
		go func() {
			rl.Run(time.Millisecond, stop)
			close(done)
		}()
		close(stop)
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Run did not return after stop")
		}
	})

	t.Run("Middleware answers 429", func(t *testing.T) {
		rl := NewIPRateLimiter(0.001, 1, quietLogger())
		router := gin.New()
		router.Use(CorrelationID(), rl.Middleware())
		router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "1", w.Header().Get("Retry-After"))

		var body domain.APIError
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, domain.ErrCodeRateLimit, body.Code)
		assert.Equal(t, "rate limit exceeded", body.Message)
		assert.Equal(t, w.Header().Get("X-Correlation-ID"), body.RequestID)
	})
}

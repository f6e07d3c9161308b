package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/coaching-health-scorer/internal/domain"
	"github.com/coaching-health-scorer/internal/middleware"
)

// handleHealth reports store reachability and, when the store sits behind a breaker, its state.
func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   Version,
	}
	if state := s.service.StoreCircuitState(); state != "" {
		body["store_circuit"] = state
	}

	if err := s.service.Health(c.Request.Context()); err != nil {
		s.logger.WithError(err).Warn("Health check failed")
		body["status"] = "unhealthy"
		body["error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleScoreNAQ(c *gin.Context) {
	req, ok := s.bindScoreRequest(c)
	if !ok {
		return
	}

	run, result, err := s.service.ScoreNAQ(c.Request.Context(), req.SubmissionID)
	if err != nil {
		s.scoringFailed(c, "NAQ scoring failed", req.SubmissionID, err)
		return
	}

	c.JSON(http.StatusOK, domain.ScoreResponse{
		Success:      true,
		ResultsCount: run.ResultsCount,
		Message: fmt.Sprintf("Calculated %d NAQ section scores (overall burden %.2f, %d primary concerns)",
			run.ResultsCount, result.OverallBurden, len(result.PrimaryConcerns)),
		RunID: run.RunID,
	})
}

func (s *Server) handleScoreMicronutrients(c *gin.Context) {
	req, ok := s.bindScoreRequest(c)
	if !ok {
		return
	}

	run, result, err := s.service.ScoreMicronutrients(c.Request.Context(), req.SubmissionID)
	if err != nil {
		s.scoringFailed(c, "Micronutrient scoring failed", req.SubmissionID, err)
		return
	}

	message := fmt.Sprintf("Calculated %d micronutrient risk scores", run.ResultsCount)
	if len(result.Failures) > 0 {
		message = fmt.Sprintf("%s, %d nutrients failed", message, len(result.Failures))
	}

	c.JSON(http.StatusOK, domain.ScoreResponse{
		Success:      true,
		ResultsCount: run.ResultsCount,
		Message:      message,
		RunID:        run.RunID,
	})
}

func (s *Server) handleLatestNAQ(c *gin.Context) {
	id := c.Param("id")
	records, err := s.service.LatestNAQ(c.Request.Context(), id)
	if err != nil {
		s.lookupFailed(c, id, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"submission_id": id,
		"run_id":        records[0].RunID,
		"results":       records,
	})
}

func (s *Server) handleLatestMicronutrients(c *gin.Context) {
	id := c.Param("id")
	records, err := s.service.LatestMicronutrients(c.Request.Context(), id)
	if err != nil {
		s.lookupFailed(c, id, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"submission_id": id,
		"run_id":        records[0].RunID,
		"results":       records,
	})
}

func (s *Server) handleNAQRules(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.Rules().NAQ)
}

func (s *Server) handleMicronutrientRules(c *gin.Context) {
	c.JSON(http.StatusOK, s.service.Rules().Micronutrient)
}

func (s *Server) bindScoreRequest(c *gin.Context) (*domain.ScoreRequest, bool) {
	var req domain.ScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, domain.NewAPIError(
			domain.ErrCodeInvalidInput, "submission_id is required", err.Error(), requestID(c),
		))
		return nil, false
	}
	return &req, true
}

// scoringFailed renders every scoring failure as 500; the code field tells the causes apart.
func (s *Server) scoringFailed(c *gin.Context, message, submissionID string, err error) {
	code := domain.ErrorCode(err)
	s.logger.WithFields(logrus.Fields{
		"submission_id":  submissionID,
		"code":           code,
		"correlation_id": requestID(c),
	}).WithError(err).Error(message)

	c.JSON(http.StatusInternalServerError, domain.NewAPIError(code, message, err.Error(), requestID(c)))
}

func (s *Server) lookupFailed(c *gin.Context, submissionID string, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, domain.NewAPIError(
			domain.ErrCodeNotFound, "no results for submission", submissionID, requestID(c),
		))
		return
	}

	s.logger.WithFields(logrus.Fields{
		"submission_id":  submissionID,
		"correlation_id": requestID(c),
	}).WithError(err).Error("Result lookup failed")
	c.JSON(http.StatusInternalServerError, domain.NewAPIError(
		domain.ErrorCode(err), "result lookup failed", err.Error(), requestID(c),
	))
}

func requestID(c *gin.Context) string {
	return c.GetString(middleware.CorrelationIDKey)
}

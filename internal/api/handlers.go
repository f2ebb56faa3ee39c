package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/glefebvre/streamhub/internal/models"
	"github.com/glefebvre/streamhub/internal/scheduler"
)

func (s *Server) healthCheck(c *gin.Context) {
	if err := s.health.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

func (s *Server) listJobs(c *gin.Context) {
	histories, err := s.history.GetAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "history unavailable",
			Message: err.Error(),
		})
		return
	}

	byName := make(map[string]models.JobHistory, len(histories))
	for _, h := range histories {
		byName[h.JobName] = h
	}

	jobs := make([]JobResponse, 0, len(s.runner.JobNames()))
	for _, name := range s.runner.JobNames() {
		h := byName[name]
		h.JobName = name
		jobs = append(jobs, s.jobView(h))
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs": jobs,
	})
}

func (s *Server) getJob(c *gin.Context) {
	name := c.Param("name")
	if !s.runner.Known(name) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "unknown job",
			Message: name,
		})
		return
	}

	h, err := s.history.Get(c.Request.Context(), name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "history unavailable",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, s.jobView(*h))
}

func (s *Server) runJob(c *gin.Context) {
	name := c.Param("name")

	runID, err := s.runner.Trigger(name)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, TriggerResponse{
			Job:   name,
			RunID: runID,
		})
	case errors.Is(err, scheduler.ErrUnknownJob):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "unknown job",
			Message: name,
		})
	case errors.Is(err, scheduler.ErrAlreadyRunning):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "already-running",
			Message: name + " has a run in flight",
		})
	case errors.Is(err, scheduler.ErrBlockedByPeer):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "blocked-by-peer",
			Message: err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "trigger failed",
			Message: err.Error(),
		})
	}
}

// jobView overlays the live running state on the persisted history row. The
// in-memory running map is the admission source of truth, so a run that has
// not yet flushed its history row still reports as running.
func (s *Server) jobView(h models.JobHistory) JobResponse {
	status := string(h.Status)
	if status == "" {
		status = string(models.JobStatusIdle)
	}
	if s.runner.IsRunning(h.JobName) {
		status = string(models.JobStatusRunning)
	} else if h.Status == models.JobStatusRunning {
		// Stale row from an interrupted process.
		status = string(models.JobStatusIdle)
	}

	return JobResponse{
		Name:           h.JobName,
		Status:         status,
		LastExecution:  h.LastExecution,
		ExecutionCount: h.ExecutionCount,
		LastRunID:      h.LastRunID,
		LastResult:     h.LastResult,
		LastError:      h.LastError,
	}
}

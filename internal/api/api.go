package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/glefebvre/streamhub/internal/models"
)

// HealthChecker reports whether the backing document store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HistorySource reads job run history. Satisfied by the JobHistory repository.
type HistorySource interface {
	Get(ctx context.Context, jobName string) (*models.JobHistory, error)
	GetAll(ctx context.Context) ([]models.JobHistory, error)
}

// JobRunner triggers and inspects scheduled jobs. Satisfied by the scheduler.
type JobRunner interface {
	Trigger(name string) (string, error)
	IsRunning(name string) bool
	Known(name string) bool
	JobNames() []string
}

// Server represents the API server
type Server struct {
	router  *gin.Engine
	srv     *http.Server
	health  HealthChecker
	history HistorySource
	runner  JobRunner
}

// NewServer creates a new API server instance
func NewServer(health HealthChecker, history HistorySource, runner JobRunner) *Server {
	router := gin.Default()
	router.Use(requestIDMiddleware())
	router.Use(errorHandlerMiddleware())
	router.Use(cors.Default())

	s := &Server{
		router:  router,
		health:  health,
		history: history,
		runner:  runner,
	}

	s.setupRoutes()

	return s
}

// Run starts the API server on the specified port
func (s *Server) Run(port int) error {
	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting new connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.GET("/health", s.healthCheck)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/jobs", s.listJobs)
		v1.GET("/jobs/:name", s.getJob)
		v1.POST("/jobs/:name/run", s.runJob)
	}
}

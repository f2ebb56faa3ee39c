package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glefebvre/streamhub/internal/models"
	"github.com/glefebvre/streamhub/internal/scheduler"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeHealth struct {
	err error
}

func (f *fakeHealth) HealthCheck(context.Context) error { return f.err }

type fakeHistory struct {
	rows map[string]models.JobHistory
	err  error
}

func (f *fakeHistory) Get(_ context.Context, jobName string) (*models.JobHistory, error) {
	if f.err != nil {
		return nil, f.err
	}
	h, ok := f.rows[jobName]
	if !ok {
		h = models.JobHistory{JobName: jobName, Status: models.JobStatusIdle}
	}
	return &h, nil
}

func (f *fakeHistory) GetAll(context.Context) ([]models.JobHistory, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.JobHistory, 0, len(f.rows))
	for _, h := range f.rows {
		out = append(out, h)
	}
	return out, nil
}

type fakeRunner struct {
	jobs       []string
	running    map[string]bool
	triggerErr error
	triggered  []string
}

func (f *fakeRunner) Trigger(name string) (string, error) {
	found := false
	for _, j := range f.jobs {
		if j == name {
			found = true
			break
		}
	}
	if !found {
		return "", fmt.Errorf("%w: %s", scheduler.ErrUnknownJob, name)
	}
	if f.triggerErr != nil {
		return "", f.triggerErr
	}
	f.triggered = append(f.triggered, name)
	return "run-123", nil
}

func (f *fakeRunner) IsRunning(name string) bool { return f.running[name] }

func (f *fakeRunner) Known(name string) bool {
	for _, j := range f.jobs {
		if j == name {
			return true
		}
	}
	return false
}

func (f *fakeRunner) JobNames() []string { return f.jobs }

func doRequest(s *Server, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	runner := &fakeRunner{}
	s := NewServer(&fakeHealth{}, &fakeHistory{}, runner)

	w := doRequest(s, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")

	s = NewServer(&fakeHealth{err: fmt.Errorf("no reachable servers")}, &fakeHistory{}, runner)
	w = doRequest(s, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "unhealthy")
}

func TestListJobs(t *testing.T) {
	last := time.Date(2026, 8, 20, 6, 0, 0, 0, time.UTC)
	history := &fakeHistory{rows: map[string]models.JobHistory{
		"sync": {
			JobName:        "sync",
			Status:         models.JobStatusCompleted,
			LastExecution:  &last,
			ExecutionCount: 4,
		},
	}}
	runner := &fakeRunner{
		jobs:    []string{"sync", "merge"},
		running: map[string]bool{"merge": true},
	}
	s := NewServer(&fakeHealth{}, history, runner)

	w := doRequest(s, http.MethodGet, "/api/v1/jobs")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Jobs []JobResponse `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Jobs, 2)

	assert.Equal(t, "sync", body.Jobs[0].Name)
	assert.Equal(t, "completed", body.Jobs[0].Status)
	assert.Equal(t, 4, body.Jobs[0].ExecutionCount)
	require.NotNil(t, body.Jobs[0].LastExecution)
	assert.Equal(t, last, body.Jobs[0].LastExecution.UTC())

	// Live state wins over the missing history row.
	assert.Equal(t, "merge", body.Jobs[1].Name)
	assert.Equal(t, "running", body.Jobs[1].Status)
}

func TestGetJob(t *testing.T) {
	history := &fakeHistory{rows: map[string]models.JobHistory{
		"sync": {JobName: "sync", Status: models.JobStatusFailed},
	}}
	runner := &fakeRunner{jobs: []string{"sync"}}
	s := NewServer(&fakeHealth{}, history, runner)

	w := doRequest(s, http.MethodGet, "/api/v1/jobs/sync")
	require.Equal(t, http.StatusOK, w.Code)
	var job JobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, "failed", job.Status)

	w = doRequest(s, http.MethodGet, "/api/v1/jobs/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetJob_StaleRunningRowReportsIdle(t *testing.T) {
	history := &fakeHistory{rows: map[string]models.JobHistory{
		"sync": {JobName: "sync", Status: models.JobStatusRunning},
	}}
	runner := &fakeRunner{jobs: []string{"sync"}}
	s := NewServer(&fakeHealth{}, history, runner)

	w := doRequest(s, http.MethodGet, "/api/v1/jobs/sync")
	require.Equal(t, http.StatusOK, w.Code)
	var job JobResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, "idle", job.Status)
}

func TestRunJob(t *testing.T) {
	runner := &fakeRunner{jobs: []string{"sync", "merge"}}
	s := NewServer(&fakeHealth{}, &fakeHistory{}, runner)

	w := doRequest(s, http.MethodPost, "/api/v1/jobs/sync/run")
	require.Equal(t, http.StatusAccepted, w.Code)
	var resp TriggerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "sync", resp.Job)
	assert.Equal(t, "run-123", resp.RunID)
	assert.Equal(t, []string{"sync"}, runner.triggered)
}

func TestRunJob_Refusals(t *testing.T) {
	tests := []struct {
		name       string
		triggerErr error
		wantStatus int
		wantError  string
	}{
		{"already running", scheduler.ErrAlreadyRunning, http.StatusConflict, "already-running"},
		{"blocked by peer", fmt.Errorf("%w: sync", scheduler.ErrBlockedByPeer), http.StatusConflict, "blocked-by-peer"},
		{"internal", fmt.Errorf("history write failed"), http.StatusInternalServerError, "trigger failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{jobs: []string{"merge"}, triggerErr: tt.triggerErr}
			s := NewServer(&fakeHealth{}, &fakeHistory{}, runner)

			w := doRequest(s, http.MethodPost, "/api/v1/jobs/merge/run")
			assert.Equal(t, tt.wantStatus, w.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantError, resp.Error)
		})
	}
}

func TestRunJob_Unknown(t *testing.T) {
	runner := &fakeRunner{jobs: []string{"sync"}}
	s := NewServer(&fakeHealth{}, &fakeHistory{}, runner)

	w := doRequest(s, http.MethodPost, "/api/v1/jobs/nope/run")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

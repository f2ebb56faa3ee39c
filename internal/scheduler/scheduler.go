// Package scheduler drives the background jobs on fixed intervals and
// exposes manual triggering with the same admission rules: one run per
// job at a time, and a job may name peer jobs whose running state blocks
// it. Job lifecycle and
// watermarks are recorded in job history; the watermark is read before a
// run flips to running and only advances when the run completes.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	apperrors "github.com/glefebvre/streamhub/internal/errors"
	"github.com/glefebvre/streamhub/internal/jobs"
	"github.com/glefebvre/streamhub/internal/logger"
	"github.com/glefebvre/streamhub/internal/models"
)

var (
	// ErrAlreadyRunning is returned when the job has a run in flight.
	ErrAlreadyRunning = errors.New("job already running")
	// ErrBlockedByPeer is returned when a peer in the job's exclusion
	// set is running.
	ErrBlockedByPeer = errors.New("job blocked by running peer")
	// ErrUnknownJob is returned for names no spec was registered under.
	ErrUnknownJob = errors.New("unknown job")
)

// HistoryStore is the slice of the job history repository the scheduler
// drives lifecycle transitions through.
type HistoryStore interface {
	Get(ctx context.Context, jobName string) (*models.JobHistory, error)
	GetAll(ctx context.Context) ([]models.JobHistory, error)
	MarkRunning(ctx context.Context, jobName, runID string) error
	MarkCompleted(ctx context.Context, jobName string, startedAt time.Time, result interface{}) error
	MarkFailed(ctx context.Context, jobName, errMsg string) error
	MarkCancelled(ctx context.Context, jobName string) error
}

// JobSpec configures one scheduled job.
type JobSpec struct {
	Job      jobs.Job
	Interval time.Duration
	// FirstDelay postpones the initial fire after Start. Zero fires
	// immediately.
	FirstDelay time.Duration
	// Blockers lists peer job names whose running state refuses this
	// job. The relation is one-directional.
	Blockers []string
}

type Scheduler struct {
	history HistoryStore
	grace   time.Duration
	log     *logger.Logger

	mu      sync.Mutex
	specs   map[string]JobSpec
	order   []string
	running map[string]context.CancelFunc
	timers  []*time.Timer
	started bool

	cron      *cron.Cron
	baseCtx   context.Context
	cancelAll context.CancelFunc
	wg        sync.WaitGroup
}

func New(history HistoryStore, grace time.Duration) *Scheduler {
	if grace <= 0 {
		grace = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		history:   history,
		grace:     grace,
		log:       logger.AppLogger(),
		specs:     make(map[string]JobSpec),
		running:   make(map[string]context.CancelFunc),
		cron:      cron.New(),
		baseCtx:   ctx,
		cancelAll: cancel,
	}
}

// Register adds a job spec. Must be called before Start.
func (s *Scheduler) Register(spec JobSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := spec.Job.Name()
	if _, dup := s.specs[name]; !dup {
		s.order = append(s.order, name)
	}
	s.specs[name] = spec
}

// Start wires the interval entries and arms the first fires.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("scheduler already started")
	}
	s.started = true

	for _, name := range s.order {
		spec := s.specs[name]
		name := name
		_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", spec.Interval), func() {
			s.fire(name)
		})
		if err != nil {
			return fmt.Errorf("failed to schedule job %s: %w", name, err)
		}

		if spec.FirstDelay <= 0 {
			go s.fire(name)
			continue
		}
		s.timers = append(s.timers, time.AfterFunc(spec.FirstDelay, func() {
			s.fire(name)
		}))
	}

	s.cron.Start()
	s.log.Info(fmt.Sprintf("Scheduler started with %d jobs", len(s.order)))
	return nil
}

// fire is the interval path: refusals are logged, never fatal.
func (s *Scheduler) fire(name string) {
	if _, err := s.Trigger(name); err != nil {
		if errors.Is(err, ErrAlreadyRunning) || errors.Is(err, ErrBlockedByPeer) {
			s.log.WithFields(map[string]interface{}{
				"job_name": name,
				"reason":   err.Error(),
			}).Debug("Skipping scheduled fire")
			return
		}
		s.log.Error(fmt.Sprintf("Failed to start job %s", name), err)
	}
}

// Trigger starts a run of the named job, enforcing the admission rules.
// It returns the run id of the started run.
func (s *Scheduler) Trigger(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	spec, ok := s.specs[name]
	if !ok {
		return "", ErrUnknownJob
	}
	if s.baseCtx.Err() != nil {
		return "", fmt.Errorf("scheduler is shutting down")
	}
	if _, inFlight := s.running[name]; inFlight {
		return "", ErrAlreadyRunning
	}
	for _, peer := range spec.Blockers {
		if _, inFlight := s.running[peer]; inFlight {
			return "", fmt.Errorf("%w: %s", ErrBlockedByPeer, peer)
		}
	}

	runID := uuid.NewString()
	ctx := logger.ContextWithJob(s.baseCtx, name, runID)

	// The watermark is read before the status flips to running.
	var watermark *time.Time
	if h, err := s.history.Get(ctx, name); err == nil {
		watermark = h.LastExecution
	} else {
		s.log.ErrorContext(ctx, "Failed to read job history, running without watermark", err)
	}

	startedAt := time.Now().UTC()
	if err := s.history.MarkRunning(ctx, name, runID); err != nil {
		return "", err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.running[name] = cancel
	s.wg.Add(1)
	go s.execute(runCtx, spec.Job, name, startedAt, watermark)

	return runID, nil
}

func (s *Scheduler) execute(ctx context.Context, job jobs.Job, name string, startedAt time.Time, watermark *time.Time) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		if cancel, ok := s.running[name]; ok {
			cancel()
			delete(s.running, name)
		}
		s.mu.Unlock()
	}()

	s.log.InfoContext(ctx, fmt.Sprintf("Job %s started", name))
	result, err := job.Run(ctx, watermark)

	// Terminal transitions must land even when the run context is gone.
	markCtx, cancelMark := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelMark()

	switch {
	case err != nil && apperrors.IsCancelled(err):
		s.log.InfoContext(ctx, fmt.Sprintf("Job %s cancelled", name))
		if markErr := s.history.MarkCancelled(markCtx, name); markErr != nil {
			s.log.Error("Failed to record job cancellation", markErr)
		}
	case err != nil:
		s.log.ErrorContext(ctx, fmt.Sprintf("Job %s failed", name), err)
		if markErr := s.history.MarkFailed(markCtx, name, err.Error()); markErr != nil {
			s.log.Error("Failed to record job failure", markErr)
		}
	default:
		s.log.InfoContext(ctx, fmt.Sprintf("Job %s completed", name))
		if markErr := s.history.MarkCompleted(markCtx, name, startedAt, result); markErr != nil {
			s.log.Error("Failed to record job completion", markErr)
		}
	}
}

// IsRunning reports whether the named job has a run in flight.
func (s *Scheduler) IsRunning(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[name]
	return ok
}

// JobNames lists the registered jobs in registration order.
func (s *Scheduler) JobNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.order))
	copy(names, s.order)
	return names
}

// Known reports whether a job name is registered.
func (s *Scheduler) Known(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.specs[name]
	return ok
}

// Stop cancels in-flight runs and waits for them up to the grace window.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
	cronCtx := s.cron.Stop()
	s.cancelAll()
	s.mu.Unlock()

	<-cronCtx.Done()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	grace := s.grace
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < grace {
			grace = until
		}
	}

	select {
	case <-done:
		s.log.Info("Scheduler stopped cleanly")
		return nil
	case <-time.After(grace):
		return fmt.Errorf("scheduler stop timed out after %s with jobs still running", s.grace)
	case <-ctx.Done():
		return ctx.Err()
	}
}

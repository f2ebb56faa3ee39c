package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/glefebvre/streamhub/internal/config"
	"github.com/glefebvre/streamhub/internal/docstore"
	"github.com/glefebvre/streamhub/internal/fetcher"
	"github.com/glefebvre/streamhub/internal/jobs"
	"github.com/glefebvre/streamhub/internal/logger"
	"github.com/glefebvre/streamhub/internal/models"
	"github.com/glefebvre/streamhub/internal/provider"
	"github.com/glefebvre/streamhub/internal/provider/agtv"
	"github.com/glefebvre/streamhub/internal/provider/xtream"
	"github.com/glefebvre/streamhub/internal/ratelimit"
	"github.com/glefebvre/streamhub/internal/repository"
	"github.com/glefebvre/streamhub/internal/scheduler"
	"github.com/glefebvre/streamhub/internal/tmdb"
)

// app wires the pipeline together: repositories over one document store
// connection, a shared fetcher and limiter, and the scheduler owning the
// three jobs.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	store   *docstore.Store
	history *repository.JobHistoryRepository
	fetch   *fetcher.Fetcher
	sched   *scheduler.Scheduler
}

func buildApp(ctx context.Context) (*app, error) {
	cfg := config.Get()
	logger.Initialize(cfg.Logging.Level)
	log := logger.AppLogger()

	store, err := docstore.Connect(ctx, cfg.DocStore.URI, cfg.DocStore.Database)
	if err != nil {
		return nil, fmt.Errorf("connecting document store: %w", err)
	}

	providerRepo := repository.NewProviderRepository(store)
	providerTitleRepo := repository.NewProviderTitleRepository(store)
	titleRepo := repository.NewTitleRepository(store)
	streamRepo := repository.NewTitleStreamRepository(store)
	historyRepo := repository.NewJobHistoryRepository(store)

	for _, idx := range []interface {
		EnsureIndexes(ctx context.Context) error
	}{providerRepo, providerTitleRepo, titleRepo, streamRepo, historyRepo} {
		if err := idx.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("ensuring indexes: %w", err)
		}
	}

	limiter := ratelimit.New()
	limiter.Register(ratelimit.TMDBKey, cfg.TMDB.RateConcurrent, cfg.TMDB.RateDuration)

	fetch := fetcher.New(fetcher.Config{
		CacheDir:   cfg.Cache.Dir,
		Client:     &http.Client{Timeout: cfg.HTTP.Timeout()},
		Limiter:    limiter,
		Retries:    cfg.HTTP.Retries,
		MaxUsedPct: int(cfg.Cache.MaxUsedPct),
	})

	registry := provider.NewRegistry()
	registry.Register(models.ProviderTypeAGTV, agtv.New)
	registry.Register(models.ProviderTypeXtream, xtream.New)

	deps := provider.Deps{
		Fetcher: fetch,
		Titles:  providerTitleRepo,
	}

	// Providers can appear between restarts; their bucket is registered
	// on first use instead of once at startup.
	handlerFor := func(p *models.Provider) (provider.Handler, error) {
		if !limiter.Registered(p.ID) {
			limiter.Register(p.ID, p.APIRate.Concurrent,
				time.Duration(p.APIRate.DurationSeconds)*time.Second)
		}
		return registry.Handler(p, deps)
	}

	tmdbClient := tmdb.NewClient(tmdb.Config{
		Token:    cfg.TMDB.Token,
		Language: cfg.TMDB.Language,
		Fetcher:  fetch,
	})

	syncJob := jobs.NewSyncJob(providerRepo, providerTitleRepo, tmdbClient, handlerFor, cfg.Jobs.SyncConcurrency)
	mergeJob := jobs.NewMergeJob(providerRepo, providerTitleRepo, titleRepo, streamRepo, tmdbClient, handlerFor)
	purgeJob := jobs.NewCachePurgeJob(providerRepo, streamRepo, fetch)

	sched := scheduler.New(historyRepo, cfg.Jobs.ShutdownGrace)
	sched.Register(scheduler.JobSpec{
		Job:      syncJob,
		Interval: cfg.Jobs.SyncInterval,
	})
	sched.Register(scheduler.JobSpec{
		Job:        mergeJob,
		Interval:   cfg.Jobs.MergeInterval,
		FirstDelay: cfg.Jobs.MergeFirstDelay,
		Blockers:   []string{jobs.JobNameSync},
	})
	sched.Register(scheduler.JobSpec{
		Job:      purgeJob,
		Interval: cfg.Jobs.CachePurgeInterval,
	})

	return &app{
		cfg:     cfg,
		log:     log,
		store:   store,
		history: historyRepo,
		fetch:   fetch,
		sched:   sched,
	}, nil
}

// runJobOnce triggers one job through the scheduler and waits for its
// terminal history transition, so one-shot commands share the watermark
// and lifecycle bookkeeping of scheduled runs.
func runJobOnce(ctx context.Context, a *app, name string) error {
	runID, err := a.sched.Trigger(name)
	if err != nil {
		return err
	}
	a.log.WithFields(map[string]interface{}{
		"job":    name,
		"run_id": runID,
	}).Info("Job triggered")

	for a.sched.IsRunning(name) {
		select {
		case <-ctx.Done():
			return a.sched.Stop(context.Background())
		case <-time.After(200 * time.Millisecond):
		}
	}

	h, err := a.history.Get(context.Background(), name)
	if err != nil {
		return fmt.Errorf("reading job history: %w", err)
	}
	switch h.Status {
	case models.JobStatusCompleted:
		fmt.Printf("%s completed: %v\n", name, h.LastResult)
		return nil
	case models.JobStatusCancelled:
		return fmt.Errorf("%s was cancelled", name)
	default:
		if h.LastError != nil {
			return fmt.Errorf("%s failed: %s", name, *h.LastError)
		}
		return fmt.Errorf("%s failed", name)
	}
}

package jobs

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	apperrors "github.com/glefebvre/streamhub/internal/errors"
	"github.com/glefebvre/streamhub/internal/logger"
	"github.com/glefebvre/streamhub/internal/models"
)

// SyncResult summarizes one sync run.
type SyncResult struct {
	ProvidersProcessed int                  `json:"providers_processed" bson:"providers_processed"`
	Results            []ProviderSyncResult `json:"results" bson:"results"`
}

// ProviderSyncResult is the per-provider outcome.
type ProviderSyncResult struct {
	ProviderID string  `json:"provider_id" bson:"provider_id"`
	Movies     int     `json:"movies" bson:"movies"`
	TVShows    int     `json:"tvshows" bson:"tvshows"`
	Matched    int     `json:"matched" bson:"matched"`
	Ignored    int     `json:"ignored" bson:"ignored"`
	Error      *string `json:"error,omitempty" bson:"error,omitempty"`
}

// SyncJob scans every active provider's catalog, persists the entries and
// resolves new or changed ones against TMDB.
type SyncJob struct {
	providers   ProviderSource
	titles      ProviderTitleStore
	resolver    Resolver
	handlerFor  HandlerFactory
	concurrency int
	log         *logger.Logger
}

func NewSyncJob(providers ProviderSource, titles ProviderTitleStore, resolver Resolver, handlerFor HandlerFactory, concurrency int) *SyncJob {
	return &SyncJob{
		providers:   providers,
		titles:      titles,
		resolver:    resolver,
		handlerFor:  handlerFor,
		concurrency: concurrency,
		log:         logger.AppLogger(),
	}
}

func (j *SyncJob) Name() string {
	return JobNameSync
}

func (j *SyncJob) Run(ctx context.Context, watermark *time.Time) (interface{}, error) {
	providers, err := j.providers.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	if len(providers) == 0 {
		return &SyncResult{Results: []ProviderSyncResult{}}, nil
	}

	concurrency := j.concurrency
	if concurrency <= 0 || concurrency > len(providers) {
		concurrency = len(providers)
	}
	sem := make(chan struct{}, concurrency)

	results := make([]ProviderSyncResult, len(providers))
	succeeded := make([]bool, len(providers))
	var wg sync.WaitGroup
	for i := range providers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i], succeeded[i] = j.syncProvider(ctx, &providers[i], watermark)
		}(i)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return nil, apperrors.Cancelled("sync run cancelled")
	}

	anySucceeded := false
	for _, ok := range succeeded {
		anySucceeded = anySucceeded || ok
	}
	result := &SyncResult{ProvidersProcessed: len(providers), Results: results}
	if !anySucceeded {
		return nil, apperrors.Internal("sync failed for every provider", nil)
	}
	return result, nil
}

// syncProvider scans both content types in parallel, then resolves the
// provider's unmatched entries. The second return value reports whether
// at least one content type scan succeeded.
func (j *SyncJob) syncProvider(ctx context.Context, p *models.Provider, watermark *time.Time) (ProviderSyncResult, bool) {
	result := ProviderSyncResult{ProviderID: p.ID}

	handler, err := j.handlerFor(p)
	if err != nil {
		msg := err.Error()
		result.Error = &msg
		return result, false
	}

	type scanOutcome struct {
		ct    models.ContentType
		count int
		err   error
	}
	outcomes := make(chan scanOutcome, 2)
	for _, ct := range []models.ContentType{models.ContentTypeMovies, models.ContentTypeTVShows} {
		go func(ct models.ContentType) {
			count, err := handler.FetchMetadata(ctx, ct)
			outcomes <- scanOutcome{ct: ct, count: count, err: err}
		}(ct)
	}

	var scanErrs []string
	for i := 0; i < 2; i++ {
		out := <-outcomes
		if out.err != nil {
			scanErrs = append(scanErrs, fmt.Sprintf("%s: %s", out.ct, out.err.Error()))
			continue
		}
		if out.ct == models.ContentTypeMovies {
			result.Movies = out.count
		} else {
			result.TVShows = out.count
		}
	}
	if len(scanErrs) == 2 {
		msg := strings.Join(scanErrs, "; ")
		result.Error = &msg
		return result, false
	}

	matched, ignored, matchErr := j.matchProvider(ctx, p.ID, watermark)
	result.Matched = matched
	result.Ignored = ignored
	if matchErr != nil {
		scanErrs = append(scanErrs, matchErr.Error())
	}
	if len(scanErrs) > 0 {
		msg := strings.Join(scanErrs, "; ")
		result.Error = &msg
	}
	return result, true
}

// matchProvider resolves entries created or changed since the watermark
// that have no TMDB id yet. Entry-level failures are counted, never fatal.
func (j *SyncJob) matchProvider(ctx context.Context, providerID string, watermark *time.Time) (matched, ignored int, err error) {
	unmatched, err := j.titles.GetUnmatched(ctx, providerID, watermark)
	if err != nil {
		return 0, 0, err
	}

	failures := 0
	for i := range unmatched {
		if ctx.Err() != nil {
			return matched, ignored, apperrors.Cancelled("matching cancelled")
		}
		pt := &unmatched[i]

		id, err := j.resolver.Resolve(ctx, pt)
		if err != nil {
			if apperrors.IsCancelled(err) {
				return matched, ignored, err
			}
			failures++
			continue
		}

		now := time.Now().UTC()
		if id != nil {
			pt.TMDBID = id
			pt.Ignored = false
			pt.IgnoredReason = nil
			matched++
		} else {
			pt.MarkIgnored(models.IgnoredReasonNoMatch)
			ignored++
		}
		pt.LastUpdated = now

		if err := j.titles.Update(ctx, pt); err != nil {
			failures++
		}
	}

	if failures > 0 {
		return matched, ignored, fmt.Errorf("%d entries failed to resolve", failures)
	}
	return matched, ignored, nil
}

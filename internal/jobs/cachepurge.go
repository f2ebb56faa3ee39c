package jobs

import (
	"context"
	"time"

	apperrors "github.com/glefebvre/streamhub/internal/errors"
	"github.com/glefebvre/streamhub/internal/logger"
)

// CachePurgeResult summarizes one cache purge run.
type CachePurgeResult struct {
	ProvidersPurged int   `json:"providers_purged" bson:"providers_purged"`
	StreamsRemoved  int64 `json:"streams_removed" bson:"streams_removed"`
	Errors          int   `json:"errors" bson:"errors"`
}

// CachePurgeJob removes the cache trees of deleted providers and drops
// their remaining stream rows, keeping the catalog free of routes through
// providers that no longer exist.
type CachePurgeJob struct {
	providers ProviderSource
	streams   StreamStore
	purger    CachePurger
	log       *logger.Logger
}

func NewCachePurgeJob(providers ProviderSource, streams StreamStore, purger CachePurger) *CachePurgeJob {
	return &CachePurgeJob{
		providers: providers,
		streams:   streams,
		purger:    purger,
		log:       logger.AppLogger(),
	}
}

func (j *CachePurgeJob) Name() string {
	return JobNameCachePurge
}

func (j *CachePurgeJob) Run(ctx context.Context, _ *time.Time) (interface{}, error) {
	deleted, err := j.providers.GetDeleted(ctx)
	if err != nil {
		return nil, err
	}

	result := &CachePurgeResult{}
	for i := range deleted {
		if ctx.Err() != nil {
			return nil, apperrors.Cancelled("cache purge cancelled")
		}
		p := &deleted[i]

		if err := j.purger.PurgeProvider(p.ID); err != nil {
			result.Errors++
			j.log.WithFields(map[string]interface{}{
				"provider_id": p.ID,
				"error":       err.Error(),
			}).WarnContext(ctx, "Cache purge failed for provider")
			continue
		}

		removed, err := j.streams.DeleteByProvider(ctx, p.ID)
		if err != nil {
			result.Errors++
			continue
		}
		result.StreamsRemoved += removed
		result.ProvidersPurged++
	}
	return result, nil
}

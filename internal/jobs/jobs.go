// Package jobs implements the scheduled work of the catalog: syncing
// provider catalogs and matching them against TMDB, merging matched
// entries into canonical titles, and purging cache trees of deleted
// providers. Jobs receive their watermark from the scheduler and report a
// result summary; lifecycle bookkeeping lives in the scheduler.
package jobs

import (
	"context"
	"time"

	"github.com/glefebvre/streamhub/internal/docstore"
	"github.com/glefebvre/streamhub/internal/models"
	"github.com/glefebvre/streamhub/internal/provider"
	"github.com/glefebvre/streamhub/internal/tmdb"
)

// Job names as persisted in job history.
const (
	JobNameSync       = "sync"
	JobNameMerge      = "merge"
	JobNameCachePurge = "cache_purge"
)

// Job is one schedulable unit of work. The watermark is the previous
// successful run's start time, nil on the first run ever.
type Job interface {
	Name() string
	Run(ctx context.Context, watermark *time.Time) (interface{}, error)
}

// HandlerFactory builds a protocol handler for one provider.
type HandlerFactory func(p *models.Provider) (provider.Handler, error)

// ProviderSource is the slice of the provider repository jobs read.
type ProviderSource interface {
	GetActive(ctx context.Context) ([]models.Provider, error)
	GetDeleted(ctx context.Context) ([]models.Provider, error)
	GetChangedSince(ctx context.Context, since *time.Time) ([]models.Provider, error)
}

// ProviderTitleStore is the slice of the provider title repository jobs use.
type ProviderTitleStore interface {
	GetUnmatched(ctx context.Context, providerID string, since *time.Time) ([]models.ProviderTitle, error)
	GetMatchedChangedSince(ctx context.Context, providerIDs []string, since *time.Time) ([]models.ProviderTitle, error)
	GetContributors(ctx context.Context, ct models.ContentType, tmdbID int, providerIDs []string) ([]models.ProviderTitle, error)
	Update(ctx context.Context, pt *models.ProviderTitle) error
}

// TitleStore is the slice of the title repository the merge job uses.
type TitleStore interface {
	GetByKey(ctx context.Context, key string) (*models.Title, error)
	ExistingKeys(ctx context.Context, keys []string) ([]string, error)
	Upsert(ctx context.Context, t *models.Title) error
	Delete(ctx context.Context, key string) error
}

// StreamStore is the slice of the title stream repository jobs use.
type StreamStore interface {
	BulkUpsert(ctx context.Context, streams []models.TitleStream) (*docstore.BulkResult, error)
	DeleteStale(ctx context.Context, titleKey string, keptKeys []string) (int64, error)
	DeleteByProvider(ctx context.Context, providerID string) (int64, error)
}

// Resolver matches provider entries to TMDB ids.
type Resolver interface {
	Resolve(ctx context.Context, pt *models.ProviderTitle) (*int, error)
}

// TitleBuilder assembles merged titles.
type TitleBuilder interface {
	BuildTitle(ctx context.Context, in tmdb.BuildInput) (*tmdb.BuildResult, error)
}

// CachePurger removes on-disk cache trees.
type CachePurger interface {
	PurgeProvider(providerID string) error
}

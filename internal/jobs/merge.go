package jobs

import (
	"context"
	"sort"
	"strings"
	"time"

	apperrors "github.com/glefebvre/streamhub/internal/errors"
	"github.com/glefebvre/streamhub/internal/logger"
	"github.com/glefebvre/streamhub/internal/models"
	"github.com/glefebvre/streamhub/internal/provider"
	"github.com/glefebvre/streamhub/internal/tmdb"
)

// MergeResult summarizes one merge run.
type MergeResult struct {
	MoviesProcessed  int      `json:"movies_processed" bson:"movies_processed"`
	TVShowsProcessed int      `json:"tvshows_processed" bson:"tvshows_processed"`
	SyntheticTitles  int      `json:"synthetic_titles" bson:"synthetic_titles"`
	SyntheticKeys    []string `json:"synthetic_keys,omitempty" bson:"synthetic_keys,omitempty"`
	StreamsRemoved   int64    `json:"streams_removed" bson:"streams_removed"`
	Errors           int      `json:"errors" bson:"errors"`
}

// ErrorNote reports titles built without TMDB details so a completed run
// still records them in last_error.
func (r *MergeResult) ErrorNote() *string {
	if len(r.SyntheticKeys) == 0 {
		return nil
	}
	note := "titles built without TMDB details: " + strings.Join(r.SyntheticKeys, ", ")
	return &note
}

// MergeJob rebuilds canonical titles for every provider entry matched or
// changed since the watermark.
type MergeJob struct {
	providers      ProviderSource
	providerTitles ProviderTitleStore
	titles         TitleStore
	streams        StreamStore
	builder        TitleBuilder
	handlerFor     HandlerFactory
	log            *logger.Logger
}

func NewMergeJob(providers ProviderSource, providerTitles ProviderTitleStore, titles TitleStore, streams StreamStore, builder TitleBuilder, handlerFor HandlerFactory) *MergeJob {
	return &MergeJob{
		providers:      providers,
		providerTitles: providerTitles,
		titles:         titles,
		streams:        streams,
		builder:        builder,
		handlerFor:     handlerFor,
		log:            logger.AppLogger(),
	}
}

func (j *MergeJob) Name() string {
	return JobNameMerge
}

// affectedTitle identifies one title to rebuild plus a fallback name for
// the synthetic case.
type affectedTitle struct {
	key    string
	ct     models.ContentType
	tmdbID int
	name   string
}

// staleCleanup is a deferred stream deletion. Deletions run only after
// every contributor set has been assembled, so cancelling mid-run leaves
// the previous state of untouched titles intact.
type staleCleanup struct {
	titleKey string
	kept     []string
}

func (j *MergeJob) Run(ctx context.Context, watermark *time.Time) (interface{}, error) {
	active, err := j.providers.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	activeIDs := make([]string, 0, len(active))
	priorities := make(map[string]int, len(active))
	providerByID := make(map[string]*models.Provider, len(active))
	for i := range active {
		p := &active[i]
		activeIDs = append(activeIDs, p.ID)
		priorities[p.ID] = p.Priority
		providerByID[p.ID] = p
	}

	changed, err := j.providerTitles.GetMatchedChangedSince(ctx, activeIDs, watermark)
	if err != nil {
		return nil, err
	}

	affected := make(map[string]affectedTitle)
	addAffected := func(pt *models.ProviderTitle) {
		key := pt.TitleKey()
		if key == "" || pt.Ignored {
			return
		}
		if _, seen := affected[key]; !seen {
			affected[key] = affectedTitle{key: key, ct: pt.Type, tmdbID: *pt.TMDBID, name: pt.Name}
		}
	}
	for i := range changed {
		addAffected(&changed[i])
	}

	// Deleting, disabling or reprioritizing a provider bumps no catalog
	// entry, so its titles never land in the changed set above. Every
	// title such a provider contributes to is rebuilt; the full
	// contributor set then drops or reorders its sources.
	changedProviders, err := j.providers.GetChangedSince(ctx, watermark)
	if err != nil {
		return nil, err
	}
	for _, p := range changedProviders {
		entries, err := j.providerTitles.GetMatchedChangedSince(ctx, []string{p.ID}, nil)
		if err != nil {
			return nil, err
		}
		for i := range entries {
			addAffected(&entries[i])
		}
	}

	keys := make([]string, 0, len(affected))
	for key := range affected {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := &MergeResult{}
	handlers := make(map[string]provider.Handler)
	var cleanups []staleCleanup

	for _, key := range keys {
		if ctx.Err() != nil {
			return nil, apperrors.Cancelled("merge run cancelled")
		}
		target := affected[key]

		cleanup, synthetic, err := j.rebuildTitle(ctx, target, activeIDs, priorities, providerByID, handlers)
		if err != nil {
			if apperrors.IsCancelled(err) {
				return nil, err
			}
			result.Errors++
			j.log.WithFields(map[string]interface{}{
				"title_key": key,
				"error":     err.Error(),
			}).WarnContext(ctx, "Title rebuild failed")
			continue
		}
		cleanups = append(cleanups, cleanup)
		if synthetic {
			result.SyntheticTitles++
			result.SyntheticKeys = append(result.SyntheticKeys, key)
		}
		if target.ct == models.ContentTypeMovies {
			result.MoviesProcessed++
		} else {
			result.TVShowsProcessed++
		}
	}

	for _, c := range cleanups {
		removed, err := j.streams.DeleteStale(ctx, c.titleKey, c.kept)
		if err != nil {
			result.Errors++
			continue
		}
		result.StreamsRemoved += removed
	}

	return result, nil
}

func (j *MergeJob) rebuildTitle(ctx context.Context, target affectedTitle, activeIDs []string, priorities map[string]int, providerByID map[string]*models.Provider, handlers map[string]provider.Handler) (staleCleanup, bool, error) {
	contributors, err := j.providerTitles.GetContributors(ctx, target.ct, target.tmdbID, activeIDs)
	if err != nil {
		return staleCleanup{}, false, err
	}

	// Every contributor withdrew: the merged title goes away with its
	// stream rows.
	if len(contributors) == 0 {
		if err := j.titles.Delete(ctx, target.key); err != nil &&
			apperrors.GetErrorCode(err) != apperrors.CodeNotFound {
			return staleCleanup{}, false, err
		}
		return staleCleanup{titleKey: target.key}, false, nil
	}

	var inputs []tmdb.Contributor
	for i := range contributors {
		pt := &contributors[i]
		handler, err := j.handlerForID(pt.ProviderID, providerByID, handlers)
		if err != nil {
			continue
		}
		for _, streamID := range pt.StreamIDs() {
			inputs = append(inputs, tmdb.Contributor{
				ProviderID: pt.ProviderID,
				StreamID:   streamID,
				ProxyURL:   handler.StreamURL(pt, streamID),
			})
		}
	}

	res, err := j.builder.BuildTitle(ctx, tmdb.BuildInput{
		TMDBID:       target.tmdbID,
		Type:         target.ct,
		FallbackName: target.name,
		Contributors: inputs,
		Priorities:   priorities,
		Catalog:      j.titles,
	})
	if err != nil {
		return staleCleanup{}, false, err
	}

	// A rebuilt title keeps its original creation time.
	if existing, err := j.titles.GetByKey(ctx, target.key); err == nil {
		res.Title.CreatedAt = existing.CreatedAt
	}

	if err := j.titles.Upsert(ctx, res.Title); err != nil {
		return staleCleanup{}, false, err
	}
	if _, err := j.streams.BulkUpsert(ctx, res.Streams); err != nil {
		return staleCleanup{}, false, err
	}

	kept := make([]string, 0, len(res.Streams))
	for _, s := range res.Streams {
		kept = append(kept, s.Key)
	}
	return staleCleanup{titleKey: target.key, kept: kept}, res.Synthetic, nil
}

func (j *MergeJob) handlerForID(providerID string, providerByID map[string]*models.Provider, handlers map[string]provider.Handler) (provider.Handler, error) {
	if h, ok := handlers[providerID]; ok {
		return h, nil
	}
	p, ok := providerByID[providerID]
	if !ok {
		return nil, apperrors.NotFoundError("provider", providerID)
	}
	h, err := j.handlerFor(p)
	if err != nil {
		return nil, err
	}
	handlers[providerID] = h
	return h, nil
}

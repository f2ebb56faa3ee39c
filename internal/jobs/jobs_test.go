package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/glefebvre/streamhub/internal/docstore"
	apperrors "github.com/glefebvre/streamhub/internal/errors"
	"github.com/glefebvre/streamhub/internal/models"
	"github.com/glefebvre/streamhub/internal/provider"
	"github.com/glefebvre/streamhub/internal/tmdb"
)

func intPtr(v int) *int { return &v }

type fakeProviderSource struct {
	active  []models.Provider
	deleted []models.Provider
	changed []models.Provider
	err     error
}

func (f *fakeProviderSource) GetActive(context.Context) ([]models.Provider, error) {
	return f.active, f.err
}

func (f *fakeProviderSource) GetDeleted(context.Context) ([]models.Provider, error) {
	return f.deleted, f.err
}

func (f *fakeProviderSource) GetChangedSince(context.Context, *time.Time) ([]models.Provider, error) {
	return f.changed, f.err
}

type fakeProviderTitleStore struct {
	mu             sync.Mutex
	unmatched      map[string][]models.ProviderTitle
	matchedChanged []models.ProviderTitle
	// matchedByProvider answers the per-provider full-set lookup the
	// merge job issues for providers whose configuration changed.
	matchedByProvider map[string][]models.ProviderTitle
	contributors      map[string][]models.ProviderTitle
	updates           []models.ProviderTitle

	lastUnmatchedSince *time.Time
	lastChangedSince   *time.Time
}

func (f *fakeProviderTitleStore) GetUnmatched(_ context.Context, providerID string, since *time.Time) ([]models.ProviderTitle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUnmatchedSince = since
	return f.unmatched[providerID], nil
}

func (f *fakeProviderTitleStore) GetMatchedChangedSince(_ context.Context, providerIDs []string, since *time.Time) ([]models.ProviderTitle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(providerIDs) == 1 {
		if entries, ok := f.matchedByProvider[providerIDs[0]]; ok {
			return entries, nil
		}
	}
	f.lastChangedSince = since
	return f.matchedChanged, nil
}

func (f *fakeProviderTitleStore) GetContributors(_ context.Context, ct models.ContentType, tmdbID int, _ []string) ([]models.ProviderTitle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contributors[models.TitleKey(ct, tmdbID)], nil
}

func (f *fakeProviderTitleStore) Update(_ context.Context, pt *models.ProviderTitle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, *pt)
	return nil
}

type fakeTitleStore struct {
	titles  map[string]*models.Title
	upserts []models.Title
	deletes []string
}

func (f *fakeTitleStore) GetByKey(_ context.Context, key string) (*models.Title, error) {
	if t, ok := f.titles[key]; ok {
		return t, nil
	}
	return nil, apperrors.NotFoundError("title", key)
}

func (f *fakeTitleStore) ExistingKeys(_ context.Context, keys []string) ([]string, error) {
	var out []string
	for _, k := range keys {
		if _, ok := f.titles[k]; ok {
			out = append(out, k)
		}
	}
	return out, nil
}

func (f *fakeTitleStore) Upsert(_ context.Context, t *models.Title) error {
	f.upserts = append(f.upserts, *t)
	return nil
}

func (f *fakeTitleStore) Delete(_ context.Context, key string) error {
	f.deletes = append(f.deletes, key)
	return nil
}

type staleCall struct {
	titleKey string
	kept     []string
}

type fakeStreamStore struct {
	upserted         []models.TitleStream
	staleCalls       []staleCall
	deletedProviders []string
	staleRemoved     int64
}

func (f *fakeStreamStore) BulkUpsert(_ context.Context, streams []models.TitleStream) (*docstore.BulkResult, error) {
	f.upserted = append(f.upserted, streams...)
	return &docstore.BulkResult{Modified: int64(len(streams))}, nil
}

func (f *fakeStreamStore) DeleteStale(_ context.Context, titleKey string, keptKeys []string) (int64, error) {
	f.staleCalls = append(f.staleCalls, staleCall{titleKey: titleKey, kept: keptKeys})
	return f.staleRemoved, nil
}

func (f *fakeStreamStore) DeleteByProvider(_ context.Context, providerID string) (int64, error) {
	f.deletedProviders = append(f.deletedProviders, providerID)
	return 3, nil
}

type fakeResolver struct {
	// ids maps provider title keys to resolved ids; absent means no match.
	ids  map[string]*int
	errs map[string]error
}

func (f *fakeResolver) Resolve(_ context.Context, pt *models.ProviderTitle) (*int, error) {
	if err, ok := f.errs[pt.Key]; ok {
		return nil, err
	}
	return f.ids[pt.Key], nil
}

type fakeBuilder struct {
	calls     []tmdb.BuildInput
	err       error
	synthetic bool
}

func (f *fakeBuilder) BuildTitle(_ context.Context, in tmdb.BuildInput) (*tmdb.BuildResult, error) {
	f.calls = append(f.calls, in)
	if f.err != nil {
		return nil, f.err
	}
	titleKey := models.TitleKey(in.Type, in.TMDBID)
	title := &models.Title{
		Key:     titleKey,
		Type:    in.Type,
		TMDBID:  in.TMDBID,
		Name:    in.FallbackName,
		Streams: map[string]models.StreamEntry{},
	}
	var streams []models.TitleStream
	for _, c := range in.Contributors {
		streams = append(streams, models.TitleStream{
			Key:        models.StreamCompoundKey(in.Type, in.TMDBID, c.StreamID, c.ProviderID),
			TitleKey:   titleKey,
			StreamID:   c.StreamID,
			ProviderID: c.ProviderID,
			ProxyURL:   c.ProxyURL,
		})
	}
	return &tmdb.BuildResult{Title: title, Streams: streams, Synthetic: f.synthetic}, nil
}

// fakeHandler satisfies provider.Handler with canned scan results.
type fakeHandler struct {
	p        *models.Provider
	movies   int
	tvshows  int
	scanErrs map[models.ContentType]error
}

func (h *fakeHandler) Provider() *models.Provider { return h.p }

func (h *fakeHandler) FetchCategories(context.Context, models.ContentType) ([]provider.Category, error) {
	return nil, nil
}

func (h *fakeHandler) FetchMetadata(_ context.Context, ct models.ContentType) (int, error) {
	if err := h.scanErrs[ct]; err != nil {
		return 0, err
	}
	if ct == models.ContentTypeMovies {
		return h.movies, nil
	}
	return h.tvshows, nil
}

func (h *fakeHandler) LoadProviderTitles(context.Context, *time.Time, bool) error { return nil }
func (h *fakeHandler) GetAllTitles() []models.ProviderTitle                       { return nil }
func (h *fakeHandler) UnloadTitles()                                              {}

func (h *fakeHandler) StreamURL(pt *models.ProviderTitle, streamID string) string {
	return fmt.Sprintf("http://%s/%s/%s", h.p.ID, pt.ProviderItemID, streamID)
}

type fakePurger struct {
	purged []string
	errs   map[string]error
}

func (f *fakePurger) PurgeProvider(providerID string) error {
	if err := f.errs[providerID]; err != nil {
		return err
	}
	f.purged = append(f.purged, providerID)
	return nil
}

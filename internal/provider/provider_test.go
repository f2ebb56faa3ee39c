package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glefebvre/streamhub/internal/docstore"
	apperrors "github.com/glefebvre/streamhub/internal/errors"
	"github.com/glefebvre/streamhub/internal/models"
)

func intPtr(v int) *int { return &v }

func entry(itemID, name string, year *int, category string) models.ProviderTitle {
	return models.ProviderTitle{
		Key:            models.ProviderTitleKey(models.ContentTypeMovies, "p1", itemID),
		ProviderID:     "p1",
		Type:           models.ContentTypeMovies,
		ProviderItemID: itemID,
		Name:           name,
		Year:           year,
		CategoryID:     category,
	}
}

func TestReconcile_NewEntry(t *testing.T) {
	now := time.Now()
	fresh := []models.ProviderTitle{entry("1", "Dune", intPtr(2021), "10")}

	changed := Reconcile(fresh, nil, now)

	require.Len(t, changed, 1)
	assert.Equal(t, now, changed[0].CreatedAt)
	assert.Equal(t, now, changed[0].LastUpdated)
	assert.Nil(t, changed[0].TMDBID)
}

func TestReconcile_UnchangedEntrySkipped(t *testing.T) {
	now := time.Now()
	prev := entry("1", "Dune", intPtr(2021), "10")
	prev.TMDBID = intPtr(438631)
	prev.CreatedAt = now.Add(-24 * time.Hour)
	prev.LastUpdated = now.Add(-24 * time.Hour)

	changed := Reconcile(
		[]models.ProviderTitle{entry("1", "Dune", intPtr(2021), "10")},
		[]models.ProviderTitle{prev},
		now,
	)

	assert.Empty(t, changed, "identical rescan should write nothing")
}

func TestReconcile_ContentChangeResetsMatch(t *testing.T) {
	now := time.Now()
	prev := entry("1", "Dune", intPtr(2021), "10")
	prev.TMDBID = intPtr(438631)
	prev.CreatedAt = now.Add(-24 * time.Hour)

	changed := Reconcile(
		[]models.ProviderTitle{entry("1", "Dune Part Two", intPtr(2024), "10")},
		[]models.ProviderTitle{prev},
		now,
	)

	require.Len(t, changed, 1)
	assert.Nil(t, changed[0].TMDBID, "renamed entry must be re-matched")
	assert.False(t, changed[0].Ignored)
	assert.Equal(t, prev.CreatedAt, changed[0].CreatedAt)
	assert.Equal(t, now, changed[0].LastUpdated)
}

func TestReconcile_IgnoredStateSurvivesRescan(t *testing.T) {
	now := time.Now()
	prev := entry("1", "Obscure Show Reel", nil, "10")
	prev.MarkIgnored(models.IgnoredReasonNoMatch)

	changed := Reconcile(
		[]models.ProviderTitle{entry("1", "Obscure Show Reel", nil, "10")},
		[]models.ProviderTitle{prev},
		now,
	)

	assert.Empty(t, changed)
}

func TestReconcile_EpisodeGrowthKeepsMatch(t *testing.T) {
	now := time.Now()
	prev := models.ProviderTitle{
		Key:            models.ProviderTitleKey(models.ContentTypeTVShows, "p1", "55"),
		ProviderID:     "p1",
		Type:           models.ContentTypeTVShows,
		ProviderItemID: "55",
		Name:           "Severance",
		CategoryID:     "20",
		TMDBID:         intPtr(95396),
		Episodes: []models.EpisodeRef{
			{StreamID: "S01-E01", Season: 1, Episode: 1},
		},
	}
	fresh := prev
	fresh.TMDBID = nil
	fresh.Episodes = []models.EpisodeRef{
		{StreamID: "S01-E01", Season: 1, Episode: 1},
		{StreamID: "S01-E02", Season: 1, Episode: 2},
	}

	changed := Reconcile([]models.ProviderTitle{fresh}, []models.ProviderTitle{prev}, now)

	require.Len(t, changed, 1)
	require.NotNil(t, changed[0].TMDBID)
	assert.Equal(t, 95396, *changed[0].TMDBID)
	assert.Len(t, changed[0].Episodes, 2)
}

func TestCategoryEnabled(t *testing.T) {
	assert.True(t, CategoryEnabled(nil, "10"), "empty filter ingests everything")
	assert.True(t, CategoryEnabled([]string{"10", "20"}, "20"))
	assert.False(t, CategoryEnabled([]string{"10"}, "30"))
}

type nullStore struct{}

func (nullStore) GetByProvider(context.Context, string, models.ContentType, *time.Time, bool) ([]models.ProviderTitle, error) {
	return nil, nil
}
func (nullStore) BulkUpsert(context.Context, []models.ProviderTitle) (*docstore.BulkResult, error) {
	return &docstore.BulkResult{}, nil
}

type stubHandler struct {
	Handler
	p *models.Provider
}

func (h *stubHandler) Provider() *models.Provider { return h.p }

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register(models.ProviderTypeAGTV, func(p *models.Provider, deps Deps) Handler {
		return &stubHandler{p: p}
	})

	p := &models.Provider{ID: "p1", Type: models.ProviderTypeAGTV}
	h, err := reg.Handler(p, Deps{Titles: nullStore{}})
	require.NoError(t, err)
	assert.Equal(t, "p1", h.Provider().ID)

	_, err = reg.Handler(&models.Provider{ID: "p2", Type: models.ProviderTypeXtream}, Deps{})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConfig, apperrors.GetErrorCode(err))
}

type countingStore struct {
	nullStore
	perType map[models.ContentType][]models.ProviderTitle
}

func (s countingStore) GetByProvider(_ context.Context, _ string, ct models.ContentType, _ *time.Time, _ bool) ([]models.ProviderTitle, error) {
	return s.perType[ct], nil
}

func TestWorkingSetLoadReplaces(t *testing.T) {
	store := countingStore{perType: map[models.ContentType][]models.ProviderTitle{
		models.ContentTypeMovies:  {entry("101", "Dune", intPtr(2021), "10")},
		models.ContentTypeTVShows: {{Key: "tvshows-p1-201", ProviderID: "p1", Type: models.ContentTypeTVShows, Name: "Severance"}},
	}}

	var ws WorkingSet
	require.NoError(t, ws.Load(context.Background(), store, "p1", nil, false))
	assert.Len(t, ws.All(), 2, "both content types in one load")

	require.NoError(t, ws.Load(context.Background(), store, "p1", nil, false))
	assert.Len(t, ws.All(), 2, "reload replaces, never appends")

	ws.Clear()
	assert.Empty(t, ws.All())
}

func TestDepsTTL(t *testing.T) {
	assert.Equal(t, DefaultCacheTTL, Deps{}.TTL())
	assert.Equal(t, time.Hour, Deps{CacheTTL: time.Hour}.TTL())
}

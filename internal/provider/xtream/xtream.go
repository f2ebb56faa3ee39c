// Package xtream implements the provider handler for Xtream-compatible
// sources, which expose their catalog through the player_api JSON
// endpoints. Series carry per-episode streams resolved via an extra
// get_series_info call per series.
package xtream

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"time"

	apperrors "github.com/glefebvre/streamhub/internal/errors"
	"github.com/glefebvre/streamhub/internal/fetcher"
	"github.com/glefebvre/streamhub/internal/logger"
	"github.com/glefebvre/streamhub/internal/models"
	"github.com/glefebvre/streamhub/internal/parser"
	"github.com/glefebvre/streamhub/internal/provider"
)

type Handler struct {
	p    *models.Provider
	deps provider.Deps
	ws   provider.WorkingSet
	log  *logger.Logger
}

func New(p *models.Provider, deps provider.Deps) provider.Handler {
	return &Handler{p: p, deps: deps, log: logger.AppLogger()}
}

func (h *Handler) Provider() *models.Provider {
	return h.p
}

func (h *Handler) apiURL(action string) string {
	return fmt.Sprintf("%s/player_api.php?username=%s&password=%s&action=%s",
		h.p.BaseURL, url.QueryEscape(h.p.Username), url.QueryEscape(h.p.Password), action)
}

func (h *Handler) fetchAPI(ctx context.Context, ct models.ContentType, action string, params url.Values, out interface{}) error {
	return h.deps.Fetcher.FetchJSON(ctx, fetcher.Request{
		ProviderID: h.p.ID,
		Type:       ct,
		Endpoint:   action,
		Params:     params,
		URL:        h.apiURL(action),
		TTL:        h.deps.TTL(),
		LimiterKey: h.p.ID,
	}, out)
}

func (h *Handler) FetchCategories(ctx context.Context, ct models.ContentType) ([]provider.Category, error) {
	action := "get_vod_categories"
	if ct == models.ContentTypeTVShows {
		action = "get_series_categories"
	}

	var raw []apiCategory
	if err := h.fetchAPI(ctx, ct, action, nil, &raw); err != nil {
		return nil, err
	}

	categories := make([]provider.Category, 0, len(raw))
	for _, c := range raw {
		if c.CategoryID == "" {
			continue
		}
		categories = append(categories, provider.Category{
			ID:   string(c.CategoryID),
			Name: c.CategoryName,
			Type: ct,
		})
	}
	return categories, nil
}

func (h *Handler) FetchMetadata(ctx context.Context, ct models.ContentType) (int, error) {
	var fresh []models.ProviderTitle
	var err error
	if ct == models.ContentTypeMovies {
		fresh, err = h.scanMovies(ctx)
	} else {
		fresh, err = h.scanSeries(ctx)
	}
	if err != nil {
		return 0, err
	}

	existing, err := h.deps.Titles.GetByProvider(ctx, h.p.ID, ct, nil, true)
	if err != nil {
		return 0, err
	}
	changed := provider.Reconcile(fresh, existing, time.Now().UTC())
	if len(changed) == 0 {
		return 0, nil
	}

	res, err := h.deps.Titles.BulkUpsert(ctx, changed)
	if err != nil {
		return 0, err
	}
	return len(changed) - len(res.Errors), nil
}

func (h *Handler) scanMovies(ctx context.Context) ([]models.ProviderTitle, error) {
	var streams []apiVodStream
	if err := h.fetchAPI(ctx, models.ContentTypeMovies, "get_vod_streams", nil, &streams); err != nil {
		return nil, err
	}

	enabled := h.p.EnabledCategories.ForType(models.ContentTypeMovies)
	fresh := make([]models.ProviderTitle, 0, len(streams))
	seen := make(map[string]struct{}, len(streams))
	for _, s := range streams {
		if s.StreamID == "" || !provider.CategoryEnabled(enabled, string(s.CategoryID)) {
			continue
		}
		key := models.ProviderTitleKey(models.ContentTypeMovies, h.p.ID, string(s.StreamID))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		name, year := parser.ExtractNameYear(s.Name)
		fresh = append(fresh, models.ProviderTitle{
			Key:            key,
			ProviderID:     h.p.ID,
			Type:           models.ContentTypeMovies,
			ProviderItemID: string(s.StreamID),
			Name:           name,
			Year:           year,
			CategoryID:     string(s.CategoryID),
		})
	}
	return fresh, nil
}

func (h *Handler) scanSeries(ctx context.Context) ([]models.ProviderTitle, error) {
	var listing []apiSeries
	if err := h.fetchAPI(ctx, models.ContentTypeTVShows, "get_series", nil, &listing); err != nil {
		return nil, err
	}

	enabled := h.p.EnabledCategories.ForType(models.ContentTypeTVShows)
	fresh := make([]models.ProviderTitle, 0, len(listing))
	seen := make(map[string]struct{}, len(listing))
	for _, s := range listing {
		if s.SeriesID == "" || !provider.CategoryEnabled(enabled, string(s.CategoryID)) {
			continue
		}
		key := models.ProviderTitleKey(models.ContentTypeTVShows, h.p.ID, string(s.SeriesID))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		name, year := parser.ExtractNameYear(s.Name)
		entry := models.ProviderTitle{
			Key:            key,
			ProviderID:     h.p.ID,
			Type:           models.ContentTypeTVShows,
			ProviderItemID: string(s.SeriesID),
			Name:           name,
			Year:           year,
			CategoryID:     string(s.CategoryID),
		}

		episodes, err := h.fetchEpisodes(ctx, string(s.SeriesID))
		if err != nil {
			if apperrors.IsCancelled(err) {
				return nil, err
			}
			// One failed series loses only its episode list.
			h.log.WithFields(map[string]interface{}{
				"provider_id": h.p.ID,
				"series_id":   string(s.SeriesID),
				"error":       err.Error(),
			}).WarnContext(ctx, "Series info fetch failed, keeping series without episodes")
		} else {
			entry.Episodes = episodes
		}
		fresh = append(fresh, entry)
	}
	return fresh, nil
}

func (h *Handler) fetchEpisodes(ctx context.Context, seriesID string) ([]models.EpisodeRef, error) {
	var info apiSeriesInfo
	params := url.Values{"series_id": {seriesID}}
	if err := h.fetchAPI(ctx, models.ContentTypeTVShows, "get_series_info", params, &info); err != nil {
		return nil, err
	}

	var episodes []models.EpisodeRef
	for seasonKey, eps := range info.Episodes {
		for _, ep := range eps {
			season := ep.Season.Int()
			if season == 0 {
				season = parseSeasonKey(seasonKey)
			}
			streamID, err := models.EpisodeStreamID(season, ep.EpisodeNum.Int())
			if err != nil {
				continue
			}
			episodes = append(episodes, models.EpisodeRef{
				StreamID: streamID,
				Season:   season,
				Episode:  ep.EpisodeNum.Int(),
			})
		}
	}
	sort.Slice(episodes, func(i, j int) bool {
		if episodes[i].Season != episodes[j].Season {
			return episodes[i].Season < episodes[j].Season
		}
		return episodes[i].Episode < episodes[j].Episode
	})
	return episodes, nil
}

func (h *Handler) LoadProviderTitles(ctx context.Context, since *time.Time, includeIgnored bool) error {
	return h.ws.Load(ctx, h.deps.Titles, h.p.ID, since, includeIgnored)
}

func (h *Handler) GetAllTitles() []models.ProviderTitle {
	return h.ws.All()
}

func (h *Handler) UnloadTitles() {
	h.ws.Clear()
}

// StreamURL derives the playback proxy location: movies resolve under
// /movie, series episodes under /series with the stream id appended.
func (h *Handler) StreamURL(pt *models.ProviderTitle, streamID string) string {
	user := url.PathEscape(h.p.Username)
	pass := url.PathEscape(h.p.Password)
	item := url.PathEscape(pt.ProviderItemID)
	if pt.Type == models.ContentTypeMovies {
		return fmt.Sprintf("%s/movie/%s/%s/%s", h.p.BaseURL, user, pass, item)
	}
	return fmt.Sprintf("%s/series/%s/%s/%s/%s", h.p.BaseURL, user, pass, item, url.PathEscape(streamID))
}

// Package agtv implements the provider handler for AGTV-style sources,
// which expose their whole catalog as M3U8 playlists. Movies fit on a
// single list; tvshows are paginated.
package agtv

import (
	"bytes"
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

// maxPages caps tvshows pagination against a provider that never returns
// an empty page.
const maxPages = 500

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

// listURL builds /api/list/{user}/{pass}/m3u8/{type}[/{page}].
// Page 0 means the unpaginated list.
func (h *Handler) listURL(ct models.ContentType, page int) string {
	u := fmt.Sprintf("%s/api/list/%s/%s/m3u8/%s",
		h.p.BaseURL, url.PathEscape(h.p.Username), url.PathEscape(h.p.Password), ct)
	if page > 0 {
		u = fmt.Sprintf("%s/%d", u, page)
	}
	return u
}

func (h *Handler) fetchPage(ctx context.Context, ct models.ContentType, page int) ([]parser.M3UEntry, error) {
	req := fetcher.Request{
		ProviderID: h.p.ID,
		Type:       ct,
		Endpoint:   "list",
		URL:        h.listURL(ct, page),
		TTL:        h.deps.TTL(),
		LimiterKey: h.p.ID,
		Ext:        "m3u8",
	}
	if page > 0 {
		req.Endpoint = fmt.Sprintf("list-%d", page)
	}

	data, err := h.deps.Fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	return parser.NewM3UParser().Parse(bytes.NewReader(data))
}

// scan walks every playlist page for a content type. Movies are a single
// page; tvshows advance until an empty page. A failed page after the
// first loses only the remaining pages.
func (h *Handler) scan(ctx context.Context, ct models.ContentType) ([]parser.M3UEntry, error) {
	if ct == models.ContentTypeMovies {
		return h.fetchPage(ctx, ct, 0)
	}

	var all []parser.M3UEntry
	for page := 1; page <= maxPages; page++ {
		entries, err := h.fetchPage(ctx, ct, page)
		if err != nil {
			if page == 1 || apperrors.GetErrorCode(err) == apperrors.CodeUpstreamAuth || apperrors.IsCancelled(err) {
				return nil, err
			}
			h.log.WithFields(map[string]interface{}{
				"provider_id": h.p.ID,
				"page":        page,
				"error":       err.Error(),
			}).WarnContext(ctx, "Playlist page failed, keeping earlier pages")
			break
		}
		if len(entries) == 0 {
			break
		}
		all = append(all, entries...)
	}
	return all, nil
}

func (h *Handler) FetchCategories(ctx context.Context, ct models.ContentType) ([]provider.Category, error) {
	entries, err := h.scan(ctx, ct)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var categories []provider.Category
	for _, e := range entries {
		if e.GroupTitle == "" {
			continue
		}
		if _, ok := seen[e.GroupTitle]; ok {
			continue
		}
		seen[e.GroupTitle] = struct{}{}
		categories = append(categories, provider.Category{
			ID:   e.GroupTitle,
			Name: e.GroupTitle,
			Type: ct,
		})
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].ID < categories[j].ID })
	return categories, nil
}

func (h *Handler) FetchMetadata(ctx context.Context, ct models.ContentType) (int, error) {
	entries, err := h.scan(ctx, ct)
	if err != nil {
		return 0, err
	}

	enabled := h.p.EnabledCategories.ForType(ct)
	fresh := make([]models.ProviderTitle, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if !provider.CategoryEnabled(enabled, e.GroupTitle) {
			continue
		}
		itemID := e.ItemID()
		if itemID == "" {
			continue
		}
		key := models.ProviderTitleKey(ct, h.p.ID, itemID)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		name, year := parser.ExtractNameYear(e.Title)
		fresh = append(fresh, models.ProviderTitle{
			Key:            key,
			ProviderID:     h.p.ID,
			Type:           ct,
			ProviderItemID: itemID,
			Name:           name,
			Year:           year,
			CategoryID:     e.GroupTitle,
		})
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

func (h *Handler) LoadProviderTitles(ctx context.Context, since *time.Time, includeIgnored bool) error {
	return h.ws.Load(ctx, h.deps.Titles, h.p.ID, since, includeIgnored)
}

func (h *Handler) GetAllTitles() []models.ProviderTitle {
	return h.ws.All()
}

func (h *Handler) UnloadTitles() {
	h.ws.Clear()
}

// StreamURL derives the playback proxy location. AGTV entries only carry
// the main stream.
func (h *Handler) StreamURL(pt *models.ProviderTitle, streamID string) string {
	u := fmt.Sprintf("%s/api/stream/%s/%s/%s",
		h.p.BaseURL, url.PathEscape(h.p.Username), url.PathEscape(h.p.Password),
		url.PathEscape(pt.ProviderItemID))
	if streamID != "" && streamID != models.MainStreamID {
		u = u + "/" + url.PathEscape(streamID)
	}
	return u
}

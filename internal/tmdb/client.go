// Package tmdb wraps the TMDB v3 API behind the capabilities the sync and
// merge jobs need: matching provider entries to canonical ids, fetching
// title and season metadata, and assembling merged titles. All traffic
// goes through the shared fetcher so responses are cached on disk and the
// TMDB request budget is enforced per attempt.
package tmdb

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/glefebvre/streamhub/internal/circuitbreaker"
	apperrors "github.com/glefebvre/streamhub/internal/errors"
	"github.com/glefebvre/streamhub/internal/fetcher"
	"github.com/glefebvre/streamhub/internal/logger"
	"github.com/glefebvre/streamhub/internal/models"
	"github.com/glefebvre/streamhub/internal/ratelimit"
)

const (
	defaultBaseURL  = "https://api.themoviedb.org/3"
	defaultLanguage = "en-US"

	// cacheNamespace is the pseudo provider id under which TMDB payloads
	// live in the cache tree.
	cacheNamespace = "tmdb"

	detailsTTL = 24 * time.Hour
	seasonTTL  = 6 * time.Hour
	similarTTL = 24 * time.Hour
	searchTTL  = 24 * time.Hour
)

type Config struct {
	Token    string
	Language string
	// BaseURL overrides the API host, used by tests.
	BaseURL string
	Fetcher *fetcher.Fetcher
	Breaker *circuitbreaker.CircuitBreaker
}

type Client struct {
	token    string
	language string
	baseURL  string
	fetcher  *fetcher.Fetcher
	breaker  *circuitbreaker.CircuitBreaker
	log      *logger.Logger

	mu        sync.Mutex
	runConfig *Configuration
}

func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	language := cfg.Language
	if language == "" {
		language = defaultLanguage
	}
	breaker := cfg.Breaker
	if breaker == nil {
		bcfg := circuitbreaker.DefaultConfig()
		// Only transport-level trouble should trip the breaker. A 404 on
		// a details call is a data condition, not an outage.
		bcfg.IsSuccessful = func(err error) bool {
			return err == nil || !apperrors.IsRetryable(err)
		}
		breaker = circuitbreaker.New(bcfg)
	}
	return &Client{
		token:    cfg.Token,
		language: language,
		baseURL:  baseURL,
		fetcher:  cfg.Fetcher,
		breaker:  breaker,
		log:      logger.AppLogger(),
	}
}

func (c *Client) get(ctx context.Context, ct models.ContentType, endpoint, path string, params url.Values, ttl time.Duration, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("language", c.language)

	req := fetcher.Request{
		ProviderID: cacheNamespace,
		Type:       ct,
		Endpoint:   endpoint,
		Params:     params,
		URL:        c.baseURL + path,
		Header: http.Header{
			"Authorization": {"Bearer " + c.token},
			"Accept":        {"application/json"},
		},
		TTL:        ttl,
		LimiterKey: ratelimit.TMDBKey,
	}
	return c.breaker.Execute(func() error {
		return c.fetcher.FetchJSON(ctx, req, out)
	})
}

// pathType maps a content type to its TMDB URL segment.
func pathType(ct models.ContentType) string {
	if ct == models.ContentTypeTVShows {
		return "tv"
	}
	return "movie"
}

// Details returns canonical metadata for a title, cached for 24 hours.
func (c *Client) Details(ctx context.Context, ct models.ContentType, tmdbID int) (*Details, error) {
	var d Details
	endpoint := fmt.Sprintf("details-%d", tmdbID)
	path := fmt.Sprintf("/%s/%d", pathType(ct), tmdbID)
	if err := c.get(ctx, ct, endpoint, path, nil, detailsTTL, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// SeasonDetails returns the episode list of one season, cached for 6 hours.
func (c *Client) SeasonDetails(ctx context.Context, tmdbID, season int) (*Season, error) {
	var s Season
	endpoint := fmt.Sprintf("season-%d-%d", tmdbID, season)
	path := fmt.Sprintf("/tv/%d/season/%d", tmdbID, season)
	if err := c.get(ctx, models.ContentTypeTVShows, endpoint, path, nil, seasonTTL, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Similar returns up to 20 recommended title keys, cached for 24 hours.
// The caller filters them against the local catalog.
func (c *Client) Similar(ctx context.Context, ct models.ContentType, tmdbID int) ([]string, error) {
	var resp searchResponse
	endpoint := fmt.Sprintf("similar-%d", tmdbID)
	path := fmt.Sprintf("/%s/%d/similar", pathType(ct), tmdbID)
	if err := c.get(ctx, ct, endpoint, path, nil, similarTTL, &resp); err != nil {
		return nil, err
	}

	keys := make([]string, 0, 20)
	for _, r := range resp.Results {
		if r.ID <= 0 {
			continue
		}
		keys = append(keys, models.TitleKey(ct, r.ID))
		if len(keys) == 20 {
			break
		}
	}
	return keys, nil
}

// Configuration returns the image host settings. The value is held in
// memory until ResetRunCache so a merge run resolves it once.
func (c *Client) Configuration(ctx context.Context) (*Configuration, error) {
	c.mu.Lock()
	if c.runConfig != nil {
		cfg := c.runConfig
		c.mu.Unlock()
		return cfg, nil
	}
	c.mu.Unlock()

	var raw configurationResponse
	if err := c.get(ctx, "", "configuration", "/configuration", nil, detailsTTL, &raw); err != nil {
		return nil, err
	}

	cfg := &Configuration{
		ImageBaseURL: raw.Images.SecureBaseURL,
		PosterSize:   pickPosterSize(raw.Images.PosterSizes),
	}
	c.mu.Lock()
	c.runConfig = cfg
	c.mu.Unlock()
	return cfg, nil
}

// ResetRunCache drops state scoped to a single job run.
func (c *Client) ResetRunCache() {
	c.mu.Lock()
	c.runConfig = nil
	c.mu.Unlock()
}

func pickPosterSize(sizes []string) string {
	for _, s := range sizes {
		if s == "w500" {
			return s
		}
	}
	if len(sizes) > 0 {
		return sizes[len(sizes)-1]
	}
	return "original"
}

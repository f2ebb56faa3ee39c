// Package fetcher downloads provider and metadata payloads over HTTP and
// caches the raw responses on disk. Every read goes through the cache: a
// fresh cached file short-circuits the network entirely, and a failed
// refresh falls back to the stale copy when one exists.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	apperrors "github.com/glefebvre/streamhub/internal/errors"
	"github.com/glefebvre/streamhub/internal/logger"
	"github.com/glefebvre/streamhub/internal/models"
	"github.com/glefebvre/streamhub/internal/ratelimit"
	"github.com/glefebvre/streamhub/internal/retry"
)

// defaultTimeout bounds one request attempt when no client is supplied.
const defaultTimeout = 10 * time.Second

// Request describes one cacheable HTTP fetch.
type Request struct {
	// ProviderID namespaces the cache directory. Non-provider callers
	// (TMDB) use a fixed pseudo-provider id.
	ProviderID string
	Type       models.ContentType
	// Endpoint is the cache file stem, e.g. "get_vod_streams".
	Endpoint string
	// Params are appended to URL as a query string and folded into the
	// cache file name so distinct queries get distinct cache entries.
	Params url.Values
	URL    string
	Header http.Header
	// TTL bounds cache freshness. Zero means the cached copy never
	// expires and is only replaced by an explicit purge.
	TTL time.Duration
	// LimiterKey selects the rate limiter bucket. Empty means unlimited.
	LimiterKey string
	// Ext is the cache file extension without the dot ("json", "m3u8").
	Ext string
}

// Config carries the fetcher's construction parameters.
type Config struct {
	CacheDir   string
	Client     *http.Client
	Limiter    *ratelimit.Keyed
	Retries    int
	MaxUsedPct int
}

// Fetcher is safe for concurrent use. Concurrent fetches of the same
// request may race on the network but the atomic cache write keeps the
// cached file consistent.
type Fetcher struct {
	cacheDir   string
	client     *http.Client
	limiter    *ratelimit.Keyed
	retryCfg   retry.Config
	maxUsedPct int
	log        *logger.Logger
}

func New(cfg Config) *Fetcher {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	retryCfg := retry.DefaultConfig()
	if cfg.Retries > 0 {
		retryCfg.MaxAttempts = cfg.Retries
	}
	maxUsedPct := cfg.MaxUsedPct
	if maxUsedPct <= 0 || maxUsedPct > 100 {
		maxUsedPct = 95
	}
	return &Fetcher{
		cacheDir:   cfg.CacheDir,
		client:     client,
		limiter:    cfg.Limiter,
		retryCfg:   retryCfg,
		maxUsedPct: maxUsedPct,
		log:        logger.AppLogger(),
	}
}

// CachePath returns the on-disk location for a request's payload:
// {cache_dir}/{provider_id}/{type}/metadata/{endpoint}[-{sig}].{ext}
func (f *Fetcher) CachePath(req Request) string {
	name := req.Endpoint
	if sig := paramSignature(req.Params); sig != "" {
		name = name + "-" + sig
	}
	ext := req.Ext
	if ext == "" {
		ext = "json"
	}
	return filepath.Join(f.cacheDir, req.ProviderID, string(req.Type), "metadata", name+"."+ext)
}

// paramSignature encodes query parameters into a filename-safe stable
// string. Keys are sorted so the same parameters always produce the same
// cache entry.
func paramSignature(params url.Values) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		for _, v := range params[k] {
			parts = append(parts, k+"_"+sanitizeComponent(v))
		}
	}
	return strings.Join(parts, "-")
}

func sanitizeComponent(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// Fetch returns the payload for req, from cache when fresh, otherwise from
// the network. A failed refresh returns the stale cached copy when one
// exists.
func (f *Fetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	path := f.CachePath(req)

	if data, ok := f.readFresh(path, req.TTL); ok {
		return data, nil
	}

	data, err := f.download(ctx, req)
	if err != nil {
		if apperrors.IsCancelled(err) {
			return nil, err
		}
		if stale, readErr := os.ReadFile(path); readErr == nil {
			f.log.WithFields(map[string]interface{}{
				"provider_id": req.ProviderID,
				"endpoint":    req.Endpoint,
				"error":       err.Error(),
			}).WarnContext(ctx, "Serving stale cache after fetch failure")
			return stale, nil
		}
		return nil, err
	}

	if writeErr := f.writeCache(path, data); writeErr != nil {
		f.log.WithFields(map[string]interface{}{
			"path":  path,
			"error": writeErr.Error(),
		}).WarnContext(ctx, "Cache write skipped")
	}
	return data, nil
}

// FetchJSON fetches and decodes a JSON payload into out.
func (f *Fetcher) FetchJSON(ctx context.Context, req Request, out interface{}) error {
	if req.Ext == "" {
		req.Ext = "json"
	}
	data, err := f.Fetch(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperrors.UpstreamFormatError(
			fmt.Sprintf("invalid JSON from %s", req.Endpoint), err).
			WithContext("provider_id", req.ProviderID)
	}
	return nil
}

func (f *Fetcher) readFresh(path string, ttl time.Duration) ([]byte, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if ttl > 0 && time.Since(info.ModTime()) > ttl {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (f *Fetcher) download(ctx context.Context, req Request) ([]byte, error) {
	fullURL := req.URL
	if len(req.Params) > 0 {
		sep := "?"
		if strings.Contains(fullURL, "?") {
			sep = "&"
		}
		fullURL = fullURL + sep + req.Params.Encode()
	}

	return retry.DoWithResult(ctx, f.retryCfg, func() ([]byte, error) {
		if f.limiter != nil && req.LimiterKey != "" {
			if err := f.limiter.Acquire(ctx, req.LimiterKey); err != nil {
				return nil, err
			}
		}
		return f.doRequest(ctx, req, fullURL)
	}, nil)
}

func (f *Fetcher) doRequest(ctx context.Context, req Request, fullURL string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, apperrors.NetworkError("failed to build request", err)
	}
	for k, vals := range req.Header {
		for _, v := range vals {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.Cancelled("fetch cancelled")
		}
		return nil, apperrors.NetworkError(
			fmt.Sprintf("request to %s failed", req.Endpoint), err).
			WithContext("provider_id", req.ProviderID)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// fall through to read
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, apperrors.UpstreamAuthError(req.ProviderID,
			fmt.Sprintf("upstream returned HTTP %d", resp.StatusCode))
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperrors.NotFoundError("upstream resource", req.Endpoint).
			WithContext("provider_id", req.ProviderID)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, apperrors.New(apperrors.CodeRateLimited,
			fmt.Sprintf("upstream rate limited %s", req.Endpoint)).
			WithContext("provider_id", req.ProviderID)
	case resp.StatusCode >= 500:
		return nil, apperrors.NetworkError(
			fmt.Sprintf("upstream returned HTTP %d for %s", resp.StatusCode, req.Endpoint), nil).
			WithContext("provider_id", req.ProviderID)
	default:
		return nil, apperrors.UpstreamFormatError(
			fmt.Sprintf("unexpected HTTP %d for %s", resp.StatusCode, req.Endpoint), nil).
			WithContext("provider_id", req.ProviderID)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NetworkError("failed to read response body", err)
	}
	return data, nil
}

// writeCache writes atomically via a temp file in the target directory so a
// concurrent reader never observes a partial payload.
func (f *Fetcher) writeCache(path string, data []byte) error {
	if space, err := GetDiskSpace(f.cacheDir); err == nil && space.UsedPct >= float64(f.maxUsedPct) {
		return fmt.Errorf("cache filesystem %.1f%% used, above %d%% limit", space.UsedPct, f.maxUsedPct)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close cache file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move cache file into place: %w", err)
	}
	return nil
}

// PurgeProvider removes every cached payload for a provider.
func (f *Fetcher) PurgeProvider(providerID string) error {
	if providerID == "" {
		return apperrors.ConfigError("provider id required for cache purge", nil)
	}
	dir := filepath.Join(f.cacheDir, providerID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to purge cache for %s: %w", providerID, err)
	}
	return nil
}

// PurgeExpired walks the cache tree and removes files older than maxAge.
// It returns the number of files removed.
func (f *Fetcher) PurgeExpired(maxAge time.Duration) (int, error) {
	removed := 0
	cutoff := time.Now().Add(-maxAge)
	err := filepath.Walk(f.cacheDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if rmErr := os.Remove(path); rmErr == nil {
				removed++
			}
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return removed, fmt.Errorf("cache walk failed: %w", err)
	}
	return removed, nil
}

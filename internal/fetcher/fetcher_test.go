package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/glefebvre/streamhub/internal/errors"
	"github.com/glefebvre/streamhub/internal/models"
)

func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()
	return New(Config{
		CacheDir: t.TempDir(),
		Retries:  1,
	})
}

func TestFetch_CachesResponse(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	f := newTestFetcher(t)
	req := Request{
		ProviderID: "p1",
		Type:       models.ContentTypeMovies,
		Endpoint:   "get_vod_streams",
		URL:        server.URL,
		TTL:        time.Hour,
	}

	first, err := f.Fetch(context.Background(), req)
	require.NoError(t, err)
	second, err := f.Fetch(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "second fetch should be served from cache")
}

func TestFetch_ExpiredCacheRefetches(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	f := newTestFetcher(t)
	req := Request{
		ProviderID: "p1",
		Type:       models.ContentTypeMovies,
		Endpoint:   "get_vod_streams",
		URL:        server.URL,
		TTL:        time.Hour,
	}

	_, err := f.Fetch(context.Background(), req)
	require.NoError(t, err)

	// Age the cached file past its TTL.
	path := f.CachePath(req)
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	_, err = f.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestFetch_ZeroTTLNeverExpires(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`data`))
	}))
	defer server.Close()

	f := newTestFetcher(t)
	req := Request{ProviderID: "p1", Type: models.ContentTypeMovies, Endpoint: "list", URL: server.URL}

	_, err := f.Fetch(context.Background(), req)
	require.NoError(t, err)

	path := f.CachePath(req)
	old := time.Now().Add(-240 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	_, err = f.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestFetch_StaleFallbackOnFailure(t *testing.T) {
	var fail atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`original`))
	}))
	defer server.Close()

	f := newTestFetcher(t)
	req := Request{
		ProviderID: "p1",
		Type:       models.ContentTypeTVShows,
		Endpoint:   "get_series",
		URL:        server.URL,
		TTL:        time.Hour,
	}

	_, err := f.Fetch(context.Background(), req)
	require.NoError(t, err)

	path := f.CachePath(req)
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))
	fail.Store(true)

	data, err := f.Fetch(context.Background(), req)
	require.NoError(t, err, "expired cache should be served when refresh fails")
	assert.Equal(t, "original", string(data))
}

func TestFetch_NoCacheNoFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f := newTestFetcher(t)
	req := Request{ProviderID: "p1", Type: models.ContentTypeMovies, Endpoint: "list", URL: server.URL}

	_, err := f.Fetch(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNetwork, apperrors.GetErrorCode(err))
}

func TestFetch_AuthError(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	f := New(Config{CacheDir: t.TempDir(), Retries: 3})
	req := Request{ProviderID: "p1", Type: models.ContentTypeMovies, Endpoint: "list", URL: server.URL}

	_, err := f.Fetch(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUpstreamAuth, apperrors.GetErrorCode(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "auth failures should not be retried")
}

func TestFetchJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"Dune","year":2021}`))
	}))
	defer server.Close()

	f := newTestFetcher(t)
	var payload struct {
		Name string `json:"name"`
		Year int    `json:"year"`
	}
	err := f.FetchJSON(context.Background(), Request{
		ProviderID: "p1", Type: models.ContentTypeMovies, Endpoint: "details", URL: server.URL,
	}, &payload)
	require.NoError(t, err)
	assert.Equal(t, "Dune", payload.Name)
	assert.Equal(t, 2021, payload.Year)
}

func TestFetchJSON_InvalidPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer server.Close()

	f := newTestFetcher(t)
	var out map[string]interface{}
	err := f.FetchJSON(context.Background(), Request{
		ProviderID: "p1", Type: models.ContentTypeMovies, Endpoint: "details", URL: server.URL,
	}, &out)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUpstreamFormat, apperrors.GetErrorCode(err))
}

func TestCachePath(t *testing.T) {
	f := New(Config{CacheDir: "/cache"})

	tests := []struct {
		name string
		req  Request
		want string
	}{
		{
			name: "no params",
			req:  Request{ProviderID: "p1", Type: models.ContentTypeMovies, Endpoint: "get_vod_streams", Ext: "json"},
			want: "/cache/p1/movies/metadata/get_vod_streams.json",
		},
		{
			name: "default extension",
			req:  Request{ProviderID: "p1", Type: models.ContentTypeTVShows, Endpoint: "get_series"},
			want: "/cache/p1/tvshows/metadata/get_series.json",
		},
		{
			name: "params folded into name",
			req: Request{
				ProviderID: "p1", Type: models.ContentTypeTVShows, Endpoint: "get_series_info",
				Params: url.Values{"series_id": {"42"}},
			},
			want: "/cache/p1/tvshows/metadata/get_series_info-series_id_42.json",
		},
		{
			name: "m3u8 extension",
			req:  Request{ProviderID: "p2", Type: models.ContentTypeMovies, Endpoint: "list", Ext: "m3u8"},
			want: "/cache/p2/movies/metadata/list.m3u8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.CachePath(tt.req))
		})
	}
}

func TestCachePath_ParamOrderStable(t *testing.T) {
	f := New(Config{CacheDir: "/cache"})
	a := Request{
		ProviderID: "p1", Type: models.ContentTypeMovies, Endpoint: "search",
		Params: url.Values{"query": {"dune"}, "year": {"2021"}},
	}
	b := Request{
		ProviderID: "p1", Type: models.ContentTypeMovies, Endpoint: "search",
		Params: url.Values{"year": {"2021"}, "query": {"dune"}},
	}
	assert.Equal(t, f.CachePath(a), f.CachePath(b))
}

func TestPurgeProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`data`))
	}))
	defer server.Close()

	dir := t.TempDir()
	f := New(Config{CacheDir: dir, Retries: 1})
	req := Request{ProviderID: "p1", Type: models.ContentTypeMovies, Endpoint: "list", URL: server.URL}

	_, err := f.Fetch(context.Background(), req)
	require.NoError(t, err)
	require.FileExists(t, f.CachePath(req))

	require.NoError(t, f.PurgeProvider("p1"))
	assert.NoDirExists(t, filepath.Join(dir, "p1"))
}

func TestPurgeProvider_RequiresID(t *testing.T) {
	f := newTestFetcher(t)
	err := f.PurgeProvider("")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeConfig, apperrors.GetErrorCode(err))
}

func TestPurgeExpired(t *testing.T) {
	dir := t.TempDir()
	f := New(Config{CacheDir: dir})

	fresh := filepath.Join(dir, "p1", "movies", "metadata", "fresh.json")
	stale := filepath.Join(dir, "p1", "movies", "metadata", "stale.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(fresh), 0o755))
	require.NoError(t, os.WriteFile(fresh, []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(stale, []byte(`{}`), 0o644))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	removed, err := f.PurgeExpired(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.FileExists(t, fresh)
	assert.NoFileExists(t, stale)
}

func TestFetch_Cancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	f := newTestFetcher(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.Fetch(ctx, Request{
		ProviderID: "p1", Type: models.ContentTypeMovies, Endpoint: "list", URL: server.URL,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCancelled(err))
}

func TestNew_DefaultClientTimeout(t *testing.T) {
	f := New(Config{})
	assert.Equal(t, 10*time.Second, f.client.Timeout)
}

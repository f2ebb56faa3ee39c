package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadForTest(t *testing.T, env map[string]string) error {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	for k, v := range env {
		t.Setenv(k, v)
	}
	return Load()
}

func TestLoad_Defaults(t *testing.T) {
	err := loadForTest(t, map[string]string{
		"DOCSTORE_URI": "mongodb://localhost:27017",
		"TMDB_TOKEN":   "test-token",
	})
	require.NoError(t, err)

	c := Get()
	assert.Equal(t, "mongodb://localhost:27017", c.DocStore.URI)
	assert.Equal(t, "streamhub", c.DocStore.Database)
	assert.Equal(t, "./data/cache", c.Cache.Dir)
	assert.Equal(t, 10*time.Second, c.HTTP.Timeout())
	assert.Equal(t, 3, c.HTTP.Retries)
	assert.Equal(t, time.Hour, c.Jobs.SyncInterval)
	assert.Equal(t, 3*time.Minute, c.Jobs.MergeInterval)
	assert.Equal(t, 30*time.Second, c.Jobs.MergeFirstDelay)
	assert.Equal(t, 45, c.TMDB.RateConcurrent)
	assert.Equal(t, time.Second, c.TMDB.RateDuration)
	assert.Equal(t, "info", c.Logging.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	err := loadForTest(t, map[string]string{
		"DOCSTORE_URI":      "mongodb://db:27017",
		"DOCSTORE_DB":       "catalog",
		"TMDB_TOKEN":        "token",
		"CACHE_DIR":         "/var/cache/streamhub",
		"SYNC_INTERVAL":     "30m",
		"MERGE_INTERVAL":    "90s",
		"MERGE_FIRST_DELAY": "10s",
		"HTTP_TIMEOUT_MS":   "5000",
		"HTTP_RETRIES":      "2",
		"LOG_LEVEL":         "debug",
	})
	require.NoError(t, err)

	c := Get()
	assert.Equal(t, "catalog", c.DocStore.Database)
	assert.Equal(t, "/var/cache/streamhub", c.Cache.Dir)
	assert.Equal(t, 30*time.Minute, c.Jobs.SyncInterval)
	assert.Equal(t, 90*time.Second, c.Jobs.MergeInterval)
	assert.Equal(t, 10*time.Second, c.Jobs.MergeFirstDelay)
	assert.Equal(t, 5*time.Second, c.HTTP.Timeout())
	assert.Equal(t, 2, c.HTTP.Retries)
	assert.Equal(t, "debug", c.Logging.Level)
}

func TestLoad_MissingDocStoreURI(t *testing.T) {
	err := loadForTest(t, map[string]string{
		"TMDB_TOKEN": "token",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "docstore.uri")
}

func TestLoad_MissingTMDBToken(t *testing.T) {
	err := loadForTest(t, map[string]string{
		"DOCSTORE_URI": "mongodb://localhost:27017",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tmdb.token")
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	err := loadForTest(t, map[string]string{
		"DOCSTORE_URI": "mongodb://localhost:27017",
		"TMDB_TOKEN":   "token",
		"LOG_LEVEL":    "verbose",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
}

package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glefebvre/streamhub/internal/models"
)

func TestCachePurgeJob_PurgesDeletedProviders(t *testing.T) {
	providers := &fakeProviderSource{deleted: []models.Provider{
		{ID: "gone1", Deleted: true},
		{ID: "gone2", Deleted: true},
	}}
	streams := &fakeStreamStore{}
	purger := &fakePurger{}

	job := NewCachePurgeJob(providers, streams, purger)

	raw, err := job.Run(context.Background(), nil)
	require.NoError(t, err)
	result := raw.(*CachePurgeResult)

	assert.Equal(t, 2, result.ProvidersPurged)
	assert.Equal(t, int64(6), result.StreamsRemoved)
	assert.Equal(t, []string{"gone1", "gone2"}, purger.purged)
	assert.Equal(t, []string{"gone1", "gone2"}, streams.deletedProviders)
}

func TestCachePurgeJob_FailureCountsAndContinues(t *testing.T) {
	providers := &fakeProviderSource{deleted: []models.Provider{
		{ID: "gone1", Deleted: true},
		{ID: "gone2", Deleted: true},
	}}
	streams := &fakeStreamStore{}
	purger := &fakePurger{errs: map[string]error{"gone1": errors.New("permission denied")}}

	job := NewCachePurgeJob(providers, streams, purger)

	raw, err := job.Run(context.Background(), nil)
	require.NoError(t, err)
	result := raw.(*CachePurgeResult)

	assert.Equal(t, 1, result.ProvidersPurged)
	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, []string{"gone2"}, streams.deletedProviders,
		"stream rows stay until the cache tree is gone")
}

func TestCachePurgeJob_NothingToDo(t *testing.T) {
	job := NewCachePurgeJob(&fakeProviderSource{}, &fakeStreamStore{}, &fakePurger{})

	raw, err := job.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, raw.(*CachePurgeResult).ProvidersPurged)
}

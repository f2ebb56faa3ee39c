package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/glefebvre/streamhub/internal/docstore"
	"github.com/glefebvre/streamhub/internal/models"
)

// ProviderTitleRepository persists per-provider catalog entries
type ProviderTitleRepository struct {
	coll *docstore.Collection
}

// NewProviderTitleRepository creates a provider title repository
func NewProviderTitleRepository(store *docstore.Store) *ProviderTitleRepository {
	return &ProviderTitleRepository{
		coll: store.Collection(models.ProviderTitle{}.CollectionName()),
	}
}

// EnsureIndexes declares the provider_titles collection indexes
func (r *ProviderTitleRepository) EnsureIndexes(ctx context.Context) error {
	return r.coll.EnsureIndexes(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "provider_title_key", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "provider_id", Value: 1}, {Key: "type", Value: 1}}},
		{Keys: bson.D{{Key: "provider_id", Value: 1}, {Key: "tmdb_id", Value: 1}}},
		{Keys: bson.D{{Key: "provider_id", Value: 1}, {Key: "ignored", Value: 1}}},
		{Keys: bson.D{{Key: "last_updated", Value: 1}}},
	})
}

// GetByKey returns one entry by its provider title key
func (r *ProviderTitleRepository) GetByKey(ctx context.Context, key string) (*models.ProviderTitle, error) {
	var pt models.ProviderTitle
	if err := r.coll.GetOne(ctx, bson.M{"provider_title_key": key}, &pt); err != nil {
		return nil, err
	}
	return &pt, nil
}

// GetByKeys returns the entries for a set of provider title keys
func (r *ProviderTitleRepository) GetByKeys(ctx context.Context, keys []string) ([]models.ProviderTitle, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	var titles []models.ProviderTitle
	err := r.coll.GetMany(ctx, bson.M{"provider_title_key": bson.M{"$in": keys}}, docstore.QueryOptions{}, &titles)
	return titles, err
}

// GetByProvider returns entries of one provider and content type, optionally
// restricted to those updated at or after since, optionally including ignored
// entries
func (r *ProviderTitleRepository) GetByProvider(ctx context.Context, providerID string, ct models.ContentType, since *time.Time, includeIgnored bool) ([]models.ProviderTitle, error) {
	filter := bson.M{"provider_id": providerID, "type": ct}
	if since != nil {
		filter["last_updated"] = bson.M{"$gte": *since}
	}
	if !includeIgnored {
		filter["ignored"] = false
	}

	var titles []models.ProviderTitle
	err := r.coll.GetMany(ctx, filter, docstore.QueryOptions{}, &titles)
	return titles, err
}

// GetUnmatched returns entries of one provider with no TMDB id that are not
// ignored, restricted to those updated at or after since when non-nil
func (r *ProviderTitleRepository) GetUnmatched(ctx context.Context, providerID string, since *time.Time) ([]models.ProviderTitle, error) {
	filter := bson.M{
		"provider_id": providerID,
		"tmdb_id":     nil,
		"ignored":     false,
	}
	if since != nil {
		filter["last_updated"] = bson.M{"$gte": *since}
	}

	var titles []models.ProviderTitle
	err := r.coll.GetMany(ctx, filter, docstore.QueryOptions{}, &titles)
	return titles, err
}

// GetMatchedChangedSince returns entries across the given providers that
// carry a TMDB id and were updated at or after the watermark
func (r *ProviderTitleRepository) GetMatchedChangedSince(ctx context.Context, providerIDs []string, since *time.Time) ([]models.ProviderTitle, error) {
	if len(providerIDs) == 0 {
		return nil, nil
	}
	filter := bson.M{
		"provider_id": bson.M{"$in": providerIDs},
		"tmdb_id":     bson.M{"$ne": nil},
	}
	if since != nil {
		filter["last_updated"] = bson.M{"$gte": *since}
	}

	var titles []models.ProviderTitle
	err := r.coll.GetMany(ctx, filter, docstore.QueryOptions{}, &titles)
	return titles, err
}

// GetContributors returns every entry across the given providers that shares
// the TMDB id and content type, ignored entries excluded
func (r *ProviderTitleRepository) GetContributors(ctx context.Context, ct models.ContentType, tmdbID int, providerIDs []string) ([]models.ProviderTitle, error) {
	if len(providerIDs) == 0 {
		return nil, nil
	}
	var titles []models.ProviderTitle
	err := r.coll.GetMany(ctx, bson.M{
		"type":        ct,
		"tmdb_id":     tmdbID,
		"provider_id": bson.M{"$in": providerIDs},
		"ignored":     false,
	}, docstore.QueryOptions{}, &titles)
	return titles, err
}

// BulkUpsert writes a batch of entries keyed by provider_title_key
func (r *ProviderTitleRepository) BulkUpsert(ctx context.Context, titles []models.ProviderTitle) (*docstore.BulkResult, error) {
	docs := make([]interface{}, len(titles))
	for i := range titles {
		docs[i] = titles[i]
	}
	return r.coll.BulkUpsert(ctx, "provider_title_key", docs)
}

// Update replaces one entry
func (r *ProviderTitleRepository) Update(ctx context.Context, pt *models.ProviderTitle) error {
	return r.coll.Upsert(ctx, bson.M{"provider_title_key": pt.Key}, pt)
}

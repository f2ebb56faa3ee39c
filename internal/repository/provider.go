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

// ProviderRepository reads provider configurations. The core never mutates
// providers; that belongs to the admin surface.
type ProviderRepository struct {
	coll *docstore.Collection
}

// NewProviderRepository creates a provider repository
func NewProviderRepository(store *docstore.Store) *ProviderRepository {
	return &ProviderRepository{
		coll: store.Collection(models.Provider{}.CollectionName()),
	}
}

// EnsureIndexes declares the provider collection indexes
func (r *ProviderRepository) EnsureIndexes(ctx context.Context) error {
	return r.coll.EnsureIndexes(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "enabled", Value: 1}}},
		{Keys: bson.D{{Key: "priority", Value: 1}}},
	})
}

// GetByID returns one provider by its identifier
func (r *ProviderRepository) GetByID(ctx context.Context, id string) (*models.Provider, error) {
	var p models.Provider
	if err := r.coll.GetOne(ctx, bson.M{"id": id}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetActive returns enabled, non-deleted providers ordered by priority ascending
func (r *ProviderRepository) GetActive(ctx context.Context) ([]models.Provider, error) {
	var providers []models.Provider
	err := r.coll.GetMany(ctx,
		bson.M{"enabled": true, "deleted": false},
		docstore.QueryOptions{Sort: bson.D{{Key: "priority", Value: 1}}},
		&providers)
	return providers, err
}

// GetDeleted returns providers flagged as deleted, used by the cache purge job
func (r *ProviderRepository) GetDeleted(ctx context.Context) ([]models.Provider, error) {
	var providers []models.Provider
	err := r.coll.GetMany(ctx, bson.M{"deleted": true}, docstore.QueryOptions{}, &providers)
	return providers, err
}

// GetChangedSince returns every provider, in any state, whose configuration
// changed at or after since. A nil since returns all providers. Deleting,
// disabling or reprioritizing a provider bumps only the provider row, so
// the merge job uses this to find titles needing a rebuild.
func (r *ProviderRepository) GetChangedSince(ctx context.Context, since *time.Time) ([]models.Provider, error) {
	query := bson.M{}
	if since != nil {
		query["last_updated"] = bson.M{"$gte": since}
	}
	var providers []models.Provider
	err := r.coll.GetMany(ctx, query, docstore.QueryOptions{}, &providers)
	return providers, err
}

// PriorityMap returns provider id -> priority for every known provider
func (r *ProviderRepository) PriorityMap(ctx context.Context) (map[string]int, error) {
	var providers []models.Provider
	if err := r.coll.GetMany(ctx, bson.M{}, docstore.QueryOptions{}, &providers); err != nil {
		return nil, err
	}
	m := make(map[string]int, len(providers))
	for _, p := range providers {
		m[p.ID] = p.Priority
	}
	return m, nil
}

package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/glefebvre/streamhub/internal/docstore"
	"github.com/glefebvre/streamhub/internal/models"
)

// TitleRepository persists merged catalog records
type TitleRepository struct {
	coll *docstore.Collection
}

// NewTitleRepository creates a title repository
func NewTitleRepository(store *docstore.Store) *TitleRepository {
	return &TitleRepository{
		coll: store.Collection(models.Title{}.CollectionName()),
	}
}

// EnsureIndexes declares the titles collection indexes
func (r *TitleRepository) EnsureIndexes(ctx context.Context) error {
	return r.coll.EnsureIndexes(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "title_key", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "type", Value: 1}}},
		{Keys: bson.D{{Key: "name", Value: "text"}}},
		{Keys: bson.D{{Key: "release_date", Value: 1}}},
		{Keys: bson.D{{Key: "type", Value: 1}, {Key: "release_date", Value: 1}}},
	})
}

// GetByKey returns one merged title
func (r *TitleRepository) GetByKey(ctx context.Context, key string) (*models.Title, error) {
	var t models.Title
	if err := r.coll.GetOne(ctx, bson.M{"title_key": key}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ExistingKeys filters the given keys down to those present in the catalog
func (r *TitleRepository) ExistingKeys(ctx context.Context, keys []string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	var titles []models.Title
	err := r.coll.GetMany(ctx,
		bson.M{"title_key": bson.M{"$in": keys}},
		docstore.QueryOptions{Projection: bson.M{"title_key": 1}},
		&titles)
	if err != nil {
		return nil, err
	}
	existing := make([]string, 0, len(titles))
	for _, t := range titles {
		existing = append(existing, t.Key)
	}
	return existing, nil
}

// Upsert replaces one merged title
func (r *TitleRepository) Upsert(ctx context.Context, t *models.Title) error {
	return r.coll.Upsert(ctx, bson.M{"title_key": t.Key}, t)
}

// Delete removes one merged title
func (r *TitleRepository) Delete(ctx context.Context, key string) error {
	_, err := r.coll.Delete(ctx, bson.M{"title_key": key})
	return err
}

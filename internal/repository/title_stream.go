package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/glefebvre/streamhub/internal/docstore"
	"github.com/glefebvre/streamhub/internal/models"
)

// TitleStreamRepository persists per-(title, stream, provider) routing records
type TitleStreamRepository struct {
	coll *docstore.Collection
}

// NewTitleStreamRepository creates a title stream repository
func NewTitleStreamRepository(store *docstore.Store) *TitleStreamRepository {
	return &TitleStreamRepository{
		coll: store.Collection(models.TitleStream{}.CollectionName()),
	}
}

// EnsureIndexes declares the title_streams collection indexes
func (r *TitleStreamRepository) EnsureIndexes(ctx context.Context) error {
	return r.coll.EnsureIndexes(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "stream_key", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "title_key", Value: 1}, {Key: "stream_id", Value: 1}}},
		{Keys: bson.D{{Key: "provider_id", Value: 1}}},
		{Keys: bson.D{{Key: "title_key", Value: 1}, {Key: "provider_id", Value: 1}}},
	})
}

// GetByTitle returns every routing record of one merged title
func (r *TitleStreamRepository) GetByTitle(ctx context.Context, titleKey string) ([]models.TitleStream, error) {
	var streams []models.TitleStream
	err := r.coll.GetMany(ctx, bson.M{"title_key": titleKey}, docstore.QueryOptions{}, &streams)
	return streams, err
}

// BulkUpsert writes a batch of routing records keyed by stream_key
func (r *TitleStreamRepository) BulkUpsert(ctx context.Context, streams []models.TitleStream) (*docstore.BulkResult, error) {
	docs := make([]interface{}, len(streams))
	for i := range streams {
		docs[i] = streams[i]
	}
	return r.coll.BulkUpsert(ctx, "stream_key", docs)
}

// DeleteStale removes the routing records of one title whose compound keys
// are not in the kept set
func (r *TitleStreamRepository) DeleteStale(ctx context.Context, titleKey string, keptKeys []string) (int64, error) {
	filter := bson.M{"title_key": titleKey}
	if len(keptKeys) > 0 {
		filter["stream_key"] = bson.M{"$nin": keptKeys}
	}
	return r.coll.DeleteMany(ctx, filter)
}

// DeleteByProvider removes every routing record of one provider
func (r *TitleStreamRepository) DeleteByProvider(ctx context.Context, providerID string) (int64, error) {
	return r.coll.DeleteMany(ctx, bson.M{"provider_id": providerID})
}

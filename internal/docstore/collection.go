package docstore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	apperrors "github.com/glefebvre/streamhub/internal/errors"
	"github.com/glefebvre/streamhub/internal/logger"
)

// Collection exposes the typed CRUD vocabulary repositories are built on.
// Queries outside this vocabulary are not available to handlers or jobs.
type Collection struct {
	coll   *mongo.Collection
	logger *logger.Logger
}

// QueryOptions narrows a GetMany call
type QueryOptions struct {
	Sort       bson.D
	Projection bson.M
	Limit      int64
}

// ItemError is the failure of a single document inside a bulk operation
type ItemError struct {
	Index   int
	Message string
}

// BulkResult summarizes a bulk operation. Per-item failures are collected in
// Errors; the operation continues past them.
type BulkResult struct {
	Matched  int64
	Modified int64
	Upserted int64
	Inserted int64
	Errors   []ItemError
}

// Name returns the collection name
func (c *Collection) Name() string {
	return c.coll.Name()
}

// GetOne decodes the first document matching the filter into out.
// Returns a NOT_FOUND error when no document matches.
func (c *Collection) GetOne(ctx context.Context, filter bson.M, out interface{}) error {
	err := c.coll.FindOne(ctx, filter).Decode(out)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperrors.NotFoundError(c.coll.Name(), fmt.Sprintf("%v", filter))
		}
		return apperrors.DocStoreError(fmt.Sprintf("getOne on %s failed", c.coll.Name()), err)
	}
	return nil
}

// GetMany decodes all documents matching the filter into out, which must be
// a pointer to a slice
func (c *Collection) GetMany(ctx context.Context, filter bson.M, opts QueryOptions, out interface{}) error {
	findOpts := options.Find()
	if opts.Sort != nil {
		findOpts.SetSort(opts.Sort)
	}
	if opts.Projection != nil {
		findOpts.SetProjection(opts.Projection)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}

	cursor, err := c.coll.Find(ctx, filter, findOpts)
	if err != nil {
		return apperrors.DocStoreError(fmt.Sprintf("getMany on %s failed", c.coll.Name()), err)
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, out); err != nil {
		return apperrors.DocStoreError(fmt.Sprintf("decoding %s documents failed", c.coll.Name()), err)
	}
	return nil
}

// Upsert replaces the document matching the filter, inserting it when absent
func (c *Collection) Upsert(ctx context.Context, filter bson.M, doc interface{}) error {
	_, err := c.coll.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return apperrors.DocStoreError(fmt.Sprintf("upsert on %s failed", c.coll.Name()), err)
	}
	return nil
}

// UpdateOne applies an update document to the first match
func (c *Collection) UpdateOne(ctx context.Context, filter bson.M, update bson.M, upsert bool) error {
	_, err := c.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(upsert))
	if err != nil {
		return apperrors.DocStoreError(fmt.Sprintf("update on %s failed", c.coll.Name()), err)
	}
	return nil
}

// BulkUpsert replaces every document by the value of keyField, inserting the
// ones that are absent. The write is unordered: individual failures are
// collected into the result and do not abort the batch.
func (c *Collection) BulkUpsert(ctx context.Context, keyField string, docs []interface{}) (*BulkResult, error) {
	if len(docs) == 0 {
		return &BulkResult{}, nil
	}

	writes := make([]mongo.WriteModel, 0, len(docs))
	for i, doc := range docs {
		raw, err := bson.Marshal(doc)
		if err != nil {
			return nil, apperrors.DocStoreError(fmt.Sprintf("encoding document %d for %s failed", i, c.coll.Name()), err)
		}
		keyVal := bson.Raw(raw).Lookup(keyField)
		if keyVal.Type == 0 {
			return nil, apperrors.DocStoreError(fmt.Sprintf("document %d for %s is missing key field %q", i, c.coll.Name(), keyField), nil)
		}
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{keyField: keyVal}).
			SetReplacement(doc).
			SetUpsert(true))
	}

	return c.bulkWrite(ctx, writes)
}

// BulkInsert inserts documents, skipping over individual failures
func (c *Collection) BulkInsert(ctx context.Context, docs []interface{}) (*BulkResult, error) {
	if len(docs) == 0 {
		return &BulkResult{}, nil
	}

	writes := make([]mongo.WriteModel, 0, len(docs))
	for _, doc := range docs {
		writes = append(writes, mongo.NewInsertOneModel().SetDocument(doc))
	}

	return c.bulkWrite(ctx, writes)
}

func (c *Collection) bulkWrite(ctx context.Context, writes []mongo.WriteModel) (*BulkResult, error) {
	res, err := c.coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))

	result := &BulkResult{}
	if res != nil {
		result.Matched = res.MatchedCount
		result.Modified = res.ModifiedCount
		result.Upserted = res.UpsertedCount
		result.Inserted = res.InsertedCount
	}

	if err != nil {
		var bwe mongo.BulkWriteException
		if errors.As(err, &bwe) {
			// Unordered writes continue past per-item failures; surface them
			for _, we := range bwe.WriteErrors {
				result.Errors = append(result.Errors, ItemError{
					Index:   we.Index,
					Message: we.Message,
				})
			}
			c.logger.WithFields(map[string]interface{}{
				"collection": c.coll.Name(),
				"failed":     len(result.Errors),
			}).Warn("bulk write completed with per-item errors")
			return result, nil
		}
		return result, apperrors.DocStoreError(fmt.Sprintf("bulk write on %s failed", c.coll.Name()), err)
	}

	return result, nil
}

// Delete removes the first document matching the filter
func (c *Collection) Delete(ctx context.Context, filter bson.M) (int64, error) {
	res, err := c.coll.DeleteOne(ctx, filter)
	if err != nil {
		return 0, apperrors.DocStoreError(fmt.Sprintf("delete on %s failed", c.coll.Name()), err)
	}
	return res.DeletedCount, nil
}

// DeleteMany removes every document matching the filter
func (c *Collection) DeleteMany(ctx context.Context, filter bson.M) (int64, error) {
	res, err := c.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, apperrors.DocStoreError(fmt.Sprintf("deleteMany on %s failed", c.coll.Name()), err)
	}
	return res.DeletedCount, nil
}

// Count returns the number of documents matching the filter
func (c *Collection) Count(ctx context.Context, filter bson.M) (int64, error) {
	n, err := c.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, apperrors.DocStoreError(fmt.Sprintf("count on %s failed", c.coll.Name()), err)
	}
	return n, nil
}

// EnsureIndexes creates the given indexes if they do not already exist
func (c *Collection) EnsureIndexes(ctx context.Context, indexes []mongo.IndexModel) error {
	if len(indexes) == 0 {
		return nil
	}
	_, err := c.coll.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return apperrors.DocStoreError(fmt.Sprintf("ensuring indexes on %s failed", c.coll.Name()), err)
	}
	return nil
}

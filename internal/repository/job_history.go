package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/glefebvre/streamhub/internal/docstore"
	apperrors "github.com/glefebvre/streamhub/internal/errors"
	"github.com/glefebvre/streamhub/internal/models"
)

// JobHistoryRepository records job run lifecycle and serves as the watermark
// source for incremental runs
type JobHistoryRepository struct {
	coll *docstore.Collection
}

// NewJobHistoryRepository creates a job history repository
func NewJobHistoryRepository(store *docstore.Store) *JobHistoryRepository {
	return &JobHistoryRepository{
		coll: store.Collection(models.JobHistory{}.CollectionName()),
	}
}

// EnsureIndexes declares the job_history collection indexes
func (r *JobHistoryRepository) EnsureIndexes(ctx context.Context) error {
	return r.coll.EnsureIndexes(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "job_name", Value: 1}, {Key: "provider_id", Value: 1}}},
	})
}

// Get returns the history row of one job, creating an idle row on first use
func (r *JobHistoryRepository) Get(ctx context.Context, jobName string) (*models.JobHistory, error) {
	var h models.JobHistory
	err := r.coll.GetOne(ctx, bson.M{"job_name": jobName}, &h)
	if err == nil {
		return &h, nil
	}
	if apperrors.GetErrorCode(err) != apperrors.CodeNotFound {
		return nil, err
	}

	now := time.Now().UTC()
	h = models.JobHistory{
		JobName:     jobName,
		Status:      models.JobStatusIdle,
		CreatedAt:   now,
		LastUpdated: now,
	}
	if err := r.coll.Upsert(ctx, bson.M{"job_name": jobName}, h); err != nil {
		return nil, err
	}
	return &h, nil
}

// GetAll returns every job history row
func (r *JobHistoryRepository) GetAll(ctx context.Context) ([]models.JobHistory, error) {
	var rows []models.JobHistory
	err := r.coll.GetMany(ctx, bson.M{}, docstore.QueryOptions{Sort: bson.D{{Key: "job_name", Value: 1}}}, &rows)
	return rows, err
}

// MarkRunning transitions the job to running and bumps its execution count
func (r *JobHistoryRepository) MarkRunning(ctx context.Context, jobName, runID string) error {
	return r.coll.UpdateOne(ctx, bson.M{"job_name": jobName}, bson.M{
		"$set": bson.M{
			"status":       models.JobStatusRunning,
			"last_run_id":  runID,
			"last_error":   nil,
			"last_updated": time.Now().UTC(),
		},
		"$inc": bson.M{"execution_count": 1},
	}, true)
}

// errorNoter lets a result summary carry a non-fatal error note into
// last_error on an otherwise completed run.
type errorNoter interface {
	ErrorNote() *string
}

// MarkCompleted records a successful run and advances the watermark to the
// run's start time. A result carrying an error note keeps it visible in
// last_error; otherwise last_error is cleared.
func (r *JobHistoryRepository) MarkCompleted(ctx context.Context, jobName string, startedAt time.Time, result interface{}) error {
	var lastError interface{}
	if n, ok := result.(errorNoter); ok {
		if note := n.ErrorNote(); note != nil {
			lastError = *note
		}
	}
	return r.coll.UpdateOne(ctx, bson.M{"job_name": jobName}, bson.M{
		"$set": bson.M{
			"status":         models.JobStatusCompleted,
			"last_execution": startedAt.UTC(),
			"last_result":    result,
			"last_error":     lastError,
			"last_updated":   time.Now().UTC(),
		},
	}, false)
}

// MarkFailed records a failed run; the watermark is not advanced
func (r *JobHistoryRepository) MarkFailed(ctx context.Context, jobName, errMsg string) error {
	return r.coll.UpdateOne(ctx, bson.M{"job_name": jobName}, bson.M{
		"$set": bson.M{
			"status":       models.JobStatusFailed,
			"last_error":   errMsg,
			"last_updated": time.Now().UTC(),
		},
	}, false)
}

// MarkCancelled records an externally cancelled run; the watermark is not
// advanced
func (r *JobHistoryRepository) MarkCancelled(ctx context.Context, jobName string) error {
	return r.coll.UpdateOne(ctx, bson.M{"job_name": jobName}, bson.M{
		"$set": bson.M{
			"status":       models.JobStatusCancelled,
			"last_updated": time.Now().UTC(),
		},
	}, false)
}

package docstore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	apperrors "github.com/glefebvre/streamhub/internal/errors"
	"github.com/glefebvre/streamhub/internal/logger"
)

const connectTimeout = 10 * time.Second

// Store wraps a connection to the document database. It is safe for
// concurrent use; repositories obtain their collections from it.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger *logger.Logger
}

// Connect establishes the document store connection and verifies it
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDocStoreConnection, "failed to connect to document store")
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, apperrors.Wrap(err, apperrors.CodeDocStoreConnection, "document store ping failed")
	}

	return &Store{
		client: client,
		db:     client.Database(dbName),
		logger: logger.AppLogger(),
	}, nil
}

// Collection returns a typed operation handle for the named collection
func (s *Store) Collection(name string) *Collection {
	return &Collection{
		coll:   s.db.Collection(name),
		logger: s.logger,
	}
}

// HealthCheck verifies document store connectivity
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return apperrors.Wrap(err, apperrors.CodeDocStoreConnection, "document store ping failed")
	}
	return nil
}

// Close disconnects from the document store
func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return apperrors.DocStoreError("failed to disconnect from document store", err)
	}
	return nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/pathline/lis/settings"
)

func NewRepository(db *mongo.Database, logger *zap.SugaredLogger) settings.Repository {
	return &Repository{
		collection: db.Collection(settings.CollectionName),
		logger:     logger,
	}
}

type Repository struct {
	collection *mongo.Collection
	logger     *zap.SugaredLogger
}

func (r *Repository) Get(ctx context.Context) (*settings.Settings, error) {
	result := &settings.Settings{}
	err := r.collection.FindOne(ctx, bson.M{"_id": settings.DocumentId}).Decode(result)
	if err == mongo.ErrNoDocuments {
		return nil, settings.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Repository) Save(ctx context.Context, s settings.Settings) (*settings.Settings, error) {
	s.UpdatedTime = time.Now()
	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": settings.DocumentId}, s, opts); err != nil {
		return nil, fmt.Errorf("unable to save settings: %w", err)
	}
	return &s, nil
}

package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/pathline/lis/store"
	"github.com/pathline/lis/users"
)

func NewRepository(db *mongo.Database, logger *zap.SugaredLogger, lifecycle fx.Lifecycle) (users.Repository, error) {
	repo := &Repository{
		collection: db.Collection(users.CollectionName),
		logger:     logger,
	}

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return repo.Initialize(ctx)
		},
	})

	return repo, nil
}

type Repository struct {
	collection *mongo.Collection
	logger     *zap.SugaredLogger
}

func (r *Repository) Initialize(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "email", Value: 1},
			},
			Options: options.Index().
				SetBackground(true).
				SetUnique(true).
				SetName("UniqueUserEmail"),
		},
	})
	return err
}

func (r *Repository) Get(ctx context.Context, id string) (*users.User, error) {
	objId, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, users.ErrNotFound
	}
	return r.getOne(ctx, bson.M{"_id": objId})
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*users.User, error) {
	return r.getOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (r *Repository) Create(ctx context.Context, user users.User) (*users.User, error) {
	now := time.Now()
	user.Id = nil
	user.CreatedTime = now
	user.UpdatedTime = now

	res, err := r.collection.InsertOne(ctx, user)
	if store.IsDuplicateKeyError(err) {
		return nil, users.ErrDuplicate
	} else if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return r.getOne(ctx, bson.M{"_id": res.InsertedID.(primitive.ObjectID)})
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}

func (r *Repository) getOne(ctx context.Context, selector bson.M) (*users.User, error) {
	user := &users.User{}
	err := r.collection.FindOne(ctx, selector).Decode(user)
	if err == mongo.ErrNoDocuments {
		return nil, users.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return user, nil
}

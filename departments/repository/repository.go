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

	"github.com/pathline/lis/departments"
	"github.com/pathline/lis/errors"
	"github.com/pathline/lis/store"
)

func NewRepository(db *mongo.Database, logger *zap.SugaredLogger, lifecycle fx.Lifecycle) (departments.Service, error) {
	repo := &Repository{
		collection: db.Collection(departments.CollectionName),
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
				{Key: "name", Value: 1},
			},
			Options: options.Index().
				SetBackground(true).
				SetUnique(true).
				SetName("UniqueActiveDepartmentName").
				SetPartialFilterExpression(bson.D{{Key: "status", Value: store.RecordStatusActive}}),
		},
	})
	return err
}

func (r *Repository) Get(ctx context.Context, id string) (*departments.Department, error) {
	objId, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, departments.ErrNotFound
	}
	return r.getOne(ctx, bson.M{"_id": objId, "status": store.RecordStatusActive})
}

func (r *Repository) List(ctx context.Context, pagination store.Pagination) ([]*departments.Department, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetSkip(int64(pagination.Offset))
	if pagination.Limit > 0 {
		opts.SetLimit(int64(pagination.Limit))
	}

	cursor, err := r.collection.Find(ctx, store.ActiveFilter(), opts)
	if err != nil {
		return nil, fmt.Errorf("error listing departments: %w", err)
	}

	list := make([]*departments.Department, 0)
	if err = cursor.All(ctx, &list); err != nil {
		return nil, fmt.Errorf("error decoding departments list: %w", err)
	}
	return list, nil
}

func (r *Repository) Create(ctx context.Context, department *departments.Department) (*departments.Department, error) {
	department.Name = strings.TrimSpace(department.Name)
	if department.Name == "" {
		return nil, errors.Validation("Department name is required")
	}

	now := time.Now()
	department.Id = nil
	department.Status = store.RecordStatusActive
	department.CreatedTime = now
	department.UpdatedTime = now

	res, err := r.collection.InsertOne(ctx, department)
	if store.IsDuplicateKeyError(err) {
		return nil, departments.ErrDuplicate
	} else if err != nil {
		return nil, fmt.Errorf("error creating department: %w", err)
	}

	return r.getOne(ctx, bson.M{"_id": res.InsertedID.(primitive.ObjectID)})
}

func (r *Repository) Update(ctx context.Context, id string, update *departments.DepartmentUpdate) (*departments.Department, error) {
	objId, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, departments.ErrNotFound
	}

	set := bson.M{"updatedTime": time.Now()}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, errors.Validation("Department name is required")
		}
		set["name"] = name
	}
	if update.Description != nil {
		set["description"] = *update.Description
	}

	return r.updateOne(ctx, bson.M{"_id": objId, "status": store.RecordStatusActive}, bson.M{"$set": set})
}

// Archive soft deletes the department. Tests keep referencing it.
func (r *Repository) Archive(ctx context.Context, id string) error {
	objId, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return departments.ErrNotFound
	}

	_, err = r.updateOne(ctx, bson.M{"_id": objId, "status": store.RecordStatusActive}, bson.M{
		"$set": bson.M{"status": store.RecordStatusArchived, "updatedTime": time.Now()},
	})
	return err
}

func (r *Repository) getOne(ctx context.Context, selector bson.M) (*departments.Department, error) {
	department := &departments.Department{}
	err := r.collection.FindOne(ctx, selector).Decode(department)
	if err == mongo.ErrNoDocuments {
		return nil, departments.ErrNotFound
	} else if err != nil {
		return nil, err
	}

	return department, nil
}

func (r *Repository) updateOne(ctx context.Context, selector, update bson.M) (*departments.Department, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	department := &departments.Department{}
	err := r.collection.FindOneAndUpdate(ctx, selector, update, opts).Decode(department)
	if err == mongo.ErrNoDocuments {
		return nil, departments.ErrNotFound
	} else if store.IsDuplicateKeyError(err) {
		return nil, departments.ErrDuplicate
	} else if err != nil {
		return nil, fmt.Errorf("unable to update department: %w", err)
	}

	return department, nil
}

package repository

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/pathline/lis/departments"
	"github.com/pathline/lis/errors"
	"github.com/pathline/lis/labtests"
	"github.com/pathline/lis/store"
)

type Params struct {
	fx.In

	Database    *mongo.Database
	Departments departments.Service
	Logger      *zap.SugaredLogger
	Lifecycle   fx.Lifecycle
}

func NewRepository(p Params) (labtests.Service, error) {
	repo := &Repository{
		collection:  p.Database.Collection(labtests.CollectionName),
		departments: p.Departments,
		logger:      p.Logger,
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return repo.Initialize(ctx)
		},
	})

	return repo, nil
}

type Repository struct {
	collection  *mongo.Collection
	departments departments.Service
	logger      *zap.SugaredLogger
}

func (r *Repository) Initialize(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "department", Value: 1},
				{Key: "testName", Value: 1},
			},
			Options: options.Index().
				SetBackground(true).
				SetName("TestsByDepartment"),
		},
	})
	return err
}

func (r *Repository) Get(ctx context.Context, id string) (*labtests.Test, error) {
	objId, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, labtests.ErrNotFound
	}
	return r.getOne(ctx, bson.M{"_id": objId, "status": store.RecordStatusActive})
}

func (r *Repository) List(ctx context.Context, filter labtests.Filter, pagination store.Pagination) ([]*labtests.Test, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "testName", Value: 1}}).
		SetSkip(int64(pagination.Offset))
	if pagination.Limit > 0 {
		opts.SetLimit(int64(pagination.Limit))
	}

	selector := store.ActiveFilter()
	if filter.DepartmentId != nil {
		departmentId, err := primitive.ObjectIDFromHex(*filter.DepartmentId)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid department id", errors.BadRequest)
		}
		selector["department"] = departmentId
	}
	if filter.Search != nil && *filter.Search != "" {
		selector["testName"] = primitive.Regex{Pattern: regexp.QuoteMeta(*filter.Search), Options: "i"}
	}

	return r.find(ctx, selector, opts)
}

func (r *Repository) FindActive(ctx context.Context, ids []primitive.ObjectID) ([]*labtests.Test, error) {
	if len(ids) == 0 {
		return []*labtests.Test{}, nil
	}
	selector := store.ActiveFilter()
	selector["_id"] = bson.M{"$in": ids}
	return r.find(ctx, selector)
}

func (r *Repository) FindByIds(ctx context.Context, ids []primitive.ObjectID) ([]*labtests.Test, error) {
	if len(ids) == 0 {
		return []*labtests.Test{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (r *Repository) Create(ctx context.Context, test *labtests.Test) (*labtests.Test, error) {
	if err := test.Validate(); err != nil {
		return nil, err
	}
	if err := r.checkDepartment(ctx, test.Department); err != nil {
		return nil, err
	}

	now := time.Now()
	test.Id = nil
	test.Status = store.RecordStatusActive
	test.CreatedTime = now
	test.UpdatedTime = now

	res, err := r.collection.InsertOne(ctx, test)
	if err != nil {
		return nil, fmt.Errorf("error creating test: %w", err)
	}

	return r.getOne(ctx, bson.M{"_id": res.InsertedID.(primitive.ObjectID)})
}

func (r *Repository) Update(ctx context.Context, id string, update *labtests.TestUpdate) (*labtests.Test, error) {
	objId, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, labtests.ErrNotFound
	}

	set := bson.M{"updatedTime": time.Now()}
	if update.TestName != nil {
		if *update.TestName == "" {
			return nil, errors.Validation("Test name is required")
		}
		set["testName"] = *update.TestName
	}
	if update.Department != nil {
		if err := r.checkDepartment(ctx, update.Department); err != nil {
			return nil, err
		}
		set["department"] = update.Department
	}
	if update.SampleType != nil {
		set["sampleType"] = *update.SampleType
	}
	if update.Unit != nil {
		set["unit"] = *update.Unit
	}
	if update.Method != nil {
		set["method"] = *update.Method
	}
	if update.Price != nil {
		if *update.Price < 0 {
			return nil, errors.Validation("Price must not be negative")
		}
		set["price"] = *update.Price
	}
	if update.Tat != nil {
		set["tat"] = *update.Tat
	}
	if update.NormalRanges != nil {
		set["normalRanges"] = update.NormalRanges
	}

	return r.updateOne(ctx, bson.M{"_id": objId, "status": store.RecordStatusActive}, bson.M{"$set": set})
}

func (r *Repository) Archive(ctx context.Context, id string) error {
	objId, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return labtests.ErrNotFound
	}
	_, err = r.updateOne(ctx, bson.M{"_id": objId, "status": store.RecordStatusActive}, bson.M{
		"$set": bson.M{"status": store.RecordStatusArchived, "updatedTime": time.Now()},
	})
	return err
}

func (r *Repository) checkDepartment(ctx context.Context, id *primitive.ObjectID) error {
	if id == nil {
		return errors.Validation("Department is required")
	}
	if _, err := r.departments.Get(ctx, id.Hex()); err == departments.ErrNotFound {
		return labtests.ErrDepartmentNotFound
	} else if err != nil {
		return err
	}
	return nil
}

func (r *Repository) find(ctx context.Context, selector bson.M, opts ...*options.FindOptions) ([]*labtests.Test, error) {
	cursor, err := r.collection.Find(ctx, selector, opts...)
	if err != nil {
		return nil, fmt.Errorf("error listing tests: %w", err)
	}

	list := make([]*labtests.Test, 0)
	if err = cursor.All(ctx, &list); err != nil {
		return nil, fmt.Errorf("error decoding tests list: %w", err)
	}
	return list, nil
}

func (r *Repository) getOne(ctx context.Context, selector bson.M) (*labtests.Test, error) {
	test := &labtests.Test{}
	err := r.collection.FindOne(ctx, selector).Decode(test)
	if err == mongo.ErrNoDocuments {
		return nil, labtests.ErrNotFound
	} else if err != nil {
		return nil, err
	}

	return test, nil
}

func (r *Repository) updateOne(ctx context.Context, selector, update bson.M) (*labtests.Test, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	test := &labtests.Test{}
	err := r.collection.FindOneAndUpdate(ctx, selector, update, opts).Decode(test)
	if err == mongo.ErrNoDocuments {
		return nil, labtests.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("unable to update test: %w", err)
	}

	return test, nil
}

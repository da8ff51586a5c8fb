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

	"github.com/pathline/lis/deletions"
	"github.com/pathline/lis/labtests"
	"github.com/pathline/lis/patients"
	"github.com/pathline/lis/samples"
	"github.com/pathline/lis/store"
)

const invoicesCollectionName = "invoices"

type Params struct {
	fx.In

	Database      *mongo.Database
	DeletionsRepo deletions.Repository[samples.Sample]
	Logger        *zap.SugaredLogger
	Lifecycle     fx.Lifecycle
}

func NewRepository(p Params) (samples.Repository, error) {
	repo := &Repository{
		collection:    p.Database.Collection(samples.CollectionName),
		deletionsRepo: p.DeletionsRepo,
		logger:        p.Logger,
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return repo.Initialize(ctx)
		},
	})

	return repo, nil
}

type Repository struct {
	collection    *mongo.Collection
	deletionsRepo deletions.Repository[samples.Sample]
	logger        *zap.SugaredLogger
}

func (r *Repository) Initialize(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "sampleId", Value: 1},
			},
			Options: options.Index().
				SetBackground(true).
				SetUnique(true).
				SetName("UniqueSampleId"),
		},
		{
			Keys: bson.D{
				{Key: "invoice", Value: 1},
			},
			Options: options.Index().
				SetBackground(true).
				SetUnique(true).
				SetName("UniqueSampleInvoice"),
		},
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "createdTime", Value: -1},
			},
			Options: options.Index().
				SetBackground(true).
				SetName("SamplesByStatus"),
		},
		{
			Keys: bson.D{
				{Key: "patient", Value: 1},
			},
			Options: options.Index().
				SetBackground(true).
				SetName("SamplesByPatient"),
		},
		{
			Keys: bson.D{
				{Key: "collectionDate", Value: 1},
			},
			Options: options.Index().
				SetBackground(true).
				SetName("SamplesByCollectionDate"),
		},
	})
	return err
}

func (r *Repository) Create(ctx context.Context, sample *samples.Sample) (*samples.Sample, error) {
	now := time.Now()
	sample.Id = nil
	sample.CreatedTime = now
	sample.UpdatedTime = now
	if sample.Status == "" {
		sample.Status = samples.StatusPending
	}

	res, err := r.collection.InsertOne(ctx, sample)
	if err != nil {
		return nil, fmt.Errorf("error creating sample: %w", err)
	}

	id := res.InsertedID.(primitive.ObjectID)
	sample.Id = &id
	return sample, nil
}

func (r *Repository) Get(ctx context.Context, id primitive.ObjectID) (*samples.Sample, error) {
	return r.getOne(ctx, bson.M{"_id": id})
}

func (r *Repository) FindByInvoice(ctx context.Context, invoiceId primitive.ObjectID) (*samples.Sample, error) {
	return r.getOne(ctx, bson.M{"invoice": invoiceId})
}

func (r *Repository) GetDetails(ctx context.Context, id primitive.ObjectID) (*samples.SampleDetails, error) {
	pipeline := append(mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": id}}},
	}, detailsStages()...)

	list, err := r.aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, samples.ErrNotFound
	}
	return list[0], nil
}

func (r *Repository) List(ctx context.Context, filter samples.Filter, pagination store.Pagination) (*samples.ListResult, error) {
	selector := listSelector(filter)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: selector}},
		{{Key: "$sort", Value: bson.D{{Key: "createdTime", Value: -1}}}},
		{{Key: "$skip", Value: int64(pagination.Offset)}},
	}
	if pagination.Limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: int64(pagination.Limit)}})
	}
	pipeline = append(pipeline, detailsStages()...)

	list, err := r.aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	count, err := r.collection.CountDocuments(ctx, selector)
	if err != nil {
		return nil, fmt.Errorf("error counting samples: %w", err)
	}

	return &samples.ListResult{Samples: list, TotalCount: int(count)}, nil
}

func (r *Repository) Update(ctx context.Context, id primitive.ObjectID, update samples.SampleUpdate) (*samples.Sample, error) {
	set := bson.M{"updatedTime": time.Now()}
	if update.SampleType != nil {
		set["sampleType"] = *update.SampleType
	}
	if update.Remarks != nil {
		set["remarks"] = *update.Remarks
	}
	return r.updateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
}

func (r *Repository) SetStatus(ctx context.Context, id primitive.ObjectID, expected *samples.Status, update samples.StatusUpdate) (*samples.Sample, error) {
	selector := bson.M{"_id": id}
	if expected != nil {
		selector["status"] = *expected
	}

	set := bson.M{
		"status":      update.Status,
		"updatedTime": time.Now(),
	}
	if update.CollectionDate != nil {
		set["collectionDate"] = *update.CollectionDate
	}
	if update.CollectedBy != "" {
		set["collectedBy"] = update.CollectedBy
	}
	if update.Remarks != nil {
		set["remarks"] = *update.Remarks
	}

	return r.updateOne(ctx, selector, bson.M{"$set": set})
}

// Delete archives and removes the sample. Results must be removed by the caller.
func (r *Repository) Delete(ctx context.Context, id primitive.ObjectID, metadata deletions.Metadata) error {
	sample, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := r.deletionsRepo.Archive(ctx, *sample, metadata); err != nil {
		return err
	}

	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("unable to delete sample: %w", err)
	}
	if res.DeletedCount == 0 {
		return samples.ErrNotFound
	}
	return nil
}

func (r *Repository) aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]*samples.SampleDetails, error) {
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("error listing samples: %w", err)
	}

	list := make([]*samples.SampleDetails, 0)
	if err := cursor.All(ctx, &list); err != nil {
		return nil, fmt.Errorf("error decoding samples list: %w", err)
	}
	for _, s := range list {
		s.OrderTests()
	}
	return list, nil
}

func (r *Repository) getOne(ctx context.Context, selector bson.M) (*samples.Sample, error) {
	sample := &samples.Sample{}
	err := r.collection.FindOne(ctx, selector).Decode(sample)
	if err == mongo.ErrNoDocuments {
		return nil, samples.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return sample, nil
}

func (r *Repository) updateOne(ctx context.Context, selector, update bson.M) (*samples.Sample, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	sample := &samples.Sample{}
	err := r.collection.FindOneAndUpdate(ctx, selector, update, opts).Decode(sample)
	if err == mongo.ErrNoDocuments {
		return nil, samples.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("unable to update sample: %w", err)
	}
	return sample, nil
}

func listSelector(filter samples.Filter) bson.M {
	selector := bson.M{}
	if cond := filter.TimeRange.Filter(); cond != nil {
		selector["createdTime"] = cond
	}
	if len(filter.Statuses) > 0 {
		selector["status"] = bson.M{"$in": filter.Statuses}
	}
	if filter.PatientId != nil {
		selector["patient"] = filter.PatientId
	}
	if filter.Search != nil && *filter.Search != "" {
		selector["sampleId"] = primitive.Regex{Pattern: regexp.QuoteMeta(*filter.Search), Options: "i"}
	}
	return selector
}

func detailsStages() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$lookup", Value: bson.M{
			"from":         patients.CollectionName,
			"localField":   "patient",
			"foreignField": "_id",
			"as":           "patientDoc",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$patientDoc", "preserveNullAndEmptyArrays": true}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         labtests.CollectionName,
			"localField":   "tests",
			"foreignField": "_id",
			"as":           "testDocs",
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         invoicesCollectionName,
			"localField":   "invoice",
			"foreignField": "_id",
			"as":           "invoiceDoc",
		}}},
		{{Key: "$addFields", Value: bson.M{
			"invoiceCode": bson.M{"$arrayElemAt": bson.A{"$invoiceDoc.invoiceId", 0}},
		}}},
		{{Key: "$project", Value: bson.M{"invoiceDoc": 0}}},
	}
}

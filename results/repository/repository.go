package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/pathline/lis/deletions"
	"github.com/pathline/lis/results"
)

type Params struct {
	fx.In

	Database      *mongo.Database
	DeletionsRepo deletions.Repository[results.Result]
	Logger        *zap.SugaredLogger
	Lifecycle     fx.Lifecycle
}

func NewRepository(p Params) (results.Repository, error) {
	repo := &Repository{
		collection:    p.Database.Collection(results.CollectionName),
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
	deletionsRepo deletions.Repository[results.Result]
	logger        *zap.SugaredLogger
}

func (r *Repository) Initialize(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "sample", Value: 1},
				{Key: "test", Value: 1},
			},
			Options: options.Index().
				SetBackground(true).
				SetUnique(true).
				SetName("UniqueSampleTest"),
		},
		{
			Keys: bson.D{
				{Key: "patient", Value: 1},
			},
			Options: options.Index().
				SetBackground(true).
				SetName("ResultsByPatient"),
		},
	})
	return err
}

// Upsert replaces the values of the (sample, test) result, creating it if needed.
// Approval attributes are cleared so a resubmitted result has to be approved again.
func (r *Repository) Upsert(ctx context.Context, result results.Result) (*results.Result, error) {
	now := time.Now()
	selector := bson.M{
		"sample": result.Sample,
		"test":   result.Test,
	}
	update := bson.M{
		"$set": bson.M{
			"patient":     result.Patient,
			"resultValue": result.ResultValue,
			"unit":        result.Unit,
			"normalRange": result.NormalRange,
			"abnormal":    result.Abnormal,
			"remarks":     result.Remarks,
			"subtests":    result.Subtests,
			"status":      result.Status,
			"enteredBy":   result.EnteredBy,
			"updatedTime": now,
		},
		"$unset": bson.M{
			"approvedBy":   "",
			"approvalDate": "",
		},
		"$setOnInsert": bson.M{
			"createdTime": now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	upserted := &results.Result{}
	if err := r.collection.FindOneAndUpdate(ctx, selector, update, opts).Decode(upserted); err != nil {
		return nil, fmt.Errorf("unable to upsert result: %w", err)
	}
	return upserted, nil
}

func (r *Repository) ListBySample(ctx context.Context, sampleId primitive.ObjectID) ([]*results.Result, error) {
	return r.find(ctx, bson.M{"sample": sampleId})
}

func (r *Repository) ListBySamples(ctx context.Context, sampleIds []primitive.ObjectID) ([]*results.Result, error) {
	if len(sampleIds) == 0 {
		return []*results.Result{}, nil
	}
	return r.find(ctx, bson.M{"sample": bson.M{"$in": sampleIds}})
}

func (r *Repository) ApproveAll(ctx context.Context, sampleId primitive.ObjectID, approvedBy string, approvalDate time.Time) (int64, error) {
	res, err := r.collection.UpdateMany(ctx, bson.M{"sample": sampleId}, bson.M{
		"$set": bson.M{
			"status":       results.StatusApproved,
			"approvedBy":   approvedBy,
			"approvalDate": approvalDate,
			"updatedTime":  time.Now(),
		},
	})
	if err != nil {
		return 0, fmt.Errorf("unable to approve results: %w", err)
	}
	return res.ModifiedCount, nil
}

func (r *Repository) DeleteBySample(ctx context.Context, sampleId primitive.ObjectID, metadata deletions.Metadata) (int64, error) {
	list, err := r.ListBySample(ctx, sampleId)
	if err != nil {
		return 0, err
	}

	archived := make([]results.Result, 0, len(list))
	for _, result := range list {
		archived = append(archived, *result)
	}
	if err := r.deletionsRepo.ArchiveMany(ctx, archived, metadata); err != nil {
		return 0, err
	}

	res, err := r.collection.DeleteMany(ctx, bson.M{"sample": sampleId})
	if err != nil {
		return 0, fmt.Errorf("unable to delete results: %w", err)
	}
	return res.DeletedCount, nil
}

func (r *Repository) find(ctx context.Context, selector bson.M) ([]*results.Result, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdTime", Value: 1}})
	cursor, err := r.collection.Find(ctx, selector, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing results: %w", err)
	}

	list := make([]*results.Result, 0)
	if err := cursor.All(ctx, &list); err != nil {
		return nil, fmt.Errorf("error decoding results list: %w", err)
	}
	return list, nil
}

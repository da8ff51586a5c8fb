package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/pathline/lis/analytics"
	"github.com/pathline/lis/billing"
	"github.com/pathline/lis/samples"
	"github.com/pathline/lis/store"
)

func NewRepository(db *mongo.Database, logger *zap.SugaredLogger) analytics.Repository {
	return &Repository{
		invoices: db.Collection(billing.CollectionName),
		samples:  db.Collection(samples.CollectionName),
		logger:   logger,
	}
}

type Repository struct {
	invoices *mongo.Collection
	samples  *mongo.Collection
	logger   *zap.SugaredLogger
}

type total struct {
	Value float64 `bson:"value"`
}

func (r *Repository) Revenue(ctx context.Context, timeRange store.TimeRange) (float64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: createdIn(timeRange)}},
		{{Key: "$group", Value: bson.M{"_id": nil, "value": bson.M{"$sum": "$paidAmount"}}}},
	}
	value, err := r.sum(ctx, r.invoices, pipeline)
	if err != nil {
		return 0, fmt.Errorf("error computing revenue: %w", err)
	}
	return billing.Round(value), nil
}

func (r *Repository) CollectionCount(ctx context.Context, timeRange store.TimeRange) (int, error) {
	selector := bson.M{"collectionDate": bson.M{"$ne": nil}}
	if cond := timeRange.Filter(); cond != nil {
		selector["collectionDate"] = cond
	}
	count, err := r.samples.CountDocuments(ctx, selector)
	if err != nil {
		return 0, fmt.Errorf("error counting collected samples: %w", err)
	}
	return int(count), nil
}

func (r *Repository) TestCount(ctx context.Context, timeRange store.TimeRange) (int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: createdIn(timeRange)}},
		{{Key: "$group", Value: bson.M{"_id": nil, "value": bson.M{"$sum": bson.M{"$size": "$tests"}}}}},
	}
	value, err := r.sum(ctx, r.invoices, pipeline)
	if err != nil {
		return 0, fmt.Errorf("error counting billed tests: %w", err)
	}
	return int(value), nil
}

func (r *Repository) PaymentMethods(ctx context.Context, timeRange store.TimeRange) ([]analytics.PaymentMethod, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: createdIn(timeRange)}},
		{{Key: "$unwind", Value: "$payments"}},
		{{Key: "$group", Value: bson.M{
			"_id":    "$payments.mode",
			"count":  bson.M{"$sum": 1},
			"amount": bson.M{"$sum": "$payments.amount"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}

	cursor, err := r.invoices.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("error computing payment methods: %w", err)
	}
	methods := make([]analytics.PaymentMethod, 0)
	if err := cursor.All(ctx, &methods); err != nil {
		return nil, fmt.Errorf("error decoding payment methods: %w", err)
	}
	for i := range methods {
		methods[i].Amount = billing.Round(methods[i].Amount)
	}
	return methods, nil
}

func (r *Repository) sum(ctx context.Context, collection *mongo.Collection, pipeline mongo.Pipeline) (float64, error) {
	cursor, err := collection.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	var totals []total
	if err := cursor.All(ctx, &totals); err != nil {
		return 0, err
	}
	if len(totals) == 0 {
		return 0, nil
	}
	return totals[0].Value, nil
}

func createdIn(timeRange store.TimeRange) bson.M {
	selector := bson.M{}
	if cond := timeRange.Filter(); cond != nil {
		selector["createdTime"] = cond
	}
	return selector
}

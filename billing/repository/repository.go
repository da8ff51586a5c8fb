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

	"github.com/pathline/lis/billing"
	"github.com/pathline/lis/deletions"
	"github.com/pathline/lis/labtests"
	"github.com/pathline/lis/patients"
	"github.com/pathline/lis/samples"
	"github.com/pathline/lis/store"
)

type Params struct {
	fx.In

	Database      *mongo.Database
	DeletionsRepo deletions.Repository[billing.Invoice]
	Logger        *zap.SugaredLogger
	Lifecycle     fx.Lifecycle
}

func NewRepository(p Params) (billing.Repository, error) {
	repo := &Repository{
		collection:    p.Database.Collection(billing.CollectionName),
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
	deletionsRepo deletions.Repository[billing.Invoice]
	logger        *zap.SugaredLogger
}

func (r *Repository) Initialize(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "invoiceId", Value: 1},
			},
			Options: options.Index().
				SetBackground(true).
				SetUnique(true).
				SetName("UniqueInvoiceId"),
		},
		{
			Keys: bson.D{
				{Key: "createdTime", Value: -1},
			},
			Options: options.Index().
				SetBackground(true).
				SetName("InvoicesByCreatedTime"),
		},
		{
			Keys: bson.D{
				{Key: "patient", Value: 1},
				{Key: "createdTime", Value: -1},
			},
			Options: options.Index().
				SetBackground(true).
				SetName("InvoicesByPatient"),
		},
	})
	return err
}

func (r *Repository) Create(ctx context.Context, invoice *billing.Invoice) (*billing.Invoice, error) {
	now := time.Now()
	invoice.Id = nil
	invoice.CreatedTime = now
	invoice.UpdatedTime = now
	if invoice.Payments == nil {
		invoice.Payments = []billing.Payment{}
	}

	res, err := r.collection.InsertOne(ctx, invoice)
	if err != nil {
		return nil, fmt.Errorf("error creating invoice: %w", err)
	}

	id := res.InsertedID.(primitive.ObjectID)
	invoice.Id = &id
	return invoice, nil
}

func (r *Repository) Get(ctx context.Context, id primitive.ObjectID) (*billing.Invoice, error) {
	invoice := &billing.Invoice{}
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(invoice)
	if err == mongo.ErrNoDocuments {
		return nil, billing.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return invoice, nil
}

func (r *Repository) GetDetails(ctx context.Context, id primitive.ObjectID) (*billing.InvoiceDetails, error) {
	pipeline := append(mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": id}}},
	}, detailsStages()...)

	list, err := r.aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, billing.ErrNotFound
	}
	return list[0], nil
}

func (r *Repository) List(ctx context.Context, filter billing.Filter, pagination store.Pagination) (*billing.ListResult, error) {
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
		return nil, fmt.Errorf("error counting invoices: %w", err)
	}

	return &billing.ListResult{Invoices: list, TotalCount: int(count)}, nil
}

func (r *Repository) AddPayment(ctx context.Context, id primitive.ObjectID, previousPaid float64, payment billing.Payment, totals billing.Totals, mode billing.PaymentMode) (*billing.Invoice, error) {
	selector := bson.M{
		"_id":        id,
		"paidAmount": previousPaid,
	}
	update := bson.M{
		"$push": bson.M{"payments": payment},
		"$set": bson.M{
			"paidAmount":  totals.PaidAmount,
			"balance":     totals.Balance,
			"profit":      totals.Profit,
			"status":      totals.Status,
			"paymentMode": mode,
			"updatedTime": time.Now(),
		},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	invoice := &billing.Invoice{}
	err := r.collection.FindOneAndUpdate(ctx, selector, update, opts).Decode(invoice)
	if err == mongo.ErrNoDocuments {
		return nil, billing.ErrConcurrentPayment
	} else if err != nil {
		return nil, fmt.Errorf("unable to record payment: %w", err)
	}
	return invoice, nil
}

func (r *Repository) Stats(ctx context.Context, timeRange store.TimeRange) (*billing.Stats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: rangeSelector(timeRange)}},
		{{Key: "$group", Value: statsGroup(nil)}},
		{{Key: "$addFields", Value: netEarnings()}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("error computing invoice stats: %w", err)
	}

	var list []billing.Stats
	if err := cursor.All(ctx, &list); err != nil {
		return nil, fmt.Errorf("error decoding invoice stats: %w", err)
	}
	stats := &billing.Stats{}
	if len(list) > 0 {
		*stats = roundStats(list[0])
	}
	return stats, nil
}

func (r *Repository) DailyStats(ctx context.Context, timeRange store.TimeRange, timezone string) ([]billing.DailyStat, error) {
	day := bson.M{"$dateToString": bson.M{
		"format":   "%Y-%m-%d",
		"date":     "$createdTime",
		"timezone": timezone,
	}}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: rangeSelector(timeRange)}},
		{{Key: "$group", Value: statsGroup(day)}},
		{{Key: "$addFields", Value: netEarnings()}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("error computing daily invoice stats: %w", err)
	}

	list := make([]billing.DailyStat, 0)
	if err := cursor.All(ctx, &list); err != nil {
		return nil, fmt.Errorf("error decoding daily invoice stats: %w", err)
	}
	for i := range list {
		list[i].Stats = roundStats(list[i].Stats)
	}
	return list, nil
}

// FindOrphans returns the invoices without a sample. Invoices whose sample was deleted
// on purpose are not orphans.
func (r *Repository) FindOrphans(ctx context.Context) ([]*billing.Invoice, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$lookup", Value: bson.M{
			"from":         samples.CollectionName,
			"localField":   "_id",
			"foreignField": "invoice",
			"as":           "sampleDocs",
		}}},
		{{Key: "$match", Value: bson.M{"sampleDocs": bson.M{"$size": 0}}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         deletions.CollectionName(samples.DeletionsType),
			"localField":   "_id",
			"foreignField": samples.DeletionsType + ".invoice",
			"as":           "deletedSamples",
		}}},
		{{Key: "$match", Value: bson.M{"deletedSamples": bson.M{"$size": 0}}}},
		{{Key: "$project", Value: bson.M{"sampleDocs": 0, "deletedSamples": 0}}},
		{{Key: "$sort", Value: bson.D{{Key: "createdTime", Value: 1}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("error finding invoices without sample: %w", err)
	}

	list := make([]*billing.Invoice, 0)
	if err := cursor.All(ctx, &list); err != nil {
		return nil, fmt.Errorf("error decoding invoices without sample: %w", err)
	}
	return list, nil
}

func (r *Repository) Delete(ctx context.Context, id primitive.ObjectID, metadata deletions.Metadata) error {
	invoice, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := r.deletionsRepo.Archive(ctx, *invoice, metadata); err != nil {
		return err
	}

	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("unable to delete invoice: %w", err)
	}
	if res.DeletedCount == 0 {
		return billing.ErrNotFound
	}
	return nil
}

func (r *Repository) aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]*billing.InvoiceDetails, error) {
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("error listing invoices: %w", err)
	}

	list := make([]*billing.InvoiceDetails, 0)
	if err := cursor.All(ctx, &list); err != nil {
		return nil, fmt.Errorf("error decoding invoices list: %w", err)
	}
	for _, invoice := range list {
		invoice.OrderTests()
	}
	return list, nil
}

func rangeSelector(timeRange store.TimeRange) bson.M {
	selector := bson.M{}
	if cond := timeRange.Filter(); cond != nil {
		selector["createdTime"] = cond
	}
	return selector
}

func listSelector(filter billing.Filter) bson.M {
	selector := rangeSelector(filter.TimeRange)
	if filter.Status != nil {
		selector["status"] = *filter.Status
	}
	if filter.PatientId != nil {
		selector["patient"] = filter.PatientId
	}
	if filter.Search != nil && *filter.Search != "" {
		selector["invoiceId"] = primitive.Regex{Pattern: regexp.QuoteMeta(*filter.Search), Options: "i"}
	}
	return selector
}

func statsGroup(id interface{}) bson.M {
	return bson.M{
		"_id":            id,
		"invoiceCount":   bson.M{"$sum": 1},
		"totalBilled":    bson.M{"$sum": "$finalAmount"},
		"totalCollected": bson.M{"$sum": "$paidAmount"},
		"totalBalance":   bson.M{"$sum": "$balance"},
		"totalProfit": bson.M{"$sum": bson.M{
			"$max": bson.A{0, bson.M{"$subtract": bson.A{"$paidAmount", "$finalAmount"}}},
		}},
		"totalLoss": bson.M{"$sum": "$discount"},
	}
}

func netEarnings() bson.M {
	return bson.M{"netEarnings": bson.M{"$subtract": bson.A{"$totalProfit", "$totalLoss"}}}
}

func roundStats(s billing.Stats) billing.Stats {
	s.TotalBilled = billing.Round(s.TotalBilled)
	s.TotalCollected = billing.Round(s.TotalCollected)
	s.TotalBalance = billing.Round(s.TotalBalance)
	s.TotalProfit = billing.Round(s.TotalProfit)
	s.TotalLoss = billing.Round(s.TotalLoss)
	s.NetEarnings = billing.Round(s.NetEarnings)
	return s
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
			"from":         samples.CollectionName,
			"localField":   "_id",
			"foreignField": "invoice",
			"as":           "sampleDoc",
		}}},
		{{Key: "$addFields", Value: bson.M{
			"sampleCode": bson.M{"$arrayElemAt": bson.A{"$sampleDoc.sampleId", 0}},
		}}},
		{{Key: "$project", Value: bson.M{"sampleDoc": 0}}},
	}
}

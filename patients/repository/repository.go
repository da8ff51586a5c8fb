package repository

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/pathline/lis/deletions"
	"github.com/pathline/lis/patients"
	"github.com/pathline/lis/store"
)

const invoicesCollectionName = "invoices"

type Params struct {
	fx.In

	Database      *mongo.Database
	DeletionsRepo deletions.Repository[patients.Patient]
	Logger        *zap.SugaredLogger
	Lifecycle     fx.Lifecycle
}

func NewRepository(p Params) (patients.Repository, error) {
	repo := &Repository{
		collection:    p.Database.Collection(patients.CollectionName),
		invoices:      p.Database.Collection(invoicesCollectionName),
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
	invoices      *mongo.Collection
	deletionsRepo deletions.Repository[patients.Patient]
	logger        *zap.SugaredLogger
}

func (r *Repository) Initialize(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "patientId", Value: 1},
			},
			Options: options.Index().
				SetBackground(true).
				SetUnique(true).
				SetName("UniquePatientId"),
		},
		{
			Keys: bson.D{
				{Key: "mobile", Value: 1},
			},
			Options: options.Index().
				SetBackground(true).
				SetUnique(true).
				SetName("UniquePatientMobile"),
		},
		{
			Keys: bson.D{
				{Key: "createdTime", Value: -1},
			},
			Options: options.Index().
				SetBackground(true).
				SetName("PatientsByCreatedTime"),
		},
	})
	return err
}

func (r *Repository) Get(ctx context.Context, id string) (*patients.Patient, error) {
	objId, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, patients.ErrNotFound
	}
	return r.getOne(ctx, bson.M{"_id": objId})
}

func (r *Repository) FindByMobile(ctx context.Context, mobile string) (*patients.Patient, error) {
	return r.getOne(ctx, bson.M{"mobile": strings.TrimSpace(mobile)})
}

func (r *Repository) List(ctx context.Context, filter *patients.Filter, pagination store.Pagination) (*patients.ListResult, error) {
	selector := bson.M{}
	if cond := filter.TimeRange.Filter(); cond != nil {
		selector["createdTime"] = cond
	}
	if filter.Search != nil && *filter.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(*filter.Search), Options: "i"}
		selector["$or"] = bson.A{
			bson.M{"name": pattern},
			bson.M{"mobile": pattern},
			bson.M{"patientId": pattern},
		}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdTime", Value: -1}}).
		SetSkip(int64(pagination.Offset))
	if pagination.Limit > 0 {
		opts.SetLimit(int64(pagination.Limit))
	}

	cursor, err := r.collection.Find(ctx, selector, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing patients: %w", err)
	}

	result := &patients.ListResult{Patients: make([]*patients.Patient, 0)}
	if err = cursor.All(ctx, &result.Patients); err != nil {
		return nil, fmt.Errorf("error decoding patients list: %w", err)
	}

	count, err := r.collection.CountDocuments(ctx, selector)
	if err != nil {
		return nil, fmt.Errorf("error counting patients: %w", err)
	}
	result.TotalCount = int(count)

	return result, nil
}

func (r *Repository) Create(ctx context.Context, patient patients.Patient) (*patients.Patient, error) {
	now := time.Now()
	patient.Id = nil
	patient.CreatedTime = now
	patient.UpdatedTime = now

	res, err := r.collection.InsertOne(ctx, patient)
	if store.IsDuplicateKeyError(err) {
		return nil, patients.ErrDuplicateMobile
	} else if err != nil {
		return nil, fmt.Errorf("error creating patient: %w", err)
	}

	return r.getOne(ctx, bson.M{"_id": res.InsertedID.(primitive.ObjectID)})
}

func (r *Repository) Update(ctx context.Context, id string, update patients.PatientUpdate) (*patients.Patient, error) {
	objId, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, patients.ErrNotFound
	}

	set := bson.M{"updatedTime": time.Now()}
	if update.Name != nil {
		set["name"] = strings.TrimSpace(*update.Name)
	}
	if update.Age != nil {
		set["age"] = *update.Age
	}
	if update.Gender != nil {
		set["gender"] = *update.Gender
	}
	if update.Mobile != nil {
		set["mobile"] = strings.TrimSpace(*update.Mobile)
	}
	if update.Email != nil {
		set["email"] = strings.ToLower(strings.TrimSpace(*update.Email))
	}
	if update.Address != nil {
		set["address"] = *update.Address
	}
	if update.ReferringDoctor != nil {
		set["referringDoctor"] = *update.ReferringDoctor
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	patient := &patients.Patient{}
	err = r.collection.FindOneAndUpdate(ctx, bson.M{"_id": objId}, bson.M{"$set": set}, opts).Decode(patient)
	if err == mongo.ErrNoDocuments {
		return nil, patients.ErrNotFound
	} else if store.IsDuplicateKeyError(err) {
		return nil, patients.ErrDuplicateMobile
	} else if err != nil {
		return nil, fmt.Errorf("unable to update patient: %w", err)
	}

	return patient, nil
}

// Delete archives and removes a patient that is not referenced by any invoice.
func (r *Repository) Delete(ctx context.Context, id string, metadata deletions.Metadata) error {
	patient, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	count, err := r.invoices.CountDocuments(ctx, bson.M{"patient": patient.Id}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("error counting patient invoices: %w", err)
	}
	if count > 0 {
		return patients.ErrHasInvoices
	}

	if err := r.deletionsRepo.Archive(ctx, *patient, metadata); err != nil {
		return err
	}

	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": patient.Id})
	if err != nil {
		return fmt.Errorf("unable to delete patient: %w", err)
	}
	if res.DeletedCount == 0 {
		return patients.ErrNotFound
	}
	return nil
}

func (r *Repository) getOne(ctx context.Context, selector bson.M) (*patients.Patient, error) {
	patient := &patients.Patient{}
	err := r.collection.FindOne(ctx, selector).Decode(patient)
	if err == mongo.ErrNoDocuments {
		return nil, patients.ErrNotFound
	} else if err != nil {
		return nil, err
	}

	return patient, nil
}

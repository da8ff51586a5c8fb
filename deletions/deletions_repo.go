package deletions

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
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Metadata describes who removed a document and why.
type Metadata struct {
	DeletedByUserId *string `bson:"deletedByUserId,omitempty"`
	Cascade         string  `bson:"cascade,omitempty"`
}

// Repository archives hard deleted documents of type T in "<type>_deletions".
// Writes join the transaction of the passed session context.
type Repository[T any] interface {
	Archive(context.Context, T, Metadata) error
	ArchiveMany(context.Context, []T, Metadata) error
	Initialize(ctx context.Context, primaryKeyAttributes []string) error
}

func NewRepositoryFactory[T any](typ string, primaryKeyAttributes []string) func(db *mongo.Database, logger *zap.SugaredLogger, lifecycle fx.Lifecycle) (Repository[T], error) {
	return func(db *mongo.Database, logger *zap.SugaredLogger, lifecycle fx.Lifecycle) (Repository[T], error) {
		repo := newRepository[T](typ, db, logger)

		lifecycle.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return repo.Initialize(ctx, primaryKeyAttributes)
			},
		})

		return repo, nil
	}
}

func CollectionName(typ string) string {
	return fmt.Sprintf("%s_deletions", typ)
}

func newRepository[T any](typ string, db *mongo.Database, logger *zap.SugaredLogger) *archive[T] {
	return &archive[T]{
		collection:   db.Collection(CollectionName(typ)),
		logger:       logger,
		documentType: typ,
	}
}

type archive[T any] struct {
	collection   *mongo.Collection
	logger       *zap.SugaredLogger
	documentType string
}

func (a *archive[T]) Initialize(ctx context.Context, primaryKeyAttributes []string) error {
	_, err := a.collection.Indexes().CreateMany(ctx, a.indexes(primaryKeyAttributes))
	return err
}

func (a *archive[T]) indexes(primaryKeyAttributes []string) []mongo.IndexModel {
	var keys bson.D
	for _, attr := range primaryKeyAttributes {
		keys = append(keys, primitive.E{
			Key:   fmt.Sprintf("%s.%s", a.documentType, attr),
			Value: 1,
		})
	}

	return []mongo.IndexModel{
		{
			Keys:    keys,
			Options: options.Index().SetName(fmt.Sprintf("%sDeletion", cases.Title(language.English).String(a.documentType))),
		},
		{
			Keys:    append(bson.D{primitive.E{Key: "deletedTime", Value: 1}}, keys...),
			Options: options.Index().SetName("DeletedTime"),
		},
	}
}

func (a *archive[T]) Archive(ctx context.Context, deleted T, meta Metadata) error {
	if _, err := a.collection.InsertOne(ctx, a.document(deleted, meta)); err != nil {
		return fmt.Errorf("error archiving deleted %s: %w", a.documentType, err)
	}
	return nil
}

func (a *archive[T]) ArchiveMany(ctx context.Context, deleted []T, meta Metadata) error {
	if len(deleted) == 0 {
		return nil
	}

	documents := make([]interface{}, 0, len(deleted))
	for _, d := range deleted {
		documents = append(documents, a.document(d, meta))
	}

	if _, err := a.collection.InsertMany(ctx, documents); err != nil {
		return fmt.Errorf("error archiving %d deleted %s documents: %w", len(deleted), a.documentType, err)
	}
	a.logger.Debugw("archived deleted documents", "type", a.documentType, "count", len(deleted))
	return nil
}

func (a *archive[T]) document(deleted T, meta Metadata) bson.M {
	doc := bson.M{
		"deletedTime":  time.Now(),
		a.documentType: deleted,
	}
	if meta.DeletedByUserId != nil {
		doc["deletedByUserId"] = meta.DeletedByUserId
	}
	if meta.Cascade != "" {
		doc["cascade"] = meta.Cascade
	}
	return doc
}

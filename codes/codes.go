package codes

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/pathline/lis/config"
)

const CollectionName = "counters"

type Prefix string

const (
	PatientPrefix Prefix = "PAT"
	InvoicePrefix Prefix = "INV"
	SamplePrefix  Prefix = "SMP"

	dateLayout = "060102"
)

//go:generate go tool mockgen -source=./codes.go -destination=./test/mock_codes.go -package test

// Generator hands out human readable codes of the form <PREFIX><yyMMdd><seq>.
// The sequence is a per prefix counter, so codes never collide.
type Generator interface {
	Next(ctx context.Context, prefix Prefix) (string, error)
}

// Format renders a code for the given calendar day and sequence number.
func Format(prefix Prefix, t time.Time, seq int64) string {
	return fmt.Sprintf("%s%s%06d", prefix, t.Format(dateLayout), seq)
}

type counter struct {
	Name string `bson:"_id"`
	Seq  int64  `bson:"seq"`
}

func NewGenerator(db *mongo.Database, cfg *config.Config, logger *zap.SugaredLogger) Generator {
	return &counterGenerator{
		collection: db.Collection(CollectionName),
		location:   cfg.Location(),
		logger:     logger,
		now:        time.Now,
	}
}

type counterGenerator struct {
	collection *mongo.Collection
	location   *time.Location
	logger     *zap.SugaredLogger
	now        func() time.Time
}

// Next increments the counter. Callers draw codes before starting a transaction, so a
// sequence number consumed by an aborted transaction leaves a gap.
func (c *counterGenerator) Next(ctx context.Context, prefix Prefix) (string, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var result counter
	err := c.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": string(prefix)},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&result)
	if err != nil {
		return "", fmt.Errorf("unable to increment %s counter: %w", prefix, err)
	}

	return Format(prefix, c.now().In(c.location), result.Seq), nil
}

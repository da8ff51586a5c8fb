package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ContextTimeout = time.Duration(20) * time.Second
)

const (
	RecordStatusActive   RecordStatus = "Active"
	RecordStatusArchived RecordStatus = "Archived"
)

// RecordStatus marks catalog entries as soft deleted without removing them.
type RecordStatus string

// ActiveFilter matches documents that have not been archived.
func ActiveFilter() bson.M {
	return bson.M{"status": RecordStatusActive}
}

type Pagination struct {
	Offset int
	Limit  int
}

func DefaultPagination() Pagination {
	return Pagination{
		Offset: 0,
		Limit:  10,
	}
}

type Sort struct {
	Attribute string
	Ascending bool
}

func (s *Sort) Order() int {
	if s.Ascending {
		return 1
	}
	return -1
}

func ObjectIDSFromStringArray(ids []string) []primitive.ObjectID {
	objectIds := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if objectId, err := primitive.ObjectIDFromHex(id); err == nil {
			objectIds = append(objectIds, objectId)
		}
	}
	return objectIds
}

// TimeRange is an inclusive interval on createdTime style fields. Zero bounds are open.
type TimeRange struct {
	From time.Time
	To   time.Time
}

func (t TimeRange) IsZero() bool {
	return t.From.IsZero() && t.To.IsZero()
}

// Filter returns the mongo condition for the range or nil when unbounded.
func (t TimeRange) Filter() bson.M {
	if t.IsZero() {
		return nil
	}
	cond := bson.M{}
	if !t.From.IsZero() {
		cond["$gte"] = t.From
	}
	if !t.To.IsZero() {
		cond["$lte"] = t.To
	}
	return cond
}

func NewDbContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), ContextTimeout)
}

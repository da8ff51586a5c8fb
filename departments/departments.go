package departments

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pathline/lis/errors"
	"github.com/pathline/lis/store"
)

const CollectionName = "departments"

var (
	ErrNotFound  = fmt.Errorf("department %w", errors.NotFound)
	ErrDuplicate = fmt.Errorf("%w: department with this name already exists", errors.Duplicate)
)

type Service interface {
	Get(ctx context.Context, id string) (*Department, error)
	List(ctx context.Context, pagination store.Pagination) ([]*Department, error)
	Create(ctx context.Context, department *Department) (*Department, error)
	Update(ctx context.Context, id string, update *DepartmentUpdate) (*Department, error)
	Archive(ctx context.Context, id string) error
}

type Department struct {
	Id          *primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	Name        string              `json:"name" bson:"name"`
	Description string              `json:"description,omitempty" bson:"description,omitempty"`
	Status      store.RecordStatus  `json:"status" bson:"status"`
	CreatedTime time.Time           `json:"createdAt" bson:"createdTime"`
	UpdatedTime time.Time           `json:"updatedAt" bson:"updatedTime"`
}

type DepartmentUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

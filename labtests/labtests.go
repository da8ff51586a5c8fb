package labtests

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pathline/lis/errors"
	"github.com/pathline/lis/store"
)

const CollectionName = "tests"

var (
	ErrNotFound           = fmt.Errorf("test %w", errors.NotFound)
	ErrDepartmentNotFound = errors.Validation("Department not found")
)

type Service interface {
	Get(ctx context.Context, id string) (*Test, error)
	List(ctx context.Context, filter Filter, pagination store.Pagination) ([]*Test, error)
	// FindActive returns the active tests among ids, in no particular order.
	FindActive(ctx context.Context, ids []primitive.ObjectID) ([]*Test, error)
	// FindByIds is FindActive including archived tests.
	FindByIds(ctx context.Context, ids []primitive.ObjectID) ([]*Test, error)
	Create(ctx context.Context, test *Test) (*Test, error)
	Update(ctx context.Context, id string, update *TestUpdate) (*Test, error)
	Archive(ctx context.Context, id string) error
}

type Range struct {
	Min *float64 `json:"min,omitempty" bson:"min,omitempty"`
	Max *float64 `json:"max,omitempty" bson:"max,omitempty"`
}

func (r *Range) defined() bool {
	return r != nil && (r.Min != nil || r.Max != nil)
}

func (r *Range) String() string {
	switch {
	case !r.defined():
		return ""
	case r.Min != nil && r.Max != nil:
		return fmt.Sprintf("%s - %s", formatFloat(*r.Min), formatFloat(*r.Max))
	case r.Min != nil:
		return ">= " + formatFloat(*r.Min)
	default:
		return "<= " + formatFloat(*r.Max)
	}
}

type NormalRanges struct {
	Male    *Range `json:"male,omitempty" bson:"male,omitempty"`
	Female  *Range `json:"female,omitempty" bson:"female,omitempty"`
	General string `json:"general,omitempty" bson:"general,omitempty"`
}

func (n NormalRanges) forGender(gender string) *Range {
	switch gender {
	case "Male":
		return n.Male
	case "Female":
		return n.Female
	}
	return nil
}

// Describe returns the reference range printed next to a result.
func (n NormalRanges) Describe(gender string) string {
	if r := n.forGender(gender); r.defined() {
		return r.String()
	}
	return n.General
}

// IsAbnormal reports whether a numeric value falls outside the range for gender. The
// second return value is false when no decision can be made, either because the value
// is not numeric or because no numeric range applies.
func (n NormalRanges) IsAbnormal(gender string, value string) (bool, bool) {
	r := n.forGender(gender)
	if !r.defined() {
		return false, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return false, false
	}
	if r.Min != nil && v < *r.Min {
		return true, true
	}
	if r.Max != nil && v > *r.Max {
		return true, true
	}
	return false, true
}

type Test struct {
	Id           *primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	TestName     string              `json:"testName" bson:"testName"`
	Department   *primitive.ObjectID `json:"department,omitempty" bson:"department,omitempty"`
	SampleType   string              `json:"sampleType,omitempty" bson:"sampleType,omitempty"`
	Unit         string              `json:"unit,omitempty" bson:"unit,omitempty"`
	Method       string              `json:"method,omitempty" bson:"method,omitempty"`
	Price        float64             `json:"price" bson:"price"`
	Tat          string              `json:"tat,omitempty" bson:"tat,omitempty"`
	NormalRanges NormalRanges        `json:"normalRanges" bson:"normalRanges"`
	Status       store.RecordStatus  `json:"status" bson:"status"`
	CreatedTime  time.Time           `json:"createdAt" bson:"createdTime"`
	UpdatedTime  time.Time           `json:"updatedAt" bson:"updatedTime"`
}

func (t *Test) Validate() error {
	if strings.TrimSpace(t.TestName) == "" {
		return errors.Validation("Test name is required")
	}
	if t.Price < 0 {
		return errors.Validation("Price must not be negative")
	}
	return nil
}

type TestUpdate struct {
	TestName     *string             `json:"testName,omitempty"`
	Department   *primitive.ObjectID `json:"department,omitempty"`
	SampleType   *string             `json:"sampleType,omitempty"`
	Unit         *string             `json:"unit,omitempty"`
	Method       *string             `json:"method,omitempty"`
	Price        *float64            `json:"price,omitempty"`
	Tat          *string             `json:"tat,omitempty"`
	NormalRanges *NormalRanges       `json:"normalRanges,omitempty"`
}

type Filter struct {
	DepartmentId *string
	Search       *string
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// OrderByIds returns tests in the order of ids. Tests referenced more than once are
// repeated and ids without a matching test are skipped.
func OrderByIds(tests []*Test, ids []primitive.ObjectID) []*Test {
	byId := make(map[primitive.ObjectID]*Test, len(tests))
	for _, t := range tests {
		if t.Id != nil {
			byId[*t.Id] = t
		}
	}

	ordered := make([]*Test, 0, len(ids))
	for _, id := range ids {
		if t, ok := byId[id]; ok {
			ordered = append(ordered, t)
		}
	}
	return ordered
}

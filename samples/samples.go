package samples

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pathline/lis/deletions"
	"github.com/pathline/lis/errors"
	"github.com/pathline/lis/labtests"
	"github.com/pathline/lis/patients"
	"github.com/pathline/lis/store"
)

const (
	CollectionName = "samples"
	// DeletionsType names the archive of deleted samples.
	DeletionsType = "sample"
)

var (
	ErrNotFound = fmt.Errorf("sample %w", errors.NotFound)
)

type Status string

const (
	StatusPending    Status = "Pending"
	StatusCollected  Status = "Collected"
	StatusProcessing Status = "Processing"
	StatusApproved   Status = "Approved"
	StatusCompleted  Status = "Completed"
	StatusDelivered  Status = "Delivered"
)

var Statuses = []Status{StatusPending, StatusCollected, StatusProcessing, StatusApproved, StatusCompleted, StatusDelivered}

func (s Status) Valid() bool {
	for _, status := range Statuses {
		if status == s {
			return true
		}
	}
	return false
}

type Service interface {
	Get(ctx context.Context, id string) (*SampleDetails, error)
	List(ctx context.Context, filter Filter, pagination store.Pagination) (*ListResult, error)
	Update(ctx context.Context, id string, update SampleUpdate) (*SampleDetails, error)
	UpdateStatus(ctx context.Context, id string, update StatusChange) (*SampleDetails, error)
	Delete(ctx context.Context, id string, metadata deletions.Metadata) error
}

// Repository methods accept a mongo.SessionContext to participate in a transaction.
type Repository interface {
	Create(ctx context.Context, sample *Sample) (*Sample, error)
	Get(ctx context.Context, id primitive.ObjectID) (*Sample, error)
	GetDetails(ctx context.Context, id primitive.ObjectID) (*SampleDetails, error)
	FindByInvoice(ctx context.Context, invoiceId primitive.ObjectID) (*Sample, error)
	List(ctx context.Context, filter Filter, pagination store.Pagination) (*ListResult, error)
	Update(ctx context.Context, id primitive.ObjectID, update SampleUpdate) (*Sample, error)
	// SetStatus moves the sample to update.Status. When expected is not nil the update
	// only applies if the stored status still equals it.
	SetStatus(ctx context.Context, id primitive.ObjectID, expected *Status, update StatusUpdate) (*Sample, error)
	Delete(ctx context.Context, id primitive.ObjectID, metadata deletions.Metadata) error
}

type Sample struct {
	Id             *primitive.ObjectID  `json:"_id,omitempty" bson:"_id,omitempty"`
	SampleId       string               `json:"sampleId" bson:"sampleId"`
	Patient        *primitive.ObjectID  `json:"patient" bson:"patient"`
	Invoice        *primitive.ObjectID  `json:"invoice" bson:"invoice"`
	SampleType     string               `json:"sampleType" bson:"sampleType"`
	Tests          []primitive.ObjectID `json:"tests" bson:"tests"`
	Status         Status               `json:"status" bson:"status"`
	CollectionDate *time.Time           `json:"collectionDate,omitempty" bson:"collectionDate,omitempty"`
	CollectedBy    string               `json:"collectedBy,omitempty" bson:"collectedBy,omitempty"`
	Remarks        string               `json:"remarks,omitempty" bson:"remarks,omitempty"`
	CreatedTime    time.Time            `json:"createdAt" bson:"createdTime"`
	UpdatedTime    time.Time            `json:"updatedAt" bson:"updatedTime"`
}

// SampleDetails is a sample with its patient and tests resolved. Tests keep the order
// of the sample.
type SampleDetails struct {
	Sample         `bson:",inline"`
	PatientDetails *patients.Patient `json:"patient,omitempty" bson:"patientDoc,omitempty"`
	TestDetails    []*labtests.Test  `json:"tests" bson:"testDocs"`
	InvoiceCode    string            `json:"invoiceId,omitempty" bson:"invoiceCode,omitempty"`
}

// OrderTests sorts the resolved tests in the order of the sample test references.
func (d *SampleDetails) OrderTests() {
	d.TestDetails = labtests.OrderByIds(d.TestDetails, d.Tests)
}

type SampleUpdate struct {
	SampleType *string `json:"sampleType,omitempty"`
	Remarks    *string `json:"remarks,omitempty"`
}

// StatusChange is a status update requested by a user.
type StatusChange struct {
	Status  Status
	Actor   string
	Remarks *string
}

// StatusUpdate is what gets persisted for a status change.
type StatusUpdate struct {
	Status         Status
	CollectionDate *time.Time
	CollectedBy    string
	Remarks        *string
}

type Filter struct {
	TimeRange store.TimeRange
	Statuses  []Status
	PatientId *primitive.ObjectID
	Search    *string
}

type ListResult struct {
	Samples    []*SampleDetails `json:"samples"`
	TotalCount int              `json:"total"`
}

package results

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pathline/lis/deletions"
	"github.com/pathline/lis/errors"
	"github.com/pathline/lis/labtests"
	"github.com/pathline/lis/patients"
	"github.com/pathline/lis/samples"
	"github.com/pathline/lis/settings"
	"github.com/pathline/lis/store"
)

const CollectionName = "results"

var (
	ErrNoResults         = errors.Validation("No results found for this sample")
	ErrNoResultsSupplied = errors.Validation("Results are required")
)

type Status string

const (
	StatusPending  Status = "Pending"
	StatusEntered  Status = "Entered"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

type Service interface {
	// Submit upserts one result per test and moves the sample to Processing.
	Submit(ctx context.Context, sampleId string, inputs []ResultInput, actor string) ([]*Result, error)
	// Approve approves every result of the sample and the sample itself.
	Approve(ctx context.Context, sampleId string, actor string) (*Approval, error)
	Pending(ctx context.Context, pagination store.Pagination) ([]*PendingSample, error)
	Report(ctx context.Context, sampleId string) (*Report, error)
}

// Repository methods accept a mongo.SessionContext to participate in a transaction.
type Repository interface {
	Upsert(ctx context.Context, result Result) (*Result, error)
	ListBySample(ctx context.Context, sampleId primitive.ObjectID) ([]*Result, error)
	ListBySamples(ctx context.Context, sampleIds []primitive.ObjectID) ([]*Result, error)
	ApproveAll(ctx context.Context, sampleId primitive.ObjectID, approvedBy string, approvalDate time.Time) (int64, error)
	DeleteBySample(ctx context.Context, sampleId primitive.ObjectID, metadata deletions.Metadata) (int64, error)
}

type Subtest struct {
	TestName    string `json:"testName" bson:"testName"`
	ResultValue string `json:"resultValue" bson:"resultValue"`
	Unit        string `json:"unit,omitempty" bson:"unit,omitempty"`
	NormalRange string `json:"normalRange,omitempty" bson:"normalRange,omitempty"`
	Abnormal    bool   `json:"abnormal" bson:"abnormal"`
}

type Result struct {
	Id           *primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	Sample       primitive.ObjectID  `json:"sample" bson:"sample"`
	Test         primitive.ObjectID  `json:"test" bson:"test"`
	Patient      *primitive.ObjectID `json:"patient,omitempty" bson:"patient,omitempty"`
	ResultValue  string              `json:"resultValue" bson:"resultValue"`
	Unit         string              `json:"unit,omitempty" bson:"unit,omitempty"`
	NormalRange  string              `json:"normalRange,omitempty" bson:"normalRange,omitempty"`
	Abnormal     bool                `json:"abnormal" bson:"abnormal"`
	Remarks      string              `json:"remarks,omitempty" bson:"remarks,omitempty"`
	Subtests     []Subtest           `json:"subtests,omitempty" bson:"subtests,omitempty"`
	Status       Status              `json:"status" bson:"status"`
	EnteredBy    string              `json:"enteredBy,omitempty" bson:"enteredBy,omitempty"`
	ApprovedBy   string              `json:"approvedBy,omitempty" bson:"approvedBy,omitempty"`
	ApprovalDate *time.Time          `json:"approvalDate,omitempty" bson:"approvalDate,omitempty"`
	CreatedTime  time.Time           `json:"createdAt" bson:"createdTime"`
	UpdatedTime  time.Time           `json:"updatedAt" bson:"updatedTime"`
}

// ResultInput is a single submitted result. Unit and NormalRange default to the test
// definition and Abnormal is derived from the normal range when omitted.
type ResultInput struct {
	TestId      string    `json:"testId"`
	ResultValue string    `json:"resultValue"`
	Unit        *string   `json:"unit,omitempty"`
	NormalRange *string   `json:"normalRange,omitempty"`
	Abnormal    *bool     `json:"abnormal,omitempty"`
	Remarks     string    `json:"remarks,omitempty"`
	Subtests    []Subtest `json:"subtests,omitempty"`
}

// Build creates the result for test on sample. gender selects the normal range.
func (in ResultInput) Build(sample *samples.Sample, test *labtests.Test, gender string, actor string) Result {
	result := Result{
		Sample:      *sample.Id,
		Test:        *test.Id,
		Patient:     sample.Patient,
		ResultValue: strings.TrimSpace(in.ResultValue),
		Unit:        test.Unit,
		NormalRange: test.NormalRanges.Describe(gender),
		Remarks:     in.Remarks,
		Subtests:    in.Subtests,
		Status:      StatusEntered,
		EnteredBy:   actor,
	}
	if in.Unit != nil {
		result.Unit = *in.Unit
	}
	if in.NormalRange != nil {
		result.NormalRange = *in.NormalRange
	}
	if in.Abnormal != nil {
		result.Abnormal = *in.Abnormal
	} else if abnormal, decided := test.NormalRanges.IsAbnormal(gender, result.ResultValue); decided {
		result.Abnormal = abnormal
	}
	return result
}

type Approval struct {
	Sample   *samples.Sample `json:"sample"`
	Approved int64           `json:"approved"`
}

type PendingSample struct {
	*samples.SampleDetails
	Results []*Result `json:"results"`
}

// ReportLine is a test of the sample with its result, if one was entered.
type ReportLine struct {
	Test   *labtests.Test `json:"test"`
	Result *Result        `json:"result,omitempty"`
}

type Report struct {
	Lab        *settings.Settings     `json:"lab"`
	Patient    *patients.Patient      `json:"patient"`
	Sample     *samples.SampleDetails `json:"sample"`
	Lines      []ReportLine           `json:"results"`
	ApprovedBy string                 `json:"approvedBy,omitempty"`
}

// OrderResults pairs tests with their results in test order. Repeated tests share a result.
func OrderResults(tests []*labtests.Test, list []*Result) []ReportLine {
	byTest := make(map[primitive.ObjectID]*Result, len(list))
	for _, r := range list {
		byTest[r.Test] = r
	}

	lines := make([]ReportLine, 0, len(tests))
	for _, t := range tests {
		line := ReportLine{Test: t}
		if t.Id != nil {
			line.Result = byTest[*t.Id]
		}
		lines = append(lines, line)
	}
	return lines
}

func ParseSampleId(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: invalid sample id", errors.BadRequest)
	}
	return oid, nil
}

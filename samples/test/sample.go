package test

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pathline/lis/labtests"
	"github.com/pathline/lis/samples"
	"github.com/pathline/lis/test"
)

func RandomSampleCode() string {
	return "SMP" + test.Faker.Numerify("######") + test.Faker.Numerify("######")
}

// RandomSample returns a pending sample for the tests. Patient and invoice references are
// random unless set by the caller.
func RandomSample(tests ...*labtests.Test) *samples.Sample {
	patient := primitive.NewObjectID()
	invoice := primitive.NewObjectID()

	ids := make([]primitive.ObjectID, 0, len(tests))
	types := make([]string, 0, len(tests))
	for _, t := range tests {
		ids = append(ids, *t.Id)
		types = append(types, t.SampleType)
	}

	return &samples.Sample{
		SampleId:   RandomSampleCode(),
		Patient:    &patient,
		Invoice:    &invoice,
		SampleType: strings.Join(types, ", "),
		Tests:      ids,
		Status:     samples.StatusPending,
	}
}

package test

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pathline/lis/labtests"
	"github.com/pathline/lis/pointer"
	"github.com/pathline/lis/test"
)

var sampleTypes = []string{"Blood", "Serum", "Urine", "Plasma", "Stool"}

func RandomTest(department primitive.ObjectID) *labtests.Test {
	low := float64(test.Faker.IntBetween(1, 50))
	return &labtests.Test{
		TestName:   test.Faker.Lorem().Word() + " " + test.Faker.UUID().V4()[:6],
		Department: &department,
		SampleType: test.Faker.RandomStringElement(sampleTypes),
		Unit:       test.Faker.RandomStringElement([]string{"mg/dL", "g/dL", "mmol/L", "%"}),
		Method:     test.Faker.RandomStringElement([]string{"Photometry", "ELISA", "Microscopy"}),
		Price:      float64(test.Faker.IntBetween(1, 40) * 50),
		Tat:        "24h",
		NormalRanges: labtests.NormalRanges{
			Male:   &labtests.Range{Min: pointer.FromAny(low), Max: pointer.FromAny(low + 10)},
			Female: &labtests.Range{Min: pointer.FromAny(low - 1), Max: pointer.FromAny(low + 8)},
		},
	}
}

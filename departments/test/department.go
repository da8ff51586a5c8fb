package test

import (
	"github.com/pathline/lis/departments"
	"github.com/pathline/lis/test"
)

func RandomDepartment() *departments.Department {
	return &departments.Department{
		Name:        test.Faker.Lorem().Word() + " " + test.Faker.UUID().V4()[:8],
		Description: test.Faker.Lorem().Sentence(6),
	}
}

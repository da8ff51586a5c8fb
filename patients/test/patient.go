package test

import (
	"fmt"

	"github.com/pathline/lis/patients"
	"github.com/pathline/lis/test"
)

func RandomMobile() string {
	return fmt.Sprintf("9%09d", test.Rand.Int63n(1_000_000_000))
}

func RandomPatient() patients.Patient {
	return patients.Patient{
		Name:            test.Faker.Person().Name(),
		Age:             test.Faker.IntBetween(1, 90),
		Gender:          test.Faker.RandomStringElement(patients.Genders),
		Mobile:          RandomMobile(),
		Email:           test.Faker.Internet().Email(),
		Address:         test.Faker.Address().Address(),
		ReferringDoctor: "Dr. " + test.Faker.Person().LastName(),
	}
}

package test

import (
	"github.com/pathline/lis/test"
	"github.com/pathline/lis/users"
)

func RandomRegistration(role users.Role) users.Registration {
	return users.Registration{
		Name:     test.Faker.Person().Name(),
		Email:    test.Faker.UUID().V4()[:8] + "@" + test.Faker.Internet().Domain(),
		Password: test.Faker.Internet().Password() + "x1Y2z3",
		Role:     role,
	}
}

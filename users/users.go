package users

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pathline/lis/errors"
)

const CollectionName = "users"

type Role string

const (
	RoleAdmin        Role = "admin"
	RoleLabManager   Role = "lab_manager"
	RoleTechnician   Role = "technician"
	RolePathologist  Role = "pathologist"
	RoleReceptionist Role = "receptionist"
)

var (
	Roles = []Role{RoleAdmin, RoleLabManager, RoleTechnician, RolePathologist, RoleReceptionist}

	ErrNotFound  = fmt.Errorf("user %w", errors.NotFound)
	ErrDuplicate = errors.Validation("User already exists")
)

func (r Role) Valid() bool {
	for _, role := range Roles {
		if role == r {
			return true
		}
	}
	return false
}

//go:generate go tool mockgen -source=./users.go -destination=./test/mock_repository.go -package test

type Repository interface {
	Get(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, user User) (*User, error)
	Count(ctx context.Context) (int64, error)
}

type User struct {
	Id           *primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	Name         string              `json:"name" bson:"name"`
	Email        string              `json:"email" bson:"email"`
	PasswordHash string              `json:"-" bson:"passwordHash"`
	Role         Role                `json:"role" bson:"role"`
	CreatedTime  time.Time           `json:"createdAt" bson:"createdTime"`
	UpdatedTime  time.Time           `json:"updatedAt" bson:"updatedTime"`
}

// Registration is the input for creating a user with a plain text password.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

func (r *Registration) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r *Registration) Validate() error {
	if r.Name == "" {
		return errors.Validation("Name is required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return errors.Validation("A valid email is required")
	}
	if len(r.Password) < 6 {
		return errors.Validation("Password must be at least 6 characters")
	}
	if !r.Role.Valid() {
		return errors.Validation(fmt.Sprintf("Invalid role %q", r.Role))
	}
	return nil
}

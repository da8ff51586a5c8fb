package patients

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pathline/lis/deletions"
	"github.com/pathline/lis/errors"
	"github.com/pathline/lis/store"
)

const CollectionName = "patients"

var (
	ErrNotFound        = fmt.Errorf("patient %w", errors.NotFound)
	ErrDuplicateMobile = errors.Validation("Patient already exists with this mobile number")
	ErrHasInvoices     = fmt.Errorf("%w: patient has invoices", errors.Conflict)

	Genders = []string{GenderMale, GenderFemale, GenderOther}
)

const (
	GenderMale   = "Male"
	GenderFemale = "Female"
	GenderOther  = "Other"
)

type Service interface {
	Get(ctx context.Context, id string) (*Patient, error)
	List(ctx context.Context, filter *Filter, pagination store.Pagination) (*ListResult, error)
	Create(ctx context.Context, patient Patient) (*Patient, error)
	Update(ctx context.Context, id string, update PatientUpdate) (*Patient, error)
	Delete(ctx context.Context, id string, metadata deletions.Metadata) error
}

type Repository interface {
	Get(ctx context.Context, id string) (*Patient, error)
	FindByMobile(ctx context.Context, mobile string) (*Patient, error)
	List(ctx context.Context, filter *Filter, pagination store.Pagination) (*ListResult, error)
	Create(ctx context.Context, patient Patient) (*Patient, error)
	Update(ctx context.Context, id string, update PatientUpdate) (*Patient, error)
	Delete(ctx context.Context, id string, metadata deletions.Metadata) error
}

type Patient struct {
	Id              *primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	PatientId       string              `json:"patientId" bson:"patientId"`
	Name            string              `json:"name" bson:"name"`
	Age             int                 `json:"age" bson:"age"`
	Gender          string              `json:"gender" bson:"gender"`
	Mobile          string              `json:"mobile" bson:"mobile"`
	Email           string              `json:"email,omitempty" bson:"email,omitempty"`
	Address         string              `json:"address,omitempty" bson:"address,omitempty"`
	ReferringDoctor string              `json:"referringDoctor,omitempty" bson:"referringDoctor,omitempty"`
	CreatedTime     time.Time           `json:"createdAt" bson:"createdTime"`
	UpdatedTime     time.Time           `json:"updatedAt" bson:"updatedTime"`
}

func (p *Patient) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Mobile = strings.TrimSpace(p.Mobile)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
}

func (p *Patient) Validate() error {
	if p.Name == "" {
		return errors.Validation("Patient name is required")
	}
	if p.Mobile == "" {
		return errors.Validation("Mobile number is required")
	}
	if p.Age < 0 {
		return errors.Validation("Age must not be negative")
	}
	return validateGender(p.Gender)
}

func validateGender(gender string) error {
	for _, g := range Genders {
		if g == gender {
			return nil
		}
	}
	return errors.Validation(fmt.Sprintf("Gender must be one of %s", strings.Join(Genders, ", ")))
}

type PatientUpdate struct {
	Name            *string `json:"name,omitempty"`
	Age             *int    `json:"age,omitempty"`
	Gender          *string `json:"gender,omitempty"`
	Mobile          *string `json:"mobile,omitempty"`
	Email           *string `json:"email,omitempty"`
	Address         *string `json:"address,omitempty"`
	ReferringDoctor *string `json:"referringDoctor,omitempty"`
}

func (u PatientUpdate) Validate() error {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return errors.Validation("Patient name is required")
	}
	if u.Mobile != nil && strings.TrimSpace(*u.Mobile) == "" {
		return errors.Validation("Mobile number is required")
	}
	if u.Age != nil && *u.Age < 0 {
		return errors.Validation("Age must not be negative")
	}
	if u.Gender != nil {
		return validateGender(*u.Gender)
	}
	return nil
}

type Filter struct {
	Search    *string
	TimeRange store.TimeRange
}

type ListResult struct {
	Patients   []*Patient `json:"patients"`
	TotalCount int        `json:"total"`
}

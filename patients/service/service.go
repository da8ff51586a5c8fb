package service

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/pathline/lis/codes"
	"github.com/pathline/lis/deletions"
	"github.com/pathline/lis/patients"
	"github.com/pathline/lis/store"
)

type Params struct {
	fx.In

	Repository patients.Repository
	Codes      codes.Generator
	Logger     *zap.SugaredLogger
}

type service struct {
	repo   patients.Repository
	codes  codes.Generator
	logger *zap.SugaredLogger
}

var _ patients.Service = &service{}

func NewService(p Params) (patients.Service, error) {
	return &service{
		repo:   p.Repository,
		codes:  p.Codes,
		logger: p.Logger,
	}, nil
}

func (s *service) Get(ctx context.Context, id string) (*patients.Patient, error) {
	return s.repo.Get(ctx, id)
}

func (s *service) List(ctx context.Context, filter *patients.Filter, pagination store.Pagination) (*patients.ListResult, error) {
	return s.repo.List(ctx, filter, pagination)
}

// Create checks the mobile number before inserting. Concurrent registrations that pass
// the check are caught by the unique mobile index and reported the same way.
func (s *service) Create(ctx context.Context, patient patients.Patient) (*patients.Patient, error) {
	patient.Normalize()
	if err := patient.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.repo.FindByMobile(ctx, patient.Mobile); err == nil {
		return nil, patients.ErrDuplicateMobile
	} else if err != patients.ErrNotFound {
		return nil, err
	}

	code, err := s.codes.Next(ctx, codes.PatientPrefix)
	if err != nil {
		return nil, err
	}
	patient.PatientId = code

	s.logger.Infow("registering patient", "patientId", patient.PatientId)
	return s.repo.Create(ctx, patient)
}

func (s *service) Update(ctx context.Context, id string, update patients.PatientUpdate) (*patients.Patient, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}
	if update.Mobile != nil {
		existing, err := s.repo.FindByMobile(ctx, *update.Mobile)
		if err == nil && existing.Id.Hex() != id {
			return nil, patients.ErrDuplicateMobile
		} else if err != nil && err != patients.ErrNotFound {
			return nil, err
		}
	}
	return s.repo.Update(ctx, id, update)
}

func (s *service) Delete(ctx context.Context, id string, metadata deletions.Metadata) error {
	s.logger.Infow("deleting patient", "id", id)
	return s.repo.Delete(ctx, id, metadata)
}

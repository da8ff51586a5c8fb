package service

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/pathline/lis/deletions"
	"github.com/pathline/lis/errors"
	"github.com/pathline/lis/metrics"
	"github.com/pathline/lis/outbox"
	"github.com/pathline/lis/results"
	"github.com/pathline/lis/samples"
	"github.com/pathline/lis/store"
)

var ErrConcurrentStatusChange = fmt.Errorf("%w: sample status was changed concurrently", errors.Conflict)

type Params struct {
	fx.In

	Client     *mongo.Client
	Repository samples.Repository
	Results    results.Repository
	Outbox     outbox.Repository
	Workflow   *samples.Workflow
	Metrics    *metrics.Collector
	Logger     *zap.SugaredLogger
}

type service struct {
	client   *mongo.Client
	repo     samples.Repository
	results  results.Repository
	outbox   outbox.Repository
	workflow *samples.Workflow
	metrics  *metrics.Collector
	logger   *zap.SugaredLogger
	now      func() time.Time
}

var _ samples.Service = &service{}

func NewService(p Params) (samples.Service, error) {
	return &service{
		client:   p.Client,
		repo:     p.Repository,
		results:  p.Results,
		outbox:   p.Outbox,
		workflow: p.Workflow,
		metrics:  p.Metrics,
		logger:   p.Logger,
		now:      time.Now,
	}, nil
}

func (s *service) Get(ctx context.Context, id string) (*samples.SampleDetails, error) {
	oid, err := parseId(id)
	if err != nil {
		return nil, err
	}
	return s.repo.GetDetails(ctx, oid)
}

func (s *service) List(ctx context.Context, filter samples.Filter, pagination store.Pagination) (*samples.ListResult, error) {
	return s.repo.List(ctx, filter, pagination)
}

func (s *service) Update(ctx context.Context, id string, update samples.SampleUpdate) (*samples.SampleDetails, error) {
	oid, err := parseId(id)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.Update(ctx, oid, update); err != nil {
		return nil, err
	}
	return s.repo.GetDetails(ctx, oid)
}

// UpdateStatus validates the change against the workflow and persists it together with a
// sampleStatusChanged event. The write only applies if the status was not changed since
// it was read.
func (s *service) UpdateStatus(ctx context.Context, id string, change samples.StatusChange) (*samples.SampleDetails, error) {
	oid, err := parseId(id)
	if err != nil {
		return nil, err
	}

	current, err := s.repo.Get(ctx, oid)
	if err != nil {
		return nil, err
	}
	if err := s.workflow.Validate(current.Status, change.Status); err != nil {
		return nil, err
	}

	if current.Status == change.Status {
		if change.Remarks != nil {
			if _, err := s.repo.Update(ctx, oid, samples.SampleUpdate{Remarks: change.Remarks}); err != nil {
				return nil, err
			}
		}
		return s.repo.GetDetails(ctx, oid)
	}

	update := samples.StatusUpdate{
		Status:  change.Status,
		Remarks: change.Remarks,
	}
	if change.Status == samples.StatusCollected {
		now := s.now()
		update.CollectionDate = &now
		update.CollectedBy = change.Actor
	}

	from := current.Status
	_, err = store.WithTransaction(ctx, s.client, func(sessCtx mongo.SessionContext) (interface{}, error) {
		updated, err := s.repo.SetStatus(sessCtx, oid, &from, update)
		if err == samples.ErrNotFound {
			return nil, ErrConcurrentStatusChange
		} else if err != nil {
			return nil, err
		}

		event, err := outbox.NewEvent(outbox.EventTypeSampleStatusChanged, outbox.SampleStatusChangedPayload{
			SampleId: updated.SampleId,
			From:     string(from),
			To:       string(updated.Status),
			Actor:    change.Actor,
		})
		if err != nil {
			return nil, err
		}
		return updated, s.outbox.Create(sessCtx, event)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.SampleTransitions.WithLabelValues(string(from), string(change.Status)).Inc()
	s.logger.Infow("sample status changed", "id", id, "from", from, "to", change.Status, "actor", change.Actor)
	return s.repo.GetDetails(ctx, oid)
}

// Delete removes the sample and its results. The invoice the sample belongs to is kept.
func (s *service) Delete(ctx context.Context, id string, metadata deletions.Metadata) error {
	oid, err := parseId(id)
	if err != nil {
		return err
	}
	if _, err := s.repo.Get(ctx, oid); err != nil {
		return err
	}

	_, err = store.WithTransaction(ctx, s.client, func(sessCtx mongo.SessionContext) (interface{}, error) {
		removed, err := s.results.DeleteBySample(sessCtx, oid, deletions.Metadata{
			DeletedByUserId: metadata.DeletedByUserId,
			Cascade:         "sample",
		})
		if err != nil {
			return nil, err
		}
		s.logger.Debugw("removed sample results", "sample", id, "count", removed)
		return nil, s.repo.Delete(sessCtx, oid, metadata)
	})
	if err != nil {
		return err
	}

	s.logger.Infow("deleted sample", "id", id)
	return nil
}

func parseId(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, samples.ErrNotFound
	}
	return oid, nil
}

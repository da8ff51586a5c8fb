package service

import (
	"context"
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/pathline/lis/errors"
	"github.com/pathline/lis/labtests"
	"github.com/pathline/lis/metrics"
	"github.com/pathline/lis/outbox"
	"github.com/pathline/lis/results"
	"github.com/pathline/lis/samples"
	"github.com/pathline/lis/settings"
	"github.com/pathline/lis/store"
	"github.com/pathline/lis/users"
)

type Params struct {
	fx.In

	Client     *mongo.Client
	Repository results.Repository
	Samples    samples.Repository
	Users      users.Repository
	Settings   settings.Service
	Outbox     outbox.Repository
	Metrics    *metrics.Collector
	Logger     *zap.SugaredLogger
}

type service struct {
	client   *mongo.Client
	repo     results.Repository
	samples  samples.Repository
	users    users.Repository
	settings settings.Service
	outbox   outbox.Repository
	metrics  *metrics.Collector
	logger   *zap.SugaredLogger
	now      func() time.Time
}

var _ results.Service = &service{}

func NewService(p Params) (results.Service, error) {
	return &service{
		client:   p.Client,
		repo:     p.Repository,
		samples:  p.Samples,
		users:    p.Users,
		settings: p.Settings,
		outbox:   p.Outbox,
		metrics:  p.Metrics,
		logger:   p.Logger,
		now:      time.Now,
	}, nil
}

// Submit stores one result per input, replacing earlier values for the same test, and
// moves the sample to Processing whatever its previous status.
func (s *service) Submit(ctx context.Context, sampleId string, inputs []results.ResultInput, actor string) ([]*results.Result, error) {
	if len(inputs) == 0 {
		return nil, results.ErrNoResultsSupplied
	}

	oid, err := results.ParseSampleId(sampleId)
	if err != nil {
		return nil, err
	}
	sample, err := s.samples.GetDetails(ctx, oid)
	if err != nil {
		return nil, err
	}

	tests := make(map[primitive.ObjectID]*labtests.Test, len(sample.TestDetails))
	for _, t := range sample.TestDetails {
		tests[*t.Id] = t
	}
	ordered := mapset.NewSet[primitive.ObjectID](sample.Tests...)

	gender := ""
	if sample.PatientDetails != nil {
		gender = sample.PatientDetails.Gender
	}

	pending := make([]results.Result, 0, len(inputs))
	for _, input := range inputs {
		testId, err := primitive.ObjectIDFromHex(input.TestId)
		if err != nil || !ordered.Contains(testId) {
			return nil, errors.Validation(fmt.Sprintf("Test %s does not belong to this sample", input.TestId))
		}
		test, ok := tests[testId]
		if !ok {
			return nil, labtests.ErrNotFound
		}
		pending = append(pending, input.Build(&sample.Sample, test, gender, actor))
	}

	previous := sample.Status
	saved, err := store.WithTransaction(ctx, s.client, func(sessCtx mongo.SessionContext) (interface{}, error) {
		list := make([]*results.Result, 0, len(pending))
		for _, result := range pending {
			upserted, err := s.repo.Upsert(sessCtx, result)
			if err != nil {
				return nil, err
			}
			list = append(list, upserted)
		}

		if _, err := s.samples.SetStatus(sessCtx, oid, nil, samples.StatusUpdate{Status: samples.StatusProcessing}); err != nil {
			return nil, err
		}
		if previous != samples.StatusProcessing {
			event, err := outbox.NewEvent(outbox.EventTypeSampleStatusChanged, outbox.SampleStatusChangedPayload{
				SampleId: sample.SampleId,
				From:     string(previous),
				To:       string(samples.StatusProcessing),
				Actor:    actor,
			})
			if err != nil {
				return nil, err
			}
			if err := s.outbox.Create(sessCtx, event); err != nil {
				return nil, err
			}
		}
		return list, nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ResultsSubmitted.Add(float64(len(pending)))
	if previous != samples.StatusProcessing {
		s.metrics.SampleTransitions.WithLabelValues(string(previous), string(samples.StatusProcessing)).Inc()
	}
	s.logger.Infow("results submitted", "sample", sampleId, "count", len(pending), "actor", actor)
	return saved.([]*results.Result), nil
}

// Approve approves all results of the sample and the sample in one transaction. Nothing is
// changed when the sample has no results.
func (s *service) Approve(ctx context.Context, sampleId string, actor string) (*results.Approval, error) {
	oid, err := results.ParseSampleId(sampleId)
	if err != nil {
		return nil, err
	}
	sample, err := s.samples.Get(ctx, oid)
	if err != nil {
		return nil, err
	}

	approvalDate := s.now()
	res, err := store.WithTransaction(ctx, s.client, func(sessCtx mongo.SessionContext) (interface{}, error) {
		list, err := s.repo.ListBySample(sessCtx, oid)
		if err != nil {
			return nil, err
		}
		if len(list) == 0 {
			return nil, results.ErrNoResults
		}

		if _, err := s.repo.ApproveAll(sessCtx, oid, actor, approvalDate); err != nil {
			return nil, err
		}
		updated, err := s.samples.SetStatus(sessCtx, oid, nil, samples.StatusUpdate{Status: samples.StatusApproved})
		if err != nil {
			return nil, err
		}

		payload := outbox.ResultsApprovedPayload{
			SampleId:   sample.SampleId,
			ApprovedBy: actor,
			Count:      int64(len(list)),
		}
		if sample.Patient != nil {
			payload.PatientId = sample.Patient.Hex()
		}
		event, err := outbox.NewEvent(outbox.EventTypeResultsApproved, payload)
		if err != nil {
			return nil, err
		}
		if err := s.outbox.Create(sessCtx, event); err != nil {
			return nil, err
		}

		return &results.Approval{Sample: updated, Approved: int64(len(list))}, nil
	})
	if err != nil {
		return nil, err
	}

	approval := res.(*results.Approval)
	s.metrics.ResultsApproved.Add(float64(approval.Approved))
	if sample.Status != samples.StatusApproved {
		s.metrics.SampleTransitions.WithLabelValues(string(sample.Status), string(samples.StatusApproved)).Inc()
	}
	s.logger.Infow("results approved", "sample", sampleId, "count", approval.Approved, "actor", actor)
	return approval, nil
}

func (s *service) Pending(ctx context.Context, pagination store.Pagination) ([]*results.PendingSample, error) {
	list, err := s.samples.List(ctx, samples.Filter{
		Statuses: []samples.Status{samples.StatusCollected, samples.StatusProcessing},
	}, pagination)
	if err != nil {
		return nil, err
	}

	ids := make([]primitive.ObjectID, 0, len(list.Samples))
	for _, sample := range list.Samples {
		ids = append(ids, *sample.Id)
	}
	entered, err := s.repo.ListBySamples(ctx, ids)
	if err != nil {
		return nil, err
	}

	bySample := make(map[primitive.ObjectID][]*results.Result)
	for _, r := range entered {
		bySample[r.Sample] = append(bySample[r.Sample], r)
	}

	pending := make([]*results.PendingSample, 0, len(list.Samples))
	for _, sample := range list.Samples {
		sampleResults := bySample[*sample.Id]
		if sampleResults == nil {
			sampleResults = []*results.Result{}
		}
		pending = append(pending, &results.PendingSample{SampleDetails: sample, Results: sampleResults})
	}
	return pending, nil
}

func (s *service) Report(ctx context.Context, sampleId string) (*results.Report, error) {
	oid, err := results.ParseSampleId(sampleId)
	if err != nil {
		return nil, err
	}
	sample, err := s.samples.GetDetails(ctx, oid)
	if err != nil {
		return nil, err
	}
	lab, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.repo.ListBySample(ctx, oid)
	if err != nil {
		return nil, err
	}

	report := &results.Report{
		Lab:     lab,
		Patient: sample.PatientDetails,
		Sample:  sample,
		Lines:   results.OrderResults(sample.TestDetails, list),
	}
	for _, r := range list {
		if r.ApprovedBy == "" {
			continue
		}
		if approver, err := s.users.Get(ctx, r.ApprovedBy); err == nil {
			report.ApprovedBy = approver.Name
		} else {
			s.logger.Warnw("unable to resolve approver", "sample", sampleId, "approvedBy", r.ApprovedBy, "error", err)
		}
		break
	}
	return report, nil
}

package service

import (
	"context"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/pathline/lis/billing"
	"github.com/pathline/lis/codes"
	"github.com/pathline/lis/config"
	"github.com/pathline/lis/daterange"
	"github.com/pathline/lis/deletions"
	"github.com/pathline/lis/labtests"
	"github.com/pathline/lis/metrics"
	"github.com/pathline/lis/outbox"
	"github.com/pathline/lis/patients"
	"github.com/pathline/lis/results"
	"github.com/pathline/lis/samples"
	"github.com/pathline/lis/store"
)

type Params struct {
	fx.In

	Client     *mongo.Client
	Repository billing.Repository
	Patients   patients.Repository
	Tests      labtests.Service
	Samples    samples.Repository
	Results    results.Repository
	Outbox     outbox.Repository
	Codes      codes.Generator
	Resolver   *daterange.Resolver
	Config     *config.Config
	Metrics    *metrics.Collector
	Logger     *zap.SugaredLogger
}

type service struct {
	client         *mongo.Client
	repo           billing.Repository
	patients       patients.Repository
	tests          labtests.Service
	samples        samples.Repository
	results        results.Repository
	outbox         outbox.Repository
	codes          codes.Generator
	resolver       *daterange.Resolver
	discountPolicy string
	metrics        *metrics.Collector
	logger         *zap.SugaredLogger
	now            func() time.Time
}

var _ billing.Service = &service{}

func NewService(p Params) (billing.Service, error) {
	return &service{
		client:         p.Client,
		repo:           p.Repository,
		patients:       p.Patients,
		tests:          p.Tests,
		samples:        p.Samples,
		results:        p.Results,
		outbox:         p.Outbox,
		codes:          p.Codes,
		resolver:       p.Resolver,
		discountPolicy: p.Config.DiscountPolicy,
		metrics:        p.Metrics,
		logger:         p.Logger,
		now:            time.Now,
	}, nil
}

// Create bills the tests to the patient. The invoice, its sample and the invoiceCreated
// event are written in one transaction so an invoice never exists without its sample.
func (s *service) Create(ctx context.Context, create billing.CreateInvoice) (*billing.Invoice, error) {
	patient, err := s.patients.Get(ctx, create.PatientId)
	if err == patients.ErrNotFound {
		return nil, billing.ErrPatientNotFound
	} else if err != nil {
		return nil, err
	}

	if len(create.TestIds) == 0 {
		return nil, billing.ErrTestsRequired
	}
	found, err := s.tests.FindActive(ctx, store.ObjectIDSFromStringArray(create.TestIds))
	if err != nil {
		return nil, err
	}
	tests, err := billing.ResolveTests(create.TestIds, found)
	if err != nil {
		return nil, err
	}

	prices := make([]float64, 0, len(tests))
	testIds := make([]primitive.ObjectID, 0, len(tests))
	for _, t := range tests {
		prices = append(prices, t.Price)
		testIds = append(testIds, *t.Id)
	}

	totals, err := billing.Compute(prices, create.Discount, create.PaidAmount, s.discountPolicy)
	if err != nil {
		return nil, err
	}
	payments, mode, err := billing.ResolvePayments(create.PaymentMode, create.PaidAmount, create.Payments, s.now())
	if err != nil {
		return nil, err
	}

	// Codes are drawn outside of the transaction. An aborted transaction leaves a gap.
	invoiceCode, err := s.codes.Next(ctx, codes.InvoicePrefix)
	if err != nil {
		return nil, err
	}
	sampleCode, err := s.codes.Next(ctx, codes.SamplePrefix)
	if err != nil {
		return nil, err
	}

	res, err := store.WithTransaction(ctx, s.client, func(sessCtx mongo.SessionContext) (interface{}, error) {
		invoice, err := s.repo.Create(sessCtx, &billing.Invoice{
			InvoiceId:   invoiceCode,
			Patient:     patient.Id,
			Tests:       testIds,
			Totals:      totals,
			PaymentMode: mode,
			Payments:    payments,
			CreatedBy:   create.CreatedBy,
		})
		if err != nil {
			return nil, err
		}

		sample, err := s.samples.Create(sessCtx, &samples.Sample{
			SampleId:   sampleCode,
			Patient:    patient.Id,
			Invoice:    invoice.Id,
			SampleType: billing.SampleTypes(tests),
			Tests:      testIds,
			Status:     samples.StatusPending,
		})
		if err != nil {
			return nil, err
		}

		event, err := outbox.NewEvent(outbox.EventTypeInvoiceCreated, outbox.InvoiceCreatedPayload{
			InvoiceId:   invoice.Id.Hex(),
			InvoiceCode: invoice.InvoiceId,
			SampleId:    sample.SampleId,
			PatientId:   patient.Id.Hex(),
			FinalAmount: invoice.FinalAmount,
			PaidAmount:  invoice.PaidAmount,
		})
		if err != nil {
			return nil, err
		}
		return invoice, s.outbox.Create(sessCtx, event)
	})
	if err != nil {
		return nil, err
	}

	invoice := res.(*billing.Invoice)
	s.metrics.InvoicesCreated.Inc()
	s.metrics.AmountBilled.Add(math.Max(0, invoice.FinalAmount))
	s.logger.Infow("invoice created", "invoiceId", invoice.InvoiceId, "sampleId", sampleCode, "finalAmount", invoice.FinalAmount, "status", invoice.Status)
	return invoice, nil
}

func (s *service) Get(ctx context.Context, id string) (*billing.InvoiceDetails, error) {
	oid, err := parseId(id)
	if err != nil {
		return nil, err
	}
	return s.repo.GetDetails(ctx, oid)
}

func (s *service) List(ctx context.Context, filter billing.Filter, pagination store.Pagination) (*billing.ListResult, error) {
	return s.repo.List(ctx, filter, pagination)
}

// RecordPayment adds a payment to the invoice and recomputes its totals. Payments that
// race on the same invoice fail with a conflict instead of losing an update.
func (s *service) RecordPayment(ctx context.Context, id string, payment billing.Payment) (*billing.Invoice, error) {
	oid, err := parseId(id)
	if err != nil {
		return nil, err
	}
	invoice, err := s.repo.Get(ctx, oid)
	if err != nil {
		return nil, err
	}

	payment.Amount = billing.Round(payment.Amount)
	totals, mode, err := billing.ApplyPayment(invoice, payment)
	if err != nil {
		return nil, err
	}
	if payment.Date == nil {
		now := s.now()
		payment.Date = &now
	}

	res, err := store.WithTransaction(ctx, s.client, func(sessCtx mongo.SessionContext) (interface{}, error) {
		updated, err := s.repo.AddPayment(sessCtx, oid, invoice.PaidAmount, payment, totals, mode)
		if err != nil {
			return nil, err
		}

		event, err := outbox.NewEvent(outbox.EventTypePaymentRecorded, outbox.PaymentRecordedPayload{
			InvoiceId: updated.InvoiceId,
			Mode:      string(payment.Mode),
			Amount:    payment.Amount,
			Status:    string(updated.Status),
		})
		if err != nil {
			return nil, err
		}
		return updated, s.outbox.Create(sessCtx, event)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PaymentsRecorded.WithLabelValues(string(payment.Mode)).Inc()
	s.logger.Infow("payment recorded", "invoiceId", invoice.InvoiceId, "mode", payment.Mode, "amount", payment.Amount)
	return res.(*billing.Invoice), nil
}

func (s *service) Stats(ctx context.Context, timeRange store.TimeRange) (*billing.Stats, error) {
	return s.repo.Stats(ctx, timeRange)
}

// DailyStats returns one bucket per calendar day, ascending. Bounded ranges include the
// days without invoices.
func (s *service) DailyStats(ctx context.Context, timeRange store.TimeRange) ([]billing.DailyStat, error) {
	stats, err := s.repo.DailyStats(ctx, timeRange, s.resolver.MongoTimezone(s.now()))
	if err != nil {
		return nil, err
	}

	days := s.resolver.Days(timeRange)
	if len(days) == 0 {
		return stats, nil
	}

	byDay := make(map[string]billing.DailyStat, len(stats))
	for _, stat := range stats {
		byDay[stat.Date] = stat
	}
	filled := make([]billing.DailyStat, 0, len(days))
	for _, day := range days {
		stat, ok := byDay[day]
		if !ok {
			stat = billing.DailyStat{Date: day}
		}
		filled = append(filled, stat)
	}
	return filled, nil
}

// Delete removes the invoice, its sample and the results of the sample in one transaction.
func (s *service) Delete(ctx context.Context, id string, metadata deletions.Metadata) error {
	oid, err := parseId(id)
	if err != nil {
		return err
	}
	invoice, err := s.repo.Get(ctx, oid)
	if err != nil {
		return err
	}

	cascade := deletions.Metadata{
		DeletedByUserId: metadata.DeletedByUserId,
		Cascade:         "invoice",
	}
	_, err = store.WithTransaction(ctx, s.client, func(sessCtx mongo.SessionContext) (interface{}, error) {
		sample, err := s.samples.FindByInvoice(sessCtx, oid)
		if err != nil && err != samples.ErrNotFound {
			return nil, err
		}
		if sample != nil {
			if _, err := s.results.DeleteBySample(sessCtx, *sample.Id, cascade); err != nil {
				return nil, err
			}
			if err := s.samples.Delete(sessCtx, *sample.Id, cascade); err != nil {
				return nil, err
			}
		}
		return nil, s.repo.Delete(sessCtx, oid, metadata)
	})
	if err != nil {
		return err
	}

	s.logger.Infow("invoice deleted", "invoiceId", invoice.InvoiceId)
	return nil
}

// RepairOrphans creates the sample of every invoice that has none and returns the
// repaired invoices.
func (s *service) RepairOrphans(ctx context.Context, actor string) ([]*billing.Invoice, error) {
	orphans, err := s.repo.FindOrphans(ctx)
	if err != nil {
		return nil, err
	}

	repaired := make([]*billing.Invoice, 0, len(orphans))
	for _, invoice := range orphans {
		found, err := s.tests.FindByIds(ctx, invoice.Tests)
		if err != nil {
			return repaired, err
		}
		tests := labtests.OrderByIds(found, invoice.Tests)

		sampleCode, err := s.codes.Next(ctx, codes.SamplePrefix)
		if err != nil {
			return repaired, err
		}
		_, err = s.samples.Create(ctx, &samples.Sample{
			SampleId:   sampleCode,
			Patient:    invoice.Patient,
			Invoice:    invoice.Id,
			SampleType: billing.SampleTypes(tests),
			Tests:      invoice.Tests,
			Status:     samples.StatusPending,
		})
		if err != nil {
			return repaired, err
		}

		s.logger.Warnw("created missing sample for invoice", "invoiceId", invoice.InvoiceId, "sampleId", sampleCode, "actor", actor)
		repaired = append(repaired, invoice)
	}
	return repaired, nil
}

func parseId(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, billing.ErrNotFound
	}
	return oid, nil
}

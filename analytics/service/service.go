package service

import (
	"context"

	"github.com/tealeg/xlsx/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/pathline/lis/analytics"
	"github.com/pathline/lis/billing"
	"github.com/pathline/lis/daterange"
	"github.com/pathline/lis/samples"
	"github.com/pathline/lis/store"
)

type Params struct {
	fx.In

	Repository analytics.Repository
	Invoices   billing.Repository
	Samples    samples.Repository
	Resolver   *daterange.Resolver
	Logger     *zap.SugaredLogger
}

type service struct {
	repo     analytics.Repository
	invoices billing.Repository
	samples  samples.Repository
	resolver *daterange.Resolver
	logger   *zap.SugaredLogger
}

var _ analytics.Service = &service{}

func NewService(p Params) analytics.Service {
	return &service{
		repo:     p.Repository,
		invoices: p.Invoices,
		samples:  p.Samples,
		resolver: p.Resolver,
		logger:   p.Logger,
	}
}

// Dashboard summarizes today and the range, and lists every invoice and sample
// created in the range.
func (s *service) Dashboard(ctx context.Context, timeRange store.TimeRange) (*analytics.Dashboard, error) {
	today := s.resolver.Today()
	dashboard := &analytics.Dashboard{}
	if !timeRange.From.IsZero() {
		dashboard.From = &timeRange.From
	}
	if !timeRange.To.IsZero() {
		dashboard.To = &timeRange.To
	}

	var err error
	if dashboard.TodayRevenue, err = s.repo.Revenue(ctx, today); err != nil {
		return nil, err
	}
	if dashboard.RangeRevenue, err = s.repo.Revenue(ctx, timeRange); err != nil {
		return nil, err
	}
	if dashboard.TodayCollections, err = s.repo.CollectionCount(ctx, today); err != nil {
		return nil, err
	}
	if dashboard.TestCount, err = s.repo.TestCount(ctx, timeRange); err != nil {
		return nil, err
	}
	if dashboard.PaymentMethods, err = s.repo.PaymentMethods(ctx, timeRange); err != nil {
		return nil, err
	}

	all := store.Pagination{}
	invoices, err := s.invoices.List(ctx, billing.Filter{TimeRange: timeRange}, all)
	if err != nil {
		return nil, err
	}
	dashboard.Invoices = invoices.Invoices

	list, err := s.samples.List(ctx, samples.Filter{TimeRange: timeRange}, all)
	if err != nil {
		return nil, err
	}
	dashboard.Samples = list.Samples

	return dashboard, nil
}

func (s *service) Export(ctx context.Context, timeRange store.TimeRange) (*xlsx.File, error) {
	dashboard, err := s.Dashboard(ctx, timeRange)
	if err != nil {
		return nil, err
	}

	s.logger.Infow("exporting analytics", "invoices", len(dashboard.Invoices), "samples", len(dashboard.Samples))
	return analytics.NewReport(dashboard, s.resolver.Location()).Generate()
}

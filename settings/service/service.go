package service

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/pathline/lis/config"
	"github.com/pathline/lis/settings"
)

type Params struct {
	fx.In

	Repository settings.Repository
	Config     *config.Config
	Logger     *zap.SugaredLogger
}

type service struct {
	repo     settings.Repository
	defaults settings.Settings
	logger   *zap.SugaredLogger
}

var _ settings.Service = &service{}

func NewService(p Params) settings.Service {
	return &service{
		repo:     p.Repository,
		defaults: settings.Default(p.Config),
		logger:   p.Logger,
	}
}

func (s *service) Get(ctx context.Context) (*settings.Settings, error) {
	current, err := s.repo.Get(ctx)
	if err == settings.ErrNotFound {
		defaults := s.defaults
		return &defaults, nil
	}
	return current, err
}

func (s *service) Update(ctx context.Context, patch []byte, actor string) (*settings.Settings, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	merged, err := settings.Merge(*current, patch)
	if err != nil {
		return nil, err
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	merged.UpdatedBy = actor

	s.logger.Infow("updating lab settings", "actor", actor)
	return s.repo.Save(ctx, merged)
}

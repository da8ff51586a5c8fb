package api

import (
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/pathline/lis/analytics"
	"github.com/pathline/lis/auth"
	"github.com/pathline/lis/billing"
	"github.com/pathline/lis/daterange"
	"github.com/pathline/lis/deletions"
	"github.com/pathline/lis/departments"
	"github.com/pathline/lis/errors"
	"github.com/pathline/lis/labtests"
	"github.com/pathline/lis/patients"
	"github.com/pathline/lis/render"
	"github.com/pathline/lis/results"
	"github.com/pathline/lis/samples"
	"github.com/pathline/lis/settings"
	"github.com/pathline/lis/store"
)

type Handler struct {
	auth        auth.Service
	departments departments.Service
	tests       labtests.Service
	patients    patients.Service
	billing     billing.Service
	samples     samples.Service
	results     results.Service
	settings    settings.Service
	analytics   analytics.Service
	renderer    *render.Renderer
	resolver    *daterange.Resolver
	logger      *zap.SugaredLogger
}

type Params struct {
	fx.In

	Auth        auth.Service
	Departments departments.Service
	Tests       labtests.Service
	Patients    patients.Service
	Billing     billing.Service
	Samples     samples.Service
	Results     results.Service
	Settings    settings.Service
	Analytics   analytics.Service
	Renderer    *render.Renderer
	Resolver    *daterange.Resolver
	Logger      *zap.SugaredLogger
}

func NewHandler(p Params) *Handler {
	return &Handler{
		auth:        p.Auth,
		departments: p.Departments,
		tests:       p.Tests,
		patients:    p.Patients,
		billing:     p.Billing,
		samples:     p.Samples,
		results:     p.Results,
		settings:    p.Settings,
		analytics:   p.Analytics,
		renderer:    p.Renderer,
		resolver:    p.Resolver,
		logger:      p.Logger,
	}
}

// pagination reads offset and limit. Without a limit every matching record is returned.
func pagination(ec echo.Context) (store.Pagination, error) {
	page := store.Pagination{}
	if v := ec.QueryParam("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return page, fmt.Errorf("%w: invalid offset", errors.BadRequest)
		}
		page.Offset = offset
	}
	if v := ec.QueryParam("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return page, fmt.Errorf("%w: invalid limit", errors.BadRequest)
		}
		page.Limit = limit
	}
	return page, nil
}

func (h *Handler) timeRange(ec echo.Context, def daterange.Default) (store.TimeRange, error) {
	return h.resolver.Resolve(daterange.Query{
		From:  queryParam(ec, "from"),
		To:    queryParam(ec, "to"),
		Date:  queryParam(ec, "date"),
		Range: queryParam(ec, "range"),
	}, def)
}

func queryParam(ec echo.Context, name string) *string {
	if v := ec.QueryParam(name); v != "" {
		return &v
	}
	return nil
}

// deletionMetadata attributes a hard delete to the authenticated user.
func deletionMetadata(ec echo.Context) deletions.Metadata {
	metadata := deletions.Metadata{}
	if userId := actor(ec); userId != "" {
		metadata.DeletedByUserId = &userId
	}
	return metadata
}

func actor(ec echo.Context) string {
	return auth.SubjectId(ec.Request().Context())
}

type message struct {
	Message string `json:"message"`
}
